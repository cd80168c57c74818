// Package pebblestore adapts github.com/cockroachdb/pebble, an embedded
// LSM key-value store, to the storage.Storage interface: each named
// blob (a tree file, "meta", or "staging") is stored whole under its
// name as a pebble key. This is an optional persistent backend; the
// default for a database opened without one is storage.Memory.
package pebblestore

import (
	"fmt"
	"sync"

	"github.com/cockroachdb/pebble"

	"github.com/eyros-db/eyros/storage"
)

// Store is a pebble-backed storage.Storage. Grounded on the old
// DefaultStorage wrapper: open a pebble.DB at a directory path, address
// blobs by key instead of by ksuid.
type Store struct {
	db *pebble.DB
}

// Open opens (creating if absent) a pebble database at path.
func Open(path string) (*Store, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("pebblestore: open %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying pebble database.
func (s *Store) Close() error {
	return s.db.Close()
}

// OpenHandle returns a handle to the blob named name, reading its current
// bytes (if any) into memory; writes are buffered and flushed to pebble
// on Sync or Close, matching pebble's own batched-write idiom.
func (s *Store) OpenHandle(name string) (storage.Handle, error) {
	data, closer, err := s.db.Get([]byte(name))
	if err != nil && err != pebble.ErrNotFound {
		return nil, fmt.Errorf("pebblestore: get %s: %w", name, err)
	}
	var initial []byte
	if err == nil {
		initial = append(initial, data...)
		closer.Close()
	}
	return &handle{db: s.db, name: name, data: initial}, nil
}

// Open implements storage.Storage.
func (s *Store) Open(name string) (storage.Handle, error) {
	return s.OpenHandle(name)
}

type handle struct {
	mu    sync.Mutex
	db    *pebble.DB
	name  string
	data  []byte
	dirty bool
}

func (h *handle) Read(offset int64, length int) ([]byte, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if offset < 0 || int(offset)+length > len(h.data) {
		return nil, fmt.Errorf("pebblestore: read out of range: offset=%d length=%d size=%d", offset, length, len(h.data))
	}
	out := make([]byte, length)
	copy(out, h.data[offset:int(offset)+length])
	return out, nil
}

func (h *handle) Write(offset int64, data []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	end := int(offset) + len(data)
	if end > len(h.data) {
		grown := make([]byte, end)
		copy(grown, h.data)
		h.data = grown
	}
	copy(h.data[offset:end], data)
	h.dirty = true
	return nil
}

func (h *handle) Len() (int64, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return int64(len(h.data)), nil
}

func (h *handle) Sync() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.dirty {
		return nil
	}
	if err := h.db.Set([]byte(h.name), h.data, pebble.Sync); err != nil {
		return fmt.Errorf("pebblestore: set %s: %w", h.name, err)
	}
	h.dirty = false
	return nil
}

func (h *handle) Close() error {
	return h.Sync()
}
