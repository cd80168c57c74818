package pebblestore

import (
	"os"
	"testing"
)

func TestStorePersistsAcrossReopen(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "eyros_pebblestore_test")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	store, err := Open(tmpDir)
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	h, err := store.Open("tree/1")
	if err != nil {
		t.Fatalf("open handle: %v", err)
	}
	payload := []byte("hello eyros")
	if err := h.Write(0, payload); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := h.Sync(); err != nil {
		t.Fatalf("sync: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	store2, err := Open(tmpDir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer store2.Close()

	h2, err := store2.Open("tree/1")
	if err != nil {
		t.Fatalf("reopen handle: %v", err)
	}
	n, err := h2.Len()
	if err != nil {
		t.Fatalf("len: %v", err)
	}
	got, err := h2.Read(0, int(n))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(got) != string(payload) {
		t.Fatalf("expected %q, got %q", payload, got)
	}
}

func TestHandleReadOutOfRange(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "eyros_pebblestore_test")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	store, err := Open(tmpDir)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer store.Close()

	h, err := store.Open("meta")
	if err != nil {
		t.Fatalf("open handle: %v", err)
	}
	if _, err := h.Read(0, 10); err == nil {
		t.Fatalf("expected error reading past an empty handle")
	}
}
