package forest

import (
	"fmt"
	"sync"
	"time"

	"github.com/segmentio/ksuid"

	"github.com/eyros-db/eyros/codec"
	"github.com/eyros-db/eyros/point"
	"github.com/eyros-db/eyros/query"
	"github.com/eyros-db/eyros/storage"
	"github.com/eyros-db/eyros/tree"
)

// slotEntry is one rank of the forest slot vector: either empty
// (tree == nil) or holding a built tree and the id it's persisted
// under.
type slotEntry[X point.Number, V codec.Value] struct {
	id   uint64
	tree *tree.Tree[X, V]
}

// DB is the database surface: open, batch, query, backed by a sparse
// vector of trees and a staging buffer, single-writer multi-reader.
// Grounded on freyjadb's KVStore for the overall "one mutex around
// writer state, readers take a snapshot" shape, generalized from a
// single log+index to a forest of spatial trees.
type DB[X point.Number, V codec.Value] struct {
	mu          sync.Mutex
	cfg         Config
	storage     storage.Storage
	decodeValue codec.ValueDecoder[V]

	slots      []slotEntry[X, V]
	nextTreeID uint64
	staging    []tree.Item[X, V]
	tombstones map[string]struct{}

	metrics *Metrics
}

// Open initializes a DB from backing storage and configuration,
// recovering any previously persisted slot map and staging buffer.
func Open[X point.Number, V codec.Value](st storage.Storage, cfg Config, decodeValue codec.ValueDecoder[V]) (*DB[X, V], error) {
	if cfg.Dimension < point.MinDimension || cfg.Dimension > point.MaxDimension {
		return nil, invariantErrorf("dimension %d outside supported range [%d, %d]", cfg.Dimension, point.MinDimension, point.MaxDimension)
	}
	if cfg.BranchFactor < 2 {
		return nil, invariantErrorf("branch factor must be >= 2, got %d", cfg.BranchFactor)
	}
	if st == nil {
		st = storage.NewMemory()
	}

	db := &DB[X, V]{
		cfg:         cfg,
		storage:     st,
		decodeValue: decodeValue,
		tombstones:  make(map[string]struct{}),
		metrics:     newMetrics(cfg.Registerer),
		nextTreeID:  1,
	}

	if err := db.loadMeta(); err != nil {
		return nil, err
	}
	if err := db.loadStaging(); err != nil {
		return nil, err
	}
	db.refreshShapeMetrics()
	return db, nil
}

// Batch atomically partitions rows into inserts and logical deletes,
// appends inserts to the staging buffer, and promotes via the merge
// cascade once the staging buffer reaches BaseSize. A builder error
// aborts the batch, leaving the forest unchanged.
func (db *DB[X, V]) Batch(rows []Row[X, V]) (err error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	start := time.Now()
	success := false
	defer func() { db.metrics.recordBatch(success, time.Since(start)) }()

	for _, r := range rows {
		if derr := r.Point.CheckDim(); derr != nil {
			return invariantErrorf("row point: %v", derr)
		}
		if r.Point.Dim() != db.cfg.Dimension {
			return invariantErrorf("row point dimension %d does not match forest dimension %d", r.Point.Dim(), db.cfg.Dimension)
		}
	}

	var inserts []tree.Item[X, V]
	for _, r := range rows {
		if r.Delete {
			key, kerr := rowKey[X, V](r.Point, r.Value)
			if kerr != nil {
				return invariantErrorf("delete row key: %v", kerr)
			}
			if db.removeFromStaging(key) {
				continue
			}
			db.tombstones[key] = struct{}{}
			continue
		}
		inserts = append(inserts, tree.Item[X, V]{Point: r.Point.Clone(), Value: r.Value})
	}
	db.staging = append(db.staging, inserts...)

	if err := db.persistStaging(); err != nil {
		return err
	}

	if len(db.staging) >= db.cfg.BaseSize {
		if err := db.mergeCascade(); err != nil {
			return err
		}
	}

	success = true
	return nil
}

// Query snapshots the currently live trees and the staging buffer and
// returns a round-robin forest stream over all of them. Later batches
// reassign slots wholesale rather than mutating a tree in place, so a
// stream already holding a tree's root is unaffected by them.
func (db *DB[X, V]) Query(bbox point.Bounds[X]) (*QueryStream[X, V], error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	start := time.Now()
	if bbox.Dim() != db.cfg.Dimension {
		db.metrics.recordQuery(false, time.Since(start))
		return nil, invariantErrorf("bbox dimension %d does not match forest dimension %d", bbox.Dim(), db.cfg.Dimension)
	}

	streams := make([]*query.Stream[X, V], 0, len(db.slots)+1)
	for _, s := range db.slots {
		if s.tree == nil || s.tree.IsEmpty() {
			continue
		}
		streams = append(streams, query.NewStream[X, V](s.tree.Root, bbox, db.cfg.Dimension, db.storage, db.decodeValue))
	}
	if len(db.staging) > 0 {
		snapshot, err := tree.Build(db.cfg.BranchFactor, db.cfg.Dimension, db.staging)
		if err != nil {
			db.metrics.recordQuery(false, time.Since(start))
			return nil, invariantErrorf("build staging snapshot: %v", err)
		}
		streams = append(streams, query.NewStream[X, V](snapshot.Root, bbox, db.cfg.Dimension, db.storage, db.decodeValue))
	}

	dead := make(map[string]struct{}, len(db.tombstones))
	for k := range db.tombstones {
		dead[k] = struct{}{}
	}

	db.metrics.recordQuery(true, time.Since(start))
	return &QueryStream[X, V]{inner: query.NewForestStream(streams), dead: dead}, nil
}

// QueryStream is the stream Query returns: a forest-wide round-robin
// merge with pending logical deletes (tombstones not yet applied by a
// merge) filtered out, so a delete is visible to queries immediately
// rather than only after its next promotion.
type QueryStream[X point.Number, V codec.Value] struct {
	inner *query.ForestStream[X, V]
	dead  map[string]struct{}
}

// Next pulls the next matching, non-tombstoned hit.
func (s *QueryStream[X, V]) Next() (query.Hit[X, V], bool, error) {
	for {
		hit, ok, err := s.inner.Next()
		if err != nil {
			return hit, false, refResolutionErrorf("%v", err)
		}
		if !ok {
			return hit, false, nil
		}
		if len(s.dead) > 0 {
			key, kerr := rowKey[X, V](hit.Point, hit.Value)
			if kerr == nil {
				if _, isDead := s.dead[key]; isDead {
					continue
				}
			}
		}
		return hit, true, nil
	}
}

// RankStats describes one forest slot, for diagnostics.
type RankStats struct {
	Rank     int
	Occupied bool
	TreeID   uint64
	Count    int
}

// Stats reports per-rank occupancy and item counts, adapted from
// pkg/store/store.go's Explain/Segment shape down to what a spatial
// forest actually has ranks of: trees, not log segments.
func (db *DB[X, V]) Stats() []RankStats {
	db.mu.Lock()
	defer db.mu.Unlock()

	out := make([]RankStats, len(db.slots))
	for i, s := range db.slots {
		out[i] = RankStats{Rank: i, Occupied: s.tree != nil}
		if s.tree != nil {
			out[i].TreeID = s.id
			out[i].Count = s.tree.Count
		}
	}
	return out
}

func (db *DB[X, V]) removeFromStaging(key string) bool {
	for i, it := range db.staging {
		k, err := rowKey[X, V](it.Point, it.Value)
		if err != nil {
			continue
		}
		if k == key {
			db.staging = append(db.staging[:i], db.staging[i+1:]...)
			return true
		}
	}
	return false
}

// mergeCascade implements the occupied-prefix merge scheme: find the
// maximal occupied prefix, collect its live items plus the staging
// buffer, build one new tree, install it at the prefix's rank, and
// clear the ranks it absorbed.
func (db *DB[X, V]) mergeCascade() error {
	k := db.occupiedPrefix()

	collected := make([]tree.Item[X, V], 0, len(db.staging))
	for i := 0; i < k; i++ {
		items, err := db.listLiveResolved(db.slots[i].tree)
		if err != nil {
			return err
		}
		collected = append(collected, items...)
	}
	collected = append(collected, db.staging...)
	collected = db.filterTombstones(collected)

	newTree, err := tree.Build(db.cfg.BranchFactor, db.cfg.Dimension, collected)
	if err != nil {
		return invariantErrorf("build merged tree: %v", err)
	}

	id := db.nextTreeID
	db.nextTreeID++
	if err := db.persistTree(id, newTree); err != nil {
		return err
	}

	for i := 0; i < k; i++ {
		db.slots[i] = slotEntry[X, V]{}
	}
	if k >= len(db.slots) {
		db.slots = append(db.slots, slotEntry[X, V]{id: id, tree: newTree})
	} else {
		db.slots[k] = slotEntry[X, V]{id: id, tree: newTree}
	}

	db.staging = nil
	if err := db.persistStaging(); err != nil {
		return err
	}
	if err := db.persistMeta(); err != nil {
		return err
	}

	db.metrics.recordMerge()
	db.refreshShapeMetrics()
	return nil
}

func (db *DB[X, V]) occupiedPrefix() int {
	k := 0
	for k < len(db.slots) && db.slots[k].tree != nil {
		k++
	}
	return k
}

// filterTombstones removes, and consumes, any item matching a pending
// logical delete. A tombstone is consumed the first time it matches so
// it can't also erase a later, unrelated insert that happens to hash to
// the same key after a value is reused.
func (db *DB[X, V]) filterTombstones(items []tree.Item[X, V]) []tree.Item[X, V] {
	if len(db.tombstones) == 0 {
		return items
	}
	out := items[:0:0]
	for _, it := range items {
		key, err := rowKey[X, V](it.Point, it.Value)
		if err == nil {
			if _, dead := db.tombstones[key]; dead {
				delete(db.tombstones, key)
				continue
			}
		}
		out = append(out, it)
	}
	return out
}

// listLiveResolved lists a tree's live items, recursively resolving any
// Ref children and inlining their items rather than carrying them
// forward unresolved, since it keeps tree.Build's input a flat item
// slice rather than requiring it to splice in pre-built Ref subtrees at
// specific pivot positions.
func (db *DB[X, V]) listLiveResolved(t *tree.Tree[X, V]) ([]tree.Item[X, V], error) {
	if t == nil {
		return nil, nil
	}
	items, refs := t.List()
	out := append([]tree.Item[X, V]{}, items...)
	for _, ref := range refs {
		sub, err := db.loadTree(ref)
		if err != nil {
			return nil, refResolutionErrorf("resolving tree ref %d during merge: %v", ref, err)
		}
		more, err := db.listLiveResolved(sub)
		if err != nil {
			return nil, err
		}
		out = append(out, more...)
	}
	return out, nil
}

func (db *DB[X, V]) loadTree(id uint64) (*tree.Tree[X, V], error) {
	h, err := db.storage.Open(fmt.Sprintf("tree/%d", id))
	if err != nil {
		return nil, storageErrorf("open tree/%d: %v", id, err)
	}
	n, err := h.Len()
	if err != nil {
		return nil, storageErrorf("len tree/%d: %v", id, err)
	}
	data, err := h.Read(0, int(n))
	if err != nil {
		return nil, storageErrorf("read tree/%d: %v", id, err)
	}
	t, err := codec.DecodeTree[X, V](data, db.cfg.Dimension, db.decodeValue)
	if err != nil {
		return nil, decodeErrorf("tree/%d: %v", id, err)
	}
	return t, nil
}

func (db *DB[X, V]) persistTree(id uint64, t *tree.Tree[X, V]) error {
	blob, err := codec.EncodeTree[X, V](t, db.cfg.Dimension)
	if err != nil {
		return decodeErrorf("encode tree/%d: %v", id, err)
	}
	h, err := db.storage.Open(fmt.Sprintf("tree/%d", id))
	if err != nil {
		return storageErrorf("open tree/%d: %v", id, err)
	}
	if err := h.Write(0, blob); err != nil {
		return storageErrorf("write tree/%d: %v", id, err)
	}
	if err := h.Sync(); err != nil {
		return storageErrorf("sync tree/%d: %v", id, err)
	}
	return nil
}

func (db *DB[X, V]) loadMeta() error {
	h, err := db.storage.Open("meta")
	if err != nil {
		return storageErrorf("open meta: %v", err)
	}
	n, err := h.Len()
	if err != nil {
		return storageErrorf("len meta: %v", err)
	}
	if n == 0 {
		return nil
	}
	data, err := h.Read(0, int(n))
	if err != nil {
		return storageErrorf("read meta: %v", err)
	}
	ms, err := decodeMeta(data)
	if err != nil {
		return err
	}
	db.slots = make([]slotEntry[X, V], len(ms.Slots))
	for i, s := range ms.Slots {
		if !s.Occupied {
			continue
		}
		t, err := db.loadTree(s.TreeID)
		if err != nil {
			return err
		}
		db.slots[i] = slotEntry[X, V]{id: s.TreeID, tree: t}
		if s.TreeID >= db.nextTreeID {
			db.nextTreeID = s.TreeID + 1
		}
	}
	return nil
}

func (db *DB[X, V]) persistMeta() error {
	slots := make([]slotState, len(db.slots))
	for i, s := range db.slots {
		if s.tree != nil {
			slots[i] = slotState{Occupied: true, TreeID: s.id}
		}
	}
	blob := encodeMeta(metaState{Generation: ksuid.New(), Slots: slots})
	h, err := db.storage.Open("meta")
	if err != nil {
		return storageErrorf("open meta: %v", err)
	}
	if err := h.Write(0, blob); err != nil {
		return storageErrorf("write meta: %v", err)
	}
	if err := h.Sync(); err != nil {
		return storageErrorf("sync meta: %v", err)
	}
	return nil
}

func (db *DB[X, V]) loadStaging() error {
	h, err := db.storage.Open("staging")
	if err != nil {
		return storageErrorf("open staging: %v", err)
	}
	n, err := h.Len()
	if err != nil {
		return storageErrorf("len staging: %v", err)
	}
	if n == 0 {
		return nil
	}
	data, err := h.Read(0, int(n))
	if err != nil {
		return storageErrorf("read staging: %v", err)
	}
	items, err := codec.DecodeItems[X, V](data, db.cfg.Dimension, db.decodeValue)
	if err != nil {
		return decodeErrorf("staging: %v", err)
	}
	db.staging = items
	return nil
}

func (db *DB[X, V]) persistStaging() error {
	blob, err := codec.EncodeItems[X, V](db.staging, db.cfg.Dimension)
	if err != nil {
		return decodeErrorf("encode staging: %v", err)
	}
	h, err := db.storage.Open("staging")
	if err != nil {
		return storageErrorf("open staging: %v", err)
	}
	if err := h.Write(0, blob); err != nil {
		return storageErrorf("write staging: %v", err)
	}
	if err := h.Sync(); err != nil {
		return storageErrorf("sync staging: %v", err)
	}
	return nil
}

func (db *DB[X, V]) refreshShapeMetrics() {
	trees := 0
	items := len(db.staging)
	for _, s := range db.slots {
		if s.tree != nil {
			trees++
			items += s.tree.Count
		}
	}
	db.metrics.setShape(trees, items)
}
