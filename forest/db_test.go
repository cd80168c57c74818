package forest

import (
	"encoding/binary"
	"fmt"
	"math/bits"
	"testing"

	"github.com/eyros-db/eyros/codec"
	"github.com/eyros-db/eyros/point"
	"github.com/eyros-db/eyros/storage"
	"github.com/eyros-db/eyros/tree"
)

type intValue uint32

func (v intValue) ToBytes() ([]byte, error) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], uint32(v))
	return b[:], nil
}

func decodeIntValue(data []byte) (intValue, int, error) {
	if len(data) < 4 {
		return 0, 0, fmt.Errorf("truncated intValue")
	}
	return intValue(binary.BigEndian.Uint32(data)), 4, nil
}

func ptf(x, y float64) point.Point[float64] {
	return point.Point[float64]{point.Scalar(x), point.Scalar(y)}
}

func bboxf(loX, loY, hiX, hiY float64) point.Bounds[float64] {
	return point.Bounds[float64]{Lo: []float64{loX, loY}, Hi: []float64{hiX, hiY}}
}

func drainValues(t *testing.T, s *QueryStream[float64, intValue]) []intValue {
	t.Helper()
	var out []intValue
	for {
		hit, ok, err := s.Next()
		if err != nil {
			t.Fatalf("stream error: %v", err)
		}
		if !ok {
			return out
		}
		out = append(out, hit.Value)
	}
}

func openTestDB(t *testing.T, baseSize int) *DB[float64, intValue] {
	t.Helper()
	cfg := DefaultConfig(2)
	cfg.BaseSize = baseSize
	db, err := Open[float64, intValue](storage.NewMemory(), cfg, decodeIntValue)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	return db
}

func TestInsertThenQueryAll(t *testing.T) {
	db := openTestDB(t, 64)
	err := db.Batch([]Row[float64, intValue]{
		{Point: ptf(0, 0), Value: 1},
		{Point: ptf(1, 1), Value: 2},
		{Point: ptf(-1, -1), Value: 3},
	})
	if err != nil {
		t.Fatalf("batch: %v", err)
	}

	s, err := db.Query(bboxf(-2, -2, 2, 2))
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	got := drainValues(t, s)
	if len(got) != 3 {
		t.Fatalf("expected 3 hits, got %d (%v)", len(got), got)
	}
}

func TestIntervalStraddlingPivotAcrossBatches(t *testing.T) {
	db := openTestDB(t, 64)
	if err := db.Batch([]Row[float64, intValue]{
		{Point: point.Point[float64]{point.Interval(-0.5, 0.5), point.Scalar(0)}, Value: 10},
	}); err != nil {
		t.Fatalf("batch 1: %v", err)
	}
	if err := db.Batch([]Row[float64, intValue]{
		{Point: ptf(1, 1), Value: 20},
	}); err != nil {
		t.Fatalf("batch 2: %v", err)
	}

	s, err := db.Query(bboxf(-0.1, -0.1, 0.1, 0.1))
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	got := drainValues(t, s)
	if len(got) != 1 || got[0] != 10 {
		t.Fatalf("expected exactly {10}, got %v", got)
	}
}

func TestMergeCascadePopcount(t *testing.T) {
	db := openTestDB(t, 64)
	for b := 0; b < 10; b++ {
		rows := make([]Row[float64, intValue], 64)
		for i := range rows {
			id := b*64 + i
			rows[i] = Row[float64, intValue]{Point: ptf(float64(id), float64(id)), Value: intValue(id)}
		}
		if err := db.Batch(rows); err != nil {
			t.Fatalf("batch %d: %v", b, err)
		}
	}

	stats := db.Stats()
	live := 0
	total := 0
	for _, s := range stats {
		if s.Occupied {
			live++
			total += s.Count
		}
	}
	wantLive := bits.OnesCount(10)
	if live != wantLive {
		t.Fatalf("expected %d live trees after 10 batches of 64 (popcount(10)), got %d", wantLive, live)
	}
	if total != 640 {
		t.Fatalf("expected 640 live items conserved, got %d", total)
	}
}

func TestCodecFidelityThroughForest(t *testing.T) {
	mem := storage.NewMemory()
	cfg := DefaultConfig(2)
	cfg.BaseSize = 1000
	db, err := Open[float64, intValue](mem, cfg, decodeIntValue)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	rows := make([]Row[float64, intValue], 1000)
	for i := range rows {
		x := float64((i*2654435761)%4000) - 2000
		y := float64((i*40503)%4000) - 2000
		rows[i] = Row[float64, intValue]{Point: ptf(x, y), Value: intValue(i)}
	}
	if err := db.Batch(rows); err != nil {
		t.Fatalf("batch: %v", err)
	}

	// Reopen so the query runs over the tree decoded from its stored blob
	// rather than the in-memory tree the merge built.
	reopened, err := Open[float64, intValue](mem, cfg, decodeIntValue)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	s, err := reopened.Query(bboxf(-2000, -2000, 2000, 2000))
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	got := drainValues(t, s)
	if len(got) != 1000 {
		t.Fatalf("expected all 1000 points back, got %d", len(got))
	}
}

func TestRefResolutionDuringQueryAndMerge(t *testing.T) {
	mem := storage.NewMemory()
	cfg := DefaultConfig(2)
	cfg.BaseSize = 64
	db, err := Open[float64, intValue](mem, cfg, decodeIntValue)
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	innerItems := []tree.Item[float64, intValue]{{Point: ptf(5, 5), Value: 42}}
	innerTree, err := tree.Build(9, 2, innerItems)
	if err != nil {
		t.Fatalf("build inner tree: %v", err)
	}
	blob, err := codec.EncodeTree[float64, intValue](innerTree, 2)
	if err != nil {
		t.Fatalf("encode inner tree: %v", err)
	}
	h, err := mem.Open("tree/999")
	if err != nil {
		t.Fatalf("open tree/999: %v", err)
	}
	if err := h.Write(0, blob); err != nil {
		t.Fatalf("write tree/999: %v", err)
	}

	// Splice a tree whose root is a bare Ref into the forest directly,
	// simulating a slot built elsewhere that chose to carry the
	// reference rather than resolve it.
	refRoot := tree.RefNode[float64, intValue](999)
	refTree := &tree.Tree[float64, intValue]{Root: refRoot, Bounds: point.BoundsFromPoint(ptf(5, 5)), Count: 1}
	db.slots = []slotEntry[float64, intValue]{{id: 1, tree: refTree}}
	db.nextTreeID = 2

	s, err := db.Query(bboxf(4, 4, 6, 6))
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	got := drainValues(t, s)
	if len(got) != 1 || got[0] != 42 {
		t.Fatalf("expected ref to resolve to {42}, got %v", got)
	}

	// Force a merge: the new tree must inline the resolved item rather
	// than carrying the Ref forward.
	rows := make([]Row[float64, intValue], 64)
	for i := range rows {
		rows[i] = Row[float64, intValue]{Point: ptf(float64(i), float64(i)), Value: intValue(1000 + i)}
	}
	if err := db.Batch(rows); err != nil {
		t.Fatalf("batch: %v", err)
	}
	stats := db.Stats()
	if len(stats) < 2 || stats[0].Occupied || !stats[1].Occupied {
		t.Fatalf("expected the merge to clear rank 0 and occupy rank 1, got %+v", stats)
	}
	if stats[1].Count != 65 {
		t.Fatalf("expected merged tree to hold the resolved ref item plus 64 new inserts, got %d", stats[1].Count)
	}
}

func TestTombstoneElision(t *testing.T) {
	db := openTestDB(t, 64)
	if err := db.Batch([]Row[float64, intValue]{
		{Point: ptf(0, 0), Value: 7},
	}); err != nil {
		t.Fatalf("insert: %v", err)
	}

	if err := db.Batch([]Row[float64, intValue]{
		{Point: ptf(0, 0), Value: 7, Delete: true},
	}); err != nil {
		t.Fatalf("delete: %v", err)
	}

	s, err := db.Query(bboxf(-1, -1, 1, 1))
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	got := drainValues(t, s)
	if len(got) != 0 {
		t.Fatalf("expected empty result after tombstone, got %v", got)
	}
}

func TestEmptyQueryBBoxReturnsNothing(t *testing.T) {
	db := openTestDB(t, 64)
	if err := db.Batch([]Row[float64, intValue]{{Point: ptf(0, 0), Value: 1}}); err != nil {
		t.Fatalf("batch: %v", err)
	}
	bbox := bboxf(5, 5, -5, -5) // lo > hi
	if !bbox.Empty() {
		t.Fatalf("expected bbox to be detected empty")
	}
	s, err := db.Query(bbox)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	got := drainValues(t, s)
	if len(got) != 0 {
		t.Fatalf("expected zero results for an empty bbox, got %v", got)
	}
}

func TestReopenRecoversSlotsAndStaging(t *testing.T) {
	mem := storage.NewMemory()
	cfg := DefaultConfig(2)
	cfg.BaseSize = 64

	db, err := Open[float64, intValue](mem, cfg, decodeIntValue)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	// One full batch promotes into slot 0; the next row stays staged.
	slotRows := make([]Row[float64, intValue], 64)
	for i := range slotRows {
		slotRows[i] = Row[float64, intValue]{Point: ptf(10+float64(i), 10+float64(i)), Value: intValue(i)}
	}
	if err := db.Batch(slotRows); err != nil {
		t.Fatalf("batch slot rows: %v", err)
	}
	if err := db.Batch([]Row[float64, intValue]{{Point: ptf(1, 1), Value: 99}}); err != nil {
		t.Fatalf("batch: %v", err)
	}

	reopened, err := Open[float64, intValue](mem, cfg, decodeIntValue)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	stats := reopened.Stats()
	if len(stats) != 1 || !stats[0].Occupied || stats[0].Count != 64 {
		t.Fatalf("expected slot 0 with 64 items to survive reopen, got %+v", stats)
	}
	s, err := reopened.Query(bboxf(0, 0, 2, 2))
	if err != nil {
		t.Fatalf("query after reopen: %v", err)
	}
	got := drainValues(t, s)
	if len(got) != 1 || got[0] != 99 {
		t.Fatalf("expected staged row to survive reopen, got %v", got)
	}
}

func TestBatchRejectsWrongDimension(t *testing.T) {
	db := openTestDB(t, 64)
	err := db.Batch([]Row[float64, intValue]{
		{Point: point.Point[float64]{point.Scalar(0)}, Value: 1},
	})
	if err == nil {
		t.Fatalf("expected an invariant error for a 1-dimensional row in a 2-dimensional forest")
	}
}
