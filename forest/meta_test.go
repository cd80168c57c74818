package forest

import (
	"testing"

	"github.com/segmentio/ksuid"
)

func TestMetaRoundTrip(t *testing.T) {
	ms := metaState{
		Generation: ksuid.New(),
		Slots: []slotState{
			{Occupied: true, TreeID: 7},
			{Occupied: false},
			{Occupied: true, TreeID: 42},
		},
	}
	blob := encodeMeta(ms)
	got, err := decodeMeta(blob)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Generation.String() != ms.Generation.String() {
		t.Fatalf("generation mismatch: want %s, got %s", ms.Generation, got.Generation)
	}
	if len(got.Slots) != len(ms.Slots) {
		t.Fatalf("expected %d slots, got %d", len(ms.Slots), len(got.Slots))
	}
	for i, s := range ms.Slots {
		if got.Slots[i] != s {
			t.Fatalf("slot %d mismatch: want %+v, got %+v", i, s, got.Slots[i])
		}
	}
}

func TestMetaDecodeTruncated(t *testing.T) {
	if _, err := decodeMeta([]byte{1, 2, 3}); err == nil {
		t.Fatalf("expected error decoding a too-short meta blob")
	}
}
