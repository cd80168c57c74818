package forest

import (
	"github.com/segmentio/ksuid"

	"github.com/eyros-db/eyros/codec"
)

// slotState describes one forest rank: whether it holds a tree, and if
// so, which tree/<id> blob it names.
type slotState struct {
	Occupied bool
	TreeID   uint64
}

// metaState is the persisted "meta" blob: the slot map, plus a fresh
// ksuid stamped on every write so two meta blobs can be told apart (and
// ordered) even if their slot contents happen to coincide — the same
// role ksuid.New() plays as a generation marker in the old
// pkg/storage.DefaultStorage.Create, generalized from "identity of one
// record" to "version of the whole slot map".
type metaState struct {
	Generation ksuid.KSUID
	Slots      []slotState
}

func encodeMeta(m metaState) []byte {
	buf := make([]byte, 0, 20+len(m.Slots)*9)
	buf = append(buf, m.Generation.Bytes()...)
	buf = codec.EncodeVarint(buf, uint64(len(m.Slots)))
	for _, s := range m.Slots {
		if s.Occupied {
			buf = append(buf, 1)
			buf = codec.EncodeVarint(buf, s.TreeID)
		} else {
			buf = append(buf, 0)
		}
	}
	return buf
}

func decodeMeta(data []byte) (metaState, error) {
	if len(data) < ksuid.ByteLength {
		return metaState{}, decodeErrorf("meta blob too short: %d bytes", len(data))
	}
	gen, err := ksuid.FromBytes(data[:ksuid.ByteLength])
	if err != nil {
		return metaState{}, decodeErrorf("meta generation stamp: %v", err)
	}
	pos := ksuid.ByteLength

	count, n, err := codec.DecodeVarint(data[pos:])
	if err != nil {
		return metaState{}, decodeErrorf("meta slot count: %v", err)
	}
	pos += n

	slots := make([]slotState, count)
	for i := range slots {
		if pos >= len(data) {
			return metaState{}, decodeErrorf("meta truncated at slot %d", i)
		}
		occupied := data[pos]
		pos++
		if occupied == 1 {
			id, n, err := codec.DecodeVarint(data[pos:])
			if err != nil {
				return metaState{}, decodeErrorf("meta slot %d tree id: %v", i, err)
			}
			pos += n
			slots[i] = slotState{Occupied: true, TreeID: id}
		}
	}
	return metaState{Generation: gen, Slots: slots}, nil
}
