package query

import (
	"fmt"

	"github.com/eyros-db/eyros/codec"
	"github.com/eyros-db/eyros/point"
	"github.com/eyros-db/eyros/storage"
	"github.com/eyros-db/eyros/tree"
)

// cursor is one pending visitation: a node paired with its depth in the
// tree, which determines its partitioning axis (a = level mod d).
type cursor[X point.Number, V any] struct {
	level int
	node  *tree.Node[X, V]
}

// Stream is the explicit traversal state machine: a bbox, a buffer of
// hits ready to yield, a LIFO stack of pending cursors, a FIFO of
// unresolved external refs, and a storage handle for resolving them.
// A Stream is single-producer and not safe for concurrent use; dropping
// it without draining it is sufficient for cancellation.
type Stream[X point.Number, V any] struct {
	bbox        point.Bounds[X]
	dim         int
	queue       []tree.Item[X, V]
	cursors     []cursor[X, V]
	refs        []tree.TreeRef
	storage     storage.Storage
	decodeValue codec.ValueDecoder[V]
}

// NewStream builds a stream rooted at root, bounded to bbox. storage and
// decodeValue are used only if traversal reaches a Ref node.
func NewStream[X point.Number, V any](root *tree.Node[X, V], bbox point.Bounds[X], dim int, st storage.Storage, decodeValue codec.ValueDecoder[V]) *Stream[X, V] {
	s := &Stream[X, V]{bbox: bbox, dim: dim, storage: st, decodeValue: decodeValue}
	if root != nil {
		s.cursors = append(s.cursors, cursor[X, V]{level: 0, node: root})
	}
	return s
}

// Next pulls the next matching hit. ok is false once the stream is
// exhausted; once Next returns a non-nil error the stream must not be
// pulled again.
func (s *Stream[X, V]) Next() (hit Hit[X, V], ok bool, err error) {
	for {
		if n := len(s.queue); n > 0 {
			it := s.queue[n-1]
			s.queue = s.queue[:n-1]
			return Hit[X, V]{Point: it.Point, Value: it.Value}, true, nil
		}

		if len(s.cursors) == 0 {
			if len(s.refs) == 0 {
				return Hit[X, V]{}, false, nil
			}
			ref := s.refs[0]
			s.refs = s.refs[1:]
			root, rerr := s.resolveRef(ref)
			if rerr != nil {
				return Hit[X, V]{}, false, rerr
			}
			s.cursors = append(s.cursors, cursor[X, V]{level: 0, node: root})
			continue
		}

		last := len(s.cursors) - 1
		c := s.cursors[last]
		s.cursors = s.cursors[:last]

		switch c.node.Kind {
		case tree.KindBranch:
			s.visitBranch(c.level, c.node.Branch)
		case tree.KindData:
			s.filterData(c.node.Data)
		case tree.KindRef:
			s.refs = append(s.refs, c.node.Ref)
		}
	}
}

func (s *Stream[X, V]) visitBranch(level int, b *tree.Branch[X, V]) {
	axis := level % s.dim
	lo, hi := s.bbox.Lo[axis], s.bbox.Hi[axis]
	next := level + 1

	for i, p := range b.Pivots {
		if lo <= p && p <= hi {
			s.cursors = append(s.cursors, cursor[X, V]{level: next, node: b.Intersections[i]})
		}
	}

	if len(b.Pivots) == 0 {
		s.cursors = append(s.cursors, cursor[X, V]{level: next, node: b.Nodes[0]})
		return
	}

	if lo <= b.Pivots[0] {
		s.cursors = append(s.cursors, cursor[X, V]{level: next, node: b.Nodes[0]})
	}
	for k := 1; k < len(b.Pivots); k++ {
		if point.IntersectIV(b.Pivots[k-1], b.Pivots[k], lo, hi) {
			s.cursors = append(s.cursors, cursor[X, V]{level: next, node: b.Nodes[k]})
		}
	}
	if hi >= b.Pivots[len(b.Pivots)-1] {
		s.cursors = append(s.cursors, cursor[X, V]{level: next, node: b.Nodes[len(b.Nodes)-1]})
	}
}

func (s *Stream[X, V]) filterData(items []tree.Item[X, V]) {
	for _, it := range items {
		if it.Point.Dim() == s.dim && s.bbox.Contains(it.Point) {
			s.queue = append(s.queue, it)
		}
	}
}

func (s *Stream[X, V]) resolveRef(ref tree.TreeRef) (*tree.Node[X, V], error) {
	if s.storage == nil {
		return nil, fmt.Errorf("query: tree references external ref %d but no storage was supplied", ref)
	}
	h, err := s.storage.Open(fmt.Sprintf("tree/%d", ref))
	if err != nil {
		return nil, fmt.Errorf("query: open ref %d: %w", ref, err)
	}
	n, err := h.Len()
	if err != nil {
		return nil, fmt.Errorf("query: len ref %d: %w", ref, err)
	}
	data, err := h.Read(0, int(n))
	if err != nil {
		return nil, fmt.Errorf("query: read ref %d: %w", ref, err)
	}
	tr, err := codec.DecodeTree[X, V](data, s.dim, s.decodeValue)
	if err != nil {
		return nil, fmt.Errorf("query: decode ref %d: %w", ref, err)
	}
	return tr.Root, nil
}
