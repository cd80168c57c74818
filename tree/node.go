package tree

import (
	"github.com/eyros-db/eyros/point"
)

// TreeRef is a 64-bit identifier for a tree stored separately in the
// backing storage, used by Ref nodes to point at another serialized tree
// without inlining it.
type TreeRef = uint64

// Item is a single (point, value) pair as stored in a Data leaf.
type Item[X point.Number, V any] struct {
	Point point.Point[X]
	Value V
}

// Kind tags which variant a Node holds.
type Kind uint8

const (
	// KindBranch marks an interior node partitioning on one axis.
	KindBranch Kind = iota
	// KindData marks a leaf holding items directly.
	KindData
	// KindRef marks a lazy pointer to another serialized tree.
	KindRef
)

// Node is the recursive tagged variant a tree is built from: an interior
// Branch, an inline Data leaf, or a lazy Ref to an externally stored tree.
// Exactly one of Branch/Data/Ref is meaningful, selected by Kind.
type Node[X point.Number, V any] struct {
	Kind   Kind
	Branch *Branch[X, V]
	Data   []Item[X, V]
	Ref    TreeRef
}

// Branch partitions items on axis a = level mod d. Pivots is strictly
// sorted; Intersections holds one child per pivot for items that straddle
// it; Nodes holds one child per slab between (and beyond) the pivots, so
// len(Nodes) == len(Pivots)+1.
type Branch[X point.Number, V any] struct {
	Pivots        []X
	Intersections []*Node[X, V]
	Nodes         []*Node[X, V]
}

// Tree is the built, immutable structure: a root node plus the envelope
// and live-item count spanning it.
type Tree[X point.Number, V any] struct {
	Root   *Node[X, V]
	Bounds point.Bounds[X]
	Count  int
}

// IsEmpty reports whether the tree holds no live items, the condition the
// forest manager uses to decide which slots to skip during merges and
// queries.
func (t *Tree[X, V]) IsEmpty() bool {
	return t == nil || t.Count == 0
}

func emptyData[X point.Number, V any]() *Node[X, V] {
	return &Node[X, V]{Kind: KindData, Data: []Item[X, V]{}}
}

func dataNode[X point.Number, V any](items []Item[X, V]) *Node[X, V] {
	return &Node[X, V]{Kind: KindData, Data: items}
}

func branchNode[X point.Number, V any](b *Branch[X, V]) *Node[X, V] {
	return &Node[X, V]{Kind: KindBranch, Branch: b}
}

// RefNode builds a lazy pointer node for a tree stored under the given id.
func RefNode[X point.Number, V any](ref TreeRef) *Node[X, V] {
	return &Node[X, V]{Kind: KindRef, Ref: ref}
}
