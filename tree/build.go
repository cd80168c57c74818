package tree

import (
	"fmt"
	"sort"

	"github.com/eyros-db/eyros/point"
)

// Build transforms a batch of items into an immutable tree at the given
// branching factor. Items must all share the given dimension (2..8); the
// batch need not be pre-sorted, Build does that itself, stably, once per
// axis.
func Build[X point.Number, V any](branchFactor, dim int, items []Item[X, V]) (*Tree[X, V], error) {
	if branchFactor < 2 {
		return nil, fmt.Errorf("branch factor must be >= 2, got %d", branchFactor)
	}
	if dim < point.MinDimension || dim > point.MaxDimension {
		return nil, fmt.Errorf("dimension %d outside supported range [%d, %d]", dim, point.MinDimension, point.MaxDimension)
	}
	for i, it := range items {
		if it.Point.Dim() != dim {
			return nil, fmt.Errorf("item %d has dimension %d, expected %d", i, it.Point.Dim(), dim)
		}
	}

	if len(items) == 0 {
		return &Tree[X, V]{Root: emptyData[X, V](), Bounds: point.NewBounds[X](dim), Count: 0}, nil
	}

	sorted := make([][]int, dim)
	for a := 0; a < dim; a++ {
		idx := make([]int, len(items))
		for i := range idx {
			idx[i] = i
		}
		axis := a
		sort.SliceStable(idx, func(i, j int) bool {
			return point.CmpAxis(items[idx[i]].Point[axis], items[idx[j]].Point[axis]) < 0
		})
		sorted[a] = idx
	}

	ctx := &builder[X, V]{
		branchFactor: branchFactor,
		dim:          dim,
		items:        items,
		matched:      make([]bool, len(items)),
	}
	root := ctx.fromSorted(0, sorted)

	bounds := point.BoundsFromPoint(items[0].Point)
	for _, it := range items[1:] {
		bounds = point.ExpandPoint(bounds, it.Point)
	}

	return &Tree[X, V]{Root: root, Bounds: bounds, Count: len(items)}, nil
}

// builder carries the state shared across one Build call's recursion: the
// full item array (indices are stable across the whole call) and the
// matched bitmap that ensures each item is claimed by exactly one leaf.
type builder[X point.Number, V any] struct {
	branchFactor int
	dim          int
	items        []Item[X, V]
	matched      []bool
}

func (c *builder[X, V]) fromSorted(level int, sorted [][]int) *Node[X, V] {
	n0 := len(sorted[0])
	if n0 == 0 {
		return emptyData[X, V]()
	}
	if n0 < c.branchFactor {
		return dataNode(c.claim(sorted[0]))
	}

	a := level % c.dim
	n := c.branchFactor - 1
	if n0-1 < n {
		n = n0 - 1
	}
	isMin := (level/c.dim)%2 != 0

	pivots := c.selectPivots(a, sorted[a], n, isMin)

	intersections := make([]*Node[X, V], len(pivots))
	for k, p := range pivots {
		filtered := c.filterSorted(sorted, func(i int) bool {
			return !c.matched[i] && point.IntersectPivot(c.items[i].Point[a], p)
		})
		if len(filtered[0]) == n0 {
			intersections[k] = dataNode(c.claim(filtered[0]))
		} else {
			intersections[k] = c.fromSorted(level+1, filtered)
		}
	}

	nodes := make([]*Node[X, V], 0, len(pivots)+1)
	p0 := pivots[0]
	less := c.filterSorted(sorted, func(i int) bool {
		return !c.matched[i] && point.CmpPivot(c.items[i].Point[a], p0) < 0
	})
	nodes = append(nodes, c.fromSorted(level+1, less))

	for k := 0; k < len(pivots)-1; k++ {
		start, end := pivots[k], pivots[k+1]
		mid := c.filterSorted(sorted, func(i int) bool {
			return !c.matched[i] && point.IntersectCoord(c.items[i].Point[a], start, end)
		})
		nodes = append(nodes, c.fromSorted(level+1, mid))
	}

	pLast := pivots[len(pivots)-1]
	greater := c.filterSorted(sorted, func(i int) bool {
		return !c.matched[i] && point.CmpPivot(c.items[i].Point[a], pLast) > 0
	})
	nodes = append(nodes, c.fromSorted(level+1, greater))

	nonEmpty := 0
	for _, nd := range nodes {
		if !(nd.Kind == KindData && len(nd.Data) == 0) {
			nonEmpty++
		}
	}
	if nonEmpty <= 1 {
		return dataNode(c.claim(sorted[0]))
	}

	return branchNode(&Branch[X, V]{
		Pivots:        pivots,
		Intersections: intersections,
		Nodes:         nodes,
	})
}

// claim marks the given global item indices as owned and returns their
// items in the given order.
func (c *builder[X, V]) claim(idxs []int) []Item[X, V] {
	out := make([]Item[X, V], 0, len(idxs))
	for _, i := range idxs {
		c.matched[i] = true
		out = append(out, c.items[i])
	}
	return out
}

// filterSorted applies pred independently to every axis's sorted index
// list, preserving each axis's own relative order.
func (c *builder[X, V]) filterSorted(sorted [][]int, pred func(i int) bool) [][]int {
	out := make([][]int, len(sorted))
	for axis, idxs := range sorted {
		filtered := make([]int, 0, len(idxs))
		for _, i := range idxs {
			if pred(i) {
				filtered = append(filtered, i)
			}
		}
		out[axis] = filtered
	}
	return out
}

// selectPivots computes up to n distinct pivots on axis a: single-item and
// two-item axes separate directly, larger axes sample n evenly spaced
// neighboring pairs.
func (c *builder[X, V]) selectPivots(a int, sortedA []int, n int, isMin bool) []X {
	coordAt := func(i int) point.Coord[X] { return c.items[sortedA[i]].Point[a] }

	var pivots []X
	switch len(sortedA) {
	case 1:
		s := coordAt(0)
		pivots = []X{separate(s.Lo, s.Hi, s.Lo, s.Hi, isMin)}
	case 2:
		s0, s1 := coordAt(0), coordAt(1)
		pivots = []X{separate(s0.Lo, s0.Hi, s1.Lo, s1.Hi, isMin)}
	default:
		pivots = make([]X, n)
		for k := 0; k < n; k++ {
			m := k * len(sortedA) / (n + 1)
			s0, s1 := coordAt(m), coordAt(m+1)
			pivots[k] = separate(s0.Lo, s0.Hi, s1.Lo, s1.Hi, isMin)
		}
	}

	sort.Slice(pivots, func(i, j int) bool { return pivots[i] < pivots[j] })

	// Drop repeated values so the pivots are strictly increasing.
	out := pivots[:1]
	for _, p := range pivots[1:] {
		if p != out[len(out)-1] {
			out = append(out, p)
		}
	}
	return out
}

// separate picks the scalar that divides two (possibly overlapping)
// intervals. is_min alternates the bias toward the lower or upper half of
// an overlap across levels, spreading straddling items out.
func separate[X point.Number](aLo, aHi, bLo, bHi X, isMin bool) X {
	if point.IntersectIV(aLo, aHi, bLo, bHi) {
		if isMin {
			return (aLo + bLo) / 2
		}
		return (aHi + bHi) / 2
	}
	return (aHi + bLo) / 2
}
