// Package point provides the coordinate algebra Eyros trees are built over:
// a totally-ordered scalar type, the Coord tagged variant (point or closed
// interval), and the axis predicates the builder and query engine share.
package point

import "golang.org/x/exp/constraints"

// Number is the scalar type a Coord axis ranges over. It must support
// addition and halving (for pivot bisection) and a total order; NaN-free
// input is assumed, matching the float axis types Eyros is built against.
type Number interface {
	constraints.Integer | constraints.Float
}

// Half returns x/2 using the scalar's own division. For integer scalar
// types this truncates toward zero, same as any fixed-width coordinate
// scheme that bisects by integer division.
func Half[X Number](x X) X {
	return x / 2
}

// Kind tags which variant a Coord holds.
type Kind uint8

const (
	// KindScalar marks a Coord holding a single point value.
	KindScalar Kind = iota
	// KindInterval marks a Coord holding a closed range [Lo, Hi].
	KindInterval
)

// Coord is a single axis value: either an exact Scalar or a closed Interval.
// Scalar(x) is represented with Lo == Hi == x so callers needing the
// endpoints (for separation and bounds math) never have to branch on Kind.
type Coord[X Number] struct {
	Kind   Kind
	Lo, Hi X
}

// Scalar builds a Coord holding a single point value.
func Scalar[X Number](x X) Coord[X] {
	return Coord[X]{Kind: KindScalar, Lo: x, Hi: x}
}

// Interval builds a Coord holding a closed range. Callers are responsible
// for lo <= hi; the builder and codec never repair an inverted interval.
func Interval[X Number](lo, hi X) Coord[X] {
	return Coord[X]{Kind: KindInterval, Lo: lo, Hi: hi}
}

// IsInterval reports whether the coord was constructed with Interval.
func (c Coord[X]) IsInterval() bool {
	return c.Kind == KindInterval
}

// CmpAxis compares two coords by their lower endpoint. Scalar(x) compares
// as if it were Interval(x, x). The order is total over non-NaN input.
func CmpAxis[X Number](a, b Coord[X]) int {
	switch {
	case a.Lo < b.Lo:
		return -1
	case a.Lo > b.Lo:
		return 1
	default:
		return 0
	}
}

// IntersectPivot reports whether c touches the pivot p: a Scalar matches
// exactly, an Interval matches if p falls within its closed range.
func IntersectPivot[X Number](c Coord[X], p X) bool {
	return c.Lo <= p && p <= c.Hi
}

// IntersectCoord reports whether c overlaps the closed range [lo, hi].
func IntersectCoord[X Number](c Coord[X], lo, hi X) bool {
	return c.Hi >= lo && c.Lo <= hi
}

// IntersectIV reports whether the closed ranges [a0, a1] and [b0, b1]
// overlap.
func IntersectIV[X Number](a0, a1, b0, b1 X) bool {
	return a1 >= b0 && a0 <= b1
}

// CmpPivot compares a coord's lower endpoint against a bare scalar pivot.
func CmpPivot[X Number](c Coord[X], p X) int {
	switch {
	case c.Lo < p:
		return -1
	case c.Lo > p:
		return 1
	default:
		return 0
	}
}
