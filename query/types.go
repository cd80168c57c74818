package query

import "github.com/eyros-db/eyros/point"

// Location is an opaque physical identifier returned with query hits.
// It is always the zero value in this implementation; deriving it from
// a leaf's physical storage offset is left to a future iteration.
type Location struct {
	File   uint64
	Offset uint32
}

// Hit is one (point, value, location) match yielded by a stream.
type Hit[X point.Number, V any] struct {
	Point    point.Point[X]
	Value    V
	Location Location
}
