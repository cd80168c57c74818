package forest

import (
	"fmt"
	"strings"

	"github.com/eyros-db/eyros/codec"
	"github.com/eyros-db/eyros/point"
)

// Row is one batch entry: an insert, or — when Delete is set — a
// logical delete matched by (Point, Value) equality rather than by
// physical Location. Location-addressed deletes assume the caller knows
// a row's physical placement; since Location is opaque in this
// implementation, a caller has no Location to delete by in the first
// place, so deletes are matched logically instead.
type Row[X point.Number, V codec.Value] struct {
	Point  point.Point[X]
	Value  V
	Delete bool
}

// rowKey derives a stable string key for logical delete matching from a
// point and value's own serialized form, so two rows compare equal
// exactly when encode(point1)==encode(point2) and value1.ToBytes()==
// value2.ToBytes().
func rowKey[X point.Number, V codec.Value](p point.Point[X], v V) (string, error) {
	vb, err := v.ToBytes()
	if err != nil {
		return "", fmt.Errorf("row key: value bytes: %w", err)
	}
	var sb strings.Builder
	for _, c := range p {
		fmt.Fprintf(&sb, "%d:%v:%v|", c.Kind, c.Lo, c.Hi)
	}
	sb.Write(vb)
	return sb.String(), nil
}
