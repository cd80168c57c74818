package codec

import (
	"fmt"

	"github.com/eyros-db/eyros/point"
	"github.com/eyros-db/eyros/tree"
)

// EncodeItems serializes a flat list of items the same way a tree's data
// body is serialized (shape bitfield + scalars + value bytes per item),
// but as a standalone blob with its own count prefix and no tombstone
// bitfield — used for the forest's staging buffer, where every item is
// by construction still live.
func EncodeItems[X point.Number, V Value](items []tree.Item[X, V], dim int) ([]byte, error) {
	buf := make([]byte, 0, 64)
	buf = EncodeVarint(buf, uint64(len(items)))
	for _, it := range items {
		if it.Point.Dim() != dim {
			return nil, fmt.Errorf("encode items: point dimension %d does not match %d", it.Point.Dim(), dim)
		}
		var shape byte
		for k, c := range it.Point {
			if c.IsInterval() {
				shape |= 1 << uint(k)
			}
		}
		buf = append(buf, shape)
		for _, c := range it.Point {
			buf = encodeScalar(buf, c.Lo)
			if c.IsInterval() {
				buf = encodeScalar(buf, c.Hi)
			}
		}
		vb, err := it.Value.ToBytes()
		if err != nil {
			return nil, fmt.Errorf("encode items: value: %w", err)
		}
		buf = append(buf, vb...)
	}
	return buf, nil
}

// DecodeItems parses a blob produced by EncodeItems.
func DecodeItems[X point.Number, V any](data []byte, dim int, decodeValue ValueDecoder[V]) ([]tree.Item[X, V], error) {
	count, n, err := DecodeVarint(data)
	if err != nil {
		return nil, fmt.Errorf("decode items: count: %w", err)
	}
	pos := n

	items := make([]tree.Item[X, V], 0, count)
	for i := uint64(0); i < count; i++ {
		if pos >= len(data) {
			return nil, fmt.Errorf("decode items: truncated at item %d", i)
		}
		shape := data[pos]
		pos++

		p := make(point.Point[X], dim)
		for axis := 0; axis < dim; axis++ {
			interval := (shape>>uint(axis))&1 == 1
			lo, n, err := decodeScalar[X](data[pos:])
			if err != nil {
				return nil, fmt.Errorf("decode items: item %d axis %d lo: %w", i, axis, err)
			}
			pos += n
			if interval {
				hi, n, err := decodeScalar[X](data[pos:])
				if err != nil {
					return nil, fmt.Errorf("decode items: item %d axis %d hi: %w", i, axis, err)
				}
				pos += n
				p[axis] = point.Interval(lo, hi)
			} else {
				p[axis] = point.Scalar(lo)
			}
		}

		v, n, err := decodeValue(data[pos:])
		if err != nil {
			return nil, fmt.Errorf("decode items: item %d value: %w", i, err)
		}
		pos += n

		items = append(items, tree.Item[X, V]{Point: p, Value: v})
	}
	return items, nil
}
