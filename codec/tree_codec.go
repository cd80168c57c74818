package codec

import (
	"encoding/binary"
	"fmt"

	"github.com/eyros-db/eyros/point"
	"github.com/eyros-db/eyros/tree"
)

// descriptor tags.
const (
	tagBranch uint32 = 0
	tagData   uint32 = 1
	tagRef    uint32 = 2
)

// pendingBranch is a branch node whose body hasn't been written yet, along
// with the byte offset of the 4-byte descriptor placeholder that needs
// patching once the body's start offset is known.
type pendingBranch[X point.Number, V any] struct {
	node    *tree.Branch[X, V]
	depth   int
	patchAt int
}

// EncodeTree serializes a tree to a single contiguous blob. Branch bodies
// are linearized breadth-first with a work queue: each
// branch's descriptor is written as a placeholder, the branch itself is
// queued, and its body (and the patch of its placeholder) happens once all
// shallower work is flushed.
func EncodeTree[X point.Number, V Value](t *tree.Tree[X, V], dim int) ([]byte, error) {
	buf := make([]byte, 0, 256)

	buf = EncodeVarint(buf, uint64(t.Count))
	for _, lo := range t.Bounds.Lo {
		buf = encodeScalar(buf, lo)
	}
	for _, hi := range t.Bounds.Hi {
		buf = encodeScalar(buf, hi)
	}

	var queue []pendingBranch[X, V]
	var err error
	buf, err = encodeDescriptor(buf, t.Root, 0, &queue)
	if err != nil {
		return nil, err
	}

	for len(queue) > 0 {
		pb := queue[0]
		queue = queue[1:]

		bodyOffset := uint32(len(buf))
		binary.BigEndian.PutUint32(buf[pb.patchAt:pb.patchAt+4], 3*bodyOffset+tagBranch)

		buf = EncodeVarint(buf, uint64(len(pb.node.Pivots)))
		for _, p := range pb.node.Pivots {
			buf = encodeScalar(buf, p)
		}
		for _, child := range pb.node.Intersections {
			buf, err = encodeDescriptor(buf, child, pb.depth+1, &queue)
			if err != nil {
				return nil, err
			}
		}
		for _, child := range pb.node.Nodes {
			buf, err = encodeDescriptor(buf, child, pb.depth+1, &queue)
			if err != nil {
				return nil, err
			}
		}
	}

	return buf, nil
}

// encodeDescriptor appends one child's 4-byte descriptor (and, for a Data
// node, its inline body right behind it) to buf. Branch children get a
// zero placeholder and are pushed onto queue for later patching.
func encodeDescriptor[X point.Number, V Value](buf []byte, n *tree.Node[X, V], depth int, queue *[]pendingBranch[X, V]) ([]byte, error) {
	switch n.Kind {
	case tree.KindRef:
		buf = putUint32(buf, 3*uint32(n.Ref)+tagRef)
		return buf, nil
	case tree.KindData:
		buf = putUint32(buf, 3*uint32(len(n.Data))+tagData)
		return encodeDataBody(buf, n.Data)
	case tree.KindBranch:
		patchAt := len(buf)
		buf = putUint32(buf, 0) // placeholder, patched once the body is emitted
		*queue = append(*queue, pendingBranch[X, V]{node: n.Branch, depth: depth, patchAt: patchAt})
		return buf, nil
	default:
		return nil, fmt.Errorf("encode: unknown node kind %d", n.Kind)
	}
}

func encodeDataBody[X point.Number, V Value](buf []byte, items []tree.Item[X, V]) ([]byte, error) {
	bitfieldLen := (len(items) + 7) / 8
	// tombstone bitfield, always zero: items reaching the codec are already live
	buf = append(buf, make([]byte, bitfieldLen)...)

	for _, it := range items {
		if it.Point.Dim() > 8 {
			return nil, fmt.Errorf("encode: item dimension %d exceeds shape bitfield width", it.Point.Dim())
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
			return nil, fmt.Errorf("encode value: %w", err)
		}
		buf = append(buf, vb...)
	}
	return buf, nil
}

func putUint32(dst []byte, v uint32) []byte {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	return append(dst, b[:]...)
}

// DecodeTree parses a blob produced by EncodeTree back into a tree.
func DecodeTree[X point.Number, V any](data []byte, dim int, decodeValue ValueDecoder[V]) (*tree.Tree[X, V], error) {
	d := &decoder[X, V]{src: data, dim: dim, decodeValue: decodeValue}

	pos := 0
	count, n, err := DecodeVarint(data[pos:])
	if err != nil {
		return nil, fmt.Errorf("decode tree: count: %w", err)
	}
	pos += n

	bounds := point.NewBounds[X](dim)
	for i := 0; i < dim; i++ {
		x, n, err := decodeScalar[X](data[pos:])
		if err != nil {
			return nil, fmt.Errorf("decode tree: bounds lo[%d]: %w", i, err)
		}
		bounds.Lo[i] = x
		pos += n
	}
	for i := 0; i < dim; i++ {
		x, n, err := decodeScalar[X](data[pos:])
		if err != nil {
			return nil, fmt.Errorf("decode tree: bounds hi[%d]: %w", i, err)
		}
		bounds.Hi[i] = x
		pos += n
	}

	tag, payload, n, err := d.readDescriptorAt(pos)
	if err != nil {
		return nil, fmt.Errorf("decode tree: root descriptor: %w", err)
	}
	pos += n

	var root *tree.Node[X, V]
	switch tag {
	case tagBranch:
		bodyPos := int(payload)
		root, err = d.readBranchBody(&bodyPos, 0)
	case tagData:
		root, n, err = d.readDataBody(data[pos:], int(payload))
		pos += n
	default:
		return nil, fmt.Errorf("decode tree: external ref not valid at root")
	}
	if err != nil {
		return nil, fmt.Errorf("decode tree: root body: %w", err)
	}

	return &tree.Tree[X, V]{Root: root, Bounds: bounds, Count: int(count)}, nil
}

type decoder[X point.Number, V any] struct {
	src         []byte
	dim         int
	decodeValue ValueDecoder[V]
}

func (d *decoder[X, V]) readDescriptorAt(pos int) (tag uint32, payload uint32, consumed int, err error) {
	if len(d.src) < pos+4 {
		return 0, 0, 0, fmt.Errorf("truncated descriptor at offset %d", pos)
	}
	n := binary.BigEndian.Uint32(d.src[pos : pos+4])
	return n % 3, n / 3, 4, nil
}

// readNode reads one child descriptor starting at *pos, advances *pos past
// it (and past its inline body, for a Data node), and returns the node.
func (d *decoder[X, V]) readNode(pos *int, depth int) (*tree.Node[X, V], error) {
	tag, payload, n, err := d.readDescriptorAt(*pos)
	if err != nil {
		return nil, err
	}
	*pos += n

	switch tag {
	case tagBranch:
		bodyPos := int(payload)
		return d.readBranchBody(&bodyPos, depth+1)
	case tagData:
		node, n, err := d.readDataBody(d.src[*pos:], int(payload))
		if err != nil {
			return nil, err
		}
		*pos += n
		return node, nil
	case tagRef:
		return tree.RefNode[X, V](tree.TreeRef(payload)), nil
	default:
		return nil, fmt.Errorf("invalid descriptor tag %d", tag)
	}
}

func (d *decoder[X, V]) readBranchBody(pos *int, depth int) (*tree.Node[X, V], error) {
	pivotLen, n, err := DecodeVarint(d.src[*pos:])
	if err != nil {
		return nil, fmt.Errorf("branch pivot count: %w", err)
	}
	*pos += n

	pivots := make([]X, pivotLen)
	for i := range pivots {
		x, n, err := decodeScalar[X](d.src[*pos:])
		if err != nil {
			return nil, fmt.Errorf("branch pivot %d: %w", i, err)
		}
		pivots[i] = x
		*pos += n
	}

	intersections := make([]*tree.Node[X, V], pivotLen)
	for i := range intersections {
		node, err := d.readNode(pos, depth)
		if err != nil {
			return nil, fmt.Errorf("branch intersection %d: %w", i, err)
		}
		intersections[i] = node
	}

	nodes := make([]*tree.Node[X, V], pivotLen+1)
	for i := range nodes {
		node, err := d.readNode(pos, depth)
		if err != nil {
			return nil, fmt.Errorf("branch node %d: %w", i, err)
		}
		nodes[i] = node
	}

	return &tree.Node[X, V]{
		Kind: tree.KindBranch,
		Branch: &tree.Branch[X, V]{
			Pivots:        pivots,
			Intersections: intersections,
			Nodes:         nodes,
		},
	}, nil
}

func (d *decoder[X, V]) readDataBody(src []byte, length int) (*tree.Node[X, V], int, error) {
	pos := 0
	bitfieldLen := (length + 7) / 8
	if len(src) < bitfieldLen {
		return nil, 0, fmt.Errorf("truncated tombstone bitfield")
	}
	bitfield := src[pos : pos+bitfieldLen]
	pos += bitfieldLen

	items := make([]tree.Item[X, V], 0, length)
	for i := 0; i < length; i++ {
		if len(src) <= pos {
			return nil, 0, fmt.Errorf("truncated item %d", i)
		}
		shape := src[pos]
		pos++

		p := make(point.Point[X], d.dim)
		for axis := 0; axis < d.dim; axis++ {
			interval := (shape>>uint(axis))&1 == 1
			lo, n, err := decodeScalar[X](src[pos:])
			if err != nil {
				return nil, 0, fmt.Errorf("item %d axis %d lo: %w", i, axis, err)
			}
			pos += n
			if interval {
				hi, n, err := decodeScalar[X](src[pos:])
				if err != nil {
					return nil, 0, fmt.Errorf("item %d axis %d hi: %w", i, axis, err)
				}
				pos += n
				p[axis] = point.Interval(lo, hi)
			} else {
				p[axis] = point.Scalar(lo)
			}
		}

		v, n, err := d.decodeValue(src[pos:])
		if err != nil {
			return nil, 0, fmt.Errorf("item %d value: %w", i, err)
		}
		pos += n

		deleted := (bitfield[i/8]>>(uint(i)%8))&1 == 1
		if !deleted {
			items = append(items, tree.Item[X, V]{Point: p, Value: v})
		}
	}

	return &tree.Node[X, V]{Kind: tree.KindData, Data: items}, pos, nil
}
