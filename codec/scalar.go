package codec

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/eyros-db/eyros/point"
)

// scalarSize returns the fixed wire width of a scalar type X, the same way
// record.go's header fields are a fixed number of bytes each.
func scalarSize[X point.Number]() int {
	var x X
	return binary.Size(x)
}

func encodeScalar[X point.Number](dst []byte, x X) []byte {
	buf := bytes.NewBuffer(dst)
	// binary.Write never fails against a bytes.Buffer for a fixed-size
	// numeric type; the error is only possible for unsupported kinds.
	if err := binary.Write(buf, binary.BigEndian, x); err != nil {
		panic(fmt.Sprintf("codec: unsupported scalar type: %v", err))
	}
	return buf.Bytes()
}

func decodeScalar[X point.Number](src []byte) (X, int, error) {
	var x X
	size := scalarSize[X]()
	if len(src) < size {
		return x, 0, fmt.Errorf("decode scalar: need %d bytes, have %d", size, len(src))
	}
	if err := binary.Read(bytes.NewReader(src[:size]), binary.BigEndian, &x); err != nil {
		return x, 0, fmt.Errorf("decode scalar: %w", err)
	}
	return x, size, nil
}

// Value is the byte-serialization contract a tree's payload type must
// satisfy to be written to a blob.
type Value interface {
	ToBytes() ([]byte, error)
}

// ValueDecoder reconstructs a V from the front of data, returning the
// value and the number of bytes consumed. Go has no static "from bytes"
// factory on a type parameter, so Decode takes one of these instead of
// requiring V to implement a matching interface.
type ValueDecoder[V any] func(data []byte) (V, int, error)
