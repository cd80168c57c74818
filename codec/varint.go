package codec

import (
	"encoding/binary"
	"fmt"
)

// EncodeVarint appends x to dst in unsigned LEB128-like form, the same
// scheme encoding/binary.PutUvarint already implements, and returns the
// extended slice.
func EncodeVarint(dst []byte, x uint64) []byte {
	var buf [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(buf[:], x)
	return append(dst, buf[:n]...)
}

// DecodeVarint reads a varint from the front of src, returning the value
// and the number of bytes consumed.
func DecodeVarint(src []byte) (uint64, int, error) {
	x, n := binary.Uvarint(src)
	if n == 0 {
		return 0, 0, fmt.Errorf("decode varint: truncated input")
	}
	if n < 0 {
		return 0, 0, fmt.Errorf("decode varint: overflows 64 bits")
	}
	return x, n, nil
}
