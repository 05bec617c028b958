// Package cellcodec encodes and decodes the handful of scalar wire
// formats cell values use (spec §6.2): big-endian u32/i64/i8 and plain
// UTF-8 strings. The fixed-width big-endian layout gives unsigned
// values a byte-lexicographic order that matches numeric order;
// negative signed values do not sort below positive ones.
package cellcodec

import (
	"encoding/binary"
	"fmt"
	"math"
)

// EncodeUint32 encodes v as 4 big-endian bytes.
func EncodeUint32(v uint32) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, v)
	return b
}

// DecodeUint32 decodes 4 big-endian bytes.
func DecodeUint32(b []byte) (uint32, error) {
	if len(b) != 4 {
		return 0, fmt.Errorf("cellcodec: want 4 bytes, got %d", len(b))
	}
	return binary.BigEndian.Uint32(b), nil
}

// EncodeInt64 encodes v as 8 big-endian bytes (two's complement).
func EncodeInt64(v int64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(v))
	return b
}

// DecodeInt64 decodes 8 big-endian bytes.
func DecodeInt64(b []byte) (int64, error) {
	if len(b) != 8 {
		return 0, fmt.Errorf("cellcodec: want 8 bytes, got %d", len(b))
	}
	return int64(binary.BigEndian.Uint64(b)), nil
}

// EncodeInt8 encodes a single signed byte.
func EncodeInt8(v int8) []byte {
	return []byte{byte(v)}
}

// DecodeInt8 decodes a single signed byte.
func DecodeInt8(b []byte) (int8, error) {
	if len(b) != 1 {
		return 0, fmt.Errorf("cellcodec: want 1 byte, got %d", len(b))
	}
	return int8(b[0]), nil
}

// EncodeInt32 encodes v as 4 big-endian bytes (two's complement).
func EncodeInt32(v int32) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, uint32(v))
	return b
}

// DecodeInt32 decodes 4 big-endian bytes.
func DecodeInt32(b []byte) (int32, error) {
	if len(b) != 4 {
		return 0, fmt.Errorf("cellcodec: want 4 bytes, got %d", len(b))
	}
	return int32(binary.BigEndian.Uint32(b)), nil
}

// EncodeFloat64 encodes v's IEEE-754 bit pattern as 8 big-endian bytes.
// Used for both the "float" and "double" param types (spec §4.10):
// this codec does not distinguish single/double precision on the wire.
func EncodeFloat64(v float64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, math.Float64bits(v))
	return b
}

// DecodeFloat64 decodes 8 big-endian bytes back into a float64.
func DecodeFloat64(b []byte) (float64, error) {
	if len(b) != 8 {
		return 0, fmt.Errorf("cellcodec: want 8 bytes, got %d", len(b))
	}
	return math.Float64frombits(binary.BigEndian.Uint64(b)), nil
}

// True is the canonical single-byte "1" value used by the `*index*`
// row (spec §3.4) and the files table's `new` index.
var True = []byte{1}

// IsTrue reports whether a cell value is the canonical "1" byte.
func IsTrue(v []byte) bool {
	return len(v) == 1 && v[0] == 1
}
