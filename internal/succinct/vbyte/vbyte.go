// Package vbyte implements a minimal length-prefixed variable-byte coding
// for small unsigned integers: 7 bits per byte, continuation bit (0x80) set
// on every byte but the last. It backs the PFC dictionary's common-prefix
// length field.
package vbyte

import "github.com/cockroachdb/errors"

// ErrNotEnoughData is returned when the buffer ends before a terminating
// (continuation-bit-clear) byte is found.
var ErrNotEnoughData = errors.New("vbyte: not enough data to decode")

// Encode appends the variable-byte encoding of v to dst and returns the
// result.
func Encode(dst []byte, v uint64) []byte {
	for v >= 0x80 {
		dst = append(dst, byte(v&0x7f)|0x80)
		v >>= 7
	}
	return append(dst, byte(v))
}

// EncodingLen returns the number of bytes Encode would produce for v.
func EncodingLen(v uint64) int {
	n := 1
	for v >= 0x80 {
		n++
		v >>= 7
	}
	return n
}

// Decode reads a variable-byte-encoded value from the start of buf,
// returning the decoded value and the number of bytes consumed.
func Decode(buf []byte) (value uint64, n int, err error) {
	var shift uint
	for i := 0; i < len(buf); i++ {
		b := buf[i]
		value |= uint64(b&0x7f) << shift
		if b&0x80 == 0 {
			return value, i + 1, nil
		}
		shift += 7
	}
	return 0, 0, ErrNotEnoughData
}
