// Package logarray implements a compact sequence of fixed-width packed
// unsigned integers: a LogArray. Each of the n entries occupies exactly
// width bits (0 < width <= 64), packed most-significant-bit-first and
// possibly spanning byte boundaries. The on-disk form is the packed data
// followed by an 8-byte footer: a big-endian uint32 entry count, a single
// width byte, and three bytes of padding.
package logarray

import (
	"encoding/binary"

	"github.com/cockroachdb/errors"

	"github.com/succinctgraph/triplestore/internal/succinct/bitpack"
)

// ErrInvalidFormat is returned when a LogArray's footer or byte length is
// inconsistent with the data preceding it.
var ErrInvalidFormat = errors.New("logarray: invalid format")

// ErrOutOfOrder is raised by the monotonic builder when an entry does not
// strictly exceed the previous one. It is a programmer error.
var ErrOutOfOrder = errors.New("logarray: entries must be pushed in strictly ascending order")

const footerLen = 8

// LogArray is a read-only, zero-copy view over a packed sequence of
// fixed-width unsigned integers.
type LogArray struct {
	data  []byte // the packed entries only, footer stripped
	n     int
	width uint
}

// Parse interprets buf (packed entries plus the 8-byte footer) as a
// LogArray.
func Parse(buf []byte) (LogArray, error) {
	if len(buf) < footerLen {
		return LogArray{}, errors.Wrapf(ErrInvalidFormat, "buffer of %d bytes too small for footer", len(buf))
	}
	footer := buf[len(buf)-footerLen:]
	n := binary.BigEndian.Uint32(footer[0:4])
	width := uint(footer[4])
	data := buf[:len(buf)-footerLen]

	if n > 0 {
		needed := bitpack.PaddedByteLen(uint64(n) * uint64(width))
		if len(data) < needed {
			return LogArray{}, errors.Wrapf(ErrInvalidFormat, "expected at least %d packed bytes for %d entries of width %d, got %d", needed, n, width, len(data))
		}
	}

	return LogArray{data: data, n: int(n), width: width}, nil
}

// Empty returns a zero-length LogArray.
func Empty() LogArray {
	return LogArray{}
}

// Len returns the number of entries.
func (a LogArray) Len() int { return a.n }

// Width returns the bit width of each entry.
func (a LogArray) Width() uint { return a.width }

// Entry returns the i'th entry (0-indexed).
func (a LogArray) Entry(i int) uint64 {
	if i < 0 || i >= a.n {
		panic(errors.Safe(errors.Newf("logarray: index %d out of range [0,%d)", i, a.n)))
	}
	return bitpack.ReadBits(a.data, uint64(i)*uint64(a.width), a.width)
}

// Slice returns the entries [start, start+length). The result shares the
// underlying bytes when start falls on a byte boundary and is a repacked
// copy otherwise.
func (a LogArray) Slice(start, length int) LogArray {
	if start < 0 || length < 0 || start+length > a.n {
		panic(errors.Safe(errors.Newf("logarray: slice [%d,%d) out of range [0,%d)", start, start+length, a.n)))
	}
	if length == 0 {
		return LogArray{width: a.width}
	}
	bitStart := uint64(start) * uint64(a.width)
	byteStart := bitStart / 8
	// The slice keeps its own bit alignment: entries are read relative to
	// the original bit offset, so we keep the byte containing bitStart and
	// remember the intra-byte shift via a derived offset array. To keep
	// Entry() simple we instead materialize a repacked buffer when the
	// slice does not start at a byte boundary; this keeps all downstream
	// bit arithmetic trivial at the cost of an allocation for ragged
	// slices.
	if bitStart%8 == 0 {
		endBit := uint64(start+length) * uint64(a.width)
		endByte := (endBit + 7) / 8
		return LogArray{data: a.data[byteStart:endByte], n: length, width: a.width}
	}

	w := bitpack.NewWriter()
	for i := 0; i < length; i++ {
		w.WriteBits(a.Entry(start+i), a.width)
	}
	return LogArray{data: w.Bytes(), n: length, width: a.width}
}

// Entries materializes the full entry sequence.
func (a LogArray) Entries() []uint64 {
	out := make([]uint64, a.n)
	for i := range out {
		out[i] = a.Entry(i)
	}
	return out
}

// Builder appends entries sequentially and writes the footer on Finalize.
type Builder struct {
	w      *bitpack.Writer
	width  uint
	count  int
}

// NewBuilder creates a builder that packs entries into `width` bits each.
func NewBuilder(width uint) *Builder {
	if width == 0 || width > 64 {
		panic(errors.Safe(errors.Newf("logarray: invalid width %d", width)))
	}
	return &Builder{w: bitpack.NewWriter(), width: width}
}

// Count returns the number of entries pushed so far.
func (b *Builder) Count() int { return b.count }

// Push appends v, which must fit in the builder's width.
func (b *Builder) Push(v uint64) {
	if b.width < 64 && v>>b.width != 0 {
		panic(errors.Safe(errors.Newf("logarray: value %d does not fit in %d bits", v, b.width)))
	}
	b.w.WriteBits(v, b.width)
	b.count++
}

// PushAll appends every value from vs in order.
func (b *Builder) PushAll(vs []uint64) {
	for _, v := range vs {
		b.Push(v)
	}
}

// Finalize returns the serialized LogArray: packed entries plus the
// 8-byte footer.
func (b *Builder) Finalize() []byte {
	packed := b.w.Bytes()
	padded := make([]byte, bitpack.PaddedByteLen(uint64(b.count)*uint64(b.width)))
	copy(padded, packed)

	footer := make([]byte, footerLen)
	binary.BigEndian.PutUint32(footer[0:4], uint32(b.count))
	footer[4] = byte(b.width)

	return append(padded, footer...)
}

// MonotonicBuilder wraps Builder and additionally rejects entries that do
// not strictly exceed the previous one.
type MonotonicBuilder struct {
	*Builder
	last    uint64
	hasLast bool
}

// NewMonotonicBuilder creates a strictly-ascending LogArray builder.
func NewMonotonicBuilder(width uint) *MonotonicBuilder {
	return &MonotonicBuilder{Builder: NewBuilder(width)}
}

// Push appends v, panicking with ErrOutOfOrder if v does not strictly
// exceed the previously pushed value.
func (b *MonotonicBuilder) Push(v uint64) {
	if b.hasLast && v <= b.last {
		panic(errors.Safe(ErrOutOfOrder))
	}
	b.Builder.Push(v)
	b.last = v
	b.hasLast = true
}

// MonotonicLogArray is a LogArray known to hold strictly ascending values,
// supporting binary-search lookup.
type MonotonicLogArray struct {
	LogArray
}

// NewMonotonic wraps an already-ascending LogArray.
func NewMonotonic(a LogArray) MonotonicLogArray {
	return MonotonicLogArray{LogArray: a}
}

// FromUint64Slice builds a LogArray sized to the widest value in vs (at
// least 1 bit wide), suitable for small in-memory index structures such as
// BitIndex's block/superblock summary tables.
func FromUint64Slice(vs []uint64) LogArray {
	width := uint(1)
	var max uint64
	for _, v := range vs {
		if v > max {
			max = v
		}
	}
	if max > 0 {
		width = bitLen(max)
	}
	b := NewBuilder(width)
	b.PushAll(vs)
	a, err := Parse(b.Finalize())
	if err != nil {
		panic(err)
	}
	return a
}

func bitLen(v uint64) uint {
	n := uint(0)
	for v > 0 {
		n++
		v >>= 1
	}
	return n
}

// IndexOf returns the position of v via binary search, or -1 if absent.
func (m MonotonicLogArray) IndexOf(v uint64) int {
	lo, hi := 0, m.Len()-1
	for lo <= hi {
		mid := (lo + hi) / 2
		e := m.Entry(mid)
		switch {
		case e == v:
			return mid
		case e < v:
			lo = mid + 1
		default:
			hi = mid - 1
		}
	}
	return -1
}
