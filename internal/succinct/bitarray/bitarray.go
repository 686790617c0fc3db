// Package bitarray implements a packed bit array and, on top of it, a
// BitIndex: a two-level rank1/select1 structure. Every 64-bit word
// contributes a block popcount; every SuperblockFactor words contribute a
// cumulative superblock popcount. Both summary tables are themselves
// LogArrays, so the whole index is three byte blobs: the bits, the block
// counts, and the superblock sums -- matching the on-disk layout spec'd
// for adjacency lists and wavelet trees (`*_bits`, `*_blocks`, `*_sblocks`).
package bitarray

import (
	"encoding/binary"
	"math/bits"

	"github.com/cockroachdb/errors"

	"github.com/succinctgraph/triplestore/internal/succinct/bitpack"
	"github.com/succinctgraph/triplestore/internal/succinct/logarray"
)

// DefaultSuperblockFactor is the reference K: the number of 64-bit blocks
// summarized by each superblock entry.
const DefaultSuperblockFactor = 52

// ErrInvalidFormat is returned for malformed bit array byte lengths.
var ErrInvalidFormat = errors.New("bitarray: invalid format")

const footerLen = 8

// BitArray is a read-only, zero-copy packed sequence of bits with a
// trailing 8-byte big-endian bit count footer.
type BitArray struct {
	data []byte // word-padded packed bits, footer stripped
	n    uint64
}

// Parse interprets buf (packed bits plus the 8-byte footer) as a BitArray.
func Parse(buf []byte) (BitArray, error) {
	if len(buf) < footerLen {
		return BitArray{}, errors.Wrapf(ErrInvalidFormat, "buffer of %d bytes too small for footer", len(buf))
	}
	n := binary.BigEndian.Uint64(buf[len(buf)-footerLen:])
	data := buf[:len(buf)-footerLen]
	needed := bitpack.PaddedByteLen(n)
	if len(data) < needed {
		return BitArray{}, errors.Wrapf(ErrInvalidFormat, "expected at least %d bytes for %d bits, got %d", needed, n, len(data))
	}
	return BitArray{data: data, n: n}, nil
}

// Len returns the number of bits.
func (b BitArray) Len() uint64 { return b.n }

// Get returns the i'th bit (0-indexed).
func (b BitArray) Get(i uint64) bool {
	if i >= b.n {
		panic(errors.Safe(errors.Newf("bitarray: index %d out of range [0,%d)", i, b.n)))
	}
	return bitpack.ReadBits(b.data, i, 1) == 1
}

func (b BitArray) word(w int) uint64 {
	off := w * 8
	if off+8 > len(b.data) {
		return 0
	}
	return binary.BigEndian.Uint64(b.data[off : off+8])
}

func (b BitArray) numWords() int {
	return bitpack.PaddedByteLen(b.n) / 8
}

// Builder appends bits sequentially and produces the serialized BitArray
// (bits + footer) on Finalize.
type Builder struct {
	w *bitpack.Writer
	n uint64
}

// NewBuilder creates an empty bit array builder.
func NewBuilder() *Builder {
	return &Builder{w: bitpack.NewWriter()}
}

// Count returns the number of bits pushed so far.
func (b *Builder) Count() uint64 { return b.n }

// Push appends a single bit.
func (b *Builder) Push(bit bool) {
	var v uint64
	if bit {
		v = 1
	}
	b.w.WriteBits(v, 1)
	b.n++
}

// PushAll appends every bit from bits in order.
func (b *Builder) PushAll(bitsSeq []bool) {
	for _, bit := range bitsSeq {
		b.Push(bit)
	}
}

// Finalize returns the serialized BitArray: word-padded bits plus the
// 8-byte bit-count footer.
func (b *Builder) Finalize() []byte {
	padded := make([]byte, bitpack.PaddedByteLen(b.n))
	copy(padded, b.w.Bytes())

	footer := make([]byte, footerLen)
	binary.BigEndian.PutUint64(footer, b.n)

	return append(padded, footer...)
}

// popcountPrefixMSB counts the set bits among the top `count` bits of word
// (bit 0 is the word's MSB).
func popcountPrefixMSB(word uint64, count int) int {
	if count <= 0 {
		return 0
	}
	if count >= 64 {
		return bits.OnesCount64(word)
	}
	return bits.OnesCount64(word >> uint(64-count))
}

// selectInWordMSB returns the 0-indexed (from the MSB) position of the
// rank'th set bit (1-indexed) within word, or -1 if word has fewer than
// rank set bits.
func selectInWordMSB(word uint64, rank int) int {
	for pos := 0; pos < 64; pos++ {
		bit := (word >> uint(63-pos)) & 1
		if bit == 1 {
			rank--
			if rank == 0 {
				return pos
			}
		}
	}
	return -1
}

// Index decorates a BitArray with two-level rank1/select1 summary tables.
type Index struct {
	bits             BitArray
	blockCounts      logarray.LogArray // one entry per 64-bit word: its popcount
	superblockBefore logarray.LogArray // one entry per superblock: popcount strictly before it
	k                int
}

// BuildIndex computes the block/superblock summary tables for bits, using
// k consecutive words per superblock (DefaultSuperblockFactor if k <= 0).
func BuildIndex(bits BitArray, k int) Index {
	if k <= 0 {
		k = DefaultSuperblockFactor
	}
	numWords := bits.numWords()
	blockCounts := make([]uint64, numWords)
	for w := 0; w < numWords; w++ {
		blockCounts[w] = uint64(bits.CountOnesInWord(w))
	}

	numSuperblocks := 0
	if numWords > 0 {
		numSuperblocks = (numWords + k - 1) / k
	}
	sbBefore := make([]uint64, numSuperblocks)
	var running uint64
	for sb := 0; sb < numSuperblocks; sb++ {
		sbBefore[sb] = running
		start := sb * k
		end := start + k
		if end > numWords {
			end = numWords
		}
		for w := start; w < end; w++ {
			running += blockCounts[w]
		}
	}

	return Index{
		bits:             bits,
		blockCounts:      logarray.FromUint64Slice(blockCounts),
		superblockBefore: logarray.FromUint64Slice(sbBefore),
		k:                k,
	}
}

// CountOnesInWord exposes the popcount of word w (0-indexed), used by
// BuildIndex; padding bits beyond Len() are always zero so they never
// affect the count.
func (b BitArray) CountOnesInWord(w int) int {
	return bits.OnesCount64(b.word(w))
}

// FromParts reconstructs an Index from already-parsed summary tables, as
// loaded from disk.
func FromParts(bits BitArray, blockCounts, superblockBefore logarray.LogArray, k int) Index {
	if k <= 0 {
		k = DefaultSuperblockFactor
	}
	return Index{bits: bits, blockCounts: blockCounts, superblockBefore: superblockBefore, k: k}
}

// Len returns the number of bits in the underlying array.
func (ix Index) Len() uint64 { return ix.bits.Len() }

// Bits returns the underlying BitArray.
func (ix Index) Bits() BitArray { return ix.bits }

// BlockCounts returns the per-word popcount table (for serialization).
func (ix Index) BlockCounts() logarray.LogArray { return ix.blockCounts }

// SuperblockSums returns the per-superblock cumulative-before table (for
// serialization).
func (ix Index) SuperblockSums() logarray.LogArray { return ix.superblockBefore }

// Get returns the i'th bit.
func (ix Index) Get(i uint64) bool { return ix.bits.Get(i) }

// Rank1 returns the number of set bits among positions [0, i] (inclusive,
// 0-indexed).
func (ix Index) Rank1(i uint64) uint64 {
	word := int(i / 64)
	bitInWord := int(i % 64)

	sb := word / ix.k
	var total uint64
	if ix.superblockBefore.Len() > 0 {
		total = ix.superblockBefore.Entry(sb)
	}
	for w := sb * ix.k; w < word; w++ {
		total += ix.blockCounts.Entry(w)
	}
	total += uint64(popcountPrefixMSB(ix.bits.word(word), bitInWord+1))
	return total
}

// Select1 returns the 0-indexed position of the k'th set bit (k is
// 1-indexed). ok is false if there are fewer than k set bits.
func (ix Index) Select1(k uint64) (pos uint64, ok bool) {
	if k == 0 {
		return 0, false
	}
	numSB := ix.superblockBefore.Len()
	if numSB == 0 {
		return 0, false
	}

	// Binary search for the largest superblock index whose cumulative
	// count strictly before it is < k.
	lo, hi := 0, numSB-1
	sb := 0
	for lo <= hi {
		mid := (lo + hi) / 2
		if ix.superblockBefore.Entry(mid) < k {
			sb = mid
			lo = mid + 1
		} else {
			hi = mid - 1
		}
	}

	remaining := k - ix.superblockBefore.Entry(sb)
	numWords := ix.blockCounts.Len()
	w := sb * ix.k
	for w < numWords {
		count := ix.blockCounts.Entry(w)
		if remaining <= count {
			break
		}
		remaining -= count
		w++
	}
	if w >= numWords {
		return 0, false
	}

	bitPos := selectInWordMSB(ix.bits.word(w), int(remaining))
	if bitPos < 0 {
		return 0, false
	}
	return uint64(w)*64 + uint64(bitPos), true
}
