// Package wavelet implements a wavelet tree, a succinct rank/select
// structure over a sequence of fixed-width symbols (here, predicate ids
// drawn from a layer's s→p adjacency list). The tree has one bit-array
// level per bit of symbol width; level d records, for every symbol,
// whether its d'th bit (MSB-first) is zero or one, with the symbols of
// that level grouped by their top d bits (the tree node they belong to)
// and kept in sequence order within each node.
// Each level is itself rank/select-indexed, and all levels are
// concatenated into a single bit array plus a single BitIndex, matching
// the on-disk layout of an adjacency list's bit component.
package wavelet

import (
	"sort"

	"github.com/cockroachdb/errors"

	"github.com/succinctgraph/triplestore/internal/succinct/bitarray"
)

// ErrInvalidFormat is returned when the concatenated bit length does not
// divide evenly by the declared symbol count and width.
var ErrInvalidFormat = errors.New("wavelet: invalid format")

// Tree is a read-only wavelet tree over n symbols of the given bit
// width.
type Tree struct {
	n     uint64
	width uint
	index bitarray.Index
}

// FromParts assembles a Tree from an already-built concatenated BitIndex.
func FromParts(n uint64, width uint, index bitarray.Index) (Tree, error) {
	if index.Len() != n*uint64(width) {
		return Tree{}, errors.Wrapf(ErrInvalidFormat, "expected %d concatenated bits for %d symbols of width %d, got %d", n*uint64(width), n, width, index.Len())
	}
	return Tree{n: n, width: width, index: index}, nil
}

// Len returns the number of symbols in the sequence.
func (t Tree) Len() uint64 { return t.n }

// Width returns the bit width of each symbol.
func (t Tree) Width() uint { return t.width }

// Index returns the underlying concatenated BitIndex, for serialization.
func (t Tree) Index() bitarray.Index { return t.index }

func (t Tree) bitOf(symbol uint64, level uint) uint64 {
	return (symbol >> (t.width - 1 - level)) & 1
}

// ones returns the number of set bits among global concatenated positions
// [lo, hi).
func (t Tree) ones(lo, hi uint64) uint64 {
	if hi <= lo {
		return 0
	}
	var before uint64
	if lo > 0 {
		before = t.index.Rank1(lo - 1)
	}
	return t.index.Rank1(hi-1) - before
}

func (t Tree) zeros(lo, hi uint64) uint64 {
	return (hi - lo) - t.ones(lo, hi)
}

// onesBefore returns the number of set bits among global positions [0, pos).
func (t Tree) onesBefore(pos uint64) uint64 {
	if pos == 0 {
		return 0
	}
	return t.index.Rank1(pos - 1)
}

// selectZeroGlobal returns the 0-indexed global position of the rank'th
// (1-indexed) zero bit in the whole concatenated array.
func (t Tree) selectZeroGlobal(rank uint64) (uint64, bool) {
	total := t.index.Len()
	if total == 0 || rank == 0 {
		return 0, false
	}
	lo, hi := uint64(0), total-1
	var best uint64
	found := false
	for lo <= hi {
		mid := lo + (hi-lo)/2
		zerosUpTo := (mid + 1) - t.index.Rank1(mid)
		if zerosUpTo >= rank {
			best = mid
			found = true
			if mid == 0 {
				break
			}
			hi = mid - 1
		} else {
			lo = mid + 1
		}
	}
	if !found {
		return 0, false
	}
	return best, true
}

// descend computes, level by level, the [lo, hi) range of global positions
// occupied by the bucket matching symbol's top (level+1) bits, returning
// the per-level bounds lo[0..width] and hi[0..width].
func (t Tree) descend(symbol uint64) (los, his []uint64) {
	los = make([]uint64, t.width+1)
	his = make([]uint64, t.width+1)
	los[0], his[0] = 0, t.n
	for d := uint(0); d < t.width; d++ {
		offset := uint64(d) * t.n
		lo, hi := offset+los[d], offset+his[d]
		z := t.zeros(lo, hi)
		if t.bitOf(symbol, d) == 0 {
			los[d+1] = los[d]
			his[d+1] = los[d] + z
		} else {
			los[d+1] = los[d] + z
			his[d+1] = his[d]
		}
	}
	return los, his
}

// Rank returns the number of occurrences of symbol among the first i
// symbols (0 <= i <= Len()).
func (t Tree) Rank(symbol uint64, i uint64) uint64 {
	if t.width < 64 && symbol>>t.width != 0 {
		return 0
	}
	lo, hi, p := uint64(0), t.n, i
	for d := uint(0); d < t.width; d++ {
		offset := uint64(d) * t.n
		zBeforeP := t.zeros(offset+lo, offset+p)
		zTotal := t.zeros(offset+lo, offset+hi)
		if t.bitOf(symbol, d) == 0 {
			p = lo + zBeforeP
			hi = lo + zTotal
		} else {
			onesBeforeP := (p - lo) - zBeforeP
			lo = lo + zTotal
			p = lo + onesBeforeP
		}
	}
	return p - lo
}

// Select returns the 0-indexed position of the rank'th (1-indexed)
// occurrence of symbol, or false if symbol occurs fewer than rank times.
func (t Tree) Select(symbol uint64, rank uint64) (uint64, bool) {
	if rank == 0 {
		return 0, false
	}
	if t.width < 64 && symbol>>t.width != 0 {
		return 0, false
	}
	los, his := t.descend(symbol)
	bucketLo, bucketHi := los[t.width], his[t.width]
	if rank > bucketHi-bucketLo {
		return 0, false
	}

	pos := bucketLo + (rank - 1)
	for d := int(t.width) - 1; d >= 0; d-- {
		offset := uint64(d) * t.n
		lo, hi := offset+los[d], offset+his[d]
		if t.bitOf(symbol, uint(d)) == 0 {
			localRank := pos - los[d] + 1
			zerosBeforeLo := lo - t.onesBefore(lo)
			global, ok := t.selectZeroGlobal(zerosBeforeLo + localRank)
			if !ok {
				return 0, false
			}
			pos = global - offset
		} else {
			z := t.zeros(lo, hi)
			localRank := pos - (los[d] + z) + 1
			onesBeforeLo := t.onesBefore(lo)
			global := globalSelectOne(t, onesBeforeLo+localRank)
			pos = global - offset
		}
	}
	return pos, true
}

func globalSelectOne(t Tree, rank uint64) uint64 {
	pos, ok := t.index.Select1(rank)
	if !ok {
		panic(errors.Safe(errors.Newf("wavelet: corrupt tree, missing global one at rank %d", rank)))
	}
	return pos
}

// Get returns the original symbol stored at sequence position i.
func (t Tree) Get(i uint64) uint64 {
	var symbol uint64
	lo, hi := uint64(0), t.n
	pos := i
	for d := uint(0); d < t.width; d++ {
		offset := uint64(d) * t.n
		bit := t.index.Get(offset + pos)
		z := t.zeros(offset+lo, offset+hi)
		zBeforePos := t.zeros(offset+lo, offset+pos)
		symbol <<= 1
		if !bit {
			pos = lo + zBeforePos
			hi = lo + z
		} else {
			symbol |= 1
			onesBeforePos := (pos - lo) - zBeforePos
			pos = lo + z + onesBeforePos
			lo = lo + z
		}
	}
	return symbol
}

// Builder accumulates symbols in sequence order, then materializes the
// full wavelet tree on Finalize. Unlike the other succinct builders,
// the tree's level-by-level construction is inherently batch: every
// level's order depends on every symbol seen, so nothing can be flushed
// incrementally.
type Builder struct {
	width   uint
	symbols []uint64
}

// NewBuilder creates an empty wavelet tree builder for symbols of the
// given bit width.
func NewBuilder(width uint) *Builder {
	return &Builder{width: width}
}

// Push appends symbol to the sequence.
func (b *Builder) Push(symbol uint64) {
	b.symbols = append(b.symbols, symbol)
}

// Count returns the number of symbols pushed so far.
func (b *Builder) Count() int { return len(b.symbols) }

// Finalize builds the concatenated per-level bit array and returns both
// the finished Tree and the serialized (bitsBlob) ready for BuildIndex.
func (b *Builder) Finalize() (Tree, []byte) {
	n := uint64(len(b.symbols))
	width := b.width

	order := make([]int, n)
	for i := range order {
		order[i] = i
	}

	bits := bitarray.NewBuilder()
	levelBits := make([][]bool, width)
	for d := uint(0); d < width; d++ {
		levelBits[d] = make([]bool, n)
		for k, idx := range order {
			bit := (b.symbols[idx] >> (width - 1 - d)) & 1
			levelBits[d][k] = bit == 1
		}

		next := append([]int(nil), order...)
		shift := width - 1 - d
		sort.SliceStable(next, func(i, j int) bool {
			return b.symbols[next[i]]>>shift < b.symbols[next[j]]>>shift
		})
		order = next
	}

	for d := uint(0); d < width; d++ {
		bits.PushAll(levelBits[d])
	}
	bitsBlob := bits.Finalize()

	parsed, err := bitarray.Parse(bitsBlob)
	if err != nil {
		panic(err)
	}
	index := bitarray.BuildIndex(parsed, bitarray.DefaultSuperblockFactor)
	tree, err := FromParts(n, width, index)
	if err != nil {
		panic(err)
	}
	return tree, bitsBlob
}
