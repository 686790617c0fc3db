// Package adjacency implements a succinct adjacency list: a mapping from a
// contiguous range of left-hand ids (1..N) to one or more right-hand
// values each. It is stored as a LogArray of right-hand values alongside a
// BitIndex of equal length whose bits mark, for each entry, whether it is
// the last entry for its left-hand id (1) or whether more follow (0).
package adjacency

import (
	"github.com/cockroachdb/errors"

	"github.com/succinctgraph/triplestore/internal/succinct/bitarray"
	"github.com/succinctgraph/triplestore/internal/succinct/logarray"
)

// List is a read-only succinct adjacency list.
type List struct {
	nums logarray.LogArray
	bits bitarray.Index
}

// FromParts assembles a List from an already-built nums LogArray and bits
// BitIndex. Both must have the same length.
func FromParts(nums logarray.LogArray, bits bitarray.Index) List {
	if nums.Len() != int(bits.Len()) {
		panic(errors.Safe(errors.Newf("adjacency: nums length %d does not match bits length %d", nums.Len(), bits.Len())))
	}
	return List{nums: nums, bits: bits}
}

// Nums returns the underlying right-hand-side values.
func (l List) Nums() logarray.LogArray { return l.nums }

// Bits returns the underlying segment-boundary index.
func (l List) Bits() bitarray.Index { return l.bits }

// LeftCount returns the number of distinct left-hand ids stored.
func (l List) LeftCount() uint64 {
	if l.bits.Len() == 0 {
		return 0
	}
	return l.bits.Rank1(l.bits.Len() - 1)
}

// RightCount returns the total number of (left,right) pairs, including
// holes encoded as zero-valued entries.
func (l List) RightCount() uint64 {
	return l.bits.Len()
}

// OffsetFor returns the physical position of the first entry belonging to
// the given 1-based left-hand id.
func (l List) OffsetFor(index uint64) uint64 {
	return l.offsetFor(index)
}

// offsetFor returns the position of the first entry belonging to the
// given 1-based left-hand id.
func (l List) offsetFor(index uint64) uint64 {
	if index == 1 {
		return 0
	}
	pos, ok := l.bits.Select1(index - 1)
	if !ok {
		panic(errors.Safe(errors.Newf("adjacency: left id %d has no predecessor segment", index)))
	}
	return pos + 1
}

// PairAtPos returns the (left, right) pair stored at the given physical
// position.
func (l List) PairAtPos(pos uint64) (left, right uint64) {
	if pos == 0 {
		left = 1
	} else {
		left = l.bits.Rank1(pos-1) + 1
	}
	right = l.nums.Entry(int(pos))
	return left, right
}

// LeftAtPos returns just the left-hand id at the given physical position.
func (l List) LeftAtPos(pos uint64) uint64 {
	if pos == 0 {
		return 1
	}
	return l.bits.Rank1(pos-1) + 1
}

// Get returns the LogArray slice of every right-hand value associated
// with the given 1-based left-hand id.
func (l List) Get(index uint64) logarray.LogArray {
	if index < 1 {
		panic(errors.Safe(errors.New("adjacency: minimum index is 1")))
	}
	if index > l.LeftCount() {
		panic(errors.Safe(errors.Newf("adjacency: index %d too large for adjacency list of length %d", index, l.LeftCount())))
	}

	start := l.offsetFor(index)
	end, ok := l.bits.Select1(index)
	if !ok {
		panic(errors.Safe(errors.Newf("adjacency: index %d missing closing segment bit", index)))
	}
	return l.nums.Slice(int(start), int(end-start+1))
}

// Pair is a single (left, right) entry.
type Pair struct {
	Left, Right uint64
}

// Iterator walks every non-hole (left, right) pair in physical order.
type Iterator struct {
	list List
	pos  uint64
	left uint64
}

// Iter returns an iterator over the list's pairs, in ascending physical
// position, skipping holes (zero-valued entries).
func (l List) Iter() *Iterator {
	return &Iterator{list: l, left: 1}
}

// Next returns the next pair and true, or a zero Pair and false at the end.
func (it *Iterator) Next() (Pair, bool) {
	for {
		if it.pos >= it.list.bits.Len() {
			return Pair{}, false
		}

		bit := it.list.bits.Get(it.pos)
		num := it.list.nums.Entry(int(it.pos))
		result := Pair{Left: it.left, Right: num}
		if bit {
			it.left++
		}
		it.pos++

		if num == 0 {
			continue
		}
		return result, true
	}
}

// ErrUnordered is raised by Builder.Push when pairs do not arrive in
// strictly ascending (left, right) order.
var ErrUnordered = errors.New("adjacency: tried to push an unordered adjacency pair")

// Builder constructs a List one (left, right) pair at a time; pairs must
// arrive in non-decreasing left order, strictly ascending right order
// within a left. The bit array deliberately lags one entry behind the
// LogArray, since whether an entry is the last for its left is only known
// once a greater left arrives.
type Builder struct {
	bits      *bitarray.Builder
	nums      *logarray.Builder
	lastLeft  uint64
	lastRight uint64
}

// NewBuilder creates an adjacency list builder whose right-hand values are
// packed into `width` bits each.
func NewBuilder(width uint) *Builder {
	return &Builder{
		bits: bitarray.NewBuilder(),
		nums: logarray.NewBuilder(width),
	}
}

// Push appends the pair (left, right). left must be non-decreasing; within
// the same left, right must strictly increase.
func (b *Builder) Push(left, right uint64) {
	if left < b.lastLeft || (left == b.lastLeft && right <= b.lastRight) {
		panic(errors.Safe(ErrUnordered))
	}

	skip := left - b.lastLeft
	switch {
	case b.lastLeft == 0 && skip == 1:
		// First entry ever: no prior segment to close.
	case skip == 0:
		// Same left as before: the previous entry was not the last one.
		b.bits.Push(false)
	default:
		bitskip := skip
		if b.lastLeft == 0 {
			bitskip = skip - 1
		}
		for i := uint64(0); i < bitskip; i++ {
			b.bits.Push(true)
		}
		for i := uint64(0); i < skip-1; i++ {
			b.nums.Push(0)
		}
	}

	b.nums.Push(right)
	b.lastLeft = left
	b.lastRight = right
}

// PushAll pushes every pair from ps in order.
func (b *Builder) PushAll(ps []Pair) {
	for _, p := range ps {
		b.Push(p.Left, p.Right)
	}
}

// Count returns the number of (left, right) pairs pushed so far.
func (b *Builder) Count() int { return b.nums.Count() }

// Finalize closes the final segment (if any entries were pushed) and
// returns the serialized (numsBlob, bitsBlob) pair. Callers build the
// BitIndex from bitsBlob via bitarray.Parse and bitarray.BuildIndex.
func (b *Builder) Finalize() (numsBlob, bitsBlob []byte) {
	if b.nums.Count() != 0 {
		b.bits.Push(true)
	}
	return b.nums.Finalize(), b.bits.Finalize()
}
