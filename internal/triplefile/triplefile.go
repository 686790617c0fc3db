// Package triplefile implements the forward (s→p, sp→o) triple writer and
// the derivation of the inverse o→(sp) index and the predicate wavelet
// tree from the finished forward structures. It is grounded on the
// TripleFileBuilder / BaseTripleStream pipeline: strings have already
// been resolved to ids by the caller: this package only ever sees and
// sorts id triples.
package triplefile

import (
	"sort"

	"github.com/cockroachdb/errors"
	"golang.org/x/sync/errgroup"

	"github.com/succinctgraph/triplestore/internal/succinct/adjacency"
	"github.com/succinctgraph/triplestore/internal/succinct/bitarray"
	"github.com/succinctgraph/triplestore/internal/succinct/logarray"
	"github.com/succinctgraph/triplestore/internal/succinct/wavelet"
)

// ErrUnordered is raised when a triple is not strictly greater than the
// previously added one.
var ErrUnordered = errors.New("triplefile: triples must be pushed in strictly ascending (s,p,o) order")

// ErrUnexpectedEOF is raised while joining the forward files back into
// (s,p,o) triples: the sp→o stream advanced past an sp value that the
// s→p stream has no corresponding entry for.
var ErrUnexpectedEOF = errors.New("triplefile: s→p stream ended before sp→o stream")

func bitWidth(v uint64) uint {
	if v == 0 {
		return 1
	}
	n := uint(0)
	for v > 0 {
		n++
		v >>= 1
	}
	return n
}

// Builder consumes (subject, predicate, object) id triples in strictly
// ascending order and maintains two adjacency builders: s→p (subject to
// predicate, deduplicated per distinct (s,p) pair) and sp→o (sp-pair id
// to object, where the sp-pair id is the pair's 1-based physical position
// in s→p, hole entries for subjects without pairs included).
type Builder struct {
	sp  *adjacency.Builder
	spo *adjacency.Builder

	spCounter           uint64
	hasAny              bool
	lastS, lastP, lastO uint64
}

// NewBuilder creates a forward triple-file builder. predicateCount and
// objectCount size the packed width of the sp and spo adjacency lists
// respectively; objectCount is the sum of the node and value counts
// visible to this layer.
func NewBuilder(predicateCount, objectCount uint64) *Builder {
	return &Builder{
		sp:  adjacency.NewBuilder(bitWidth(predicateCount)),
		spo: adjacency.NewBuilder(bitWidth(objectCount)),
	}
}

// AddTriple pushes (s, p, o), which must be strictly greater than the
// previously added triple in (s,p,o) lexicographic order.
func (b *Builder) AddTriple(s, p, o uint64) {
	if b.hasAny {
		less := s < b.lastS ||
			(s == b.lastS && p < b.lastP) ||
			(s == b.lastS && p == b.lastP && o <= b.lastO)
		if less {
			panic(errors.Safe(ErrUnordered))
		}
	}

	if !b.hasAny || s != b.lastS || p != b.lastP {
		b.sp.Push(s, p)
		b.spCounter = uint64(b.sp.Count())
	}
	b.spo.Push(b.spCounter, o)

	b.lastS, b.lastP, b.lastO = s, p, o
	b.hasAny = true
}

// AddTriples pushes every triple from ts in order.
func (b *Builder) AddTriples(ts []Triple) {
	for _, t := range ts {
		b.AddTriple(t.S, t.P, t.O)
	}
}

// Count returns the number of triples pushed so far.
func (b *Builder) Count() int { return b.spo.Count() }

// Forward holds the serialized forward adjacency blobs.
type Forward struct {
	SPNums, SPBits   []byte
	SPONums, SPOBits []byte
}

// Finalize serializes both forward adjacency lists.
func (b *Builder) Finalize() Forward {
	spNums, spBits := b.sp.Finalize()
	spoNums, spoBits := b.spo.Finalize()
	return Forward{SPNums: spNums, SPBits: spBits, SPONums: spoNums, SPOBits: spoBits}
}

// Triple is a resolved (subject, predicate, object) id triple.
type Triple struct {
	S, P, O uint64
}

// ParseList rebuilds an adjacency.List from its serialized nums and bits
// blobs, using k as the BitIndex superblock factor.
func ParseList(numsBlob, bitsBlob []byte, k int) (adjacency.List, error) {
	nums, err := logarray.Parse(numsBlob)
	if err != nil {
		return adjacency.List{}, errors.Wrap(err, "triplefile: parsing nums")
	}
	bits, err := bitarray.Parse(bitsBlob)
	if err != nil {
		return adjacency.List{}, errors.Wrap(err, "triplefile: parsing bits")
	}
	return adjacency.FromParts(nums, bitarray.BuildIndex(bits, k)), nil
}

// TripleStream joins an s→p adjacency list and an sp→o adjacency list
// back into a stream of (s,p,o) triples, in the original storage order.
// It mirrors the peekable two-stream join: sp→o drives the iteration,
// and s→p is advanced exactly when the sp pair-id moves forward.
type TripleStream struct {
	spIter  *adjacency.Iterator
	spoIter *adjacency.Iterator

	lastS, lastP, lastSP uint64
}

// NewTripleStream returns a stream that joins spList and spoList.
func NewTripleStream(spList, spoList adjacency.List) *TripleStream {
	return &TripleStream{spIter: spList.Iter(), spoIter: spoList.Iter()}
}

// Next returns the next (s,p,o) triple and true, or a zero Triple and
// false once the sp→o side is exhausted. Panics with ErrUnexpectedEOF if
// the s→p side runs out first.
func (ts *TripleStream) Next() (Triple, bool) {
	pair, ok := ts.spoIter.Next()
	if !ok {
		return Triple{}, false
	}
	sp, o := pair.Left, pair.Right

	if sp > ts.lastSP {
		spPair, ok := ts.spIter.Next()
		if !ok {
			panic(errors.Safe(ErrUnexpectedEOF))
		}
		ts.lastS, ts.lastP = spPair.Left, spPair.Right
		ts.lastSP = sp
	}

	return Triple{S: ts.lastS, P: ts.lastP, O: o}, true
}

// All drains the stream into a slice, in storage order.
func (ts *TripleStream) All() []Triple {
	var out []Triple
	for {
		t, ok := ts.Next()
		if !ok {
			return out
		}
		out = append(out, t)
	}
}

// Indexes holds the derived inverse o→(sp) adjacency list and the
// predicate wavelet tree built over the s→p nums column.
type Indexes struct {
	ObjectPS adjacency.List
	Wavelet  wavelet.Tree
}

// IndexBlobs holds the serialized derived structures.
type IndexBlobs struct {
	OPSNums, OPSBits   []byte
	WaveletBits        []byte
	WaveletWidth       uint
	WaveletSymbolCount uint64
}

// BuildIndexes derives the inverse o→(sp) index and the predicate wavelet
// tree from the finished forward adjacency lists. The sp pair-id used as
// o_ps's right-hand value doubles as a 1-based physical position into
// spList, so resolving (s,p) for an object lookup is spList.PairAtPos(sp-1).
func BuildIndexes(spList, spoList adjacency.List, k int) (Indexes, IndexBlobs) {
	type opsPair struct{ o, sp uint64 }

	var (
		opsList            adjacency.List
		opsNums            []byte
		opsBits            []byte
		waveletTree        wavelet.Tree
		waveletBits        []byte
		waveletWidth       uint
		waveletSymbolCount uint64
	)

	// The inverse o→(sp) index and the predicate wavelet tree are each
	// derived solely from the forward files, independently of one
	// another, so the two derivations run concurrently.
	var g errgroup.Group
	g.Go(func() error {
		var projections []opsPair
		var maxSP uint64

		for pos := uint64(0); pos < spoList.RightCount(); pos++ {
			left, right := spoList.PairAtPos(pos)
			if right == 0 {
				continue
			}
			projections = append(projections, opsPair{o: right, sp: left})
			if left > maxSP {
				maxSP = left
			}
		}

		sort.Slice(projections, func(i, j int) bool {
			if projections[i].o != projections[j].o {
				return projections[i].o < projections[j].o
			}
			return projections[i].sp < projections[j].sp
		})

		opsBuilder := adjacency.NewBuilder(bitWidth(maxSP))
		for _, pr := range projections {
			opsBuilder.Push(pr.o, pr.sp)
		}
		nums, bits := opsBuilder.Finalize()

		list, err := ParseList(nums, bits, k)
		if err != nil {
			return err
		}
		opsList, opsNums, opsBits = list, nums, bits
		return nil
	})
	g.Go(func() error {
		width := spList.Nums().Width()
		wb := wavelet.NewBuilder(width)
		for pos := uint64(0); pos < spList.RightCount(); pos++ {
			wb.Push(spList.Nums().Entry(int(pos)))
		}
		tree, bits := wb.Finalize()
		waveletTree, waveletBits, waveletWidth, waveletSymbolCount = tree, bits, width, uint64(wb.Count())
		return nil
	})
	if err := g.Wait(); err != nil {
		panic(errors.Wrap(err, "triplefile: deriving inverse index"))
	}

	return Indexes{ObjectPS: opsList, Wavelet: waveletTree}, IndexBlobs{
		OPSNums:            opsNums,
		OPSBits:            opsBits,
		WaveletBits:        waveletBits,
		WaveletWidth:       waveletWidth,
		WaveletSymbolCount: waveletSymbolCount,
	}
}
