package layer

import (
	"github.com/cockroachdb/errors"

	"github.com/succinctgraph/triplestore/internal/succinct/adjacency"
	"github.com/succinctgraph/triplestore/internal/succinct/pfc"
	"github.com/succinctgraph/triplestore/internal/succinct/wavelet"
	"github.com/succinctgraph/triplestore/internal/triplefile"
)

// ErrInvalidState is raised when a builder method is called out of
// sequence: a Phase1 call after the dictionaries were sealed, a Phase2
// call before they were, or any call after Finalize.
var ErrInvalidState = errors.New("layer: builder method called in the wrong phase")

type phase int

const (
	phase1 phase = iota
	phase2
	sealed
)

// Builder is the low-level, id-oriented layer file builder: Phase1
// accepts new dictionary entries in strictly ascending order per kind,
// into_phase2 seals the dictionaries, Phase2 accepts (s,p,o) id triples
// in strictly ascending order, and Finalize seals the forward files and
// derives the inverse index and predicate wavelet tree. Calling a method
// from the wrong phase panics with ErrInvalidState: this mirrors the
// ordering contract enforced by the dictionary and adjacency builders
// themselves.
type Builder struct {
	name   string
	parent *Layer
	opts   *Options

	state phase

	nodes      *pfc.Builder
	predicates *pfc.Builder
	values     *pfc.Builder

	pos *triplefile.Builder
	neg *triplefile.Builder // nil for a base layer

	posCount, negCount uint64
}

// NewBuilder starts a Phase1 builder for the layer named name, built atop
// parent (nil for a base layer), using default Options.
func NewBuilder(name string, parent *Layer) *Builder {
	return NewBuilderWithOptions(name, parent, nil)
}

// NewBuilderWithOptions is NewBuilder with explicit tunables.
func NewBuilderWithOptions(name string, parent *Layer, opts *Options) *Builder {
	return &Builder{
		name:       name,
		parent:     parent,
		opts:       opts,
		nodes:      pfc.NewBuilder(),
		predicates: pfc.NewBuilder(),
		values:     pfc.NewBuilder(),
	}
}

func (b *Builder) requirePhase(p phase) {
	if b.state != p {
		panic(errors.Safe(ErrInvalidState))
	}
}

// AddNode adds a new node string, strictly greater than any node
// previously added at this layer. Returns the id local to this layer
// (add the layer's node offset to get the global subject/object id).
func (b *Builder) AddNode(s string) uint64 {
	b.requirePhase(phase1)
	return b.nodes.Add(s)
}

// AddPredicate adds a new predicate string, strictly ascending.
func (b *Builder) AddPredicate(p string) uint64 {
	b.requirePhase(phase1)
	return b.predicates.Add(p)
}

// AddValue adds a new value string, strictly ascending.
func (b *Builder) AddValue(v string) uint64 {
	b.requirePhase(phase1)
	return b.values.Add(v)
}

// IntoPhase2 seals the dictionaries and returns the (nodeCount,
// predicateCount, valueCount) assigned at this layer, moving the builder
// into Phase2.
func (b *Builder) IntoPhase2() (nodeCount, predicateCount, valueCount uint64) {
	b.requirePhase(phase1)

	parentNodeOffset, parentPredOffset := uint64(0), uint64(0)
	parentObjectTotal := uint64(0)
	if b.parent != nil {
		parentNodeOffset = b.parent.NodeAndValueCount()
		parentPredOffset = b.parent.PredicateCount()
		parentObjectTotal = parentNodeOffset
	}

	nodeCount = uint64(b.nodes.Count())
	predicateCount = uint64(b.predicates.Count())
	valueCount = uint64(b.values.Count())

	objectCount := parentObjectTotal + nodeCount + valueCount
	predTotal := parentPredOffset + predicateCount

	b.pos = triplefile.NewBuilder(predTotal, objectCount)
	if b.parent != nil {
		b.neg = triplefile.NewBuilder(predTotal, objectCount)
	}

	b.state = phase2
	return nodeCount, predicateCount, valueCount
}

// AddTriple adds an addition (s,p,o) global id triple, strictly ascending
// across all AddTriple calls.
func (b *Builder) AddTriple(s, p, o uint64) {
	b.requirePhase(phase2)
	b.pos.AddTriple(s, p, o)
	b.posCount++
}

// RemoveTriple adds a removal (s,p,o) global id triple, strictly
// ascending across all RemoveTriple calls. Only valid for a child layer;
// panics with ErrInvalidState on a base layer builder.
func (b *Builder) RemoveTriple(s, p, o uint64) {
	b.requirePhase(phase2)
	if b.neg == nil {
		panic(errors.Safe(errors.Wrap(ErrInvalidState, "layer: a base layer builder cannot record removals")))
	}
	b.neg.AddTriple(s, p, o)
	b.negCount++
}

// indexK is the BitIndex superblock factor used when a Builder was
// constructed without an explicit Options.SuperblockFactor.
const indexK = 52

// Finalize seals the forward files, derives the inverse o→(sp) index and
// predicate wavelet tree for each side present, and assembles the
// resulting Layer. Any further call to the builder panics.
func (b *Builder) Finalize() (*Layer, error) {
	b.requirePhase(phase2)
	b.state = sealed

	factor := b.opts.superblockFactor()
	log := b.opts.logger()

	nodeBlocks, nodeOffsets := b.nodes.Finalize()
	predBlocks, predOffsets := b.predicates.Finalize()
	valueBlocks, valueOffsets := b.values.Finalize()

	nodeDict, err := pfc.Parse(nodeBlocks, nodeOffsets)
	if err != nil {
		return nil, errors.Wrap(err, "layer: parsing node dictionary")
	}
	predDict, err := pfc.Parse(predBlocks, predOffsets)
	if err != nil {
		return nil, errors.Wrap(err, "layer: parsing predicate dictionary")
	}
	valueDict, err := pfc.Parse(valueBlocks, valueOffsets)
	if err != nil {
		return nil, errors.Wrap(err, "layer: parsing value dictionary")
	}

	posSP, posSPO, posOPS, posWavelet, err := finalizeSide(b.pos, factor)
	if err != nil {
		return nil, err
	}

	cfg := Config{
		Name:           b.name,
		Parent:         b.parent,
		NodeDict:       nodeDict,
		PredDict:       predDict,
		ValueDict:      valueDict,
		PosSP:          posSP,
		PosSPO:         posSPO,
		PosOPS:         posOPS,
		PosWavelet:     posWavelet,
		PosTripleCount: b.posCount,
	}

	if b.neg != nil {
		negSP, negSPO, negOPS, negWavelet, err := finalizeSide(b.neg, factor)
		if err != nil {
			return nil, err
		}
		cfg.HasNeg = true
		cfg.NegSP, cfg.NegSPO, cfg.NegOPS, cfg.NegWavelet = negSP, negSPO, negOPS, negWavelet
		cfg.NegTripleCount = b.negCount
	}

	l, err := New(cfg)
	if err != nil {
		return nil, err
	}
	log.Infof("layer %q sealed: %d additions, %d removals", l.Name(), b.posCount, b.negCount)
	return l, nil
}

func finalizeSide(tb *triplefile.Builder, factor int) (sp, spo, ops adjacency.List, tree wavelet.Tree, err error) {
	fwd := tb.Finalize()

	sp, err = triplefile.ParseList(fwd.SPNums, fwd.SPBits, factor)
	if err != nil {
		return sp, spo, ops, tree, errors.Wrap(err, "layer: parsing s→p adjacency list")
	}
	spo, err = triplefile.ParseList(fwd.SPONums, fwd.SPOBits, factor)
	if err != nil {
		return sp, spo, ops, tree, errors.Wrap(err, "layer: parsing sp→o adjacency list")
	}

	indexes, _ := triplefile.BuildIndexes(sp, spo, factor)
	return sp, spo, indexes.ObjectPS, indexes.Wavelet, nil
}
