// Package layer implements the read side of a content-addressed triple
// layer: a base layer holds a full set of (subject, predicate, object) id
// triples plus the dictionaries needed to resolve them to strings; a
// child layer holds only the triples added and removed relative to its
// parent, and composites its view by folding over the parent chain. Both
// are represented by the same Layer type, distinguished by whether a
// negative (removal) side is present.
package layer

import (
	"sort"

	"github.com/cockroachdb/errors"

	"github.com/succinctgraph/triplestore/internal/succinct/adjacency"
	"github.com/succinctgraph/triplestore/internal/succinct/pfc"
	"github.com/succinctgraph/triplestore/internal/succinct/wavelet"
	"github.com/succinctgraph/triplestore/internal/triplefile"
)

// Triple is a resolved (subject, predicate, object) id triple.
type Triple = triplefile.Triple

// side bundles the three forward/inverse structures one polarity (added
// or removed) needs: s→p, sp→o, o→(sp), and the predicate wavelet tree
// built over s→p's right-hand column.
type side struct {
	sp, spo, ops adjacency.List
	wavelet      wavelet.Tree
	tripleCount  uint64
}

func (s side) empty() bool { return s.tripleCount == 0 && s.sp.LeftCount() == 0 }

// exists reports whether (subj, pred, obj) is present on this side,
// using the adjacency lists' succinct rank/select operations rather than
// materializing anything.
func (s side) exists(subj, pred, obj uint64) bool {
	if subj < 1 || subj > s.sp.LeftCount() {
		return false
	}
	preds := s.sp.Get(subj)
	idx, ok := binarySearchLogArray(preds, pred)
	if !ok {
		return false
	}
	spID := s.sp.OffsetFor(subj) + uint64(idx) + 1
	objs := s.spo.Get(spID)
	_, ok = binarySearchLogArray(objs, obj)
	return ok
}

// predicatesForSubject returns the (deduplicated, ascending) predicates
// this side records for subj.
func (s side) predicatesForSubject(subj uint64) []uint64 {
	if subj < 1 || subj > s.sp.LeftCount() {
		return nil
	}
	slice := s.sp.Get(subj)
	out := make([]uint64, 0, slice.Len())
	for i := 0; i < slice.Len(); i++ {
		if v := slice.Entry(i); v != 0 {
			out = append(out, v)
		}
	}
	return out
}

// triplesForSubject returns every (subj, p, o) triple this side records.
func (s side) triplesForSubject(subj uint64) []Triple {
	if subj < 1 || subj > s.sp.LeftCount() {
		return nil
	}
	preds := s.sp.Get(subj)
	base := s.sp.OffsetFor(subj)
	var out []Triple
	for i := 0; i < preds.Len(); i++ {
		p := preds.Entry(i)
		if p == 0 {
			continue
		}
		spID := base + uint64(i) + 1
		objs := s.spo.Get(spID)
		for j := 0; j < objs.Len(); j++ {
			if o := objs.Entry(j); o != 0 {
				out = append(out, Triple{S: subj, P: p, O: o})
			}
		}
	}
	return out
}

// all materializes every (s,p,o) triple on this side, in storage order.
func (s side) all() []Triple {
	if s.sp.LeftCount() == 0 {
		return nil
	}
	return triplefile.NewTripleStream(s.sp, s.spo).All()
}

// triplesForObject resolves every (s,p,obj) triple via the o→(sp)
// inverse index, translating each sp pair-id back to (s,p) through the
// s→p list's physical position.
func (s side) triplesForObject(obj uint64) []Triple {
	if s.ops.LeftCount() == 0 || obj < 1 || obj > s.ops.LeftCount() {
		return nil
	}
	sps := s.ops.Get(obj)
	out := make([]Triple, 0, sps.Len())
	for i := 0; i < sps.Len(); i++ {
		sp := sps.Entry(i)
		if sp == 0 {
			continue
		}
		subj, pred := s.sp.PairAtPos(sp - 1)
		out = append(out, Triple{S: subj, P: pred, O: obj})
	}
	return out
}

// triplesForPredicate resolves every (s,pred,o) triple via the predicate
// wavelet tree: every occurrence of pred in the s→p storage order is
// located with Select, its subject read off s→p directly, and its
// objects read off sp→o.
func (s side) triplesForPredicate(pred uint64) []Triple {
	if s.sp.LeftCount() == 0 {
		return nil
	}
	count := s.wavelet.Rank(pred, s.wavelet.Len())
	var out []Triple
	for k := uint64(1); k <= count; k++ {
		pos, ok := s.wavelet.Select(pred, k)
		if !ok {
			break
		}
		subj := s.sp.LeftAtPos(pos)
		spID := pos + 1
		objs := s.spo.Get(spID)
		for j := 0; j < objs.Len(); j++ {
			if o := objs.Entry(j); o != 0 {
				out = append(out, Triple{S: subj, P: pred, O: o})
			}
		}
	}
	return out
}

// subjectsWithAdditions returns every distinct subject this side records
// an addition for, ascending.
func (s side) subjectsWithAdditions() []uint64 {
	if s.sp.LeftCount() == 0 {
		return nil
	}
	var out []uint64
	it := s.sp.Iter()
	var last uint64
	first := true
	for {
		pair, ok := it.Next()
		if !ok {
			break
		}
		if first || pair.Left != last {
			out = append(out, pair.Left)
			last = pair.Left
			first = false
		}
	}
	return out
}

func binarySearchLogArrayEntry(n int, entry func(int) uint64, target uint64) (int, bool) {
	lo, hi := 0, n-1
	for lo <= hi {
		mid := (lo + hi) / 2
		v := entry(mid)
		switch {
		case v == target:
			return mid, true
		case v < target:
			lo = mid + 1
		default:
			hi = mid - 1
		}
	}
	return 0, false
}

func binarySearchLogArray(s interface {
	Len() int
	Entry(int) uint64
}, target uint64) (int, bool) {
	return binarySearchLogArrayEntry(s.Len(), s.Entry, target)
}

// Layer is a single node in a layer stack: either a base layer (Parent ==
// nil) or a child layer (Parent set, with an additional removal side).
type Layer struct {
	name   string
	parent *Layer

	nodeDict, predicateDict, valueDict pfc.Dict

	nodeOffset, predicateOffset                    uint64
	ownNodeCount, ownValueCount, ownPredicateCount uint64

	pos side

	hasNeg bool
	neg    side
}

// Config bundles everything needed to assemble a Layer from already-built
// dictionaries and adjacency structures, as produced by Builder.Finalize
// or by parsing persisted blobs back via Load.
type Config struct {
	Name       string
	Parent     *Layer
	NodeDict   pfc.Dict
	PredDict   pfc.Dict
	ValueDict  pfc.Dict
	PosSP      adjacency.List
	PosSPO     adjacency.List
	PosOPS     adjacency.List
	PosWavelet wavelet.Tree

	HasNeg     bool
	NegSP      adjacency.List
	NegSPO     adjacency.List
	NegOPS     adjacency.List
	NegWavelet wavelet.Tree

	PosTripleCount, NegTripleCount uint64
}

// New assembles a Layer from cfg. Passing a nil Parent makes it a base
// layer: HasNeg must then be false, matching the invariant that a base
// layer has no removal side.
func New(cfg Config) (*Layer, error) {
	if cfg.Parent == nil && cfg.HasNeg {
		return nil, errors.New("layer: a base layer (no parent) cannot have a removal side")
	}

	l := &Layer{
		name:              cfg.Name,
		parent:            cfg.Parent,
		nodeDict:          cfg.NodeDict,
		predicateDict:     cfg.PredDict,
		valueDict:         cfg.ValueDict,
		ownNodeCount:      uint64(cfg.NodeDict.Len()),
		ownValueCount:     uint64(cfg.ValueDict.Len()),
		ownPredicateCount: uint64(cfg.PredDict.Len()),
		pos:               side{sp: cfg.PosSP, spo: cfg.PosSPO, ops: cfg.PosOPS, wavelet: cfg.PosWavelet, tripleCount: cfg.PosTripleCount},
		hasNeg:            cfg.HasNeg,
	}
	if cfg.Parent != nil {
		l.nodeOffset = cfg.Parent.NodeAndValueCount()
		l.predicateOffset = cfg.Parent.PredicateCount()
	}
	if cfg.HasNeg {
		l.neg = side{sp: cfg.NegSP, spo: cfg.NegSPO, ops: cfg.NegOPS, wavelet: cfg.NegWavelet, tripleCount: cfg.NegTripleCount}
	}
	return l, nil
}

// Name returns the layer's identifier (conventionally a 40-hex content
// address assigned at commit time).
func (l *Layer) Name() string { return l.name }

// Parent returns the parent layer, or nil for a base layer.
func (l *Layer) Parent() *Layer { return l.parent }

// NodeAndValueCount returns the total number of distinct nodes and values
// introduced by this layer and every ancestor: the next child layer's
// first new node id is one greater than this.
func (l *Layer) NodeAndValueCount() uint64 {
	return l.nodeOffset + l.ownNodeCount + l.ownValueCount
}

// PredicateCount returns the total number of distinct predicates
// introduced by this layer and every ancestor.
func (l *Layer) PredicateCount() uint64 {
	return l.predicateOffset + l.ownPredicateCount
}

// NodeCount, ValueCount and OwnPredicateCount report counts introduced at
// this layer specifically (not including ancestors).
func (l *Layer) NodeCount() uint64         { return l.ownNodeCount }
func (l *Layer) ValueCount() uint64        { return l.ownValueCount }
func (l *Layer) OwnPredicateCount() uint64 { return l.ownPredicateCount }

// TripleAdditionCount and TripleRemovalCount report the number of triples
// added, respectively removed, at this layer specifically.
func (l *Layer) TripleAdditionCount() uint64 { return l.pos.tripleCount }
func (l *Layer) TripleRemovalCount() uint64  { return l.neg.tripleCount }

// Counts bundles every count a caller is likely to want in one call,
// rather than making them walk the individual accessors one at a time.
type Counts struct {
	NodeCount           uint64
	PredicateCount      uint64
	ValueCount          uint64
	TripleAdditionCount uint64
	TripleRemovalCount  uint64
	TripleCount         uint64
}

// Counts reports this layer's own node/predicate/value and
// addition/removal counts alongside the composite visible triple count.
func (l *Layer) Counts() Counts {
	return Counts{
		NodeCount:           l.ownNodeCount,
		PredicateCount:      l.ownPredicateCount,
		ValueCount:          l.ownValueCount,
		TripleAdditionCount: l.pos.tripleCount,
		TripleRemovalCount:  l.neg.tripleCount,
		TripleCount:         l.TripleCount(),
	}
}

// SubjectID resolves a node string to its global subject id, searching
// this layer's own node dictionary first and falling back to the parent
// chain -- the string is only stored wherever it was first introduced.
func (l *Layer) SubjectID(s string) (uint64, bool) {
	if id, ok := l.nodeDict.Id(s); ok {
		return id + l.nodeOffset, true
	}
	if l.parent != nil {
		return l.parent.SubjectID(s)
	}
	return 0, false
}

// PredicateID resolves a predicate string to its global id.
func (l *Layer) PredicateID(p string) (uint64, bool) {
	if id, ok := l.predicateDict.Id(p); ok {
		return id + l.predicateOffset, true
	}
	if l.parent != nil {
		return l.parent.PredicateID(p)
	}
	return 0, false
}

// NodeID resolves a node string appearing as an object to its global id.
// It shares the subject id space, so it is identical to SubjectID.
func (l *Layer) NodeID(s string) (uint64, bool) { return l.SubjectID(s) }

// ValueID resolves a value string appearing as an object to its global
// id. Value ids are allocated after node ids within every layer's own
// range, so the offset also accounts for that layer's node count.
func (l *Layer) ValueID(v string) (uint64, bool) {
	if id, ok := l.valueDict.Id(v); ok {
		return id + l.nodeOffset + l.ownNodeCount, true
	}
	if l.parent != nil {
		return l.parent.ValueID(v)
	}
	return 0, false
}

// IDSubject resolves a global subject id back to its node string.
func (l *Layer) IDSubject(id uint64) (string, bool) {
	if id <= l.nodeOffset {
		if l.parent == nil {
			return "", false
		}
		return l.parent.IDSubject(id)
	}
	local := id - l.nodeOffset
	if local > l.ownNodeCount {
		return "", false
	}
	return l.nodeDict.Get(local)
}

// IDPredicate resolves a global predicate id back to its string.
func (l *Layer) IDPredicate(id uint64) (string, bool) {
	if id <= l.predicateOffset {
		if l.parent == nil {
			return "", false
		}
		return l.parent.IDPredicate(id)
	}
	local := id - l.predicateOffset
	if local > l.ownPredicateCount {
		return "", false
	}
	return l.predicateDict.Get(local)
}

// IDObject resolves a global object id back to its string and whether it
// names a value (true) or a node (false).
func (l *Layer) IDObject(id uint64) (s string, isValue bool, ok bool) {
	if id <= l.nodeOffset {
		if l.parent == nil {
			return "", false, false
		}
		return l.parent.IDObject(id)
	}
	local := id - l.nodeOffset
	if local <= l.ownNodeCount {
		str, ok := l.nodeDict.Get(local)
		return str, false, ok
	}
	localValue := local - l.ownNodeCount
	if localValue > l.ownValueCount {
		return "", false, false
	}
	str, ok := l.valueDict.Get(localValue)
	return str, true, ok
}

// TripleExists reports whether (s,p,o) is visible in this layer's
// composite view: present in some ancestor's additions and not removed
// by this layer or any intermediate layer.
func (l *Layer) TripleExists(s, p, o uint64) bool {
	if l.pos.exists(s, p, o) {
		return true
	}
	if l.hasNeg && l.neg.exists(s, p, o) {
		return false
	}
	if l.parent != nil {
		return l.parent.TripleExists(s, p, o)
	}
	return false
}

// tripleSetForSubject recursively folds the composite triple set for a
// single subject, bounded by that subject's own footprint at each layer
// rather than the whole graph.
func (l *Layer) tripleSetForSubject(s uint64) map[Triple]bool {
	var set map[Triple]bool
	if l.parent != nil {
		set = l.parent.tripleSetForSubject(s)
	} else {
		set = make(map[Triple]bool)
	}
	if l.hasNeg {
		for _, t := range l.neg.triplesForSubject(s) {
			delete(set, t)
		}
	}
	for _, t := range l.pos.triplesForSubject(s) {
		set[t] = true
	}
	return set
}

// LookupSubject returns the sorted, deduplicated predicates that subject
// s has at least one visible triple for.
func (l *Layer) LookupSubject(s uint64) []uint64 {
	set := l.tripleSetForSubject(s)
	seen := make(map[uint64]bool, len(set))
	out := make([]uint64, 0, len(set))
	for t := range set {
		if !seen[t.P] {
			seen[t.P] = true
			out = append(out, t.P)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// LookupSubjectPredicate returns the sorted, deduplicated objects visible
// for (s,p).
func (l *Layer) LookupSubjectPredicate(s, p uint64) []uint64 {
	set := l.tripleSetForSubject(s)
	var out []uint64
	for t := range set {
		if t.P == p {
			out = append(out, t.O)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Triples materializes the full composite (s,p,o) triple set, sorted in
// (s,p,o) order regardless of which layer of the stack each triple
// originates from.
func (l *Layer) Triples() []Triple {
	set := l.tripleSet()
	out := make([]Triple, 0, len(set))
	for t := range set {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.S != b.S {
			return a.S < b.S
		}
		if a.P != b.P {
			return a.P < b.P
		}
		return a.O < b.O
	})
	return out
}

func (l *Layer) tripleSet() map[Triple]bool {
	var set map[Triple]bool
	if l.parent != nil {
		set = l.parent.tripleSet()
	} else {
		set = make(map[Triple]bool)
	}
	if l.hasNeg {
		for _, t := range l.neg.all() {
			delete(set, t)
		}
	}
	for _, t := range l.pos.all() {
		set[t] = true
	}
	return set
}

// TripleCount returns the size of the composite visible triple set.
func (l *Layer) TripleCount() uint64 { return uint64(len(l.tripleSet())) }

// candidateSubjects returns every subject that has ever been added at
// this layer or an ancestor -- removals never introduce a subject, so
// this is a superset of Subjects() cheap to compute without folding the
// whole graph.
func (l *Layer) candidateSubjects() map[uint64]bool {
	var set map[uint64]bool
	if l.parent != nil {
		set = l.parent.candidateSubjects()
	} else {
		set = make(map[uint64]bool)
	}
	for _, s := range l.pos.subjectsWithAdditions() {
		set[s] = true
	}
	return set
}

// Subjects returns every distinct subject with at least one visible
// triple, ascending.
func (l *Layer) Subjects() []uint64 {
	cands := l.candidateSubjects()
	out := make([]uint64, 0, len(cands))
	for s := range cands {
		if len(l.tripleSetForSubject(s)) > 0 {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// tripleSetForPredicate recursively folds the composite triple set for a
// single predicate, using each layer's wavelet tree to locate it.
func (l *Layer) tripleSetForPredicate(p uint64) map[Triple]bool {
	var set map[Triple]bool
	if l.parent != nil {
		set = l.parent.tripleSetForPredicate(p)
	} else {
		set = make(map[Triple]bool)
	}
	if l.hasNeg {
		for _, t := range l.neg.triplesForPredicate(p) {
			delete(set, t)
		}
	}
	for _, t := range l.pos.triplesForPredicate(p) {
		set[t] = true
	}
	return set
}

// LookupPredicate returns every (s,o) pair visible for predicate p,
// sorted by (s,o).
func (l *Layer) LookupPredicate(p uint64) []Triple {
	set := l.tripleSetForPredicate(p)
	out := make([]Triple, 0, len(set))
	for t := range set {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].S != out[j].S {
			return out[i].S < out[j].S
		}
		return out[i].O < out[j].O
	})
	return out
}

// tripleSetForObject recursively folds the composite triple set for a
// single object, using each layer's o→(sp) inverse index.
func (l *Layer) tripleSetForObject(o uint64) map[Triple]bool {
	var set map[Triple]bool
	if l.parent != nil {
		set = l.parent.tripleSetForObject(o)
	} else {
		set = make(map[Triple]bool)
	}
	if l.hasNeg {
		for _, t := range l.neg.triplesForObject(o) {
			delete(set, t)
		}
	}
	for _, t := range l.pos.triplesForObject(o) {
		set[t] = true
	}
	return set
}

// LookupObject returns every (s,p) pair visible for object o, sorted by
// (s,p).
func (l *Layer) LookupObject(o uint64) []Triple {
	set := l.tripleSetForObject(o)
	out := make([]Triple, 0, len(set))
	for t := range set {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].S != out[j].S {
			return out[i].S < out[j].S
		}
		return out[i].P < out[j].P
	})
	return out
}

// ForwardAdditions returns this layer's own additions, in storage order,
// exactly as the forward files produced them -- no parent folding.
func (l *Layer) ForwardAdditions() []Triple { return l.pos.all() }

// ForwardRemovals returns this layer's own removals, in storage order.
func (l *Layer) ForwardRemovals() []Triple { return l.neg.all() }
