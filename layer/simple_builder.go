package layer

import (
	"sort"

	"golang.org/x/sync/errgroup"
)

// StringTriple is a triple expressed in strings rather than ids: the
// object is tagged as naming either a node (shared with the subject id
// space) or a value (a separate, untyped literal).
type StringTriple struct {
	Subject, Predicate, Object string
	ObjectIsValue              bool
}

// NewNodeTriple builds a StringTriple whose object is a node.
func NewNodeTriple(subject, predicate, object string) StringTriple {
	return StringTriple{Subject: subject, Predicate: predicate, Object: object}
}

// NewValueTriple builds a StringTriple whose object is a value.
func NewValueTriple(subject, predicate, object string) StringTriple {
	return StringTriple{Subject: subject, Predicate: predicate, Object: object, ObjectIsValue: true}
}

// IDTriple is a triple already expressed in global ids.
type IDTriple struct {
	S, P, O uint64
}

// SimpleBuilder accepts triples in any order, as strings or already-
// resolved ids, and does the required sorting and id assignment on
// Commit. It exists so that callers never have to pre-sort dictionary
// entries or triples themselves, unlike the low-level Builder.
type SimpleBuilder struct {
	name   string
	parent *Layer
	opts   *Options

	additions   []StringTriple
	idAdditions []IDTriple
	removals    []StringTriple
	idRemovals  []IDTriple
}

// NewSimpleBuilder starts a builder for the layer named name, atop parent
// (nil for a base layer), using default Options.
func NewSimpleBuilder(name string, parent *Layer) *SimpleBuilder {
	return NewSimpleBuilderWithOptions(name, parent, nil)
}

// NewSimpleBuilderWithOptions is NewSimpleBuilder with explicit tunables.
func NewSimpleBuilderWithOptions(name string, parent *Layer, opts *Options) *SimpleBuilder {
	return &SimpleBuilder{name: name, parent: parent, opts: opts}
}

// AddStringTriple queues an addition.
func (b *SimpleBuilder) AddStringTriple(t StringTriple) { b.additions = append(b.additions, t) }

// AddIDTriple queues an addition already expressed in global ids.
func (b *SimpleBuilder) AddIDTriple(t IDTriple) { b.idAdditions = append(b.idAdditions, t) }

// RemoveStringTriple queues a removal. A base layer builder (no parent)
// has nothing to remove from, so the call is silently ignored.
func (b *SimpleBuilder) RemoveStringTriple(t StringTriple) {
	if b.parent != nil {
		b.removals = append(b.removals, t)
	}
}

// RemoveIDTriple queues a removal already expressed in global ids.
func (b *SimpleBuilder) RemoveIDTriple(t IDTriple) {
	if b.parent != nil {
		b.idRemovals = append(b.idRemovals, t)
	}
}

type pendingAdd struct {
	t                      StringTriple
	sID, pID, oID          uint64
	sKnown, pKnown, oKnown bool
}

func sortedKeys(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func sortDedupIDTriples(ts []IDTriple) []IDTriple {
	sort.Slice(ts, func(i, j int) bool {
		a, b := ts[i], ts[j]
		if a.S != b.S {
			return a.S < b.S
		}
		if a.P != b.P {
			return a.P < b.P
		}
		return a.O < b.O
	})
	out := ts[:0]
	for i, t := range ts {
		if i == 0 || t != out[len(out)-1] {
			out = append(out, t)
		}
	}
	return out
}

// Commit resolves every queued triple against the parent chain, assigns
// ids for any previously-unseen node, predicate or value strings, and
// builds the finished Layer. Strings are first resolved against the
// parent chain sequentially; collecting the still-unresolved strings of
// the three dictionary kinds then runs concurrently, one goroutine per
// kind with no shared mutable state.
func (b *SimpleBuilder) Commit() (*Layer, error) {
	pending := make([]pendingAdd, len(b.additions))
	for i, t := range b.additions {
		pa := pendingAdd{t: t}
		if b.parent != nil {
			if id, ok := b.parent.SubjectID(t.Subject); ok {
				pa.sID, pa.sKnown = id, true
			}
			if id, ok := b.parent.PredicateID(t.Predicate); ok {
				pa.pID, pa.pKnown = id, true
			}
			if t.ObjectIsValue {
				if id, ok := b.parent.ValueID(t.Object); ok {
					pa.oID, pa.oKnown = id, true
				}
			} else if id, ok := b.parent.NodeID(t.Object); ok {
				pa.oID, pa.oKnown = id, true
			}
		}
		pending[i] = pa
	}

	var nodesSet, predicatesSet, valuesSet map[string]bool
	var g errgroup.Group
	g.Go(func() error {
		set := make(map[string]bool)
		for _, pa := range pending {
			if !pa.sKnown {
				set[pa.t.Subject] = true
			}
			if !pa.oKnown && !pa.t.ObjectIsValue {
				set[pa.t.Object] = true
			}
		}
		nodesSet = set
		return nil
	})
	g.Go(func() error {
		set := make(map[string]bool)
		for _, pa := range pending {
			if !pa.pKnown {
				set[pa.t.Predicate] = true
			}
		}
		predicatesSet = set
		return nil
	})
	g.Go(func() error {
		set := make(map[string]bool)
		for _, pa := range pending {
			if !pa.oKnown && pa.t.ObjectIsValue {
				set[pa.t.Object] = true
			}
		}
		valuesSet = set
		return nil
	})
	_ = g.Wait()

	newNodes := sortedKeys(nodesSet)
	newPredicates := sortedKeys(predicatesSet)
	newValues := sortedKeys(valuesSet)

	log := b.opts.logger()
	builder := NewBuilderWithOptions(b.name, b.parent, b.opts)

	nodeIDs := make(map[string]uint64, len(newNodes))
	for _, s := range newNodes {
		nodeIDs[s] = builder.AddNode(s)
	}
	predIDs := make(map[string]uint64, len(newPredicates))
	for _, p := range newPredicates {
		predIDs[p] = builder.AddPredicate(p)
	}
	valueIDs := make(map[string]uint64, len(newValues))
	for _, v := range newValues {
		valueIDs[v] = builder.AddValue(v)
	}

	nodeCount, _, _ := builder.IntoPhase2()

	var parentNodeOffset, parentPredOffset uint64
	if b.parent != nil {
		parentNodeOffset = b.parent.NodeAndValueCount()
		parentPredOffset = b.parent.PredicateCount()
	}

	globalNode := func(s string) uint64 { return nodeIDs[s] + parentNodeOffset }
	globalPred := func(p string) uint64 { return predIDs[p] + parentPredOffset }
	globalValue := func(v string) uint64 { return valueIDs[v] + parentNodeOffset + nodeCount }

	idTriples := make([]IDTriple, 0, len(pending)+len(b.idAdditions))
	for _, pa := range pending {
		s, p, o := pa.sID, pa.pID, pa.oID
		if !pa.sKnown {
			s = globalNode(pa.t.Subject)
		}
		if !pa.pKnown {
			p = globalPred(pa.t.Predicate)
		}
		if !pa.oKnown {
			if pa.t.ObjectIsValue {
				o = globalValue(pa.t.Object)
			} else {
				o = globalNode(pa.t.Object)
			}
		}
		idTriples = append(idTriples, IDTriple{S: s, P: p, O: o})
	}
	idTriples = append(idTriples, b.idAdditions...)
	idTriples = sortDedupIDTriples(idTriples)

	for _, t := range idTriples {
		builder.AddTriple(t.S, t.P, t.O)
	}

	if b.parent != nil {
		var removeIDTriples []IDTriple
		for _, t := range b.removals {
			s, ok1 := b.parent.SubjectID(t.Subject)
			p, ok2 := b.parent.PredicateID(t.Predicate)
			var o uint64
			var ok3 bool
			if t.ObjectIsValue {
				o, ok3 = b.parent.ValueID(t.Object)
			} else {
				o, ok3 = b.parent.NodeID(t.Object)
			}
			if !ok1 || !ok2 || !ok3 {
				// A removal naming a string never introduced by an ancestor
				// has nothing to remove: silently dropped, not an error.
				log.Infof("layer %q: dropping removal of unknown triple (%s, %s, %s)", b.name, t.Subject, t.Predicate, t.Object)
				continue
			}
			removeIDTriples = append(removeIDTriples, IDTriple{S: s, P: p, O: o})
		}
		removeIDTriples = append(removeIDTriples, b.idRemovals...)
		removeIDTriples = sortDedupIDTriples(removeIDTriples)

		for _, t := range removeIDTriples {
			builder.RemoveTriple(t.S, t.P, t.O)
		}
	}

	return builder.Finalize()
}
