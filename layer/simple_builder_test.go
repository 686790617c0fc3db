package layer

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// buildAnimalBaseLayer mirrors the farm-animal fixture used throughout
// the reference builder's own tests: three value triples establishing
// cow, pig and duck as nodes and moo/oink/quack as values.
func buildAnimalBaseLayer(t *testing.T) *Layer {
	t.Helper()
	b := NewSimpleBuilder("base", nil)
	b.AddStringTriple(NewValueTriple("cow", "says", "moo"))
	b.AddStringTriple(NewValueTriple("pig", "says", "oink"))
	b.AddStringTriple(NewValueTriple("duck", "says", "quack"))
	l, err := b.Commit()
	require.NoError(t, err)
	return l
}

func triplesExists(l *Layer, s, p, o string, isValue bool) bool {
	sid, ok := l.SubjectID(s)
	if !ok {
		return false
	}
	pid, ok := l.PredicateID(p)
	if !ok {
		return false
	}
	var oid uint64
	if isValue {
		oid, ok = l.ValueID(o)
	} else {
		oid, ok = l.NodeID(o)
	}
	if !ok {
		return false
	}
	return l.TripleExists(sid, pid, oid)
}

func TestSimpleBaseLayerConstruction(t *testing.T) {
	l := buildAnimalBaseLayer(t)

	require.True(t, triplesExists(l, "cow", "says", "moo", true))
	require.True(t, triplesExists(l, "pig", "says", "oink", true))
	require.True(t, triplesExists(l, "duck", "says", "quack", true))
}

func TestSimpleChildLayerConstruction(t *testing.T) {
	base := buildAnimalBaseLayer(t)

	b := NewSimpleBuilder("child", base)
	b.AddStringTriple(NewValueTriple("horse", "says", "neigh"))
	b.AddStringTriple(NewNodeTriple("horse", "likes", "cow"))
	b.RemoveStringTriple(NewValueTriple("duck", "says", "quack"))
	child, err := b.Commit()
	require.NoError(t, err)

	require.True(t, triplesExists(child, "horse", "says", "neigh", true))
	require.True(t, triplesExists(child, "horse", "likes", "cow", false))
	require.True(t, triplesExists(child, "cow", "says", "moo", true))
	require.True(t, triplesExists(child, "pig", "says", "oink", true))
	require.False(t, triplesExists(child, "duck", "says", "quack", true))

	horseID, ok := child.NodeID("horse")
	require.True(t, ok)
	require.Greater(t, horseID, base.NodeAndValueCount())
}

func TestFourDeepLayerStack(t *testing.T) {
	base := buildAnimalBaseLayer(t)

	b2 := NewSimpleBuilder("layer2", base)
	b2.AddStringTriple(NewValueTriple("horse", "says", "neigh"))
	b2.AddStringTriple(NewNodeTriple("horse", "likes", "cow"))
	b2.RemoveStringTriple(NewValueTriple("duck", "says", "quack"))
	layer2, err := b2.Commit()
	require.NoError(t, err)

	b3 := NewSimpleBuilder("layer3", layer2)
	b3.RemoveStringTriple(NewNodeTriple("horse", "likes", "cow"))
	b3.AddStringTriple(NewNodeTriple("horse", "likes", "pig"))
	b3.AddStringTriple(NewValueTriple("duck", "says", "quack"))
	layer3, err := b3.Commit()
	require.NoError(t, err)

	b4 := NewSimpleBuilder("layer4", layer3)
	b4.RemoveStringTriple(NewValueTriple("pig", "says", "oink"))
	b4.AddStringTriple(NewNodeTriple("cow", "likes", "horse"))
	layer4, err := b4.Commit()
	require.NoError(t, err)

	require.True(t, triplesExists(layer4, "cow", "says", "moo", true))
	require.True(t, triplesExists(layer4, "duck", "says", "quack", true))
	require.True(t, triplesExists(layer4, "horse", "says", "neigh", true))
	require.True(t, triplesExists(layer4, "horse", "likes", "pig", false))
	require.True(t, triplesExists(layer4, "cow", "likes", "horse", false))

	require.False(t, triplesExists(layer4, "pig", "says", "oink", true))
	require.False(t, triplesExists(layer4, "horse", "likes", "cow", false))
}
