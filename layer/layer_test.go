package layer

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// buildBaseLayer builds the base-layer seed fixture directly through the
// low-level id builder: nodes ["aaaaa","baa","bbbbb","ccccc","mooo"],
// predicates ["abcde","fghij","klmno","lll"], values
// ["chicken","cow","dog","pig","zebra"], and the triple set
// (1,1,1),(2,1,1),(2,1,3),(2,3,6),(3,2,5),(3,3,6),(4,3,6).
func buildBaseLayer(t *testing.T) *Layer {
	t.Helper()
	b := NewBuilder("base", nil)
	for _, n := range []string{"aaaaa", "baa", "bbbbb", "ccccc", "mooo"} {
		b.AddNode(n)
	}
	for _, p := range []string{"abcde", "fghij", "klmno", "lll"} {
		b.AddPredicate(p)
	}
	for _, v := range []string{"chicken", "cow", "dog", "pig", "zebra"} {
		b.AddValue(v)
	}
	b.IntoPhase2()

	for _, tr := range []Triple{
		{S: 1, P: 1, O: 1},
		{S: 2, P: 1, O: 1},
		{S: 2, P: 1, O: 3},
		{S: 2, P: 3, O: 6},
		{S: 3, P: 2, O: 5},
		{S: 3, P: 3, O: 6},
		{S: 4, P: 3, O: 6},
	} {
		b.AddTriple(tr.S, tr.P, tr.O)
	}

	l, err := b.Finalize()
	require.NoError(t, err)
	return l
}

func TestBaseLayerReadAPI(t *testing.T) {
	l := buildBaseLayer(t)

	require.True(t, l.TripleExists(2, 3, 6))
	require.False(t, l.TripleExists(2, 2, 0))

	id, ok := l.SubjectID("bbbbb")
	require.True(t, ok)
	require.Equal(t, uint64(3), id)

	pid, ok := l.PredicateID("fghij")
	require.True(t, ok)
	require.Equal(t, uint64(2), pid)

	str, isValue, ok := l.IDObject(6)
	require.True(t, ok)
	require.True(t, isValue)
	require.Equal(t, "chicken", str)

	require.Equal(t, []uint64{1, 2, 3, 4}, l.Subjects())
	require.Equal(t, []uint64{1, 3}, l.LookupSubject(2))
	require.Equal(t, uint64(7), l.TripleCount())
}

func TestBaseLayerForwardStreamOrder(t *testing.T) {
	l := buildBaseLayer(t)
	want := []Triple{
		{S: 1, P: 1, O: 1},
		{S: 2, P: 1, O: 1},
		{S: 2, P: 1, O: 3},
		{S: 2, P: 3, O: 6},
		{S: 3, P: 2, O: 5},
		{S: 3, P: 3, O: 6},
		{S: 4, P: 3, O: 6},
	}
	require.Equal(t, want, l.ForwardAdditions())
}

func TestEmptyBaseLayer(t *testing.T) {
	b := NewBuilder("empty", nil)
	b.IntoPhase2()
	l, err := b.Finalize()
	require.NoError(t, err)

	require.Equal(t, uint64(0), l.NodeAndValueCount())
	require.Equal(t, uint64(0), l.PredicateCount())
	require.Empty(t, l.Triples())
	require.Equal(t, uint64(0), l.TripleCount())
}

func TestCounts(t *testing.T) {
	l := buildBaseLayer(t)

	c := l.Counts()
	require.Equal(t, Counts{
		NodeCount:           5,
		PredicateCount:      4,
		ValueCount:          5,
		TripleAdditionCount: 7,
		TripleRemovalCount:  0,
		TripleCount:         7,
	}, c)
}

func TestCountsOnChildLayerReflectsOwnAndCompositeCounts(t *testing.T) {
	base := buildBaseLayer(t)

	b := NewBuilder("child", base)
	b.AddNode("horse")
	b.IntoPhase2()
	b.AddTriple(11, 1, 1)
	b.RemoveTriple(2, 1, 1)
	child, err := b.Finalize()
	require.NoError(t, err)

	c := child.Counts()
	require.Equal(t, uint64(1), c.NodeCount)
	require.Equal(t, uint64(0), c.PredicateCount)
	require.Equal(t, uint64(0), c.ValueCount)
	require.Equal(t, uint64(1), c.TripleAdditionCount)
	require.Equal(t, uint64(1), c.TripleRemovalCount)
	require.Equal(t, uint64(7), c.TripleCount)
}

func TestLookupPredicateAndObjectUseIndexes(t *testing.T) {
	l := buildBaseLayer(t)

	// predicate 3 ("klmno") occurs in (2,3,6), (3,3,6), (4,3,6).
	got := l.LookupPredicate(3)
	require.Equal(t, []Triple{{S: 2, P: 3, O: 6}, {S: 3, P: 3, O: 6}, {S: 4, P: 3, O: 6}}, got)

	// object 6 ("chicken") is hit by the same three triples.
	got = l.LookupObject(6)
	require.Equal(t, []Triple{{S: 2, P: 3, O: 6}, {S: 3, P: 3, O: 6}, {S: 4, P: 3, O: 6}}, got)
}
