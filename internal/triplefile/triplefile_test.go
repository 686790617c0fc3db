package triplefile

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// seedTriples is the fixture from the end-to-end base-layer scenario:
// nodes ["aaaaa","baa","bbbbb","ccccc","mooo"], predicates
// ["abcde","fghij","klmno","lll"], values
// ["chicken","cow","dog","pig","zebra"].
func seedTriples() []Triple {
	return []Triple{
		{1, 1, 1},
		{2, 1, 1},
		{2, 1, 3},
		{2, 3, 6},
		{3, 2, 5},
		{3, 3, 6},
		{4, 3, 6},
	}
}

func TestForwardRoundTripAndStreamOrder(t *testing.T) {
	triples := seedTriples()
	b := NewBuilder(4, 10)
	b.AddTriples(triples)
	fwd := b.Finalize()

	spList, err := ParseList(fwd.SPNums, fwd.SPBits, 2)
	require.NoError(t, err)
	spoList, err := ParseList(fwd.SPONums, fwd.SPOBits, 2)
	require.NoError(t, err)

	require.Equal(t, uint64(4), spList.LeftCount()) // subjects 1..4
	require.Equal(t, uint64(len(triples)), spoList.RightCount())

	stream := NewTripleStream(spList, spoList)
	got := stream.All()
	require.Equal(t, triples, got)
}

func TestAddTripleRejectsUnordered(t *testing.T) {
	b := NewBuilder(4, 10)
	b.AddTriple(2, 1, 1)
	require.Panics(t, func() { b.AddTriple(2, 1, 1) })
	require.Panics(t, func() { b.AddTriple(1, 1, 1) })
}

func TestBuildIndexesObjectLookup(t *testing.T) {
	triples := seedTriples()
	b := NewBuilder(4, 10)
	b.AddTriples(triples)
	fwd := b.Finalize()

	spList, err := ParseList(fwd.SPNums, fwd.SPBits, 2)
	require.NoError(t, err)
	spoList, err := ParseList(fwd.SPONums, fwd.SPOBits, 2)
	require.NoError(t, err)

	indexes, _ := BuildIndexes(spList, spoList, 2)

	// object 6 is hit by triples (2,3,6), (3,3,6), (4,3,6).
	spIDs := indexes.ObjectPS.Get(6)
	require.Equal(t, 3, spIDs.Len())

	var resolved []Triple
	for i := 0; i < spIDs.Len(); i++ {
		sp := spIDs.Entry(i)
		left, right := spList.PairAtPos(sp - 1)
		resolved = append(resolved, Triple{S: left, P: right, O: 6})
	}
	require.Contains(t, resolved, Triple{S: 2, P: 3, O: 6})
	require.Contains(t, resolved, Triple{S: 3, P: 3, O: 6})
	require.Contains(t, resolved, Triple{S: 4, P: 3, O: 6})

	// predicate 1 occurs for subjects 1 and 2 (twice for subject 2's s→p
	// dedup collapses to one (2,1) entry), so rank at the end of the
	// sequence should count 2 occurrences.
	rank := indexes.Wavelet.Rank(1, indexes.Wavelet.Len())
	require.Equal(t, uint64(2), rank)
}
