package adjacency

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/succinctgraph/triplestore/internal/succinct/bitarray"
	"github.com/succinctgraph/triplestore/internal/succinct/logarray"
)

func build(t *testing.T, width uint, pairs []Pair) List {
	t.Helper()
	b := NewBuilder(width)
	b.PushAll(pairs)
	numsBlob, bitsBlob := b.Finalize()

	nums, err := logarray.Parse(numsBlob)
	require.NoError(t, err)
	bits, err := bitarray.Parse(bitsBlob)
	require.NoError(t, err)
	ix := bitarray.BuildIndex(bits, 2)

	return FromParts(nums, ix)
}

func TestAdjacencyListWithHoles(t *testing.T) {
	pairs := []Pair{{1, 1}, {1, 3}, {2, 5}, {7, 4}}
	al := build(t, 8, pairs)

	require.Equal(t, uint64(7), al.LeftCount())

	slice := al.Get(1)
	require.Equal(t, 2, slice.Len())
	require.Equal(t, uint64(1), slice.Entry(0))
	require.Equal(t, uint64(3), slice.Entry(1))

	slice = al.Get(2)
	require.Equal(t, 1, slice.Len())
	require.Equal(t, uint64(5), slice.Entry(0))

	for left := 3; left <= 6; left++ {
		slice = al.Get(uint64(left))
		require.Equal(t, 1, slice.Len())
		require.Equal(t, uint64(0), slice.Entry(0))
	}

	slice = al.Get(7)
	require.Equal(t, 1, slice.Len())
	require.Equal(t, uint64(4), slice.Entry(0))
}

func TestEmptyAdjacencyList(t *testing.T) {
	al := build(t, 8, nil)
	require.Equal(t, uint64(0), al.LeftCount())
}

func TestIteratorSkipsHoles(t *testing.T) {
	pairs := []Pair{{1, 1}, {1, 3}, {2, 5}, {7, 4}}
	al := build(t, 8, pairs)

	it := al.Iter()
	var got []Pair
	for {
		p, ok := it.Next()
		if !ok {
			break
		}
		got = append(got, p)
	}
	require.Equal(t, pairs, got)
}

func TestPushRejectsUnordered(t *testing.T) {
	b := NewBuilder(8)
	b.Push(1, 1)
	b.Push(2, 1)
	require.Panics(t, func() { b.Push(2, 1) })
	require.Panics(t, func() { b.Push(1, 5) })
}
