package wavelet

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func buildTree(t *testing.T, symbols []uint64, width uint) Tree {
	t.Helper()
	b := NewBuilder(width)
	for _, s := range symbols {
		b.Push(s)
	}
	tree, _ := b.Finalize()
	return tree
}

func TestGetReproducesSequence(t *testing.T) {
	symbols := []uint64{1, 1, 3, 3, 3, 2, 1, 0, 2}
	tree := buildTree(t, symbols, 2)
	require.Equal(t, uint64(len(symbols)), tree.Len())
	for i, s := range symbols {
		require.Equal(t, s, tree.Get(uint64(i)))
	}
}

func TestRankMatchesBruteForce(t *testing.T) {
	symbols := []uint64{1, 1, 3, 3, 3, 2, 1, 0, 2}
	tree := buildTree(t, symbols, 2)

	for symbol := uint64(0); symbol <= 3; symbol++ {
		for i := 0; i <= len(symbols); i++ {
			var want uint64
			for _, s := range symbols[:i] {
				if s == symbol {
					want++
				}
			}
			require.Equal(t, want, tree.Rank(symbol, uint64(i)), "symbol=%d i=%d", symbol, i)
		}
	}
}

func TestSelectMatchesBruteForce(t *testing.T) {
	symbols := []uint64{1, 1, 3, 3, 3, 2, 1, 0, 2}
	tree := buildTree(t, symbols, 2)

	for symbol := uint64(0); symbol <= 3; symbol++ {
		var occurrences []uint64
		for i, s := range symbols {
			if s == symbol {
				occurrences = append(occurrences, uint64(i))
			}
		}
		for k := 1; k <= len(occurrences); k++ {
			pos, ok := tree.Select(symbol, uint64(k))
			require.True(t, ok)
			require.Equal(t, occurrences[k-1], pos)
		}
		_, ok := tree.Select(symbol, uint64(len(occurrences)+1))
		require.False(t, ok)
	}
}

func TestSingleSymbolWidth(t *testing.T) {
	symbols := []uint64{1, 1, 1, 1}
	tree := buildTree(t, symbols, 1)
	require.Equal(t, uint64(4), tree.Rank(1, 4))
	pos, ok := tree.Select(1, 3)
	require.True(t, ok)
	require.Equal(t, uint64(2), pos)
}
