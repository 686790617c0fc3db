package bitarray

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func buildBits(bits []bool) BitArray {
	b := NewBuilder()
	b.PushAll(bits)
	a, err := Parse(b.Finalize())
	if err != nil {
		panic(err)
	}
	return a
}

func TestBasicGet(t *testing.T) {
	bits := []bool{true, false, true, true, false, false, true}
	a := buildBits(bits)
	require.Equal(t, uint64(len(bits)), a.Len())
	for i, b := range bits {
		require.Equal(t, b, a.Get(uint64(i)))
	}
}

func TestRankSelectRoundTrip(t *testing.T) {
	bits := []bool{true, false, true, true, false, false, true, false, true, true, false}
	a := buildBits(bits)
	ix := BuildIndex(a, 2)

	var ones []uint64
	for i, b := range bits {
		if b {
			ones = append(ones, uint64(i))
		}
	}

	for k := 1; k <= len(ones); k++ {
		pos, ok := ix.Select1(uint64(k))
		require.True(t, ok)
		require.Equal(t, ones[k-1], pos)
		require.Equal(t, uint64(k), ix.Rank1(pos))
	}

	_, ok := ix.Select1(uint64(len(ones) + 1))
	require.False(t, ok)
}

func TestRankSelectAcrossManyWords(t *testing.T) {
	n := 5000
	bits := make([]bool, n)
	for i := 0; i < n; i++ {
		bits[i] = i%3 == 0
	}
	a := buildBits(bits)
	ix := BuildIndex(a, DefaultSuperblockFactor)

	var cum uint64
	for i := 0; i < n; i++ {
		if bits[i] {
			cum++
		}
		require.Equal(t, cum, ix.Rank1(uint64(i)))
	}

	var k uint64
	for i := 0; i < n; i++ {
		if bits[i] {
			k++
			pos, ok := ix.Select1(k)
			require.True(t, ok)
			require.Equal(t, uint64(i), pos)
		}
	}
}

func TestParseRoundTrip(t *testing.T) {
	bits := []bool{true, true, false, true}
	b := NewBuilder()
	b.PushAll(bits)
	buf := b.Finalize()

	a, err := Parse(buf)
	require.NoError(t, err)
	require.Equal(t, uint64(4), a.Len())

	ix := BuildIndex(a, 1)
	ix2 := FromParts(a, ix.BlockCounts(), ix.SuperblockSums(), 1)
	require.Equal(t, ix.Rank1(3), ix2.Rank1(3))
}

func TestEmptyIndex(t *testing.T) {
	a := buildBits(nil)
	ix := BuildIndex(a, DefaultSuperblockFactor)
	_, ok := ix.Select1(1)
	require.False(t, ok)
}
