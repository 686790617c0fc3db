package pfc

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func buildDict(t *testing.T, strs []string) Dict {
	t.Helper()
	b := NewBuilder()
	b.AddAll(strs)
	blocks, offsets := b.Finalize()
	d, err := Parse(blocks, offsets)
	require.NoError(t, err)
	return d
}

func TestSmallDictionaryRoundTrip(t *testing.T) {
	strs := []string{"aaaaa", "baa", "bbbbb", "ccccc", "mooo"}
	d := buildDict(t, strs)
	require.Equal(t, len(strs), d.Len())

	for i, s := range strs {
		got, ok := d.Get(uint64(i + 1))
		require.True(t, ok)
		require.Equal(t, s, got)

		id, ok := d.Id(s)
		require.True(t, ok)
		require.Equal(t, uint64(i+1), id)
	}

	_, ok := d.Id("notpresent")
	require.False(t, ok)
	_, ok = d.Get(uint64(len(strs) + 1))
	require.False(t, ok)
}

func TestDictionarySpanningMultipleBlocks(t *testing.T) {
	asc := []string{
		"aaa", "aab", "aac", "aad", "aaz", "ab", "ba", "bb", "bc",
		"bd", "be", "bf", "bg", "bh", "bi", "framps", "fremps", "frumps",
	}
	d := buildDict(t, asc)
	require.Equal(t, len(asc), d.Len())
	require.Equal(t, asc, d.Strings())

	for i, s := range asc {
		id, ok := d.Id(s)
		require.True(t, ok)
		require.Equal(t, uint64(i+1), id)

		got, ok := d.Get(id)
		require.True(t, ok)
		require.Equal(t, s, got)
	}
}

func TestAddRejectsNonAscending(t *testing.T) {
	b := NewBuilder()
	b.Add("b")
	require.Panics(t, func() { b.Add("a") })
	require.Panics(t, func() { b.Add("b") })
}

func TestEmptyDictionary(t *testing.T) {
	d := buildDict(t, nil)
	require.Equal(t, 0, d.Len())
	_, ok := d.Get(1)
	require.False(t, ok)
	_, ok = d.Id("anything")
	require.False(t, ok)
}

func TestIteratorMatchesStrings(t *testing.T) {
	strs := []string{"abcde", "fghij", "klmno", "lll"}
	d := buildDict(t, strs)

	it := d.Iter()
	var got []string
	for {
		s, ok := it.Next()
		if !ok {
			break
		}
		got = append(got, s)
	}
	require.Equal(t, strs, got)
}
