package logarray

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuildAndParse(t *testing.T) {
	b := NewBuilder(13)
	values := []uint64{1, 3, 2, 5, 12, 5000, 1023, 8191}
	b.PushAll(values)
	buf := b.Finalize()

	a, err := Parse(buf)
	require.NoError(t, err)
	require.Equal(t, len(values), a.Len())
	require.Equal(t, uint(13), a.Width())
	for i, v := range values {
		require.Equal(t, v, a.Entry(i))
	}
}

func TestEmpty(t *testing.T) {
	b := NewBuilder(8)
	buf := b.Finalize()
	a, err := Parse(buf)
	require.NoError(t, err)
	require.Equal(t, 0, a.Len())
}

func TestSlice(t *testing.T) {
	b := NewBuilder(5)
	values := []uint64{1, 2, 3, 4, 5, 6, 7}
	b.PushAll(values)
	a, err := Parse(b.Finalize())
	require.NoError(t, err)

	s := a.Slice(2, 3)
	require.Equal(t, 3, s.Len())
	require.Equal(t, uint64(3), s.Entry(0))
	require.Equal(t, uint64(4), s.Entry(1))
	require.Equal(t, uint64(5), s.Entry(2))
}

func TestMonotonicBuilderRejectsOutOfOrder(t *testing.T) {
	b := NewMonotonicBuilder(8)
	b.Push(1)
	b.Push(2)
	require.Panics(t, func() { b.Push(2) })
}

func TestMonotonicIndexOf(t *testing.T) {
	b := NewMonotonicBuilder(16)
	values := []uint64{1, 5, 10, 100, 1000}
	for _, v := range values {
		b.Push(v)
	}
	a, err := Parse(b.Finalize())
	require.NoError(t, err)
	m := NewMonotonic(a)

	require.Equal(t, 2, m.IndexOf(10))
	require.Equal(t, -1, m.IndexOf(11))
}

func TestWidth64(t *testing.T) {
	b := NewBuilder(64)
	b.Push(^uint64(0))
	b.Push(0)
	a, err := Parse(b.Finalize())
	require.NoError(t, err)
	require.Equal(t, ^uint64(0), a.Entry(0))
	require.Equal(t, uint64(0), a.Entry(1))
}
