package layer

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/succinctgraph/triplestore/internal/objstorage"
)

func TestSaveLoadRoundTripBaseLayer(t *testing.T) {
	l := buildBaseLayer(t)

	backend := objstorage.NewMemoryBackend()
	dir := backend.NewNamedDirectory(l.Name())
	require.NoError(t, Save(dir, l))

	loaded, err := Load(dir, nil)
	require.NoError(t, err)

	require.Equal(t, l.Triples(), loaded.Triples())
	require.Equal(t, l.TripleCount(), loaded.TripleCount())

	id, ok := loaded.SubjectID("bbbbb")
	require.True(t, ok)
	require.Equal(t, uint64(3), id)
}

func TestSaveLoadRoundTripChildLayer(t *testing.T) {
	base := buildAnimalBaseLayer(t)

	backend := objstorage.NewMemoryBackend()
	baseDir := backend.NewNamedDirectory(base.Name())
	require.NoError(t, Save(baseDir, base))

	b := NewSimpleBuilder("child", base)
	b.AddStringTriple(NewValueTriple("horse", "says", "neigh"))
	b.AddStringTriple(NewNodeTriple("horse", "likes", "cow"))
	b.RemoveStringTriple(NewValueTriple("duck", "says", "quack"))
	child, err := b.Commit()
	require.NoError(t, err)

	childDir := backend.NewNamedDirectory(child.Name())
	require.NoError(t, Save(childDir, child))

	loadedBase, err := Load(baseDir, nil)
	require.NoError(t, err)
	loadedChild, err := Load(childDir, loadedBase)
	require.NoError(t, err)

	require.Equal(t, child.Triples(), loadedChild.Triples())
	require.True(t, triplesExists(loadedChild, "horse", "says", "neigh", true))
	require.False(t, triplesExists(loadedChild, "duck", "says", "quack", true))
}
