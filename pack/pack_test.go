package pack

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/succinctgraph/triplestore/internal/objstorage"
	"github.com/succinctgraph/triplestore/layer"
)

func buildAndSaveLayer(t *testing.T, backend *objstorage.MemoryBackend, name string, parent *layer.Layer) *layer.Layer {
	t.Helper()
	b := layer.NewSimpleBuilder(name, parent)
	b.AddStringTriple(layer.NewValueTriple("cow", "says", "moo"))
	l, err := b.Commit()
	require.NoError(t, err)

	dir := backend.NewNamedDirectory(l.Name())
	require.NoError(t, layer.Save(dir, l))
	return l
}

func TestExportImportRoundTrip(t *testing.T) {
	src := objstorage.NewMemoryBackend()
	base := buildAndSaveLayer(t, src, "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", nil)

	var buf bytes.Buffer
	require.NoError(t, Export(&buf, src, []string{base.Name()}))

	dst := objstorage.NewMemoryBackend()
	imported, err := Import(&buf, dst, []string{base.Name()})
	require.NoError(t, err)
	require.ElementsMatch(t, []string{base.Name()}, imported)

	dir, err := dst.GetDirectory(base.Name())
	require.NoError(t, err)
	loaded, err := layer.Load(dir, nil)
	require.NoError(t, err)
	require.Equal(t, base.Triples(), loaded.Triples())
}

func TestImportSkipsUnwantedLayers(t *testing.T) {
	src := objstorage.NewMemoryBackend()
	wanted := buildAndSaveLayer(t, src, "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", nil)
	unwanted := buildAndSaveLayer(t, src, "bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb", nil)

	var buf bytes.Buffer
	require.NoError(t, Export(&buf, src, []string{wanted.Name(), unwanted.Name()}))

	dst := objstorage.NewMemoryBackend()
	imported, err := Import(&buf, dst, []string{wanted.Name()})
	require.NoError(t, err)
	require.Equal(t, []string{wanted.Name()}, imported)

	exists, err := dst.DirectoryExists(unwanted.Name())
	require.NoError(t, err)
	require.False(t, exists)
}

func TestExportChildLayerIncludesNegSideAndParent(t *testing.T) {
	src := objstorage.NewMemoryBackend()
	base := buildAndSaveLayer(t, src, "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", nil)

	b := layer.NewSimpleBuilder("child", base)
	b.AddStringTriple(layer.NewValueTriple("pig", "says", "oink"))
	b.RemoveStringTriple(layer.NewValueTriple("cow", "says", "moo"))
	child, err := b.Commit()
	require.NoError(t, err)
	childDir := src.NewNamedDirectory(child.Name())
	require.NoError(t, layer.Save(childDir, child))

	var buf bytes.Buffer
	require.NoError(t, Export(&buf, src, []string{base.Name(), child.Name()}))

	dst := objstorage.NewMemoryBackend()
	imported, err := Import(&buf, dst, []string{base.Name(), child.Name()})
	require.NoError(t, err)
	require.ElementsMatch(t, []string{base.Name(), child.Name()}, imported)

	baseDir, err := dst.GetDirectory(base.Name())
	require.NoError(t, err)
	loadedBase, err := layer.Load(baseDir, nil)
	require.NoError(t, err)

	childDirLoaded, err := dst.GetDirectory(child.Name())
	require.NoError(t, err)
	loadedChild, err := layer.Load(childDirLoaded, loadedBase)
	require.NoError(t, err)

	require.Equal(t, child.Triples(), loadedChild.Triples())
}
