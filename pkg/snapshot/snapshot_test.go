package snapshot

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/iris/pkg/errdefs"
	"github.com/cuemby/iris/pkg/ident"
	"github.com/cuemby/iris/pkg/store"
)

func TestExportRestoreRoundtrip(t *testing.T) {
	src := store.New(store.MemoryPath)
	require.NoError(t, src.Open())
	defer src.Close()

	var objects []store.ObjectRecord
	for i := 0; i < 8; i++ {
		rec, err := src.CreateObject(ident.TypeID(0x100+i%2), ident.NewObjectID(), []byte{byte(i)})
		require.NoError(t, err)
		objects = append(objects, rec)
	}
	for i := 0; i < 4; i++ {
		_, err := src.AddEdge(objects[i].Ref, objects[i+1].Ref, "next", "chain", []byte{byte(i)})
		require.NoError(t, err)
	}

	archive := filepath.Join(t.TempDir(), "iris.snap")
	require.NoError(t, Export(src, archive))

	dst := store.New(store.MemoryPath)
	require.NoError(t, dst.Open())
	defer dst.Close()
	require.NoError(t, Restore(archive, dst))

	srcObjects, err := src.AllObjects()
	require.NoError(t, err)
	dstObjects, err := dst.AllObjects()
	require.NoError(t, err)
	assert.Equal(t, srcObjects, dstObjects)

	srcEdges, err := src.AllEdges()
	require.NoError(t, err)
	dstEdges, err := dst.AllEdges()
	require.NoError(t, err)
	assert.Equal(t, srcEdges, dstEdges)
}

func TestRestoreRejectsForeignFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notasnapshot.db")
	require.NoError(t, os.WriteFile(path, []byte("junk"), 0o644))

	dst := store.New(store.MemoryPath)
	require.NoError(t, dst.Open())
	defer dst.Close()

	assert.Error(t, Restore(path, dst))
}

func TestExportRequiresOpenStore(t *testing.T) {
	s := store.New(store.MemoryPath)
	err := Export(s, filepath.Join(t.TempDir(), "x.snap"))
	assert.ErrorIs(t, err, errdefs.ErrNotOpen)
}
