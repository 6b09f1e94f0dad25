package bus

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileArena_CreateWriteClose(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".out.a0")

	a := NewFileArena()
	f, err := a.Create(path, 1024)
	require.NoError(t, err)

	require.NoError(t, f.Write(Packet{Payload: []byte("hello")}))
	assert.EqualValues(t, 5, f.UsedBytes())
	assert.False(t, f.WouldEvict(10))
	assert.True(t, f.WouldEvict(2000))

	require.NoError(t, f.Close())

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.EqualValues(t, 5, info.Size())
}

func TestFileArena_CreateRejectsExisting(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".out.a0")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	a := NewFileArena()
	_, err := a.Create(path, 1024)
	assert.Error(t, err)
}

func TestFileArena_RenameAndRemove(t *testing.T) {
	dir := t.TempDir()
	inProgress := filepath.Join(dir, ".out.a0")
	final := filepath.Join(dir, "out.a0")

	require.NoError(t, os.WriteFile(inProgress, []byte("data"), 0o644))

	a := NewFileArena()
	require.NoError(t, a.Rename(inProgress, final))
	_, err := os.Stat(final)
	require.NoError(t, err)

	require.NoError(t, a.Remove(final))
	_, err = os.Stat(final)
	assert.True(t, os.IsNotExist(err))

	// Remove on an absent path is not an error.
	require.NoError(t, a.Remove(final))
}
