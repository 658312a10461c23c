package storage

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cyclopcam/logs"
	"github.com/stretchr/testify/require"
)

func TestStorageFS(t *testing.T) {
	root := filepath.Join(t.TempDir(), "artifacts")
	s, err := Open(logs.NewTestingLog(t), root)
	require.NoError(t, err)
	require.IsType(t, &StorageFS{}, s)

	require.NoError(t, WriteFile(s, "a/b.json", strings.NewReader(`{"x": 1}`)))
	b, err := ReadFile(s, "a/b.json")
	require.NoError(t, err)
	require.Equal(t, `{"x": 1}`, string(b))

	f, err := s.ReadFile("a/b.json")
	require.NoError(t, err)
	require.Equal(t, int64(8), f.Size)
	f.Reader.Close()

	// Overwrite truncates
	require.NoError(t, WriteFile(s, "a/b.json", strings.NewReader(`{}`)))
	b, err = ReadFile(s, "a/b.json")
	require.NoError(t, err)
	require.Equal(t, `{}`, string(b))

	require.NoError(t, s.DeleteFile("a/b.json"))
	_, err = ReadFile(s, "a/b.json")
	require.True(t, os.IsNotExist(err))

	require.Error(t, WriteFile(s, "../escape.json", strings.NewReader("")))
	_, err = s.ReadFile("../../etc/passwd")
	require.Error(t, err)
	require.Error(t, s.DeleteFile(""))

	// A file only appears under its name once it is closed
	w, err := s.WriteFile("c.json")
	require.NoError(t, err)
	_, err = w.Write([]byte("{}"))
	require.NoError(t, err)
	_, err = ReadFile(s, "c.json")
	require.True(t, os.IsNotExist(err))
	require.NoError(t, w.Close())
	b, err = ReadFile(s, "c.json")
	require.NoError(t, err)
	require.Equal(t, "{}", string(b))
	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	for _, e := range entries {
		require.False(t, strings.HasSuffix(e.Name(), ".tmp"), e.Name())
	}
}

func TestOpenRequiresLocation(t *testing.T) {
	_, err := Open(logs.NewTestingLog(t), "")
	require.Error(t, err)
}

func TestOpenInvalidGCS(t *testing.T) {
	_, err := Open(logs.NewTestingLog(t), "gs://")
	require.Error(t, err)
}
