package settings

import (
	"io"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func TestFileStore_MissingFileIsEmpty(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "settings.yaml"), testLogger())
	require.NoError(t, err)

	_, ok := s.GetItem("thumper_sensitivity")
	assert.False(t, ok)
}

func TestFileStore_SetItemPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "settings.yaml")

	s, err := Open(path, testLogger())
	require.NoError(t, err)
	s.SetItem("thumper_sensitivity", "12000")
	s.SetItem("other", "x")

	v, ok := s.GetItem("thumper_sensitivity")
	require.True(t, ok)
	assert.Equal(t, "12000", v)

	reopened, err := Open(path, testLogger())
	require.NoError(t, err)
	v, ok = reopened.GetItem("thumper_sensitivity")
	require.True(t, ok)
	assert.Equal(t, "12000", v)
	v, _ = reopened.GetItem("other")
	assert.Equal(t, "x", v)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files are cleaned up")
}

func TestFileStore_ReadsYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, os.WriteFile(path, []byte("values:\n  thumper_sensitivity: \"6000\"\n"), 0o644))

	s, err := Open(path, testLogger())
	require.NoError(t, err)
	v, ok := s.GetItem("thumper_sensitivity")
	require.True(t, ok)
	assert.Equal(t, "6000", v)
}

func TestFileStore_CorruptFileStillUsable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, os.WriteFile(path, []byte("values: [unclosed"), 0o644))

	s, err := Open(path, testLogger())
	assert.Error(t, err)
	require.NotNil(t, s)

	s.SetItem("k", "v")
	v, ok := s.GetItem("k")
	assert.True(t, ok)
	assert.Equal(t, "v", v)
}

func TestFileStore_ConcurrentSetItemKeepsLastWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	s, err := Open(path, testLogger())
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			s.SetItem("thumper_sensitivity", strconv.Itoa(n))
		}(i)
	}
	wg.Wait()

	inMemory, ok := s.GetItem("thumper_sensitivity")
	require.True(t, ok)

	reopened, err := Open(path, testLogger())
	require.NoError(t, err)
	onDisk, ok := reopened.GetItem("thumper_sensitivity")
	require.True(t, ok)
	assert.Equal(t, inMemory, onDisk)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
