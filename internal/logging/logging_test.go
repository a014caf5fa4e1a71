package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_WritesFileAndExtras(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "thumper.log")
	feed := NewFeed()
	ch := make(chan string, 4)
	defer feed.Listen(ch)()

	logger, closer, err := New(Options{File: path, MaxSizeMB: 1, MaxBackups: 1, MaxAgeDays: 1}, feed)
	require.NoError(t, err)
	logger.Printf("Session: started")
	require.NoError(t, closer.Close())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "Session: started")

	require.Len(t, ch, 1)
	assert.Contains(t, <-ch, "Session: started")
}

func TestFeed_SplitsLines(t *testing.T) {
	feed := NewFeed()
	ch := make(chan string, 8)
	unsubscribe := feed.Listen(ch)

	n, err := feed.Write([]byte("first\nsec"))
	require.NoError(t, err)
	assert.Equal(t, 9, n)
	_, _ = feed.Write([]byte("ond\r\nthird\n"))

	require.Len(t, ch, 3)
	assert.Equal(t, "first", <-ch)
	assert.Equal(t, "second", <-ch)
	assert.Equal(t, "third", <-ch)

	unsubscribe()
	_, _ = feed.Write([]byte("ignored\n"))
	assert.Empty(t, ch)
}

func TestFeed_FullListenerDoesNotBlock(t *testing.T) {
	feed := NewFeed()
	ch := make(chan string, 1)
	defer feed.Listen(ch)()

	_, _ = feed.Write([]byte("a\nb\nc\n"))
	require.Len(t, ch, 1)
	assert.Equal(t, "a", <-ch)
}
