package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nadahalli/thumper/internal/config"
	"github.com/nadahalli/thumper/internal/logging"
	"github.com/nadahalli/thumper/internal/session"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	v := config.NewViper()
	v.Set(config.KeyDataDir, t.TempDir())
	v.Set(config.KeyHRMock, true)
	v.Set(config.KeyWakeLockEnabled, false)
	cfg, err := config.Load(v)
	require.NoError(t, err)
	return cfg
}

func TestNew_OpensStoreAndLog(t *testing.T) {
	cfg := testConfig(t)
	feed := logging.NewFeed()
	lines := make(chan string, 8)
	defer feed.Listen(lines)()

	a, err := New(context.Background(), cfg, feed)
	require.NoError(t, err)

	list, err := a.History.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, list)
	require.NoError(t, a.Close())

	_, err = os.Stat(cfg.DBPath)
	assert.NoError(t, err)
	raw, err := os.ReadFile(cfg.Log.File)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "App: using database")
	assert.NotEmpty(t, lines)
}

func TestNewSession_LoadsSavedSensitivity(t *testing.T) {
	cfg := testConfig(t)
	require.NoError(t, os.WriteFile(cfg.SettingsPath, []byte("values:\n  thumper_sensitivity: \"11500\"\n"), 0o644))

	a, err := New(context.Background(), cfg)
	require.NoError(t, err)
	defer a.Close()

	ctrl, err := a.NewSession()
	require.NoError(t, err)
	defer ctrl.Close(context.Background())

	st := ctrl.State()
	assert.Equal(t, session.PhaseIdle, st.Phase)
	assert.Equal(t, 11500, st.Sensitivity)
}

func TestNewSession_MissingAudioFile(t *testing.T) {
	cfg := testConfig(t)
	cfg.Audio.File = filepath.Join(t.TempDir(), "missing.wav")

	a, err := New(context.Background(), cfg)
	require.NoError(t, err)
	defer a.Close()

	_, err = a.NewSession()
	assert.ErrorContains(t, err, "load audio file")
}
