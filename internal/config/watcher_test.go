package config

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWatcherRequiresPath(t *testing.T) {
	_, err := NewWatcher("", nil)
	require.Error(t, err)
}

func TestWatcherReloadsOnWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "petmem.toml")
	require.NoError(t, os.WriteFile(path, []byte("[server]\nport = 7420\n"), 0644))

	w, err := NewWatcher(path, nil)
	require.NoError(t, err)
	defer w.Stop()

	var got atomic.Int64
	w.OnChange(func(cfg *Config) {
		got.Store(int64(cfg.Port))
	})
	require.NoError(t, w.Start())

	require.NoError(t, os.WriteFile(path, []byte("[server]\nport = 9999\n"), 0644))

	assert.Eventually(t, func() bool {
		return got.Load() == 9999
	}, 3*time.Second, 25*time.Millisecond)
}

func TestWatcherIgnoresInvalidReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "petmem.toml")
	require.NoError(t, os.WriteFile(path, []byte("[server]\nport = 7420\n"), 0644))

	w, err := NewWatcher(path, nil)
	require.NoError(t, err)
	defer w.Stop()

	var calls atomic.Int64
	w.OnChange(func(*Config) { calls.Add(1) })
	require.NoError(t, w.Start())

	// an out-of-range port fails validation, so handlers must not fire
	require.NoError(t, os.WriteFile(path, []byte("[server]\nport = 99999\n"), 0644))

	time.Sleep(600 * time.Millisecond)
	assert.Zero(t, calls.Load())
}

func TestWatcherStopIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "petmem.toml")
	require.NoError(t, os.WriteFile(path, []byte(""), 0644))

	w, err := NewWatcher(path, nil)
	require.NoError(t, err)
	require.NoError(t, w.Start())

	w.Stop()
	w.Stop()
}
