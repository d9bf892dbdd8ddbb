package internal

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.Equal(t, "DATABASES", cfg.Storage.Root)
	require.Equal(t, "Basesita", cfg.Storage.DefaultDatabase)
	require.Equal(t, 10, cfg.Storage.TreeOrder)
	require.Equal(t, 128, cfg.Storage.CachePages)
	require.Equal(t, time.Second, cfg.Storage.LockTimeout)
	require.Equal(t, "info", cfg.Log.Level)
}

func TestLoadConfig_FileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rowstore.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
storage:
  root: /var/lib/rowstore
  tree_order: 32
  lock_timeout: 250ms
log:
  format: json
`), 0o644))

	t.Setenv("ROWSTORE_STORAGE_DEFAULT_DATABASE", "shop")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, "/var/lib/rowstore", cfg.Storage.Root)
	require.Equal(t, 32, cfg.Storage.TreeOrder)
	require.Equal(t, 250*time.Millisecond, cfg.Storage.LockTimeout)
	require.Equal(t, "shop", cfg.Storage.DefaultDatabase)
	require.Equal(t, 128, cfg.Storage.CachePages)
	require.Equal(t, "json", cfg.Log.Format)
}

func TestLoadConfig_Errors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("storage:\n  tree_order: 1\n"), 0o644))
	_, err = LoadConfig(path)
	require.Error(t, err)
}
