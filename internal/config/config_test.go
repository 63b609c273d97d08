package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/fitsync")

	cfg, err := Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, "postgres://localhost/fitsync", cfg.DatabaseURL)
	assert.Equal(t, FeedPostgres, cfg.Feed.Transport)
	assert.Equal(t, 500*time.Millisecond, cfg.Sync.Debounce)
	assert.Equal(t, 5*time.Minute, cfg.Sync.Interval)
	assert.Equal(t, time.Second, cfg.Sync.BaseDelay)
	assert.Equal(t, 3, cfg.Sync.MaxRetries)
	assert.Equal(t, 15*time.Second, cfg.Sync.CallTimeout)
	assert.Equal(t, "fitsync.db.lock", cfg.Sync.LockPath)
	assert.False(t, cfg.OIDC.Enabled())
}

func TestLoad_FileEnvAndFlags(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fitsync.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
addr: ":9000"
cache_path: /tmp/cache.db
feed:
  transport: realtime
  url: wss://feed.example.test/ws
sync:
  debounce: 1s
oidc:
  issuer: https://id.example.test
  client_id: fitsync
`), 0o600))

	t.Setenv("FITSYNC_SYNC_MAX_RETRIES", "5")
	t.Setenv("FITSYNC_LOG_LEVEL", "debug")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("addr", "", "")
	flags.String("owner", "", "")
	require.NoError(t, flags.Parse([]string{"--owner", "user-9"}))

	cfg, err := Load(path, flags)
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.Addr, "unset flag keeps the file value")
	assert.Equal(t, "user-9", cfg.Owner)
	assert.Equal(t, FeedRealtime, cfg.Feed.Transport)
	assert.Equal(t, time.Second, cfg.Sync.Debounce)
	assert.Equal(t, 5, cfg.Sync.MaxRetries)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "/tmp/cache.db.lock", cfg.Sync.LockPath)
	assert.True(t, cfg.OIDC.Enabled())
}

func TestLoad_FeedFollowsDatabase(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("FITSYNC_DATABASE_URL", "")

	cfg, err := Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, FeedMemory, cfg.Feed.Transport)

	t.Setenv("FITSYNC_FEED_TRANSPORT", FeedPostgres)
	_, err = Load("", nil)
	assert.ErrorContains(t, err, "requires database_url")
}

func TestLoad_Invalid(t *testing.T) {
	t.Setenv("FITSYNC_FEED_TRANSPORT", "carrier-pigeon")
	t.Setenv("FITSYNC_SYNC_MAX_RETRIES", "0")

	_, err := Load("", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "carrier-pigeon")
	assert.Contains(t, err.Error(), "max_retries")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"), nil)
	assert.Error(t, err)
}
