package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("SLOTBOOK_TEST_SECRET", "s3cret")

	path := writeFile(t, dir, "config.yaml", `
server:
  port: 9000
auth:
  jwt_secret: ${SLOTBOOK_TEST_SECRET}
database:
  path: `+filepath.Join(dir, "data", "test.db")+`
booking:
  timezone: Asia/Kolkata
  max_advance_days: 60
redis:
  cache_ttl_seconds: 5
telegram:
  managers: [101, 202]
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.ServerPort())
	assert.Equal(t, "s3cret", cfg.Auth.JWTSecret)
	assert.Equal(t, 60, cfg.BookingMaxAdvanceDays())
	assert.Equal(t, 5*time.Second, cfg.CacheTTL())
	assert.Equal(t, []int64{101, 202}, cfg.Telegram.Managers)
	assert.Equal(t, filepath.Join(dir, "events.yaml"), cfg.EventsConfigPath)
	assert.DirExists(t, filepath.Join(dir, "data"))

	loc, err := cfg.BookingLocation()
	require.NoError(t, err)
	assert.Equal(t, "Asia/Kolkata", loc.String())
}

func TestLoad_Defaults(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.yaml", "database:\n  path: "+filepath.Join(dir, "x.db")+"\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.ServerPort())
	assert.Equal(t, 180, cfg.BookingMaxAdvanceDays())
	assert.Equal(t, 10*time.Second, cfg.LockTTL())
	assert.Equal(t, 15*time.Minute, cfg.ReconcileInterval())
	assert.Equal(t, 10, cfg.RateLimitBurst())
	assert.Equal(t, 2.0, cfg.RateLimitPerSecond())

	loc, err := cfg.BookingLocation()
	require.NoError(t, err)
	assert.Equal(t, time.UTC, loc)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
