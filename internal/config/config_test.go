package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	dir := t.TempDir()

	cfg, err := Load("", dir)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, dir, cfg.Storage.DataDir)
	assert.Equal(t, filepath.Join(dir, "mediremind.db"), cfg.Storage.SQLitePath)

	assert.Equal(t, 1, cfg.Reminder.PollIntervalSeconds)
	assert.Equal(t, 120, cfg.Reminder.CountdownSeconds)
	assert.Equal(t, 120, cfg.Reminder.CooldownSeconds)

	assert.Len(t, cfg.Notify.Proxies, 3)
	assert.Equal(t, 0.6, cfg.Security.FaceThreshold)
	assert.NotEmpty(t, cfg.Security.JWTSecret, "a secret is generated when none is configured")
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mediremind.yaml")

	yaml := `
server:
  port: 9090
reminder:
  countdown_seconds: 60
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0644))

	cfg, err := Load(path, dir)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 60, cfg.Reminder.CountdownSeconds)
	// Untouched keys keep their defaults.
	assert.Equal(t, 120, cfg.Reminder.CooldownSeconds)
}

func TestLoad_ConfigFileRelocatesDatabase(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mediremind.yaml")

	custom := filepath.Join(dir, "elsewhere.db")
	require.NoError(t, os.WriteFile(path, []byte("storage:\n  sqlite_path: "+custom+"\n"), 0644))

	cfg, err := Load(path, dir)
	require.NoError(t, err)

	assert.Equal(t, custom, cfg.Storage.SQLitePath)
	assert.Equal(t, dir, cfg.Storage.DataDir)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("MEDIREMIND_NOTIFY_FAST2SMS_KEY", "env-key")
	t.Setenv("MEDIREMIND_SECURITY_JWT_SECRET", "env-secret")

	cfg, err := Load("", t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "env-key", cfg.Notify.Fast2SMSKey)
	assert.Equal(t, "env-secret", cfg.Security.JWTSecret)
}

func TestLoad_RejectsBadIntervals(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mediremind.yaml")
	require.NoError(t, os.WriteFile(path, []byte("reminder:\n  poll_interval_seconds: 0\n"), 0644))

	_, err := Load(path, dir)
	assert.Error(t, err)
}
