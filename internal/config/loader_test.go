package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, "signing:\n  secret: abc\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "rollbot", cfg.Service.Name)
	assert.Equal(t, "info", cfg.Service.LogLevel)
	assert.Equal(t, "127.0.0.1:8080", cfg.Server.Listen)
	assert.Equal(t, "/commands/rollback", cfg.Server.CommandsPath)
	assert.Equal(t, int64(64*1024), cfg.MaxBodyBytes())
	assert.Equal(t, 5*time.Minute, cfg.Signing.ReplayWindow)
	assert.Equal(t, RollbackModeRecord, cfg.Rollback.Mode)
	assert.Equal(t, "./data/rollbot.db", cfg.State.Path)
	assert.Equal(t, path, cfg.SourcePath)
}

func TestLoadFullConfig(t *testing.T) {
	path := writeConfig(t, `
service:
  name: rollbot-prod
  log_level: DEBUG
server:
  listen: 0.0.0.0:9000
  commands_path: /slack/rollback
  max_body_size: 1MB
  read_timeout: 3s
  write_timeout: 4s
signing:
  secret: s3cret
  replay_window: 2m
rollback:
  mode: noop
state:
  path: /var/lib/rollbot/state.db
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "rollbot-prod", cfg.Service.Name)
	assert.Equal(t, "debug", cfg.Service.LogLevel)
	assert.Equal(t, "0.0.0.0:9000", cfg.Server.Listen)
	assert.Equal(t, "/slack/rollback", cfg.Server.CommandsPath)
	assert.Equal(t, int64(1024*1024), cfg.MaxBodyBytes())
	assert.Equal(t, 3*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 4*time.Second, cfg.Server.WriteTimeout)
	assert.Equal(t, 2*time.Minute, cfg.Signing.ReplayWindow)
	assert.Equal(t, RollbackModeNoop, cfg.Rollback.Mode)
	assert.Equal(t, "s3cret", cfg.SigningSecret())
}

func TestLoadDirectory(t *testing.T) {
	path := writeConfig(t, "signing:\n  secret: abc\n")

	cfg, err := Load(filepath.Dir(path))
	require.NoError(t, err)
	assert.Equal(t, path, cfg.SourcePath)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadInterpolatesSecret(t *testing.T) {
	t.Setenv("ROLLBOT_TEST_SECRET", "from-env")
	path := writeConfig(t, "signing:\n  secret: ${ROLLBOT_TEST_SECRET}\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.NoError(t, cfg.CheckSecret())
	assert.Equal(t, "from-env", cfg.SigningSecret())
}

func TestUnresolvedSecretFailsClosed(t *testing.T) {
	path := writeConfig(t, "signing:\n  secret: ${ROLLBOT_SECRET_THAT_IS_NOT_SET}\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	err = cfg.CheckSecret()
	assert.ErrorIs(t, err, ErrNoSecret)
	assert.Contains(t, err.Error(), "ROLLBOT_SECRET_THAT_IS_NOT_SET")
	assert.Equal(t, "", cfg.SigningSecret())
}

func TestMissingSecret(t *testing.T) {
	cfg := Defaults()
	assert.ErrorIs(t, cfg.CheckSecret(), ErrNoSecret)

	cfg.Signing.Secret = "   "
	assert.ErrorIs(t, cfg.CheckSecret(), ErrNoSecret)
	assert.Equal(t, "", cfg.SigningSecret())
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "bad log level", content: "service:\n  log_level: loud\n"},
		{name: "relative commands path", content: "server:\n  commands_path: commands\n"},
		{name: "bad body size", content: "server:\n  max_body_size: huge\n"},
		{name: "tiny replay window", content: "signing:\n  replay_window: 10ms\n"},
		{name: "replay window over five minutes", content: "signing:\n  replay_window: 301s\n"},
		{name: "replay window of hours", content: "signing:\n  replay_window: 2h\n"},
		{name: "unknown rollback mode", content: "rollback:\n  mode: execute\n"},
		{name: "invalid yaml", content: "service: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			assert.Error(t, err)
		})
	}
}

func TestLoadAcceptsMaxReplayWindow(t *testing.T) {
	cfg, err := Load(writeConfig(t, "signing:\n  replay_window: 300s\n"))
	require.NoError(t, err)
	assert.Equal(t, MaxReplayWindow, cfg.Signing.ReplayWindow)
}

func TestParseSize(t *testing.T) {
	tests := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{in: "65536", want: 65536},
		{in: "64KB", want: 64 * 1024},
		{in: "1mb", want: 1024 * 1024},
		{in: "2GB", want: 2 * 1024 * 1024 * 1024},
		{in: "", wantErr: true},
		{in: "0", wantErr: true},
		{in: "-1KB", wantErr: true},
		{in: "9223372036854775807GB", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseSize(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLockAndVerify(t *testing.T) {
	path := writeConfig(t, "signing:\n  secret: abc\n")

	checksumPath, err := Lock(path)
	require.NoError(t, err)
	assert.FileExists(t, checksumPath)

	_, err = Load(path)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte("signing:\n  secret: tampered\n"), 0o600))
	_, err = Load(path)
	assert.True(t, errors.Is(err, ErrChecksumMismatch), "got %v", err)

	_, err = Lock(path)
	require.NoError(t, err)
	_, err = Load(path)
	assert.NoError(t, err)
}

func TestLoadChecksumsAbsent(t *testing.T) {
	m, err := LoadChecksums(t.TempDir())
	assert.NoError(t, err)
	assert.Nil(t, m)
}

func TestLoadChecksumsBadVersion(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ChecksumFile), []byte("version: 2\nhashes: {}\n"), 0o600))

	_, err := LoadChecksums(dir)
	assert.Error(t, err)
}

func TestComputeBlake3Hash(t *testing.T) {
	path := writeConfig(t, "x")

	h1, err := ComputeBlake3Hash(path)
	require.NoError(t, err)
	assert.Len(t, h1, 64)

	h2, err := ComputeBlake3Hash(path)
	require.NoError(t, err)
	assert.Equal(t, h1, h2)
}
