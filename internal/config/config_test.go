package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 5*time.Second, cfg.CommentCooldown.Std())
	assert.False(t, cfg.GateFailClosed)
	assert.Equal(t, 4096, cfg.RateLimitEntries)
}

func TestLoad_YAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
port: "9000"
log_level: debug
comment_cooldown: 10s
gate_fail_closed: true
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "9000", cfg.Port)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 10*time.Second, cfg.CommentCooldown.Std())
	assert.True(t, cfg.GateFailClosed)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`port: "9000"`), 0o644))

	t.Setenv("PORT", "9100")
	t.Setenv("COMMENT_COOLDOWN", "3s")
	t.Setenv("GATE_FAIL_CLOSED", "true")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "9100", cfg.Port)
	assert.Equal(t, 3*time.Second, cfg.CommentCooldown.Std())
	assert.True(t, cfg.GateFailClosed)
}

func TestLoad_BadDuration(t *testing.T) {
	t.Setenv("COMMENT_COOLDOWN", "soon")
	_, err := Load("")
	assert.Error(t, err)
}
