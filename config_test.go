package fabriq

import (
	"os"
	"path/filepath"
	"testing"

	"gotest.tools/v3/assert"
)

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("REDIS_ADDRESS", "redis.internal:6380")
	t.Setenv("FABRIQ_WORLD_ID", "alpha")
	t.Setenv("FABRIQ_TICK_INTERVAL_MS", "250")

	cfg := ConfigFromEnv()
	assert.Equal(t, cfg.RedisAddress, "redis.internal:6380")
	assert.Equal(t, cfg.WorldID, "alpha")
	assert.Equal(t, cfg.TickIntervalMS, 250)
	assert.Equal(t, cfg.GatewayPort, "4000")
}

func TestConfigIgnoresUnparsableNumbers(t *testing.T) {
	t.Setenv("FABRIQ_TICK_PARALLELISM", "lots")
	cfg := ConfigFromEnv()
	assert.Equal(t, cfg.TickParallelism, 10)
}

func TestLoadConfigOverlaysFile(t *testing.T) {
	t.Setenv("FABRIQ_WORLD_ID", "alpha")
	path := filepath.Join(t.TempDir(), "fabriq.toml")
	assert.NilError(t, os.WriteFile(path, []byte(
		"world_id = \"beta\"\ntick_interval_ms = 100\n"), 0o600))

	cfg, err := LoadConfig(path)
	assert.NilError(t, err)
	assert.Equal(t, cfg.WorldID, "beta", "file wins over environment")
	assert.Equal(t, cfg.TickIntervalMS, 100)
	assert.Equal(t, cfg.GatewayPort, "4000", "unlisted keys keep env defaults")
}

func TestLoadConfigMissingFileFails(t *testing.T) {
	_, err := LoadConfig("/nonexistent/fabriq.toml")
	assert.ErrorContains(t, err, "failed to load config file")
}
