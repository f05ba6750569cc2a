package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/amm-arena/internal/engine"
)

var envKeys = []string{
	"NUM_AGENTS", "TURNS_PER_RUN", "TOTAL_RUNS", "INITIAL_TOKENS",
	"POOL_RESERVE_A", "POOL_RESERVE_B", "SWAP_FEE", "ARENA_SEED",
	"LLM_PROVIDER", "LLM_API_KEY", "LLM_MODEL", "LLM_BASE_URL",
	"ARENA_DB_PATH", "ARENA_ADMIN_KEY", "ARENA_PORT", "LOG_LEVEL",
	"RANDOM_ORG_API_KEY",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
	}
}

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "arena.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, engine.DefaultParams(), cfg.Params)
	assert.Equal(t, "anthropic", cfg.LLM.Provider)
	assert.Equal(t, 8080, cfg.Port)
	assert.NoError(t, cfg.Validate())
}

func TestLoadWithoutFile(t *testing.T) {
	clearEnv(t)
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadFromFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("TEST_LLM_KEY", "sk-file")
	path := writeFile(t, `
params:
  num_agents: 3
  turns_per_run: 12
  swap_fee: 0.01
  chaos_probability: 0
  turn_delay: 250ms
llm:
  provider: openai
  api_key: ${TEST_LLM_KEY}
  model: small
  timeout: 30s
db_path: /tmp/x.db
log_level: debug
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Params.NumAgents)
	assert.Equal(t, 12, cfg.Params.TurnsPerRun)
	assert.Equal(t, 0.01, cfg.Params.SwapFee)
	assert.Zero(t, cfg.Params.ChaosProbability)
	assert.Equal(t, 250*time.Millisecond, cfg.Params.TurnDelay)
	assert.Equal(t, 1000.0, cfg.Params.PoolReserveA, "unset fields keep defaults")

	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.Equal(t, "sk-file", cfg.LLM.APIKey)
	assert.Equal(t, 30*time.Second, cfg.LLM.Timeout)
	assert.Equal(t, "/tmp/x.db", cfg.DBPath)
	assert.Equal(t, 8080, cfg.Port)
}

func TestEnvOverridesFile(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, "params:\n  num_agents: 3\nport: 9000\n")

	t.Setenv("NUM_AGENTS", "7")
	t.Setenv("TURNS_PER_RUN", "20")
	t.Setenv("SWAP_FEE", "0.005")
	t.Setenv("POOL_RESERVE_B", "2500")
	t.Setenv("ARENA_SEED", "99")
	t.Setenv("LLM_API_KEY", "sk-env")
	t.Setenv("ARENA_ADMIN_KEY", "admin")
	t.Setenv("ARENA_PORT", "9100")
	t.Setenv("LOG_LEVEL", "warn")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 7, cfg.Params.NumAgents)
	assert.Equal(t, 20, cfg.Params.TurnsPerRun)
	assert.Equal(t, 0.005, cfg.Params.SwapFee)
	assert.Equal(t, 2500.0, cfg.Params.PoolReserveB)
	assert.Equal(t, int64(99), cfg.Params.Seed)
	assert.Equal(t, "sk-env", cfg.LLM.APIKey)
	assert.Equal(t, "admin", cfg.AdminKey)
	assert.Equal(t, 9100, cfg.Port)
	assert.Equal(t, "warn", cfg.LogLevel)
}

func TestBadEnvValue(t *testing.T) {
	clearEnv(t)
	t.Setenv("NUM_AGENTS", "lots")
	t.Setenv("SWAP_FEE", "cheap")

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "NUM_AGENTS")
	assert.Contains(t, err.Error(), "SWAP_FEE")
}

func TestLoadErrors(t *testing.T) {
	clearEnv(t)
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "reading config file")

	_, err = Load(writeFile(t, "params: [not, a, map]"))
	assert.ErrorContains(t, err, "parsing config file")
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Params.NumAgents = 0
	cfg.LLM.Provider = "carrier-pigeon"
	cfg.Port = 0
	cfg.LogLevel = "loud"

	err := cfg.Validate()
	require.Error(t, err)
	for _, want := range []string{"num_agents", "llm provider", "port", "log level"} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"", slog.LevelInfo},
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := ParseLevel("verbose")
	assert.Error(t, err)
}
