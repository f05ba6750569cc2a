// Package config loads arena settings from an optional YAML file, a .env
// file and environment variables, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cast"
	"gopkg.in/yaml.v3"

	"github.com/talgya/amm-arena/internal/engine"
	"github.com/talgya/amm-arena/internal/llm"
)

// DefaultFile is read when no explicit path is given and it exists.
const DefaultFile = "arena.yaml"

// Config is the complete arena configuration.
type Config struct {
	// Params are the engine constants applied to every run.
	Params engine.Params `yaml:"params"`

	// LLM selects the decision, summary and learning provider.
	// A blank API key disables it and every agent idles.
	LLM llm.Config `yaml:"llm"`

	// DBPath is the sqlite database file.
	DBPath string `yaml:"db_path"`

	// AdminKey gates POST /api/v1/runs. Empty disables the endpoint.
	AdminKey string `yaml:"admin_key"`

	// Port of the dashboard API.
	Port int `yaml:"port"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`

	// RandomOrgKey enables random.org run seeds.
	RandomOrgKey string `yaml:"random_org_api_key"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Params: engine.DefaultParams(),
		LLM: llm.Config{
			Provider: llm.ProviderAnthropic,
		},
		DBPath:   "data/arena.db",
		Port:     8080,
		LogLevel: "info",
	}
}

// Load builds the configuration: defaults, then the YAML file at path (or
// DefaultFile if path is empty and the file exists), then .env, then the
// process environment.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		if _, err := os.Stat(DefaultFile); err == nil {
			path = DefaultFile
		}
	}
	if path != "" {
		fileCfg, err := LoadFromFile(path)
		if err != nil {
			return nil, err
		}
		cfg = fileCfg
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("could not load .env file", "error", err)
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromFile reads a YAML file over the defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}
	cfg.LLM.APIKey = os.ExpandEnv(cfg.LLM.APIKey)
	return cfg, nil
}

// Validate checks the run parameters and the service settings.
func (c *Config) Validate() error {
	var errs []error
	if err := c.Params.Validate(); err != nil {
		errs = append(errs, err)
	}

	switch strings.ToLower(c.LLM.Provider) {
	case llm.ProviderOpenAI:
		if c.LLM.APIKey != "" && c.LLM.Model == "" {
			errs = append(errs, errors.New("llm model must be set for the openai provider"))
		}
	case "", llm.ProviderAnthropic:
	default:
		errs = append(errs, fmt.Errorf("invalid llm provider %q (valid: anthropic, openai)", c.LLM.Provider))
	}

	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port must be in [1, 65535], got %d", c.Port))
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if c.DBPath == "" {
		errs = append(errs, errors.New("db_path must be set"))
	}
	return errors.Join(errs...)
}

// ParseLevel maps a level name to a slog level. Empty means info.
func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if strings.TrimSpace(s) == "" {
		return slog.LevelInfo, nil
	}
	if err := l.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level %q (valid: debug, info, warn, error)", s)
	}
	return l, nil
}

func applyEnvOverrides(cfg *Config) error {
	var errs []error

	setInt := func(key string, dst *int) {
		if v, ok := lookup(key); ok {
			n, err := cast.ToIntE(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	setFloat := func(key string, dst *float64) {
		if v, ok := lookup(key); ok {
			f, err := cast.ToFloat64E(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = f
		}
	}
	setString := func(key string, dst *string) {
		if v, ok := lookup(key); ok {
			*dst = v
		}
	}

	p := &cfg.Params
	setInt("NUM_AGENTS", &p.NumAgents)
	setInt("TURNS_PER_RUN", &p.TurnsPerRun)
	setInt("TOTAL_RUNS", &p.TotalRuns)
	setFloat("INITIAL_TOKENS", &p.InitialTokens)
	setFloat("POOL_RESERVE_A", &p.PoolReserveA)
	setFloat("POOL_RESERVE_B", &p.PoolReserveB)
	setFloat("SWAP_FEE", &p.SwapFee)

	if v, ok := lookup("ARENA_SEED"); ok {
		seed, err := cast.ToInt64E(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("ARENA_SEED: %w", err))
		} else {
			p.Seed = seed
		}
	}

	setString("LLM_PROVIDER", &cfg.LLM.Provider)
	setString("LLM_API_KEY", &cfg.LLM.APIKey)
	setString("LLM_MODEL", &cfg.LLM.Model)
	setString("LLM_BASE_URL", &cfg.LLM.BaseURL)

	setString("ARENA_DB_PATH", &cfg.DBPath)
	setString("ARENA_ADMIN_KEY", &cfg.AdminKey)
	setInt("ARENA_PORT", &cfg.Port)
	setString("LOG_LEVEL", &cfg.LogLevel)
	setString("RANDOM_ORG_API_KEY", &cfg.RandomOrgKey)

	return errors.Join(errs...)
}

func lookup(key string) (string, bool) {
	v := strings.TrimSpace(os.Getenv(key))
	return v, v != ""
}
