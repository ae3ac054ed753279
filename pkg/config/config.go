// Package config loads ordpilot configuration.
//
// Settings come from three layers, lowest precedence first: built-in
// defaults, an ordpilot.toml file, and ORDPILOT_* environment variables.
// The file is discovered in the working directory, then in
// $XDG_CONFIG_HOME/ordpilot/ (falling back to ~/.config/ordpilot/).
package config

import (
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/ordlab/ordpilot/pkg/errors"
	"github.com/ordlab/ordpilot/pkg/llm"
	"github.com/ordlab/ordpilot/pkg/pipeline"
	"github.com/ordlab/ordpilot/pkg/validate"
)

// FileName is the configuration file looked up during discovery.
const FileName = "ordpilot.toml"

// Provider names accepted in [provider].
const (
	ProviderGemini = "gemini"
	ProviderOllama = "ollama"
)

// Config is the full ordpilot configuration.
type Config struct {
	Provider  Provider  `toml:"provider"`
	Pipeline  Pipeline  `toml:"pipeline"`
	Validator Validator `toml:"validator"`
	Cache     Cache     `toml:"cache"`
	Server    Server    `toml:"server"`
	Redis     Redis     `toml:"redis"`
}

// Provider selects and configures the generation model.
type Provider struct {
	Name     string `toml:"name"`
	Model    string `toml:"model"`
	APIKey   string `toml:"api_key"`
	Endpoint string `toml:"endpoint"`
}

// Pipeline holds the generation loop budgets.
type Pipeline struct {
	CircuitBudget   int       `toml:"circuit_budget"`
	SpacingBudget   int       `toml:"spacing_budget"`
	MinGap          int       `toml:"min_gap"`
	BaseTemperature float64   `toml:"base_temperature"`
	TempLadder      []float64 `toml:"temp_ladder"`
	MaxTemperature  float64   `toml:"max_temperature"`
	ExampleCount    int       `toml:"example_count"`
}

// Validator configures the isolated validation worker.
type Validator struct {
	TimeoutSeconds int `toml:"timeout_seconds"`
}

// Cache configures outcome caching.
type Cache struct {
	Dir      string `toml:"dir"`
	Disabled bool   `toml:"disabled"`
}

// Server configures the HTTP API.
type Server struct {
	Addr string `toml:"addr"`
}

// Redis configures the shared session store. Sessions stay in memory when
// Addr is empty.
type Redis struct {
	Addr     string `toml:"addr"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Provider: Provider{
			Name:     ProviderGemini,
			Model:    llm.DefaultGeminiModel,
			Endpoint: llm.DefaultOllamaEndpoint,
		},
		Pipeline: Pipeline{
			CircuitBudget:  pipeline.DefaultCircuitBudget,
			SpacingBudget:  pipeline.DefaultSpacingBudget,
			MinGap:         validate.DefaultMinGap,
			TempLadder:     slices.Clone(pipeline.DefaultTempLadder),
			MaxTemperature: pipeline.DefaultMaxTemperature,
			ExampleCount:   pipeline.DefaultExampleCount,
		},
		Validator: Validator{
			TimeoutSeconds: int(validate.DefaultTimeout / time.Second),
		},
		Server: Server{Addr: ":8080"},
	}
}

// Load builds the effective configuration. If path is empty the file is
// discovered; a missing discovered file is fine, a missing explicit path is
// an error.
func Load(path string) (Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = discover()
	}
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := toml.Unmarshal(data, &cfg); err != nil {
				return cfg, errors.Wrap(errors.ErrCodeInvalidConfig, err, "parsing %s", path)
			}
		case explicit:
			return cfg, errors.Wrap(errors.ErrCodeFileNotFound, err, "reading config %s", path)
		}
	}

	applyEnv(&cfg)
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks the fields Load cannot default away.
func (c Config) Validate() error {
	switch c.Provider.Name {
	case ProviderGemini, ProviderOllama:
	default:
		return errors.New(errors.ErrCodeInvalidConfig,
			"unknown provider %q (want %s or %s)", c.Provider.Name, ProviderGemini, ProviderOllama)
	}
	if c.Validator.TimeoutSeconds <= 0 {
		return errors.New(errors.ErrCodeInvalidConfig, "validator timeout must be positive")
	}
	return nil
}

// PipelineOptions maps the configured budgets onto pipeline options.
func (c Config) PipelineOptions() pipeline.Options {
	return pipeline.Options{
		CircuitBudget:   c.Pipeline.CircuitBudget,
		SpacingBudget:   c.Pipeline.SpacingBudget,
		MinGap:          c.Pipeline.MinGap,
		BaseTemperature: c.Pipeline.BaseTemperature,
		TempLadder:      c.Pipeline.TempLadder,
		MaxTemperature:  c.Pipeline.MaxTemperature,
		ExampleCount:    c.Pipeline.ExampleCount,
	}
}

// WorkerTimeout returns the validator timeout as a duration.
func (c Config) WorkerTimeout() time.Duration {
	return time.Duration(c.Validator.TimeoutSeconds) * time.Second
}

func discover() string {
	if _, err := os.Stat(FileName); err == nil {
		return FileName
	}
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		dir = filepath.Join(home, ".config")
	}
	path := filepath.Join(dir, "ordpilot", FileName)
	if _, err := os.Stat(path); err == nil {
		return path
	}
	return ""
}

func applyEnv(cfg *Config) {
	setString := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setInt := func(key string, dst *int) {
		if v := os.Getenv(key); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}
	setFloat := func(key string, dst *float64) {
		if v := os.Getenv(key); v != "" {
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				*dst = f
			}
		}
	}

	setString("ORDPILOT_PROVIDER", &cfg.Provider.Name)
	setString("ORDPILOT_MODEL", &cfg.Provider.Model)
	setString("ORDPILOT_API_KEY", &cfg.Provider.APIKey)
	setString("ORDPILOT_ENDPOINT", &cfg.Provider.Endpoint)
	if cfg.Provider.APIKey == "" {
		cfg.Provider.APIKey = os.Getenv("GEMINI_API_KEY")
	}

	setInt("ORDPILOT_CIRCUIT_BUDGET", &cfg.Pipeline.CircuitBudget)
	setInt("ORDPILOT_SPACING_BUDGET", &cfg.Pipeline.SpacingBudget)
	setInt("ORDPILOT_MIN_GAP", &cfg.Pipeline.MinGap)
	setFloat("ORDPILOT_BASE_TEMPERATURE", &cfg.Pipeline.BaseTemperature)
	if ladder, ok := parseLadder(os.Getenv("ORDPILOT_TEMP_LADDER")); ok {
		cfg.Pipeline.TempLadder = ladder
	}
	setInt("ORDPILOT_WORKER_TIMEOUT", &cfg.Validator.TimeoutSeconds)

	setString("ORDPILOT_CACHE_DIR", &cfg.Cache.Dir)
	setString("ORDPILOT_ADDR", &cfg.Server.Addr)
	setString("ORDPILOT_REDIS_ADDR", &cfg.Redis.Addr)
}

// parseLadder parses a comma-separated list of temperature steps, e.g.
// "0,0.4,0.8". Like the other env overrides, an unparsable value is
// ignored rather than fatal.
func parseLadder(v string) ([]float64, bool) {
	if v == "" {
		return nil, false
	}
	var ladder []float64
	for _, part := range strings.Split(v, ",") {
		f, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return nil, false
		}
		ladder = append(ladder, f)
	}
	return ladder, true
}
