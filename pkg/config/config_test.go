package config

import (
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/ordlab/ordpilot/pkg/errors"
	"github.com/ordlab/ordpilot/pkg/pipeline"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Provider.Name != ProviderGemini || cfg.Pipeline.CircuitBudget != 3 {
		t.Errorf("defaults = %+v", cfg)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ordpilot.toml")
	content := `
[provider]
name = "ollama"
model = "qwen2.5-coder"

[pipeline]
circuit_budget = 5
min_gap = 3
temp_ladder = [0.0, 0.5, 1.0]

[redis]
addr = "localhost:6379"
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Provider.Name != ProviderOllama || cfg.Provider.Model != "qwen2.5-coder" {
		t.Errorf("provider = %+v", cfg.Provider)
	}
	if cfg.Pipeline.CircuitBudget != 5 || cfg.Pipeline.MinGap != 3 {
		t.Errorf("pipeline = %+v", cfg.Pipeline)
	}
	if !slices.Equal(cfg.Pipeline.TempLadder, []float64{0, 0.5, 1.0}) {
		t.Errorf("temp ladder = %v", cfg.Pipeline.TempLadder)
	}
	// Unset fields keep their defaults.
	if cfg.Pipeline.SpacingBudget != 2 || cfg.Server.Addr != ":8080" {
		t.Errorf("defaults lost: %+v", cfg)
	}
	if cfg.Redis.Addr != "localhost:6379" {
		t.Errorf("redis = %+v", cfg.Redis)
	}
}

func TestLoadMissingExplicitPath(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	if !errors.Is(err, errors.ErrCodeFileNotFound) {
		t.Fatalf("err = %v", err)
	}
}

func TestLoadMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ordpilot.toml")
	if err := os.WriteFile(path, []byte("[provider\nname="), 0600); err != nil {
		t.Fatal(err)
	}
	_, err := Load(path)
	if !errors.Is(err, errors.ErrCodeInvalidConfig) {
		t.Fatalf("err = %v", err)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("ORDPILOT_PROVIDER", "ollama")
	t.Setenv("ORDPILOT_MODEL", "llama3")
	t.Setenv("ORDPILOT_MIN_GAP", "4")
	t.Setenv("ORDPILOT_BASE_TEMPERATURE", "0.5")
	t.Setenv("ORDPILOT_TEMP_LADDER", "0, 0.4, 0.8, 1.2")
	t.Setenv("ORDPILOT_WORKER_TIMEOUT", "not-a-number")

	cfg := Default()
	applyEnv(&cfg)
	if cfg.Provider.Name != ProviderOllama || cfg.Provider.Model != "llama3" {
		t.Errorf("provider = %+v", cfg.Provider)
	}
	if cfg.Pipeline.MinGap != 4 || cfg.Pipeline.BaseTemperature != 0.5 {
		t.Errorf("pipeline = %+v", cfg.Pipeline)
	}
	if !slices.Equal(cfg.Pipeline.TempLadder, []float64{0, 0.4, 0.8, 1.2}) {
		t.Errorf("temp ladder = %v", cfg.Pipeline.TempLadder)
	}
	// Unparsable numeric overrides are ignored.
	if cfg.Validator.TimeoutSeconds != 45 {
		t.Errorf("timeout = %d", cfg.Validator.TimeoutSeconds)
	}
}

func TestEnvLadderIgnoresGarbage(t *testing.T) {
	t.Setenv("ORDPILOT_TEMP_LADDER", "0,warm,hot")

	cfg := Default()
	applyEnv(&cfg)
	if !slices.Equal(cfg.Pipeline.TempLadder, pipeline.DefaultTempLadder) {
		t.Errorf("temp ladder = %v", cfg.Pipeline.TempLadder)
	}
}

func TestGeminiKeyFallback(t *testing.T) {
	t.Setenv("ORDPILOT_API_KEY", "")
	t.Setenv("GEMINI_API_KEY", "from-gemini-env")

	cfg := Default()
	applyEnv(&cfg)
	if cfg.Provider.APIKey != "from-gemini-env" {
		t.Errorf("api key = %q", cfg.Provider.APIKey)
	}

	t.Setenv("ORDPILOT_API_KEY", "explicit")
	cfg = Default()
	applyEnv(&cfg)
	if cfg.Provider.APIKey != "explicit" {
		t.Errorf("api key = %q", cfg.Provider.APIKey)
	}
}

func TestValidateRejectsUnknownProvider(t *testing.T) {
	cfg := Default()
	cfg.Provider.Name = "gpt"
	if err := cfg.Validate(); !errors.Is(err, errors.ErrCodeInvalidConfig) {
		t.Fatalf("err = %v", err)
	}
}

func TestPipelineOptions(t *testing.T) {
	cfg := Default()
	cfg.Pipeline.CircuitBudget = 7
	cfg.Pipeline.BaseTemperature = 0.4
	cfg.Pipeline.TempLadder = []float64{0, 0.2}
	opts := cfg.PipelineOptions()
	if opts.CircuitBudget != 7 || opts.BaseTemperature != 0.4 {
		t.Errorf("options = %+v", opts)
	}
	if !slices.Equal(opts.TempLadder, []float64{0, 0.2}) {
		t.Errorf("options ladder = %v", opts.TempLadder)
	}
	if err := opts.ValidateAndSetDefaults(); err != nil {
		t.Fatal(err)
	}
}
