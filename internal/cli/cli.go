// Package cli implements the ordpilot command-line interface.
package cli

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/ordlab/ordpilot/pkg/buildinfo"
	"github.com/ordlab/ordpilot/pkg/cache"
	"github.com/ordlab/ordpilot/pkg/config"
	"github.com/ordlab/ordpilot/pkg/errors"
	"github.com/ordlab/ordpilot/pkg/llm"
	"github.com/ordlab/ordpilot/pkg/pipeline"
	"github.com/ordlab/ordpilot/pkg/retrieval"
	"github.com/ordlab/ordpilot/pkg/validate"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// appName is the application name used for directories and display.
	appName = "ordpilot"
)

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger     *log.Logger
	ConfigPath string
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{
		Logger: log.NewWithOptions(w, log.Options{
			ReportTimestamp: true,
			TimeFormat:      "15:04:05.00",
			Level:           level,
		}),
	}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	var verbose bool

	root := &cobra.Command{
		Use:          appName,
		Short:        "Ordpilot generates validated circuit schematics from natural language",
		Long:         `Ordpilot is a CLI tool that turns natural-language circuit requests into validated ORD schematics through a generate-validate-repair loop, and ships the supporting tools to validate, repair, and visualize ORD source directly.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if verbose {
				c.SetLogLevel(log.DebugLevel)
			}
		},
	}

	root.SetVersionTemplate(buildinfo.Template())
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
	root.PersistentFlags().StringVar(&c.ConfigPath, "config", "", "config file (default: discover ordpilot.toml)")

	// Register all subcommands
	root.AddCommand(c.generateCommand())
	root.AddCommand(c.validateCommand())
	root.AddCommand(c.fixCommand())
	root.AddCommand(c.netlistCommand())
	root.AddCommand(c.examplesCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.workerCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// =============================================================================
// Runner Factory
// =============================================================================

// loadConfig builds the effective configuration for a command invocation.
func (c *CLI) loadConfig() (config.Config, error) {
	return config.Load(c.ConfigPath)
}

// newRunner creates a pipeline runner from the configuration. The validator
// runs in a separate worker process so a misbehaving candidate cannot take
// the CLI down with it.
func (c *CLI) newRunner(ctx context.Context, cfg config.Config, noCache bool) (*pipeline.Runner, error) {
	provider, err := newProvider(ctx, cfg)
	if err != nil {
		return nil, err
	}

	index, err := retrieval.LoadBuiltin()
	if err != nil {
		return nil, err
	}

	client := validate.NewClient("worker")
	client.Timeout = cfg.WorkerTimeout()
	client.MinGap = cfg.Pipeline.MinGap

	runner := pipeline.NewRunner(provider, client, index, c.Logger)
	runner.Options = cfg.PipelineOptions()
	runner.Cache, err = newCache(cfg, noCache)
	if err != nil {
		return nil, err
	}
	return runner, nil
}

// newProvider constructs the configured model provider.
func newProvider(ctx context.Context, cfg config.Config) (llm.Provider, error) {
	switch cfg.Provider.Name {
	case config.ProviderOllama:
		return llm.NewOllama(cfg.Provider.Endpoint, cfg.Provider.Model)
	case config.ProviderGemini:
		if cfg.Provider.APIKey == "" {
			return nil, errors.New(errors.ErrCodeInvalidConfig,
				"gemini requires an API key (set ORDPILOT_API_KEY or GEMINI_API_KEY)")
		}
		return llm.NewGemini(ctx, cfg.Provider.APIKey, cfg.Provider.Model)
	default:
		return nil, errors.New(errors.ErrCodeInvalidConfig, "unknown provider %q", cfg.Provider.Name)
	}
}

func newCache(cfg config.Config, noCache bool) (cache.Cache, error) {
	if noCache || cfg.Cache.Disabled {
		return cache.NewNullCache(), nil
	}
	dir := cfg.Cache.Dir
	if dir == "" {
		var err error
		if dir, err = cacheDir(); err != nil {
			return cache.NewNullCache(), nil
		}
	}
	return cache.NewFileCache(dir)
}

// =============================================================================
// Paths
// =============================================================================

// cacheDir returns the cache directory using XDG standard (~/.cache/ordpilot/).
func cacheDir() (string, error) {
	if cacheHome := os.Getenv("XDG_CACHE_HOME"); cacheHome != "" {
		return filepath.Join(cacheHome, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", appName), nil
}

// =============================================================================
// Flag Helpers
// =============================================================================

// parseTestParams parses repeated key=value flags into a parameter map.
func parseTestParams(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	params := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, errors.New(errors.ErrCodeInvalidInput, "test param %q is not key=value", pair)
		}
		params[key] = value
	}
	return params, nil
}
