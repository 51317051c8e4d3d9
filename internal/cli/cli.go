// Package cli implements the cbzkit command-line interface.
package cli

import (
	"context"
	"io"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/cbzkit/internal/config"
	"github.com/matzehuels/cbzkit/internal/metrics"
	"github.com/matzehuels/cbzkit/pkg/buildinfo"
	"github.com/matzehuels/cbzkit/pkg/cache"
	"github.com/matzehuels/cbzkit/pkg/observability"
	"github.com/matzehuels/cbzkit/pkg/pipeline"
)

// =============================================================================
// Constants
// =============================================================================

// appName is the binary name used in help text and directories.
const appName = config.AppName

// keyScope prefixes every cache key. Bump it when the cached manifest
// layout changes so old entries are never read back.
const keyScope = "v1:"

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
	Logger *log.Logger
	// Config is loaded before every command runs. Global flags are already
	// applied to it.
	Config *config.Config

	flags   globalFlags
	metrics *metrics.Metrics
}

type globalFlags struct {
	configPath  string
	workers     int
	noCache     bool
	metricsFile string
	noProgress  bool
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{
		Logger: newLogger(w, level),
		Config: config.Default(),
	}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   appName,
		Short: "cbzkit builds CBZ comic archives",
		Long: `cbzkit packs loose images, merges existing archives and converts pdf,
epub, mobi and azw3 books into CBZ archives, optionally splitting
landscape spreads and adjusting contrast, brightness and blur on the way.`,
		Version:           buildinfo.Version,
		SilenceUsage:      true,
		PersistentPreRunE: c.setup,
	}

	root.SetVersionTemplate(buildinfo.Template())

	pf := root.PersistentFlags()
	pf.StringVar(&c.flags.configPath, "config", "", "config file (default $XDG_CONFIG_HOME/cbzkit/config.toml)")
	pf.IntVarP(&c.flags.workers, "workers", "j", 0, "transform workers (default: number of CPUs)")
	pf.BoolVar(&c.flags.noCache, "no-cache", false, "disable the decoded-page cache")
	pf.StringVar(&c.flags.metricsFile, "metrics-file", "", "write prometheus metrics to this textfile when the command ends")
	pf.BoolVar(&c.flags.noProgress, "no-progress", false, "disable progress bars and spinners")

	root.AddCommand(c.packCommand())
	root.AddCommand(c.mergeCommand())
	root.AddCommand(c.convertCommand())
	root.AddCommand(c.inspectCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// setup loads the config, applies the global flags on top of it and
// installs metrics when a textfile is configured.
func (c *CLI) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(c.flags.configPath)
	if err != nil {
		return err
	}
	if c.flags.workers != 0 {
		cfg.Workers = c.flags.workers
	}
	if c.flags.noCache {
		cfg.Cache.Backend = config.CacheNone
	}
	if c.flags.metricsFile != "" {
		cfg.Metrics.File = c.flags.metricsFile
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	c.Config = cfg

	if cfg.Metrics.File != "" && c.metrics == nil {
		c.metrics = metrics.New()
		c.metrics.Install()
	}

	c.Logger.Debug("config loaded", "workers", cfg.Workers, "cache", cfg.Cache.Backend, "reading_order", cfg.ReadingOrder)
	cmd.SetContext(withLogger(cmd.Context(), c.Logger))
	return nil
}

// Close writes the metrics textfile, if one is configured. It runs after
// the command whether or not it failed.
func (c *CLI) Close() error {
	if c.metrics == nil {
		return nil
	}
	defer observability.Reset()
	if err := c.metrics.WriteTextfile(c.Config.Metrics.File); err != nil {
		return err
	}
	c.Logger.Debug("metrics written", "file", c.Config.Metrics.File)
	return nil
}

// =============================================================================
// Runner Factory
// =============================================================================

// newRunner creates a pipeline runner for CLI use. Only convert reads the
// cache, so the other commands pass withCache=false and never connect to
// a cache backend.
func (c *CLI) newRunner(ctx context.Context, withCache bool) *pipeline.Runner {
	var store cache.Cache = cache.NewNullCache()
	if withCache {
		s, err := c.newCache(ctx)
		if err != nil {
			c.Logger.Warn("cache disabled", "backend", c.Config.Cache.Backend, "err", err)
		} else {
			store = s
		}
	}
	return pipeline.NewRunner(store, cache.NewScopedKeyer(nil, keyScope), c.Logger)
}

// newCache opens the configured cache backend.
func (c *CLI) newCache(ctx context.Context) (cache.Cache, error) {
	switch c.Config.Cache.Backend {
	case config.CacheNone:
		return cache.NewNullCache(), nil
	case config.CacheRedis:
		return cache.NewRedisCache(ctx, c.Config.Cache.RedisURL, c.Config.Cache.RedisPrefix)
	}
	dir, err := c.Config.CacheDir()
	if err != nil {
		return nil, err
	}
	return cache.NewFileCache(dir)
}
