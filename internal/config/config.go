// Package config loads cbzkit defaults from a TOML file and the
// environment.
//
// Precedence, lowest first: built-in defaults, the config file
// ($XDG_CONFIG_HOME/cbzkit/config.toml), CBZKIT_* environment variables
// (a .env file in the working directory is loaded first), command-line
// flags. Flags are applied by the CLI.
//
//	reading_order = "rtl"
//	workers = 4
//	compression_level = 6
//
//	[cache]
//	backend = "redis"
//	redis_url = "redis://localhost:6379/0"
//
//	[metrics]
//	file = "/var/lib/node_exporter/cbzkit.prom"
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	cbzerrors "github.com/matzehuels/cbzkit/pkg/errors"
	"github.com/matzehuels/cbzkit/pkg/transform"
)

// AppName names the config and cache directories.
const AppName = "cbzkit"

// EnvPrefix prefixes every environment override.
const EnvPrefix = "CBZKIT_"

// Cache backends.
const (
	CacheFile  = "file"
	CacheRedis = "redis"
	CacheNone  = "none"
)

// Config holds user defaults for every command.
type Config struct {
	ReadingOrder string `toml:"reading_order"`
	Workers      int    `toml:"workers"`
	// CompressionLevel deflates entries when set; nil stores them.
	CompressionLevel *int   `toml:"compression_level"`
	Outdir           string `toml:"outdir"`
	DPI              int    `toml:"dpi"`

	Cache   CacheConfig   `toml:"cache"`
	Metrics MetricsConfig `toml:"metrics"`
}

// CacheConfig selects the decoded-page cache backend.
type CacheConfig struct {
	Backend     string `toml:"backend"`
	Dir         string `toml:"dir"`
	RedisURL    string `toml:"redis_url"`
	RedisPrefix string `toml:"redis_prefix"`
}

// MetricsConfig configures the prometheus textfile export.
type MetricsConfig struct {
	File string `toml:"file"`
}

// Default returns the built-in defaults.
func Default() *Config {
	return &Config{
		ReadingOrder: string(transform.DefaultReadingOrder),
		Cache:        CacheConfig{Backend: CacheFile},
	}
}

// Load builds the effective configuration. An empty path means the
// default location, which may be missing; an explicit path must exist.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := Default()
	explicit := path != ""
	if !explicit {
		if dir, err := ConfigDir(); err == nil {
			path = filepath.Join(dir, "config.toml")
		}
	}
	if path != "" {
		if err := cfg.readFile(path, explicit); err != nil {
			return nil, err
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) readFile(path string, mustExist bool) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) && !mustExist {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	md, err := toml.Decode(string(data), c)
	if err != nil {
		return cbzerrors.Wrap(cbzerrors.ErrCodeInvalidInput, err, "parse %s", path)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return cbzerrors.New(cbzerrors.ErrCodeInvalidInput, "%s: unknown keys %s", path, strings.Join(keys, ", "))
	}
	return nil
}

// applyEnv overlays CBZKIT_* variables read through lookup.
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(EnvPrefix + name); ok {
			*dst = v
		}
	}
	num := func(name string, set func(int)) error {
		v, ok := lookup(EnvPrefix + name)
		if !ok || v == "" {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return cbzerrors.New(cbzerrors.ErrCodeInvalidInput, "%s%s: %q is not a number", EnvPrefix, name, v)
		}
		set(n)
		return nil
	}

	str("READING_ORDER", &c.ReadingOrder)
	str("OUTDIR", &c.Outdir)
	str("CACHE", &c.Cache.Backend)
	str("CACHE_DIR", &c.Cache.Dir)
	str("REDIS_URL", &c.Cache.RedisURL)
	str("REDIS_PREFIX", &c.Cache.RedisPrefix)
	str("METRICS_FILE", &c.Metrics.File)
	if err := num("WORKERS", func(n int) { c.Workers = n }); err != nil {
		return err
	}
	if err := num("DPI", func(n int) { c.DPI = n }); err != nil {
		return err
	}
	return num("COMPRESSION_LEVEL", func(n int) { c.CompressionLevel = &n })
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if _, err := transform.ParseReadingOrder(c.ReadingOrder); err != nil {
		return err
	}
	if err := cbzerrors.ValidateWorkers(c.Workers); err != nil {
		return err
	}
	if c.CompressionLevel != nil {
		if err := cbzerrors.ValidateCompressionLevel(*c.CompressionLevel); err != nil {
			return err
		}
	}
	if c.DPI < 0 {
		return cbzerrors.New(cbzerrors.ErrCodeInvalidInput, "dpi must be positive, got %d", c.DPI)
	}
	switch c.Cache.Backend {
	case CacheFile, CacheNone:
	case CacheRedis:
		if c.Cache.RedisURL == "" {
			return cbzerrors.New(cbzerrors.ErrCodeInvalidInput, "cache backend redis needs cache.redis_url")
		}
	default:
		return cbzerrors.New(cbzerrors.ErrCodeInvalidInput, "unknown cache backend %q (file, redis, none)", c.Cache.Backend)
	}
	return nil
}

// =============================================================================
// Paths
// =============================================================================

// ConfigDir returns $XDG_CONFIG_HOME/cbzkit, or ~/.config/cbzkit.
func ConfigDir() (string, error) {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, AppName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", AppName), nil
}

// CacheDir returns the file cache directory: cache.dir when set, else
// $XDG_CACHE_HOME/cbzkit, else ~/.cache/cbzkit.
func (c *Config) CacheDir() (string, error) {
	if c.Cache.Dir != "" {
		return c.Cache.Dir, nil
	}
	if dir := os.Getenv("XDG_CACHE_HOME"); dir != "" {
		return filepath.Join(dir, AppName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", AppName), nil
}
