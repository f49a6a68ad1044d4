// Package config loads sigident settings from an optional YAML file and
// SIGIDENT_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Keys, as written in the YAML file. The environment variable of a key is
// SIGIDENT_ followed by the upper-cased key.
const (
	NegativeCacheWindowOpt = "negative_cache_window"
	NegativeCacheSizeOpt   = "negative_cache_size"
	MaxSignatureSizeOpt    = "max_signature_size"
	ConcurrencyOpt         = "concurrency"
	LogFileOpt             = "log_file"
	LogLevelOpt            = "log_level"
	DevModeOpt             = "dev_mode"
	TrustRootsOpt          = "trust_roots"
)

const (
	envPrefix = "sigident"

	defaultNegativeCacheWindow = time.Hour
	defaultNegativeCacheSize   = 4096
	defaultMaxSignatureSize    = 16 << 20
	defaultConcurrency         = 4
)

type Config struct {
	// NegativeCacheWindow is the bucket size of the negative result cache.
	NegativeCacheWindow time.Duration
	NegativeCacheSize   int
	// MaxSignatureSize bounds the signature block read from a file.
	MaxSignatureSize int64
	// Concurrency is the number of files ExtractAll works on at once.
	Concurrency int
	LogFile     string
	LogLevel    string
	DevMode     bool
	// TrustRoots is a PEM bundle of roots for the portable trust engine.
	// Empty means the system roots.
	TrustRoots string
}

// fileConfig is the YAML shape written by Save.
type fileConfig struct {
	NegativeCacheWindow string `yaml:"negative_cache_window"`
	NegativeCacheSize   int    `yaml:"negative_cache_size"`
	MaxSignatureSize    int64  `yaml:"max_signature_size"`
	Concurrency         int    `yaml:"concurrency"`
	LogFile             string `yaml:"log_file,omitempty"`
	LogLevel            string `yaml:"log_level,omitempty"`
	DevMode             bool   `yaml:"dev_mode"`
	TrustRoots          string `yaml:"trust_roots,omitempty"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		NegativeCacheWindow: defaultNegativeCacheWindow,
		NegativeCacheSize:   defaultNegativeCacheSize,
		MaxSignatureSize:    defaultMaxSignatureSize,
		Concurrency:         defaultConcurrency,
	}
}

// Load reads path, if it exists, and applies environment overrides on top of
// the defaults. An empty path reads only the environment.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()

	v.SetDefault(NegativeCacheWindowOpt, defaultNegativeCacheWindow)
	v.SetDefault(NegativeCacheSizeOpt, defaultNegativeCacheSize)
	v.SetDefault(MaxSignatureSizeOpt, defaultMaxSignatureSize)
	v.SetDefault(ConcurrencyOpt, defaultConcurrency)
	v.SetDefault(LogFileOpt, "")
	v.SetDefault(LogLevelOpt, "")
	v.SetDefault(DevModeOpt, false)
	v.SetDefault(TrustRootsOpt, "")

	if path != "" {
		configFile, err := os.Open(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, err
		default:
			defer configFile.Close()
			if err := v.ReadConfig(configFile); err != nil {
				return nil, fmt.Errorf("reading %s: %w", path, err)
			}
		}
	}

	cfg := &Config{
		NegativeCacheWindow: v.GetDuration(NegativeCacheWindowOpt),
		NegativeCacheSize:   v.GetInt(NegativeCacheSizeOpt),
		MaxSignatureSize:    v.GetInt64(MaxSignatureSizeOpt),
		Concurrency:         v.GetInt(ConcurrencyOpt),
		LogFile:             v.GetString(LogFileOpt),
		LogLevel:            v.GetString(LogLevelOpt),
		DevMode:             v.GetBool(DevModeOpt),
		TrustRoots:          v.GetString(TrustRootsOpt),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports every setting that is out of range.
func (c *Config) Validate() error {
	var errs []error
	if c.NegativeCacheWindow <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive, got %s", NegativeCacheWindowOpt, c.NegativeCacheWindow))
	}
	if c.NegativeCacheSize <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive, got %d", NegativeCacheSizeOpt, c.NegativeCacheSize))
	}
	if c.MaxSignatureSize <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive, got %d", MaxSignatureSizeOpt, c.MaxSignatureSize))
	}
	if c.Concurrency <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive, got %d", ConcurrencyOpt, c.Concurrency))
	}
	return errors.Join(errs...)
}

// Save writes c to path as YAML, creating the directory if needed.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(fileConfig{
		NegativeCacheWindow: c.NegativeCacheWindow.String(),
		NegativeCacheSize:   c.NegativeCacheSize,
		MaxSignatureSize:    c.MaxSignatureSize,
		Concurrency:         c.Concurrency,
		LogFile:             c.LogFile,
		LogLevel:            c.LogLevel,
		DevMode:             c.DevMode,
		TrustRoots:          c.TrustRoots,
	})
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
