package sigident

import (
	"fmt"
	"time"

	"github.com/spf13/afero"

	"github.com/mdean75/sigident/config"
	"github.com/mdean75/sigident/internal/negcache"
	"github.com/mdean75/sigident/logger"
)

// Option configures an Extractor. Pass options to New.
type Option interface {
	apply(*Extractor) error
}

// option is a concrete Option backed by a single function.
type option struct {
	f func(*Extractor) error
}

func (o *option) apply(e *Extractor) error {
	return o.f(e)
}

// WithLogger sets the diagnostics sink. Defaults to a zap production logger
// at warn level on stderr.
func WithLogger(l logger.Logger) Option {
	return &option{f: func(e *Extractor) error {
		if l == nil {
			return newConfigError("logger is nil")
		}
		e.log = l
		return nil
	}}
}

// WithTrustEngine replaces the platform trust engine.
func WithTrustEngine(engine TrustEngine) Option {
	return &option{f: func(e *Extractor) error {
		if engine == nil {
			return newConfigError("trust engine is nil")
		}
		e.engine = engine
		return nil
	}}
}

// WithFS reads files through fs. Defaults to the OS file system. The Windows
// trust engine always reads the OS file system.
func WithFS(fs afero.Fs) Option {
	return &option{f: func(e *Extractor) error {
		if fs == nil {
			return newConfigError("file system is nil")
		}
		e.fs = fs
		return nil
	}}
}

// WithClock sets the time source of the negative result cache. The Extractor
// then gets a private cache.
func WithClock(now func() time.Time) Option {
	return &option{f: func(e *Extractor) error {
		if now == nil {
			return newConfigError("clock is nil")
		}
		e.clock = now
		e.privateCache = true
		return nil
	}}
}

// WithNegativeCacheSize bounds the number of remembered failures. The
// Extractor then gets a private cache.
func WithNegativeCacheSize(n int) Option {
	return &option{f: func(e *Extractor) error {
		if n <= 0 {
			return newConfigError(fmt.Sprintf("negative cache size must be positive, got %d", n))
		}
		e.cacheSize = n
		e.privateCache = true
		return nil
	}}
}

// WithNegativeCacheWindow sets how long a failure stays quiet after it was
// reported. The Extractor then gets a private cache.
func WithNegativeCacheWindow(d time.Duration) Option {
	return &option{f: func(e *Extractor) error {
		if d < time.Millisecond {
			return newConfigError(fmt.Sprintf("negative cache window must be at least 1ms, got %s", d))
		}
		e.cacheWindow = d
		e.privateCache = true
		return nil
	}}
}

// WithMaxSignatureSize bounds the signature block read from a file. Larger
// blocks are treated as malformed.
func WithMaxSignatureSize(n int64) Option {
	return &option{f: func(e *Extractor) error {
		if n <= 0 {
			return newConfigError(fmt.Sprintf("max signature size must be positive, got %d", n))
		}
		e.maxSignatureSize = n
		return nil
	}}
}

// WithConcurrency sets how many files ExtractAll works on at once.
func WithConcurrency(n int) Option {
	return &option{f: func(e *Extractor) error {
		if n <= 0 {
			return newConfigError(fmt.Sprintf("concurrency must be positive, got %d", n))
		}
		e.concurrency = n
		return nil
	}}
}

// WithConfig applies loaded settings. Settings that differ from the built-in
// defaults override them, and a log file, level or dev mode builds a logger
// unless WithLogger is also given.
func WithConfig(cfg *config.Config) Option {
	return &option{f: func(e *Extractor) error {
		if cfg == nil {
			return newConfigError("config is nil")
		}
		if err := cfg.Validate(); err != nil {
			return wrapError(CodeInvalidConfiguration, "invalid config", err)
		}
		if cfg.NegativeCacheWindow != negcache.DefaultWindow {
			e.cacheWindow = cfg.NegativeCacheWindow
			e.privateCache = true
		}
		if cfg.NegativeCacheSize != negcache.DefaultSize {
			e.cacheSize = cfg.NegativeCacheSize
			e.privateCache = true
		}
		e.maxSignatureSize = cfg.MaxSignatureSize
		e.concurrency = cfg.Concurrency
		e.trustRoots = cfg.TrustRoots
		if cfg.LogFile != "" || cfg.LogLevel != "" || cfg.DevMode {
			l, err := logger.New(logger.Config{
				LogFile: cfg.LogFile,
				DevMode: cfg.DevMode,
				Level:   cfg.LogLevel,
			})
			if err != nil {
				return wrapError(CodeInvalidConfiguration, "building logger", err)
			}
			e.configLog = l
		}
		return nil
	}}
}
