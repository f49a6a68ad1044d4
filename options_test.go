package sigident

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mdean75/sigident/config"
	"github.com/mdean75/sigident/logger"
)

func TestNew_InvalidOptions(t *testing.T) {
	_, err := New(
		nil,
		WithLogger(nil),
		WithTrustEngine(nil),
		WithFS(nil),
		WithClock(nil),
		WithNegativeCacheSize(0),
		WithNegativeCacheWindow(time.Microsecond),
		WithMaxSignatureSize(-1),
		WithConcurrency(0),
		WithConfig(nil),
	)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidConfiguration)

	for _, msg := range []string{
		"option is nil",
		"logger is nil",
		"trust engine is nil",
		"file system is nil",
		"clock is nil",
		"negative cache size must be positive, got 0",
		"negative cache window must be at least 1ms, got 1µs",
		"max signature size must be positive, got -1",
		"concurrency must be positive, got 0",
		"config is nil",
	} {
		assert.Contains(t, err.Error(), msg)
	}
}

func TestNew_SharedCache(t *testing.T) {
	engine := &countingEngine{}

	a, err := New(WithLogger(logger.Nil), WithTrustEngine(engine))
	require.NoError(t, err)
	b, err := New(WithLogger(logger.Nil), WithTrustEngine(engine), WithConcurrency(8))
	require.NoError(t, err)
	assert.Same(t, a.cache, b.cache)

	c, err := New(WithLogger(logger.Nil), WithTrustEngine(engine), WithNegativeCacheWindow(time.Minute))
	require.NoError(t, err)
	assert.NotSame(t, a.cache, c.cache)
	assert.Equal(t, time.Minute, c.cache.Window())
}

func TestWithConfig(t *testing.T) {
	cfg := config.Default()
	cfg.NegativeCacheWindow = 2 * time.Hour
	cfg.MaxSignatureSize = 1 << 10
	cfg.Concurrency = 3

	e, err := New(WithConfig(cfg), WithLogger(logger.Nil), WithTrustEngine(&countingEngine{}))
	require.NoError(t, err)
	assert.Equal(t, 2*time.Hour, e.cache.Window())
	assert.NotSame(t, sharedCache, e.cache)
	assert.Equal(t, int64(1<<10), e.maxSignatureSize)
	assert.Equal(t, 3, e.concurrency)
}

func TestWithConfig_DefaultsKeepSharedCache(t *testing.T) {
	e, err := New(WithConfig(config.Default()), WithLogger(logger.Nil), WithTrustEngine(&countingEngine{}))
	require.NoError(t, err)
	assert.Same(t, sharedCache, e.cache)
}

func TestWithConfig_Logger(t *testing.T) {
	cfg := config.Default()
	cfg.LogLevel = "debug"

	e, err := New(WithConfig(cfg), WithTrustEngine(&countingEngine{}))
	require.NoError(t, err)
	assert.Same(t, e.configLog, e.log)

	e, err = New(WithConfig(cfg), WithLogger(logger.Nil), WithTrustEngine(&countingEngine{}))
	require.NoError(t, err)
	assert.Equal(t, logger.Nil, e.log)
}

func TestWithConfig_Invalid(t *testing.T) {
	cfg := config.Default()
	cfg.Concurrency = 0

	_, err := New(WithConfig(cfg), WithTrustEngine(&countingEngine{}))
	assert.ErrorIs(t, err, ErrInvalidConfiguration)

	cfg = config.Default()
	cfg.LogLevel = "chatty"
	_, err = New(WithConfig(cfg), WithTrustEngine(&countingEngine{}))
	assert.ErrorIs(t, err, ErrInvalidConfiguration)
}

func TestError(t *testing.T) {
	err := wrapError(CodeInvalidConfiguration, "loading trust roots", errors.New("boom"))
	assert.ErrorIs(t, err, ErrInvalidConfiguration)
	assert.NotErrorIs(t, err, &Error{Code: ErrorCode(99)})
	assert.Contains(t, err.Error(), "boom")
	assert.Equal(t, "InvalidConfiguration", CodeInvalidConfiguration.String())
	assert.Equal(t, "Unknown", ErrorCode(0).String())
}
