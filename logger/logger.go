// Package logger is the diagnostics sink used by sigident. Diagnostics never
// influence results, so Logger methods return nothing.
package logger

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Logger interface {
	Error(message string, args ...any)
	Warning(message string, args ...any)
	Info(message string, args ...any)
	Debug(message string, args ...any)
}

// Config selects where and how much is logged.
type Config struct {
	// LogFile receives JSON lines in production mode. Empty means stderr.
	LogFile string
	// DevMode switches to zap's human-readable development output on stderr.
	DevMode bool
	// Level is a zap level name such as "debug" or "warn". Empty means warn,
	// or debug in development mode.
	Level string
}

type logger struct {
	zapLogger *zap.SugaredLogger
}

func (l *logger) Error(message string, args ...any) {
	l.zapLogger.Errorf(message, args...)
}

func (l *logger) Warning(message string, args ...any) {
	l.zapLogger.Warnf(message, args...)
}

func (l *logger) Info(message string, args ...any) {
	l.zapLogger.Infof(message, args...)
}

func (l *logger) Debug(message string, args ...any) {
	l.zapLogger.Debugf(message, args...)
}

// New builds a zap backed Logger from cfg.
func New(cfg Config) (Logger, error) {
	var loggerConfig zap.Config
	outputPaths := []string{}

	if cfg.DevMode {
		loggerConfig = zap.NewDevelopmentConfig()
		outputPaths = append(outputPaths, "stderr")
	} else {
		loggerConfig = zap.NewProductionConfig()
		loggerConfig.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
		if cfg.LogFile != "" {
			if err := os.MkdirAll(filepath.Dir(cfg.LogFile), 0o755); err != nil {
				return nil, err
			}
			outputPaths = append(outputPaths, cfg.LogFile)
		} else {
			outputPaths = append(outputPaths, "stderr")
		}
	}

	if cfg.Level != "" {
		level, err := zapcore.ParseLevel(cfg.Level)
		if err != nil {
			return nil, err
		}
		loggerConfig.Level = zap.NewAtomicLevelAt(level)
	}

	loggerConfig.OutputPaths = outputPaths
	loggerConfig.EncoderConfig.TimeKey = "timestamp"
	loggerConfig.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout(time.RFC3339)

	zLogger, err := loggerConfig.Build()
	if err != nil {
		return nil, err
	}

	return FromZap(zLogger), nil
}

// FromZap wraps an existing zap logger.
func FromZap(z *zap.Logger) Logger {
	return &logger{zapLogger: z.Sugar()}
}

// Default returns the production logger at warn level on stderr, or Nil if
// it cannot be built.
func Default() Logger {
	l, err := New(Config{})
	if err != nil {
		return Nil
	}
	return l
}

// Nil discards everything.
var Nil Logger = &NilLogger{}

type NilLogger struct{}

func (l *NilLogger) Error(message string, args ...any) {
}

func (l *NilLogger) Warning(message string, args ...any) {
}

func (l *NilLogger) Info(message string, args ...any) {
}

func (l *NilLogger) Debug(message string, args ...any) {
}

type TestLogger struct {
	T testing.TB
}

func (l *TestLogger) Error(message string, args ...any) {
	l.T.Logf(message, args...)
}

func (l *TestLogger) Warning(message string, args ...any) {
	l.T.Logf(message, args...)
}

func (l *TestLogger) Info(message string, args ...any) {
	l.T.Logf(message, args...)
}

func (l *TestLogger) Debug(message string, args ...any) {
	l.T.Logf(message, args...)
}
