// Package logging provides the structured logger used throughout the
// scanning engine, wrapping zap the same way the quantmind gendocs example
// wraps it: JSON to a log file, colorized console to stderr, both tee'd
// into one core.
package logging

import (
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Field is an alias for zap.Field so callers don't import zap directly.
type Field = zap.Field

var (
	String   = zap.String
	Int      = zap.Int
	Int64    = zap.Int64
	Float64  = zap.Float64
	Bool     = zap.Bool
	Any      = zap.Any
	Error    = zap.Error
	Duration = zap.Duration
)

// LevelFromString converts a config string level to a zapcore.Level.
func LevelFromString(level string) zapcore.Level {
	switch level {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// Logger wraps zap.Logger with the engine's logging conventions.
type Logger struct {
	zap *zap.Logger
}

// Config holds logger construction options.
type Config struct {
	LogDir         string
	FileLevel      zapcore.Level
	ConsoleLevel   zapcore.Level
	ConsoleEnabled bool
}

// DefaultConfig returns sane defaults for interactive CLI use.
func DefaultConfig(dataDir string) *Config {
	return &Config{
		LogDir:         filepath.Join(dataDir, "logs"),
		FileLevel:      zapcore.InfoLevel,
		ConsoleLevel:   zapcore.WarnLevel,
		ConsoleEnabled: true,
	}
}

// New constructs a Logger writing JSON lines to <LogDir>/avscan.log and,
// if enabled, human-readable lines to stderr.
func New(cfg *Config) (*Logger, error) {
	if cfg == nil {
		cfg = DefaultConfig(".")
	}
	if err := os.MkdirAll(cfg.LogDir, 0o755); err != nil {
		return nil, err
	}

	fileEncCfg := zap.NewProductionEncoderConfig()
	fileEncCfg.TimeKey = "timestamp"
	fileEncCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	fileEncoder := zapcore.NewJSONEncoder(fileEncCfg)

	logFile := filepath.Join(cfg.LogDir, "avscan.log")
	file, err := os.OpenFile(logFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	fileWriter := zapcore.AddSync(file)

	var core zapcore.Core
	if cfg.ConsoleEnabled {
		consoleEncCfg := zap.NewDevelopmentEncoderConfig()
		consoleEncCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		consoleEncCfg.EncodeTime = zapcore.ISO8601TimeEncoder
		consoleEncoder := zapcore.NewConsoleEncoder(consoleEncCfg)
		consoleWriter := zapcore.AddSync(os.Stderr)

		core = zapcore.NewTee(
			zapcore.NewCore(fileEncoder, fileWriter, cfg.FileLevel),
			zapcore.NewCore(consoleEncoder, consoleWriter, cfg.ConsoleLevel),
		)
	} else {
		core = zapcore.NewCore(fileEncoder, fileWriter, cfg.FileLevel)
	}

	return &Logger{zap: zap.New(core, zap.AddStacktrace(zapcore.ErrorLevel))}, nil
}

// Nop returns a logger that discards everything, for tests.
func Nop() *Logger { return &Logger{zap: zap.NewNop()} }

func (l *Logger) Debug(msg string, fields ...Field) { l.zap.Debug(msg, fields...) }
func (l *Logger) Info(msg string, fields ...Field)  { l.zap.Info(msg, fields...) }
func (l *Logger) Warn(msg string, fields ...Field)  { l.zap.Warn(msg, fields...) }
func (l *Logger) Error(msg string, fields ...Field) { l.zap.Error(msg, fields...) }
func (l *Logger) Sync() error                       { return l.zap.Sync() }
func (l *Logger) With(fields ...Field) *Logger      { return &Logger{zap: l.zap.With(fields...)} }
func (l *Logger) Named(name string) *Logger         { return &Logger{zap: l.zap.Named(name)} }
