// Package logging wraps zap for the firmware core. Every logger obtained
// here is meant to be bound to a core id before use: in a multi-core
// system the first question a reader of a trace asks is "which core logged
// this", so ForCore makes that field unavoidable rather than optional.
package logging

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger wraps zap.Logger with core-scoped convenience constructors.
type Logger struct {
	*zap.Logger
}

// Config defines logger construction options.
type Config struct {
	Level       string // "debug", "info", "warn", "error"
	Development bool
	OutputPaths []string
}

// DefaultConfig is production logging: JSON, info level, stdout.
func DefaultConfig() Config {
	return Config{Level: "info", Development: false, OutputPaths: []string{"stdout"}}
}

// DevelopmentConfig is console-formatted, debug level, with stacktraces.
func DevelopmentConfig() Config {
	return Config{Level: "debug", Development: true, OutputPaths: []string{"stdout"}}
}

// New builds a Logger from Config.
func New(cfg Config) (*Logger, error) {
	level, err := parseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	zapCfg := zap.Config{
		Level:             zap.NewAtomicLevelAt(level),
		Development:       cfg.Development,
		Encoding:          encodingFormat(cfg.Development),
		EncoderConfig:     encoderConfig(cfg.Development),
		OutputPaths:       cfg.OutputPaths,
		ErrorOutputPaths:  []string{"stderr"},
		DisableCaller:     false,
		DisableStacktrace: !cfg.Development,
	}

	logger, err := zapCfg.Build()
	if err != nil {
		return nil, err
	}
	return &Logger{Logger: logger}, nil
}

// NewDefault builds a production logger, falling back to a no-op logger on
// construction failure (e.g. an unwritable output path) rather than
// panicking boot.
func NewDefault() *Logger {
	l, err := New(DefaultConfig())
	if err != nil {
		return &Logger{Logger: zap.NewNop()}
	}
	return l
}

// NewDevelopment builds a development logger with the same fallback.
func NewDevelopment() *Logger {
	l, err := New(DevelopmentConfig())
	if err != nil {
		return &Logger{Logger: zap.NewNop()}
	}
	return l
}

// ForCore returns a child logger with a "core" field bound, so every line
// it emits is traceable to the DSP core that produced it.
func (l *Logger) ForCore(core int) *Logger {
	return &Logger{Logger: l.Logger.With(zap.Int("core", core))}
}

// ForPipeline returns a child logger additionally scoped to a pipeline id.
func (l *Logger) ForPipeline(pipelineID uint32) *Logger {
	return &Logger{Logger: l.Logger.With(zap.Uint32("pipeline_id", pipelineID))}
}

func parseLevel(level string) (zapcore.Level, error) {
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return zapcore.InfoLevel, err
	}
	return l, nil
}

func encodingFormat(development bool) string {
	if development {
		return "console"
	}
	return "json"
}

func encoderConfig(development bool) zapcore.EncoderConfig {
	if development {
		return zapcore.EncoderConfig{
			TimeKey:        "T",
			LevelKey:       "L",
			NameKey:        "N",
			CallerKey:      "C",
			FunctionKey:    zapcore.OmitKey,
			MessageKey:     "M",
			StacktraceKey:  "S",
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeLevel:    zapcore.CapitalColorLevelEncoder,
			EncodeTime:     zapcore.ISO8601TimeEncoder,
			EncodeDuration: zapcore.StringDurationEncoder,
			EncodeCaller:   zapcore.ShortCallerEncoder,
		}
	}
	return zapcore.EncoderConfig{
		TimeKey:        "timestamp",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		FunctionKey:    zapcore.OmitKey,
		MessageKey:     "message",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.SecondsDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}
}

// IsProduction reports whether ENV indicates a production deployment.
func IsProduction() bool {
	env := os.Getenv("ENV")
	return env == "production" || env == "prod"
}

// IsDevelopment is the complement of IsProduction.
func IsDevelopment() bool {
	return !IsProduction()
}
