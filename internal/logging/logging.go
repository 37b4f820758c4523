// Package logging builds the zap logger used across notegraph.
package logging

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds logging configuration.
type Config struct {
	// Level is the minimum level to emit: debug, info, warn, error.
	Level string `koanf:"level"`
	// Format selects the encoder: "json" or "console".
	Format string `koanf:"format"`
	// Caller enables caller annotation on each entry.
	Caller bool `koanf:"caller"`
}

// NewDefaultConfig returns config with sensible defaults for CLI use.
func NewDefaultConfig() Config {
	return Config{
		Level:  "info",
		Format: "console",
		Caller: false,
	}
}

// New creates a zap logger from config. Output goes to stderr so command
// results on stdout stay machine-readable.
func New(cfg Config) (*zap.Logger, error) {
	level, err := LevelFromString(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("parsing log level %q: %w", cfg.Level, err)
	}

	core := zapcore.NewCore(
		newEncoder(cfg.Format),
		zapcore.Lock(os.Stderr),
		level,
	)

	opts := []zap.Option{}
	if cfg.Caller {
		opts = append(opts, zap.AddCaller())
	}

	return zap.New(core, opts...), nil
}

// newEncoder creates JSON or console encoder.
func newEncoder(format string) zapcore.Encoder {
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	if format == "console" {
		encoderCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		return zapcore.NewConsoleEncoder(encoderCfg)
	}
	return zapcore.NewJSONEncoder(encoderCfg)
}

// LevelFromString parses a string into a zapcore.Level.
func LevelFromString(level string) (zapcore.Level, error) {
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return zapcore.InfoLevel, err
	}
	return l, nil
}
