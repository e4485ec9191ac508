package observability

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	pkgerrors "catalog/pkg/errors"
)

// NewLogger builds a zap logger. format is "json" or "console"; level is any
// zap level name.
func NewLogger(level, format string) (*zap.Logger, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}

	var cfg zap.Config
	if format == "console" {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)

	logger, err := cfg.Build()
	if err != nil {
		return nil, pkgerrors.NewInternal("building logger", err)
	}
	return logger, nil
}

// NewLoggerWithLevel builds a logger whose level can be changed at
// runtime, for config hot reload
func NewLoggerWithLevel(level, format string) (*zap.Logger, zap.AtomicLevel, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, zap.AtomicLevel{}, err
	}
	atomic := zap.NewAtomicLevelAt(lvl)

	var cfg zap.Config
	if format == "console" {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}
	cfg.Level = atomic

	logger, err := cfg.Build()
	if err != nil {
		return nil, zap.AtomicLevel{}, pkgerrors.NewInternal("building logger", err)
	}
	return logger, atomic, nil
}

// ParseLevel converts a level name to a zap level
func ParseLevel(level string) (zapcore.Level, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return zapcore.InfoLevel, pkgerrors.NewInvalidf("unknown log level %q", level)
	}
	return lvl, nil
}
