package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/georgemunganga/shopledger/internal/platform/config"
)

// New builds the process logger: a development console logger when running
// locally, JSON production output otherwise. Extra cores, such as the OTLP
// log bridge, receive every entry as well.
func New(cfg *config.Config, extra ...zapcore.Core) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL %q: %w", cfg.LogLevel, err)
	}

	var zc zap.Config
	if cfg.IsDevelopment() {
		zc = zap.NewDevelopmentConfig()
	} else {
		zc = zap.NewProductionConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)

	logger, err := zc.Build(zap.Fields(
		zap.String("service", config.ServiceName),
		zap.String("version", config.ServiceVersion),
	))
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	if len(extra) > 0 {
		cores := make([]zapcore.Core, 0, len(extra))
		for _, c := range extra {
			cores = append(cores, atLevel(c, level))
		}
		logger = logger.WithOptions(zap.WrapCore(func(c zapcore.Core) zapcore.Core {
			return zapcore.NewTee(append([]zapcore.Core{c}, cores...)...)
		}))
	}
	return logger, nil
}

// atLevel raises c to the process level. A core already stricter than level
// is returned unchanged.
func atLevel(c zapcore.Core, level zapcore.Level) zapcore.Core {
	raised, err := zapcore.NewIncreaseLevelCore(c, level)
	if err != nil {
		return c
	}
	return raised
}
