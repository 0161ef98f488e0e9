package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds the process logger at the given level.
func New(level string, development bool) (*zap.Logger, error) {
	zapLevel, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}

	config := zap.NewProductionConfig()
	if development {
		config = zap.NewDevelopmentConfig()
	}
	config.Level = zap.NewAtomicLevelAt(zapLevel)

	logger, err := config.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return logger, nil
}

// Reporter is the single sink for failures that are logged and otherwise ignored.
// Callers keep their prior state when Failed returns true.
type Reporter struct {
	logger *zap.Logger
}

// NewReporter wraps logger. A nil logger discards reports.
func NewReporter(logger *zap.Logger) *Reporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reporter{logger: logger.WithOptions(zap.AddCallerSkip(1))}
}

// Failed logs err under op and reports whether there was an error at all.
func (r *Reporter) Failed(op string, err error, fields ...zap.Field) bool {
	if err == nil {
		return false
	}
	r.logger.Warn(op+" failed", append(fields, zap.Error(err))...)
	return true
}
