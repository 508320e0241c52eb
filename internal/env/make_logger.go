package env

import (
	"os"

	zap "go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func MakeLogger() (*zap.Logger, error) {
	logConfig := zap.NewProductionConfig()
	logConfig.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	logConfig.Encoding = "json"

	// COURIER_LOG_LEVEL is read here rather than through Config so the
	// logger can exist before configuration loads.
	if raw := os.Getenv("COURIER_LOG_LEVEL"); raw != "" {
		level, err := zapcore.ParseLevel(raw)
		if err != nil {
			return nil, err
		}

		logConfig.Level = zap.NewAtomicLevelAt(level)
	}

	return logConfig.Build()
}
