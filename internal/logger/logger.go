package logger

import (
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger builds the process logger and installs it as zap's global, so
// packages can log through zap.L().Named(...). dev and local always log at
// debug level.
func NewLogger(env, logLevel string) (*zap.Logger, error) {
	encoder := zap.NewProductionEncoderConfig()
	encoder.EncodeTime = func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
		enc.AppendString(t.Format("2006-01-02 15:04:05"))
	}

	logger := zap.New(
		zapcore.NewCore(
			zapcore.NewConsoleEncoder(encoder),
			zapcore.AddSync(os.Stdout),
			Level(env, logLevel),
		),
	)
	zap.ReplaceGlobals(logger)
	return logger, nil
}

func Level(env, logLevel string) zapcore.Level {
	if env == "dev" || env == "local" {
		return zap.DebugLevel
	}
	switch strings.ToLower(logLevel) {
	case "debug":
		return zap.DebugLevel
	case "warn":
		return zap.WarnLevel
	case "error":
		return zap.ErrorLevel
	default:
		return zap.InfoLevel
	}
}
