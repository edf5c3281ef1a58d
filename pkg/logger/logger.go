package logger

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Logger interface {
	Info(msg string, values ...any)
	Warn(msg string, values ...any)
	Error(msg string, values ...any)
	Debug(msg string, values ...any)
	Panic(message string, values ...any)
	Fatal(error error, values ...any)
	Printf(format string, args ...interface{})
}

func init() {
	if err := Configure(os.Getenv("LOG_ENV"), os.Getenv("LOG_LEVEL")); err != nil {
		panic(err)
	}
}

// Configure rebuilds the package logger. "production" selects JSON output;
// anything else uses the console encoder. An unknown level keeps the preset.
func Configure(env, level string) error {
	config := zap.NewDevelopmentConfig()
	if env == "production" || env == "prod" {
		config = zap.NewProductionConfig()
	}
	if level != "" {
		l, err := zapcore.ParseLevel(level)
		if err != nil {
			return err
		}
		config.Level = zap.NewAtomicLevelAt(l)
	}
	_, err := NewLogger(config)
	return err
}

func Info(msg string, values ...any) {
	GetLogger().Info(msg, values...)
}

func Warn(msg string, values ...any) {
	GetLogger().Warn(msg, values...)
}

func Error(msg string, values ...any) {
	GetLogger().Error(msg, values...)
}

func Debug(msg string, values ...any) {
	GetLogger().Debug(msg, values...)
}

func Panic(msg string, values ...any) {
	GetLogger().Panic(msg, values...)
}

func Fatal(error error, values ...any) {
	GetLogger().Fatal(error, values...)
}

// Sync flushes buffered entries; call it once before the process exits.
func Sync() {
	_ = GetLogger().log.Sync()
}
