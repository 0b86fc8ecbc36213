package logger

import (
	"io"
	"log/slog"
	"os"

	"construction-safety-assistant/internal/config"
)

var Logger *slog.Logger

// InitLogger installs the process-wide JSON logger. Debug mode lowers the level
// and adds source locations.
func InitLogger(cfg *config.Config) {
	InitLoggerTo(os.Stdout, cfg.Debug || cfg.GinMode == "debug")
}

// InitLoggerTo is InitLogger with an explicit sink.
func InitLoggerTo(w io.Writer, debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}

	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:     level,
		AddSource: debug,
	})
	Logger = slog.New(handler)
	slog.SetDefault(Logger)

	Logger.Debug("Structured logging initialized", "level", level.String())
}

func Info(msg string, args ...any) {
	if Logger != nil {
		Logger.Info(msg, args...)
	}
}

func Error(msg string, args ...any) {
	if Logger != nil {
		Logger.Error(msg, args...)
	}
}

func Debug(msg string, args ...any) {
	if Logger != nil {
		Logger.Debug(msg, args...)
	}
}

func Warn(msg string, args ...any) {
	if Logger != nil {
		Logger.Warn(msg, args...)
	}
}
