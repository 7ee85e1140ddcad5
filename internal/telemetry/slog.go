package telemetry

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/MiRedo238/Chemsphere-sub000/internal/config"
)

// logLevel backs the default handler so the level can change at runtime
// (config reload) without rebuilding the handler chain.
var logLevel = new(slog.LevelVar)

// ParseLevel maps a configuration string to a slog level; unknown values mean info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// SetupLogger installs the global slog default logger described by cfg.
//
// format: "json" gives a JSONHandler (production); anything else a TextHandler.
// output: "stdout" (default), "stderr", or "file", which writes to a
// lumberjack-rotated file at cfg.File.Path.
//
// The returned io.Closer releases the log file and is a no-op for the
// standard streams.
func SetupLogger(cfg config.LoggingConfig) io.Closer {
	logLevel.Set(ParseLevel(cfg.Level))

	out, closer := logOutput(cfg)
	opts := &slog.HandlerOptions{
		Level:     logLevel,
		AddSource: logLevel.Level() == slog.LevelDebug,
	}

	var handler slog.Handler
	if strings.ToLower(cfg.Format) == "json" {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
	}

	slog.SetDefault(slog.New(handler))
	slog.Info("logger initialised", "format", cfg.Format, "level", logLevel.Level().String(), "output", cfg.Output)
	return closer
}

// SetLogLevel changes the level of the installed default logger.
func SetLogLevel(level string) {
	lvl := ParseLevel(level)
	if logLevel.Level() == lvl {
		return
	}
	logLevel.Set(lvl)
	slog.Info("log level changed", "level", lvl.String())
}

func logOutput(cfg config.LoggingConfig) (io.Writer, io.Closer) {
	switch strings.ToLower(cfg.Output) {
	case "stderr":
		return os.Stderr, nopCloser{}
	case "file":
		lj := &lumberjack.Logger{
			Filename:   cfg.File.Path,
			MaxSize:    cfg.File.MaxSizeMB,
			MaxBackups: cfg.File.MaxBackups,
			MaxAge:     cfg.File.MaxAgeDays,
			Compress:   cfg.File.Compress,
		}
		return lj, lj
	default:
		return os.Stdout, nopCloser{}
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
