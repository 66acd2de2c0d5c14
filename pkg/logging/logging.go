// Package logging sets up the structured slog logger shared across the
// pipeline, writing to stdout and, when a file path is configured, to a
// rotating log file as well.
package logging

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Config tunes the logger's destination and verbosity.
type Config struct {
	// Level is one of debug, info, warn, error. Empty defaults to info.
	Level string
	// FilePath is the rotating log file's path. Empty disables file
	// logging; logs still go to stdout.
	FilePath string
	// MaxSizeMB is the log file's rotation threshold.
	MaxSizeMB int
	// MaxBackups is how many rotated files lumberjack retains.
	MaxBackups int
}

func (c Config) withDefaults() Config {
	if c.Level == "" {
		c.Level = "info"
	}
	if c.MaxSizeMB == 0 {
		c.MaxSizeMB = 32
	}
	if c.MaxBackups == 0 {
		c.MaxBackups = 3
	}
	return c
}

func levelFromString(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// New builds a slog.Logger writing to stdout and, if cfg.FilePath is set,
// to a lumberjack-rotated file. It does not call slog.SetDefault; callers
// decide whether this logger becomes the process default.
func New(cfg Config) *slog.Logger {
	cfg = cfg.withDefaults()

	var w io.Writer = os.Stdout
	if cfg.FilePath != "" {
		rotated := &lumberjack.Logger{
			Filename:   cfg.FilePath,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
		}
		w = io.MultiWriter(os.Stdout, rotated)
	}

	handler := slog.NewTextHandler(w, &slog.HandlerOptions{
		AddSource:   true,
		Level:       levelFromString(cfg.Level),
		ReplaceAttr: replaceAttr,
	})

	return slog.New(handler)
}

// replaceAttr trims source file paths down to "dir/file.go", matching the
// teacher's convention of dropping the rest of the module path noise from
// every log line.
func replaceAttr(_ []string, a slog.Attr) slog.Attr {
	if a.Key != slog.SourceKey {
		return a
	}

	source, ok := a.Value.Any().(*slog.Source)
	if !ok || source == nil {
		return a
	}

	if source.File == "" {
		if pc, file, line, ok := runtime.Caller(7); ok {
			if f := runtime.FuncForPC(pc); f != nil {
				source.File = filepath.Base(filepath.Dir(file)) + "/" + filepath.Base(file)
				source.Line = line
			}
		}
		return a
	}

	source.File = filepath.Base(filepath.Dir(source.File)) + "/" + filepath.Base(source.File)
	return a
}
