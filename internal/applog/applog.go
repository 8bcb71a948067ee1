// Package applog wires the process-wide slog.Logger, combining the
// teacher's console+file tee (cmd/transcriber/main.go's slogReplaceAttr
// pattern) with mmp-vice's lumberjack-rotated file writer
// (pkg/log/log.go, SPEC_FULL's ambient stack section).
package applog

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Options configure the process logger.
type Options struct {
	Dir       string
	Level     slog.Level
	JSON      bool // production default; text in dev
	MaxSizeMB int
	MaxAgeDay int
}

func slogReplaceAttr(_ []string, a slog.Attr) slog.Attr {
	if a.Key == slog.SourceKey {
		source, ok := a.Value.Any().(*slog.Source)
		if ok && source.File != "" {
			source.File = filepath.Base(source.File)
		}
	}
	return a
}

// New builds a logger that writes to stdout and a rotated log file
// simultaneously.
func New(opts Options) (*slog.Logger, func() error, error) {
	if opts.Dir == "" {
		opts.Dir = "."
	}
	if opts.MaxSizeMB == 0 {
		opts.MaxSizeMB = 64
	}
	if opts.MaxAgeDay == 0 {
		opts.MaxAgeDay = 14
	}

	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("failed to create log dir: %w", err)
	}

	rotator := &lumberjack.Logger{
		Filename: filepath.Join(opts.Dir, "transcribe-api.log"),
		MaxSize:  opts.MaxSizeMB,
		MaxAge:   opts.MaxAgeDay,
		Compress: true,
	}

	w := io.MultiWriter(os.Stdout, rotator)
	handlerOpts := &slog.HandlerOptions{AddSource: true, Level: opts.Level, ReplaceAttr: slogReplaceAttr}

	var handler slog.Handler
	if opts.JSON {
		handler = slog.NewJSONHandler(w, handlerOpts)
	} else {
		handler = slog.NewTextHandler(w, handlerOpts)
	}

	logger := slog.New(handler).With("pid", os.Getpid(), "go", runtime.Version())
	return logger, rotator.Close, nil
}
