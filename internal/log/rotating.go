package log

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Defaults for the rotating log file.
const (
	DefaultMaxSizeMB  = 20
	DefaultMaxBackups = 5
	DefaultMaxAgeDays = 30
)

// ErrEmptyLogPath is returned when a file sink is requested without a path.
var ErrEmptyLogPath = errors.New("log file path is empty")

// FileOptions configures a rotating log file.
type FileOptions struct {
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// DefaultFileOptions returns rotation settings for path.
func DefaultFileOptions(path string) FileOptions {
	return FileOptions{
		Path:       path,
		MaxSizeMB:  DefaultMaxSizeMB,
		MaxBackups: DefaultMaxBackups,
		MaxAgeDays: DefaultMaxAgeDays,
		Compress:   true,
	}
}

// NewRotatingWriter returns a size-rotated log file. The parent directory
// is created if needed.
func NewRotatingWriter(opts FileOptions) (io.WriteCloser, error) {
	if opts.Path == "" {
		return nil, ErrEmptyLogPath
	}
	if err := os.MkdirAll(filepath.Dir(opts.Path), 0o750); err != nil {
		return nil, err
	}
	return &lumberjack.Logger{
		Filename:   opts.Path,
		MaxSize:    opts.MaxSizeMB,
		MaxBackups: opts.MaxBackups,
		MaxAge:     opts.MaxAgeDays,
		Compress:   opts.Compress,
	}, nil
}

// nopCloser is returned when no file sink is open.
type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// NewLogger builds the application logger. Records go to w and, when
// logFile is set, to a rotating JSON log file as well. The returned
// Closer releases the file.
func NewLogger(w io.Writer, verbose bool, logFile string) (*slog.Logger, io.Closer, error) {
	if logFile == "" {
		return NewSecureLogger(w, verbose), nopCloser{}, nil
	}

	file, err := NewRotatingWriter(DefaultFileOptions(logFile))
	if err != nil {
		return nil, nil, err
	}

	opts := &slog.HandlerOptions{Level: levelFor(verbose)}
	handler := &fanoutHandler{handlers: []slog.Handler{
		slog.NewTextHandler(w, opts),
		slog.NewJSONHandler(file, opts),
	}}
	return slog.New(NewSecureHandler(handler)), file, nil
}

// fanoutHandler sends each record to every handler that accepts its level.
type fanoutHandler struct {
	handlers []slog.Handler
}

func (f *fanoutHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range f.handlers {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (f *fanoutHandler) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range f.handlers {
		if h.Enabled(ctx, r.Level) {
			errs = append(errs, h.Handle(ctx, r.Clone()))
		}
	}
	return errors.Join(errs...)
}

func (f *fanoutHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := make([]slog.Handler, len(f.handlers))
	for i, h := range f.handlers {
		next[i] = h.WithAttrs(attrs)
	}
	return &fanoutHandler{handlers: next}
}

func (f *fanoutHandler) WithGroup(name string) slog.Handler {
	next := make([]slog.Handler, len(f.handlers))
	for i, h := range f.handlers {
		next[i] = h.WithGroup(name)
	}
	return &fanoutHandler{handlers: next}
}
