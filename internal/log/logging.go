// Package log builds the process slog.Logger and the raw frame tracer.
//
// Without a log file, records below error go to stdout and errors to
// stderr. With a log file, stderr gets everything and the file a copy.
package log

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"golang.org/x/term"
)

// LevelTrace is below Debug and enables raw frame tracing on stdout.
const LevelTrace slog.Level = -8

var levels = map[string]slog.Level{
	"trace": LevelTrace,
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

// ParseLevel maps a level name to its slog.Level. Unknown names are info.
func ParseLevel(s string) slog.Level {
	if l, ok := levels[s]; ok {
		return l
	}
	return slog.LevelInfo
}

// band routes records whose level lies in [lo, hi) to h.
type band struct {
	lo, hi slog.Level
	h      slog.Handler
}

func (b band) accepts(l slog.Level) bool { return l >= b.lo && l < b.hi }

// router sends each record to every band accepting its level.
type router []band

func (r router) Enabled(ctx context.Context, l slog.Level) bool {
	for _, b := range r {
		if b.accepts(l) && b.h.Enabled(ctx, l) {
			return true
		}
	}
	return false
}

func (r router) Handle(ctx context.Context, rec slog.Record) error {
	var errs []error
	for _, b := range r {
		if b.accepts(rec.Level) && b.h.Enabled(ctx, rec.Level) {
			errs = append(errs, b.h.Handle(ctx, rec.Clone()))
		}
	}
	return errors.Join(errs...)
}

func (r router) WithAttrs(attrs []slog.Attr) slog.Handler {
	return r.derive(func(h slog.Handler) slog.Handler { return h.WithAttrs(attrs) })
}

func (r router) WithGroup(name string) slog.Handler {
	return r.derive(func(h slog.Handler) slog.Handler { return h.WithGroup(name) })
}

func (r router) derive(f func(slog.Handler) slog.Handler) router {
	out := make(router, len(r))
	for i, b := range r {
		out[i] = band{lo: b.lo, hi: b.hi, h: f(b.h)}
	}
	return out
}

const (
	minLevel slog.Level = -1 << 10
	maxLevel slog.Level = 1 << 10
)

// newHandler encodes records as "text" or "json". "auto" picks text on a
// terminal and JSON otherwise.
func newHandler(format string, w io.Writer, level slog.Level) (slog.Handler, error) {
	opts := &slog.HandlerOptions{Level: level}
	if format == "auto" || format == "" {
		format = "json"
		if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
			format = "text"
		}
	}
	switch format {
	case "text":
		return slog.NewTextHandler(w, opts), nil
	case "json":
		return slog.NewJSONHandler(w, opts), nil
	}
	return nil, fmt.Errorf("unknown log format %q", format)
}

// SetupLogger returns the process logger and the files it keeps open.
func SetupLogger(logLevel, logFile, format string) (*slog.Logger, []io.Closer, error) {
	level := ParseLevel(logLevel)

	type sink struct {
		w      io.Writer
		lo, hi slog.Level
	}
	var sinks []sink
	var closers []io.Closer
	if logFile == "" {
		sinks = append(sinks,
			sink{os.Stdout, minLevel, slog.LevelError},
			sink{os.Stderr, slog.LevelError, maxLevel})
	} else {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		closers = append(closers, f)
		sinks = append(sinks,
			sink{os.Stderr, minLevel, maxLevel},
			sink{f, minLevel, maxLevel})
	}

	r := make(router, 0, len(sinks))
	for _, s := range sinks {
		h, err := newHandler(format, s.w, level)
		if err != nil {
			for _, c := range closers {
				_ = c.Close()
			}
			return nil, nil, err
		}
		r = append(r, band{lo: s.lo, hi: s.hi, h: h})
	}
	return slog.New(r), closers, nil
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(router(nil))
}
