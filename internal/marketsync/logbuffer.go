package marketsync

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// logBuffer is a slog.Handler that tees records to the wrapped handler while
// keeping the most recent lines in memory, so a sync trigger can hand its log
// back to the caller. Replaces the console-capture hack this grew out of.
type logBuffer struct {
	inner slog.Handler
	sink  *lineSink
	attrs []slog.Attr
}

type runLoggerKey struct{}

// withRunLogger binds the per-run logger to the context so acquisition code
// running under the engine logs into the run's buffer.
func withRunLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, runLoggerKey{}, logger)
}

// runLogger returns the per-run logger, or fallback outside an engine run.
func runLogger(ctx context.Context, fallback *slog.Logger) *slog.Logger {
	if l, ok := ctx.Value(runLoggerKey{}).(*slog.Logger); ok {
		return l
	}
	return fallback
}

type lineSink struct {
	mu    sync.Mutex
	lines []string
}

const logBufferCap = 200

func newLogBuffer(inner slog.Handler) *logBuffer {
	return &logBuffer{inner: inner, sink: &lineSink{}}
}

func (s *lineSink) record(bound []slog.Attr, r slog.Record) {
	line := r.Level.String() + " " + r.Message
	for _, a := range bound {
		line += fmt.Sprintf(" %s=%v", a.Key, a.Value)
	}
	r.Attrs(func(a slog.Attr) bool {
		line += fmt.Sprintf(" %s=%v", a.Key, a.Value)
		return true
	})
	s.mu.Lock()
	if len(s.lines) >= logBufferCap {
		s.lines = s.lines[1:]
	}
	s.lines = append(s.lines, line)
	s.mu.Unlock()
}

func (b *logBuffer) Enabled(ctx context.Context, level slog.Level) bool {
	return b.inner.Enabled(ctx, level)
}

func (b *logBuffer) Handle(ctx context.Context, r slog.Record) error {
	b.sink.record(b.attrs, r)
	return b.inner.Handle(ctx, r)
}

// WithAttrs keeps derived loggers writing into the same line sink. The bound
// attrs are remembered so captured lines carry them too.
func (b *logBuffer) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := append(append([]slog.Attr{}, b.attrs...), attrs...)
	return &logBuffer{inner: b.inner.WithAttrs(attrs), sink: b.sink, attrs: merged}
}

func (b *logBuffer) WithGroup(name string) slog.Handler {
	return &logBuffer{inner: b.inner.WithGroup(name), sink: b.sink, attrs: b.attrs}
}

func (b *logBuffer) Lines() []string {
	b.sink.mu.Lock()
	defer b.sink.mu.Unlock()
	out := make([]string, len(b.sink.lines))
	copy(out, b.sink.lines)
	return out
}
