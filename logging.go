package distsage

import (
	"context"

	"k8s.io/klog/v2"
)

// Logger is the logging interface components accept in their configuration.
// Implementations must be safe for concurrent use. All components treat the
// logger as optional and check for nil before logging.
type Logger interface {
	// Debug logs fine-grained diagnostics with key-value pairs.
	Debug(ctx context.Context, msg string, keysAndValues ...any)

	// Info logs operational events with key-value pairs.
	Info(ctx context.Context, msg string, keysAndValues ...any)

	// Error logs failures with key-value pairs.
	Error(ctx context.Context, msg string, keysAndValues ...any)
}

// KlogLogger is a Logger backed by klog structured logging.
type KlogLogger struct {
	// Rank is prepended to every line so interleaved worker output stays
	// attributable, the same way each partition prefixes its prints.
	Rank int
}

// NewKlogLogger creates a Logger for the given worker rank.
func NewKlogLogger(rank int) *KlogLogger {
	return &KlogLogger{Rank: rank}
}

func (l *KlogLogger) Debug(_ context.Context, msg string, keysAndValues ...any) {
	klog.V(2).InfoS(msg, append([]any{"rank", l.Rank}, keysAndValues...)...)
}

func (l *KlogLogger) Info(_ context.Context, msg string, keysAndValues ...any) {
	klog.InfoS(msg, append([]any{"rank", l.Rank}, keysAndValues...)...)
}

func (l *KlogLogger) Error(_ context.Context, msg string, keysAndValues ...any) {
	klog.ErrorS(nil, msg, append([]any{"rank", l.Rank}, keysAndValues...)...)
}

// NopLogger is a Logger that discards everything. Useful in tests.
type NopLogger struct{}

func (NopLogger) Debug(context.Context, string, ...any) {}
func (NopLogger) Info(context.Context, string, ...any)  {}
func (NopLogger) Error(context.Context, string, ...any) {}
