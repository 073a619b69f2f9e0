package internal

import (
	"context"
	"log"
	"os"
)

type loggerKey struct{}

// WithPrefixLogger creates a new logger using the given prefix and attaches
// it to the context.
func WithPrefixLogger(ctx context.Context, prefix string) context.Context {
	return context.WithValue(ctx, loggerKey{}, log.New(os.Stderr, prefix, 0))
}

// MustLogger returns the logger attached to the given context.
func MustLogger(ctx context.Context) *log.Logger {
	return ctx.Value(loggerKey{}).(*log.Logger)
}

// TruncateRightWithSuffix truncates s to at most width runes, replacing the
// removed tail with suffix.
func TruncateRightWithSuffix(s string, width int, suffix string) string {
	r := []rune(s)
	if len(r) <= width {
		return s
	}
	if width <= len(suffix) {
		return string(r[:width])
	}
	return string(r[:width-len(suffix)]) + suffix
}
