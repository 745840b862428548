package logger

import (
	"fmt"
	"log/slog"
	"strings"
)

// Attribute keys whose values grant access to another process's memory.
var handleKeyPatterns = []string{
	"handle",
	"ipc",
	"segment",
}

const redactedValue = "***REDACTED***"

// redactHandle replaces memory handle values with their length only.
func redactHandle(a slog.Attr) slog.Attr {
	if a.Value.Kind() == slog.KindGroup {
		attrs := a.Value.Group()
		out := make([]slog.Attr, len(attrs))
		for i, attr := range attrs {
			out[i] = redactHandle(attr)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(out...)}
	}

	if !IsHandleKey(a.Key) {
		return a
	}

	switch a.Value.Kind() {
	case slog.KindString:
		if a.Value.String() == "" {
			return a
		}
		return slog.String(a.Key, redactedValue)
	case slog.KindAny:
		if b, ok := a.Value.Any().([]byte); ok {
			return slog.String(a.Key, fmt.Sprintf("%s(%d bytes)", redactedValue, len(b)))
		}
		return slog.String(a.Key, redactedValue)
	}
	return a
}

// IsHandleKey reports whether a log key names a memory handle.
func IsHandleKey(key string) bool {
	k := strings.ToLower(key)
	for _, p := range handleKeyPatterns {
		if strings.Contains(k, p) {
			return true
		}
	}
	return false
}
