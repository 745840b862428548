package logger

import "context"

type contextKey string

const (
	loggerKey    contextKey = "trainmesh.logger"
	workerIDKey  contextKey = "trainmesh.worker_id"
	sessionIDKey contextKey = "trainmesh.session_id"
)

// WithLogger adds a logger to the context.
func WithLogger(ctx context.Context, l Logger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

// FromContext extracts the logger from context.
// Returns the default logger if none is set.
func FromContext(ctx context.Context) Logger {
	if l, ok := ctx.Value(loggerKey).(Logger); ok {
		return l
	}
	return Default()
}

// WithWorkerID tags the context with the worker a log line concerns.
func WithWorkerID(ctx context.Context, workerID string) context.Context {
	return context.WithValue(ctx, workerIDKey, workerID)
}

// WorkerIDFromContext extracts the worker id from context.
func WorkerIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(workerIDKey).(string); ok {
		return id
	}
	return ""
}

// WithSessionID tags the context with a join or handoff session id.
func WithSessionID(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, sessionIDKey, sessionID)
}

// SessionIDFromContext extracts the session id from context.
func SessionIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(sessionIDKey).(string); ok {
		return id
	}
	return ""
}

// L is a shorthand for FromContext that also enriches the logger
// with the worker and session ids from the context.
func L(ctx context.Context) Logger {
	l := FromContext(ctx)

	if id := WorkerIDFromContext(ctx); id != "" {
		l = l.With("worker_id", id)
	}
	if id := SessionIDFromContext(ctx); id != "" {
		l = l.With("session_id", id)
	}

	return l
}
