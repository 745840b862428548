package group

import (
	"context"
	"io"
	"log"
	"log/slog"
	"strings"

	"github.com/hashicorp/go-hclog"
)

// hcLogger adapts slog.Logger to hashicorp/go-hclog.Logger so hashicorp
// libraries log through the node's logger.
type hcLogger struct {
	logger *slog.Logger
	name   string
}

func newHCLogger(logger *slog.Logger, name string) *hcLogger {
	return &hcLogger{logger: logger.With("lib", name), name: name}
}

func (l *hcLogger) Log(level hclog.Level, msg string, args ...any) {
	switch level {
	case hclog.Trace, hclog.Debug:
		l.logger.Debug(msg, args...)
	case hclog.Info:
		l.logger.Info(msg, args...)
	case hclog.Warn:
		l.logger.Warn(msg, args...)
	case hclog.Error:
		l.logger.Error(msg, args...)
	default:
		l.logger.Info(msg, args...)
	}
}

func (l *hcLogger) Trace(msg string, args ...any) { l.logger.Debug(msg, args...) }
func (l *hcLogger) Debug(msg string, args ...any) { l.logger.Debug(msg, args...) }
func (l *hcLogger) Info(msg string, args ...any)  { l.logger.Info(msg, args...) }
func (l *hcLogger) Warn(msg string, args ...any)  { l.logger.Warn(msg, args...) }
func (l *hcLogger) Error(msg string, args ...any) { l.logger.Error(msg, args...) }

func (l *hcLogger) IsTrace() bool { return false }
func (l *hcLogger) IsDebug() bool { return l.logger.Enabled(context.Background(), slog.LevelDebug) }
func (l *hcLogger) IsInfo() bool  { return l.logger.Enabled(context.Background(), slog.LevelInfo) }
func (l *hcLogger) IsWarn() bool  { return l.logger.Enabled(context.Background(), slog.LevelWarn) }
func (l *hcLogger) IsError() bool { return true }

func (l *hcLogger) ImpliedArgs() []any { return nil }

func (l *hcLogger) With(args ...any) hclog.Logger {
	return &hcLogger{logger: l.logger.With(args...), name: l.name}
}

func (l *hcLogger) Name() string { return l.name }

func (l *hcLogger) Named(name string) hclog.Logger {
	return &hcLogger{logger: l.logger, name: l.name + "." + name}
}

func (l *hcLogger) ResetNamed(name string) hclog.Logger {
	return &hcLogger{logger: l.logger, name: name}
}

func (l *hcLogger) SetLevel(hclog.Level) {}

func (l *hcLogger) GetLevel() hclog.Level {
	switch {
	case l.IsDebug():
		return hclog.Debug
	case l.IsInfo():
		return hclog.Info
	case l.IsWarn():
		return hclog.Warn
	default:
		return hclog.Error
	}
}

func (l *hcLogger) StandardLogger(opts *hclog.StandardLoggerOptions) *log.Logger {
	return log.New(l.StandardWriter(opts), "", 0)
}

func (l *hcLogger) StandardWriter(opts *hclog.StandardLoggerOptions) io.Writer {
	w := &levelWriter{log: l, force: hclog.NoLevel, infer: true}
	if opts != nil {
		w.infer = opts.InferLevels
		w.force = opts.ForceLevel
	}
	return w
}

// levelWriter turns "[WARN] memberlist: msg" lines from a standard logger
// into leveled records.
type levelWriter struct {
	log   *hcLogger
	infer bool
	force hclog.Level
}

func (w *levelWriter) Write(p []byte) (int, error) {
	line := strings.TrimSpace(string(p))
	level := hclog.Info
	if w.force != hclog.NoLevel {
		level = w.force
	}
	if w.infer {
		level, line = inferLevel(line, level)
	}
	w.log.Log(level, line)
	return len(p), nil
}

func inferLevel(line string, fallback hclog.Level) (hclog.Level, string) {
	if !strings.HasPrefix(line, "[") {
		return fallback, line
	}
	end := strings.IndexByte(line, ']')
	if end < 0 {
		return fallback, line
	}
	lvl := hclog.LevelFromString(strings.ToLower(line[1:end]))
	if lvl == hclog.NoLevel {
		if strings.EqualFold(line[1:end], "ERR") {
			lvl = hclog.Error
		} else {
			return fallback, line
		}
	}
	return lvl, strings.TrimSpace(line[end+1:])
}
