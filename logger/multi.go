package logger

import (
	"context"
	"os"
)

type multiLogger struct {
	loggers []Logger
}

var _ Logger = (*multiLogger)(nil)

// NewMultiLogger returns a Logger that writes every entry to each of loggers.
func NewMultiLogger(loggers ...Logger) Logger {
	return &multiLogger{loggers: loggers}
}

func (m *multiLogger) each(fn func(Logger) Logger) Logger {
	out := make([]Logger, len(m.loggers))
	for i, l := range m.loggers {
		out[i] = fn(l)
	}
	return &multiLogger{loggers: out}
}

func (m *multiLogger) With(metadata map[string]interface{}) Logger {
	return m.each(func(l Logger) Logger { return l.With(metadata) })
}

func (m *multiLogger) WithPrefix(prefix string) Logger {
	return m.each(func(l Logger) Logger { return l.WithPrefix(prefix) })
}

func (m *multiLogger) WithContext(ctx context.Context) Logger {
	return m.each(func(l Logger) Logger { return l.WithContext(ctx) })
}

func (m *multiLogger) IsLevelEnabled(level LogLevel) bool {
	for _, l := range m.loggers {
		if l.IsLevelEnabled(level) {
			return true
		}
	}
	return false
}

func (m *multiLogger) Trace(msg string, args ...interface{}) {
	for _, l := range m.loggers {
		l.Trace(msg, args...)
	}
}

func (m *multiLogger) Debug(msg string, args ...interface{}) {
	for _, l := range m.loggers {
		l.Debug(msg, args...)
	}
}

func (m *multiLogger) Info(msg string, args ...interface{}) {
	for _, l := range m.loggers {
		l.Info(msg, args...)
	}
}

func (m *multiLogger) Warn(msg string, args ...interface{}) {
	for _, l := range m.loggers {
		l.Warn(msg, args...)
	}
}

func (m *multiLogger) Error(msg string, args ...interface{}) {
	for _, l := range m.loggers {
		l.Error(msg, args...)
	}
}

// Fatal writes to every logger before exiting.
func (m *multiLogger) Fatal(msg string, args ...interface{}) {
	for _, l := range m.loggers {
		l.Error(msg, args...)
	}
	os.Exit(1)
}
