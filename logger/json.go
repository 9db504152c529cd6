package logger

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// JSONLogEntry defines a log entry
type JSONLogEntry struct {
	Timestamp time.Time              `json:"timestamp,omitempty"`
	Message   string                 `json:"message"`
	Severity  string                 `json:"severity,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Component string                 `json:"component,omitempty"`
}

// String renders an entry as a single JSON line.
func (e JSONLogEntry) String() string {
	if e.Severity == "" {
		e.Severity = "INFO"
	}
	out, err := json.Marshal(e)
	if err != nil {
		return fmt.Sprintf(`{"message":%q,"severity":"ERROR"}`, "json.Marshal: "+err.Error())
	}
	return string(out)
}

type jsonLogger struct {
	sink      Sink
	mu        *sync.Mutex
	metadata  map[string]interface{}
	component string
	logLevel  LogLevel
	ts        *time.Time // for unit testing
}

var _ Logger = (*jsonLogger)(nil)

func (c *jsonLogger) clone() *jsonLogger {
	return &jsonLogger{
		sink:      c.sink,
		mu:        c.mu,
		metadata:  copyMetadata(c.metadata, nil),
		component: c.component,
		logLevel:  c.logLevel,
		ts:        c.ts,
	}
}

func (c *jsonLogger) With(metadata map[string]interface{}) Logger {
	clone := c.clone()
	clone.metadata = copyMetadata(c.metadata, metadata)
	if comp, ok := clone.metadata["component"].(string); ok {
		clone.component = comp
		delete(clone.metadata, "component")
	}
	return clone
}

// WithPrefix sets or extends the component of every entry
func (c *jsonLogger) WithPrefix(prefix string) Logger {
	clone := c.clone()
	prefix = strings.Trim(prefix, "[]")
	switch {
	case clone.component == "":
		clone.component = prefix
	case !strings.Contains(clone.component, prefix):
		clone.component = clone.component + " " + prefix
	}
	return clone
}

func (c *jsonLogger) WithContext(_ context.Context) Logger {
	return c.clone()
}

func (c *jsonLogger) IsLevelEnabled(level LogLevel) bool {
	return level >= c.logLevel
}

func (c *jsonLogger) log(level LogLevel, severity string, msg string, args ...interface{}) {
	if !c.IsLevelEnabled(level) {
		return
	}
	text := msg
	if len(args) > 0 {
		text = fmt.Sprintf(msg, args...)
	}
	entry := JSONLogEntry{
		Timestamp: time.Now(),
		Message:   ansiColorStripper.ReplaceAllString(text, ""),
		Severity:  severity,
		Component: c.component,
	}
	if len(c.metadata) > 0 {
		entry.Metadata = c.metadata
	}
	if c.ts != nil {
		entry.Timestamp = *c.ts
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	io.WriteString(c.sink, entry.String()+"\n")
}

func (c *jsonLogger) Trace(msg string, args ...interface{}) { c.log(LevelTrace, "TRACE", msg, args...) }
func (c *jsonLogger) Debug(msg string, args ...interface{}) { c.log(LevelDebug, "DEBUG", msg, args...) }
func (c *jsonLogger) Info(msg string, args ...interface{})  { c.log(LevelInfo, "INFO", msg, args...) }
func (c *jsonLogger) Warn(msg string, args ...interface{})  { c.log(LevelWarn, "WARNING", msg, args...) }
func (c *jsonLogger) Error(msg string, args ...interface{}) { c.log(LevelError, "ERROR", msg, args...) }

func (c *jsonLogger) Fatal(msg string, args ...interface{}) {
	c.log(LevelError, "ERROR", msg, args...)
	os.Exit(1)
}

// NewJSONLogger returns a new Logger instance which can be used for structured logging.
// Entries are written one per line to sink (os.Stdout when sink is nil).
func NewJSONLogger(sink Sink, level LogLevel) Logger {
	if sink == nil {
		sink = os.Stdout
	}
	return &jsonLogger{sink: sink, mu: &sync.Mutex{}, logLevel: level}
}
