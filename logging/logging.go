// Package logging provides the structured logging interface every
// orchestrator component depends on. It mirrors the framework's minimal
// Logger contract: plain and context-aware variants, a component-scoped
// extension for filterable log streams, and a weak coupling to a global
// metrics registry so logging and metrics stay decoupled packages.
package logging

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"
)

// Logger is the minimal logging contract. Every component accepts one;
// the zero value NoOpLogger{} satisfies it so components are usable
// without wiring a real sink.
type Logger interface {
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
	Debug(msg string, fields map[string]interface{})

	InfoWithContext(ctx context.Context, msg string, fields map[string]interface{})
	WarnWithContext(ctx context.Context, msg string, fields map[string]interface{})
	ErrorWithContext(ctx context.Context, msg string, fields map[string]interface{})
	DebugWithContext(ctx context.Context, msg string, fields map[string]interface{})
}

// ComponentAwareLogger extends Logger so packages can tag their own log
// stream without each caller repeating the component name in every field
// map. Naming convention: "orchestrator/<package>", e.g.
// "orchestrator/scheduler", "orchestrator/permission".
type ComponentAwareLogger interface {
	Logger
	WithComponent(component string) Logger
}

// Level controls the minimum severity emitted.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return "unknown"
	}
}

// Format selects the on-wire representation.
type Format string

const (
	FormatJSON Format = "json"
	FormatText Format = "text"
)

// MetricsSink lets the telemetry package register itself without logging
// importing telemetry directly, avoiding an import cycle between the two
// ambient packages.
type MetricsSink interface {
	Counter(name string, labels ...string)
}

var (
	globalSink      MetricsSink
	globalSinkMutex sync.RWMutex
)

// SetMetricsSink installs the process-wide metrics sink. Safe to call once
// during startup; subsequent loggers pick it up automatically.
func SetMetricsSink(sink MetricsSink) {
	globalSinkMutex.Lock()
	defer globalSinkMutex.Unlock()
	globalSink = sink
}

func getMetricsSink() MetricsSink {
	globalSinkMutex.RLock()
	defer globalSinkMutex.RUnlock()
	return globalSink
}

// StandardLogger is the production Logger implementation: dual JSON/text
// formatting, minimum-level filtering, and optional per-entry metric
// emission through the global sink.
type StandardLogger struct {
	out       *os.File
	level     Level
	format    Format
	component string
	mu        *sync.Mutex
}

// New builds a StandardLogger writing to stderr at the given level/format.
func New(level Level, format Format) *StandardLogger {
	return &StandardLogger{out: os.Stderr, level: level, format: format, mu: &sync.Mutex{}}
}

// NewWithWriter is New but directs output elsewhere; used by tests.
func NewWithWriter(out *os.File, level Level, format Format) *StandardLogger {
	return &StandardLogger{out: out, level: level, format: format, mu: &sync.Mutex{}}
}

func (l *StandardLogger) WithComponent(component string) Logger {
	return &StandardLogger{out: l.out, level: l.level, format: l.format, component: component, mu: l.mu}
}

type entry struct {
	Timestamp string                 `json:"timestamp"`
	Level     string                 `json:"level"`
	Component string                 `json:"component,omitempty"`
	Message   string                 `json:"message"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
	TraceID   string                 `json:"trace_id,omitempty"`
}

func (l *StandardLogger) log(ctx context.Context, level Level, msg string, fields map[string]interface{}) {
	if level < l.level {
		return
	}
	e := entry{
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Level:     level.String(),
		Component: l.component,
		Message:   msg,
		Fields:    fields,
	}
	if ctx != nil {
		if tid, ok := ctx.Value(traceIDKey{}).(string); ok {
			e.TraceID = tid
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.format == FormatText {
		fmt.Fprintf(l.out, "%s [%s] %s %s %v\n", e.Timestamp, e.Level, e.Component, e.Message, e.Fields)
	} else {
		b, err := json.Marshal(e)
		if err != nil {
			fmt.Fprintf(l.out, "{\"level\":\"error\",\"message\":\"log marshal failed: %v\"}\n", err)
			return
		}
		fmt.Fprintln(l.out, string(b))
	}

	if sink := getMetricsSink(); sink != nil && level >= LevelWarn {
		sink.Counter("orchestrator.log.events", "level", level.String(), "component", l.component)
	}
}

type traceIDKey struct{}

// WithTraceID returns a context carrying a trace id that subsequent
// *WithContext log calls will surface as the "trace_id" field.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey{}, traceID)
}

func (l *StandardLogger) Info(msg string, fields map[string]interface{})  { l.log(nil, LevelInfo, msg, fields) }
func (l *StandardLogger) Warn(msg string, fields map[string]interface{})  { l.log(nil, LevelWarn, msg, fields) }
func (l *StandardLogger) Error(msg string, fields map[string]interface{}) { l.log(nil, LevelError, msg, fields) }
func (l *StandardLogger) Debug(msg string, fields map[string]interface{}) { l.log(nil, LevelDebug, msg, fields) }

func (l *StandardLogger) InfoWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
	l.log(ctx, LevelInfo, msg, fields)
}
func (l *StandardLogger) WarnWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
	l.log(ctx, LevelWarn, msg, fields)
}
func (l *StandardLogger) ErrorWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
	l.log(ctx, LevelError, msg, fields)
}
func (l *StandardLogger) DebugWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
	l.log(ctx, LevelDebug, msg, fields)
}

// NoOpLogger discards everything. It is the safe zero-value default.
type NoOpLogger struct{}

func (NoOpLogger) Info(string, map[string]interface{})  {}
func (NoOpLogger) Warn(string, map[string]interface{})  {}
func (NoOpLogger) Error(string, map[string]interface{}) {}
func (NoOpLogger) Debug(string, map[string]interface{}) {}
func (NoOpLogger) InfoWithContext(context.Context, string, map[string]interface{})  {}
func (NoOpLogger) WarnWithContext(context.Context, string, map[string]interface{})  {}
func (NoOpLogger) ErrorWithContext(context.Context, string, map[string]interface{}) {}
func (NoOpLogger) DebugWithContext(context.Context, string, map[string]interface{}) {}
func (NoOpLogger) WithComponent(string) Logger                                      { return NoOpLogger{} }

var _ ComponentAwareLogger = (*StandardLogger)(nil)
var _ ComponentAwareLogger = NoOpLogger{}
