// Package audit implements the orchestrator's append-only, tamper-evident
// event sink: a bounded in-memory ring for fast recent-event queries, and a
// durable JSONL journal for everything that ever happened. Grounded on the
// teacher framework's structured-logging conventions (component-scoped,
// context-correlated) applied to a security-audit domain.
package audit

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gomind-labs/orchestrator/logging"
	"github.com/gomind-labs/orchestrator/telemetry"
)

// EventType is the fixed enumeration of auditable occurrences.
type EventType string

const (
	EventPermissionCheck   EventType = "permission_check"
	EventPermissionDenied  EventType = "permission_denied"
	EventSecretDetected    EventType = "secret_detected"
	EventSandboxViolation  EventType = "sandbox_violation"
	EventToolExecution     EventType = "tool_execution"
	EventPlanExecution     EventType = "plan_execution"
	EventApprovalRequired  EventType = "approval_required"
	EventApprovalGranted   EventType = "approval_granted"
	EventApprovalDenied    EventType = "approval_denied"
	EventSuspiciousActivity EventType = "suspicious_activity"
)

// Severity ranks an event's importance.
type Severity string

const (
	SeverityDebug    Severity = "debug"
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

// Event is one append-only audit record.
type Event struct {
	Sequence  uint64                 `json:"sequence"`
	Timestamp time.Time              `json:"timestamp"`
	EventType EventType              `json:"event_type"`
	Severity  Severity               `json:"severity"`
	Actor     string                 `json:"actor"`
	Resource  string                 `json:"resource"`
	Action    string                 `json:"action"`
	Result    string                 `json:"result"`
	Details   map[string]interface{} `json:"details,omitempty"`

	SessionID string `json:"session_id"`
	RunID     string `json:"run_id,omitempty"`
	PlanID    string `json:"plan_id,omitempty"`
	ToolName  string `json:"tool_name,omitempty"`
}

// Log is the AuditLog component: a bounded ring plus a durable journal.
type Log struct {
	mu        sync.Mutex
	ring      []Event
	ringSize  int
	ringHead  int
	ringCount int
	seq       uint64
	sessionID string

	journalPath string
	journal     *os.File
	writer      *bufio.Writer

	logger logging.Logger
}

// Config configures a new Log.
type Config struct {
	Dir      string
	RingSize int
	Logger   logging.Logger
}

// New opens (or creates) the journal file under cfg.Dir and returns a
// ready-to-use Log. The journal is opened append-only so it survives
// process restarts across sessions (SPEC_FULL.md §4.1).
func New(cfg Config) (*Log, error) {
	if cfg.RingSize <= 0 {
		cfg.RingSize = 1000
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.NoOpLogger{}
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("audit: create log dir: %w", err)
	}
	path := filepath.Join(cfg.Dir, "security_audit.log")
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("audit: open journal: %w", err)
	}
	return &Log{
		ring:        make([]Event, cfg.RingSize),
		ringSize:    cfg.RingSize,
		sessionID:   uuid.NewString(),
		journalPath: path,
		journal:     f,
		writer:      bufio.NewWriter(f),
		logger:      cfg.Logger,
	}, nil
}

// Close flushes and closes the journal file.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.writer.Flush(); err != nil {
		return err
	}
	return l.journal.Close()
}

// LogEvent is the single low-level entry point; every convenience method
// below funnels through it. Callers never construct EventType values
// directly outside this package's convenience wrappers (SPEC_FULL.md §4.1).
func (l *Log) LogEvent(eventType EventType, severity Severity, actor, resource, action, result string, details map[string]interface{}, runID, planID, toolName string) Event {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.seq++
	e := Event{
		Sequence:  l.seq,
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		Severity:  severity,
		Actor:     actor,
		Resource:  resource,
		Action:    action,
		Result:    result,
		Details:   details,
		SessionID: l.sessionID,
		RunID:     runID,
		PlanID:    planID,
		ToolName:  toolName,
	}

	l.ring[l.ringHead] = e
	l.ringHead = (l.ringHead + 1) % l.ringSize
	if l.ringCount < l.ringSize {
		l.ringCount++
	}

	if err := l.appendJournal(e); err != nil {
		// Failure semantics per SPEC_FULL.md §4.1: swallow after one
		// critical log attempt; never raise to the caller.
		fmt.Fprintf(os.Stderr, "audit: journal write failed: %v\n", err)
		l.logger.Error("audit journal write failed", map[string]interface{}{"error": err.Error()})
	}

	telemetry.Counter("audit.events", "type", string(eventType), "severity", string(severity))
	return e
}

func (l *Log) appendJournal(e Event) error {
	b, err := json.Marshal(e)
	if err != nil {
		return err
	}
	if _, err := l.writer.Write(b); err != nil {
		return err
	}
	if err := l.writer.WriteByte('\n'); err != nil {
		return err
	}
	return l.writer.Flush()
}

// --- Convenience loggers (the only sanctioned way other components log) ---

func (l *Log) LogPermissionCheck(actor, resource, action, result string, allowed bool, runID, planID, toolName string) Event {
	return l.LogEvent(EventPermissionCheck, SeverityInfo, actor, resource, action, result,
		map[string]interface{}{"allowed": allowed}, runID, planID, toolName)
}

func (l *Log) LogPermissionDenied(actor, resource, action, reason, runID, planID, toolName string) Event {
	return l.LogEvent(EventPermissionDenied, SeverityWarning, actor, resource, action, "denied",
		map[string]interface{}{"reason": reason}, runID, planID, toolName)
}

func (l *Log) LogSecretDetection(actor, resource, kind string, runID, planID, toolName string) Event {
	return l.LogEvent(EventSecretDetected, SeverityCritical, actor, resource, "scan", "redacted",
		map[string]interface{}{"secret_kind": kind}, runID, planID, toolName)
}

func (l *Log) LogToolExecution(actor, resource string, success bool, durationMS int64, runID, planID, toolName string, details map[string]interface{}) Event {
	result := "success"
	sev := SeverityInfo
	if !success {
		result = "failure"
		sev = SeverityError
	}
	if details == nil {
		details = map[string]interface{}{}
	}
	details["duration_ms"] = durationMS
	return l.LogEvent(EventToolExecution, sev, actor, resource, "execute", result, details, runID, planID, toolName)
}

func (l *Log) LogSandboxViolation(actor, resource, detail, runID, planID, toolName string) Event {
	return l.LogEvent(EventSandboxViolation, SeverityCritical, actor, resource, "execute", "blocked",
		map[string]interface{}{"detail": detail}, runID, planID, toolName)
}

func (l *Log) LogPlanExecution(actor, planID, phase, result string, details map[string]interface{}) Event {
	return l.LogEvent(EventPlanExecution, SeverityInfo, actor, planID, phase, result, details, "", planID, "")
}

func (l *Log) LogApprovalEvent(actor, planID, stepID string, granted bool) Event {
	et := EventApprovalGranted
	result := "granted"
	if !granted {
		et = EventApprovalDenied
		result = "denied"
	}
	return l.LogEvent(et, SeverityInfo, actor, stepID, "approve", result, nil, "", planID, "")
}

func (l *Log) LogApprovalRequired(actor, planID, stepID string) Event {
	return l.LogEvent(EventApprovalRequired, SeverityInfo, actor, stepID, "approve", "waiting", nil, "", planID, "")
}

// --- Queries ---

// Filter narrows RecentEvents results.
type Filter struct {
	EventType *EventType
	Severity  *Severity
	Actor     *string
	PlanID    *string
}

func (f Filter) matches(e Event) bool {
	if f.EventType != nil && e.EventType != *f.EventType {
		return false
	}
	if f.Severity != nil && e.Severity != *f.Severity {
		return false
	}
	if f.Actor != nil && e.Actor != *f.Actor {
		return false
	}
	if f.PlanID != nil && e.PlanID != *f.PlanID {
		return false
	}
	return true
}

// RecentEvents returns up to limit events from the ring, most recent first,
// after applying filter.
func (l *Log) RecentEvents(limit int, filter Filter) []Event {
	l.mu.Lock()
	defer l.mu.Unlock()

	var out []Event
	for i := 0; i < l.ringCount; i++ {
		idx := (l.ringHead - 1 - i + l.ringSize*2) % l.ringSize
		e := l.ring[idx]
		if !filter.matches(e) {
			continue
		}
		out = append(out, e)
		if len(out) >= limit && limit > 0 {
			break
		}
	}
	return out
}

// Summary aggregates counts across the ring.
type Summary struct {
	TotalEvents       int            `json:"total_events"`
	ByType            map[string]int `json:"by_type"`
	BySeverity        map[string]int `json:"by_severity"`
	PermissionDenials int            `json:"permission_denials"`
	SecretDetections  int            `json:"secret_detections"`
}

func (l *Log) Summary() Summary {
	l.mu.Lock()
	defer l.mu.Unlock()

	s := Summary{ByType: map[string]int{}, BySeverity: map[string]int{}}
	for i := 0; i < l.ringCount; i++ {
		e := l.ring[i]
		s.TotalEvents++
		s.ByType[string(e.EventType)]++
		s.BySeverity[string(e.Severity)]++
		if e.EventType == EventPermissionDenied {
			s.PermissionDenials++
		}
		if e.EventType == EventSecretDetected {
			s.SecretDetections++
		}
	}
	return s
}

// Export writes ring contents to path in json (one object per line) or csv
// (fixed columns, excluding the details blob) format.
func (l *Log) Export(path string, format string) error {
	l.mu.Lock()
	events := make([]Event, 0, l.ringCount)
	for i := 0; i < l.ringCount; i++ {
		events = append(events, l.ring[i])
	}
	l.mu.Unlock()

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("audit: export create: %w", err)
	}
	defer f.Close()

	switch format {
	case "json":
		enc := json.NewEncoder(f)
		for _, e := range events {
			if err := enc.Encode(e); err != nil {
				return err
			}
		}
		return nil
	case "csv":
		w := csv.NewWriter(f)
		defer w.Flush()
		header := []string{"sequence", "timestamp", "event_type", "severity", "actor", "resource", "action", "result", "session_id", "run_id", "plan_id", "tool_name"}
		if err := w.Write(header); err != nil {
			return err
		}
		for _, e := range events {
			row := []string{
				fmt.Sprintf("%d", e.Sequence),
				e.Timestamp.Format(time.RFC3339Nano),
				string(e.EventType),
				string(e.Severity),
				e.Actor,
				e.Resource,
				e.Action,
				e.Result,
				e.SessionID,
				e.RunID,
				e.PlanID,
				e.ToolName,
			}
			if err := w.Write(row); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("audit: unsupported export format %q", format)
	}
}
