// Package plan defines the Plan and Step domain types shared by every other
// component: the scheduler walks them, the store serializes them, the
// executor mutates them in place. Nothing in this package touches disk or
// a lock — that belongs to planstore and scheduler respectively.
package plan

import (
	"encoding/json"
	"fmt"
	"time"
)

// Status is a Plan's lifecycle state. The lowercase string is the wire
// form (see SPEC_FULL.md §6); do not rename values without a schema bump.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusReady     Status = "ready"
	StatusRunning   Status = "running"
	StatusPaused    Status = "paused"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// IsTerminal reports whether a plan in this status may no longer be mutated
// except by deletion.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// StepStatus is a Step's lifecycle state.
type StepStatus string

const (
	StepPending           StepStatus = "pending"
	StepRunning           StepStatus = "running"
	StepCompleted         StepStatus = "completed"
	StepFailed            StepStatus = "failed"
	StepSkipped           StepStatus = "skipped"
	StepRequiresApproval  StepStatus = "requires_approval"
)

// RiskLevel is an author-declared hazard rating.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// Invocation is the shape of a tool call: used both for a step's primary
// action and, identically, for its optional rollback descriptor.
type Invocation struct {
	ToolName string                 `json:"tool_name"`
	Params   map[string]interface{} `json:"params"`
}

// ArtifactRef points at a step's persisted result without embedding it;
// the full payload lives in the artifact store (SPEC_FULL.md §4.3/§4.6).
type ArtifactRef struct {
	RunID      string `json:"run_id"`
	Path       string `json:"path"`
	Sequence   int    `json:"sequence"`
}

// Step is one tool invocation within a Plan.
type Step struct {
	ID               string                 `json:"id"`
	ToolName         string                 `json:"tool_name"`
	Params           map[string]interface{} `json:"params"`
	Description      string                 `json:"description"`
	ExpectedOutput   string                 `json:"expected_output,omitempty"`
	Rollback         *Invocation            `json:"rollback,omitempty"`
	RiskLevel        RiskLevel              `json:"risk_level"`
	TimeoutSeconds   int                    `json:"timeout_seconds"`
	RequiresApproval bool                   `json:"requires_approval"`
	DependsOn        []string               `json:"depends_on"`

	Status      StepStatus   `json:"status"`
	StartedAt   *time.Time   `json:"started_at,omitempty"`
	CompletedAt *time.Time   `json:"completed_at,omitempty"`
	RetryCount  int          `json:"retry_count"`
	MaxRetries  int          `json:"max_retries"`
	ErrorMessage string      `json:"error_message,omitempty"`
	Artifact    *ArtifactRef `json:"artifact,omitempty"`
}

// EffectiveTimeout applies the "zero treated as one second minimum" boundary
// case from SPEC_FULL.md §8.
func (s *Step) EffectiveTimeout() time.Duration {
	if s.TimeoutSeconds <= 0 {
		return time.Second
	}
	return time.Duration(s.TimeoutSeconds) * time.Second
}

// Plan is an ordered, dependency-constrained set of Steps.
type Plan struct {
	ID          string                 `json:"id"`
	Title       string                 `json:"title"`
	Description string                 `json:"description"`
	CreatedAt   time.Time              `json:"created_at"`
	Creator     string                 `json:"creator"`
	Steps       []*Step                `json:"steps"`
	Status      Status                 `json:"status"`
	StartedAt   *time.Time             `json:"started_at,omitempty"`
	CompletedAt *time.Time             `json:"completed_at,omitempty"`

	EstimatedDuration time.Duration `json:"estimated_duration"`
	ActualDuration    time.Duration `json:"actual_duration"`

	MaxConcurrentSteps int  `json:"max_concurrent_steps"`
	StopOnFailure      bool `json:"stop_on_failure"`

	Context map[string]interface{} `json:"context,omitempty"`
	Tags    []string                `json:"tags,omitempty"`

	TotalSteps     int `json:"total_steps"`
	CompletedSteps int `json:"completed_steps"`
	FailedSteps    int `json:"failed_steps"`
	SkippedSteps   int `json:"skipped_steps"`

	// Unknown preserves fields this version doesn't recognize so a
	// load-then-save round trip never silently drops future schema
	// additions (SPEC_FULL.md §6). Populated by UnmarshalJSON, merged back
	// in by MarshalJSON; never touched directly by other packages.
	Unknown map[string]interface{} `json:"-"`
}

// planWire is Plan's JSON wire shape: EstimatedDuration/ActualDuration
// serialize as seconds (float), matching the artifact payload's own
// duration.Seconds() encoding, rather than Go's default nanosecond integer.
type planWire struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	CreatedAt   time.Time  `json:"created_at"`
	Creator     string     `json:"creator"`
	Steps       []*Step    `json:"steps"`
	Status      Status     `json:"status"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	EstimatedDuration float64 `json:"estimated_duration"`
	ActualDuration    float64 `json:"actual_duration"`

	MaxConcurrentSteps int  `json:"max_concurrent_steps"`
	StopOnFailure      bool `json:"stop_on_failure"`

	Context map[string]interface{} `json:"context,omitempty"`
	Tags    []string                `json:"tags,omitempty"`

	TotalSteps     int `json:"total_steps"`
	CompletedSteps int `json:"completed_steps"`
	FailedSteps    int `json:"failed_steps"`
	SkippedSteps   int `json:"skipped_steps"`
}

// planKnownFields lists every wire key planWire recognizes; anything else
// present in a loaded document is preserved verbatim in Plan.Unknown instead
// of being dropped.
var planKnownFields = map[string]bool{
	"id": true, "title": true, "description": true, "created_at": true,
	"creator": true, "steps": true, "status": true, "started_at": true,
	"completed_at": true, "estimated_duration": true, "actual_duration": true,
	"max_concurrent_steps": true, "stop_on_failure": true, "context": true,
	"tags": true, "total_steps": true, "completed_steps": true,
	"failed_steps": true, "skipped_steps": true,
}

// MarshalJSON writes p's known fields plus any Unknown side-channel entries
// merged in at the top level, so fields a newer schema added but this
// version doesn't model survive a load-then-save round trip.
func (p *Plan) MarshalJSON() ([]byte, error) {
	w := planWire{
		ID: p.ID, Title: p.Title, Description: p.Description, CreatedAt: p.CreatedAt,
		Creator: p.Creator, Steps: p.Steps, Status: p.Status,
		StartedAt: p.StartedAt, CompletedAt: p.CompletedAt,
		EstimatedDuration: p.EstimatedDuration.Seconds(), ActualDuration: p.ActualDuration.Seconds(),
		MaxConcurrentSteps: p.MaxConcurrentSteps, StopOnFailure: p.StopOnFailure,
		Context: p.Context, Tags: p.Tags,
		TotalSteps: p.TotalSteps, CompletedSteps: p.CompletedSteps,
		FailedSteps: p.FailedSteps, SkippedSteps: p.SkippedSteps,
	}
	body, err := json.Marshal(w)
	if err != nil {
		return nil, err
	}
	if len(p.Unknown) == 0 {
		return body, nil
	}

	merged := make(map[string]json.RawMessage, len(p.Unknown)+len(planKnownFields))
	if err := json.Unmarshal(body, &merged); err != nil {
		return nil, err
	}
	for k, v := range p.Unknown {
		if planKnownFields[k] {
			continue
		}
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		merged[k] = raw
	}
	return json.Marshal(merged)
}

// UnmarshalJSON decodes known fields into p and stashes every field this
// version doesn't recognize into p.Unknown (SPEC_FULL.md §6).
func (p *Plan) UnmarshalJSON(data []byte) error {
	var w planWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	unknown := make(map[string]interface{})
	for k, v := range raw {
		if planKnownFields[k] {
			continue
		}
		var val interface{}
		if err := json.Unmarshal(v, &val); err != nil {
			return fmt.Errorf("plan: decode unknown field %q: %w", k, err)
		}
		unknown[k] = val
	}

	p.ID, p.Title, p.Description = w.ID, w.Title, w.Description
	p.CreatedAt, p.Creator = w.CreatedAt, w.Creator
	p.Steps, p.Status = w.Steps, w.Status
	p.StartedAt, p.CompletedAt = w.StartedAt, w.CompletedAt
	p.EstimatedDuration = time.Duration(w.EstimatedDuration * float64(time.Second))
	p.ActualDuration = time.Duration(w.ActualDuration * float64(time.Second))
	p.MaxConcurrentSteps, p.StopOnFailure = w.MaxConcurrentSteps, w.StopOnFailure
	p.Context, p.Tags = w.Context, w.Tags
	p.TotalSteps, p.CompletedSteps = w.TotalSteps, w.CompletedSteps
	p.FailedSteps, p.SkippedSteps = w.FailedSteps, w.SkippedSteps
	if len(unknown) > 0 {
		p.Unknown = unknown
	}
	return nil
}

// StepByID returns the step with the given id, or nil.
func (p *Plan) StepByID(id string) *Step {
	for _, s := range p.Steps {
		if s.ID == id {
			return s
		}
	}
	return nil
}

// RecomputeCounts refreshes the derived TotalSteps/CompletedSteps/
// FailedSteps/SkippedSteps fields from current step statuses. Called after
// every status transition per the Plan data model invariant in SPEC_FULL.md §3.
func (p *Plan) RecomputeCounts() {
	p.TotalSteps = len(p.Steps)
	p.CompletedSteps = 0
	p.FailedSteps = 0
	p.SkippedSteps = 0
	for _, s := range p.Steps {
		switch s.Status {
		case StepCompleted:
			p.CompletedSteps++
		case StepFailed:
			p.FailedSteps++
		case StepSkipped:
			p.SkippedSteps++
		}
	}
}

// Validate checks the three structural invariants from SPEC_FULL.md §3:
// unique step ids, dependsOn targets exist, and the dependency graph is
// acyclic. It does not check lifecycle invariants (those are enforced by
// the scheduler/executor as transitions happen, not by static validation).
func (p *Plan) Validate() error {
	seen := make(map[string]bool, len(p.Steps))
	for _, s := range p.Steps {
		if seen[s.ID] {
			return fmt.Errorf("duplicate step id %q", s.ID)
		}
		seen[s.ID] = true
	}
	for _, s := range p.Steps {
		for _, dep := range s.DependsOn {
			if !seen[dep] {
				return fmt.Errorf("step %q depends on unknown step %q", s.ID, dep)
			}
		}
	}
	if cyclePath, ok := findCycle(p.Steps); ok {
		return fmt.Errorf("dependency cycle detected: %v", cyclePath)
	}
	return nil
}

// findCycle runs a DFS with a coloring scheme (white/gray/black) over the
// step dependency graph, the same algorithm workflow_dag.go uses for its
// node graph, specialized to Step.DependsOn.
func findCycle(steps []*Step) ([]string, bool) {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	byID := make(map[string]*Step, len(steps))
	color := make(map[string]int, len(steps))
	for _, s := range steps {
		byID[s.ID] = s
		color[s.ID] = white
	}

	var path []string
	var visit func(id string) bool
	visit = func(id string) bool {
		color[id] = gray
		path = append(path, id)
		for _, dep := range byID[id].DependsOn {
			switch color[dep] {
			case gray:
				path = append(path, dep)
				return true
			case white:
				if visit(dep) {
					return true
				}
			}
		}
		path = path[:len(path)-1]
		color[id] = black
		return false
	}

	for _, s := range steps {
		if color[s.ID] == white {
			if visit(s.ID) {
				return path, true
			}
		}
	}
	return nil, false
}

// NextReadySteps returns steps with status pending whose every dependency
// is completed, preserving original plan order (SPEC_FULL.md §4.8).
func (p *Plan) NextReadySteps() []*Step {
	var ready []*Step
	for _, s := range p.Steps {
		if s.Status != StepPending {
			continue
		}
		if p.allDependenciesCompleted(s) {
			ready = append(ready, s)
		}
	}
	return ready
}

func (p *Plan) allDependenciesCompleted(s *Step) bool {
	for _, depID := range s.DependsOn {
		dep := p.StepByID(depID)
		if dep == nil || dep.Status != StepCompleted {
			return false
		}
	}
	return true
}

// HasApprovalWaiting reports whether any step is currently requires_approval.
func (p *Plan) HasApprovalWaiting() bool {
	for _, s := range p.Steps {
		if s.Status == StepRequiresApproval {
			return true
		}
	}
	return false
}

// HasRunningSteps reports whether any step is currently running.
func (p *Plan) HasRunningSteps() bool {
	for _, s := range p.Steps {
		if s.Status == StepRunning {
			return true
		}
	}
	return false
}
