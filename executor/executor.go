// Package executor implements StepExecutor: the single path a step's tool
// invocation takes from permission gate through artifact capture. Grounded
// on core/tool.go's invoke-then-normalize-result idiom and
// orchestration/hitl_policy.go's "check before act" sequencing, generalized
// from the teacher's agent-capability call path to a local tool registry.
package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/gomind-labs/orchestrator/artifact"
	"github.com/gomind-labs/orchestrator/audit"
	"github.com/gomind-labs/orchestrator/logging"
	"github.com/gomind-labs/orchestrator/permission"
	"github.com/gomind-labs/orchestrator/plan"
	"github.com/gomind-labs/orchestrator/registry"
	"github.com/gomind-labs/orchestrator/telemetry"
	"github.com/gomind-labs/orchestrator/xerrors"
)

// ResourceActionMapper derives the permission engine's (resource, action)
// vocabulary from a tool name and its parameters. The tools package
// supplies the default implementation; executor depends only on the shape
// so it never needs to import a concrete tool set.
type ResourceActionMapper interface {
	ResourceFor(toolName string, params map[string]interface{}) string
	ActionFor(toolName string) string
}

// mapperFuncs adapts two plain functions to ResourceActionMapper.
type mapperFuncs struct {
	resource func(string, map[string]interface{}) string
	action   func(string) string
}

func (m mapperFuncs) ResourceFor(name string, params map[string]interface{}) string { return m.resource(name, params) }
func (m mapperFuncs) ActionFor(name string) string                                  { return m.action(name) }

// NewMapper builds a ResourceActionMapper from two plain functions, the
// shape tools.ResourceFor/tools.ActionFor already satisfy.
func NewMapper(resource func(string, map[string]interface{}) string, action func(string) string) ResourceActionMapper {
	return mapperFuncs{resource: resource, action: action}
}

// Executor is the StepExecutor component.
type Executor struct {
	registry   *registry.Registry
	permission *permission.Engine
	artifacts  *artifact.Store
	auditLog   *audit.Log
	mapper     ResourceActionMapper
	logger     logging.Logger
}

// Option configures an Executor.
type Option func(*Executor)

func WithLogger(l logging.Logger) Option { return func(e *Executor) { e.logger = l } }

// New builds an Executor wired to every downstream component a step
// invocation touches.
func New(reg *registry.Registry, perm *permission.Engine, artifacts *artifact.Store, auditLog *audit.Log, mapper ResourceActionMapper, opts ...Option) *Executor {
	e := &Executor{registry: reg, permission: perm, artifacts: artifacts, auditLog: auditLog, mapper: mapper, logger: logging.NoOpLogger{}}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute runs one step to completion per SPEC_FULL.md §4.7:
//  1. gate via PermissionEngine.Check
//  2. invoke via ToolRegistry under the step's effective timeout
//  3. capture input/output to the ArtifactStore
//  4. record a tool_execution audit event
//
// It mutates s in place (Status, timestamps, RetryCount, ErrorMessage,
// Artifact) and never writes the plan file itself — that is planstore's
// job, called by whatever orchestrates the scheduler loop.
func (e *Executor) Execute(ctx context.Context, actor, runID, planID string, s *plan.Step) {
	resource := e.mapper.ResourceFor(s.ToolName, s.Params)
	action := e.mapper.ActionFor(s.ToolName)

	decision := e.permission.Check(s.ToolName, resource, action, actor, runID, planID)
	if !decision.Allowed {
		e.fail(s, xerrors.KindPermissionDenied, fmt.Sprintf("permission denied: required %s, granted %s", decision.Required, decision.Granted))
		return
	}

	now := time.Now().UTC()
	s.StartedAt = &now
	s.Status = plan.StepRunning

	e.auditLog.LogToolExecution(actor, resource, false, 0, runID, planID, s.ToolName, map[string]interface{}{"step_id": s.ID, "phase": "start"})

	timeout := s.EffectiveTimeout()
	stepCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	spanCtx, endSpan := telemetry.StartSpan(stepCtx, "executor.invoke_tool", "tool", s.ToolName, "step_id", s.ID)
	start := time.Now()
	result := e.registry.Execute(spanCtx, s.ToolName, s.Params)
	duration := time.Since(start)
	endSpan()

	completed := time.Now().UTC()
	s.CompletedAt = &completed

	path, _, artErr := e.artifacts.Store(runID, s.ToolName, s.Params, result.Output, duration, string(result.Status), result.ErrorMessage)
	if artErr != nil {
		e.logger.Error("artifact capture failed", map[string]interface{}{"step": s.ID, "error": artErr.Error()})
	} else {
		s.Artifact = &plan.ArtifactRef{RunID: runID, Path: path}
	}

	e.auditLog.LogToolExecution(actor, resource, result.Success, duration.Milliseconds(), runID, planID, s.ToolName, map[string]interface{}{"step_id": s.ID})
	telemetry.Counter("executor.steps", "tool", s.ToolName, "status", string(result.Status))
	telemetry.Duration("executor.step_duration_ms", start, "tool", s.ToolName)

	if result.Success {
		s.Status = plan.StepCompleted
		s.ErrorMessage = ""
		return
	}

	kind := xerrors.Kind(result.ErrorKind)
	if kind == "" {
		kind = xerrors.KindStepExecutionError
	}
	e.handleFailure(s, kind, result.ErrorMessage)
}

// handleFailure applies the retry policy from SPEC_FULL.md §4.7: a step
// whose error kind is retryable (step_timeout, tool_transient) re-enters
// pending while retryCount < maxRetries; otherwise it fails terminally.
// completedAt is cleared on the retry path since a pending step is, by
// definition, not yet at a terminal timestamp (SPEC_FULL.md §3).
func (e *Executor) handleFailure(s *plan.Step, kind xerrors.Kind, message string) {
	s.ErrorMessage = message
	retryable := kind == xerrors.KindStepTimeout || kind == xerrors.KindToolTransient
	if retryable && s.RetryCount < s.MaxRetries {
		s.RetryCount++
		s.Status = plan.StepPending
		s.CompletedAt = nil
		return
	}
	s.Status = plan.StepFailed
}

func (e *Executor) fail(s *plan.Step, kind xerrors.Kind, message string) {
	now := time.Now().UTC()
	s.Status = plan.StepFailed
	s.ErrorMessage = message
	s.CompletedAt = &now
}
