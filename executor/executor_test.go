package executor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gomind-labs/orchestrator/artifact"
	"github.com/gomind-labs/orchestrator/audit"
	"github.com/gomind-labs/orchestrator/permission"
	"github.com/gomind-labs/orchestrator/plan"
	"github.com/gomind-labs/orchestrator/registry"
	"github.com/gomind-labs/orchestrator/tools"
)

type fakeTool struct {
	name   string
	invoke func(ctx context.Context, params map[string]interface{}) (*registry.ToolResult, error)
}

func (f *fakeTool) Name() string                          { return f.name }
func (f *fakeTool) Schema() []registry.ParamSchema         { return nil }
func (f *fakeTool) Invoke(ctx context.Context, params map[string]interface{}) (*registry.ToolResult, error) {
	return f.invoke(ctx, params)
}

func newTestExecutor(t *testing.T, tool *fakeTool) *Executor {
	t.Helper()
	reg := registry.New()
	reg.Register(tool)

	auditLog, err := audit.New(audit.Config{Dir: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = auditLog.Close() })

	artifacts, err := artifact.New(t.TempDir(), 0)
	require.NoError(t, err)

	perm := permission.New(permission.WithDefaultPermission(permission.LevelAdmin))
	// The built-in catch-all matches every resource and grants only write;
	// this rule outranks it so the "execute" action below is allowed.
	require.NoError(t, perm.AddRule(&permission.Rule{ID: "test-allow-all", ToolNames: []string{"*"}, ResourcePattern: ".*", PermissionLevel: "admin", Priority: 0, Enabled: true}))

	mapper := NewMapper(
		func(name string, params map[string]interface{}) string { return "workspace/file" },
		func(name string) string { return "execute" },
	)
	return New(reg, perm, artifacts, auditLog, mapper)
}

func TestExecutor_Execute_HappyPath(t *testing.T) {
	tool := &fakeTool{name: "echo", invoke: func(ctx context.Context, params map[string]interface{}) (*registry.ToolResult, error) {
		return &registry.ToolResult{Success: true, Status: registry.StatusSuccess, Output: "ok"}, nil
	}}
	e := newTestExecutor(t, tool)

	s := &plan.Step{ID: "s1", ToolName: "echo", Status: plan.StepPending, TimeoutSeconds: 5}
	e.Execute(context.Background(), "tester", "run-1", "plan-1", s)

	assert.Equal(t, plan.StepCompleted, s.Status)
	assert.NotNil(t, s.Artifact)
	assert.NotNil(t, s.StartedAt)
	assert.NotNil(t, s.CompletedAt)
}

func TestExecutor_Execute_PermissionDeniedFailsWithoutInvokingTool(t *testing.T) {
	invoked := false
	tool := &fakeTool{name: "echo", invoke: func(ctx context.Context, params map[string]interface{}) (*registry.ToolResult, error) {
		invoked = true
		return &registry.ToolResult{Success: true, Status: registry.StatusSuccess}, nil
	}}
	reg := registry.New()
	reg.Register(tool)
	auditLog, err := audit.New(audit.Config{Dir: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = auditLog.Close() })
	artifacts, err := artifact.New(t.TempDir(), 0)
	require.NoError(t, err)
	perm := permission.New(permission.WithDefaultPermission(permission.LevelNone))
	mapper := NewMapper(
		func(name string, params map[string]interface{}) string { return "/etc/passwd" },
		func(name string) string { return "write" },
	)
	e := New(reg, perm, artifacts, auditLog, mapper)

	s := &plan.Step{ID: "s1", ToolName: "echo", Status: plan.StepPending, TimeoutSeconds: 5}
	e.Execute(context.Background(), "tester", "run-1", "plan-1", s)

	assert.False(t, invoked)
	assert.Equal(t, plan.StepFailed, s.Status)
	assert.Contains(t, s.ErrorMessage, "permission denied")
	assert.NotNil(t, s.CompletedAt)
}

func TestExecutor_Execute_RetryableFailureReturnsToPending(t *testing.T) {
	tool := &fakeTool{name: "flaky", invoke: func(ctx context.Context, params map[string]interface{}) (*registry.ToolResult, error) {
		return &registry.ToolResult{Success: false, Status: registry.StatusTimeout, ErrorKind: "step_timeout", ErrorMessage: "timed out"}, nil
	}}
	e := newTestExecutor(t, tool)

	s := &plan.Step{ID: "s1", ToolName: "flaky", Status: plan.StepPending, TimeoutSeconds: 5, MaxRetries: 2}
	e.Execute(context.Background(), "tester", "run-1", "plan-1", s)

	assert.Equal(t, plan.StepPending, s.Status)
	assert.Equal(t, 1, s.RetryCount)
	assert.Nil(t, s.CompletedAt)
}

func TestExecutor_Execute_NonRetryableFailureFailsTerminally(t *testing.T) {
	tool := &fakeTool{name: "broken", invoke: func(ctx context.Context, params map[string]interface{}) (*registry.ToolResult, error) {
		return &registry.ToolResult{Success: false, Status: registry.StatusError, ErrorKind: "step_execution_error", ErrorMessage: "boom"}, nil
	}}
	e := newTestExecutor(t, tool)

	s := &plan.Step{ID: "s1", ToolName: "broken", Status: plan.StepPending, TimeoutSeconds: 5, MaxRetries: 3}
	e.Execute(context.Background(), "tester", "run-1", "plan-1", s)

	assert.Equal(t, plan.StepFailed, s.Status)
	assert.Equal(t, 0, s.RetryCount)
}

func TestExecutor_Execute_ExhaustedRetriesFailsTerminally(t *testing.T) {
	tool := &fakeTool{name: "flaky", invoke: func(ctx context.Context, params map[string]interface{}) (*registry.ToolResult, error) {
		return &registry.ToolResult{Success: false, Status: registry.StatusTimeout, ErrorKind: "step_timeout", ErrorMessage: "timed out"}, nil
	}}
	e := newTestExecutor(t, tool)

	s := &plan.Step{ID: "s1", ToolName: "flaky", Status: plan.StepPending, TimeoutSeconds: 5, MaxRetries: 0}
	e.Execute(context.Background(), "tester", "run-1", "plan-1", s)

	assert.Equal(t, plan.StepFailed, s.Status)
}

func TestExecutor_Execute_ZeroTimeoutStillRunsOneSecondMinimum(t *testing.T) {
	tool := &fakeTool{name: "slowish", invoke: func(ctx context.Context, params map[string]interface{}) (*registry.ToolResult, error) {
		select {
		case <-time.After(10 * time.Millisecond):
			return &registry.ToolResult{Success: true, Status: registry.StatusSuccess}, nil
		case <-ctx.Done():
			return &registry.ToolResult{Success: false, Status: registry.StatusTimeout, ErrorKind: "step_timeout"}, nil
		}
	}}
	e := newTestExecutor(t, tool)

	s := &plan.Step{ID: "s1", ToolName: "slowish", Status: plan.StepPending}
	e.Execute(context.Background(), "tester", "run-1", "plan-1", s)

	assert.Equal(t, plan.StepCompleted, s.Status)
}

// TestExecutor_Execute_RealBashTimeoutIsRetryable drives an actual
// registry.Tool (tools.BashExecute, not a test double with a hand-cased
// ErrorKind) through a real timeout, so a casing mismatch between the
// ErrorKind strings tools/registry emit and the xerrors.Kind constants
// handleFailure compares against would fail this test even if every
// synthetic-ErrorKind test above still passed.
func TestExecutor_Execute_RealBashTimeoutIsRetryable(t *testing.T) {
	reg := registry.New()
	reg.Register(tools.BashExecute{})

	auditLog, err := audit.New(audit.Config{Dir: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = auditLog.Close() })

	artifacts, err := artifact.New(t.TempDir(), 0)
	require.NoError(t, err)

	perm := permission.New(permission.WithDefaultPermission(permission.LevelAdmin))
	require.NoError(t, perm.AddRule(&permission.Rule{ID: "test-allow-all", ToolNames: []string{"*"}, ResourcePattern: ".*", PermissionLevel: "admin", Priority: 0, Enabled: true}))
	mapper := NewMapper(tools.ResourceFor, tools.ActionFor)
	e := New(reg, perm, artifacts, auditLog, mapper)

	s := &plan.Step{
		ID: "s1", ToolName: "bash_execute", Status: plan.StepPending,
		Params: map[string]interface{}{"command": "sleep 2"},
		TimeoutSeconds: 1, MaxRetries: 1,
	}
	e.Execute(context.Background(), "tester", "run-1", "plan-1", s)

	assert.Equal(t, plan.StepPending, s.Status)
	assert.Equal(t, 1, s.RetryCount)
}
