package manager

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gomind-labs/orchestrator/artifact"
	"github.com/gomind-labs/orchestrator/audit"
	"github.com/gomind-labs/orchestrator/executor"
	"github.com/gomind-labs/orchestrator/permission"
	"github.com/gomind-labs/orchestrator/plan"
	"github.com/gomind-labs/orchestrator/planstore"
	"github.com/gomind-labs/orchestrator/registry"
	"github.com/gomind-labs/orchestrator/scheduler"
	"github.com/gomind-labs/orchestrator/xerrors"
)

type echoTool struct{}

func (echoTool) Name() string                  { return "list_files" }
func (echoTool) Schema() []registry.ParamSchema { return nil }
func (echoTool) Invoke(ctx context.Context, params map[string]interface{}) (*registry.ToolResult, error) {
	return &registry.ToolResult{Success: true, Status: registry.StatusSuccess, Output: []string{"a"}}, nil
}

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	reg := registry.New()
	reg.Register(echoTool{})

	auditLog, err := audit.New(audit.Config{Dir: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = auditLog.Close() })

	artifacts, err := artifact.New(t.TempDir(), 0)
	require.NoError(t, err)

	perm := permission.New(permission.WithDefaultPermission(permission.LevelAdmin))
	mapper := executor.NewMapper(
		func(name string, params map[string]interface{}) string { return "workspace/file" },
		func(name string) string { return "read" },
	)
	exec := executor.New(reg, perm, artifacts, auditLog, mapper)

	store, err := planstore.New(t.TempDir())
	require.NoError(t, err)

	sched := scheduler.New(exec, store, auditLog, scheduler.WithTickInterval(5*time.Millisecond))
	return New(store, sched)
}

func TestManager_CreatePlan_UsesGeneratorAndPersists(t *testing.T) {
	m := newTestManager(t)

	p, err := m.CreatePlan(context.Background(), "list repo files", "list files in .", "tester", nil)
	require.NoError(t, err)
	assert.Equal(t, plan.StatusReady, p.Status)
	require.Len(t, p.Steps, 1)
	assert.Equal(t, "list_files", p.Steps[0].ToolName)

	loaded, err := m.LoadPlan(p.ID)
	require.NoError(t, err)
	assert.Equal(t, p.Title, loaded.Title)
}

func TestManager_ExecutePlan_RunsToCompletion(t *testing.T) {
	m := newTestManager(t)

	p, err := m.CreatePlan(context.Background(), "list repo files", "list files in .", "tester", nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, m.ExecutePlan(ctx, p.ID, "tester", true))

	status, total, completed, failed, err := m.PlanStatus(p.ID)
	require.NoError(t, err)
	assert.Equal(t, plan.StatusCompleted, status)
	assert.Equal(t, 1, total)
	assert.Equal(t, 1, completed)
	assert.Equal(t, 0, failed)
}

func TestManager_ExecutePlan_RejectsNonReadyPlan(t *testing.T) {
	m := newTestManager(t)

	p, err := m.CreatePlan(context.Background(), "t", "list files in .", "tester", nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, m.ExecutePlan(ctx, p.ID, "tester", true)) // completes, now terminal

	err = m.ExecutePlan(context.Background(), p.ID, "tester", true)
	require.Error(t, err)
}

func TestManager_ListPlans_FiltersByStatus(t *testing.T) {
	m := newTestManager(t)

	_, err := m.CreatePlan(context.Background(), "p1", "list files in .", "tester", nil)
	require.NoError(t, err)

	ready := plan.StatusReady
	summaries, err := m.ListPlans(&ready)
	require.NoError(t, err)
	assert.Len(t, summaries, 1)
}

func TestManager_DeletePlan_RefusesWhileRunning(t *testing.T) {
	m := newTestManager(t)

	p, err := m.CreatePlan(context.Background(), "p1", "do something risky now", "tester", nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = m.ExecutePlan(ctx, p.ID, "tester", true) }()

	assert.Eventually(t, func() bool {
		return m.scheduler.IsRunning(p.ID)
	}, time.Second, 5*time.Millisecond)

	err = m.DeletePlan(context.Background(), p.ID)
	require.Error(t, err)
}

func TestManager_CreatePlan_RejectsDependencyCycle(t *testing.T) {
	m := newTestManager(t)
	m.generator = func(ctx context.Context, objective string, planContext map[string]interface{}) ([]*plan.Step, error) {
		return []*plan.Step{
			{ID: "a", ToolName: "list_files", DependsOn: []string{"b"}},
			{ID: "b", ToolName: "list_files", DependsOn: []string{"a"}},
		}, nil
	}

	_, err := m.CreatePlan(context.Background(), "cyclic", "list files in .", "tester", nil)
	require.Error(t, err)
	assert.True(t, xerrors.IsConfigValidationError(err))

	summaries, err := m.ListPlans(nil)
	require.NoError(t, err)
	assert.Empty(t, summaries)
}
