package planstore

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gomind-labs/orchestrator/plan"
)

func newTestPlan(id string, status plan.Status) *plan.Plan {
	return &plan.Plan{
		ID:        id,
		Title:     "test plan " + id,
		CreatedAt: time.Now(),
		Status:    status,
		Steps: []*plan.Step{
			{ID: "s1", ToolName: "read_file", Status: plan.StepCompleted, RiskLevel: plan.RiskLow},
		},
		TotalSteps:     1,
		CompletedSteps: 1,
	}
}

func TestStore_SaveAndLoad_RoundTrips(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)

	p := newTestPlan("p1", plan.StatusCompleted)
	require.NoError(t, s.Save(context.Background(), p))

	loaded, err := s.Load("p1")
	require.NoError(t, err)
	assert.Equal(t, p.Title, loaded.Title)
	assert.Equal(t, p.Status, loaded.Status)
	assert.Len(t, loaded.Steps, 1)
}

func TestStore_Save_WritesMarkdownSidecar(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir)
	require.NoError(t, err)

	require.NoError(t, s.Save(context.Background(), newTestPlan("p1", plan.StatusDraft)))

	body, err := os.ReadFile(filepath.Join(dir, "p1.md"))
	require.NoError(t, err)
	assert.Contains(t, string(body), "test plan p1")
}

func TestStore_Load_MissingReturnsPlanNotFound(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)

	_, err = s.Load("nope")
	require.Error(t, err)
}

func TestStore_ListPlans_FiltersByStatusAndOmitsSteps(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, s.Save(context.Background(), newTestPlan("running-1", plan.StatusRunning)))
	require.NoError(t, s.Save(context.Background(), newTestPlan("done-1", plan.StatusCompleted)))

	all, err := s.ListPlans(nil)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	running := plan.StatusRunning
	filtered, err := s.ListPlans(&running)
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, "running-1", filtered[0].ID)
}

func TestStore_DeletePlan_RemovesBothFiles(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir)
	require.NoError(t, err)

	require.NoError(t, s.Save(context.Background(), newTestPlan("p1", plan.StatusCompleted)))
	require.NoError(t, s.DeletePlan(context.Background(), "p1"))

	_, err = os.Stat(filepath.Join(dir, "p1.json"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(dir, "p1.md"))
	assert.True(t, os.IsNotExist(err))
}

func TestStore_DeletePlan_RefusesWhileRunning(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, s.Save(context.Background(), newTestPlan("p1", plan.StatusRunning)))
	err = s.DeletePlan(context.Background(), "p1")
	require.Error(t, err)
}
