package plan

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStep(id string, deps ...string) *Step {
	return &Step{ID: id, ToolName: "noop", Status: StepPending, DependsOn: deps, RiskLevel: RiskLow}
}

func TestValidate_DetectsDuplicateStepIDs(t *testing.T) {
	p := &Plan{Steps: []*Step{newStep("a"), newStep("a")}}
	require.Error(t, p.Validate())
}

func TestValidate_DetectsUnknownDependency(t *testing.T) {
	p := &Plan{Steps: []*Step{newStep("a", "ghost")}}
	require.Error(t, p.Validate())
}

func TestValidate_DetectsCycle(t *testing.T) {
	p := &Plan{Steps: []*Step{newStep("a", "b"), newStep("b", "a")}}
	require.Error(t, p.Validate())
}

func TestValidate_AcceptsValidDAG(t *testing.T) {
	p := &Plan{Steps: []*Step{newStep("a"), newStep("b", "a"), newStep("c", "a", "b")}}
	require.NoError(t, p.Validate())
}

func TestNextReadySteps_OnlyDependenciesSatisfied(t *testing.T) {
	a := newStep("a")
	a.Status = StepCompleted
	b := newStep("b", "a")
	c := newStep("c", "b")
	p := &Plan{Steps: []*Step{a, b, c}}

	ready := p.NextReadySteps()
	require.Len(t, ready, 1)
	assert.Equal(t, "b", ready[0].ID)
}

func TestNextReadySteps_PreservesPlanOrder(t *testing.T) {
	a := newStep("a")
	b := newStep("b")
	p := &Plan{Steps: []*Step{b, a}}

	ready := p.NextReadySteps()
	require.Len(t, ready, 2)
	assert.Equal(t, "b", ready[0].ID)
	assert.Equal(t, "a", ready[1].ID)
}

func TestRecomputeCounts_TracksEachTerminalStatus(t *testing.T) {
	a := newStep("a")
	a.Status = StepCompleted
	b := newStep("b")
	b.Status = StepFailed
	c := newStep("c")
	c.Status = StepSkipped
	d := newStep("d")

	p := &Plan{Steps: []*Step{a, b, c, d}}
	p.RecomputeCounts()

	assert.Equal(t, 4, p.TotalSteps)
	assert.Equal(t, 1, p.CompletedSteps)
	assert.Equal(t, 1, p.FailedSteps)
	assert.Equal(t, 1, p.SkippedSteps)
}

func TestStep_EffectiveTimeout_ZeroBecomesOneSecondMinimum(t *testing.T) {
	s := newStep("a")
	s.TimeoutSeconds = 0
	assert.Equal(t, time.Second, s.EffectiveTimeout())
}

func TestHasApprovalWaitingAndHasRunningSteps(t *testing.T) {
	a := newStep("a")
	a.Status = StepRequiresApproval
	p := &Plan{Steps: []*Step{a}}
	assert.True(t, p.HasApprovalWaiting())
	assert.False(t, p.HasRunningSteps())

	a.Status = StepRunning
	assert.True(t, p.HasRunningSteps())
}

func TestPlan_JSONRoundTrip_PreservesUnknownFields(t *testing.T) {
	original := []byte(`{
		"id": "p1", "title": "t", "description": "d", "creator": "tester",
		"status": "ready", "steps": [], "max_concurrent_steps": 2,
		"estimated_duration": 0, "actual_duration": 0,
		"future_flag": true, "future_section": {"nested": "value"}
	}`)

	var p Plan
	require.NoError(t, json.Unmarshal(original, &p))
	assert.Equal(t, "p1", p.ID)
	assert.Equal(t, true, p.Unknown["future_flag"])
	assert.Equal(t, map[string]interface{}{"nested": "value"}, p.Unknown["future_section"])

	out, err := json.Marshal(&p)
	require.NoError(t, err)

	var roundTripped map[string]interface{}
	require.NoError(t, json.Unmarshal(out, &roundTripped))
	assert.Equal(t, true, roundTripped["future_flag"])
	assert.Equal(t, map[string]interface{}{"nested": "value"}, roundTripped["future_section"])
	assert.Equal(t, "p1", roundTripped["id"])
}

func TestPlan_JSONRoundTrip_DurationsEncodeAsSeconds(t *testing.T) {
	p := &Plan{
		ID:                "p1",
		EstimatedDuration: 90 * time.Second,
		ActualDuration:    1500 * time.Millisecond,
	}

	out, err := json.Marshal(p)
	require.NoError(t, err)

	var raw map[string]interface{}
	require.NoError(t, json.Unmarshal(out, &raw))
	assert.Equal(t, float64(90), raw["estimated_duration"])
	assert.Equal(t, 1.5, raw["actual_duration"])

	var decoded Plan
	require.NoError(t, json.Unmarshal(out, &decoded))
	assert.Equal(t, 90*time.Second, decoded.EstimatedDuration)
	assert.Equal(t, 1500*time.Millisecond, decoded.ActualDuration)
}
