// Package manager implements PlanManager: the single façade the CLI (and
// any future caller) drives — create, load, list, execute, stop, approve,
// status, delete — composing planstore, scheduler, and a pluggable plan
// generator behind one surface, the way core/registry.go and
// orchestration/catalog.go each front a cluster of lower-level components
// with one caller-facing type.
package manager

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/gomind-labs/orchestrator/logging"
	"github.com/gomind-labs/orchestrator/plan"
	"github.com/gomind-labs/orchestrator/planstore"
	"github.com/gomind-labs/orchestrator/scheduler"
	"github.com/gomind-labs/orchestrator/xerrors"
)

// PlanGenerator turns a natural-language objective into an ordered set of
// steps. The orchestrator ships HeuristicGenerator as a dependency-free
// default; a real deployment plugs in an AI-backed generator satisfying the
// same signature (SPEC_FULL.md §4.9).
type PlanGenerator func(ctx context.Context, objective string, context map[string]interface{}) ([]*plan.Step, error)

// Manager is the PlanManager component.
type Manager struct {
	store     *planstore.Store
	scheduler *scheduler.Scheduler
	generator PlanGenerator
	logger    logging.Logger
}

// Option configures a Manager.
type Option func(*Manager)

func WithLogger(l logging.Logger) Option            { return func(m *Manager) { m.logger = l } }
func WithGenerator(g PlanGenerator) Option           { return func(m *Manager) { m.generator = g } }

// New builds a Manager. If no generator is supplied, HeuristicGenerator is
// used.
func New(store *planstore.Store, sched *scheduler.Scheduler, opts ...Option) *Manager {
	m := &Manager{store: store, scheduler: sched, generator: HeuristicGenerator, logger: logging.NoOpLogger{}}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// CreatePlan generates steps for objective via the configured
// PlanGenerator, validates the resulting graph, estimates its duration as
// the sum of the steps' timeouts, and persists it as a new ready plan
// (SPEC_FULL.md §4.9, §3 creation invariants).
func (m *Manager) CreatePlan(ctx context.Context, title, objective, creator string, planContext map[string]interface{}) (*plan.Plan, error) {
	steps, err := m.generator(ctx, objective, planContext)
	if err != nil {
		return nil, xerrors.Wrap("manager.CreatePlan", xerrors.KindStepExecutionError, "", err)
	}

	p := &plan.Plan{
		ID:          uuid.NewString(),
		Title:       title,
		Description: objective,
		CreatedAt:   time.Now().UTC(),
		Creator:     creator,
		Steps:       steps,
		Status:      plan.StatusDraft,
		Context:     planContext,
	}
	p.RecomputeCounts()
	for _, st := range steps {
		p.EstimatedDuration += st.EffectiveTimeout()
	}

	if err := p.Validate(); err != nil {
		return nil, xerrors.Wrap("manager.CreatePlan", xerrors.KindConfigValidationError, p.ID, err)
	}
	p.Status = plan.StatusReady

	if err := m.store.Save(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// LoadPlan returns a plan by id.
func (m *Manager) LoadPlan(id string) (*plan.Plan, error) {
	return m.store.Load(id)
}

// ListPlans enumerates plan summaries, optionally filtered by status.
func (m *Manager) ListPlans(statusFilter *plan.Status) ([]planstore.Summary, error) {
	return m.store.ListPlans(statusFilter)
}

// ExecutePlan loads id and drives it through the scheduler, blocking until
// the plan reaches a terminal status, is cancelled, or ctx is done
// (SPEC_FULL.md §4.9). autoApproveLowRisk defaults to true in the CLI
// binding; the caller decides whether to await this call or run it in a
// goroutine — either way the scheduler persists progress after every
// dispatch batch, so a crash mid-run leaves a plan file recording progress
// up to the last completed batch (with its status still running).
func (m *Manager) ExecutePlan(ctx context.Context, id, actor string, autoApproveLowRisk bool) error {
	p, err := m.store.Load(id)
	if err != nil {
		return err
	}
	if p.Status != plan.StatusReady && p.Status != plan.StatusPaused {
		return xerrors.New("manager.ExecutePlan", xerrors.KindPlanNotExecutable, id, fmt.Sprintf("plan is %s, not ready or paused", p.Status))
	}
	return m.scheduler.Run(ctx, p, actor, autoApproveLowRisk)
}

// StopPlan cancels a running plan.
func (m *Manager) StopPlan(id string) bool {
	return m.scheduler.Stop(id)
}

// ApproveStep resolves a pending approval gate.
func (m *Manager) ApproveStep(planID, stepID, actor string, approved bool) error {
	return m.scheduler.ApproveStep(planID, stepID, actor, approved)
}

// PlanStatus returns the current status and step counts for id without
// needing a full Load by the caller.
func (m *Manager) PlanStatus(id string) (plan.Status, int, int, int, error) {
	p, err := m.store.Load(id)
	if err != nil {
		return "", 0, 0, 0, err
	}
	return p.Status, p.TotalSteps, p.CompletedSteps, p.FailedSteps, nil
}

// PlanDiagnostics returns dependency-graph-level progress for id — execution
// parallelism and per-status node counts — when id is actively running.
// ok is false for a plan that is not currently executing, since the
// dependency graph is scheduler-local state built fresh by Scheduler.Run
// and discarded once a plan reaches a terminal status.
func (m *Manager) PlanDiagnostics(id string) (scheduler.Diagnostics, bool) {
	return m.scheduler.Diagnostics(id)
}

// DeletePlan removes a stored plan, refusing while it is running
// (enforced by planstore.Store.DeletePlan itself).
func (m *Manager) DeletePlan(ctx context.Context, id string) error {
	if m.scheduler.IsRunning(id) {
		return xerrors.New("manager.DeletePlan", xerrors.KindPlanNotExecutable, id, "cannot delete a running plan")
	}
	return m.store.DeletePlan(ctx, id)
}
