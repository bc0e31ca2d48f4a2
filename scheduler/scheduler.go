package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/gomind-labs/orchestrator/audit"
	"github.com/gomind-labs/orchestrator/executor"
	"github.com/gomind-labs/orchestrator/logging"
	"github.com/gomind-labs/orchestrator/plan"
	"github.com/gomind-labs/orchestrator/planstore"
	"github.com/gomind-labs/orchestrator/telemetry"
	"github.com/gomind-labs/orchestrator/xerrors"
)

// Scheduler is the PlanScheduler component: it walks a Plan's step
// dependency graph, dispatching ready steps to the executor up to the
// plan's concurrency limit, pausing at approval gates, and persisting
// progress after every batch. One Scheduler instance serves every plan;
// per-plan state (the cancel func, the in-flight *plan.Plan) is tracked in
// a small registry guarded by its own lock, so concurrent plans never
// contend on each other's dispatch loop.
type Scheduler struct {
	exec     *executor.Executor
	store    *planstore.Store
	auditLog *audit.Log
	logger   logging.Logger

	tickInterval time.Duration

	mu      sync.Mutex
	running map[string]*runningPlan
}

type runningPlan struct {
	plan   *plan.Plan
	dag    *dag
	cancel context.CancelFunc
	mu     sync.Mutex // guards plan field mutation from Approve racing the dispatch loop
}

// Diagnostics reports dependency-graph-level progress for a running plan —
// execution-level parallelism and per-status node counts the plan's own
// coarse TotalSteps/CompletedSteps/FailedSteps counters don't carry,
// surfaced for a richer `orchestrator plan diagnostics` than Manager.PlanStatus's
// stored-plan view gives.
type Diagnostics struct {
	TotalSteps     int
	PendingSteps   int
	RunningSteps   int
	CompletedSteps int
	FailedSteps    int
	SkippedSteps   int
	MaxParallelism int
	Depth          int
	Complete       bool
}

// Diagnostics returns dependency-graph diagnostics for planID's active run,
// or ok=false if planID has no Run loop in flight.
func (s *Scheduler) Diagnostics(planID string) (Diagnostics, bool) {
	s.mu.Lock()
	rp, ok := s.running[planID]
	s.mu.Unlock()
	if !ok {
		return Diagnostics{}, false
	}

	rp.mu.Lock()
	d := rp.dag
	rp.mu.Unlock()
	if d == nil {
		return Diagnostics{}, false
	}

	st := d.stats()
	return Diagnostics{
		TotalSteps: st.TotalNodes, PendingSteps: st.PendingNodes,
		RunningSteps: st.RunningNodes, CompletedSteps: st.CompletedNodes,
		FailedSteps: st.FailedNodes, SkippedSteps: st.SkippedNodes,
		MaxParallelism: st.MaxParallelism, Depth: st.Depth,
		Complete: d.isComplete(),
	}, true
}

// Option configures a Scheduler.
type Option func(*Scheduler)

func WithLogger(l logging.Logger) Option             { return func(s *Scheduler) { s.logger = l } }
func WithTickInterval(d time.Duration) Option        { return func(s *Scheduler) { s.tickInterval = d } }

// New builds a Scheduler wired to an Executor and a PlanStore for
// between-batch persistence.
func New(exec *executor.Executor, store *planstore.Store, auditLog *audit.Log, opts ...Option) *Scheduler {
	s := &Scheduler{
		exec: exec, store: store, auditLog: auditLog,
		logger: logging.NoOpLogger{}, tickInterval: 200 * time.Millisecond,
		running: make(map[string]*runningPlan),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run drives p to completion (or cancellation, or a stop-on-failure halt),
// dispatching ready steps to the executor, persisting via the PlanStore
// after every batch, and pausing whenever a step enters requires_approval
// until ApproveStep resolves it (SPEC_FULL.md §4.8). A ready step
// flagged requiresApproval only gates when its riskLevel is not low, or
// when autoApproveLowRisk is false — matching the executePlan
// autoApproveLowRisk default of true (SPEC_FULL.md §4.9).
func (s *Scheduler) Run(ctx context.Context, p *plan.Plan, actor string, autoApproveLowRisk bool) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	rp := &runningPlan{plan: p, cancel: cancel}
	s.mu.Lock()
	s.running[p.ID] = rp
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.running, p.ID)
		s.mu.Unlock()
	}()

	d := buildDAG(p)
	rp.mu.Lock()
	rp.dag = d
	rp.mu.Unlock()

	now := time.Now().UTC()
	p.StartedAt = &now
	p.Status = plan.StatusRunning
	s.auditLog.LogPlanExecution(actor, p.ID, "start", "started", nil)

	ticker := time.NewTicker(s.tickInterval)
	defer ticker.Stop()

	maxConcurrent := p.MaxConcurrentSteps
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}

	for {
		select {
		case <-runCtx.Done():
			return s.finalize(p, plan.StatusCancelled, actor)
		case <-ticker.C:
		}

		rp.mu.Lock()
		gateApproval(p, s.auditLog, actor, autoApproveLowRisk)
		if p.HasApprovalWaiting() {
			rp.mu.Unlock()
			_ = s.store.Save(ctx, p)
			continue
		}

		ready := p.NextReadySteps()
		if len(ready) == 0 {
			done := !p.HasRunningSteps()
			rp.mu.Unlock()
			if done {
				status := plan.StatusCompleted
				if p.FailedSteps > 0 {
					status = plan.StatusFailed
				}
				return s.finalize(p, status, actor)
			}
			continue
		}

		if len(ready) > maxConcurrent {
			ready = ready[:maxConcurrent]
		}
		for _, step := range ready {
			step.Status = plan.StepRunning
			d.markRunning(step.ID)
		}
		rp.mu.Unlock()

		var wg sync.WaitGroup
		for _, step := range ready {
			wg.Add(1)
			go func(st *plan.Step) {
				defer wg.Done()
				s.exec.Execute(runCtx, actor, p.ID, p.ID, st)
				rp.mu.Lock()
				switch st.Status {
				case plan.StepCompleted:
					d.markCompleted(st.ID)
				case plan.StepFailed:
					d.markFailed(st.ID)
				}
				rp.mu.Unlock()
			}(step)
		}
		wg.Wait()

		rp.mu.Lock()
		p.RecomputeCounts()
		stopNow := p.StopOnFailure && p.FailedSteps > 0
		dagStats := d.stats()
		dagDone := d.isComplete()
		rp.mu.Unlock()
		_ = s.store.Save(ctx, p)

		s.logger.Debug("dispatch batch complete", map[string]interface{}{
			"plan_id": p.ID, "dispatched": len(ready),
			"completed_nodes": dagStats.CompletedNodes, "failed_nodes": dagStats.FailedNodes,
			"running_nodes": dagStats.RunningNodes, "pending_nodes": dagStats.PendingNodes,
			"max_parallelism": dagStats.MaxParallelism, "depth": dagStats.Depth,
			"dag_complete": dagDone,
		})

		if stopNow {
			return s.finalize(p, plan.StatusFailed, actor)
		}
	}
}

// gateApproval transitions a ready, approval-flagged step into
// requires_approval — unless autoApproveLowRisk is set and the step's risk
// is low, in which case it is left pending and dispatches normally
// (SPEC_FULL.md §4.8 main loop).
func gateApproval(p *plan.Plan, auditLog *audit.Log, actor string, autoApproveLowRisk bool) {
	for _, st := range p.Steps {
		if st.Status != plan.StepPending || !st.RequiresApproval {
			continue
		}
		if !dependenciesSatisfied(p, st) {
			continue
		}
		if autoApproveLowRisk && st.RiskLevel == plan.RiskLow {
			continue
		}
		st.Status = plan.StepRequiresApproval
		auditLog.LogApprovalRequired(actor, p.ID, st.ID)
	}
}

func dependenciesSatisfied(p *plan.Plan, st *plan.Step) bool {
	for _, depID := range st.DependsOn {
		dep := p.StepByID(depID)
		if dep == nil || dep.Status != plan.StepCompleted {
			return false
		}
	}
	return true
}

func buildDAG(p *plan.Plan) *dag {
	d := newDAG()
	for _, st := range p.Steps {
		d.addNode(st.ID, st.DependsOn)
	}
	return d
}

func (s *Scheduler) finalize(p *plan.Plan, status plan.Status, actor string) error {
	completed := time.Now().UTC()
	p.CompletedAt = &completed
	if p.StartedAt != nil {
		p.ActualDuration = completed.Sub(*p.StartedAt)
	}
	p.Status = status
	p.RecomputeCounts()
	s.auditLog.LogPlanExecution(actor, p.ID, "finish", string(status), map[string]interface{}{
		"completed_steps": p.CompletedSteps, "failed_steps": p.FailedSteps,
	})
	telemetry.Counter("scheduler.plans_finished", "status", string(status))
	return s.store.Save(context.Background(), p)
}

// ApproveStep resolves a requires_approval step to pending (approved) or
// skipped (denied), letting the next dispatch tick pick it up or bypass it.
// An approved step has its RequiresApproval flag cleared so gateApproval
// does not gate it a second time.
func (s *Scheduler) ApproveStep(planID, stepID, actor string, approved bool) error {
	s.mu.Lock()
	rp, ok := s.running[planID]
	s.mu.Unlock()
	if !ok {
		return xerrors.New("scheduler.ApproveStep", xerrors.KindPlanNotFound, planID, "plan is not currently running")
	}

	rp.mu.Lock()
	defer rp.mu.Unlock()
	st := rp.plan.StepByID(stepID)
	if st == nil || st.Status != plan.StepRequiresApproval {
		return xerrors.New("scheduler.ApproveStep", xerrors.KindStepExecutionError, stepID, "step is not awaiting approval")
	}
	if approved {
		st.Status = plan.StepPending
		st.RequiresApproval = false
	} else {
		st.Status = plan.StepSkipped
	}
	s.auditLog.LogApprovalEvent(actor, planID, stepID, approved)
	return nil
}

// Stop cancels a running plan's context, causing Run to return with
// StatusCancelled on its next tick.
func (s *Scheduler) Stop(planID string) bool {
	s.mu.Lock()
	rp, ok := s.running[planID]
	s.mu.Unlock()
	if !ok {
		return false
	}
	rp.cancel()
	return true
}

// IsRunning reports whether planID currently has an active Run loop.
func (s *Scheduler) IsRunning(planID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.running[planID]
	return ok
}
