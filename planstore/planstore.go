// Package planstore implements PlanStore: durable directory-based
// persistence of plans as sibling <id>.json (source of truth) and <id>.md
// (regenerated, informational) files. An optional StorageProvider-shaped
// secondary index may mirror plan summaries for fast listing at scale —
// the same Redis/Postgres/DynamoDB tradeoff orchestration/execution_store.go
// documents for its own execution index — but the directory is always
// authoritative; a cold start rebuilds from it.
package planstore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/gomind-labs/orchestrator/plan"
	"github.com/gomind-labs/orchestrator/xerrors"
)

// StorageProvider is the storage-agnostic seam an optional secondary index
// implements: Redis backs it with ZADD/ZREVRANGEBYSCORE/ZREM, PostgreSQL
// with an INSERT/SELECT ORDER BY/DELETE against a score column — directly
// grounded on orchestration/execution_store.go's StorageProvider interface.
type StorageProvider interface {
	Set(ctx context.Context, key string, value []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	Del(ctx context.Context, key string) error
	AddToIndex(ctx context.Context, index, key string, score float64) error
	ListByScoreDesc(ctx context.Context, index string, limit int) ([]string, error)
	RemoveFromIndex(ctx context.Context, index, key string) error
}

// Summary is the lightweight record listPlans returns without loading steps.
type Summary struct {
	ID             string      `json:"id"`
	Title          string      `json:"title"`
	Status         plan.Status `json:"status"`
	CreatedAt      time.Time   `json:"created_at"`
	TotalSteps     int         `json:"total_steps"`
	CompletedSteps int         `json:"completed_steps"`
	FailedSteps    int         `json:"failed_steps"`
}

// Store is the PlanStore component.
type Store struct {
	dir   string
	index StorageProvider // optional secondary index; nil disables it
}

// Option configures a Store.
type Option func(*Store)

// WithIndex attaches an optional secondary index for fast listing.
func WithIndex(p StorageProvider) Option {
	return func(s *Store) { s.index = p }
}

// New roots a Store at dir, creating it if necessary.
func New(dir string, opts ...Option) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("planstore: create dir: %w", err)
	}
	s := &Store{dir: dir}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Store) jsonPath(id string) string { return filepath.Join(s.dir, id+".json") }
func (s *Store) mdPath(id string) string   { return filepath.Join(s.dir, id+".md") }

// Save persists p as <id>.json (canonical) and regenerates <id>.md
// (informational). Markdown generation failures are ignored per
// SPEC_FULL.md §4.6 ("markdown parse errors are ignored").
func (s *Store) Save(ctx context.Context, p *plan.Plan) error {
	body, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return xerrors.Wrap("planstore.Save", xerrors.KindStorageError, p.ID, err)
	}

	tmp := s.jsonPath(p.ID) + ".tmp"
	if err := os.WriteFile(tmp, body, 0o644); err != nil {
		return xerrors.Wrap("planstore.Save", xerrors.KindStorageError, p.ID, err)
	}
	if err := os.Rename(tmp, s.jsonPath(p.ID)); err != nil {
		return xerrors.Wrap("planstore.Save", xerrors.KindStorageError, p.ID, err)
	}

	if md := renderMarkdown(p); md != "" {
		_ = os.WriteFile(s.mdPath(p.ID), []byte(md), 0o644)
	}

	if s.index != nil {
		summary := summaryOf(p)
		if sb, err := json.Marshal(summary); err == nil {
			_ = s.index.Set(ctx, p.ID, sb)
			_ = s.index.AddToIndex(ctx, "plans", p.ID, float64(p.CreatedAt.Unix()))
		}
	}
	return nil
}

// Load deserializes <id>.json, returning xerrors.ErrPlanNotFound if absent.
func (s *Store) Load(id string) (*plan.Plan, error) {
	body, err := os.ReadFile(s.jsonPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, xerrors.New("planstore.Load", xerrors.KindPlanNotFound, id, "")
		}
		return nil, xerrors.Wrap("planstore.Load", xerrors.KindStorageError, id, err)
	}
	var p plan.Plan
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, xerrors.Wrap("planstore.Load", xerrors.KindStorageError, id, err)
	}
	return &p, nil
}

// ListPlans enumerates <id>.json files in the directory, optionally
// filtered by status, returning one Summary per plan without loading full
// steps (SPEC_FULL.md §4.6, §8 invariant 8).
func (s *Store) ListPlans(statusFilter *plan.Status) ([]Summary, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, xerrors.Wrap("planstore.ListPlans", xerrors.KindStorageError, "", err)
	}

	var out []Summary
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") || strings.HasSuffix(name, ".tmp") {
			continue
		}
		id := strings.TrimSuffix(name, ".json")
		body, err := os.ReadFile(filepath.Join(s.dir, name))
		if err != nil {
			continue
		}
		var sum Summary // decodes only the summary keys; steps are skipped
		if err := json.Unmarshal(body, &sum); err != nil {
			continue // a corrupt single file should not fail the whole listing
		}
		sum.ID = id
		if statusFilter != nil && sum.Status != *statusFilter {
			continue
		}
		out = append(out, sum)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func summaryOf(p *plan.Plan) Summary {
	return Summary{
		ID: p.ID, Title: p.Title, Status: p.Status, CreatedAt: p.CreatedAt,
		TotalSteps: p.TotalSteps, CompletedSteps: p.CompletedSteps, FailedSteps: p.FailedSteps,
	}
}

// DeletePlan removes both sibling files. Fails if the plan is running
// (SPEC_FULL.md §4.6).
func (s *Store) DeletePlan(ctx context.Context, id string) error {
	p, err := s.Load(id)
	if err != nil {
		return err
	}
	if p.Status == plan.StatusRunning {
		return xerrors.New("planstore.DeletePlan", xerrors.KindPlanNotExecutable, id, "cannot delete a running plan")
	}
	_ = os.Remove(s.jsonPath(id))
	_ = os.Remove(s.mdPath(id))
	if s.index != nil {
		_ = s.index.Del(ctx, id)
		_ = s.index.RemoveFromIndex(ctx, "plans", id)
	}
	return nil
}

func renderMarkdown(p *plan.Plan) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", p.Title)
	fmt.Fprintf(&b, "- **ID**: %s\n", p.ID)
	fmt.Fprintf(&b, "- **Status**: %s\n", p.Status)
	fmt.Fprintf(&b, "- **Created**: %s\n", p.CreatedAt.Format(time.RFC3339))
	fmt.Fprintf(&b, "- **Progress**: %d/%d completed, %d failed, %d skipped\n\n", p.CompletedSteps, p.TotalSteps, p.FailedSteps, p.SkippedSteps)
	fmt.Fprintf(&b, "%s\n\n", p.Description)
	fmt.Fprintf(&b, "## Steps\n\n")
	for _, step := range p.Steps {
		fmt.Fprintf(&b, "1. `%s` (%s) — %s — risk=%s\n", step.ToolName, step.Status, step.Description, step.RiskLevel)
	}
	return b.String()
}
