package manager

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/gomind-labs/orchestrator/plan"
)

// HeuristicGenerator is the dependency-free default PlanGenerator: it
// splits an objective on sentence-ish boundaries and maps each clause to
// one of the three reference tools by keyword, defaulting unrecognized
// clauses to bash_execute at high risk so they land behind an approval
// gate rather than running unreviewed. A production deployment is
// expected to replace this with an AI-backed generator; this exists so the
// orchestrator is runnable standalone (SPEC_FULL.md §1 Non-goals: step
// generation quality is explicitly out of scope for the core engine).
func HeuristicGenerator(ctx context.Context, objective string, planContext map[string]interface{}) ([]*plan.Step, error) {
	clauses := splitClauses(objective)
	if len(clauses) == 0 {
		return nil, fmt.Errorf("manager: objective %q produced no actionable steps", objective)
	}

	steps := make([]*plan.Step, 0, len(clauses))
	var prevID string
	for _, clause := range clauses {
		step := stepFor(clause)
		if prevID != "" {
			step.DependsOn = []string{prevID}
		}
		steps = append(steps, step)
		prevID = step.ID
	}
	return steps, nil
}

func splitClauses(objective string) []string {
	raw := strings.FieldsFunc(objective, func(r rune) bool {
		return r == '.' || r == ';' || r == '\n'
	})
	var out []string
	for _, c := range raw {
		c = strings.TrimSpace(c)
		if c != "" {
			out = append(out, c)
		}
	}
	return out
}

func stepFor(clause string) *plan.Step {
	lower := strings.ToLower(clause)
	id := uuid.NewString()

	switch {
	case strings.Contains(lower, "list") && strings.Contains(lower, "file"):
		return &plan.Step{
			ID: id, ToolName: "list_files", Description: clause,
			Params: map[string]interface{}{"path": pathHint(lower, ".")},
			RiskLevel: plan.RiskLow, TimeoutSeconds: 10, MaxRetries: 1,
			Status: plan.StepPending,
		}
	case strings.Contains(lower, "read"):
		return &plan.Step{
			ID: id, ToolName: "read_file", Description: clause,
			Params: map[string]interface{}{"path": pathHint(lower, "README.md")},
			RiskLevel: plan.RiskLow, TimeoutSeconds: 10, MaxRetries: 1,
			Status: plan.StepPending,
		}
	default:
		return &plan.Step{
			ID: id, ToolName: "bash_execute", Description: clause,
			Params: map[string]interface{}{"command": clause},
			RiskLevel: plan.RiskHigh, TimeoutSeconds: 30, MaxRetries: 0,
			RequiresApproval: true, Status: plan.StepPending,
		}
	}
}

// pathHint pulls a bare path-looking token out of clause, falling back to
// def when none is found.
func pathHint(clause, def string) string {
	for _, token := range strings.Fields(clause) {
		if strings.Contains(token, "/") || strings.Contains(token, ".") {
			return strings.Trim(token, `"'.,`)
		}
	}
	return def
}
