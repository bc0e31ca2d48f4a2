package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gomind-labs/orchestrator/plan"
)

func newPlanCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Create, list, show, and delete plans",
	}
	cmd.AddCommand(newPlanCreateCommand())
	cmd.AddCommand(newPlanListCommand())
	cmd.AddCommand(newPlanShowCommand())
	cmd.AddCommand(newPlanDeleteCommand())
	cmd.AddCommand(newPlanDiagnosticsCommand())
	return cmd
}

func newPlanDiagnosticsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "diagnostics <planId>",
		Short: "Print dependency-graph progress for a plan that is currently running",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newComponents(configDirFlag(cmd))
			if err != nil {
				return err
			}
			diag, ok := c.manager.PlanDiagnostics(args[0])
			if !ok {
				return fmt.Errorf("plan %s is not currently running", args[0])
			}
			cmd.Printf("%s  pending=%d running=%d completed=%d failed=%d skipped=%d  max_parallelism=%d depth=%d complete=%t\n",
				args[0], diag.PendingSteps, diag.RunningSteps, diag.CompletedSteps, diag.FailedSteps, diag.SkippedSteps,
				diag.MaxParallelism, diag.Depth, diag.Complete)
			return nil
		},
	}
	return cmd
}

func newPlanCreateCommand() *cobra.Command {
	var title, actor string
	cmd := &cobra.Command{
		Use:   "create <objective>",
		Short: "Generate a new plan from a natural-language objective",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newComponents(configDirFlag(cmd))
			if err != nil {
				return err
			}
			if title == "" {
				title = args[0]
			}
			p, err := c.manager.CreatePlan(cmd.Context(), title, args[0], actor, nil)
			if err != nil {
				return err
			}
			cmd.Printf("plan %s created (%d steps, status=%s)\n", p.ID, p.TotalSteps, p.Status)
			return nil
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "plan title (defaults to the objective text)")
	cmd.Flags().StringVar(&actor, "actor", "cli", "identity recorded as the plan's creator")
	return cmd
}

func newPlanListCommand() *cobra.Command {
	var statusFilter string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored plans",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newComponents(configDirFlag(cmd))
			if err != nil {
				return err
			}
			var filter *plan.Status
			if statusFilter != "" {
				s := plan.Status(statusFilter)
				filter = &s
			}
			summaries, err := c.manager.ListPlans(filter)
			if err != nil {
				return err
			}
			for _, s := range summaries {
				cmd.Printf("%s\t%-9s\t%-30s\t%d/%d steps\n", s.ID, s.Status, s.Title, s.CompletedSteps, s.TotalSteps)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&statusFilter, "status", "", "filter by status (draft|ready|running|paused|completed|failed|cancelled)")
	return cmd
}

func newPlanShowCommand() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "show <planId>",
		Short: "Print a plan's full step graph",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newComponents(configDirFlag(cmd))
			if err != nil {
				return err
			}
			p, err := c.manager.LoadPlan(args[0])
			if err != nil {
				return err
			}
			if asJSON {
				body, err := json.MarshalIndent(p, "", "  ")
				if err != nil {
					return fmt.Errorf("marshaling plan: %w", err)
				}
				cmd.Println(string(body))
				return nil
			}
			cmd.Printf("%s  %s  [%s]\n", p.ID, p.Title, p.Status)
			for _, s := range p.Steps {
				approval := ""
				if s.RequiresApproval {
					approval = " (approval required)"
				}
				cmd.Printf("  - %s  %-9s  %-12s  risk=%s%s\n", s.ID, s.Status, s.ToolName, s.RiskLevel, approval)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the full plan as JSON")
	return cmd
}

func newPlanDeleteCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <planId>",
		Short: "Delete a stored plan (refused while running)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newComponents(configDirFlag(cmd))
			if err != nil {
				return err
			}
			if err := c.manager.DeletePlan(cmd.Context(), args[0]); err != nil {
				return err
			}
			cmd.Printf("plan %s deleted\n", args[0])
			return nil
		},
	}
	return cmd
}
