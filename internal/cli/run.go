package cli

import (
	"github.com/spf13/cobra"
)

func newRunCommand() *cobra.Command {
	var actor string
	var dryRun, noAutoApprove bool
	cmd := &cobra.Command{
		Use:   "run <planId>",
		Short: "Execute a plan to completion, pausing at approval gates",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newComponents(configDirFlag(cmd))
			if err != nil {
				return err
			}

			if dryRun {
				p, err := c.manager.LoadPlan(args[0])
				if err != nil {
					return err
				}
				cmd.Printf("dry run: %s would execute %d step(s)\n", p.ID, p.TotalSteps)
				for _, s := range p.Steps {
					cmd.Printf("  - %s  %s  risk=%s  depends_on=%v\n", s.ID, s.ToolName, s.RiskLevel, s.DependsOn)
				}
				return nil
			}

			autoApprove := !noAutoApprove
			if err := c.manager.ExecutePlan(cmd.Context(), args[0], actor, autoApprove); err != nil {
				return err
			}

			status, total, completed, failed, err := c.manager.PlanStatus(args[0])
			if err != nil {
				return err
			}
			cmd.Printf("plan %s finished: status=%s completed=%d/%d failed=%d\n", args[0], status, completed, total, failed)
			return nil
		},
	}
	cmd.Flags().StringVar(&actor, "actor", "cli", "identity recorded against every step this run executes")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the steps that would run without executing them")
	cmd.Flags().BoolVar(&noAutoApprove, "no-auto-approve", false, "require explicit approval even for low-risk steps")
	return cmd
}
