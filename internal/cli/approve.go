package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newApproveCommand() *cobra.Command {
	var actor string
	cmd := &cobra.Command{
		Use:   "approve <planId> <stepId> [yes|no]",
		Short: "Resolve a step waiting on an approval gate",
		Args:  cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newComponents(configDirFlag(cmd))
			if err != nil {
				return err
			}
			approved := true
			if len(args) == 3 {
				switch args[2] {
				case "yes":
					approved = true
				case "no":
					approved = false
				default:
					return fmt.Errorf("third argument must be yes or no, got %q", args[2])
				}
			}
			if err := c.manager.ApproveStep(args[0], args[1], actor, approved); err != nil {
				return err
			}
			verb := "approved"
			if !approved {
				verb = "denied"
			}
			cmd.Printf("step %s on plan %s %s\n", args[1], args[0], verb)
			return nil
		},
	}
	cmd.Flags().StringVar(&actor, "actor", "cli", "identity recorded as the approver")
	return cmd
}
