package cli

import (
	"github.com/spf13/cobra"

	"github.com/gomind-labs/orchestrator/xerrors"
)

func newStopCommand() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "stop <planId>",
		Short: "Cancel a running plan",
		Long: "Cancel a running plan. Stop only finds a plan running within this same " +
			"process — there is no shared daemon, so a plan started by a separate `run` " +
			"invocation cannot be stopped from here; --force is accepted for interface " +
			"completeness but the orchestrator has only one cancellation path.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newComponents(configDirFlag(cmd))
			if err != nil {
				return err
			}
			_ = force
			if !c.manager.StopPlan(args[0]) {
				return xerrors.New("cli.stop", xerrors.KindPlanNotFound, args[0], "not currently running in this process")
			}
			cmd.Printf("stop requested for plan %s\n", args[0])
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "accepted for interface completeness (see Long help)")
	return cmd
}
