package cli

import (
	"os"

	"github.com/spf13/cobra"
)

// NewRootCommand constructs the orchestrator root Cobra command, wiring
// every subcommand group named in SPEC_FULL.md §6. SilenceUsage/
// SilenceErrors keeps error formatting centralized in main(), matching the
// pack's own root-command convention.
func NewRootCommand() *cobra.Command {
	version := os.Getenv("ORCHESTRATOR_VERSION")
	if version == "" {
		version = "0.0.0-dev"
	}

	cmd := &cobra.Command{
		Use:           "orchestrator",
		Short:         "Autonomous execution orchestrator",
		Long:          "orchestrator plans and drives multi-step tool executions behind a permission gate and an auditable execution trail.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().String("config-dir", "", "directory of persona/system YAML documents (optional)")

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the orchestrator version",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Println(version)
		},
	})

	cmd.AddCommand(newPlanCommand())
	cmd.AddCommand(newRunCommand())
	cmd.AddCommand(newApproveCommand())
	cmd.AddCommand(newStopCommand())
	cmd.AddCommand(newLogsCommand())
	cmd.AddCommand(newPermissionsCommand())

	return cmd
}

func configDirFlag(cmd *cobra.Command) string {
	dir, _ := cmd.Flags().GetString("config-dir")
	return dir
}
