package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gomind-labs/orchestrator/audit"
)

func newLogsCommand() *cobra.Command {
	var limit int
	var exportPath, exportFormat string
	cmd := &cobra.Command{
		Use:   "logs [recent|security|permissions|secrets|tools|plans|errors|summary|export|clear]",
		Short: "Inspect the audit journal",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newComponents(configDirFlag(cmd))
			if err != nil {
				return err
			}
			defer c.auditLog.Close()

			view := "recent"
			if len(args) == 1 {
				view = args[0]
			}

			switch view {
			case "recent":
				printEvents(cmd, c.auditLog.RecentEvents(limit, audit.Filter{}))
			case "security":
				t := audit.EventSandboxViolation
				printEvents(cmd, c.auditLog.RecentEvents(limit, audit.Filter{EventType: &t}))
			case "permissions":
				t := audit.EventPermissionCheck
				printEvents(cmd, c.auditLog.RecentEvents(limit, audit.Filter{EventType: &t}))
			case "secrets":
				t := audit.EventSecretDetected
				printEvents(cmd, c.auditLog.RecentEvents(limit, audit.Filter{EventType: &t}))
			case "tools":
				t := audit.EventToolExecution
				printEvents(cmd, c.auditLog.RecentEvents(limit, audit.Filter{EventType: &t}))
			case "plans":
				t := audit.EventPlanExecution
				printEvents(cmd, c.auditLog.RecentEvents(limit, audit.Filter{EventType: &t}))
			case "errors":
				s := audit.SeverityError
				printEvents(cmd, c.auditLog.RecentEvents(limit, audit.Filter{Severity: &s}))
			case "summary":
				s := c.auditLog.Summary()
				cmd.Printf("total=%d permission_denials=%d secret_detections=%d\n", s.TotalEvents, s.PermissionDenials, s.SecretDetections)
				for k, v := range s.ByType {
					cmd.Printf("  %s: %d\n", k, v)
				}
			case "export":
				if exportPath == "" {
					return fmt.Errorf("logs export requires --out <path>")
				}
				if err := c.auditLog.Export(exportPath, exportFormat); err != nil {
					return err
				}
				cmd.Printf("exported to %s (%s)\n", exportPath, exportFormat)
			case "clear":
				return fmt.Errorf("logs clear is refused: the audit journal is append-only by design")
			default:
				return fmt.Errorf("unknown logs view %q", view)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum events to print")
	cmd.Flags().StringVar(&exportPath, "out", "", "destination path for the export view")
	cmd.Flags().StringVar(&exportFormat, "format", "json", "export format: json|csv")
	return cmd
}

func printEvents(cmd *cobra.Command, events []audit.Event) {
	for _, e := range events {
		cmd.Printf("%s  %-20s  %-8s  actor=%-10s resource=%-20s result=%s\n",
			e.Timestamp.Format("2006-01-02T15:04:05Z"), e.EventType, e.Severity, e.Actor, e.Resource, e.Result)
	}
}
