package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newPermissionsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "permissions [list|show|check|enable|disable]",
		Short: "Inspect and toggle permission rules",
	}
	cmd.AddCommand(newPermissionsListCommand())
	cmd.AddCommand(newPermissionsShowCommand())
	cmd.AddCommand(newPermissionsCheckCommand())
	cmd.AddCommand(newPermissionsToggleCommand("enable", true))
	cmd.AddCommand(newPermissionsToggleCommand("disable", false))
	return cmd
}

func newPermissionsListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every permission rule in evaluation order",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newComponents(configDirFlag(cmd))
			if err != nil {
				return err
			}
			for _, r := range c.permEng.Rules() {
				state := "enabled"
				if !r.Enabled {
					state = "disabled"
				}
				cmd.Printf("%-28s priority=%-5d level=%-8s [%s]  %s\n", r.ID, r.Priority, r.PermissionLevel, state, r.Name)
			}
			return nil
		},
	}
}

func newPermissionsShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show <ruleId>",
		Short: "Print full detail for one rule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newComponents(configDirFlag(cmd))
			if err != nil {
				return err
			}
			for _, r := range c.permEng.Rules() {
				if r.ID == args[0] {
					cmd.Printf("id:          %s\n", r.ID)
					cmd.Printf("name:        %s\n", r.Name)
					cmd.Printf("description: %s\n", r.Description)
					cmd.Printf("resource:    %s %q\n", r.ResourceType, r.ResourcePattern)
					cmd.Printf("tools:       %v\n", r.ToolNames)
					cmd.Printf("level:       %s\n", r.PermissionLevel)
					cmd.Printf("priority:    %d\n", r.Priority)
					cmd.Printf("enabled:     %t\n", r.Enabled)
					return nil
				}
			}
			return fmt.Errorf("no permission rule with id %q", args[0])
		},
	}
}

func newPermissionsCheckCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "check <toolName> <resource> <action> [actor]",
		Short: "Evaluate a permission check the way the executor would",
		Args:  cobra.RangeArgs(3, 4),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newComponents(configDirFlag(cmd))
			if err != nil {
				return err
			}
			actor := "cli"
			if len(args) == 4 {
				actor = args[3]
			}
			decision := c.permEng.Check(args[0], args[1], args[2], actor, "", "")
			cmd.Printf("allowed=%t matched_rule=%s required=%s granted=%s\n",
				decision.Allowed, decision.MatchedID, decision.Required, decision.Granted)
			return nil
		},
	}
}

func newPermissionsToggleCommand(use string, enabled bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <ruleId>",
		Short: fmt.Sprintf("%s a permission rule by id", use),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newComponents(configDirFlag(cmd))
			if err != nil {
				return err
			}
			if !c.permEng.SetEnabled(args[0], enabled) {
				return fmt.Errorf("no permission rule with id %q", args[0])
			}
			cmd.Printf("rule %s %sd\n", args[0], use)
			return nil
		},
	}
}
