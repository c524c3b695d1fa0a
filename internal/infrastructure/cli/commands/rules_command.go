package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/doeshing/genosma/internal/app"
	"github.com/doeshing/genosma/internal/infrastructure/security"
)

// NewRulesCommand creates the rules command
func NewRulesCommand(container *app.Container) *cobra.Command {
	rulesCmd := &cobra.Command{
		Use:   "rules",
		Short: "Inspect risk classification",
	}

	rulesCmd.AddCommand(
		&cobra.Command{
			Use:   "check <command>",
			Short: "Classify a shell command without running it",
			Args:  cobra.MinimumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				examiner, err := container.Examiner()
				if err != nil {
					return fmt.Errorf("failed to load risk rules: %w", err)
				}
				assessment := examiner.Assess(strings.Join(args, " "))
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Risk: %s\n", assessment.Tier)
				if container.Config.GetRiskPolicy().RequiresConfirmation(assessment.Tier) {
					fmt.Fprintln(out, "Confirmation: required")
				} else {
					fmt.Fprintln(out, "Confirmation: not required")
				}
				for _, reason := range assessment.Reasons {
					fmt.Fprintf(out, " - %s\n", reason)
				}
				if assessment.Violation != "" {
					fmt.Fprintf(out, "Policy: %s\n", assessment.Violation)
				}
				return nil
			},
		},
		&cobra.Command{
			Use:   "path",
			Short: "Print the rules file in use",
			RunE: func(cmd *cobra.Command, args []string) error {
				fmt.Fprintln(cmd.OutOrStdout(), security.ResolveRulesPath(container.Config.Risk.RulesFile))
				return nil
			},
		},
	)
	return rulesCmd
}
