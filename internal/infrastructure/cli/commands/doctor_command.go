package commands

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/doeshing/genosma/internal/app"
	"github.com/doeshing/genosma/internal/domain"
)

var healthStyles = map[domain.HealthStatus]lipgloss.Style{
	domain.HealthOK:    lipgloss.NewStyle().Foreground(lipgloss.Color("10")),
	domain.HealthWarn:  lipgloss.NewStyle().Foreground(lipgloss.Color("11")),
	domain.HealthError: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9")),
}

// NewDoctorCommand checks that every collaborator of a run can be reached.
// Warnings leave the exit status alone; any error makes it nonzero.
func NewDoctorCommand(container *app.Container) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check configuration, rules, stores and API keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			if container.DoctorService == nil {
				return fmt.Errorf(ErrDoctorServiceUnavailable)
			}
			report, err := container.DoctorService.Run(cmd.Context())
			writeHealthReport(cmd.OutOrStdout(), report)
			if err != nil {
				return fmt.Errorf("diagnostics completed with errors: %w", err)
			}
			if failed := report.Failed(); len(failed) > 0 {
				return fmt.Errorf("%d check(s) failed", len(failed))
			}
			return nil
		},
	}
}

func writeHealthReport(out io.Writer, report domain.HealthReport) {
	counts := map[domain.HealthStatus]int{}
	for _, check := range report.Checks {
		counts[check.Status]++
		label := fmt.Sprintf("%-5s", check.Status)
		fmt.Fprintf(out, "[%s] %-18s %s\n", healthStyles[check.Status].Render(label), check.Name, check.Details)
	}
	fmt.Fprintf(out, "\n%d ok, %d warnings, %d errors\n", counts[domain.HealthOK], counts[domain.HealthWarn], counts[domain.HealthError])
}
