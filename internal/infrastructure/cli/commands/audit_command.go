package commands

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/doeshing/genosma/internal/app"
	auditapp "github.com/doeshing/genosma/internal/application/audit"
	"github.com/doeshing/genosma/internal/domain"
)

// NewAuditCommand creates the audit command
func NewAuditCommand(container *app.Container) *cobra.Command {
	auditCmd := &cobra.Command{
		Use:   "audit",
		Short: "Read the durable audit log",
	}

	var (
		runID string
		limit int
	)
	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Show recent audit records",
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit < 0 {
				return fmt.Errorf(ErrInvalidLimit)
			}
			if container.AuditLog == nil {
				return fmt.Errorf(ErrAuditLogUnavailable)
			}
			records, err := container.AuditLog.Records(cmd.Context(), runID, limit)
			if err != nil {
				return fmt.Errorf("failed to read audit log: %w", err)
			}
			if len(records) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), MsgNoAuditRecords)
				return nil
			}
			writeAuditRecords(cmd.OutOrStdout(), records)
			if runID != "" {
				writeAuditSummary(cmd.OutOrStdout(), auditapp.Summarize(records))
			}
			return nil
		},
	}
	showCmd.Flags().StringVar(&runID, "run", "", "Only records of this run ID")
	showCmd.Flags().IntVarP(&limit, "limit", "n", 50, "Maximum records to show (0 for all)")

	auditCmd.AddCommand(showCmd, &cobra.Command{
		Use:   "path",
		Short: "Print the audit log location",
		RunE: func(cmd *cobra.Command, args []string) error {
			if container.AuditLog == nil {
				return fmt.Errorf(ErrAuditLogUnavailable)
			}
			fmt.Fprintln(cmd.OutOrStdout(), container.AuditLog.Path())
			return nil
		},
	})
	return auditCmd
}

func writeAuditRecords(out io.Writer, records []domain.AuditRecord) {
	for _, record := range records {
		var b strings.Builder
		fmt.Fprintf(&b, "%s %s %-13s %-14s", record.Timestamp.Format(TimestampFormat), shortID(record.RunID), record.Stage, record.Event)
		if record.StepOrdinal != 0 {
			fmt.Fprintf(&b, " step %d/r%d", record.StepOrdinal, record.Revision)
		}
		if record.State != "" {
			fmt.Fprintf(&b, " -> %s", record.State)
		}
		if record.Detail != "" {
			fmt.Fprintf(&b, " %s", record.Detail)
		}
		if record.Error != "" {
			fmt.Fprintf(&b, " (error: %s)", record.Error)
		}
		fmt.Fprintln(out, b.String())
	}
}

func writeAuditSummary(out io.Writer, summary domain.RunSummary) {
	if summary.Total == 0 {
		return
	}
	fmt.Fprintf(out, "\n%d steps: %d succeeded, %d failed (%d timed out); busy %s of %s\n",
		summary.Total, summary.Succeeded, summary.Failed, summary.TimedOut,
		summary.Busy.Round(time.Millisecond), summary.Elapsed.Round(time.Millisecond))
	for _, step := range summary.Steps {
		mark := "ok"
		if step.Failed {
			mark = "FAILED"
		}
		fmt.Fprintf(out, "  r%d #%d %-6s %8s  %s\n", step.Revision, step.Ordinal, mark,
			step.Duration.Round(time.Millisecond), step.Command)
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
