package commands

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/sahilm/fuzzy"
	"github.com/spf13/cobra"

	"github.com/doeshing/genosma/internal/app"
	"github.com/doeshing/genosma/internal/domain"
	"github.com/doeshing/genosma/internal/infrastructure/knowledge"
	"github.com/doeshing/genosma/internal/pkg/similarity"
)

// NewKnowledgeCommand creates the kb command with all subcommands
func NewKnowledgeCommand(container *app.Container) *cobra.Command {
	kbCmd := &cobra.Command{
		Use:     "kb",
		Aliases: []string{"knowledge"},
		Short:   "Inspect remembered plans",
	}

	kbCmd.AddCommand(
		newKnowledgeListCommand(container),
		newKnowledgeSearchCommand(container),
		newKnowledgeExportCommand(container),
		&cobra.Command{
			Use:   "path",
			Short: "Print the knowledge store location",
			RunE: func(cmd *cobra.Command, args []string) error {
				if container.Knowledge == nil {
					return fmt.Errorf(ErrKnowledgeUnavailable)
				}
				fmt.Fprintln(cmd.OutOrStdout(), container.Knowledge.Path())
				return nil
			},
		},
	)
	return kbCmd
}

func newKnowledgeListCommand(container *app.Container) *cobra.Command {
	var (
		limit   int
		verbose bool
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List remembered requests, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit < 0 {
				return fmt.Errorf(ErrInvalidLimit)
			}
			if container.Knowledge == nil {
				return fmt.Errorf(ErrKnowledgeUnavailable)
			}
			entries, err := container.Knowledge.List(cmd.Context(), limit)
			if err != nil {
				return fmt.Errorf("failed to list knowledge: %w", err)
			}
			if len(entries) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), MsgNoKnowledge)
				return nil
			}
			writeEntries(cmd.OutOrStdout(), entries, nil, verbose)
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", defaultListLimit, "Maximum entries to show (0 for all)")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Show each plan's commands")
	return cmd
}

func newKnowledgeSearchCommand(container *app.Container) *cobra.Command {
	var (
		threshold float64
		verbose   bool
	)
	cmd := &cobra.Command{
		Use:   "search <text>",
		Short: "Find remembered requests resembling text",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if container.Knowledge == nil {
				return fmt.Errorf(ErrKnowledgeUnavailable)
			}
			if !cmd.Flags().Changed("threshold") {
				threshold = container.Config.GetSimilarityThreshold()
			}
			entries, err := container.Knowledge.List(cmd.Context(), 0)
			if err != nil {
				return fmt.Errorf("failed to list knowledge: %w", err)
			}
			hits := rankEntries(strings.Join(args, " "), entries, threshold)
			if len(hits) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), MsgNoMatches)
				return nil
			}
			ranked := make([]domain.KnowledgeEntry, len(hits))
			scores := make([]float64, len(hits))
			for i, hit := range hits {
				ranked[i], scores[i] = hit.entry, hit.score
			}
			writeEntries(cmd.OutOrStdout(), ranked, scores, verbose)
			return nil
		},
	}
	cmd.Flags().Float64Var(&threshold, "threshold", 0, "Minimum similarity score (defaults to planning.similarity_threshold)")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Show each plan's commands")
	return cmd
}

func newKnowledgeExportCommand(container *app.Container) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write every remembered plan as JSON lines",
		RunE: func(cmd *cobra.Command, args []string) error {
			if container.Knowledge == nil {
				return fmt.Errorf(ErrKnowledgeUnavailable)
			}
			var w io.Writer = cmd.OutOrStdout()
			if output != "" && output != "-" {
				f, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("failed to create %s: %w", output, err)
				}
				defer f.Close()
				w = f
			}
			n, err := knowledge.Export(cmd.Context(), container.Knowledge, w)
			if err != nil {
				return fmt.Errorf("export failed after %d entries: %w", n, err)
			}
			if w != cmd.OutOrStdout() {
				fmt.Fprintf(cmd.ErrOrStderr(), "Exported %d entries to %s\n", n, output)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write to file instead of stdout")
	return cmd
}

type rankedEntry struct {
	entry domain.KnowledgeEntry
	score float64
	fuzzy bool
}

// rankEntries keeps entries whose similarity clears threshold, plus any
// that contain the query as a fuzzy subsequence. Similarity orders the
// result; fuzzy-only hits follow in fuzzy order.
func rankEntries(query string, entries []domain.KnowledgeEntry, threshold float64) []rankedEntry {
	texts := make([]string, len(entries))
	for i, entry := range entries {
		texts[i] = entry.RequestText
	}

	seen := make(map[int]bool)
	var hits []rankedEntry
	for i, entry := range entries {
		score := similarity.Ratio(query, entry.RequestText)
		if score >= threshold && score > 0 {
			hits = append(hits, rankedEntry{entry: entry, score: score})
			seen[i] = true
		}
	}
	sort.SliceStable(hits, func(a, b int) bool { return hits[a].score > hits[b].score })

	for _, m := range fuzzy.Find(similarity.Normalize(query), lowered(texts)) {
		if seen[m.Index] {
			continue
		}
		seen[m.Index] = true
		hits = append(hits, rankedEntry{
			entry: entries[m.Index],
			score: similarity.Ratio(query, entries[m.Index].RequestText),
			fuzzy: true,
		})
	}
	return hits
}

func lowered(texts []string) []string {
	out := make([]string, len(texts))
	for i, t := range texts {
		out[i] = strings.ToLower(t)
	}
	return out
}

func writeEntries(out io.Writer, entries []domain.KnowledgeEntry, scores []float64, verbose bool) {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	if scores != nil {
		fmt.Fprintln(tw, "SCORE\tWHEN\tOUTCOME\tSTEPS\tREQUEST")
	} else {
		fmt.Fprintln(tw, "WHEN\tOUTCOME\tSTEPS\tREQUEST")
	}
	for i, entry := range entries {
		if scores != nil {
			fmt.Fprintf(tw, "%.2f\t", scores[i])
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n",
			humanize.Time(entry.Timestamp), entry.Outcome, len(entry.Plan.Steps), entry.RequestText)
		if verbose {
			for _, step := range entry.Plan.Steps {
				fmt.Fprintf(tw, "\t\t\t  %d. %s\n", step.Ordinal, step.Command)
			}
		}
	}
	tw.Flush()
}
