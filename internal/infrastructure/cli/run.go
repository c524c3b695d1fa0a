package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/doeshing/genosma/internal/app"
	auditapp "github.com/doeshing/genosma/internal/application/audit"
	"github.com/doeshing/genosma/internal/application/orchestrator"
	"github.com/doeshing/genosma/internal/domain"
	"github.com/doeshing/genosma/internal/pkg/filesystem"
	"github.com/doeshing/genosma/internal/ports"
)

type runOptions struct {
	dryRun        bool
	replanBudget  int
	confirmMedium bool
	stepTimeout   time.Duration
	file          string
	yes           bool
	multiline     bool
}

func (o *runOptions) bind(flags *pflag.FlagSet) {
	flags.BoolVar(&o.dryRun, "dry-run", false, "Plan and examine only; execute nothing")
	flags.IntVar(&o.replanBudget, "replan-budget", domain.DefaultReplanBudget, "Maximum plan revisions after a failed step")
	flags.BoolVar(&o.confirmMedium, "confirm-medium", false, "Also ask before MEDIUM risk steps")
	flags.DurationVar(&o.stepTimeout, "step-timeout", 0, "Wall-clock limit for each step (e.g. 90s)")
	flags.StringVarP(&o.file, "file", "f", "", "Run every request in a file, one per line ('-' for stdin)")
	flags.BoolVarP(&o.yes, "yes", "y", false, "Approve every flagged step without asking")
	flags.BoolVarP(&o.multiline, "multiline", "m", false, "Read a multi-line request ending with END")
}

// apply copies explicitly set flags onto cfg.
func (o *runOptions) apply(flags *pflag.FlagSet, cfg *domain.Config) error {
	if flags.Changed("replan-budget") {
		if o.replanBudget < 0 {
			return fmt.Errorf("--replan-budget must be >= 0")
		}
		budget := o.replanBudget
		cfg.Planning.ReplanBudget = &budget
	}
	if flags.Changed("confirm-medium") {
		cfg.Risk.ConfirmMedium = o.confirmMedium
	}
	if flags.Changed("step-timeout") {
		if o.stepTimeout <= 0 {
			return fmt.Errorf("--step-timeout must be positive")
		}
		cfg.Execution.StepTimeout = o.stepTimeout.String()
	}
	return nil
}

func newRunCommand(container *app.Container) *cobra.Command {
	opts := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run [request...]",
		Short: "Carry out a natural-language task as shell steps",
		Long: "Interprets the request, plans shell steps, asks before risky ones, runs them\n" +
			"and revises the plan when a step fails. Without arguments the request is read\n" +
			"from the terminal.",
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return executeRun(cmd, container, opts, args)
		},
	}
	opts.bind(cmd.Flags())
	return cmd
}

func executeRun(cmd *cobra.Command, container *app.Container, opts *runOptions, args []string) error {
	if err := opts.apply(cmd.Flags(), &container.Config); err != nil {
		return err
	}
	ctx := cmd.Context()
	renderer := NewRenderer(cmd.OutOrStdout())

	if opts.file != "" {
		return runBatch(ctx, cmd, container, opts, renderer)
	}

	prompter, closePrompter, err := openPrompter(cmd)
	if err != nil {
		return err
	}
	defer closePrompter()

	text := strings.TrimSpace(strings.Join(args, " "))
	if text == "" {
		if text, err = prompter.ReadRequest(ctx, opts.multiline); err != nil {
			return err
		}
	}

	var gate ports.ConfirmationGate = &TerminalGate{Prompter: prompter, Renderer: renderer}
	if opts.yes {
		gate = orchestrator.StaticGate{Approve: true, KeepPartial: true}
	}
	orch, err := container.Orchestrator(gate, &TerminalClarifier{Prompter: prompter}, renderer.ProgressSink())
	if err != nil {
		return err
	}

	report, err := orch.Run(ctx, domain.RunRequest{Text: text, DryRun: opts.dryRun})
	renderer.Report(report)
	if err != nil {
		return err
	}
	if code := report.ExitCode(); code != 0 {
		return &ExitError{Code: code, Err: report.Err}
	}
	return nil
}

func runBatch(ctx context.Context, cmd *cobra.Command, container *app.Container, opts *runOptions, renderer *Renderer) error {
	var src io.Reader = cmd.InOrStdin()
	if opts.file != "-" {
		f, err := os.Open(opts.file)
		if err != nil {
			return fmt.Errorf("failed to open batch file: %w", err)
		}
		defer f.Close()
		src = f
	}
	texts, err := readBatchRequests(src)
	if err != nil {
		return err
	}
	if len(texts) == 0 {
		return fmt.Errorf("batch file %s contains no requests", opts.file)
	}

	spinner := NewSpinner(cmd.ErrOrStderr())
	gate := orchestrator.StaticGate{Approve: opts.yes, KeepPartial: opts.yes, Reason: "batch runs cannot prompt; pass --yes to approve"}
	orch, err := container.Orchestrator(gate, nil, batchProgress(spinner, len(texts)))
	if err != nil {
		return err
	}

	reqs := make([]domain.RunRequest, len(texts))
	for i, text := range texts {
		reqs[i] = domain.RunRequest{Text: text, DryRun: opts.dryRun}
	}

	spinner.Start(batchLabel(0, len(reqs)))
	reports, err := orch.RunBatch(ctx, reqs)
	spinner.Stop()

	for _, report := range reports {
		if report.RunID == "" {
			continue
		}
		fmt.Fprintln(cmd.OutOrStdout(), titleStyle.Render(report.RequestText))
		renderer.Report(report)
		fmt.Fprintln(cmd.OutOrStdout())
	}
	renderer.BatchSummary(reports)
	if err != nil {
		return err
	}
	if code := worstExitCode(reports); code != 0 {
		return &ExitError{Code: code}
	}
	return nil
}

// batchProgress counts runs reaching a terminal state.
func batchProgress(spinner *Spinner, total int) ports.AuditSink {
	var finished atomic.Int32
	return auditapp.SinkFunc(func(_ context.Context, record domain.AuditRecord) error {
		if record.Event == domain.EventTransition && record.State.IsTerminal() {
			spinner.SetLabel(batchLabel(int(finished.Add(1)), total))
		}
		return nil
	})
}

func batchLabel(finished, total int) string {
	return fmt.Sprintf("running %d requests, %d finished", total, finished)
}

// readBatchRequests returns one request per non-blank line; lines starting
// with # are comments.
func readBatchRequests(r io.Reader) ([]string, error) {
	var texts []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		texts = append(texts, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read batch requests: %w", err)
	}
	return texts, nil
}

func worstExitCode(reports []domain.RunReport) int {
	worst := 0
	for _, report := range reports {
		if code := report.ExitCode(); code > worst {
			worst = code
		}
	}
	return worst
}

// openPrompter uses a line editor with history when stdin is a terminal and
// plain line reads otherwise.
func openPrompter(cmd *cobra.Command) (*Prompter, func(), error) {
	in, isFile := cmd.InOrStdin().(*os.File)
	if !isFile || !readline.IsTerminal(int(in.Fd())) {
		prompter := NewPrompter(NewReaderSource(cmd.InOrStdin()), cmd.OutOrStdout())
		return prompter, prompter.Close, nil
	}

	history := filesystem.DataPath("history")
	if err := filesystem.EnsureParentDir(history); err != nil {
		history = ""
	}
	rl, err := NewReadlineSource(history, cmd.OutOrStdout())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open terminal: %w", err)
	}
	prompter := NewPrompter(rl, cmd.OutOrStdout())
	return prompter, func() {
		prompter.Close()
		_ = rl.Close()
	}, nil
}
