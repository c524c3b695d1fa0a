package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/doeshing/genosma/internal/app"
	"github.com/doeshing/genosma/internal/infrastructure/cli/commands"
)

// Options holds CLI-level configuration.
type Options struct {
	Verbose    bool
	ConfigPath string
}

// ExitError carries a process exit status. The run report has already been
// printed when it is returned, so main only needs the code.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("exit status %d", e.Code)
}

func (e *ExitError) Unwrap() error { return e.Err }

func bindGlobalFlags(flags *pflag.FlagSet, opts *Options) {
	flags.BoolVar(&opts.Verbose, "debug", opts.Verbose, "Log debug output to stderr")
	flags.StringVar(&opts.ConfigPath, "config", opts.ConfigPath, "Path to config.yaml")
}

// ParseGlobalFlags reads --debug and --config ahead of cobra, since the
// container they configure is built before the command tree exists.
func ParseGlobalFlags(args []string, opts *Options) {
	flags := pflag.NewFlagSet("global", pflag.ContinueOnError)
	flags.ParseErrorsWhitelist.UnknownFlags = true
	flags.SetOutput(io.Discard)
	flags.Usage = func() {}
	bindGlobalFlags(flags, opts)
	_ = flags.Parse(args)
}

// NewRootCmd wires the cobra root command. The returned function releases
// the container and must be called once the command has finished.
func NewRootCmd(ctx context.Context, opts Options) (*cobra.Command, func() error, error) {
	container, err := app.BuildContainer(ctx, app.Options{Verbose: opts.Verbose, ConfigPath: opts.ConfigPath})
	if err != nil {
		return nil, nil, err
	}

	runCmd := newRunCommand(container)

	root := &cobra.Command{
		Use:   "genosma [request...]",
		Short: "genosma - natural-language tasks as reviewed shell steps",
		Long: "genosma turns a request into a plan of shell commands, classifies each step's risk,\n" +
			"asks before anything dangerous, runs the plan and remembers what worked.",
		Args:          cobra.ArbitraryArgs,
		RunE:          runCmd.RunE,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.Flags().AddFlagSet(runCmd.Flags())
	// Already applied by ParseGlobalFlags; registered so cobra accepts them.
	bindGlobalFlags(root.PersistentFlags(), &Options{Verbose: opts.Verbose, ConfigPath: opts.ConfigPath})

	root.AddCommand(
		runCmd,
		commands.NewKnowledgeCommand(container),
		commands.NewAuditCommand(container),
		commands.NewRulesCommand(container),
		commands.NewConfigCommand(container),
		commands.NewCacheCommand(container),
		commands.NewDoctorCommand(container),
		commands.NewVersionCommand(),
	)
	return root, container.Close, nil
}
