package commands

import (
	"fmt"
	"io"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/doeshing/genosma/internal/pkg/filesystem"
	"github.com/doeshing/genosma/internal/version"
)

func NewVersionCommand() *cobra.Command {
	var short bool
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if short {
				fmt.Fprintln(cmd.OutOrStdout(), version.Version)
				return nil
			}
			writeVersion(cmd.OutOrStdout())
			return nil
		},
	}
	cmd.Flags().BoolVar(&short, "short", false, "Print only the version number")
	return cmd
}

func writeVersion(out io.Writer) {
	fmt.Fprintf(out, "genosma %s (%s/%s, %s)\n", version.Version, runtime.GOOS, runtime.GOARCH, runtime.Version())
	if version.Commit != "" {
		fmt.Fprintf(out, "commit:   %s\n", version.Commit)
	}
	if version.BuildDate != "" {
		fmt.Fprintf(out, "built:    %s\n", version.BuildDate)
	}
	fmt.Fprintf(out, "data dir: %s\n", filesystem.DataDir())
}
