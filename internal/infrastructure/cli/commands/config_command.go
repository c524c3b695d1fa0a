package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/google/go-cmp/cmp"
	"github.com/pmezard/go-difflib/difflib"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/doeshing/genosma/internal/app"
	configapp "github.com/doeshing/genosma/internal/application/config"
	"github.com/doeshing/genosma/internal/domain"
	"github.com/doeshing/genosma/internal/infrastructure/cli/helpers"
	configinfra "github.com/doeshing/genosma/internal/infrastructure/config"
)

// NewConfigCommand groups the config.yaml subcommands. Without a subcommand
// it prints the whole file.
func NewConfigCommand(container *app.Container) *cobra.Command {
	var section string
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and change genosma configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return printSection(cmd.Context(), cmd.OutOrStdout(), container, section)
		},
	}
	configCmd.Flags().StringVar(&section, "section", "", "Only print one top-level section (e.g. planning)")

	configCmd.AddCommand(
		newConfigShowCommand(container),
		&cobra.Command{
			Use:   "path",
			Short: "Print the configuration file location",
			RunE: func(cmd *cobra.Command, args []string) error {
				loader, err := helpers.GetConfigLoader(container)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), loader.Path())
				return nil
			},
		},
		&cobra.Command{
			Use:   "get <key>",
			Short: "Print one value by dotted key (e.g. planning.replan_budget)",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return printSection(cmd.Context(), cmd.OutOrStdout(), container, args[0])
			},
		},
		&cobra.Command{
			Use:   "set <key> <value>",
			Short: "Change one value; the value is parsed as YAML",
			Args:  cobra.MinimumNArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				return setValue(cmd.Context(), cmd.OutOrStdout(), container, args[0], strings.Join(args[1:], " "))
			},
		},
		&cobra.Command{
			Use:   "edit",
			Short: "Open the configuration file in $EDITOR",
			RunE: func(cmd *cobra.Command, args []string) error {
				return openEditor(container)
			},
		},
		&cobra.Command{
			Use:   "validate",
			Short: "Load the configuration and check its values",
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, err := container.ConfigProvider.Load(cmd.Context())
				if err == nil {
					err = configapp.Validate(cfg)
				}
				if err != nil {
					return fmt.Errorf("configuration validation failed: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), MsgConfigurationValid)
				return nil
			},
		},
		&cobra.Command{
			Use:   "reset",
			Short: "Back up the current file and write the defaults",
			RunE: func(cmd *cobra.Command, args []string) error {
				return resetToDefaults(cmd.OutOrStdout(), container)
			},
		},
		newConfigDiffCommand(container),
	)
	return configCmd
}

func newConfigShowCommand(container *app.Container) *cobra.Command {
	var section string
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return printSection(cmd.Context(), cmd.OutOrStdout(), container, section)
		},
	}
	cmd.Flags().StringVar(&section, "section", "", "Only print one top-level section (e.g. planning)")
	return cmd
}

func newConfigDiffCommand(container *app.Container) *cobra.Command {
	var unified bool
	cmd := &cobra.Command{
		Use:   "diff",
		Short: "Show how the configuration differs from the defaults",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := container.ConfigProvider.Load(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			var diff string
			if unified {
				diff, err = unifiedConfigDiff(configinfra.Default(), cfg)
				if err != nil {
					return err
				}
			} else {
				diff = cmp.Diff(configinfra.Default(), cfg)
			}
			if diff == "" {
				fmt.Fprintln(cmd.OutOrStdout(), MsgNoDifferencesFromDefault)
				return nil
			}
			fmt.Fprint(cmd.OutOrStdout(), diff)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&unified, "unified", "u", false, "Print a unified diff of the YAML documents")
	return cmd
}

// printSection writes the YAML value at keyPath; an empty path prints the
// whole configuration.
func printSection(ctx context.Context, out io.Writer, container *app.Container, keyPath string) error {
	cfg, err := container.ConfigProvider.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	var value interface{} = cfg
	if keyPath != "" {
		cfgMap, err := helpers.ConfigToMap(cfg)
		if err != nil {
			return err
		}
		var found bool
		if value, found = helpers.TraverseNestedMap(cfgMap, strings.Split(keyPath, ".")); !found {
			return fmt.Errorf("key %s not found in configuration", keyPath)
		}
	}
	data, err := yaml.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal configuration: %w", err)
	}
	fmt.Fprint(out, string(data))
	return nil
}

func setValue(ctx context.Context, out io.Writer, container *app.Container, keyPath, raw string) error {
	cfg, err := container.ConfigProvider.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	cfgMap, err := helpers.ConfigToMap(cfg)
	if err != nil {
		return err
	}

	keys := strings.Split(keyPath, ".")
	previous, existed := helpers.TraverseNestedMap(cfgMap, keys)
	value := helpers.ParseYAMLValue(raw)
	if !helpers.SetNestedMapValue(cfgMap, keys, value) {
		return fmt.Errorf("unable to set key %s", keyPath)
	}
	updated, err := helpers.MapToConfig(cfgMap)
	if err != nil {
		return err
	}
	if err := helpers.SaveConfigWithValidation(container, updated); err != nil {
		return err
	}

	if existed {
		fmt.Fprintf(out, "%s: %v -> %v\n", keyPath, previous, value)
	} else {
		fmt.Fprintf(out, "%s: %v\n", keyPath, value)
	}
	return nil
}

func unifiedConfigDiff(base, current domain.Config) (string, error) {
	a, err := yaml.Marshal(base)
	if err != nil {
		return "", fmt.Errorf("failed to marshal defaults: %w", err)
	}
	b, err := yaml.Marshal(current)
	if err != nil {
		return "", fmt.Errorf("failed to marshal configuration: %w", err)
	}
	return difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(string(a)),
		B:        difflib.SplitLines(string(b)),
		FromFile: "defaults",
		ToFile:   "config.yaml",
		Context:  2,
	})
}

func openEditor(container *app.Container) error {
	loader, err := helpers.GetConfigLoader(container)
	if err != nil {
		return err
	}
	editor := os.Getenv(envKeyEditor)
	if editor == "" {
		editor = DefaultEditorCommand
	}
	cmd := exec.Command(editor, loader.Path())
	cmd.Stdin, cmd.Stdout, cmd.Stderr = os.Stdin, os.Stdout, os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to run editor %s: %w", editor, err)
	}
	return nil
}

func resetToDefaults(out io.Writer, container *app.Container) error {
	loader, err := helpers.GetConfigLoader(container)
	if err != nil {
		return err
	}
	if _, err := os.Stat(loader.Path()); err == nil {
		backup, err := loader.Backup()
		if err != nil {
			return fmt.Errorf("failed to create configuration backup: %w", err)
		}
		fmt.Fprintf(out, "Previous configuration saved to %s\n", backup)
	}
	if _, err := loader.Reset(); err != nil {
		return fmt.Errorf("failed to reset configuration: %w", err)
	}
	fmt.Fprintf(out, "Configuration reset at %s\n", loader.Path())
	return nil
}
