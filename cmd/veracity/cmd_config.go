package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spboyer/veracity/internal/projectconfig"
	"github.com/spboyer/veracity/internal/validation"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and validate .veracity.yaml",
	}

	cmd.AddCommand(newConfigValidateCommand())
	cmd.AddCommand(newConfigShowCommand())

	return cmd
}

func newConfigValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [path]",
		Short: "Check a config file against the schema and ensemble rules",
		Long: `Check a config file against the schema and ensemble rules.

Without a path, .veracity.yaml is searched for from the current directory
upward.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) > 0 {
				path = args[0]
			} else {
				_, found, err := projectconfig.FindConfigFile(".")
				if err != nil {
					if errors.Is(err, os.ErrNotExist) {
						return fmt.Errorf("no %s found in this directory or its parents", projectconfig.FileName)
					}
					return err
				}
				path = found
			}

			errs, err := validation.ValidateConfigFile(path)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(errs) == 0 {
				fmt.Fprintf(out, "✓ %s is valid\n", path)
				return nil
			}

			fmt.Fprintf(out, "✗ %s:\n", path)
			for _, e := range errs {
				fmt.Fprintf(out, "  %s\n", e)
			}
			return fmt.Errorf("%s has %d problem(s)", path, len(errs))
		},
	}
}

func newConfigShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration with defaults applied",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := projectconfig.Load(".")
			if err != nil {
				return err
			}

			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(cfg); err != nil {
				return fmt.Errorf("encoding config: %w", err)
			}
			return enc.Close()
		},
	}
}
