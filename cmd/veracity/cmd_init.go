package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spboyer/veracity/internal/projectconfig"
	"github.com/spboyer/veracity/internal/wizard"
	"github.com/spf13/cobra"
)

func newInitCommand() *cobra.Command {
	var (
		useDefaults bool
		force       bool
	)

	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Create a .veracity.yaml",
		Long: `Create a .veracity.yaml in the given directory (default: current).

Runs a short wizard for the detector ensemble, caching and the API port.
Use --defaults to skip the questions and write the built-in ensemble.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}

			target := filepath.Join(dir, projectconfig.FileName)
			if _, err := os.Stat(target); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", target)
			}

			answers := &wizard.Answers{
				Providers: []string{"openai", "anthropic", "huggingface"},
				Port:      projectconfig.DefaultServerPort,
			}
			if !useDefaults {
				var err error
				if answers, err = wizard.Run(cmd.InOrStdin(), cmd.OutOrStdout()); err != nil {
					return err
				}
			}

			cfg, err := wizard.BuildConfig(answers)
			if err != nil {
				return err
			}

			data, err := wizard.Render(cfg)
			if err != nil {
				return err
			}

			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("failed to create directory %s: %w", dir, err)
			}
			if err := os.WriteFile(target, data, 0o644); err != nil {
				return fmt.Errorf("writing %s: %w", target, err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Created %s\n", target)
			return nil
		},
	}

	cmd.Flags().BoolVar(&useDefaults, "defaults", false, "Write the default ensemble without asking")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")

	return cmd
}
