package main

import (
	"log/slog"

	"github.com/spboyer/veracity/internal/webapi"
	"github.com/spf13/cobra"
)

var version = webapi.Version

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "veracity",
		Short: "Veracity - multi-model AI content detection",
		Long: `Veracity asks several AI-detection models about a piece of text in parallel
and combines their answers into one weighted verdict.

Models that fail or time out are left out and the remaining weights are
renormalized, so a result is produced as long as one model answers.`,
		Version:      version,
		SilenceUsage: true,
	}

	debugLogging := cmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
	cmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		if *debugLogging {
			slog.SetLogLoggerLevel(slog.LevelDebug)
		}
	}

	// Add subcommands
	cmd.AddCommand(newDetectCommand())
	cmd.AddCommand(newServeCommand())
	cmd.AddCommand(newConfigCommand())
	cmd.AddCommand(newCacheCommand())
	cmd.AddCommand(newInitCommand())

	return cmd
}

func execute() error {
	rootCmd := newRootCommand()
	return rootCmd.Execute()
}
