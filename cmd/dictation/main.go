// Command dictation runs the clinical dictation service and its
// maintenance tasks.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

type rootOptions struct {
	configFile string
	envFile    string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	rootCmd := &cobra.Command{
		Use:          "dictation",
		Short:        "Real-time clinical dictation service",
		Long:         "dictation streams clinician audio to a speech recognizer, relays the transcript live and stores the result as a clinical note.",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&opts.configFile, "config", "", "path to config.yml (default: search standard locations)")
	rootCmd.PersistentFlags().StringVar(&opts.envFile, "env-file", "", "path to a .env file (default: search standard locations)")

	rootCmd.AddCommand(
		newServeCmd(opts),
		newMigrateCmd(opts),
		newTranscribeCmd(opts),
		newTokenCmd(opts),
		newVersionCmd(),
	)
	return rootCmd
}
