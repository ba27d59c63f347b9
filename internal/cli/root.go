// Package cli defines Cobra command definitions for the intervai CLI.
// This file contains the root command, version flag, and help output.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/intervai-dev/intervai/internal/tui"
)

var (
	homeFlag    string
	baseURLFlag string
	apiKeyFlag  string
	plainFlag   bool
	version     = "dev" // set via ldflags at build time
)

var rootCmd = &cobra.Command{
	Use:   "intervai",
	Short: "Practice technical interviews in the terminal",
	Long: `intervai runs timed mock interviews against an interview service.
Questions are generated and answers graded by the service; intervai keeps
the transcript, the running score, the per-question countdown and a local
history of finished sessions.`,
	Version:       version,
	SilenceErrors: true,
	SilenceUsage:  true,
	RunE: func(cmd *cobra.Command, args []string) error {
		// Without a subcommand, open the setup screen on a TTY, help otherwise
		if !tui.IsTTY() {
			return cmd.Help()
		}
		return runStart(cmd, args)
	},
}

// Execute runs the root command. Called from main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&homeFlag, "home", "", "Data directory (default $INTERVAI_HOME or ~/.intervai)")
	rootCmd.PersistentFlags().StringVar(&baseURLFlag, "base-url", "", "Interview service URL (overrides config)")
	rootCmd.PersistentFlags().StringVar(&apiKeyFlag, "api-key", "", "Provider API key (default $INTERVAI_API_KEY)")
	rootCmd.PersistentFlags().BoolVar(&plainFlag, "plain", false, "Use line mode even on a terminal")

	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(resumeCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(transcribeCmd)
	rootCmd.AddCommand(demoCmd)
	rootCmd.AddCommand(configCmd)
}
