package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	rootCmd := newRootCmd()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "❌", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var verbose bool

	rootCmd := &cobra.Command{
		Use:   "qgrade",
		Short: "qgrade - automated grading for architecture course submissions",
		Long: `qgrade grades Python solutions against the course test suites:
SOLID, design patterns, layered architecture, domain-driven design and a
complete project implementation.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			setupLogging(verbose)
		},
	}

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	// Add subcommands
	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(suitesCmd())
	rootCmd.AddCommand(analyzeCmd())
	rootCmd.AddCommand(tddCmd())
	rootCmd.AddCommand(initCmd())
	rootCmd.AddCommand(serveCmd())

	return rootCmd
}

// setupLogging writes to stderr at LOG_LEVEL, warn by default so results
// stay readable
func setupLogging(verbose bool) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	level := zerolog.WarnLevel
	if env := strings.TrimSpace(os.Getenv("LOG_LEVEL")); env != "" {
		if parsed, err := zerolog.ParseLevel(env); err == nil {
			level = parsed
		}
	}
	if verbose {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)
}
