package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/QTest-hq/qgrade/internal/analyzer"
	"github.com/QTest-hq/qgrade/internal/output"
	"github.com/QTest-hq/qgrade/internal/suite"
)

func newFormatter(cmd *cobra.Command, format string) (*output.Formatter, error) {
	f, err := output.ParseFormat(format)
	if err != nil {
		return nil, err
	}
	out := cmd.OutOrStdout()
	return output.NewFormatter(f, out, out == os.Stdout && !color.NoColor), nil
}

func suitesCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "suites",
		Short: "List the available test suites",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := newFormatter(cmd, format)
			if err != nil {
				return err
			}
			return f.Suites(suite.Default())
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "text", "Output format (text, table, json, yaml)")

	return cmd
}

func analyzeCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "analyze <file.py>",
		Short: "Show classes, methods and detected design patterns",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			source, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", args[0], err)
			}

			result, err := analyzer.New().Analyze(cmd.Context(), source)
			if err != nil {
				return fmt.Errorf("failed to analyze %s: %w", args[0], err)
			}

			f, err := newFormatter(cmd, format)
			if err != nil {
				return err
			}
			return f.Analysis(args[0], result)
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "text", "Output format (text, table, json, yaml)")

	return cmd
}

func tddCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "tdd <file.py>",
		Short: "Check whether tests are declared before the implementation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			source, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", args[0], err)
			}

			report := analyzer.New().CheckTDDCompliance(cmd.Context(), source)

			f, err := newFormatter(cmd, format)
			if err != nil {
				return err
			}
			return f.TDD(args[0], report)
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "text", "Output format (text, table, json, yaml)")

	return cmd
}
