package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/QTest-hq/qgrade/internal/config"
	"github.com/QTest-hq/qgrade/internal/engine"
	"github.com/QTest-hq/qgrade/internal/grader"
	"github.com/QTest-hq/qgrade/internal/output"
	"github.com/QTest-hq/qgrade/internal/submission"
	"github.com/QTest-hq/qgrade/internal/suite"
)

func runCmd() *cobra.Command {
	var (
		suiteKey   string
		saveReport bool
		reportDir  string
		format     string
		loaderName string
		enforce    bool
		progress   bool
		repoURL    string
		ref        string
	)

	cmd := &cobra.Command{
		Use:   "run <solution.py>",
		Short: "Grade a solution against one or all test suites",
		Long: `Grade a solution file. With --repo the path is resolved inside a fresh
clone of the repository.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			projectDir := "."
			if repoURL == "" {
				projectDir = filepath.Dir(args[0])
			}
			project, err := config.LoadProjectConfig(projectDir)
			if err != nil {
				return fmt.Errorf("failed to load project config: %w", err)
			}

			flags := &config.ProjectConfig{
				Suite:  suiteKey,
				Loader: loaderName,
				Report: config.ReportConfig{Save: saveReport, Dir: reportDir, Format: format},
			}
			if cmd.Flags().Changed("enforce-timeouts") {
				flags.EnforceTimeouts = &enforce
			}
			project.Merge(flags)

			if err := project.Apply(cfg); err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			f, err := output.ParseFormat(project.Report.Format)
			if err != nil {
				return err
			}

			path := args[0]
			if repoURL != "" {
				fetcher := submission.NewFetcher(cfg.Grading.WorkDir, cfg.GitHubToken)
				sub, err := fetcher.Fetch(ctx, submission.Source{URL: repoURL, Ref: ref, Path: args[0]})
				if err != nil {
					return err
				}
				defer sub.Cleanup()
				path = sub.File
				fmt.Fprintf(cmd.ErrOrStderr(), "📥 %s @ %s\n", repoURL, shortCommit(sub.CommitSHA))
			} else if sub, err := submission.Describe(path); err == nil {
				log.Debug().Str("commit", sub.CommitSHA).Str("ref", sub.Ref).Msg("solution is under version control")
			}

			results, err := grade(ctx, cmd, cfg, path, project.Suite, progress)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			colored := out == os.Stdout && !color.NoColor
			if err := output.NewFormatter(f, out, colored).Results(results); err != nil {
				return err
			}

			if project.Report.Save {
				now := time.Now()
				report := grader.GenerateReport(results, now)
				fmt.Fprintln(out)
				fmt.Fprintln(out, report)

				file, err := grader.SaveReport(cfg.Grading.ReportDir, report, now)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "\n📄 Report saved to: %s\n", file)
			}

			return nil
		},
	}

	cmd.Flags().StringVarP(&suiteKey, "suite", "s", "", "Suite key to run (default: all suites)")
	cmd.Flags().BoolVar(&saveReport, "report", false, "Print the full report and save it to a file")
	cmd.Flags().StringVar(&reportDir, "report-dir", "", "Directory for saved reports")
	cmd.Flags().StringVarP(&format, "format", "f", "", "Output format (text, table, json, yaml)")
	cmd.Flags().StringVar(&loaderName, "loader", "", "Module loader (python, static)")
	cmd.Flags().BoolVar(&enforce, "enforce-timeouts", false, "Stop checks that exceed their time budget")
	cmd.Flags().BoolVar(&progress, "progress", false, "Show a progress bar on stderr")
	cmd.Flags().StringVar(&repoURL, "repo", "", "Clone the solution from this git repository")
	cmd.Flags().StringVar(&ref, "ref", "", "Branch, tag or commit to grade (with --repo)")

	return cmd
}

// grade runs the selected suites, optionally driving a progress bar
func grade(ctx context.Context, cmd *cobra.Command, cfg *config.Config, path, suiteKey string, progress bool) (*grader.Results, error) {
	rc, err := grader.RunnerConfig(cfg.Grading)
	if err != nil {
		return nil, err
	}

	registry := suite.Default()

	if progress {
		total := 0
		for _, s := range registry.Suites() {
			if suiteKey == "" || s.Key == suiteKey {
				total += len(s.Cases())
			}
		}

		tracker := output.NewTracker(cmd.ErrOrStderr(), "grading", total)
		defer tracker.Finish()

		rc.OnSuiteStart = func(s *suite.Suite) {
			tracker.Describe(s.Key)
		}
		rc.OnCase = func(string, engine.Result) {
			tracker.Tick()
		}
	}

	return grader.New(registry, engine.NewRunner(rc)).TestSolution(ctx, path, suiteKey)
}

func shortCommit(sha string) string {
	if len(sha) > 8 {
		return sha[:8]
	}
	return sha
}
