package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/QTest-hq/qgrade/internal/api"
	"github.com/QTest-hq/qgrade/internal/config"
)

func serveCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the grading HTTP service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if port > 0 {
				cfg.Port = port
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			if cfg.DatabaseURL != "" {
				log.Info().Str("database", maskConnectionString(cfg.DatabaseURL)).Msg("using run store")
			}

			srv, closeDB, err := api.Open(ctx, cfg)
			if err != nil {
				return err
			}
			defer closeDB()

			return api.ListenAndServe(ctx, srv, cfg.Port)
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 0, "Port to listen on (default: PORT or 8080)")

	return cmd
}

func initCmd() *cobra.Command {
	var (
		suiteKey   string
		loaderName string
		force      bool
	)

	cmd := &cobra.Command{
		Use:   "init [dir]",
		Short: "Write a .qgrade.yaml with default settings",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) == 1 {
				dir = args[0]
			}

			path := filepath.Join(dir, ".qgrade.yaml")
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}

			project := config.DefaultProjectConfig()
			project.Suite = suiteKey
			project.Loader = loaderName

			if err := config.SaveProjectConfig(dir, project); err != nil {
				return fmt.Errorf("failed to write %s: %w", path, err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "✅ Created %s\n", path)
			return nil
		},
	}

	cmd.Flags().StringVarP(&suiteKey, "suite", "s", "", "Default suite key")
	cmd.Flags().StringVar(&loaderName, "loader", "", "Default loader (python, static)")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")

	return cmd
}

// maskConnectionString hides the password of a connection URL
func maskConnectionString(conn string) string {
	scheme, rest, ok := strings.Cut(conn, "://")
	if !ok {
		return conn
	}

	userinfo, host, ok := strings.Cut(rest, "@")
	if !ok || strings.Contains(userinfo, "/") {
		return conn
	}

	user, _, hasPassword := strings.Cut(userinfo, ":")
	if !hasPassword {
		return conn
	}

	return scheme + "://" + user + ":****@" + host
}
