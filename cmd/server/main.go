// Command server runs judgehub.
//
//	server [serve]    start the HTTP API (default)
//	server migrate    apply database migrations and exit
//	server languages  print the language table
//
// Configuration is read by internal/config; --config points at an explicit
// YAML file.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sakif/judgehub/internal/config"
	"github.com/sakif/judgehub/internal/judge"
	"github.com/sakif/judgehub/internal/logging"
	sqliteRepo "github.com/sakif/judgehub/internal/repository/sqlite"
	"github.com/sakif/judgehub/internal/server"
)

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

type app struct {
	configPath string
	cfg        *config.Config
	logger     *slog.Logger
}

// load reads config and builds the logger once per invocation.
func (a *app) load(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	logger, err := logging.New(os.Stderr, cfg.Log.Format, cfg.Log.Level)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	a.cfg, a.logger = cfg, logger
	return nil
}

func newRootCmd() *cobra.Command {
	a := &app{}

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		RunE:  a.runServe,
	}

	root := &cobra.Command{
		Use:               "server",
		Short:             "judgehub evaluates code submissions against problem test cases",
		SilenceUsage:      true,
		PersistentPreRunE: a.load,
		RunE:              a.runServe,
	}
	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "path to a judgehub.yaml config file")

	root.AddCommand(
		serve,
		&cobra.Command{
			Use:   "migrate",
			Short: "Apply database migrations and exit",
			RunE:  a.runMigrate,
		},
		&cobra.Command{
			Use:   "languages",
			Short: "Print the languages submissions may use",
			RunE:  a.runLanguages,
		},
	)
	return root
}

func (a *app) runServe(cmd *cobra.Command, _ []string) error {
	srv, err := server.New(cmd.Context(), a.cfg, a.logger)
	if err != nil {
		a.logger.Error("failed to create server", slog.String("error", err.Error()))
		return err
	}

	if err := srv.Start(cmd.Context()); err != nil {
		a.logger.Error("server error", slog.String("error", err.Error()))
		return err
	}
	return nil
}

func (a *app) runMigrate(cmd *cobra.Command, _ []string) error {
	path := a.cfg.Database.Path
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating database directory: %w", err)
	}

	// New applies pending migrations.
	db, err := sqliteRepo.New(cmd.Context(), path)
	if err != nil {
		a.logger.Error("migration failed", slog.String("error", err.Error()))
		return err
	}
	defer db.Close()

	version, err := db.SchemaVersion(cmd.Context())
	if err != nil {
		return err
	}
	a.logger.Info("database migrated", slog.String("path", path), slog.Int64("version", version))
	return nil
}

func (a *app) runLanguages(cmd *cobra.Command, _ []string) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tJUDGE ID")
	for _, l := range judge.NewLanguages(a.cfg.Judge.Languages).List() {
		fmt.Fprintf(w, "%s\t%d\n", l.Name, l.ID)
	}
	return w.Flush()
}
