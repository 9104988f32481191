package main

import (
	"context"
	"fmt"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/jonathan/lead-tracker/internal/config"
	"github.com/jonathan/lead-tracker/internal/server"
)

var (
	servePort    int
	serveMigrate bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the REST API server",
	Long: `Start an HTTP server that exposes the pipeline, lead actions and a
server-sent event stream, and runs the deadline timers in the background.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Port to listen on (overrides config)")
	serveCmd.Flags().BoolVar(&serveMigrate, "migrate", false, "Apply database migrations before serving")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close(context.Background())

	if serveMigrate {
		if a.database == nil {
			return fmt.Errorf("--migrate requires the postgres store")
		}
		if err := a.database.Migrate(ctx); err != nil {
			return err
		}
		if err := a.service.Refresh(ctx); err != nil {
			a.logger.Warn("pipeline reload after migrate failed", "error", err)
		}
	}

	jwtConfig, err := config.NewJWTConfig()
	if err != nil {
		return fmt.Errorf("failed to create JWT config: %w", err)
	}

	port := servePort
	if port == 0 {
		port, _ = strconv.Atoi(a.cfg.Port)
	}

	owner := uuid.Nil
	if a.cfg.UserID != "" {
		if owner, err = uuid.Parse(a.cfg.UserID); err != nil {
			return fmt.Errorf("invalid user_id: %w", err)
		}
	}

	cfg := server.Config{
		Port:    port,
		Service: a.service,
		Hub:     a.hub,
		JWT:     jwtConfig,
		Owner:   owner,
		Logger:  a.logger.With("component", "server"),
	}
	if rec, ok := a.backend.(server.ClickRecorder); ok {
		cfg.Clicks = rec
	}

	srv, err := server.New(cfg)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	go a.scheduler.Start(ctx)
	return srv.Start(ctx)
}
