package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/CosmoTheDev/ctrlreview/internal/config"
	"github.com/CosmoTheDev/ctrlreview/internal/database"
	"github.com/CosmoTheDev/ctrlreview/internal/server"
	"github.com/spf13/cobra"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the persistent review bot",
	Long: `Starts the ctrlreview server: a long-running daemon that combines a
REST + SSE control plane, a GitHub webhook intake, and cron-driven review
schedules. All triggers feed a single serialized worker, so review
sessions never overlap.

Schedules are defined in the config file:

  server:
    schedules:
      - cron: "0 7 * * 1"
        paths: ["src/"]
        profile: strict

Quick API reference:
  GET  /health                     liveness check
  GET  /api/status                 server status snapshot
  GET  /api/sessions               list stored sessions (?limit=N)
  GET  /api/sessions/{id}          one session by key
  GET  /api/sessions/{id}/results  session expanded with findings and fixes
  POST /api/review                 queue a review (body: {"paths": [...]})
  POST /webhook/github             GitHub pull_request webhook intake
  GET  /events                     SSE stream of live events`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "",
		"listen address (default 127.0.0.1:6180, overrides config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigs
		fmt.Println("\nShutting down server gracefully...")
		cancel()
	}()

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if serveAddr != "" {
		cfg.Server.Addr = serveAddr
	}

	db, err := database.New(cfg.Database)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()
	if err := db.Migrate(ctx); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	fmt.Printf("ctrlreview server starting\n")
	fmt.Printf("  API       : http://%s\n", cfg.Server.Addr)
	fmt.Printf("  Events    : http://%s/events\n", cfg.Server.Addr)
	fmt.Printf("  Schedules : %d\n\n", len(cfg.Server.Schedules))
	fmt.Println("Press Ctrl+C to stop gracefully.")
	fmt.Println()

	srv, err := server.New(cfg, db)
	if err != nil {
		return err
	}
	return srv.Start(ctx)
}
