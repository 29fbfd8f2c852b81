package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/session"
	"github.com/kozaktomas/face-attendance/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Start the HTTP API. A kiosk or camera process posts frames to
/api/v1/recognize; all frames share one recognition session for the lifetime
of the server. Enrollment and attendance are available under /api/v1 too.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 0, "Port to listen on (default from WEB_PORT)")
	serveCmd.Flags().String("host", "", "Host to bind to (default from WEB_HOST)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	if port := mustGetInt(cmd, "port"); port > 0 {
		cfg.Web.Port = port
	}
	if host := mustGetString(cmd, "host"); host != "" {
		cfg.Web.Host = host
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fmt.Printf("Opening storage (%s)...\n", cfg.Storage.Backend)
	e, err := openEngine(ctx, cfg)
	if err != nil {
		return err
	}
	defer e.Close()

	report, err := e.registry.Rebuild(ctx)
	if err != nil {
		fmt.Printf("Warning: initial registry build failed: %v\n", err)
		fmt.Printf("Recognition returns unknown until POST /api/v1/registry/rebuild succeeds\n")
	} else {
		fmt.Printf("Registry loaded: %d identities, %d skipped\n", len(report.Loaded), len(report.Skipped))
	}

	server := web.NewServer(&cfg.Web, web.Engine{
		Registry:  e.registry,
		Lifecycle: e.lifecycle,
		Ledger:    e.ledger,
		Session: session.New(e.registry, e.provider, e.ledger, session.Options{
			Threshold: cfg.Matching.Threshold,
			NearestK:  cfg.Matching.NearestK,
		}),
	})

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\nShutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(ctx, 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			fmt.Printf("Error during shutdown: %v\n", err)
		}
	}()

	fmt.Printf("Starting Face Attendance API on http://%s:%d\n", cfg.Web.Host, cfg.Web.Port)
	fmt.Println("Press Ctrl+C to stop")

	if err := server.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	return nil
}
