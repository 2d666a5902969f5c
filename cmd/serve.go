// =============================================================================
// Billing Inquiry - Serve Command
// =============================================================================
//
// COMMAND USAGE:
//   billing serve [--config config.yaml]
//
// STARTUP:
//   1. Load configuration and open the configured store
//   2. Load the stored dataset (demo records when empty or unreachable)
//   3. Prune old archived uploads when upload archiving is on
//   4. Serve the HTTP API until SIGINT/SIGTERM
//   5. Drain in-flight requests, then close the store
//
// =============================================================================

package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ginjaninja78/billing-inquiry/internal/server"
	"github.com/ginjaninja78/billing-inquiry/pkg/utils"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the billing inquiry HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
		defer cancel()
		a.close(closeCtx)
	}()

	stats, err := a.billing.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load billing data: %w", err)
	}
	a.log.Info("Serving %d records (source: %s)", stats.Count, stats.Source)

	if a.cfg.Server.AdminToken == "" {
		a.log.Warn("No admin token configured; upload, template and export are disabled")
	}

	var archive *utils.ArchiveManager
	if a.cfg.Ingestion.ArchiveUploads {
		archive = utils.NewArchiveManager(a.cfg.Ingestion.ArchiveDir)
		pruneArchive(a, archive)
	}

	if !verbose {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := server.SetupRouter(a.billing, server.Options{
		AppName:        a.cfg.App.Name,
		AdminToken:     a.cfg.Server.AdminToken,
		MaxUploadBytes: a.cfg.Server.MaxUploadBytes(),
		Logger:         a.log,
		AccessLog:      a.log.Zap().Named("http"),
		Archive:        archive,
	})

	httpServer := &http.Server{
		Addr:              a.cfg.Server.Addr(),
		Handler:           engine,
		ReadTimeout:       a.cfg.Server.ReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		a.log.Info("Listening on %s", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case sig := <-quit:
		a.log.Info("Received %s, shutting down", sig)
	case <-ctx.Done():
		a.log.Info("Context cancelled, shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	a.log.Info("Server stopped")
	return nil
}
