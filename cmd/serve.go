package cmd

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/trobanga/rastergate/internal/api"
	"github.com/trobanga/rastergate/internal/obs"
	"github.com/trobanga/rastergate/internal/services"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the ingestion gateway HTTP server",
	Long: `Run the HTTP server accepting layer ingestion, layer update and job
retry requests.

Routes:
  POST /ingestion/validate/sources
  POST /ingestion
  PUT  /ingestion/{id}
  PUT  /ingestion/{jobId}/retry
  GET  /liveness
  GET  /metrics

The server stops gracefully on SIGINT or SIGTERM.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	config, err := services.LoadConfig(cfgFile)
	if err != nil {
		return err
	}
	logger := newLogger(config)

	shutdownTelemetry := obs.Init(config.Telemetry, logger)
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(ctx); err != nil {
			logger.Warn("Telemetry shutdown failed", "error", err)
		}
	}()

	orchestrator, err := newOrchestrator(config, logger)
	if err != nil {
		return err
	}

	addr := net.JoinHostPort(config.Server.Address, strconv.Itoa(config.Server.Port))
	server := &http.Server{
		Addr:              addr,
		Handler:           obs.WrapHTTP(config.Telemetry.ServiceName, api.NewServer(orchestrator, logger).Router()),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      5 * time.Minute,
		IdleTimeout:       2 * time.Minute,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Gateway listening", "addr", addr, "mount_dir", config.Sources.MountDir)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(),
		time.Duration(config.Server.ShutdownTimeoutSeconds)*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
