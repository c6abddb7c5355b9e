package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"github.com/spraywall/spraywall/internal/config"
	"github.com/spraywall/spraywall/internal/handlers"
	"github.com/spraywall/spraywall/internal/influx"
	"github.com/spraywall/spraywall/internal/logging"
	"github.com/spraywall/spraywall/internal/monitor"
	"github.com/spraywall/spraywall/internal/observability"
	"github.com/spraywall/spraywall/internal/streaming"
)

func newServeCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the route API server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			serverCfg := config.GetServerConfig()
			if addr != "" {
				serverCfg.Address = addr
			}
			return runServe(cmd.Context(), serverCfg)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.address)")
	return cmd
}

func runServe(ctx context.Context, serverCfg config.ServerConfig) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(os.Stdout)
	if err != nil {
		return err
	}
	defer a.Close()
	a.Logger.Info("Starting up...", "version", CurrentVersion, "buildDate", BuildDate)

	backend, err := createStorageBackend(a, config.GetStorageConfig(), config.GetDBConfig())
	if err != nil {
		return err
	}
	if err := backend.Init(); err != nil {
		a.Logger.Error("Failed to initialize storage backend", "error", err)
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer func() {
		if err := backend.Close(); err != nil {
			a.Logger.Error("Failed to close storage backend", "error", err)
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics, err := observability.NewHTTPCollector(reg)
	if err != nil {
		return fmt.Errorf("failed to register metrics: %w", err)
	}

	hub := streaming.NewHub(logging.NewZerologAdapter(a.DBLogger.With().Str("component", "stream").Logger()))

	deps := handlers.Dependencies{
		Backend:    backend,
		Stream:     hub,
		Metrics:    metrics,
		Meter:      a.OTelProvider.Meter(AppName),
		Tracer:     a.OTelProvider.TracerProvider().Tracer(AppName + "/handlers"),
		LogManager: a.SlogManager,
		StaticDir:  serverCfg.StaticDir,
	}

	var summary monitor.SummaryRecorder
	if influxCfg := config.GetInfluxConfig(); influxCfg.Enabled {
		backupPath := filepath.Join(config.GetString("logsDir"), "route-activity.lp.gz")
		im := influx.NewManager(a.DBLogger, backupPath)
		if err := im.Connect(ctx, influxCfg); err != nil {
			a.Logger.Warn("Route activity disabled", "error", err)
		} else {
			deps.Activity = im
			summary = im
		}
		defer func() { _ = im.Close() }()
	}

	svc := handlers.NewService(deps)
	// runs before the influx Close above so queued activity is flushed
	defer svc.Close()

	if monCfg := config.GetMonitorConfig(); monCfg.Enabled {
		statusFile := monCfg.StatusFile
		if statusFile != "" && !filepath.IsAbs(statusFile) {
			statusFile = filepath.Join(config.GetString("logsDir"), statusFile)
		}
		mon := monitor.NewService(monitor.Dependencies{
			Backend:    backend,
			Metrics:    metrics,
			Summary:    summary,
			LogManager: a.SlogManager,
			StatusFile: statusFile,
			Interval:   monCfg.Interval,
		})
		if err := mon.Start(ctx); err != nil {
			a.Logger.Warn("Status monitor disabled", "error", err)
		} else {
			defer mon.Stop()
		}
	}

	srv := &http.Server{
		Addr:              serverCfg.Address,
		Handler:           svc.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.Logger.Info("Listening", "address", serverCfg.Address)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			_ = hub.Close()
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
		a.Logger.Info("Shutting down...")
	}

	timeout := serverCfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.Logger.Error("Graceful shutdown failed", "error", err)
	}
	_ = hub.Close()
	a.Logger.Info("Server stopped")
	return nil
}
