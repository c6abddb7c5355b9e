package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spraywall/spraywall/internal/config"
	"github.com/spraywall/spraywall/internal/logging"
	intOtel "github.com/spraywall/spraywall/internal/otel"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

// app holds the process-wide logging and telemetry set up for a command.
type app struct {
	SlogManager  *logging.SlogManager
	Logger       *slog.Logger
	DBLogger     zerolog.Logger
	OTelProvider *intOtel.Provider

	LogFilePath string
	logFile     *os.File
	gelf        io.Closer
	start       time.Time
}

// newApp opens the session log file in logsDir and wires slog to stdout,
// the file, and the optional OTel and Graylog sinks.
func newApp(stdout io.Writer) (*app, error) {
	a := &app{
		SlogManager: logging.NewSlogManager(),
		start:       time.Now(),
	}
	level := config.GetString("logLevel")

	logsDir := config.GetString("logsDir")
	if err := os.MkdirAll(logsDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create logs dir: %w", err)
	}

	a.LogFilePath = logging.LogFilePath(logsDir, AppName, a.start)
	// keep the previous log of a session started in the same second
	if _, err := os.Stat(a.LogFilePath); err == nil {
		_ = os.Rename(a.LogFilePath, a.LogFilePath+".old")
	}
	f, err := os.OpenFile(a.LogFilePath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		return nil, fmt.Errorf("failed to create log file: %w", err)
	}
	a.logFile = f

	otelCfg := config.GetOTelConfig()
	a.OTelProvider, err = intOtel.New(intOtel.Config{
		Enabled:      otelCfg.Enabled,
		ServiceName:  otelCfg.ServiceName,
		BatchTimeout: otelCfg.BatchTimeout,
		LogWriter:    f,
		Endpoint:     otelCfg.Endpoint,
		Insecure:     otelCfg.Insecure,
	})
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("failed to initialize OTel provider: %w", err)
	}

	var extra []slog.Handler
	var gelfErr error
	if gl := config.GetGraylogConfig(); gl.Enabled {
		w, err := logging.NewGELFWriter(gl.Address)
		if err != nil {
			gelfErr = err
		} else {
			a.gelf = w
			extra = append(extra, logging.NewGELFHandler(w, level, AppName))
		}
	}

	var otelLogProvider *sdklog.LoggerProvider
	if a.OTelProvider.Enabled() {
		otelLogProvider = a.OTelProvider.LoggerProvider()
		a.SlogManager.ServiceName = otelCfg.ServiceName
	}

	var out io.Writer = f
	if stdout != nil {
		out = io.MultiWriter(stdout, f)
	}
	a.SlogManager.Setup(out, level, otelLogProvider, extra...)
	a.Logger = a.SlogManager.Logger()
	a.DBLogger = logging.NewZerolog(level, os.Stderr, f)

	a.Logger.Info("Logging to file", "path", a.LogFilePath, "otel", a.OTelProvider.Enabled())
	if gelfErr != nil {
		a.Logger.Warn("Failed to connect Graylog sink", "error", gelfErr)
	}
	return a, nil
}

// Close flushes telemetry and closes the log sinks.
func (a *app) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := a.SlogManager.Flush(ctx); err != nil {
		a.Logger.Warn("Failed to flush logs", "error", err)
	}
	if err := a.OTelProvider.Shutdown(ctx); err != nil {
		a.Logger.Warn("Failed to shut down OTel provider", "error", err)
	}
	if a.gelf != nil {
		_ = a.gelf.Close()
	}
	if a.logFile != nil {
		_ = a.logFile.Close()
	}
}
