package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/loykin/flowcap"
	"github.com/loykin/flowcap/internal/logger"
)

// ServeFlags holds flags for the serve command
type ServeFlags struct {
	Listen   string
	BasePath string
	// NonBlocking returns once the listener is up; used by tests.
	NonBlocking bool
}

func createServeCommand(globalFlags *GlobalFlags) *cobra.Command {
	f := &ServeFlags{}
	cmd := &cobra.Command{
		Use:   "serve [config.toml]",
		Short: "Start the local HTTP bridge for the UI",
		Long: `Start the flowcap daemon. The UI and the session commands (status, stop,
--api-url) talk to it over HTTP.

Examples:
  flowcap serve
  flowcap serve config.toml
  flowcap serve --listen=127.0.0.1:9000 --base-path=/bridge`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := globalFlags.ConfigPath
			if len(args) > 0 {
				path = args[0]
			}
			return runServe(cmd.Context(), path, *f)
		},
	}
	cmd.Flags().StringVar(&f.Listen, "listen", "", "listen address (overrides server.listen)")
	cmd.Flags().StringVar(&f.BasePath, "base-path", "", "API base path (overrides server.base_path)")
	cmd.Flags().BoolVar(&f.NonBlocking, "non-blocking", false, "start, then shut down immediately")
	return cmd
}

func runServe(ctx context.Context, configPath string, f ServeFlags) error {
	cfg, err := flowcap.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}
	if f.Listen != "" {
		cfg.Server.Listen = f.Listen
	}
	if f.BasePath != "" {
		cfg.Server.BasePath = f.BasePath
	}
	logCloser, err := logger.Setup(cfg.Log, os.Stderr)
	if err != nil {
		return err
	}
	defer func() { _ = logCloser.Close() }()

	app, err := flowcap.New(cfg)
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := app.Close(sctx); err != nil {
			slog.Warn("Shutdown left recorders behind", "error", err)
		}
	}()

	// the bridge serves /metrics itself unless a separate listener is configured
	inlineMetrics := false
	if cfg.Metrics.Enabled {
		if err := app.RegisterMetrics(prometheus.DefaultRegisterer); err != nil {
			slog.Warn("Failed to register metrics", "error", err)
		} else if cfg.Metrics.Listen != "" {
			go func() {
				if err := flowcap.ServeMetrics(cfg.Metrics.Listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
					slog.Error("Metrics server error", "error", err)
				}
			}()
		} else {
			inlineMetrics = true
		}
	}

	srv := flowcap.NewHTTPServer(cfg.Server.Listen, cfg.Server.BasePath, app, inlineMetrics)

	ln, err := net.Listen("tcp", cfg.Server.Listen)
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.Server.Listen, err)
	}
	slog.Info("Starting flowcap bridge", "addr", ln.Addr().String(), "base_path", cfg.Server.BasePath, "project_root", app.ProjectRoot())

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	if !f.NonBlocking {
		sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
		defer stop()
		select {
		case <-sigCtx.Done():
		case err := <-errCh:
			if !errors.Is(err, http.ErrServerClosed) {
				return err
			}
		}
	}

	slog.Info("Shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(sctx)
}
