package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kompox/sandboxops/adapters/httpapi"
	"github.com/kompox/sandboxops/config/sandboxenv"
	"github.com/kompox/sandboxops/internal/logging"
	"github.com/kompox/sandboxops/internal/telemetry"
	"github.com/kompox/sandboxops/usecase/project"
)

const shutdownTimeout = 10 * time.Second

func newCmdServe() *cobra.Command {
	var host string
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := envFromContext(cmd.Context())
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("host") {
				e.Config.Server.Host = host
			}
			if cmd.Flags().Changed("port") {
				e.Config.Server.Port = port
			}
			return runServe(cmd, e)
		},
	}
	cmd.Flags().StringVar(&host, "host", "", "Listen host (overrides server.host)")
	cmd.Flags().IntVar(&port, "port", 0, "Listen port (overrides server.port)")
	return cmd
}

// openServerLog opens the configured log destination and returns a logger
// writing to it and to stderr.
func openServerLog(cmd *cobra.Command, e *sandboxenv.Env) (logging.Logger, io.Closer, error) {
	c := e.Config.Logging
	cfg := &logging.LogConfig{
		Format:        c.Format,
		Level:         c.Level,
		Output:        c.Output,
		Dir:           e.LogDir(),
		RetentionDays: c.RetentionDays,
		MaxSizeMB:     c.MaxSizeMB,
		MaxBackups:    c.MaxBackups,
	}
	lf, err := logging.NewLogFile(cfg)
	if err != nil {
		return nil, nil, err
	}
	if cfg.Output == "" {
		_ = logging.CleanupOldLogFiles(cfg.Dir, cfg.RetentionDays)
	}
	level, err := logging.ParseLevel(cfg.Level)
	if err != nil {
		lf.Close()
		return nil, nil, err
	}
	w := lf.Writer()
	if lf.Path != "" {
		w = io.MultiWriter(cmd.ErrOrStderr(), w)
	}
	l, err := logging.NewWithWriter(cfg.Format, level, w)
	if err != nil {
		lf.Close()
		return nil, nil, err
	}
	return l, lf, nil
}

// startTracing installs the span exporter when tracing is enabled.
func startTracing(ctx context.Context, e *sandboxenv.Env) (func(context.Context) error, error) {
	t := e.Config.Tracing
	if !t.Enabled {
		return func(context.Context) error { return nil }, nil
	}
	output := t.Output
	if output == "" {
		output = "traces.jsonl"
	}
	lf, err := logging.NewLogFile(&logging.LogConfig{
		Output:     output,
		Dir:        e.LogDir(),
		MaxSizeMB:  e.Config.Logging.MaxSizeMB,
		MaxBackups: e.Config.Logging.MaxBackups,
	})
	if err != nil {
		return nil, fmt.Errorf("opening trace output: %w", err)
	}
	shutdown, err := telemetry.InitTracing(ctx, telemetry.Options{Writer: lf.Writer(), Version: version})
	if err != nil {
		lf.Close()
		return nil, err
	}
	return func(ctx context.Context) error {
		return errors.Join(shutdown(ctx), lf.Close())
	}, nil
}

func runServe(cmd *cobra.Command, e *sandboxenv.Env) (err error) {
	logger, logCloser, err := openServerLog(cmd, e)
	if err != nil {
		return err
	}
	defer logCloser.Close()

	ctx := logging.WithLogger(cmd.Context(), logger)
	ctx, cleanup := withCmdRunLogger(ctx, "serve", e.ListenAddr())
	defer func() { cleanup(err) }()

	stopTracing, err := startTracing(ctx, e)
	if err != nil {
		return err
	}

	st, err := buildStores(e.DBURL())
	if err != nil {
		return err
	}
	ws, err := newWorkspaceUseCase(e, st)
	if err != nil {
		return err
	}
	cat, err := buildCatalogUseCase(cmd)
	if err != nil {
		return err
	}
	port := buildInferencePort(e)
	inf := newInferenceUseCase(e, port)
	projects := newProjectUseCase(e, port, st)
	srv := &httpapi.Server{
		Workspace: ws,
		Chat:      newChatUseCase(e, port, projects),
		Inference: inf,
		Catalog:   cat,
		Project:   projects,
		Version:   version,
		Logger:    logger,
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	httpServer := &http.Server{
		Addr:              net.JoinHostPort(e.Config.Server.Host, strconv.Itoa(e.Config.Server.Port)),
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	if e.Config.Projects.Retention > 0 {
		go cleanupProjects(ctx, projects, e.Config.Projects.Cleanup)
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info(ctx, "listening", "addr", httpServer.Addr, "workspaceDir", e.WorkspaceDir(), "inference", e.InferenceURL(), "model", e.Config.Inference.Model)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err = <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
	case <-ctx.Done():
		logger.Info(ctx, "shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	return errors.Join(err,
		httpServer.Shutdown(shutdownCtx),
		inf.Shutdown(shutdownCtx),
		stopTracing(shutdownCtx),
	)
}

// cleanupProjects removes stale uploaded projects at startup and then every
// interval until ctx is done. A non-positive interval disables it.
func cleanupProjects(ctx context.Context, uc *project.UseCase, interval time.Duration) {
	if interval <= 0 {
		return
	}
	logger := logging.FromContext(ctx)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		out, err := uc.CleanupStale(ctx)
		if err != nil {
			logger.Warn(ctx, "project cleanup failed", "error", err)
		} else if len(out.Removed) > 0 {
			logger.Info(ctx, "removed stale projects", "count", len(out.Removed))
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
