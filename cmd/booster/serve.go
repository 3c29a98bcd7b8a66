package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/oriys/booster/internal/backend/kv"
	"github.com/oriys/booster/internal/backend/relational"
	"github.com/oriys/booster/internal/config"
	"github.com/oriys/booster/internal/hostabi"
	"github.com/oriys/booster/internal/httpapi"
	"github.com/oriys/booster/internal/logging"
	"github.com/oriys/booster/internal/metrics"
	"github.com/oriys/booster/internal/observability"
	"github.com/oriys/booster/internal/pool"
	"github.com/oriys/booster/internal/reload"
	"github.com/oriys/booster/internal/traceid"
	"github.com/oriys/booster/internal/vm"
)

func serveCmd() *cobra.Command {
	var (
		listenAddr string
		wasmPath   string
		logLevel   string
		logFormat  string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the booster daemon",
		Long:  "Run booster: load a WASM module, serve /health and /run over HTTP, and watch for hot reloads",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadFromEnv(config.DefaultConfig())
			if cmd.Flags().Changed("listen") {
				cfg.ListenAddr = listenAddr
			}
			if cmd.Flags().Changed("wasm-path") {
				cfg.WasmPath = wasmPath
			}
			if cmd.Flags().Changed("log-level") {
				cfg.Logging.Level = logLevel
			}
			if cmd.Flags().Changed("log-format") {
				cfg.Logging.Format = logFormat
			}

			logging.SetLevelFromString(cfg.Logging.Level)
			logging.SetFormat(cfg.Logging.Format)

			return runDaemon(cfg)
		},
	}

	cmd.Flags().StringVar(&listenAddr, "listen", "0.0.0.0:2678", "HTTP listen address")
	cmd.Flags().StringVar(&wasmPath, "wasm-path", "", "Path to a .wasm file or directory of candidates (overrides BOOSTER_PATH)")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "Operational log level")
	cmd.Flags().StringVar(&logFormat, "log-format", "text", "Operational log format (text|json)")

	return cmd
}

func runDaemon(cfg *config.Config) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := observability.Init(ctx, observability.Config{
		Enabled:     cfg.Tracing.Enabled,
		Exporter:    "otlp-http",
		Endpoint:    cfg.Tracing.Endpoint,
		ServiceName: "booster",
		SampleRate:  1.0,
	}); err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer observability.Shutdown(context.Background())

	m := metrics.Init(cfg.Metrics.Namespace)

	pgAdapter, err := relational.NewFromConfig(ctx, cfg.Postgres)
	if err != nil {
		return fmt.Errorf("init relational adapter: %w", err)
	}
	defer pgAdapter.Close()
	if pgAdapter.Enabled() {
		logging.Op().Info("relational adapter enabled")
	} else {
		logging.Op().Info("relational adapter disabled: no POSTGRES_URL configured")
	}

	kvAdapter, err := kv.NewFromConfig(ctx, cfg.Redis)
	if err != nil {
		return fmt.Errorf("init kv adapter: %w", err)
	}
	defer kvAdapter.Close()
	if kvAdapter.Enabled() {
		logging.Op().Info("kv adapter enabled")
	} else {
		logging.Op().Info("kv adapter disabled: no REDIS_URL configured")
	}

	runtime, err := vm.NewRuntime(cfg.Wasmtime)
	if err != nil {
		return fmt.Errorf("init wasmtime runtime: %w", err)
	}
	if err := hostabi.AddPostgresToLinker(runtime.Linker, pgAdapter); err != nil {
		return fmt.Errorf("register postgres host calls: %w", err)
	}
	if err := hostabi.AddRedisToLinker(runtime.Linker, kvAdapter); err != nil {
		return fmt.Errorf("register redis host calls: %w", err)
	}

	watcher := reload.New(cfg.WasmPath, runtime.CompileFile, nil)
	module, err := watcher.LoadBest()
	if err != nil {
		return fmt.Errorf("load initial wasm module: %w", err)
	}

	execPool := pool.New(runtime, module, cfg.Pool.MaxConcurrency, cfg.Pool.MaxOutputBytes)
	watcher = reload.New(cfg.WasmPath, runtime.CompileFile, execPool)

	go func() {
		if err := watcher.Run(ctx); err != nil {
			logging.Op().Error("reload watcher stopped", "error", err)
		}
	}()

	requestLog := logging.Default()

	invoke := func(name string) (stdout, stderr, trace string, err error) {
		trace = traceid.New()
		start := time.Now()
		result, runErr := execPool.Run(context.Background(), name)
		cost := time.Since(start)

		entry := &logging.RunLog{
			TraceID:     trace,
			Module:      name,
			CostMs:      cost.Milliseconds(),
			Success:     runErr == nil,
			StdoutBytes: len(result.Stdout),
			StderrBytes: len(result.Stderr),
		}
		status := "ok"
		if runErr != nil {
			status = "error"
			entry.Error = runErr.Error()
		}
		requestLog.Log(entry)
		m.RunsTotal.WithLabelValues(status).Inc()
		m.RunDuration.WithLabelValues(status).Observe(float64(cost.Milliseconds()))

		return result.Stdout, result.Stderr, trace, runErr
	}

	handler := httpapi.New(httpapi.Dependencies{
		Invoke:         invoke,
		MetricsHandler: m.Handler(),
	})

	httpServer := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: observability.HTTPMiddleware(handler),
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Op().Info("booster started", "addr", cfg.ListenAddr, "wasm_path", cfg.WasmPath)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logging.Op().Info("shutdown signal received", "signal", sig.String())
		cancel()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown booster: %w", err)
		}
		return nil
	case err := <-errCh:
		return fmt.Errorf("booster server error: %w", err)
	}
}
