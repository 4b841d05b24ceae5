// Command tribunald serves the multi-backend dispatch and judging API.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/chainguard-dev/clog"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/ahrav/go-tribunal/infrastructure/llm"
	"github.com/ahrav/go-tribunal/infrastructure/middleware"
	"github.com/ahrav/go-tribunal/internal/committee"
	"github.com/ahrav/go-tribunal/internal/config"
	"github.com/ahrav/go-tribunal/internal/judging"
	"github.com/ahrav/go-tribunal/internal/server"
)

func main() {
	var configPath string
	var debug bool

	rootCmd := &cobra.Command{
		Use:   "tribunald",
		Short: "Dispatch one prompt to many LLM backends and adjudicate the results",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), configPath, debug)
		},
	}
	rootCmd.Flags().StringVarP(&configPath, "config", "c", "tribunal.yaml", "path to the configuration file")
	rootCmd.Flags().BoolVar(&debug, "debug", false, "enable debug logging and request logs")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string, debug bool) error {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	logger := clog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	ctx = clog.WithLogger(ctx, logger)

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	criteria, err := config.LoadCriteria(cfg.Judging.CriteriaFile)
	if err != nil {
		return err
	}

	collector := middleware.NewPrometheusMetrics(prometheus.DefaultRegisterer)

	var chain []llm.Middleware
	chain = append(chain, llm.MetricsMiddleware(collector))
	chain = append(chain, llm.TracingMiddleware("tribunald"))
	if cfg.Dispatch.RequestsPerSecond > 0 {
		chain = append(chain, llm.RateLimitMiddleware(rate.Limit(cfg.Dispatch.RequestsPerSecond), 1))
	}
	if cfg.Dispatch.CircuitMaxFailures > 0 {
		chain = append(chain, llm.CircuitBreakerMiddleware(cfg.Dispatch.CircuitMaxFailures, cfg.Dispatch.CircuitCooldown))
	}

	backends := make([]llm.BackendConfig, 0, len(cfg.Backends))
	for _, b := range cfg.Backends {
		backends = append(backends, llm.BackendConfig{
			ID:        b.ID,
			Provider:  b.Provider,
			Model:     b.Model,
			Label:     b.Label,
			APIKeyEnv: b.APIKeyEnv,
			BaseURL:   b.BaseURL,
		})
	}

	directory, err := llm.NewDirectory(llm.DirectoryConfig{
		Backends:       backends,
		DefaultTimeout: cfg.Dispatch.Timeout,
		Middleware:     chain,
	})
	if err != nil {
		return fmt.Errorf("building backend directory failed: %w", err)
	}

	dispatcher, err := committee.NewDispatcher(directory, committee.WithMetrics(collector))
	if err != nil {
		return err
	}

	engine, err := judging.NewEngine(directory, judging.Config{
		DefaultJudgeID:  cfg.Judging.DefaultJudge,
		SynthesizerID:   cfg.Judging.Synthesizer,
		MaxConcurrency:  cfg.Judging.MaxConcurrency,
		DefaultCriteria: criteria,
	}, judging.WithEngineMetrics(collector))
	if err != nil {
		return err
	}

	srv := server.NewServer(server.Config{
		Addr:           cfg.Server.Addr,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Debug:          debug,
	}, dispatcher, engine, directory)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()
	logger.Info("tribunald listening", "addr", cfg.Server.Addr, "backends", len(cfg.Backends))

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	return nil
}
