package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	dbadapter "vestigia/internal/adapters/database"
	"vestigia/internal/adapters/httpapi"
	"vestigia/internal/adapters/httpapi/middleware"
	"vestigia/internal/config"
	"vestigia/internal/workers"
)

type serveOptions struct {
	*rootOptions
	migrate   bool
	noWorker  bool
	poolEvery time.Duration
}

func newServeCommand(root *rootOptions) *cobra.Command {
	opts := &serveOptions{rootOptions: root}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the clock worker",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), opts)
		},
	}
	cmd.Flags().BoolVar(&opts.migrate, "migrate", true, "apply database migrations before serving")
	cmd.Flags().BoolVar(&opts.noWorker, "no-worker", false, "do not run the clock worker in this process")
	cmd.Flags().DurationVar(&opts.poolEvery, "pool-stats-interval", 15*time.Second, "how often connection-pool gauges are updated")
	return cmd
}

func runServe(parent context.Context, opts *serveOptions) error {
	cfg := opts.cfg
	if err := cfg.ValidateServer(); err != nil {
		return err
	}
	logger := config.L()

	b, err := openBackend(cfg)
	if err != nil {
		return err
	}
	defer closeResources(logger)

	if opts.migrate {
		if err := dbadapter.Migrate(b.db); err != nil {
			return err
		}
		logger.Info("✅ Database migrations completed")
	}

	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := middleware.NewMetrics(reg)
	go reportPoolStats(ctx, b.db, metrics, opts.poolEvery)

	if !opts.noWorker {
		worker := workers.NewClockWorker(b.profileRepo, b.snapshots, b.changes, b.defaultStart,
			cfg.ClockWorkerInterval, cfg.BatchSize, logger)
		go worker.Run(ctx)
	}

	r := httpapi.SetupRoutes(httpapi.Services{
		Auth:         b.auth,
		Profiles:     b.profiles,
		Figures:      b.figures,
		Timeline:     b.timeline,
		Interactions: b.interactions,
		Changes:      b.changes,
	}, httpapi.Options{Logger: logger, Metrics: metrics, Gatherer: reg})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("App is running...", zap.String("addr", srv.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("🛑 Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
