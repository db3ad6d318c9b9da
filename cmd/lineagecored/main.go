// Command lineagecored runs the metadata store daemon: it opens the
// configured storage backend and blob store, starts the async query worker
// and job retention sweep, keeps the derived projections fresh, and exposes
// the metrics registry over HTTP.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	queryworker "lineagecore/internal/adapters/query"
	"lineagecore/internal/core"
	"lineagecore/internal/infra/blob"
	"lineagecore/internal/metrics"
)

const (
	defaultMetricsAddr    = ":9090"
	defaultRefreshEvery   = 5 * time.Minute
	shutdownGracePeriod   = 10 * time.Second
	metricsAddrEnvVar     = "LINEAGECORE_METRICS_ADDR"
	refreshIntervalEnvVar = "LINEAGECORE_PROJECTION_REFRESH"
)

func main() {
	log := newLogger()
	defer func() { _ = log.Sync() }()

	if err := run(log.Sugar()); err != nil {
		log.Sugar().Fatalw("daemon exited", "error", err)
	}
}

func newLogger() *zap.Logger {
	if os.Getenv("LINEAGECORE_DEBUG") != "" {
		cfg := zap.NewDevelopmentConfig()
		cfg.OutputPaths = []string{"stdout"}
		log, err := cfg.Build()
		if err == nil {
			return log
		}
	}
	log, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	return log
}

func run(log *zap.SugaredLogger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	backend, err := core.OpenBackend(log)
	if err != nil {
		return err
	}
	blobs, err := blob.Open(ctx)
	if err != nil {
		return err
	}
	log.Infow("storage ready", "blob_driver", blobs.Driver())

	var opts []core.Option
	if v := os.Getenv("LINEAGECORE_QUERY_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			opts = append(opts, core.WithQueryTimeout(d))
		} else {
			log.Warnw("invalid query timeout, using default", "value", v)
		}
	}
	if backend.Engine != nil {
		worker := queryworker.NewWorker(backend.Jobs, backend.Engine, blobs, log)
		worker.Start()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGracePeriod)
			defer cancel()
			if err := worker.Stop(shutdownCtx); err != nil {
				log.Warnw("worker shutdown", "error", err)
			}
		}()
		opts = append(opts, core.WithJobEnqueuer(worker))
	}

	sweeper := queryworker.NewSweeper(backend.Jobs, log)
	sweeper.Start()
	defer sweeper.Stop()

	service := core.NewService(backend.Store, backend.Jobs, backend.Engine, log, opts...)
	go refreshLoop(ctx, service, log)

	srv := &http.Server{
		Addr:    metricsAddr(),
		Handler: metricsMux(),
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGracePeriod)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	log.Infow("lineagecored listening", "metrics_addr", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func metricsAddr() string {
	if addr := os.Getenv(metricsAddrEnvVar); addr != "" {
		return addr
	}
	return defaultMetricsAddr
}

func metricsMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return mux
}

func refreshLoop(ctx context.Context, service *core.Service, log *zap.SugaredLogger) {
	interval := defaultRefreshEvery
	if v := os.Getenv(refreshIntervalEnvVar); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil && parsed > 0 {
			interval = parsed
		} else {
			log.Warnw("invalid projection refresh interval, using default", "value", v)
		}
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := service.RefreshProjections(ctx); err != nil {
				log.Errorw("refresh projections", "error", err)
			}
		}
	}
}
