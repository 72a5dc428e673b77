// Command engine is the long-running daemon (spec.md §4): it wires the
// Store Gateway, Fetcher, rate limiter/ban barrier, the two runners,
// the Reconciler, and the Thumbnail Worker, then blocks until an
// interrupt signal, draining everything in flight. Grounded on the
// teacher's cmd/sync/main.go bootstrap idiom (flag-parsed config path,
// config.Load, logger.New, database lifecycle), generalized from a
// one-shot CLI to a supervised daemon since this engine has no
// one-shot commands — every unit of work is a persisted, resumable
// task the Reconciler drives.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/slinet/gallerysync/internal/config"
	"github.com/slinet/gallerysync/internal/fetch"
	"github.com/slinet/gallerysync/internal/logger"
	"github.com/slinet/gallerysync/internal/metrics"
	"github.com/slinet/gallerysync/internal/ratelimit"
	"github.com/slinet/gallerysync/internal/sched"
	"github.com/slinet/gallerysync/internal/store"
	gsync "github.com/slinet/gallerysync/internal/sync"
	"github.com/slinet/gallerysync/internal/thumb"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.LogLevel, "engine")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	log.Info("configuration loaded",
		zap.String("site_host", cfg.Site.Host),
		zap.String("db_host", cfg.Database.Host),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	initCtx, cancelInit := context.WithTimeout(ctx, 10*time.Second)
	st, err := store.NewGateway(initCtx, &cfg.Database, log)
	cancelInit()
	if err != nil {
		log.Fatal("failed to initialize store", zap.Error(err))
	}
	defer st.Close()

	client, err := fetch.NewClient(&cfg.Site, 30*time.Second)
	if err != nil {
		log.Fatal("failed to initialize fetch client", zap.Error(err))
	}

	m := metrics.New(prometheus.DefaultRegisterer)

	mainLimiter := ratelimit.NewLimiter(cfg.RateLimit.MainInterval)
	thumbLimiter := ratelimit.NewLimiter(cfg.RateLimit.ThumbInterval)
	barrier := &ratelimit.BanBarrier{}

	fetcher := fetch.NewFetcher(client, mainLimiter, barrier, cfg.Site.Host, cfg.Site.InlineSet, m)

	// Startup access check: rejected cookies end the process before any
	// task is scheduled; the reconciler's warm-up runs after it.
	allCats := make([]string, 0, len(fetch.CategoryBits))
	for c := range fetch.CategoryBits {
		allCats = append(allCats, c)
	}
	if _, _, _, err := fetcher.FetchList(ctx, fetch.CategoryMask(allCats), nil); errors.Is(err, fetch.ErrAccessDenied) || errors.Is(err, fetch.ErrLoginRequired) {
		log.Fatal("site access validation failed", zap.Error(err))
	} else if err != nil {
		log.Warn("site access check did not complete", zap.Error(err))
	}

	fullRunner := gsync.NewFullRunner(st, fetcher, log.With(zap.String("runner", "full")))
	incrRunner := gsync.NewIncrementalRunner(st, fetcher, log.With(zap.String("runner", "incremental")))

	reconciler := sched.NewReconciler(st, fullRunner, incrRunner, log.With(zap.String("component", "reconciler")), m,
		cfg.Reconciler.PollInterval, cfg.Reconciler.WarmupDelay)

	refererURL := fmt.Sprintf("https://%s/", cfg.Site.Host)
	thumbWorker := thumb.NewWorker(st, client, thumbLimiter, cfg.Site.ThumbDir, refererURL,
		cfg.Reconciler.ThumbIdleSleep, log.With(zap.String("component", "thumb_worker")), m)

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	metricsSrv := &http.Server{Addr: fmt.Sprintf(":%d", cfg.Metrics.Port), Handler: metricsMux}

	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		reconciler.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		thumbWorker.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("metrics server failed", zap.Error(err))
		}
	}()

	log.Info("engine started", zap.Int("metrics_port", cfg.Metrics.Port))
	<-ctx.Done()
	log.Info("shutdown signal received, draining in-flight work")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	_ = metricsSrv.Shutdown(shutdownCtx)
	cancelShutdown()

	wg.Wait()
	log.Info("engine stopped")
}
