// Command searcher serves the discovery search API over the package, guide
// and agency catalog.
//
// Usage:
//
//	go run ./cmd/searcher [-config configs/discovery.yaml]
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/nepal-guide-hub/discovery/internal/analytics"
	"github.com/nepal-guide-hub/discovery/internal/changes"
	"github.com/nepal-guide-hub/discovery/internal/ratelimit"
	"github.com/nepal-guide-hub/discovery/internal/searcher/cache"
	"github.com/nepal-guide-hub/discovery/internal/searcher/executor"
	"github.com/nepal-guide-hub/discovery/internal/searcher/handler"
	"github.com/nepal-guide-hub/discovery/internal/storage/driver"
	"github.com/nepal-guide-hub/discovery/pkg/config"
	"github.com/nepal-guide-hub/discovery/pkg/health"
	"github.com/nepal-guide-hub/discovery/pkg/kafka"
	"github.com/nepal-guide-hub/discovery/pkg/logger"
	"github.com/nepal-guide-hub/discovery/pkg/metrics"
	"github.com/nepal-guide-hub/discovery/pkg/middleware"
	pkgredis "github.com/nepal-guide-hub/discovery/pkg/redis"
	"github.com/nepal-guide-hub/discovery/pkg/tracing"
)

func main() {
	configPath := flag.String("config", "configs/discovery.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting search service", "port", cfg.Server.Port, "storage", cfg.Storage.Driver)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New(nil)
	if cfg.Metrics.Enabled {
		shutdownMetrics := metrics.StartServer(cfg.Metrics.Port)
		defer shutdownMetrics(context.Background())
	}

	backend, err := driver.Open(cfg)
	if err != nil {
		slog.Error("failed to open catalog storage", "error", err)
		os.Exit(1)
	}
	defer backend.Close()

	checker := health.NewChecker()
	checker.Register("storage", health.PingCheck(backend.Ping, false))

	var opts []handler.Option
	opts = append(opts, handler.WithMetrics(m), handler.WithTracer(tracing.NewTracer(cfg.Tracing)))

	var queryCache *cache.QueryCache
	if cfg.Redis.Enabled {
		redisClient, err := pkgredis.NewClient(cfg.Redis)
		if err != nil {
			slog.Warn("redis unavailable, search caching disabled", "error", err)
		} else {
			defer redisClient.Close()
			queryCache = cache.New(redisClient, cfg.Redis, m)
			opts = append(opts, handler.WithCache(queryCache))
			checker.Register("redis", health.PingCheck(redisClient.Ping, true))
			slog.Info("search cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
		}
	}

	var changeFeed *changes.Handler
	if cfg.Kafka.Enabled {
		checker.Register("kafka", health.PingCheck(func(ctx context.Context) error {
			return kafka.Ping(ctx, cfg.Kafka)
		}, true))

		if cfg.Analytics.Enabled {
			producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.SearchEvents)
			defer producer.Close()
			collector := analytics.NewCollector(producer, cfg.Analytics, m)
			collector.Start(ctx)
			defer collector.Close()
			opts = append(opts, handler.WithTracker(collector))
		}

		changesProducer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.CacheInvalidate)
		defer changesProducer.Close()
		changeFeed = changes.NewHandler(changes.NewPublisher(changesProducer))

		if queryCache != nil {
			// Every replica flushes on catalog changes, so each gets its own group.
			group := fmt.Sprintf("discovery-searcher-%s", hostname())
			invalidations := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.CacheInvalidate, group, cache.HandleInvalidation(queryCache))
			go func() {
				if err := invalidations.Start(ctx); err != nil {
					slog.Error("cache invalidation consumer error", "error", err)
				}
			}()
		}
	}

	exec := executor.New(backend.Repository, cfg.Search)
	h := handler.New(exec, cfg.Search, opts...)

	mux := http.NewServeMux()
	h.Register(mux)
	if changeFeed != nil {
		changeFeed.Register(mux)
	}
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	mws := []func(http.Handler) http.Handler{
		middleware.RequestID,
		middleware.Metrics(m),
		middleware.CORS(middleware.DefaultCORSConfig(cfg.Server.AllowedOrigins...)),
	}
	if cfg.RateLimit.Enabled {
		limiter := ratelimit.New(cfg.RateLimit.Rate, cfg.RateLimit.Window)
		defer limiter.Stop()
		mws = append(mws, middleware.RateLimit(limiter, m))
	}
	mws = append(mws, middleware.Timeout(cfg.Server.RequestTimeout))

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      middleware.Chain(mux, mws...),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("search service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("search service stopped")
}

func hostname() string {
	name, err := os.Hostname()
	if err != nil {
		return "local"
	}
	return name
}
