package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/Adithya-Monish-Kumar-K/Symbol-Search-Index/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/Symbol-Search-Index/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/Symbol-Search-Index/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/Symbol-Search-Index/internal/searcher/reload"
	"github.com/Adithya-Monish-Kumar-K/Symbol-Search-Index/internal/storage"
	"github.com/Adithya-Monish-Kumar-K/Symbol-Search-Index/pkg/blobstore"
	"github.com/Adithya-Monish-Kumar-K/Symbol-Search-Index/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Symbol-Search-Index/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/Symbol-Search-Index/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/Symbol-Search-Index/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Symbol-Search-Index/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Symbol-Search-Index/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/Symbol-Search-Index/pkg/postgres"
	pkgredis "github.com/Adithya-Monish-Kumar-K/Symbol-Search-Index/pkg/redis"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting search service",
		"port", cfg.Server.Port,
		"storage", cfg.Storage.Backend,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New(nil)
		shutdownMetrics := metrics.StartServer(cfg.Metrics.Port)
		defer shutdownMetrics(context.Background())
	}

	blobs, err := storage.Open(ctx, cfg.Storage)
	if err != nil {
		slog.Error("failed to open blob store", "error", err)
		os.Exit(1)
	}

	mgr := reload.NewManager(blobs, cfg.Storage.ReadAttempts, m)

	var queryCache *cache.QueryCache
	var redisClient *pkgredis.Client
	if cfg.Redis.Addr != "" {
		redisClient, err = pkgredis.NewClient(ctx, cfg.Redis)
		if err != nil {
			slog.Warn("redis unavailable, search caching disabled", "error", err)
		} else {
			defer redisClient.Close()
			queryCache = cache.New(redisClient, cfg.Redis.CacheTTL, m)
			mgr.OnSwap(func(ctx context.Context, prev, _ *reload.Generation) {
				if prev == nil {
					return
				}
				if _, err := queryCache.Invalidate(ctx, prev.ID); err != nil {
					slog.Warn("failed to drop cached results of replaced generation",
						"generation", prev.ID,
						"error", err,
					)
				}
			})
			slog.Info("search cache enabled",
				"addr", cfg.Redis.Addr,
				"ttl", cfg.Redis.CacheTTL,
			)
		}
	}

	// The service starts without an index and turns ready once a
	// generation is published.
	if _, err := mgr.Load(ctx, ""); err != nil {
		slog.Warn("no index generation loaded yet", "error", err)
	}

	if len(cfg.Kafka.Brokers) > 0 {
		// Every replica must see every build event, so each joins its own
		// group.
		buildCfg := cfg.Kafka
		host, _ := os.Hostname()
		buildCfg.ConsumerGroup = fmt.Sprintf("%s-%s", cfg.Kafka.ConsumerGroup, host)
		consumer := kafka.NewConsumer(buildCfg, cfg.Kafka.Topics.IndexBuilt, mgr.HandleBuildEvent)
		go func() {
			if err := consumer.Run(ctx); err != nil {
				slog.Error("build event consumer stopped", "error", err)
			}
		}()
		slog.Info("consuming build events",
			"topic", cfg.Kafka.Topics.IndexBuilt,
			"group", buildCfg.ConsumerGroup,
		)
	}

	var aggregator *analytics.Aggregator
	var tracker analytics.Tracker
	if cfg.Analytics.Enabled {
		aggregator = analytics.NewAggregator(cfg.Analytics.TopN)
		tracker = aggregator
		if len(cfg.Kafka.Brokers) > 0 {
			producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.QueryLog)
			defer producer.Close()
			collector := analytics.NewCollector(producer, cfg.Analytics.BufferSize)
			collector.Start(ctx)
			defer collector.Close()
			tracker = collector

			logCfg := cfg.Kafka
			logCfg.ConsumerGroup = cfg.Kafka.ConsumerGroup + "-analytics"
			consumer := kafka.NewConsumer(logCfg, cfg.Kafka.Topics.QueryLog, aggregator.HandleEvent)
			go func() {
				if err := consumer.Run(ctx); err != nil {
					slog.Error("query log consumer stopped", "error", err)
				}
			}()
			slog.Info("query log enabled", "topic", cfg.Kafka.Topics.QueryLog)
		}
		if cfg.Postgres.Enabled() {
			startSnapshots(ctx, cfg, aggregator)
		}
	}

	if local, ok := blobs.(*blobstore.LocalStore); ok && cfg.Reload.Watch {
		go func() {
			if err := mgr.Watch(ctx, local.Root(), cfg.Reload.Debounce); err != nil {
				slog.Error("index watch stopped", "error", err)
			}
		}()
	}

	checker := health.NewChecker()
	checker.Register("index", func(ctx context.Context) error {
		if _, _, err := mgr.Executor(); err != nil {
			return err
		}
		return nil
	})
	if redisClient != nil {
		checker.RegisterOptional("redis", redisClient.Ping)
	}

	h := handler.New(mgr, queryCache, m, handler.Options{
		DefaultLimit: cfg.Search.DefaultLimit,
		MaxResults:   cfg.Search.MaxResults,
		Timeout:      cfg.Search.Timeout,
		SlowQuery:    cfg.Search.SlowQuery,
		Tracker:      tracker,
	})

	mux := http.NewServeMux()
	h.Register(mux)
	if aggregator != nil {
		mux.HandleFunc("GET /api/v1/analytics", analytics.NewHandler(aggregator).Stats)
	}
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var limiter *middleware.RateLimiter
	if cfg.Server.RateLimit > 0 {
		limiter = middleware.NewRateLimiter(cfg.Server.RateLimit, cfg.Server.RateBurst)
	}

	server := &http.Server{
		Addr: fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: middleware.Chain(mux,
			middleware.RequestID,
			middleware.RateLimit(limiter),
			middleware.Deadline(cfg.Server.WriteTimeout),
			middleware.Metrics(m),
		),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// ListenAndServe returns as soon as Shutdown starts; the deferred
	// cleanup must wait until in-flight requests have finished.
	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("search service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	<-shutdownDone

	slog.Info("search service stopped")
}

// startSnapshots restores the last saved query stats and keeps saving them
// until ctx ends. Database problems only disable persistence.
func startSnapshots(ctx context.Context, cfg *config.Config, agg *analytics.Aggregator) {
	db, err := postgres.New(ctx, cfg.Postgres)
	if err != nil {
		slog.Warn("postgres unavailable, query stats will not persist", "error", err)
		return
	}
	store := analytics.NewSnapshotStore(db)
	if err := store.EnsureSchema(ctx); err != nil {
		slog.Warn("query stats persistence disabled", "error", err)
		db.Close()
		return
	}
	if latest, err := store.Latest(ctx); err != nil {
		slog.Warn("could not restore query stats", "error", err)
	} else if latest != nil {
		agg.Restore(*latest)
		slog.Info("query stats restored", "queries", latest.Queries)
	}
	go func() {
		defer db.Close()
		store.RunSnapshots(ctx, agg, cfg.Analytics.SnapshotInterval)
	}()
}
