package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Adithya-Monish-Kumar-K/parliament-speech-analytics/internal/analytics/store"
	"github.com/Adithya-Monish-Kumar-K/parliament-speech-analytics/internal/events"
	"github.com/Adithya-Monish-Kumar-K/parliament-speech-analytics/internal/pipeline"
	"github.com/Adithya-Monish-Kumar-K/parliament-speech-analytics/internal/querylog"
	"github.com/Adithya-Monish-Kumar-K/parliament-speech-analytics/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/parliament-speech-analytics/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/parliament-speech-analytics/internal/workpool"
	"github.com/Adithya-Monish-Kumar-K/parliament-speech-analytics/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/parliament-speech-analytics/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/parliament-speech-analytics/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/parliament-speech-analytics/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/parliament-speech-analytics/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/parliament-speech-analytics/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/parliament-speech-analytics/pkg/postgres"
	"github.com/Adithya-Monish-Kumar-K/parliament-speech-analytics/pkg/resilience"
	pkgredis "github.com/Adithya-Monish-Kumar-K/parliament-speech-analytics/pkg/redis"
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
	slog.Info("starting search service", "port", cfg.Server.Port, "data_dir", cfg.Pipeline.DataDir)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New(prometheus.DefaultRegisterer)
	pool, err := workpool.New(cfg.Pipeline.Workers)
	if err != nil {
		slog.Error("failed to create worker pool", "error", err)
		os.Exit(1)
	}
	defer pool.Release()

	registry := pipeline.NewRegistry()
	dirs := pipeline.NewDirStore(cfg.Pipeline.DataDir, cfg.Pipeline.KeepGenerations)
	if snap, err := dirs.LoadCurrent(pool); err != nil {
		slog.Warn("no snapshot loaded, waiting for a build", "error", err)
	} else {
		registry.Publish(snap)
		pipeline.Observe(m, snap)
		slog.Info("snapshot loaded", "generation", snap.Generation, "documents", snap.Index.NumDocs())
	}

	var redisClient *pkgredis.Client
	var queryCache *cache.QueryCache
	err = resilience.Retry(ctx, "connect-redis", resilience.RetryConfig{}, func() error {
		var err error
		redisClient, err = pkgredis.NewClient(ctx, cfg.Redis)
		return err
	})
	if err != nil {
		slog.Warn("redis unavailable, search caching disabled", "error", err)
		queryCache = cache.New(nil, cfg.Redis, m)
	} else {
		defer redisClient.Close()
		queryCache = cache.New(redisClient, cfg.Redis, m)
		m.ObservePool("redis",
			func() float64 { return float64(redisClient.PoolStats().TotalConns) },
			func() float64 { return float64(redisClient.PoolStats().IdleConns) },
		)
		slog.Info("search cache enabled",
			"addr", cfg.Redis.Addr,
			"ttl", cfg.Redis.CacheTTL,
		)
	}

	var db *postgres.Client
	if cfg.Postgres.Enabled() {
		db, err = postgres.New(ctx, cfg.Postgres)
		if err != nil {
			slog.Warn("artifact store unavailable", "error", err)
		} else {
			defer db.Close()
			m.ObservePool("postgres",
				func() float64 { return float64(db.DB.Stats().OpenConnections) },
				func() float64 { return float64(db.DB.Stats().Idle) },
			)
		}
	}

	if len(cfg.Kafka.Brokers) > 0 {
		reloader := events.NewReloader(registry,
			func(ev events.SnapshotPublished) (*pipeline.Snapshot, error) {
				return pipeline.Load(filepath.Join(dirs.Root(), filepath.Base(ev.Dir)), pool)
			},
			func(ctx context.Context, s *pipeline.Snapshot) {
				pipeline.Observe(m, s)
				if err := queryCache.Invalidate(ctx); err != nil {
					slog.Warn("cache invalidation after swap failed", "error", err)
				}
			},
		)
		consumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.SnapshotPublished, instanceGroup(cfg.Kafka, "snapshots"), reloader.Handle)
		go func() {
			if err := consumer.Start(ctx); err != nil {
				slog.Error("snapshot consumer error", "error", err)
			}
		}()
		slog.Info("snapshot reloader started", "topic", cfg.Kafka.Topics.SnapshotPublished)
	}

	checker := health.NewChecker()
	checker.Register("snapshot", func(ctx context.Context) health.ComponentHealth {
		snap, err := registry.Current()
		if err != nil {
			return health.ComponentHealth{Status: health.StatusDown, Message: err.Error()}
		}
		return health.ComponentHealth{Status: health.StatusUp, Message: fmt.Sprintf("generation %d", snap.Generation)}
	})
	if redisClient != nil {
		checker.RegisterOptional("redis", health.PingCheck(redisClient.Ping))
	}
	var tracker handler.Tracker
	var aggregator *querylog.Aggregator
	if cfg.QueryLog.Enabled {
		aggregator = querylog.NewAggregator(cfg.QueryLog.TopN)
		var sink querylog.Sink = aggregator
		if len(cfg.Kafka.Brokers) > 0 {
			producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.QueryEvents, kafka.WithAsync())
			defer producer.Close()
			sink = producer
			consumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.QueryEvents, instanceGroup(cfg.Kafka, "queries"), querylog.HandleEvent(aggregator))
			go func() {
				if err := consumer.Start(ctx); err != nil {
					slog.Error("query event consumer error", "error", err)
				}
			}()
		}
		collector := querylog.NewCollector(sink, cfg.QueryLog.BufferSize)
		collector.Start(ctx)
		defer collector.Close()
		tracker = collector
		if db != nil && cfg.QueryLog.SaveInterval > 0 {
			querylog.NewStore(db).StartPeriodicSave(ctx, aggregator, cfg.QueryLog.SaveInterval)
		}
		slog.Info("query log enabled", "topic", cfg.Kafka.Topics.QueryEvents, "via_kafka", len(cfg.Kafka.Brokers) > 0)
	}

	h := handler.New(registry, queryCache, tracker, m, cfg.Search)

	mux := http.NewServeMux()
	h.Register(mux)
	if aggregator != nil {
		mux.HandleFunc("GET /api/v1/analytics/queries", querylog.NewHandler(aggregator).Stats)
	}
	if db != nil {
		checker.RegisterOptional("postgres", health.PingCheck(db.Ping))
		mux.HandleFunc("GET /api/v1/generations", handler.History(store.New(db), cfg.Search.MaxResults))
	}
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())
	mux.Handle("GET /metrics", metrics.Handler())

	mws := []func(http.Handler) http.Handler{
		middleware.RequestID,
		middleware.Metrics(m),
		middleware.CORS(cfg.Server.CORSOrigins),
	}
	if cfg.Server.RateLimit > 0 {
		limiter := middleware.NewLimiter(cfg.Server.RateLimit, time.Minute)
		go limiter.Cleanup(ctx, 5*time.Minute)
		mws = append(mws, middleware.RateLimit(limiter))
	}
	mws = append(mws, middleware.Timeout(cfg.Server.WriteTimeout))
	chain := middleware.Chain(mux, mws...)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
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

// instanceGroup names a consumer group private to this process. Every
// searcher must see every snapshot announcement, and each aggregates the
// query events of the whole fleet.
func instanceGroup(cfg config.KafkaConfig, stream string) string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = fmt.Sprintf("pid%d", os.Getpid())
	}
	return fmt.Sprintf("%s-%s-%s", cfg.ConsumerGroup, stream, host)
}
