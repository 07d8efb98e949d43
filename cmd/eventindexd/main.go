// Command eventindexd starts the event index service: the in-memory
// inverted index, its update pipeline and maintenance loop, the HTTP feed
// and query surface, the query result cache, the document registry, the
// analytics pipeline, and the admin API-key/rate-limit subsystem, all in
// one process.
//
// Usage:
//
//	go run ./cmd/eventindexd [-config configs/development.yaml]
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
	"time"

	"github.com/corvid-labs/eventindex/internal/analytics"
	"github.com/corvid-labs/eventindex/internal/auth/apikey"
	"github.com/corvid-labs/eventindex/internal/auth/ratelimit"
	"github.com/corvid-labs/eventindex/internal/cache"
	"github.com/corvid-labs/eventindex/internal/engine"
	"github.com/corvid-labs/eventindex/internal/httpapi"
	"github.com/corvid-labs/eventindex/internal/ranking"
	"github.com/corvid-labs/eventindex/internal/registry"
	"github.com/corvid-labs/eventindex/pkg/config"
	"github.com/corvid-labs/eventindex/pkg/health"
	"github.com/corvid-labs/eventindex/pkg/kafka"
	"github.com/corvid-labs/eventindex/pkg/logger"
	"github.com/corvid-labs/eventindex/pkg/metrics"
	"github.com/corvid-labs/eventindex/pkg/postgres"
	pkgredis "github.com/corvid-labs/eventindex/pkg/redis"
)

// analyticsTopic is the single Kafka topic carrying all three analytics
// event types, partitioned by a "feed"/"query"/"expire" key. The
// per-event-type topic names in KafkaConfig.Topics describe the logical
// streams; the collector and aggregator multiplex them onto one physical
// topic so the consumer group sees every event in publish order.
const analyticsTopic = "eventindex.analytics"

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting event index service", "port", cfg.Server.Port)

	db, err := postgres.New(cfg.Postgres)
	if err != nil {
		slog.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("connected to postgres")

	redisClient, err := pkgredis.NewClient(cfg.Redis)
	if err != nil {
		slog.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()
	slog.Info("connected to redis")

	producer := kafka.NewProducer(cfg.Kafka, analyticsTopic)
	defer producer.Close()

	// ---- core engine ----

	mgr := engine.NewManager(engine.ManagerConfig{
		InitialBuckets:     cfg.Engine.InitialBuckets,
		MaxExpireSize:      cfg.Engine.MaxExpireSize,
		ApplyInterval:      cfg.Engine.ApplyInterval,
		CompactionInterval: cfg.Engine.CompactionInterval,
		RestoreOnStartup:   cfg.Engine.RestoreOnStartup,
		DumpOnExit:         cfg.Engine.DumpOnExit,
		SnapshotPrefix:     cfg.Engine.SnapshotPrefix,
	})
	pipeline := engine.NewPipeline(mgr.Index(), cfg.Engine.UpdateThreadNum, cfg.Engine.UpdateQueueSize, cfg.Engine.UpdateMaxBatch)
	view := engine.NewIndexView(pipeline, cfg.Engine.DefaultTTL, cfg.Engine.MaxTTL)
	executor := engine.NewQueryExecutor(mgr.Index().Postings())

	models := ranking.NewModelManager()
	models.Register("direct", ranking.NewDirectModel(nil))

	// ---- analytics: collector (produce) + aggregator (consume) ----

	collector := analytics.NewCollector(producer, 10000)
	collectorCtx, stopCollector := context.WithCancel(context.Background())
	collector.Start(collectorCtx)

	aggregator := analytics.NewAggregator(nil)
	consumer := kafka.NewConsumer(cfg.Kafka, analyticsTopic, analytics.HandleEvent(aggregator))
	analyticsHandler := analytics.NewHandler(aggregator)
	aggregatorCtx, stopAggregator := context.WithCancel(context.Background())
	go func() {
		if err := consumer.Start(aggregatorCtx); err != nil {
			slog.Error("analytics aggregator stopped", "error", err)
		}
	}()

	mgr.SetOnTick(func(applied, expired int) {
		collector.Track(analytics.ExpireEvent{
			Type:       analytics.EventExpire,
			Applied:    applied,
			Expired:    expired,
			QueueDepth: pipeline.QueueDepth(),
			Timestamp:  time.Now().UTC(),
		})
	})

	// ---- query cache, registry, admin auth ----

	queryCache := cache.New(redisClient, cfg.Redis)
	docRegistry := registry.New(db)
	keyValidator := apikey.NewValidator(db)
	adminLimiter := ratelimit.New(cfg.Admin.RateLimitWindow)
	publicLimiter := ratelimit.New(time.Minute)

	// ---- metrics, health ----

	m := metrics.New()
	if cfg.Metrics.Enabled {
		shutdownMetrics := metrics.StartServer(cfg.Metrics.Port)
		defer shutdownMetrics(context.Background())
	}

	checker := health.NewChecker()
	checker.Register("postgres", func(ctx context.Context) health.ComponentHealth {
		if err := db.DB.PingContext(ctx); err != nil {
			return health.ComponentHealth{Status: health.StatusDown, Message: err.Error()}
		}
		return health.ComponentHealth{Status: health.StatusUp}
	})
	checker.Register("redis", func(ctx context.Context) health.ComponentHealth {
		if err := redisClient.Ping(ctx); err != nil {
			return health.ComponentHealth{Status: health.StatusDown, Message: err.Error()}
		}
		return health.ComponentHealth{Status: health.StatusUp}
	})

	// ---- HTTP surface ----

	h := httpapi.New(httpapi.Deps{
		View:           view,
		Executor:       executor,
		Manager:        mgr,
		Models:         models,
		Cache:          queryCache,
		Registry:       docRegistry,
		Collector:      collector,
		QueueDepthFn:   pipeline.QueueDepth,
		MaxLimit:       cfg.Query.MaxResults,
		DefaultLimit:   cfg.Query.DefaultLimit,
		SnapshotPrefix: cfg.Engine.SnapshotPrefix,
	})

	chain := httpapi.NewRouter(httpapi.RouterConfig{
		Handler:         h,
		Health:          checker,
		Metrics:         m,
		KeyValidator:    keyValidator,
		Limiter:         adminLimiter,
		RateLimit:       cfg.Admin.RateLimitPerKey,
		PublicLimiter:   publicLimiter,
		PublicRateLimit: cfg.Admin.RateLimitPerKey,
		RequestTimeout:  cfg.Server.WriteTimeout,
		AnalyticsStats:  analyticsHandler.Stats,
	})

	mgr.StartMaintain()

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}

		pipeline.Stop()
		if err := mgr.StopMaintain(); err != nil {
			slog.Error("stopping maintenance loop", "error", err)
		}
		stopAggregator()
		stopCollector()
		collector.Close()
		if err := consumer.Close(); err != nil {
			slog.Error("closing analytics consumer", "error", err)
		}
	}()

	slog.Info("event index service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("event index service stopped")
}
