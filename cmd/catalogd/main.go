package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"catalog/application/services"
	"catalog/domain/events"
	"catalog/infrastructure/cache"
	"catalog/infrastructure/config"
	"catalog/infrastructure/messaging"
	"catalog/infrastructure/messaging/kafka"
	"catalog/infrastructure/persistence/falkordb"
	"catalog/infrastructure/persistence/postgres"
	"catalog/infrastructure/search"
	"catalog/infrastructure/search/bleve"
	"catalog/interfaces/rest"
	"catalog/pkg/observability"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "catalogd:", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to catalogd.yaml; defaults apply when omitted")
	flag.Parse()

	bootLogger, _ := zap.NewProduction()
	cfg, err := config.Load(*configPath, bootLogger)
	if err != nil {
		return err
	}
	_ = bootLogger.Sync()

	logger, logLevel, err := observability.NewLoggerWithLevel(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := observability.NewMetrics(registry)

	if cfg.Tracing.Enabled {
		shutdown, err := observability.InitTracing(ctx, "catalogd", cfg.Tracing.Endpoint)
		if err != nil {
			return err
		}
		defer func() { _ = shutdown(context.Background()) }()
	}

	// resource store
	db, err := sqlx.ConnectContext(ctx, "postgres", cfg.Postgres.DSN)
	if err != nil {
		return fmt.Errorf("connecting to postgres: %w", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(cfg.Postgres.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Postgres.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Postgres.ConnMaxLifetime)

	resources := postgres.NewResourceRepository(db, logger.Named("postgres"))
	if err := resources.Migrate(ctx); err != nil {
		return err
	}

	// graph store
	graph := falkordb.NewGraphRepository(cfg.Graph.Falkor(), logger.Named("falkordb"))
	if err := graph.Connect(ctx); err != nil {
		return err
	}
	defer graph.Close()

	// search index behind a circuit breaker
	index, err := bleve.NewIndex(cfg.Search.IndexPath, logger.Named("bleve"))
	if err != nil {
		return err
	}
	defer index.Close()
	searchIndex := search.NewBreakerIndex(index, logger.Named("search-breaker"))

	resourceCache, err := cache.NewResourceCache(cfg.Cache.Size)
	if err != nil {
		return err
	}

	// event bus
	producer, err := kafka.NewProducer(cfg.Kafka.Producer, events.SourceCatalog, logger.Named("producer"), metrics)
	if err != nil {
		return err
	}
	defer producer.Close()
	publisher := kafka.NewEventPublisher(producer, cfg.Kafka.Topic)

	service := services.NewCatalogService(
		resources, graph, searchIndex, publisher, resourceCache,
		logger.Named("catalog"), metrics,
	)

	dispatcher := messaging.NewDispatcher()
	projector := services.NewProjector(resources, graph, searchIndex, logger.Named("projector"))
	if err := projector.Register(dispatcher); err != nil {
		return err
	}

	dlq, err := kafka.NewDLQ(cfg.Kafka.DLQ, cfg.Kafka.Producer,
		func(ctx context.Context, event *messaging.DeadLetterEvent) error {
			env, err := messaging.Deserialize(event.Payload)
			if err != nil {
				return err
			}
			return dispatcher.Dispatch(ctx, env)
		},
		logger.Named("dlq"), metrics,
	)
	if err != nil {
		return err
	}
	defer dlq.Close()

	consumer := kafka.NewConsumer(cfg.Kafka.Consumer, dispatcher, dlq, logger.Named("consumer"), metrics)
	if err := consumer.Start(ctx, []string{cfg.Kafka.Topic}); err != nil {
		return err
	}
	defer consumer.Stop()

	// config hot reload: only the log level changes at runtime
	if *configPath != "" {
		watcher, err := config.NewWatcher(*configPath, logger.Named("config"))
		if err != nil {
			return err
		}
		watcher.Start(ctx, func(next *config.Config) {
			if lvl, err := observability.ParseLevel(next.Log.Level); err == nil {
				logLevel.SetLevel(lvl)
			}
		})
	}

	router := chi.NewRouter()
	router.Use(middleware.Recoverer)
	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	router.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			http.Error(w, "resource store unavailable", http.StatusServiceUnavailable)
			return
		}
		if err := graph.Ping(r.Context()); err != nil {
			http.Error(w, "graph store unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	router.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	rest.NewHandler(service, logger.Named("rest")).Routes(router)

	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("catalogd listening", zap.String("addr", cfg.Server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown incomplete", zap.Error(err))
	}
	if err := producer.Flush(shutdownCtx); err != nil {
		logger.Warn("producer flush incomplete", zap.Error(err))
	}

	return nil
}
