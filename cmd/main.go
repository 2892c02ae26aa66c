package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/fjod/go_cart/cart-service/internal/catalog"
	"github.com/fjod/go_cart/cart-service/internal/config"
	"github.com/fjod/go_cart/cart-service/internal/consumer"
	carthttp "github.com/fjod/go_cart/cart-service/internal/http"
	"github.com/fjod/go_cart/cart-service/internal/index"
	"github.com/fjod/go_cart/cart-service/internal/logger"
	"github.com/fjod/go_cart/cart-service/internal/metrics"
	s "github.com/fjod/go_cart/cart-service/internal/service"
	"github.com/fjod/go_cart/cart-service/internal/store"
	"github.com/fjod/go_cart/cart-service/internal/telemetry"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
)

func main() {
	// A missing .env is fine; the environment wins either way.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	appLog := logger.New(logger.Options{
		ServiceName: cfg.App.ServiceName,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
	})

	ctx := context.Background()
	shutdownTracing, err := telemetry.Setup(ctx, cfg.App.ServiceName, cfg.Telemetry.OTLPEndpoint)
	if err != nil {
		log.Fatalf("Failed to set up tracing: %v", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(registry)

	policy := store.RetryPolicy{
		MaxAttempts:    cfg.Store.MaxAttempts,
		InitialBackoff: cfg.Store.BackoffInitial,
		MaxBackoff:     cfg.Store.BackoffMax,
	}

	var (
		cartStore    store.CartStore
		productIndex index.ProductIndex
		closeBackend func(context.Context)
	)
	switch cfg.Store.Backend {
	case config.BackendMongo:
		mongoDB, err := store.ConnectMongoDB(ctx, cfg.Mongo.URI, cfg.Mongo.Database)
		if err != nil {
			log.Fatalf("Failed to connect to MongoDB: %v", err)
		}
		mongoStore := store.NewMongoStore(mongoDB, cfg.Store.TTL, policy, m)
		if err := mongoStore.EnsureIndexes(ctx); err != nil {
			log.Fatalf("Failed to create MongoDB indexes: %v", err)
		}
		cartStore = mongoStore
		productIndex = index.NewMongoIndex(mongoDB)
		closeBackend = func(ctx context.Context) { _ = mongoDB.Client().Disconnect(ctx) }
		appLog.Info(ctx, fmt.Sprintf("Connected to MongoDB at %s", cfg.Mongo.URI))
	default:
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.Fatalf("Redis connection failed: %v", err)
		}
		cartStore = store.NewRedisStore(redisClient, cfg.Store.TTL, policy, m)
		productIndex = index.NewRedisIndex(redisClient)
		closeBackend = func(context.Context) { _ = redisClient.Close() }
		appLog.Info(ctx, fmt.Sprintf("Connected to Redis at %s", cfg.Redis.Addr))
	}

	catalogConn, err := catalog.NewConn(cfg.Catalog.Addr)
	if err != nil {
		log.Fatalf("Failed to connect to catalog: %v", err)
	}
	catalogClient := catalog.NewClient(catalogConn, catalog.Options{
		Timeout:            cfg.Catalog.Timeout,
		BreakerFailures:    cfg.Catalog.BreakerFailures,
		BreakerOpenTimeout: cfg.Catalog.BreakerOpenTimeout,
	})

	service := s.NewCartService(cartStore, productIndex, catalogClient, s.Options{
		ReconcileConcurrency: cfg.Reconcile.Concurrency,
		Logger:               appLog,
		Metrics:              m,
	})

	consumerCtx, stopConsumer := context.WithCancel(ctx)
	var consumers sync.WaitGroup
	var eventConsumer *consumer.Consumer
	if cfg.Kafka.Enabled {
		topics := consumer.Topics{
			ProductUpdated: cfg.Kafka.ProductUpdatedTopic,
			ProductDeleted: cfg.Kafka.ProductDeletedTopic,
			Checkout:       cfg.Kafka.CheckoutTopic,
		}
		reader := consumer.NewReader(cfg.Kafka.Brokers, cfg.Kafka.GroupID, topics)
		eventConsumer = consumer.New(reader, service, topics, appLog, m)
		consumers.Add(1)
		go func() {
			defer consumers.Done()
			eventConsumer.Run(consumerCtx)
		}()
		appLog.Info(ctx, fmt.Sprintf("Consuming catalog events from %v", cfg.Kafka.Brokers))
	}

	handler := carthttp.NewCartHandler(service, appLog, cfg.App.RequestTimeout)
	server := &http.Server{
		Addr:    ":" + cfg.App.HTTPPort,
		Handler: carthttp.NewRouter(handler, appLog, registry),
	}

	// Graceful shutdown
	go func() {
		appLog.Info(ctx, fmt.Sprintf("Cart service listening on port %s", cfg.App.HTTPPort))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to serve: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLog.Info(ctx, "Shutting down cart service...")
	shutdownCtx, cancel := context.WithTimeout(ctx, cfg.App.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		appLog.Error(ctx, "http shutdown failed", err)
	}
	stopConsumer()
	consumers.Wait()
	if eventConsumer != nil {
		eventConsumer.Close()
	}
	_ = catalogConn.Close()
	closeBackend(shutdownCtx)
	if err := shutdownTracing(shutdownCtx); err != nil {
		appLog.Error(ctx, "tracer shutdown failed", err)
	}
	appLog.Info(ctx, "Cart service stopped")
}
