package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	BackendRedis = "redis"
	BackendMongo = "mongo"
)

type Config struct {
	App       AppConfig
	Store     StoreConfig
	Redis     RedisConfig
	Mongo     MongoConfig
	Catalog   CatalogConfig
	Kafka     KafkaConfig
	Reconcile ReconcileConfig
	Telemetry TelemetryConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Store.Backend {
	case BackendRedis, BackendMongo:
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}
	if c.Reconcile.Concurrency <= 0 {
		return fmt.Errorf("reconcile concurrency must be positive, got %d", c.Reconcile.Concurrency)
	}
	if c.Store.TTL <= 0 {
		return fmt.Errorf("cart ttl must be positive, got %s", c.Store.TTL)
	}
	return nil
}

type AppConfig struct {
	Env             string        `envconfig:"CART_APP_ENV" default:"dev"`
	ServiceName     string        `envconfig:"CART_SERVICE_NAME" default:"cart-service"`
	HTTPPort        string        `envconfig:"CART_HTTP_PORT" default:"8080"`
	LogLevel        string        `envconfig:"CART_LOG_LEVEL" default:"info"`
	LogFormat       string        `envconfig:"CART_LOG_FORMAT" default:"json"`
	ShutdownTimeout time.Duration `envconfig:"CART_SHUTDOWN_TIMEOUT" default:"10s"`
	RequestTimeout  time.Duration `envconfig:"CART_REQUEST_TIMEOUT" default:"30s"`
}

type StoreConfig struct {
	Backend        string        `envconfig:"CART_STORE_BACKEND" default:"redis"`
	TTL            time.Duration `envconfig:"CART_TTL" default:"720h"`
	MaxAttempts    uint          `envconfig:"CART_UPDATE_MAX_ATTEMPTS" default:"0"`
	BackoffInitial time.Duration `envconfig:"CART_UPDATE_BACKOFF_INITIAL" default:"0s"`
	BackoffMax     time.Duration `envconfig:"CART_UPDATE_BACKOFF_MAX" default:"1s"`
}

type RedisConfig struct {
	Addr     string `envconfig:"CART_REDIS_ADDR" default:"localhost:6379"`
	Password string `envconfig:"CART_REDIS_PASSWORD"`
	DB       int    `envconfig:"CART_REDIS_DB" default:"0"`
}

type MongoConfig struct {
	URI      string `envconfig:"CART_MONGO_URI" default:"mongodb://localhost:27017"`
	Database string `envconfig:"CART_MONGO_DB" default:"cartdb"`
}

type CatalogConfig struct {
	Addr               string        `envconfig:"CART_CATALOG_ADDR" default:"localhost:50051"`
	Timeout            time.Duration `envconfig:"CART_CATALOG_TIMEOUT" default:"5s"`
	BreakerFailures    uint32        `envconfig:"CART_CATALOG_BREAKER_FAILURES" default:"5"`
	BreakerOpenTimeout time.Duration `envconfig:"CART_CATALOG_BREAKER_OPEN_TIMEOUT" default:"30s"`
}

type KafkaConfig struct {
	Enabled             bool     `envconfig:"CART_KAFKA_ENABLED" default:"true"`
	Brokers             []string `envconfig:"CART_KAFKA_BROKERS" default:"localhost:9092"`
	GroupID             string   `envconfig:"CART_KAFKA_GROUP_ID" default:"cart-service-group"`
	ProductUpdatedTopic string   `envconfig:"CART_KAFKA_PRODUCT_UPDATED_TOPIC" default:"product.updated"`
	ProductDeletedTopic string   `envconfig:"CART_KAFKA_PRODUCT_DELETED_TOPIC" default:"product.deleted"`
	CheckoutTopic       string   `envconfig:"CART_KAFKA_CHECKOUT_TOPIC" default:"checkout-outbox"`
}

type ReconcileConfig struct {
	Concurrency int `envconfig:"CART_RECONCILE_CONCURRENCY" default:"8"`
}

type TelemetryConfig struct {
	OTLPEndpoint string `envconfig:"CART_OTLP_ENDPOINT"`
}
