package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

const (
	StoreBackendPostgres = "postgres"
	StoreBackendRedis    = "redis"
	StoreBackendMemory   = "memory"
)

type (
	Config struct {
		HTTP            HTTP
		Log             Log
		PG              PG
		Redis           Redis
		Store           Store
		S3              S3
		Kafka           Kafka
		KafkaController KafkaController
		Transform       Transform
		Redelivery      Redelivery
		Swagger         Swagger
		Metrics         Metrics
	}

	HTTP struct {
		Port            string        `env:"HTTP_PORT,required"`
		UsePreforkMode  bool          `env:"HTTP_USE_PREFORK_MODE" envDefault:"false"`
		ReadTimeout     time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"5s"`
		WriteTimeout    time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"5s"`
		ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"3s"`
		BodyLimit       int           `env:"HTTP_BODY_LIMIT" envDefault:"6291456"` // 6 MiB, max stream batch payload
	}

	Log struct {
		Level string `env:"LOG_LEVEL,required"`
	}

	PG struct {
		PoolMax int    `env:"PG_POOL_MAX,required"`
		URL     string `env:"PG_URL,required"`
	}

	Redis struct {
		Addr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
		Password string `env:"REDIS_PASSWORD"`
		DB       int    `env:"REDIS_DB" envDefault:"0"`
		PoolSize int    `env:"REDIS_POOL_SIZE" envDefault:"10"`
	}

	Store struct {
		Backend     string `env:"STORE_BACKEND" envDefault:"postgres"` // postgres, redis, memory
		RedisPrefix string `env:"STORE_REDIS_PREFIX" envDefault:"pseudonym:"`

		BreakerMaxRequests      uint32        `env:"STORE_BREAKER_MAX_REQUESTS" envDefault:"1"`
		BreakerInterval         time.Duration `env:"STORE_BREAKER_INTERVAL" envDefault:"1m"`
		BreakerTimeout          time.Duration `env:"STORE_BREAKER_TIMEOUT" envDefault:"10s"`
		BreakerFailureThreshold uint32        `env:"STORE_BREAKER_FAILURE_THRESHOLD" envDefault:"5"`
	}

	S3 struct {
		Endpoint       string        `env:"S3_ENDPOINT"` // empty: AWS default endpoint
		AccessKey      string        `env:"S3_ACCESS_KEY"`
		SecretKey      string        `env:"S3_SECRET_KEY"`
		Bucket         string        `env:"S3_BUCKET,required"`
		Region         string        `env:"S3_REGION" envDefault:"us-east-1"`
		Prefix         string        `env:"S3_PREFIX" envDefault:"transformed"`
		UsePathStyle   bool          `env:"S3_USE_PATH_STYLE" envDefault:"true"`
		CfgLoadTimeout time.Duration `env:"S3_LOAD_CFG_TIMEOUT" envDefault:"10s"`
	}

	Kafka struct {
		Brokers     []string `env:"KAFKA_BROKERS,required"`
		GroupID     string   `env:"KAFKA_GROUP_ID,required"`
		Topic       string   `env:"KAFKA_TOPIC,required"`
		OutputTopic string   `env:"KAFKA_OUTPUT_TOPIC"` // empty: sink writes to S3 only
	}

	KafkaController struct {
		BatchSize       int           `env:"KAFKA_CONTROLLER_BATCH_SIZE" envDefault:"500"`
		BatchWait       time.Duration `env:"KAFKA_CONTROLLER_BATCH_WAIT" envDefault:"1s"`
		ProcessTimeout  time.Duration `env:"KAFKA_CONTROLLER_PROCESS_TIMEOUT" envDefault:"30s"` // трансформация батча
		SinkTimeout     time.Duration `env:"KAFKA_CONTROLLER_SINK_TIMEOUT" envDefault:"15s"`
		CommitTimeout   time.Duration `env:"KAFKA_CONTROLLER_COMMIT_TIMEOUT" envDefault:"2s"`
		ShutdownTimeout time.Duration `env:"KAFKA_CONTROLLER_SHUTDOWN_TIMEOUT" envDefault:"5s"`
		Workers         int           `env:"KAFKA_CONTROLLER_WORKERS" envDefault:"1"` // >1 may commit offsets out of order
		RetryMinBackoff time.Duration `env:"KAFKA_CONTROLLER_RETRY_MIN_BACKOFF" envDefault:"200ms"`
		RetryMaxBackoff time.Duration `env:"KAFKA_CONTROLLER_RETRY_MAX_BACKOFF" envDefault:"30s"`
	}

	Transform struct {
		Workers  int           `env:"TRANSFORM_WORKERS" envDefault:"16"`
		Deadline time.Duration `env:"TRANSFORM_DEADLINE" envDefault:"55s"` // POST /v1/transform
	}

	Redelivery struct {
		PollInterval        time.Duration `env:"REDELIVERY_POLL_INTERVAL" envDefault:"2s"`
		MarkFailedInterval  time.Duration `env:"REDELIVERY_MARK_FAILED_INTERVAL" envDefault:"2m"`
		CleanupInterval     time.Duration `env:"REDELIVERY_CLEANUP_INTERVAL" envDefault:"24h"`
		RetentionPeriod     time.Duration `env:"REDELIVERY_RETENTION_PERIOD" envDefault:"168h"`
		StaleAfter          time.Duration `env:"REDELIVERY_STALE_AFTER" envDefault:"1m"`
		ProcessBatchTimeout time.Duration `env:"REDELIVERY_PROCESS_BATCH_TIMEOUT" envDefault:"15s"`
		ShutdownTimeout     time.Duration `env:"REDELIVERY_SHUTDOWN_TIMEOUT" envDefault:"5s"`
		BatchSize           int           `env:"REDELIVERY_BATCH_SIZE" envDefault:"100"`
		MaxRetries          int           `env:"REDELIVERY_MAX_RETRIES" envDefault:"3"`
	}

	Swagger struct {
		Enabled bool `env:"SWAGGER_ENABLED" envDefault:"false"`
	}

	Metrics struct {
		Enabled bool `env:"METRICS_ENABLED" envDefault:"true"`
	}
)

func New() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config error: %w", err)
	}

	switch cfg.Store.Backend {
	case StoreBackendPostgres, StoreBackendRedis, StoreBackendMemory:
	default:
		return nil, fmt.Errorf("config error: unknown STORE_BACKEND %q", cfg.Store.Backend)
	}

	return cfg, nil
}
