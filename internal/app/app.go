package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/andreyxaxa/Event-Pseudonymizer/config"
	kafkactrl "github.com/andreyxaxa/Event-Pseudonymizer/internal/controller/kafka"
	"github.com/andreyxaxa/Event-Pseudonymizer/internal/controller/restapi"
	redeliveryworker "github.com/andreyxaxa/Event-Pseudonymizer/internal/controller/worker/redelivery"
	"github.com/andreyxaxa/Event-Pseudonymizer/internal/infrastructure"
	infrakafka "github.com/andreyxaxa/Event-Pseudonymizer/internal/infrastructure/kafka"
	"github.com/andreyxaxa/Event-Pseudonymizer/internal/metrics"
	"github.com/andreyxaxa/Event-Pseudonymizer/internal/repo"
	"github.com/andreyxaxa/Event-Pseudonymizer/internal/repo/persistent"
	"github.com/andreyxaxa/Event-Pseudonymizer/internal/usecase/ingest"
	"github.com/andreyxaxa/Event-Pseudonymizer/internal/usecase/pseudonym"
	"github.com/andreyxaxa/Event-Pseudonymizer/internal/usecase/redelivery"
	"github.com/andreyxaxa/Event-Pseudonymizer/internal/usecase/sink"
	"github.com/andreyxaxa/Event-Pseudonymizer/internal/usecase/transform"
	"github.com/andreyxaxa/Event-Pseudonymizer/pkg/httpserver"
	"github.com/andreyxaxa/Event-Pseudonymizer/pkg/kafka/consumer"
	"github.com/andreyxaxa/Event-Pseudonymizer/pkg/kafka/producer"
	"github.com/andreyxaxa/Event-Pseudonymizer/pkg/logger"
	"github.com/andreyxaxa/Event-Pseudonymizer/pkg/postgres"
	"github.com/andreyxaxa/Event-Pseudonymizer/pkg/redisclient"
	"github.com/andreyxaxa/Event-Pseudonymizer/pkg/s3client"
	gobreaker "github.com/sony/gobreaker/v2"
)

func Run(cfg *config.Config) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Logger
	l := logger.New(cfg.Log.Level)

	// Repository

	// s3
	s3Ctx, s3Cancel := context.WithTimeout(ctx, cfg.S3.CfgLoadTimeout)
	defer s3Cancel()
	s3c, err := s3client.New(s3Ctx, cfg.S3.Endpoint, cfg.S3.AccessKey, cfg.S3.SecretKey, cfg.S3.Bucket,
		s3client.Region(cfg.S3.Region),
		s3client.UsePathStyle(cfg.S3.UsePathStyle),
	)
	if err != nil {
		l.Fatal(fmt.Errorf("app - Run - s3client.New: %w", err))
	}

	// postgres: redelivery table, and pseudonym table for the default backend
	pg, err := postgres.New(cfg.PG.URL, postgres.MaxPoolSize(cfg.PG.PoolMax))
	if err != nil {
		l.Fatal(fmt.Errorf("app - Run - postgres.New: %w", err))
	}
	defer pg.Close()

	// pseudonym store
	store, closeStore := newPseudonymStore(ctx, cfg, pg, l)
	defer closeStore()

	// Kafka Producers
	kafkaProducer, err := producer.New(ctx, cfg.Kafka.Brokers)
	if err != nil {
		l.Fatal(fmt.Errorf("app - Run - producer.New: %w", err))
	}
	eventProducer := infrakafka.NewEventProducer(kafkaProducer, cfg.Kafka.Topic)

	var outputPublisher infrastructure.EventPublisher
	if cfg.Kafka.OutputTopic != "" {
		outputProducer, err := producer.New(ctx, cfg.Kafka.Brokers)
		if err != nil {
			l.Fatal(fmt.Errorf("app - Run - producer.New: %w", err))
		}
		outputPublisher = infrakafka.NewEventProducer(outputProducer, cfg.Kafka.OutputTopic)
		defer func() {
			if err := outputPublisher.Close(); err != nil {
				l.Error(err, "app - Run - outputPublisher.Close")
			}
		}()
	}

	// Use-Case
	pseudonymUseCase := pseudonym.New(store, l)
	transformUseCase := transform.New(pseudonymUseCase, l, cfg.Transform.Workers)
	ingestUseCase := ingest.New(eventProducer)
	sinkUseCase := sink.New(persistent.NewObjectRepo(s3c, cfg.S3.Bucket), outputPublisher, cfg.S3.Prefix)
	redeliveryUseCase := redelivery.New(persistent.NewRedeliveryRepo(pg), pg, l)

	// Redelivery Relay Worker
	redeliveryRelay := redeliveryworker.New(
		redeliveryUseCase,
		eventProducer,
		l,
		redeliveryworker.Config{
			PollInterval:        cfg.Redelivery.PollInterval,
			CleanupInterval:     cfg.Redelivery.CleanupInterval,
			MarkFailedInterval:  cfg.Redelivery.MarkFailedInterval,
			ProcessBatchTimeout: cfg.Redelivery.ProcessBatchTimeout,
			RetentionPeriod:     cfg.Redelivery.RetentionPeriod,
			StaleAfter:          cfg.Redelivery.StaleAfter,
			BatchSize:           cfg.Redelivery.BatchSize,
			MaxRetries:          cfg.Redelivery.MaxRetries,
		},
	)

	// Kafka Consumer
	kafkaConsumer, err := consumer.New(ctx, cfg.Kafka.Brokers, cfg.Kafka.GroupID, cfg.Kafka.Topic)
	if err != nil {
		l.Fatal(fmt.Errorf("app - Run - consumer.New: %w", err))
	}

	// Kafka as Controller
	kafkaController := kafkactrl.New(
		transformUseCase,
		sinkUseCase,
		redeliveryUseCase,
		infrakafka.NewEventConsumer(kafkaConsumer),
		l,
		kafkactrl.Config{
			BatchSize:      cfg.KafkaController.BatchSize,
			BatchWait:      cfg.KafkaController.BatchWait,
			ProcessTimeout: cfg.KafkaController.ProcessTimeout,
			SinkTimeout:    cfg.KafkaController.SinkTimeout,
			CommitTimeout:  cfg.KafkaController.CommitTimeout,
			Workers:        cfg.KafkaController.Workers,

			RetryMinBackoff: cfg.KafkaController.RetryMinBackoff,
			RetryMaxBackoff: cfg.KafkaController.RetryMaxBackoff,
		},
	)

	// HTTP Server
	httpServer := httpserver.New(l,
		httpserver.Port(cfg.HTTP.Port),
		httpserver.Prefork(cfg.HTTP.UsePreforkMode),
		httpserver.ReadTimeout(cfg.HTTP.ReadTimeout),
		httpserver.WriteTimeout(cfg.HTTP.WriteTimeout),
		httpserver.ShutdownTimeout(cfg.HTTP.ShutdownTimeout),
		httpserver.BodyLimit(cfg.HTTP.BodyLimit),
	)
	restapi.NewRouter(httpServer.App, cfg, ingestUseCase, transformUseCase, l)

	// Start Components
	err = redeliveryRelay.Start(ctx)
	if err != nil {
		l.Fatal(fmt.Errorf("app - Run - redeliveryRelay.Start: %w", err))
	}
	err = kafkaController.Start(ctx)
	if err != nil {
		l.Fatal(fmt.Errorf("app - Run - kafkaController.Start: %w", err))
	}
	httpServer.Start()

	l.Info("app - Run - started, store backend: %s", cfg.Store.Backend)

	// Waiting Signal
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)

	select {
	case s := <-interrupt:
		l.Info("app - Run - signal: %s", s.String())
	case err = <-httpServer.Notify():
		l.Error(fmt.Errorf("app - Run - httpServer.Notify: %w", err))
	}

	// Shutdown
	err = httpServer.Shutdown()
	if err != nil {
		l.Error(fmt.Errorf("app - Run - httpServer.Shutdown: %w", err))
	}

	kcShutdownCtx, kcShutdownCancel := context.WithTimeout(ctx, cfg.KafkaController.ShutdownTimeout)
	defer kcShutdownCancel()
	err = kafkaController.Shutdown(kcShutdownCtx)
	if err != nil {
		l.Error(fmt.Errorf("app - Run - kafkaController.Shutdown: %w", err))
	}

	// relay owns the input topic producer and closes it last
	rrShutdownCtx, rrShutdownCancel := context.WithTimeout(ctx, cfg.Redelivery.ShutdownTimeout)
	defer rrShutdownCancel()
	err = redeliveryRelay.Shutdown(rrShutdownCtx)
	if err != nil {
		l.Error(fmt.Errorf("app - Run - redeliveryRelay.Shutdown: %w", err))
	}
}

// newPseudonymStore builds the configured backend behind a circuit breaker.
func newPseudonymStore(ctx context.Context, cfg *config.Config, pg *postgres.Postgres, l logger.Interface) (repo.PseudonymRepo, func()) {
	var (
		backend repo.PseudonymRepo
		closeFn = func() {}
	)

	switch cfg.Store.Backend {
	case config.StoreBackendRedis:
		rc, err := redisclient.New(ctx, cfg.Redis.Addr,
			redisclient.Password(cfg.Redis.Password),
			redisclient.DB(cfg.Redis.DB),
			redisclient.PoolSize(cfg.Redis.PoolSize),
		)
		if err != nil {
			l.Fatal(fmt.Errorf("app - newPseudonymStore - redisclient.New: %w", err))
		}
		backend = persistent.NewPseudonymRedisRepo(rc, cfg.Store.RedisPrefix)
		closeFn = func() {
			if err := rc.Close(); err != nil {
				l.Error(err, "app - newPseudonymStore - rc.Close")
			}
		}
	case config.StoreBackendMemory:
		l.Warn("app - newPseudonymStore - in-memory pseudonym store, mappings are lost on restart")
		backend = persistent.NewPseudonymMemoryRepo()
	default:
		backend = persistent.NewPseudonymRepo(pg)
	}

	store := persistent.NewBreakerPseudonymRepo(backend, persistent.BreakerConfig{
		Name:             "pseudonym-store-" + cfg.Store.Backend,
		MaxRequests:      cfg.Store.BreakerMaxRequests,
		Interval:         cfg.Store.BreakerInterval,
		Timeout:          cfg.Store.BreakerTimeout,
		FailureThreshold: cfg.Store.BreakerFailureThreshold,
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.StoreBreakerState.Set(float64(to))
			l.Warn("app - pseudonym store breaker %s: %s -> %s", name, from.String(), to.String())
		},
	})

	return store, closeFn
}
