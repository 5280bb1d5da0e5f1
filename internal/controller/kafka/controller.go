package kafka

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/andreyxaxa/Event-Pseudonymizer/internal/entity"
	"github.com/andreyxaxa/Event-Pseudonymizer/internal/infrastructure"
	kafkapc "github.com/andreyxaxa/Event-Pseudonymizer/internal/infrastructure/kafka"
	"github.com/andreyxaxa/Event-Pseudonymizer/internal/usecase"
	"github.com/andreyxaxa/Event-Pseudonymizer/internal/usecase/redelivery"
	"github.com/andreyxaxa/Event-Pseudonymizer/pkg/logger"
	"github.com/andreyxaxa/Event-Pseudonymizer/pkg/types/errs"
	"github.com/segmentio/kafka-go"
)

type Config struct {
	BatchSize      int
	BatchWait      time.Duration
	ProcessTimeout time.Duration
	SinkTimeout    time.Duration
	CommitTimeout  time.Duration
	Workers        int

	RetryMinBackoff time.Duration
	RetryMaxBackoff time.Duration
}

// KafkaController consumes raw events in batches, pseudonymizes them, hands
// the Ok records to the sink and the failed ones to the redelivery table,
// and only then commits the batch offsets.
type KafkaController struct {
	tr     usecase.TransformUseCase
	sink   usecase.SinkUseCase
	rd     usecase.RedeliveryUseCase
	er     infrastructure.EventsReader
	logger logger.Interface

	cfg Config

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	started atomic.Bool
}

func New(
	tr usecase.TransformUseCase,
	sink usecase.SinkUseCase,
	rd usecase.RedeliveryUseCase,
	er infrastructure.EventsReader,
	l logger.Interface,
	cfg Config,
) *KafkaController {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 1
	}
	if cfg.RetryMinBackoff <= 0 {
		cfg.RetryMinBackoff = 100 * time.Millisecond
	}
	if cfg.RetryMaxBackoff < cfg.RetryMinBackoff {
		cfg.RetryMaxBackoff = cfg.RetryMinBackoff
	}

	return &KafkaController{
		tr:     tr,
		sink:   sink,
		rd:     rd,
		er:     er,
		logger: l,
		cfg:    cfg,
	}
}

func (c *KafkaController) Start(ctx context.Context) error {
	if !c.started.CompareAndSwap(false, true) {
		return fmt.Errorf("KafkaController - Start: %w", errs.ErrAlreadyStarted)
	}

	c.ctx, c.cancel = context.WithCancel(ctx)

	// канал для батчей
	tasks := make(chan []kafka.Message, c.cfg.Workers*2)

	for i := 0; i < c.cfg.Workers; i++ {
		c.wg.Add(1)
		go c.worker(tasks)
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer close(tasks)

		for {
			select {
			case <-c.ctx.Done():
				return
			default:
				// 1. читаем батч из кафки
				batch, err := c.er.ReadBatch(c.ctx, c.cfg.BatchSize, c.cfg.BatchWait)
				if err != nil {
					if !errors.Is(err, context.Canceled) {
						c.logger.Error(err, "KafkaController - Start - c.er.ReadBatch")
					}
					continue
				}

				// 2. отправляем воркерам
				select {
				case tasks <- batch:
				case <-c.ctx.Done():
					return
				}
			}
		}
	}()

	return nil
}

func (c *KafkaController) worker(tasks <-chan []kafka.Message) {
	defer c.wg.Done()

	for batch := range tasks {
		func() {
			defer func() {
				if r := recover(); r != nil {
					c.logger.Error(fmt.Errorf("panic %v", r), "KafkaController - worker - panic")
				}
			}()

			err := c.processBatch(c.ctx, batch)
			if err != nil {
				c.logger.Error(err, "KafkaController - worker - c.processBatch")
			}
		}()
	}
}

// processBatch commits the batch only when every record has landed either in
// the sink or in the redelivery table. A failing step is retried until it
// succeeds or ctx is cancelled, so the worker never moves on to a later
// batch (and a later offset) while this one is unresolved.
func (c *KafkaController) processBatch(ctx context.Context, batch []kafka.Message) error {
	records := make([]entity.BatchRecord, len(batch))
	for i, msg := range batch {
		records[i] = entity.BatchRecord{RecordID: recordID(msg), Data: msg.Value}
	}

	// 1. трансформация под дедлайном
	processCtx, processCancel := context.WithTimeout(ctx, c.cfg.ProcessTimeout)
	transformed := c.tr.Transform(processCtx, records)
	processCancel()

	// 2. успешные в sink
	err := c.retry(ctx, "c.sink.Store", func() error {
		sinkCtx, sinkCancel := context.WithTimeout(ctx, c.cfg.SinkTimeout)
		defer sinkCancel()

		return c.sink.Store(sinkCtx, transformed)
	})
	if err != nil {
		return fmt.Errorf("KafkaController - processBatch - c.sink.Store: %w", err)
	}

	// 3. неудачные на повторную доставку
	var failed []*entity.RedeliveryEvent
	for i, r := range transformed {
		if r.IsOk() {
			continue
		}
		msg := batch[i]
		failed = append(failed, redelivery.NewEvent(r.RecordID, string(msg.Key), msg.Value, kafkapc.RedeliveryCount(msg)))
	}

	err = c.retry(ctx, "c.rd.Schedule", func() error {
		return c.rd.Schedule(ctx, failed)
	})
	if err != nil {
		return fmt.Errorf("KafkaController - processBatch - c.rd.Schedule: %w", err)
	}

	// 4. коммит
	err = c.retry(ctx, "c.er.CommitEvents", func() error {
		commitCtx, commitCancel := context.WithTimeout(ctx, c.cfg.CommitTimeout)
		defer commitCancel()

		return c.er.CommitEvents(commitCtx, batch...)
	})
	if err != nil {
		return fmt.Errorf("KafkaController - processBatch - c.er.CommitEvents: %w", err)
	}

	return nil
}

// retry runs f with exponential backoff until it succeeds. It gives up only
// when ctx is done; the uncommitted batch is then read again after restart.
func (c *KafkaController) retry(ctx context.Context, what string, f func() error) error {
	backoff := c.cfg.RetryMinBackoff

	for {
		err := f()
		if err == nil {
			return nil
		}
		c.logger.Warn("KafkaController - retry - %s failed, next attempt in %s: %v", what, backoff, err)

		select {
		case <-ctx.Done():
			return fmt.Errorf("%w (last error: %w)", ctx.Err(), err)
		case <-time.After(backoff):
		}

		backoff *= 2
		if backoff > c.cfg.RetryMaxBackoff {
			backoff = c.cfg.RetryMaxBackoff
		}
	}
}

// recordID keeps the id of the first delivery across redeliveries.
func recordID(msg kafka.Message) string {
	for _, h := range msg.Headers {
		if h.Key == kafkapc.RecordIDHeader {
			return string(h.Value)
		}
	}

	return fmt.Sprintf("%s-%d-%d", msg.Topic, msg.Partition, msg.Offset)
}

func (c *KafkaController) Shutdown(ctx context.Context) error {
	if !c.started.Load() {
		return nil
	}

	if c.cancel != nil {
		c.cancel()
	}

	done := make(chan struct{})

	go func() {
		c.wg.Wait()
		if err := c.er.Close(); err != nil {
			c.logger.Error(err, "KafkaController - Shutdown - c.er.Close")
		}
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("KafkaController - Shutdown: %w", ctx.Err())
	}
}
