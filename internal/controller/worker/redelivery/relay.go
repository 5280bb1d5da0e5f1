package redelivery

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/andreyxaxa/Event-Pseudonymizer/internal/infrastructure"
	"github.com/andreyxaxa/Event-Pseudonymizer/internal/usecase"
	"github.com/andreyxaxa/Event-Pseudonymizer/pkg/logger"
	"github.com/andreyxaxa/Event-Pseudonymizer/pkg/types/errs"
)

type Config struct {
	PollInterval        time.Duration
	CleanupInterval     time.Duration
	MarkFailedInterval  time.Duration
	ProcessBatchTimeout time.Duration
	RetentionPeriod     time.Duration
	StaleAfter          time.Duration // claimed rows older than this go back to pending
	BatchSize           int
	MaxRetries          int
}

// Relay puts records that failed transformation back on the input stream.
type Relay struct {
	rd     usecase.RedeliveryUseCase
	es     infrastructure.EventsSender
	logger logger.Interface

	cfg Config

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	started atomic.Bool
}

func New(rd usecase.RedeliveryUseCase, es infrastructure.EventsSender, l logger.Interface, cfg Config) *Relay {
	if cfg.StaleAfter <= cfg.ProcessBatchTimeout {
		cfg.StaleAfter = 2 * cfg.ProcessBatchTimeout
	}

	return &Relay{
		rd:     rd,
		es:     es,
		logger: l,
		cfg:    cfg,
	}
}

func (r *Relay) Start(ctx context.Context) error {
	if !r.started.CompareAndSwap(false, true) {
		return fmt.Errorf("Relay - Start: %w", errs.ErrAlreadyStarted)
	}

	r.ctx, r.cancel = context.WithCancel(ctx)

	// 1. отправка pending событий обратно в топик
	r.worker(r.cfg.PollInterval, func() {
		batchCtx, batchCancel := context.WithTimeout(r.ctx, r.cfg.ProcessBatchTimeout)
		r.processEventsBatch(batchCtx)
		batchCancel()
	})

	// 2. возврат зависших processing в pending, пометка failed
	r.worker(r.cfg.MarkFailedInterval, func() {
		err := r.rd.ReleaseStale(r.ctx, r.cfg.StaleAfter)
		if err != nil {
			r.logger.Error(err, "Relay - Start - worker - r.rd.ReleaseStale")
		}

		err = r.rd.MarkMaxRetriesAsFailed(r.ctx, r.cfg.MaxRetries)
		if err != nil {
			r.logger.Error(err, "Relay - Start - worker - r.rd.MarkMaxRetriesAsFailed")
		}
	})

	// 3. очистка processed/failed
	r.worker(r.cfg.CleanupInterval, func() {
		err := r.rd.Cleanup(r.ctx, r.cfg.RetentionPeriod)
		if err != nil {
			r.logger.Error(err, "Relay - Start - worker - r.rd.Cleanup")
		}
	})

	return nil
}

func (r *Relay) processEventsBatch(ctx context.Context) {
	// 1. забираем pending с retry_count < max retries, помечаем processing
	events, err := r.rd.ClaimPendingEvents(ctx, r.cfg.MaxRetries, r.cfg.BatchSize)
	if err != nil {
		r.logger.Error(err, "Relay - processEventsBatch - r.rd.ClaimPendingEvents")

		return
	}
	if len(events) == 0 {
		return
	}

	// 2. отправляем
	err = r.es.SendEvents(ctx, events)

	// ctx may have expired during the send; status updates get their own
	// deadline so claimed rows never stay processing
	statusCtx, statusCancel := context.WithTimeout(context.WithoutCancel(ctx), r.cfg.ProcessBatchTimeout)
	defer statusCancel()

	if err != nil {
		r.logger.Error(err, "Relay - processEventsBatch - r.es.SendEvents")
		// 2.1 не получилось: retry_count + 1, статус обратно в pending
		incErr := r.rd.IncrementRetryCountBatch(statusCtx, events)
		if incErr != nil {
			r.logger.Error(incErr, "Relay - processEventsBatch - r.rd.IncrementRetryCountBatch")
		}

		return
	}

	// 3. отправлено
	err = r.rd.MarkAsProcessedBatch(statusCtx, events)
	if err != nil {
		r.logger.Error(err, "Relay - processEventsBatch - r.rd.MarkAsProcessedBatch")
	}
}

func (r *Relay) worker(interval time.Duration, task func()) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-r.ctx.Done():
				return
			case <-ticker.C:
				task()
			}
		}
	}()
}

func (r *Relay) Shutdown(ctx context.Context) error {
	if !r.started.Load() {
		return nil
	}

	if r.cancel != nil {
		r.cancel()
	}

	done := make(chan struct{})

	go func() {
		r.wg.Wait()
		if err := r.es.Close(); err != nil {
			r.logger.Error(err, "Relay - Shutdown - r.es.Close")
		}
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("Relay - Shutdown: %w", ctx.Err())
	}
}
