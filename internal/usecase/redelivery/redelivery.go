package redelivery

import (
	"context"
	"fmt"
	"time"

	"github.com/andreyxaxa/Event-Pseudonymizer/internal/entity"
	"github.com/andreyxaxa/Event-Pseudonymizer/internal/metrics"
	"github.com/andreyxaxa/Event-Pseudonymizer/internal/repo"
	"github.com/andreyxaxa/Event-Pseudonymizer/pkg/logger"
)

type RedeliveryUseCase struct {
	redeliveryRepo repo.RedeliveryRepo
	transactor     repo.Transactor

	logger logger.Interface
}

func New(r repo.RedeliveryRepo, transactor repo.Transactor, l logger.Interface) *RedeliveryUseCase {
	return &RedeliveryUseCase{
		redeliveryRepo: r,
		transactor:     transactor,
		logger:         l,
	}
}

func (uc *RedeliveryUseCase) Schedule(ctx context.Context, events []*entity.RedeliveryEvent) error {
	if len(events) == 0 {
		return nil
	}

	err := uc.redeliveryRepo.CreateBatch(ctx, events)
	if err != nil {
		return fmt.Errorf("RedeliveryUseCase - Schedule - uc.redeliveryRepo.CreateBatch: %w", err)
	}

	metrics.RedeliveryEvents.WithLabelValues("scheduled").Add(float64(len(events)))

	return nil
}

// ClaimPendingEvents selects pending events and marks them processing in one
// transaction, so concurrent relays never claim the same row.
func (uc *RedeliveryUseCase) ClaimPendingEvents(ctx context.Context, maxRetries, limit int) ([]*entity.RedeliveryEvent, error) {
	var events []*entity.RedeliveryEvent

	err := uc.transactor.WithinTransaction(ctx, func(ctx context.Context) error {
		var err error

		events, err = uc.redeliveryRepo.GetPendingEvents(ctx, limit, maxRetries)
		if err != nil {
			return fmt.Errorf("RedeliveryUseCase - ClaimPendingEvents - uc.redeliveryRepo.GetPendingEvents: %w", err)
		}

		if len(events) == 0 {
			return nil
		}

		err = uc.redeliveryRepo.MarkAsProcessingBatch(ctx, eventIDs(events))
		if err != nil {
			return fmt.Errorf("RedeliveryUseCase - ClaimPendingEvents - uc.redeliveryRepo.MarkAsProcessingBatch: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return events, nil
}

func (uc *RedeliveryUseCase) MarkAsProcessedBatch(ctx context.Context, events []*entity.RedeliveryEvent) error {
	err := uc.redeliveryRepo.MarkAsProcessedBatch(ctx, eventIDs(events))
	if err != nil {
		return fmt.Errorf("RedeliveryUseCase - MarkAsProcessedBatch - uc.redeliveryRepo.MarkAsProcessedBatch: %w", err)
	}

	metrics.RedeliveryEvents.WithLabelValues("sent").Add(float64(len(events)))

	return nil
}

func (uc *RedeliveryUseCase) IncrementRetryCountBatch(ctx context.Context, events []*entity.RedeliveryEvent) error {
	err := uc.redeliveryRepo.IncrementRetryCountBatch(ctx, eventIDs(events))
	if err != nil {
		return fmt.Errorf("RedeliveryUseCase - IncrementRetryCountBatch - uc.redeliveryRepo.IncrementRetryCountBatch: %w", err)
	}

	metrics.RedeliveryEvents.WithLabelValues("send_error").Add(float64(len(events)))

	return nil
}

func (uc *RedeliveryUseCase) MarkMaxRetriesAsFailed(ctx context.Context, maxRetries int) error {
	err := uc.redeliveryRepo.MarkMaxRetriesAsFailed(ctx, maxRetries)
	if err != nil {
		return fmt.Errorf("RedeliveryUseCase - MarkMaxRetriesAsFailed - uc.redeliveryRepo.MarkMaxRetriesAsFailed: %w", err)
	}

	return nil
}

func (uc *RedeliveryUseCase) ReleaseStale(ctx context.Context, olderThan time.Duration) error {
	count, err := uc.redeliveryRepo.ReleaseStaleProcessing(ctx, olderThan)
	if err != nil {
		return fmt.Errorf("RedeliveryUseCase - ReleaseStale - uc.redeliveryRepo.ReleaseStaleProcessing: %w", err)
	}

	if count > 0 {
		metrics.RedeliveryEvents.WithLabelValues("released").Add(float64(count))
		uc.logger.Warn("released stale processing redelivery events, count = %d", count)
	}

	return nil
}

func (uc *RedeliveryUseCase) Cleanup(ctx context.Context, olderThan time.Duration) error {
	count, err := uc.redeliveryRepo.DeleteOldProcessedAndFailed(ctx, olderThan)
	if err != nil {
		return fmt.Errorf("RedeliveryUseCase - Cleanup - uc.redeliveryRepo.DeleteOldProcessedAndFailed: %w", err)
	}

	if count > 0 {
		uc.logger.Info("deleted old redelivery events, count = %d", count)
	}

	return nil
}
