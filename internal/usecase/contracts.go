package usecase

import (
	"context"
	"time"

	"github.com/andreyxaxa/Event-Pseudonymizer/internal/entity"
)

type (
	PseudonymUseCase interface {
		Resolve(ctx context.Context, rawID string) (string, error)
	}

	// TransformUseCase never fails as a whole: every input record gets
	// exactly one output record at the same position.
	TransformUseCase interface {
		Transform(ctx context.Context, records []entity.BatchRecord) []entity.TransformedRecord
	}

	IngestUseCase interface {
		Forward(ctx context.Context, body []byte) error
	}

	SinkUseCase interface {
		Store(ctx context.Context, records []entity.TransformedRecord) error
	}

	RedeliveryUseCase interface {
		Schedule(ctx context.Context, events []*entity.RedeliveryEvent) error
		ClaimPendingEvents(ctx context.Context, maxRetries, limit int) ([]*entity.RedeliveryEvent, error)
		MarkAsProcessedBatch(ctx context.Context, events []*entity.RedeliveryEvent) error
		IncrementRetryCountBatch(ctx context.Context, events []*entity.RedeliveryEvent) error
		MarkMaxRetriesAsFailed(ctx context.Context, maxRetries int) error
		ReleaseStale(ctx context.Context, olderThan time.Duration) error
		Cleanup(ctx context.Context, olderThan time.Duration) error
	}
)
