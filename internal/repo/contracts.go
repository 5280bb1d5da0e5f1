package repo

import (
	"context"
	"time"

	"github.com/andreyxaxa/Event-Pseudonymizer/internal/entity"
	"github.com/google/uuid"
)

type (
	// PseudonymRepo is the persistent raw id -> pseudonym table. Get returns
	// errs.ErrRecordNotFound for an unknown id. Put keeps the first mapping
	// written for a raw id and is safe to repeat.
	PseudonymRepo interface {
		Get(ctx context.Context, rawID string) (string, error)
		Put(ctx context.Context, mapping entity.PseudonymMapping) error
	}

	RedeliveryRepo interface {
		CreateBatch(ctx context.Context, events []*entity.RedeliveryEvent) error
		GetPendingEvents(ctx context.Context, limit int, maxRetries int) ([]*entity.RedeliveryEvent, error)
		MarkAsProcessingBatch(ctx context.Context, IDs uuid.UUIDs) error
		MarkAsProcessedBatch(ctx context.Context, IDs uuid.UUIDs) error
		IncrementRetryCountBatch(ctx context.Context, IDs uuid.UUIDs) error
		MarkMaxRetriesAsFailed(ctx context.Context, maxRetries int) error
		ReleaseStaleProcessing(ctx context.Context, olderThan time.Duration) (int64, error)
		DeleteOldProcessedAndFailed(ctx context.Context, olderThan time.Duration) (int64, error)
	}

	ObjectRepo interface {
		UploadBytes(ctx context.Context, key string, data []byte, contentType string) error
	}

	Transactor interface {
		WithinTransaction(ctx context.Context, f func(ctx context.Context) error) error
	}
)
