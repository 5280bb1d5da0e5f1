package persistent

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/andreyxaxa/Event-Pseudonymizer/internal/entity"
	"github.com/andreyxaxa/Event-Pseudonymizer/pkg/postgres"
	"github.com/andreyxaxa/Event-Pseudonymizer/pkg/types/errs"
	"github.com/google/uuid"
)

const (
	// Table
	redeliveryTable = "events_redelivery"

	// Columns
	redeliveryIDColumn           = "id"
	redeliveryRecordIDColumn     = "record_id"
	redeliveryPartitionKeyColumn = "partition_key"
	redeliveryPayloadColumn      = "payload"
	redeliveryStatusColumn       = "status"
	redeliveryCreatedAtColumn    = "created_at"
	redeliveryProcessedAtColumn  = "processed_at"
	redeliveryRetryCountColumn   = "retry_count"
)

type RedeliveryRepo struct {
	*postgres.Postgres
}

func NewRedeliveryRepo(pg *postgres.Postgres) *RedeliveryRepo {
	return &RedeliveryRepo{pg}
}

func (r *RedeliveryRepo) CreateBatch(ctx context.Context, events []*entity.RedeliveryEvent) error {
	if len(events) == 0 {
		return nil
	}

	builder := r.Builder.
		Insert(redeliveryTable).
		Columns(
			redeliveryIDColumn,
			redeliveryRecordIDColumn,
			redeliveryPartitionKeyColumn,
			redeliveryPayloadColumn,
			redeliveryStatusColumn,
			redeliveryCreatedAtColumn,
			redeliveryRetryCountColumn,
		)

	for _, event := range events {
		builder = builder.Values(
			event.ID,
			event.RecordID,
			event.PartitionKey,
			event.Payload,
			event.Status,
			event.CreatedAt,
			event.RetryCount,
		)
	}

	sql, args, err := builder.ToSql()
	if err != nil {
		return fmt.Errorf("RedeliveryRepo - CreateBatch - r.Builder.ToSql: %w", err)
	}

	executor := r.GetExecutor(ctx)

	_, err = executor.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("RedeliveryRepo - CreateBatch - executor.Exec: %w", err)
	}

	return nil
}

func (r *RedeliveryRepo) GetPendingEvents(ctx context.Context, limit int, maxRetries int) ([]*entity.RedeliveryEvent, error) {
	sql, args, err := r.Builder.
		Select(
			redeliveryIDColumn,
			redeliveryRecordIDColumn,
			redeliveryPartitionKeyColumn,
			redeliveryPayloadColumn,
			redeliveryStatusColumn,
			redeliveryCreatedAtColumn,
			redeliveryProcessedAtColumn,
			redeliveryRetryCountColumn,
		).
		From(redeliveryTable).
		Where(squirrel.And{
			squirrel.Eq{redeliveryStatusColumn: entity.Pending},
			squirrel.Lt{redeliveryRetryCountColumn: maxRetries},
		}).
		OrderBy(redeliveryCreatedAtColumn + " ASC").
		Limit(uint64(limit)). //nolint:gosec // limit comes from config
		Suffix("FOR UPDATE SKIP LOCKED").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("RedeliveryRepo - GetPendingEvents - r.Builder.ToSql: %w", err)
	}

	executor := r.GetExecutor(ctx)

	rows, err := executor.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("RedeliveryRepo - GetPendingEvents - executor.Query: %w", err)
	}
	defer rows.Close()

	events := make([]*entity.RedeliveryEvent, 0, limit)
	for rows.Next() {
		var event entity.RedeliveryEvent
		err = rows.Scan(
			&event.ID,
			&event.RecordID,
			&event.PartitionKey,
			&event.Payload,
			&event.Status,
			&event.CreatedAt,
			&event.ProcessedAt,
			&event.RetryCount,
		)
		if err != nil {
			return nil, fmt.Errorf("RedeliveryRepo - GetPendingEvents - rows.Scan: %w", err)
		}
		events = append(events, &event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("RedeliveryRepo - GetPendingEvents - rows.Err: %w", err)
	}

	return events, nil
}

func (r *RedeliveryRepo) setStatusBatch(ctx context.Context, method string, IDs uuid.UUIDs, status entity.Status) error {
	sql, args, err := r.Builder.
		Update(redeliveryTable).
		Set(redeliveryStatusColumn, status).
		Set(redeliveryProcessedAtColumn, time.Now()).
		Where(squirrel.Eq{redeliveryIDColumn: IDs}).
		ToSql()
	if err != nil {
		return fmt.Errorf("RedeliveryRepo - %s - r.Builder.ToSql: %w", method, err)
	}

	executor := r.GetExecutor(ctx)

	tag, err := executor.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("RedeliveryRepo - %s - executor.Exec: %w", method, err)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("RedeliveryRepo - %s: %w", method, errs.ErrRecordNotFound)
	}

	return nil
}

func (r *RedeliveryRepo) MarkAsProcessingBatch(ctx context.Context, IDs uuid.UUIDs) error {
	return r.setStatusBatch(ctx, "MarkAsProcessingBatch", IDs, entity.Processing)
}

func (r *RedeliveryRepo) MarkAsProcessedBatch(ctx context.Context, IDs uuid.UUIDs) error {
	return r.setStatusBatch(ctx, "MarkAsProcessedBatch", IDs, entity.Processed)
}

func (r *RedeliveryRepo) MarkMaxRetriesAsFailed(ctx context.Context, maxRetries int) error {
	sql, args, err := r.Builder.
		Update(redeliveryTable).
		Set(redeliveryStatusColumn, entity.Failed).
		Set(redeliveryProcessedAtColumn, time.Now()).
		Where(squirrel.And{
			squirrel.Eq{redeliveryStatusColumn: string(entity.Pending)},
			squirrel.GtOrEq{redeliveryRetryCountColumn: maxRetries},
		}).
		ToSql()
	if err != nil {
		return fmt.Errorf("RedeliveryRepo - MarkMaxRetriesAsFailed - r.Builder.ToSql: %w", err)
	}

	executor := r.GetExecutor(ctx)

	_, err = executor.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("RedeliveryRepo - MarkMaxRetriesAsFailed - executor.Exec: %w", err)
	}

	return nil
}

func (r *RedeliveryRepo) IncrementRetryCountBatch(ctx context.Context, IDs uuid.UUIDs) error {
	sql, args, err := r.Builder.
		Update(redeliveryTable).
		Set(redeliveryRetryCountColumn, squirrel.Expr(redeliveryRetryCountColumn+" + 1")).
		Set(redeliveryStatusColumn, entity.Pending).
		Where(squirrel.Eq{redeliveryIDColumn: IDs}).
		ToSql()
	if err != nil {
		return fmt.Errorf("RedeliveryRepo - IncrementRetryCountBatch - r.Builder.ToSql: %w", err)
	}

	executor := r.GetExecutor(ctx)

	tag, err := executor.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("RedeliveryRepo - IncrementRetryCountBatch - executor.Exec: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("RedeliveryRepo - IncrementRetryCountBatch: %w", errs.ErrRecordNotFound)
	}

	return nil
}

// ReleaseStaleProcessing returns rows claimed longer than olderThan ago to
// pending, counting the lost attempt. processed_at holds the claim time
// while a row is processing.
func (r *RedeliveryRepo) ReleaseStaleProcessing(ctx context.Context, olderThan time.Duration) (int64, error) {
	sql, args, err := r.Builder.
		Update(redeliveryTable).
		Set(redeliveryStatusColumn, entity.Pending).
		Set(redeliveryRetryCountColumn, squirrel.Expr(redeliveryRetryCountColumn+" + 1")).
		Where(squirrel.And{
			squirrel.Eq{redeliveryStatusColumn: entity.Processing},
			squirrel.Lt{redeliveryProcessedAtColumn: time.Now().Add(-olderThan)},
		}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("RedeliveryRepo - ReleaseStaleProcessing - r.Builder.ToSql: %w", err)
	}

	executor := r.GetExecutor(ctx)

	tag, err := executor.Exec(ctx, sql, args...)
	if err != nil {
		return 0, fmt.Errorf("RedeliveryRepo - ReleaseStaleProcessing - executor.Exec: %w", err)
	}

	return tag.RowsAffected(), nil
}

func (r *RedeliveryRepo) DeleteOldProcessedAndFailed(ctx context.Context, olderThan time.Duration) (int64, error) {
	sql, args, err := r.Builder.
		Delete(redeliveryTable).
		Where(squirrel.And{
			squirrel.Eq{redeliveryStatusColumn: entity.TerminalStatuses()},
			squirrel.Lt{redeliveryProcessedAtColumn: time.Now().Add(-olderThan)},
		}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("RedeliveryRepo - DeleteOldProcessedAndFailed - r.Builder.ToSql: %w", err)
	}

	executor := r.GetExecutor(ctx)
	tag, err := executor.Exec(ctx, sql, args...)
	if err != nil {
		return 0, fmt.Errorf("RedeliveryRepo - DeleteOldProcessedAndFailed - executor.Exec: %w", err)
	}

	return tag.RowsAffected(), nil
}
