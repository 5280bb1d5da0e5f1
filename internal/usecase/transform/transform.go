package transform

import (
	"context"
	"fmt"
	"time"

	"github.com/andreyxaxa/Event-Pseudonymizer/internal/entity"
	"github.com/andreyxaxa/Event-Pseudonymizer/internal/metrics"
	"github.com/andreyxaxa/Event-Pseudonymizer/internal/usecase"
	"github.com/andreyxaxa/Event-Pseudonymizer/internal/usecase/record"
	"github.com/andreyxaxa/Event-Pseudonymizer/pkg/logger"
	"golang.org/x/sync/errgroup"
)

type TransformUseCase struct {
	pseudonyms usecase.PseudonymUseCase
	logger     logger.Interface
	workers    int
}

func New(p usecase.PseudonymUseCase, l logger.Interface, workers int) *TransformUseCase {
	return &TransformUseCase{
		pseudonyms: p,
		logger:     l,
		workers:    workers,
	}
}

type result struct {
	idx int
	rec entity.TransformedRecord
}

// Transform replaces user_id in every record with its pseudonym. Records are
// processed concurrently by at most uc.workers goroutines and re-sequenced by
// input position. When ctx expires, records that have not finished are
// returned as ProcessingFailed without waiting for them.
func (uc *TransformUseCase) Transform(ctx context.Context, records []entity.BatchRecord) []entity.TransformedRecord {
	out := make([]entity.TransformedRecord, len(records))
	if len(records) == 0 {
		return out
	}

	start := time.Now()
	defer func() {
		metrics.BatchDuration.Observe(time.Since(start).Seconds())
	}()

	// buffered for every record, so late workers never block after we return
	results := make(chan result, len(records))

	limit := uc.workers
	if limit <= 0 || limit > len(records) {
		limit = len(records)
	}

	go func() {
		var g errgroup.Group
		g.SetLimit(limit)

		for i, rec := range records {
			i, rec := i, rec
			if ctx.Err() != nil {
				break
			}

			g.Go(func() error {
				results <- result{idx: i, rec: uc.transformOne(ctx, rec)}

				return nil
			})
		}

		_ = g.Wait()
	}()

	done := make([]bool, len(records))
	for received := 0; received < len(records); {
		select {
		case r := <-results:
			out[r.idx] = r.rec
			done[r.idx] = true
			received++
		case <-ctx.Done():
			uc.drain(results, out, done)
			missing := uc.failUnfinished(records, out, done)

			metrics.TransformDeadlineExceeded.Inc()
			uc.logger.Warn("TransformUseCase - Transform - deadline reached, %d of %d records unfinished", missing, len(records))

			uc.count(out)

			return out
		}
	}

	uc.count(out)

	return out
}

// drain collects results that are already waiting in the channel.
func (uc *TransformUseCase) drain(results <-chan result, out []entity.TransformedRecord, done []bool) {
	for {
		select {
		case r := <-results:
			out[r.idx] = r.rec
			done[r.idx] = true
		default:
			return
		}
	}
}

func (uc *TransformUseCase) failUnfinished(records []entity.BatchRecord, out []entity.TransformedRecord, done []bool) int {
	missing := 0
	for i := range records {
		if !done[i] {
			out[i] = entity.FailedRecord(records[i].RecordID)
			missing++
		}
	}

	return missing
}

func (uc *TransformUseCase) count(out []entity.TransformedRecord) {
	for _, r := range out {
		metrics.TransformedRecords.WithLabelValues(string(r.Result)).Inc()
	}
}

func (uc *TransformUseCase) transformOne(ctx context.Context, rec entity.BatchRecord) (out entity.TransformedRecord) {
	defer func() {
		if r := recover(); r != nil {
			uc.logger.Error(fmt.Errorf("panic %v", r), "TransformUseCase - transformOne - panic, record %s", rec.RecordID)
			out = entity.FailedRecord(rec.RecordID)
		}
	}()

	// 1. decode
	event, err := record.Decode(rec.Data)
	if err != nil {
		uc.logger.Warn("TransformUseCase - transformOne - record %s: %v", rec.RecordID, err)

		return entity.FailedRecord(rec.RecordID)
	}

	rawID, _ := event.UserID()

	// 2. resolve
	pseudonym, err := uc.pseudonyms.Resolve(ctx, rawID)
	if err != nil {
		uc.logger.Error(err, "TransformUseCase - transformOne - uc.pseudonyms.Resolve, record %s", rec.RecordID)

		return entity.FailedRecord(rec.RecordID)
	}

	// 3. replace and re-encode
	data, err := record.Encode(event.WithUserID(pseudonym))
	if err != nil {
		uc.logger.Error(err, "TransformUseCase - transformOne - record.Encode, record %s", rec.RecordID)

		return entity.FailedRecord(rec.RecordID)
	}

	return entity.OkRecord(rec.RecordID, data)
}
