package ingest

import (
	"context"
	"fmt"

	"github.com/andreyxaxa/Event-Pseudonymizer/internal/entity"
	"github.com/andreyxaxa/Event-Pseudonymizer/internal/infrastructure"
	"github.com/andreyxaxa/Event-Pseudonymizer/internal/metrics"
	"github.com/andreyxaxa/Event-Pseudonymizer/internal/usecase/record"
	"github.com/andreyxaxa/Event-Pseudonymizer/pkg/types/errs"
)

type IngestUseCase struct {
	publisher infrastructure.EventPublisher
}

func New(p infrastructure.EventPublisher) *IngestUseCase {
	return &IngestUseCase{publisher: p}
}

// Forward publishes one raw event keyed by its user_id. There is no retry:
// a publish failure is returned wrapped in errs.ErrPublish.
func (uc *IngestUseCase) Forward(ctx context.Context, body []byte) error {
	event, err := record.Decode(body)
	if err != nil {
		return fmt.Errorf("IngestUseCase - Forward - record.Decode: %w", err)
	}

	userID, _ := event.UserID()

	payload, err := record.Encode(event)
	if err != nil {
		return fmt.Errorf("IngestUseCase - Forward - record.Encode: %w", err)
	}

	err = uc.publisher.Publish(ctx, entity.StreamMessage{Key: userID, Value: payload})
	if err != nil {
		metrics.PublishedEvents.WithLabelValues("error").Inc()

		return fmt.Errorf("IngestUseCase - Forward - uc.publisher.Publish: %w: %w", errs.ErrPublish, err)
	}

	metrics.PublishedEvents.WithLabelValues("ok").Inc()

	return nil
}
