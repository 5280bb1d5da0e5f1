package infrastructure

import (
	"context"
	"time"

	"github.com/andreyxaxa/Event-Pseudonymizer/internal/entity"
	"github.com/segmentio/kafka-go"
)

type (
	EventPublisher interface {
		Publish(ctx context.Context, messages ...entity.StreamMessage) error
		Close() error
	}

	EventsSender interface {
		SendEvents(ctx context.Context, events []*entity.RedeliveryEvent) error
		Close() error
	}

	EventsReader interface {
		ReadBatch(ctx context.Context, maxSize int, maxWait time.Duration) ([]kafka.Message, error)
		CommitEvents(ctx context.Context, events ...kafka.Message) error
		Close() error
	}
)
