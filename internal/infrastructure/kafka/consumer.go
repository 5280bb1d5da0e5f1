package kafka

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/andreyxaxa/Event-Pseudonymizer/pkg/kafka/consumer"
	"github.com/segmentio/kafka-go"
)

type EventConsumer struct {
	*consumer.Consumer
}

func NewEventConsumer(consumer *consumer.Consumer) *EventConsumer {
	return &EventConsumer{consumer}
}

// ReadBatch blocks until one message is available, then keeps fetching for
// at most maxWait or until maxSize messages are collected.
func (ec *EventConsumer) ReadBatch(ctx context.Context, maxSize int, maxWait time.Duration) ([]kafka.Message, error) {
	first, err := ec.Reader.FetchMessage(ctx)
	if err != nil {
		return nil, fmt.Errorf("EventConsumer - ReadBatch - ec.Reader.FetchMessage: %w", err)
	}

	batch := make([]kafka.Message, 0, maxSize)
	batch = append(batch, first)

	waitCtx, cancel := context.WithTimeout(ctx, maxWait)
	defer cancel()

	for len(batch) < maxSize {
		msg, err := ec.Reader.FetchMessage(waitCtx)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
				break
			}

			return nil, fmt.Errorf("EventConsumer - ReadBatch - ec.Reader.FetchMessage: %w", err)
		}
		batch = append(batch, msg)
	}

	return batch, nil
}

func (ec *EventConsumer) CommitEvents(ctx context.Context, events ...kafka.Message) error {
	if len(events) == 0 {
		return nil
	}

	err := ec.Reader.CommitMessages(ctx, events...)
	if err != nil {
		return fmt.Errorf("EventConsumer - CommitEvents - ec.Reader.CommitMessages: %w", err)
	}

	return nil
}

func (ec *EventConsumer) Close() error {
	err := ec.Consumer.Close()
	if err != nil {
		return fmt.Errorf("EventConsumer - Close: %w", err)
	}

	return nil
}
