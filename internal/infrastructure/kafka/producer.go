package kafka

import (
	"context"
	"fmt"
	"strconv"

	"github.com/andreyxaxa/Event-Pseudonymizer/internal/entity"
	"github.com/andreyxaxa/Event-Pseudonymizer/pkg/kafka/producer"
	"github.com/segmentio/kafka-go"
)

// EventProducer writes to one topic. It serves both as the ingestion
// publisher and as the redelivery sender.
type EventProducer struct {
	*producer.Producer
	topic string
}

func NewEventProducer(producer *producer.Producer, topic string) *EventProducer {
	return &EventProducer{
		producer,
		topic,
	}
}

func (ep *EventProducer) Publish(ctx context.Context, messages ...entity.StreamMessage) error {
	if len(messages) == 0 {
		return nil
	}

	msgsToSend := make([]kafka.Message, 0, len(messages))
	for _, m := range messages {
		msg := kafka.Message{
			Topic: ep.topic,
			Key:   []byte(m.Key),
			Value: m.Value,
		}
		for k, v := range m.Headers {
			msg.Headers = append(msg.Headers, kafka.Header{Key: k, Value: []byte(v)})
		}
		msgsToSend = append(msgsToSend, msg)
	}

	err := ep.Writer.WriteMessages(ctx, msgsToSend...)
	if err != nil {
		return fmt.Errorf("EventProducer - Publish - ep.Writer.WriteMessages: %w", err)
	}

	return nil
}

// SendEvents puts failed records back on the stream, counting the attempt in
// a header so the consumer can bound redeliveries.
func (ep *EventProducer) SendEvents(ctx context.Context, events []*entity.RedeliveryEvent) error {
	var msgsToSend []kafka.Message

	for _, event := range events {
		msg := kafka.Message{
			Topic: ep.topic,
			Key:   []byte(event.PartitionKey),
			Value: event.Payload,
			Headers: []kafka.Header{
				{Key: "event_id", Value: []byte(event.ID.String())},
				{Key: RecordIDHeader, Value: []byte(event.RecordID)},
				{Key: RedeliveryCountHeader, Value: []byte(strconv.Itoa(event.RetryCount + 1))},
			},
		}
		msgsToSend = append(msgsToSend, msg)
	}

	if len(msgsToSend) == 0 {
		return nil
	}

	err := ep.Writer.WriteMessages(ctx, msgsToSend...)
	if err != nil {
		return fmt.Errorf("EventProducer - SendEvents - ep.Writer.WriteMessages: %w", err)
	}

	return nil
}

func (ep *EventProducer) Close() error {
	err := ep.Producer.Close()
	if err != nil {
		return fmt.Errorf("EventProducer - Close: %w", err)
	}

	return nil
}
