package sink

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/andreyxaxa/Event-Pseudonymizer/internal/entity"
	"github.com/andreyxaxa/Event-Pseudonymizer/internal/infrastructure"
	"github.com/andreyxaxa/Event-Pseudonymizer/internal/metrics"
	"github.com/andreyxaxa/Event-Pseudonymizer/internal/repo"
	"github.com/andreyxaxa/Event-Pseudonymizer/internal/usecase/record"
	"github.com/google/uuid"
)

const contentTypeJSONLines = "application/x-ndjson"

type SinkUseCase struct {
	objects   repo.ObjectRepo
	publisher infrastructure.EventPublisher
	prefix    string
	now       func() time.Time
}

// New builds the sink. publisher may be nil when transformed records are
// not mirrored to an output topic.
func New(objects repo.ObjectRepo, publisher infrastructure.EventPublisher, prefix string) *SinkUseCase {
	return &SinkUseCase{
		objects:   objects,
		publisher: publisher,
		prefix:    prefix,
		now:       time.Now,
	}
}

// Store writes the Ok records of a batch as one newline-delimited JSON
// object. Failed records are skipped.
func (uc *SinkUseCase) Store(ctx context.Context, records []entity.TransformedRecord) error {
	var buf bytes.Buffer
	var messages []entity.StreamMessage

	for _, r := range records {
		if !r.IsOk() {
			continue
		}

		buf.Write(r.Data)
		buf.WriteByte('\n')

		if uc.publisher != nil {
			messages = append(messages, uc.outputMessage(r))
		}
	}

	if buf.Len() == 0 {
		return nil
	}

	// 1. object storage
	key := uc.objectKey()
	err := uc.objects.UploadBytes(ctx, key, buf.Bytes(), contentTypeJSONLines)
	if err != nil {
		return fmt.Errorf("SinkUseCase - Store - uc.objects.UploadBytes: %w", err)
	}

	// 2. output topic
	if len(messages) > 0 {
		err = uc.publisher.Publish(ctx, messages...)
		if err != nil {
			return fmt.Errorf("SinkUseCase - Store - uc.publisher.Publish: %w", err)
		}
	}

	metrics.SinkRecords.Add(float64(bytes.Count(buf.Bytes(), []byte{'\n'})))

	return nil
}

func (uc *SinkUseCase) objectKey() string {
	return fmt.Sprintf("%s/%s/%s.jsonl", uc.prefix, uc.now().UTC().Format("2006/01/02/15"), uuid.New())
}

// outputMessage keys the record by its pseudonym so one user's events stay
// on one partition downstream too.
func (uc *SinkUseCase) outputMessage(r entity.TransformedRecord) entity.StreamMessage {
	msg := entity.StreamMessage{
		Value:   r.Data,
		Headers: map[string]string{"record_id": r.RecordID},
	}

	if event, err := record.Decode(r.Data); err == nil {
		msg.Key, _ = event.UserID()
	}

	return msg
}
