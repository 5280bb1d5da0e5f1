package redelivery

import (
	"time"

	"github.com/andreyxaxa/Event-Pseudonymizer/internal/entity"
	"github.com/google/uuid"
)

// NewEvent builds a pending redelivery event for a record that failed
// transformation. retryCount is the number of redeliveries the record has
// already been through.
func NewEvent(recordID, partitionKey string, payload []byte, retryCount int) *entity.RedeliveryEvent {
	return &entity.RedeliveryEvent{
		ID:           uuid.New(),
		RecordID:     recordID,
		PartitionKey: partitionKey,
		Payload:      payload,
		Status:       entity.Pending,
		CreatedAt:    time.Now().UTC(),
		RetryCount:   retryCount,
	}
}

func eventIDs(events []*entity.RedeliveryEvent) uuid.UUIDs {
	IDs := make(uuid.UUIDs, 0, len(events))

	for _, event := range events {
		IDs = append(IDs, event.ID)
	}

	return IDs
}
