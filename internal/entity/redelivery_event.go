package entity

import (
	"time"

	"github.com/google/uuid"
)

// RedeliveryEvent is a stream record that failed transformation and is
// waiting to be published to the stream again.
type RedeliveryEvent struct {
	ID           uuid.UUID  `json:"id"`
	RecordID     string     `json:"record_id"`
	PartitionKey string     `json:"partition_key"`
	Payload      []byte     `json:"payload"`
	Status       Status     `json:"status"` // pending, processing, processed, failed
	CreatedAt    time.Time  `json:"created_at"`
	ProcessedAt  *time.Time `json:"processed_at,omitempty"`
	RetryCount   int        `json:"retry_count"`
}
