package kafka

import (
	"strconv"

	"github.com/segmentio/kafka-go"
)

const (
	RecordIDHeader        = "record_id"
	RedeliveryCountHeader = "redelivery_count"
)

// RedeliveryCount returns how many times msg has been put back on the
// stream after failing transformation. Messages from producers return 0.
func RedeliveryCount(msg kafka.Message) int {
	for _, h := range msg.Headers {
		if h.Key != RedeliveryCountHeader {
			continue
		}

		n, err := strconv.Atoi(string(h.Value))
		if err != nil || n < 0 {
			return 0
		}

		return n
	}

	return 0
}
