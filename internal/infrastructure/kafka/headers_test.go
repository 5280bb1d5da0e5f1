package kafka

import (
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
)

func TestRedeliveryCount(t *testing.T) {
	tests := []struct {
		name    string
		headers []kafka.Header
		want    int
	}{
		{"no headers", nil, 0},
		{"other headers", []kafka.Header{{Key: "event_id", Value: []byte("x")}}, 0},
		{"set", []kafka.Header{{Key: RedeliveryCountHeader, Value: []byte("3")}}, 3},
		{"garbage", []kafka.Header{{Key: RedeliveryCountHeader, Value: []byte("three")}}, 0},
		{"negative", []kafka.Header{{Key: RedeliveryCountHeader, Value: []byte("-1")}}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RedeliveryCount(kafka.Message{Headers: tt.headers}))
		})
	}
}
