package entity

// StreamMessage is one message published to the stream.
type StreamMessage struct {
	Key     string
	Value   []byte
	Headers map[string]string
}
