package record

import (
	"bytes"
	"fmt"

	"github.com/andreyxaxa/Event-Pseudonymizer/internal/entity"
	"github.com/andreyxaxa/Event-Pseudonymizer/pkg/types/errs"
	"github.com/goccy/go-json"
)

// Decode parses one stream payload. It fails with errs.ErrDecode unless data
// is a single JSON object carrying a non-empty string user_id. Numbers are
// kept as json.Number so Encode writes them back unchanged.
func Decode(data []byte) (entity.RawEvent, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var event entity.RawEvent
	if err := dec.Decode(&event); err != nil {
		return nil, fmt.Errorf("record - Decode - dec.Decode: %w: %w", errs.ErrDecode, err)
	}

	if dec.More() {
		return nil, fmt.Errorf("record - Decode: %w: trailing data after object", errs.ErrDecode)
	}

	if event == nil {
		return nil, fmt.Errorf("record - Decode: %w: not an object", errs.ErrDecode)
	}

	if _, ok := event.UserID(); !ok {
		return nil, fmt.Errorf("record - Decode: %w: missing %s", errs.ErrDecode, entity.UserIDField)
	}

	return event, nil
}

func Encode(event entity.RawEvent) ([]byte, error) {
	b, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("record - Encode - json.Marshal: %w", err)
	}

	return b, nil
}
