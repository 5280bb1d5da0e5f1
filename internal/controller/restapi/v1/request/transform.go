package request

import (
	"encoding/base64"

	"github.com/andreyxaxa/Event-Pseudonymizer/internal/entity"
)

type TransformRecord struct {
	RecordID string `json:"recordId" example:"49546986683135544286507457936321625675700192471156785154"`
	Data     string `json:"data" example:"eyJ1c2VyX2lkIjoiYWxpY2UifQ=="`
}

type Transform struct {
	Records []TransformRecord `json:"records"`
}

// BatchRecords decodes every record's base64 payload. A record that is not
// valid base64 keeps nil data and fails decoding downstream on its own.
func (t Transform) BatchRecords() []entity.BatchRecord {
	out := make([]entity.BatchRecord, len(t.Records))
	for i, r := range t.Records {
		out[i].RecordID = r.RecordID

		data, err := base64.StdEncoding.DecodeString(r.Data)
		if err == nil {
			out[i].Data = data
		}
	}

	return out
}
