package response

import "github.com/andreyxaxa/Event-Pseudonymizer/internal/entity"

// Transform mirrors the request: one record per input record, same order.
// Data is base64 and absent for ProcessingFailed records.
type Transform struct {
	Records []entity.TransformedRecord `json:"records"`
}
