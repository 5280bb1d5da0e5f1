package entity

type Result string

const (
	ResultOk               Result = "Ok"
	ResultProcessingFailed Result = "ProcessingFailed"
)

// BatchRecord is one entry of a batch delivered by the stream.
type BatchRecord struct {
	RecordID string `json:"recordId"`
	Data     []byte `json:"data"`
}

// TransformedRecord carries Data only when Result is ResultOk.
type TransformedRecord struct {
	RecordID string `json:"recordId"`
	Result   Result `json:"result"`
	Data     []byte `json:"data,omitempty"`
}

func OkRecord(recordID string, data []byte) TransformedRecord {
	return TransformedRecord{RecordID: recordID, Result: ResultOk, Data: data}
}

func FailedRecord(recordID string) TransformedRecord {
	return TransformedRecord{RecordID: recordID, Result: ResultProcessingFailed}
}

func (r TransformedRecord) IsOk() bool {
	return r.Result == ResultOk
}
