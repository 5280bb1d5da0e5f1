package entity

type Status string

const (
	Pending    Status = "pending"
	Processing Status = "processing"
	Processed  Status = "processed"
	Failed     Status = "failed"
)

// TerminalStatuses are never picked up by the redelivery relay again.
func TerminalStatuses() []Status {
	return []Status{Processed, Failed}
}
