package response

type Message struct {
	Message string `json:"message" example:"Successfully put record to stream"`
	Error   string `json:"error,omitempty"`
}
