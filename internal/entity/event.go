package entity

// UserIDField is the attribute carrying the raw user identifier.
const UserIDField = "user_id"

// RawEvent is a decoded user-behaviour event. Attributes other than
// user_id are opaque and passed through untouched.
type RawEvent map[string]any

func (e RawEvent) UserID() (string, bool) {
	v, ok := e[UserIDField].(string)
	if !ok || v == "" {
		return "", false
	}

	return v, true
}

// WithUserID returns a shallow copy with user_id replaced.
func (e RawEvent) WithUserID(id string) RawEvent {
	out := make(RawEvent, len(e))
	for k, v := range e {
		out[k] = v
	}
	out[UserIDField] = id

	return out
}
