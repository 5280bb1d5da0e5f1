package errs

import "errors"

var (
	ErrRecordNotFound   = errors.New("record not found")
	ErrDecode           = errors.New("malformed record")
	ErrStoreUnavailable = errors.New("pseudonym store unavailable")
	ErrPublish          = errors.New("publish to stream failed")
	ErrAlreadyStarted   = errors.New("already started")
)
