package quote

import (
	"errors"
	"fmt"
)

// ErrMalformed marks a response body that could not be decoded.
var ErrMalformed = errors.New("malformed response")

// StatusError is returned when the server answers with a non-2xx status and
// no usable body.
type StatusError struct {
	Op   string
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: HTTP %d", e.Op, e.Code)
	}
	return fmt.Sprintf("%s: HTTP %d: %s", e.Op, e.Code, e.Body)
}

// APIError is returned when the server reports success=false.
type APIError struct {
	Op      string
	Code    int
	Message string
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = "server reported failure"
	}
	return fmt.Sprintf("%s: %s", e.Op, msg)
}
