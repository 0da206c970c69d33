package api

import (
	"errors"
	"fmt"
)

// Error is the normalized failure returned by every client call. Callers log
// or display Message without inspecting the underlying cause; the message is
// chosen from, in priority order, the server-supplied detail, the transport
// error text, or a generic fallback.
type Error struct {
	Endpoint string
	Status   int  // HTTP status, 0 on transport failure
	Timeout  bool // request exceeded the client timeout
	Attempts int
	Message  string
	Err      error // underlying transport error, if any
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: %s (HTTP %d, %d attempts)", e.Endpoint, e.Message, e.Status, e.Attempts)
	}
	return fmt.Sprintf("%s: %s (%d attempts)", e.Endpoint, e.Message, e.Attempts)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsTimeout reports whether err is a client Error caused by the request
// timeout.
func IsTimeout(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Timeout
}

// UserMessage extracts the display message from an error: the normalized
// Message for client errors, the error text otherwise.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	return err.Error()
}

// errorBody is the backend's error envelope on non-2xx responses.
type errorBody struct {
	Detail string `json:"detail"`
}

const genericErrorMessage = "request failed"
