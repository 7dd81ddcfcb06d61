package relay

import (
	"errors"
	"fmt"
)

// ErrUnknownConnection is returned for events from a connection the relay has
// no session for.
var ErrUnknownConnection = errors.New("relay: unknown connection")

// RejectError is returned by the relay's handlers when an operation was
// refused. The same type and message were sent to the connection as an error
// event.
type RejectError struct {
	Type    string
	Message string
	Err     error
}

func (e *RejectError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("relay: %s rejected: %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("relay: %s rejected: %s", e.Type, e.Message)
}

func (e *RejectError) Unwrap() error {
	return e.Err
}

// RejectionType returns the error category of err when it is a *RejectError,
// or "" otherwise.
func RejectionType(err error) string {
	var rej *RejectError
	if errors.As(err, &rej) {
		return rej.Type
	}
	return ""
}
