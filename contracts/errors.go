package contracts

import (
	"errors"
	"fmt"
)

var (
	// ErrTimeout is the failure delivered to a submitter whose request saw no
	// response within the overall timeout.
	ErrTimeout = errors.New("bridge: request timed out")

	// ErrConnectionClosed is the failure delivered to every outstanding
	// submitter when the remote client disconnects or re-announces.
	ErrConnectionClosed = errors.New("bridge: connection closed")

	// ErrTooManyPending is the failure delivered when the bridge refuses a
	// submission because the pending table is full.
	ErrTooManyPending = errors.New("bridge: too many pending requests")
)

// RemoteError is an error reported by the remote client for a claimed
// request, passed through to the submitting caller.
type RemoteError struct {
	Endpoint string
	Message  string
}

func (e *RemoteError) Error() string {
	if e.Endpoint == "" {
		return fmt.Sprintf("remote error: %s", e.Message)
	}
	return fmt.Sprintf("remote error: %s: %s", e.Endpoint, e.Message)
}

// NewRemoteError creates a remote execution error for the given endpoint.
func NewRemoteError(endpoint, message string) *RemoteError {
	return &RemoteError{Endpoint: endpoint, Message: message}
}
