package group

import (
	"errors"
	"fmt"
)

var (
	// ErrTransportFailure wraps every failed or empty round-trip.
	ErrTransportFailure = errors.New("group query failed")

	// ErrMalformedResponse indicates a response missing required structure.
	ErrMalformedResponse = errors.New("malformed group response")

	// ErrInviteAlreadyAccepted indicates the invite was accepted before by
	// this directory.
	ErrInviteAlreadyAccepted = errors.New("invite already accepted")

	// ErrInviteExpired indicates the invite carries no code or is past its
	// expiration.
	ErrInviteExpired = errors.New("invite expired")

	// ErrDirectoryStopped indicates the directory is not running.
	ErrDirectoryStopped = errors.New("group directory stopped")

	// ErrInvalidAction indicates an unknown action or setting value.
	ErrInvalidAction = errors.New("invalid group action")
)

// RemoteError is an error response returned by the group service.
type RemoteError struct {
	Code string
	Text string
}

func (e *RemoteError) Error() string {
	if e.Text == "" {
		return fmt.Sprintf("remote error %s", e.Code)
	}
	return fmt.Sprintf("remote error %s: %s", e.Code, e.Text)
}

// Unwrap lets errors.Is match ErrTransportFailure.
func (e *RemoteError) Unwrap() error {
	return ErrTransportFailure
}
