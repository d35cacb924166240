package gateway

import (
	"errors"
	"fmt"
)

var (
	// ErrMisconfigured means required gateway credentials are absent. Not retryable.
	ErrMisconfigured = errors.New("payment gateway misconfigured")
	// ErrUnavailable wraps network failures and timeouts.
	ErrUnavailable = errors.New("payment gateway unavailable")
	// ErrRejected is matched by every *RejectedError.
	ErrRejected = errors.New("payment gateway rejected request")
	// ErrUnmappedBankCode means the bank name has no gateway code on file.
	ErrUnmappedBankCode = errors.New("bank has no gateway code")
)

// RejectedError carries the gateway's own message for a non-success response.
type RejectedError struct {
	HTTPStatus int
	Message    string
}

func (e *RejectedError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("payment gateway rejected request (http %d)", e.HTTPStatus)
	}
	return fmt.Sprintf("payment gateway rejected request (http %d): %s", e.HTTPStatus, e.Message)
}

func (e *RejectedError) Unwrap() error {
	return ErrRejected
}
