package service

import (
	"errors"
	"fmt"
)

// Kind groups service errors by how a caller should react to them.
type Kind string

const (
	KindValidation    Kind = "validation"
	KindNotFound      Kind = "not_found"
	KindNotAuthorized Kind = "not_authorized"
	KindStateConflict Kind = "state_conflict"
	KindWindowExpired Kind = "window_expired"
	KindGateway       Kind = "gateway"
	KindUnmappedBank  Kind = "unmapped_bank_code"
	KindInternal      Kind = "internal"
)

// Stable error codes returned to API clients.
const (
	CodeValidation                = "ValidationError"
	CodeInvalidListingType        = "InvalidListingType"
	CodeInvalidPaymentType        = "InvalidPaymentType"
	CodeUnsupportedLeaseTerm      = "UnsupportedLeaseTerm"
	CodeInvalidDateRange          = "InvalidDateRange"
	CodeInvalidAmount             = "InvalidAmount"
	CodeNotFound                  = "NotFound"
	CodeListingNotFound           = "ListingNotFound"
	CodeNotAuthorized             = "NotAuthorized"
	CodeDuplicateBooking          = "DuplicateBooking"
	CodeInvalidState              = "InvalidState"
	CodeConcurrentModification    = "ConcurrentModification"
	CodeReleaseNotEligible        = "ReleaseNotEligible"
	CodeMissingBankDetails        = "MissingBankDetails"
	CodeConfirmationWindowExpired = "ConfirmationWindowExpired"
	CodeCancellationWindowExpired = "CancellationWindowExpired"
	CodeAutomaticProcessExpected  = "AutomaticProcessExpected"
	CodeGatewayMisconfigured      = "GatewayMisconfigured"
	CodeGatewayRejected           = "GatewayRejected"
	CodeGatewayUnavailable        = "GatewayUnavailable"
	CodeUnmappedBankCode          = "UnmappedBankCode"
	CodeInternal                  = "InternalError"
)

// Error is the typed error every BookingService operation returns.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind Kind, code, msg string, err error) *Error {
	return &Error{Kind: kind, Code: code, Message: msg, Err: err}
}

func validationError(code, format string, args ...interface{}) *Error {
	return newError(KindValidation, code, fmt.Sprintf(format, args...), nil)
}

func notFound(code, msg string) *Error {
	return newError(KindNotFound, code, msg, nil)
}

func notAuthorized(msg string) *Error {
	return newError(KindNotAuthorized, CodeNotAuthorized, msg, nil)
}

func stateConflict(code, format string, args ...interface{}) *Error {
	return newError(KindStateConflict, code, fmt.Sprintf(format, args...), nil)
}

func windowExpired(code, msg string) *Error {
	return newError(KindWindowExpired, code, msg, nil)
}

func internal(msg string, err error) *Error {
	return newError(KindInternal, CodeInternal, msg, err)
}

// KindOf returns the kind of a service error, or KindInternal for anything else.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// CodeOf returns the stable code of a service error.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}
