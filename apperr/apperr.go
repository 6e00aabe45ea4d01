// Package apperr defines the error taxonomy shared by the relay, the signer
// and the image editor.
//
// Callers should branch on Kind (via IsKind) rather than matching error
// strings. Message is intended for humans and may be shown to the user as-is,
// so it must never contain an unmasked phone number.
package apperr

import (
	"encoding/json"
	"errors"
	"net/http"
)

// Kind is a stable category for programmatic error handling.
type Kind string

const (
	KindValidation      Kind = "Validation"
	KindConfiguration   Kind = "Configuration"
	KindUpstream        Kind = "Upstream"
	KindProcessing      Kind = "Processing"
	KindNoPortAvailable Kind = "NoPortAvailable"
	KindNothingToUndo   Kind = "NothingToUndo"
	KindBusy            Kind = "Busy"
)

// Error is the structured error type.
//
// Status and Details are only meaningful for KindUpstream: Status is the
// vendor's HTTP status (0 when no response was received) and Details is the
// vendor's response body, if any.
type Error struct {
	Kind    Kind
	Message string
	Status  int
	Details json.RawMessage
	Cause   error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// Is makes errors.Is(err, &Error{Kind: k}) match any error of kind k.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || e == nil {
		return false
	}
	return t.Message == "" && t.Kind == e.Kind
}

// New returns an *Error of the given kind.
func New(kind Kind, msg string) error {
	return &Error{Kind: kind, Message: msg}
}

// Wrap returns an *Error of the given kind wrapping cause. A nil cause is
// equivalent to New.
func Wrap(kind Kind, msg string, cause error) error {
	return &Error{Kind: kind, Message: msg, Cause: cause}
}

// Validation is shorthand for New(KindValidation, msg).
func Validation(msg string) error { return New(KindValidation, msg) }

// Processing is shorthand for Wrap(KindProcessing, msg, cause).
func Processing(msg string, cause error) error { return Wrap(KindProcessing, msg, cause) }

// Upstream builds a KindUpstream error carrying the vendor status and body.
func Upstream(msg string, status int, details []byte, cause error) error {
	e := &Error{Kind: KindUpstream, Message: msg, Status: status, Cause: cause}
	if len(details) > 0 {
		e.Details = json.RawMessage(details)
	}
	return e
}

// IsKind reports whether err is (or wraps) an *Error with the given Kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == kind
}

// As extracts the outermost *Error from err.
func As(err error) (*Error, bool) {
	var e *Error
	ok := errors.As(err, &e)
	return e, ok
}

// StatusOf maps err to the HTTP status the relay should answer with.
// Upstream errors mirror the vendor status and fall back to 500 when the
// vendor never answered.
func StatusOf(err error) int {
	e, ok := As(err)
	if !ok {
		return http.StatusInternalServerError
	}
	switch e.Kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindBusy:
		return http.StatusConflict
	case KindUpstream:
		if e.Status > 0 {
			return e.Status
		}
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
