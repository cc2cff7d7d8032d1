package model

import (
	"errors"
	"fmt"
)

// ErrorKind classifies every failure a client flow can report.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindValidation
	KindAuth
	KindTransport
	KindTimeout
	KindCancelled
	KindServer
	KindResourceExhausted
	KindMalformedResponse
	KindBusy
)

var kindNames = map[ErrorKind]string{
	KindUnknown:           "unknown",
	KindValidation:        "validation",
	KindAuth:              "auth",
	KindTransport:         "transport",
	KindTimeout:           "timeout",
	KindCancelled:         "cancelled",
	KindServer:            "server",
	KindResourceExhausted: "resource_exhausted",
	KindMalformedResponse: "malformed_response",
	KindBusy:              "busy",
}

func (k ErrorKind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Error is the normalized error shape surfaced to the user.
// Message is always human readable; Status is the HTTP status when one was received.
type Error struct {
	Kind    ErrorKind
	Message string
	Status  int
	Err     error
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s (%s, status %d)", e.Message, e.Kind, e.Status)
	}
	return fmt.Sprintf("%s (%s)", e.Message, e.Kind)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError builds an Error without an underlying cause.
func NewError(kind ErrorKind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// MessageOf returns the user-facing message of err, or fallback if err is not an *Error.
func MessageOf(err error, fallback string) string {
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return fallback
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}
