package media

import (
	"context"
	"errors"
	"fmt"
)

// FailureKind classifies where a request failed.
type FailureKind string

const (
	FailureNone             FailureKind = ""
	FailureInvalidReference FailureKind = "invalid_reference"
	FailureResolve          FailureKind = "resolve"
	FailureStreamOpen       FailureKind = "stream_open"
	FailureStream           FailureKind = "stream"
	FailureTranscode        FailureKind = "transcode"
	FailureClientDisconnect FailureKind = "client_disconnect"
	FailureTimeout          FailureKind = "timeout"
	FailureInternal         FailureKind = "internal"
)

// ErrInvalidReference is returned for references that fail validation.
var ErrInvalidReference = errors.New("invalid reference")

// Error attaches a FailureKind to an underlying cause.
type Error struct {
	Kind FailureKind
	Err  error
}

// NewError wraps err with kind. A nil err yields nil.
func NewError(kind FailureKind, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Err: err}
}

func (e *Error) Error() string {
	if e.Err == nil {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Details returns a short diagnostic string for the failure. Causes that
// implement Reason() (for instance a subprocess error) supply their own.
func (e *Error) Details() string {
	var r interface{ Reason() string }
	if errors.As(e.Err, &r) {
		if s := r.Reason(); s != "" {
			return s
		}
	}
	if e.Err == nil {
		return string(e.Kind)
	}
	return e.Err.Error()
}

// KindOf returns the FailureKind carried by err. Bare context errors map to
// ClientDisconnect and Timeout; anything else unclassified is Internal.
func KindOf(err error) FailureKind {
	if err == nil {
		return FailureNone
	}
	var me *Error
	if errors.As(err, &me) {
		return me.Kind
	}
	switch {
	case errors.Is(err, ErrInvalidReference):
		return FailureInvalidReference
	case errors.Is(err, context.DeadlineExceeded):
		return FailureTimeout
	case errors.Is(err, context.Canceled):
		return FailureClientDisconnect
	}
	return FailureInternal
}

// Details returns the diagnostic string of err for user-facing payloads.
func Details(err error) string {
	if err == nil {
		return ""
	}
	var me *Error
	if errors.As(err, &me) {
		return me.Details()
	}
	return err.Error()
}
