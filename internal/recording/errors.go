package recording

import (
	"errors"
	"fmt"

	"github.com/audiolibrelab/interviewprep/internal/audio"
)

// ErrorKind classifies controller failures so hosts can show specific
// guidance.
type ErrorKind string

const (
	KindPermissionDenied      ErrorKind = "PermissionDenied"
	KindDeviceNotFound        ErrorKind = "DeviceNotFound"
	KindUnsupported           ErrorKind = "Unsupported"
	KindCapabilityUnavailable ErrorKind = "CapabilityUnavailable"
	KindDeviceError           ErrorKind = "DeviceError"
	KindInvalidState          ErrorKind = "InvalidState"
)

// Error is returned by every Controller operation that fails.
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind, so errors.Is(err, ErrInvalidState)
// works regardless of Op and cause.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

var (
	ErrPermissionDenied      = &Error{Kind: KindPermissionDenied}
	ErrDeviceNotFound        = &Error{Kind: KindDeviceNotFound}
	ErrUnsupported           = &Error{Kind: KindUnsupported}
	ErrCapabilityUnavailable = &Error{Kind: KindCapabilityUnavailable}
	ErrDeviceError           = &Error{Kind: KindDeviceError}
	ErrInvalidState          = &Error{Kind: KindInvalidState}
)

// KindOf returns the kind of a controller error, or "" for other errors.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

func newError(kind ErrorKind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func invalidState(op string, s State) *Error {
	return newError(KindInvalidState, op, fmt.Errorf("not allowed while %s", s))
}

// classifyOpenError maps device acquisition failures to error kinds.
func classifyOpenError(err error) ErrorKind {
	switch {
	case errors.Is(err, audio.ErrPermissionDenied):
		return KindPermissionDenied
	case errors.Is(err, audio.ErrDeviceNotFound):
		return KindDeviceNotFound
	case errors.Is(err, audio.ErrUnsupported):
		return KindUnsupported
	}
	return KindDeviceError
}
