// Package apperr defines the error kinds returned by the engines.
package apperr

import (
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type Kind uint8

const (
	KindUnknown Kind = iota
	KindValidation
	KindInvalidState
	KindConflict
	KindNotFound
	KindForbidden
	KindStoreUnavailable
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindInvalidState:
		return "invalid_state"
	case KindConflict:
		return "conflict"
	case KindNotFound:
		return "not_found"
	case KindForbidden:
		return "forbidden"
	case KindStoreUnavailable:
		return "store_unavailable"
	default:
		return "unknown"
	}
}

// Code maps the kind onto a gRPC status code.
func (k Kind) Code() codes.Code {
	switch k {
	case KindValidation:
		return codes.InvalidArgument
	case KindInvalidState:
		return codes.FailedPrecondition
	case KindConflict:
		return codes.Aborted
	case KindNotFound:
		return codes.NotFound
	case KindForbidden:
		return codes.PermissionDenied
	case KindStoreUnavailable:
		return codes.Unavailable
	default:
		return codes.Unknown
	}
}

// Error is a classified failure of an engine operation.
type Error struct {
	Kind Kind
	Op   string
	Msg  string
	Err  error
}

// Sentinels for errors.Is. Only the kind is compared.
var (
	ErrValidation       = &Error{Kind: KindValidation}
	ErrInvalidState     = &Error{Kind: KindInvalidState}
	ErrConflict         = &Error{Kind: KindConflict}
	ErrNotFound         = &Error{Kind: KindNotFound}
	ErrForbidden        = &Error{Kind: KindForbidden}
	ErrStoreUnavailable = &Error{Kind: KindStoreUnavailable}
)

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = e.Kind.String()
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if e.Op != "" {
		return e.Op + ": " + msg
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// GRPCStatus lets transports convert the error without knowing its kinds.
func (e *Error) GRPCStatus() *status.Status {
	return status.New(e.Kind.Code(), e.Error())
}

// New creates an error of the given kind.
func New(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// Wrap classifies err under kind.
func Wrap(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func Validation(op, format string, args ...any) *Error {
	return New(KindValidation, op, format, args...)
}

func InvalidState(op, format string, args ...any) *Error {
	return New(KindInvalidState, op, format, args...)
}

func Conflict(op, format string, args ...any) *Error {
	return New(KindConflict, op, format, args...)
}

func NotFound(op, format string, args ...any) *Error {
	return New(KindNotFound, op, format, args...)
}

func Forbidden(op, format string, args ...any) *Error {
	return New(KindForbidden, op, format, args...)
}

// Unavailable wraps a transport or driver failure.
func Unavailable(op string, err error) *Error {
	return Wrap(KindStoreUnavailable, op, err)
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}
