// Package errs provides the engine-wide error kind taxonomy (spec section 7).
//
// Every error surfaced across a component boundary (C1-C6) is wrapped into
// an *Error carrying a Kind so front-ends can branch on the kind without
// string matching, while still supporting errors.Is against the
// package-level sentinels for the common cases.
package errs

import (
	"errors"
	"fmt"
)

// Kind identifies one of the error categories from spec section 7.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindParseError
	KindPlanError
	KindRuntimeError
	KindConstraintViolation
	KindStorageCorrupt
	KindDurabilityFailed
	KindTxConflict
	KindTxTimeout
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindParseError:
		return "ParseError"
	case KindPlanError:
		return "PlanError"
	case KindRuntimeError:
		return "RuntimeError"
	case KindConstraintViolation:
		return "ConstraintViolation"
	case KindStorageCorrupt:
		return "StorageCorrupt"
	case KindDurabilityFailed:
		return "DurabilityFailed"
	case KindTxConflict:
		return "TxConflict"
	case KindTxTimeout:
		return "TxTimeout"
	case KindNotFound:
		return "NotFound"
	default:
		return "Unknown"
	}
}

// Error is a structured engine error: a Kind, a message, and an optional
// wrapped cause. Front-ends receive these across the engine API boundary.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Is makes errors.Is(err, sentinel) work when both sides are *Error with
// the same Kind and the same Msg and the target has no wrapped cause,
// which is how the package-level sentinels below are defined.
func (e *Error) Is(target error) bool {
	te, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == te.Kind && te.Err == nil && te.Msg == e.Msg
}

// New constructs a new *Error of the given kind.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// Wrap constructs a new *Error of the given kind wrapping cause.
func Wrap(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: cause}
}

// KindOf extracts the Kind from err if it is (or wraps) an *Error,
// returning KindUnknown otherwise.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Sentinel errors for common cross-component conditions, mirroring the
// teacher's package-level `var ErrX = errors.New(...)` convention but
// carrying a Kind for callers that want to branch on category instead.
var (
	ErrStorageCorrupt     = New(KindStorageCorrupt, "storage corrupt")
	ErrDurabilityFailed   = New(KindDurabilityFailed, "durability failed")
	ErrTxConflict         = New(KindTxConflict, "transaction conflict")
	ErrTxTimeout          = New(KindTxTimeout, "transaction timeout")
	ErrNotFound           = New(KindNotFound, "not found")
	ErrCatalogCorrupt     = New(KindStorageCorrupt, "catalog corrupt")
	ErrConstraintViolated = New(KindConstraintViolation, "constraint violation")
	ErrCancelled          = New(KindRuntimeError, "cancelled")
	ErrPlanError          = New(KindPlanError, "plan error")
	ErrRuntimeError       = New(KindRuntimeError, "runtime error")
)
