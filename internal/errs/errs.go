// Package errs classifies every error a node surfaces into the small closed
// taxonomy spec.md §7 defines: ClientError, ResourceError, ProtocolError and
// InternalError. Each is a wrapper type carrying a Kind tag and the
// underlying cause, following the teacher's task.Error — a wrapper type
// around error that exists to carry extra context (there, a captured stack
// trace; here, a classification tag) rather than a hierarchy of named Go
// error types. internal/rpc uses the Kind to pick the right gRPC status
// code; nothing upstream needs to type-switch on the cause itself.
package errs

import (
	"errors"
	"fmt"
)

// Kind is the coarse category a wrapped error belongs to.
type Kind int

const (
	KindInvalidRequest Kind = iota
	KindUnauthenticated
	KindForbidden
	KindNotFound
	KindPaymentRequired
	KindDuplicate

	KindPreprocessingExhausted
	KindTooManyConcurrentComputes
	KindStorageUnavailable
	KindTimeout

	KindProtocolViolation
	KindPeerDisconnected
	KindInsufficientShares
	KindArithmeticError
	KindAuditFailed

	KindBugOrPanic
)

func (k Kind) String() string {
	switch k {
	case KindInvalidRequest:
		return "InvalidRequest"
	case KindUnauthenticated:
		return "Unauthenticated"
	case KindForbidden:
		return "Forbidden"
	case KindNotFound:
		return "NotFound"
	case KindPaymentRequired:
		return "PaymentRequired"
	case KindDuplicate:
		return "Duplicate"
	case KindPreprocessingExhausted:
		return "PreprocessingExhausted"
	case KindTooManyConcurrentComputes:
		return "TooManyConcurrentComputes"
	case KindStorageUnavailable:
		return "StorageUnavailable"
	case KindTimeout:
		return "Timeout"
	case KindProtocolViolation:
		return "ProtocolViolation"
	case KindPeerDisconnected:
		return "PeerDisconnected"
	case KindInsufficientShares:
		return "InsufficientShares"
	case KindArithmeticError:
		return "ArithmeticError"
	case KindAuditFailed:
		return "AuditFailed"
	case KindBugOrPanic:
		return "BugOrPanic"
	default:
		return "Unknown"
	}
}

// Class is the four top-level buckets spec.md §7 groups Kinds into. A
// client sees Class and Kind; it never sees the wrapped cause directly.
type Class int

const (
	ClassClient Class = iota
	ClassResource
	ClassProtocol
	ClassInternal
)

func (c Class) String() string {
	switch c {
	case ClassClient:
		return "ClientError"
	case ClassResource:
		return "ResourceError"
	case ClassProtocol:
		return "ProtocolError"
	case ClassInternal:
		return "InternalError"
	default:
		return "Unknown"
	}
}

func (k Kind) Class() Class {
	switch k {
	case KindInvalidRequest, KindUnauthenticated, KindForbidden, KindNotFound, KindPaymentRequired, KindDuplicate:
		return ClassClient
	case KindPreprocessingExhausted, KindTooManyConcurrentComputes, KindStorageUnavailable, KindTimeout:
		return ClassResource
	case KindProtocolViolation, KindPeerDisconnected, KindInsufficientShares, KindArithmeticError, KindAuditFailed:
		return ClassProtocol
	default:
		return ClassInternal
	}
}

// Error wraps a cause with a Kind. It is the only error type this package
// exports — callers build one with New and inspect one with As.
type Error struct {
	Kind   Kind
	Reason string // extra detail, e.g. an ArithmeticError subkind or an audit.Result reason
	error
}

// New wraps err with kind. The wrapped error's Error() string is used
// verbatim as the cause; Reason carries a short machine-checkable subkind
// where spec.md names one (e.g. "DivisionByZero", "NoInverse", "Overflow").
func New(kind Kind, err error) Error {
	return Error{Kind: kind, error: err}
}

// NewWithReason is New plus a Reason string, for Kinds spec.md gives a
// sub-taxonomy: ArithmeticError{NoInverse|DivisionByZero|Overflow} and
// AuditFailed{reason}.
func NewWithReason(kind Kind, reason string, err error) Error {
	return Error{Kind: kind, Reason: reason, error: err}
}

func (e Error) Unwrap() error { return e.error }

func (e Error) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("%s(%s): %v", e.Kind, e.Reason, e.error)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.error)
}

// As extracts an Error from err if err is, or wraps, one.
func As(err error) (Error, bool) {
	var e Error
	ok := errors.As(err, &e)
	return e, ok
}

// Arithmetic subkinds, per spec.md §7's ArithmeticError sub-taxonomy.
const (
	ReasonNoInverse      = "NoInverse"
	ReasonDivisionByZero = "DivisionByZero"
	ReasonOverflow       = "Overflow"
)

// ArithmeticError builds a KindArithmeticError wrapping err with reason as
// one of the Reason* constants above.
func ArithmeticError(reason string, err error) Error {
	return NewWithReason(KindArithmeticError, reason, err)
}

// AuditFailed builds a KindAuditFailed error carrying the audit's reason
// string verbatim, so a client sees exactly why its program was rejected.
func AuditFailed(reason string) Error {
	return NewWithReason(KindAuditFailed, reason, fmt.Errorf("program audit failed: %s", reason))
}
