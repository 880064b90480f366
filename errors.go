package crdt

import "github.com/pkg/errors"

// Kind classifies the error conditions spec'd for this engine. Values are
// not exhaustive Go error types by themselves; a *CrdtError pairs a Kind
// with the pkg/errors-wrapped cause that produced it.
type Kind int

const (
	// KindMalformedUpdate means the update bytes violate the wire grammar:
	// unknown type tag, truncated content, or a duplicate block at a clock.
	KindMalformedUpdate Kind = iota
	// KindPendingDependency means a block referenced an origin not yet
	// present locally. Not surfaced as an error from ApplyUpdate; recorded
	// for the caller to query via Document.PendingClients.
	KindPendingDependency
	// KindInvalidOperation means the caller asked for something the
	// current branch state can't satisfy (index out of range, etc).
	KindInvalidOperation
	// KindTransactionBusy means a mutating transaction was already in
	// flight on this document when another was attempted.
	KindTransactionBusy
	// KindTypeMismatch means a root name was already bound to a branch of
	// a different TypeRef.
	KindTypeMismatch
)

func (k Kind) String() string {
	switch k {
	case KindMalformedUpdate:
		return "malformed update"
	case KindPendingDependency:
		return "pending dependency"
	case KindInvalidOperation:
		return "invalid operation"
	case KindTransactionBusy:
		return "transaction busy"
	case KindTypeMismatch:
		return "type mismatch"
	default:
		return "unknown"
	}
}

// CrdtError is the concrete error type returned by every fallible public
// operation on this package. It carries a Kind for programmatic dispatch
// and wraps its underlying cause (if any) with a stack trace via
// github.com/pkg/errors, so failures surfaced from deep inside update
// decoding keep a trail back to the caller.
type CrdtError struct {
	Kind  Kind
	cause error
}

func (e *CrdtError) Error() string {
	if e.cause == nil {
		return e.Kind.String()
	}
	return e.Kind.String() + ": " + e.cause.Error()
}

// Unwrap exposes the wrapped cause to errors.Is/errors.As.
func (e *CrdtError) Unwrap() error { return e.cause }

func newError(kind Kind, msg string) *CrdtError {
	return &CrdtError{Kind: kind, cause: errors.New(msg)}
}

func wrapError(kind Kind, cause error, msg string) *CrdtError {
	return &CrdtError{Kind: kind, cause: errors.Wrap(cause, msg)}
}

// ErrTransactionBusy is returned by Document.TryTransact when a mutating
// transaction is already in flight.
var ErrTransactionBusy = newError(KindTransactionBusy, "a mutating transaction is already in progress on this document")

// IsKind reports whether err is a *CrdtError of the given Kind.
func IsKind(err error, kind Kind) bool {
	var ce *CrdtError
	if errors.As(err, &ce) {
		return ce.Kind == kind
	}
	return false
}

// invariantViolation is panicked (never returned as an error) when the
// store's own bookkeeping is violated — e.g. PushBlock receiving a block
// whose clock doesn't match the client's current state. Spec calls this a
// bug, not an application error: Transact/TryTransact let it propagate
// rather than converting it into a normal error return.
type invariantViolation struct {
	msg string
}

func (v invariantViolation) Error() string { return "invariant violation: " + v.msg }

func panicInvariant(msg string) {
	panic(invariantViolation{msg: msg})
}
