// Package helixerr defines the engine-wide error taxonomy.
//
// Every failure mode the core surfaces to a caller is one of a small,
// fixed set of kinds. Callers should compare with errors.Is against the
// sentinel values below rather than inspecting message text.
package helixerr

import (
	"errors"
	"fmt"
)

// Kind discriminates the taxonomy of errors the engine can return.
type Kind int

const (
	// KindNotFound means an id was looked up but does not exist.
	KindNotFound Kind = iota
	// KindDuplicateUnique means a unique index was violated.
	KindDuplicateUnique
	// KindMissingEndpoint means an edge referenced a node that does not exist.
	KindMissingEndpoint
	// KindInvalidArgument means a caller-supplied parameter was malformed.
	KindInvalidArgument
	// KindStorageFault means the underlying KV store failed.
	KindStorageFault
	// KindWriteBusy means a writer was already active in non-blocking mode.
	KindWriteBusy
	// KindCancelled means a caller's cancellation token was honored.
	KindCancelled
	// KindCacheStale is internal: it never crosses the cache boundary.
	KindCacheStale
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "NOT_FOUND"
	case KindDuplicateUnique:
		return "DUPLICATE_UNIQUE"
	case KindMissingEndpoint:
		return "MISSING_ENDPOINT"
	case KindInvalidArgument:
		return "INVALID_ARGUMENT"
	case KindStorageFault:
		return "STORAGE_FAULT"
	case KindWriteBusy:
		return "WRITE_BUSY"
	case KindCancelled:
		return "CANCELLED"
	case KindCacheStale:
		return "CACHE_STALE"
	default:
		return "UNKNOWN"
	}
}

// Error is the concrete error type returned by every package in this
// module. It carries a Kind plus a one-line message; no stack trace is
// attached, per the uniform-failure-shape requirement.
type Error struct {
	Kind Kind
	Msg  string
	err  error // optional wrapped cause, unwrapped via Unwrap
}

func (e *Error) Error() string {
	if e.Msg == "" {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.err }

// Is reports whether target is the same Kind, so errors.Is(err,
// helixerr.NotFound) works regardless of the message text attached.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// New constructs an *Error of the given kind with a message.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// Wrap constructs an *Error of the given kind, chaining cause via %w
// semantics so errors.Unwrap still reaches the original error.
func Wrap(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf("%s: %v", msg, cause), err: cause}
}

// Sentinel values for errors.Is comparisons. Messages are filled in at
// the call site via New/Wrap; these bare values exist so callers can
// write errors.Is(err, helixerr.NotFound) without constructing a message.
var (
	NotFound        = &Error{Kind: KindNotFound}
	DuplicateUnique = &Error{Kind: KindDuplicateUnique}
	MissingEndpoint = &Error{Kind: KindMissingEndpoint}
	InvalidArgument = &Error{Kind: KindInvalidArgument}
	StorageFault    = &Error{Kind: KindStorageFault}
	WriteBusy       = &Error{Kind: KindWriteBusy}
	Cancelled       = &Error{Kind: KindCancelled}
	CacheStale      = &Error{Kind: KindCacheStale}
)

// Of reports the Kind of err if it is (or wraps) a *Error, and ok=false
// otherwise.
func Of(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}
