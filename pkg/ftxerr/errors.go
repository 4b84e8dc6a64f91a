// Package ftxerr defines the error kinds the indexing core distinguishes,
// following the reference platform's pkg/errors shape: a small set of
// sentinel errors plus a wrapping type that carries operation context and
// unwraps to the sentinel so callers can use errors.Is.
package ftxerr

import (
	"errors"
	"fmt"
)

var (
	// ErrConfigInvalid is returned by the constructor when baseDir/storage
	// is missing or the threshold invariants are violated.
	ErrConfigInvalid = errors.New("invalid engine configuration")
	// ErrIDConflict is returned by a strict add of an already-added id.
	ErrIDConflict = errors.New("document id already added")
	// ErrIDTombstoned is returned by a strict add of a deleted id.
	ErrIDTombstoned = errors.New("document id was deleted")
	// ErrStorageFailure wraps any blob-store error with operation context.
	ErrStorageFailure = errors.New("storage failure")
	// ErrCorruptIndex marks a segment as unloadable: bad magic, impossible
	// offsets, or a truncated dictionary.
	ErrCorruptIndex = errors.New("corrupt index segment")
	// ErrMalformedLogRecord marks a framing error inside a log range;
	// readers treat it as truncation and return what they decoded so far.
	ErrMalformedLogRecord = errors.New("malformed log record")
)

// Error wraps a sentinel with the operation and blob name it occurred
// against, so log lines and error messages carry enough context without
// every caller having to format it themselves.
type Error struct {
	Err    error
	Op     string
	Detail string
}

func (e *Error) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Err)
	}
	return fmt.Sprintf("%s: %s: %s", e.Op, e.Err, e.Detail)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Wrap builds an *Error for sentinel occurring during op, with an optional
// free-form detail (typically a blob name or term).
func Wrap(sentinel error, op, detail string) *Error {
	return &Error{Err: sentinel, Op: op, Detail: detail}
}

// Storage wraps a lower-level blob-store error as ErrStorageFailure,
// preserving the original error via Unwrap chaining.
func Storage(op, name string, cause error) *Error {
	return &Error{Err: fmt.Errorf("%w: %w", ErrStorageFailure, cause), Op: op, Detail: name}
}
