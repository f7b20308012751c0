// Package repository implements data access over MySQL. Every cross-request
// invariant (one lock per register, one OPEN session per register+shift, one
// claim per intent) is enforced here with row-level transactions, conditional
// UPDATEs and unique keys — never with in-process mutexes, because requests
// may land on different server instances.
//
// The sentinel errors below form the error taxonomy shared with the service
// and handler layers:
//
//	ErrConflict     – resource already owned or claimed by someone else (409)
//	ErrPrecondition – operation attempted from the wrong state (409/400)
//	ErrNotFound     – referenced entity does not exist (404)
//	ErrValidation   – malformed input rejected before any mutation (400)
//
// Anything else is a transient storage failure and is propagated as-is for
// the caller to retry.
package repository

import (
    "errors"
    "fmt"

    "github.com/go-sql-driver/mysql"
)

// ErrConflict signals the resource is live and owned by another actor.
var ErrConflict = errors.New("conflict")

// ErrPrecondition signals a transition attempted from an illegal state,
// typically a duplicate or late retry.
var ErrPrecondition = errors.New("precondition failed")

// ErrNotFound signals the referenced entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrValidation signals malformed input, rejected before any state mutation.
var ErrValidation = errors.New("validation failed")

// reasonError wraps a sentinel with a human-readable reason so handlers can
// surface specific messages ("register held by alice") while errors.Is still
// matches the category.
type reasonError struct {
    sentinel error
    reason   string
}

func (e *reasonError) Error() string { return e.reason }
func (e *reasonError) Unwrap() error { return e.sentinel }

// withReason attaches a formatted reason to one of the sentinel errors.
func withReason(sentinel error, format string, args ...any) error {
    return &reasonError{sentinel: sentinel, reason: fmt.Sprintf(format, args...)}
}

// isDuplicateKey reports whether err is a MySQL duplicate-key error (1062).
// Losing an insert race on a unique key is how conflicts on free resources
// surface, so callers map this onto ErrConflict.
func isDuplicateKey(err error) bool {
    var me *mysql.MySQLError
    return errors.As(err, &me) && me.Number == 1062
}
