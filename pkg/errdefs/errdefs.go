// Package errdefs defines the error taxonomy shared across the iris core.
package errdefs

import "errors"

// Sentinel errors for the iris core. Every package wraps these with
// fmt.Errorf("...: %w", ...) so callers can classify failures with errors.Is
// without parsing messages.
var (
	// Storage
	ErrIO             = errors.New("i/o failure")
	ErrCorruptSegment = errors.New("corrupt segment")
	ErrNotOpen        = errors.New("store not open")
	ErrTxnAlreadyOpen = errors.New("transaction already open")

	// Lookups
	ErrNotFound = errors.New("not found")

	// Identifiers and payloads
	ErrInvalidHex = errors.New("invalid hex")
	ErrDecode     = errors.New("decode failed")

	// Tasks
	ErrIllegalTransition = errors.New("illegal task transition")
	ErrParentNotFound    = errors.New("parent task not found")

	// Schema
	ErrInvalidDefinition = errors.New("invalid definition")
	ErrNotADefinition    = errors.New("object is not a type definition")
	ErrCorruptChain      = errors.New("corrupt supersedes chain")

	// Dispatch
	ErrNoMatchingOperation = errors.New("no matching operation")
	ErrAmbiguousOperation  = errors.New("ambiguous operation")
)
