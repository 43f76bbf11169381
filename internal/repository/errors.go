// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as
// handlers and the reconciliation service to distinguish between
// different failure scenarios without depending on database/sql
// internals.
package repository

import "errors"

// ErrNotFound is returned when a lookup matches no row, for example a
// booking reference that does not exist or a transaction code that has
// never been seen. Callers treat it as a domain outcome, not a fault.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when an update cannot be performed because of
// conflicting state, such as manually matching a transaction that has
// already reached a terminal status. Handlers should translate this
// into an HTTP 409 response.
var ErrConflict = errors.New("conflict")
