package entity

import (
	"errors"
	"fmt"
	"strings"
)

// Error taxonomy shared by the inventory, repository and usecase layers.
// Callers are expected to branch with errors.Is / errors.As rather than
// string matching.
var (
	// ErrConflict means a seat is unavailable or an expected lock was
	// missing at confirm time. The caller must cancel, not retry blindly.
	ErrConflict = errors.New("conflict")

	// ErrNotFound means an unknown group, booking or transaction.
	ErrNotFound = errors.New("not found")

	// ErrExpired means a hold TTL or booking deadline has passed.
	ErrExpired = errors.New("expired")

	// ErrGateway means the payment provider was unreachable or returned
	// an unmappable result. Treated conservatively as non-success.
	ErrGateway = errors.New("gateway error")

	// ErrInvariant is an internal check failure, e.g. confirming a
	// booking with no matching locks.
	ErrInvariant = errors.New("invariant violation")
)

// ConflictError carries the seat numbers that caused a hold or confirm to
// fail so the client can re-attempt with a fresh hold instead of retrying
// a dead group.
type ConflictError struct {
	TripID int64
	Seats  []string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("seats not available on trip %d: %s", e.TripID, strings.Join(e.Seats, ", "))
}

func (e *ConflictError) Unwrap() error { return ErrConflict }
