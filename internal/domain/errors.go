package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for registry-level error handling.
// The handler layer maps these to HTTP status codes.
var (
	ErrOrderNotFound    = errors.New("order_not_found")
	ErrDuplicateOrderID = errors.New("duplicate_order_id")
)

// ValidationError represents a malformed order field.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// RiskCheckError reports that one or more risk checks rejected an
// order at admission. Reasons preserves check registration order.
type RiskCheckError struct {
	Reasons []string
}

func (e *RiskCheckError) Error() string {
	return "risk check failed: " + strings.Join(e.Reasons, "; ")
}

// InvalidTransitionError reports a status change not permitted from the
// order's current state.
type InvalidTransitionError struct {
	From OrderStatus
	To   OrderStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition from %s to %s", e.From, e.To)
}

// PersistenceError reports an I/O or format/version failure during
// snapshot save or load. The live registry is never affected by an
// operation that returns one.
type PersistenceError struct {
	Op  string // "save" or "load"
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("snapshot %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
