package service

import (
	"fmt"
	"strings"
)

// Kind classifies a service error.  Handlers map kinds to HTTP status
// codes; the string value is what clients see.
type Kind string

const (
	KindNotFound             Kind = "not_found"
	KindInsufficientCapacity Kind = "insufficient_capacity"
	KindSeatsUnavailable     Kind = "seats_unavailable"
	KindInvalidState         Kind = "invalid_state"
	KindValidation           Kind = "validation_error"
	KindTransient            Kind = "transient_store_error"
)

// Error is the typed error returned by every service operation.  Only
// the field matching Kind is populated.
type Error struct {
	Kind   Kind
	Entity string   // not_found: movie, theater, session, user, booking
	Seats  []string // seats_unavailable: the conflicting labels
	Status string   // invalid_state: the current status
	Field  string   // validation_error: the offending input field
	Err    error    // underlying cause, never shown to clients
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindNotFound:
		return e.Entity + " not found"
	case KindInsufficientCapacity:
		return "not enough seats available"
	case KindSeatsUnavailable:
		return "seats unavailable: " + strings.Join(e.Seats, ", ")
	case KindInvalidState:
		return "invalid state: " + strings.ToLower(e.Status)
	case KindValidation:
		return "invalid " + e.Field
	case KindTransient:
		return fmt.Sprintf("store temporarily unavailable: %v", e.Err)
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches on kind, so errors.Is(err, &Error{Kind: KindNotFound})
// works regardless of the other fields.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

func NotFound(entity string) *Error { return &Error{Kind: KindNotFound, Entity: entity} }

func InsufficientCapacity() *Error { return &Error{Kind: KindInsufficientCapacity} }

func SeatsUnavailable(seats []string) *Error {
	return &Error{Kind: KindSeatsUnavailable, Seats: append([]string(nil), seats...)}
}

func InvalidState(status string) *Error { return &Error{Kind: KindInvalidState, Status: status} }

func ValidationError(field string) *Error { return &Error{Kind: KindValidation, Field: field} }

func TransientStoreError(err error) *Error { return &Error{Kind: KindTransient, Err: err} }
