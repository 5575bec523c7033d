package model

import (
    "time"

    "github.com/shopspring/decimal"
)

// Booking statuses.
const (
    BookingPending   = "PENDING"
    BookingConfirmed = "CONFIRMED"
    BookingCancelled = "CANCELLED"
    BookingCompleted = "COMPLETED"
)

// Booking records a user's claim on one or more seats of a session.  It
// aggregates the seats claimed in a single reservation attempt and
// tracks the overall status and total price.  Bookings are never
// physically deleted; cancellation is a status transition.
//
// Fields:
//  ID                 – primary key identifier.
//  SessionID          – session the seats belong to.
//  UserID             – user who made the booking.
//  MovieID            – movie of the session (denormalized for reporting).
//  TheaterID          – theater of the session (denormalized for reporting).
//  Seats              – seat labels, stored in booking_seats.
//  TotalPrice         – amount charged for all seats.
//  Status             – PENDING, CONFIRMED, CANCELLED or COMPLETED.
//  BookingDate        – when the booking was made.
//  CancellationReason – free text supplied on cancellation (nullable).
//  CancellationDate   – when the booking was cancelled (nullable).
type Booking struct {
    ID                 uint64          `json:"id"`
    SessionID          uint64          `json:"sessionRef"`
    UserID             uint64          `json:"userRef"`
    MovieID            uint64          `json:"movieRef"`
    TheaterID          uint64          `json:"theaterRef"`
    Seats              []string        `json:"seats"`
    TotalPrice         decimal.Decimal `json:"totalPrice"`
    Status             string          `json:"status"`
    BookingDate        time.Time       `json:"bookingDate"`
    CancellationReason *string         `json:"cancellationReason,omitempty"`
    CancellationDate   *time.Time      `json:"cancellationDate,omitempty"`
    CreatedAt          time.Time       `json:"createdAt"`
    UpdatedAt          time.Time       `json:"updatedAt"`
}

// Active reports whether the booking still holds its seats.
func (b *Booking) Active() bool {
    return b.Status == BookingPending || b.Status == BookingConfirmed || b.Status == BookingCompleted
}

// Cancellable reports whether the booking may transition to CANCELLED.
func (b *Booking) Cancellable() bool {
    return b.Status == BookingPending || b.Status == BookingConfirmed
}
