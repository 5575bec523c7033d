// Package queue defines message payloads exchanged over the message broker.
package queue

import (
    "time"

    "github.com/shopspring/decimal"

    "github.com/iliyamo/cinema-booking/internal/model"
)

// Queue names.  Both are durable and bound to the default exchange.
const (
    BookingConfirmedQueue = "booking.confirmed"
    BookingCancelledQueue = "booking.cancelled"
)

// BookingConfirmedEvent is published after a booking commits.  It
// carries enough for downstream consumers to log, notify or feed
// analytics without querying the primary database.
type BookingConfirmedEvent struct {
    BookingID   uint64          `json:"booking_id"`
    UserID      uint64          `json:"user_id"`
    SessionID   uint64          `json:"session_id"`
    MovieID     uint64          `json:"movie_id"`
    TheaterID   uint64          `json:"theater_id"`
    Seats       []string        `json:"seats"`
    TotalPrice  decimal.Decimal `json:"total_price"`
    ConfirmedAt string          `json:"confirmed_at"`
}

// BookingCancelledEvent is published after a cancellation commits and
// its seats have been released.
type BookingCancelledEvent struct {
    BookingID   uint64   `json:"booking_id"`
    UserID      uint64   `json:"user_id"`
    SessionID   uint64   `json:"session_id"`
    Seats       []string `json:"seats"`
    Reason      string   `json:"reason,omitempty"`
    CancelledAt string   `json:"cancelled_at"`
}

// NewBookingConfirmedEvent builds the event for a confirmed booking.
func NewBookingConfirmedEvent(b *model.Booking) BookingConfirmedEvent {
    return BookingConfirmedEvent{
        BookingID:   b.ID,
        UserID:      b.UserID,
        SessionID:   b.SessionID,
        MovieID:     b.MovieID,
        TheaterID:   b.TheaterID,
        Seats:       b.Seats,
        TotalPrice:  b.TotalPrice,
        ConfirmedAt: b.BookingDate.UTC().Format(time.RFC3339),
    }
}

// NewBookingCancelledEvent builds the event for a cancelled booking.
func NewBookingCancelledEvent(b *model.Booking) BookingCancelledEvent {
    ev := BookingCancelledEvent{
        BookingID: b.ID,
        UserID:    b.UserID,
        SessionID: b.SessionID,
        Seats:     b.Seats,
    }
    if b.CancellationReason != nil {
        ev.Reason = *b.CancellationReason
    }
    if b.CancellationDate != nil {
        ev.CancelledAt = b.CancellationDate.UTC().Format(time.RFC3339)
    }
    return ev
}
