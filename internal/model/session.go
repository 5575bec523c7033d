package model

import (
    "time"

    "github.com/shopspring/decimal"
)

// Session statuses.  A session is never deleted while bookings reference
// it; it is soft-cancelled or completed through its status.
const (
    SessionScheduled = "SCHEDULED"
    SessionCancelled = "CANCELLED"
    SessionCompleted = "COMPLETED"
)

// Session represents a single showtime of a movie at a theater with a
// fixed seat capacity.  It corresponds to a row in the `sessions` table
// plus the `session_seats` rows that record which seats are taken.
//
// Fields:
//  ID           – primary key identifier.
//  MovieID      – movie being screened.
//  TheaterID    – theater hosting the screening.
//  StartsAt     – when the session begins (UTC).
//  PricePerSeat – list price of a single seat.
//  TotalSeats   – seat capacity; immutable once created.
//  TakenSeats   – labels of seats currently claimed, sorted.
//  Status       – SCHEDULED, CANCELLED or COMPLETED.
//  Version      – optimistic locking token, bumped on every seat mutation.
//  CreatedAt    – creation timestamp.
//  UpdatedAt    – last update timestamp.
type Session struct {
    ID           uint64          `json:"id"`
    MovieID      uint64          `json:"movieRef"`
    TheaterID    uint64          `json:"theaterRef"`
    StartsAt     time.Time       `json:"startTime"`
    PricePerSeat decimal.Decimal `json:"pricePerSeat"`
    TotalSeats   uint32          `json:"totalSeats"`
    TakenSeats   []string        `json:"takenSeats"`
    Status       string          `json:"status"`
    Version      uint32          `json:"-"`
    CreatedAt    time.Time       `json:"createdAt"`
    UpdatedAt    time.Time       `json:"updatedAt"`
}

// AvailableSeats is derived from TotalSeats and TakenSeats and is never
// stored.  It never goes below zero.
func (s *Session) AvailableSeats() uint32 {
    taken := uint32(len(s.TakenSeats))
    if taken >= s.TotalSeats {
        return 0
    }
    return s.TotalSeats - taken
}

// OccupancyRate is the fraction of seats currently taken.  A session
// with no capacity reports zero.
func (s *Session) OccupancyRate() float64 {
    return Occupancy(uint64(len(s.TakenSeats)), uint64(s.TotalSeats))
}

// Taken reports which of the given labels are already claimed, in the
// order they were requested.
func (s *Session) Taken(seats []string) []string {
    idx := make(map[string]struct{}, len(s.TakenSeats))
    for _, l := range s.TakenSeats {
        idx[l] = struct{}{}
    }
    out := make([]string, 0)
    for _, l := range seats {
        if _, ok := idx[l]; ok {
            out = append(out, l)
        }
    }
    return out
}

// Occupancy returns taken/total, or zero when total is zero.
func Occupancy(taken, total uint64) float64 {
    if total == 0 {
        return 0
    }
    return float64(taken) / float64(total)
}
