package service

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/cinema-booking/internal/model"
	"github.com/iliyamo/cinema-booking/internal/repository"
)

// SessionLister returns sessions with their taken seats.
type SessionLister interface {
	List(ctx context.Context, f repository.SessionFilter) ([]model.Session, error)
}

// StatsStore runs the booking and occupancy aggregations.
type StatsStore interface {
	BookingTotals(ctx context.Context, f repository.StatsFilter) ([]repository.StatusTotal, error)
	MovieOccupancy(ctx context.Context, f repository.StatsFilter) ([]repository.MovieOccupancyRow, error)
}

// AvailabilityService is the read-only reporter.  It never writes and
// never locks.
type AvailabilityService struct {
	sessions SessionLister
	stats    StatsStore
}

func NewAvailabilityService(sessions SessionLister, stats StatsStore) *AvailabilityService {
	return &AvailabilityService{sessions: sessions, stats: stats}
}

// AvailabilityQuery selects sessions by movie or theater.  Date picks a
// single UTC day; otherwise From/To bound the start time.
type AvailabilityQuery struct {
	MovieID   uint64
	TheaterID uint64
	Date      time.Time
	From      time.Time
	To        time.Time
}

// SessionAvailability is a session with its derived seat figures.
type SessionAvailability struct {
	model.Session
	AvailableSeats uint32  `json:"availableSeats"`
	OccupancyRate  float64 `json:"occupancyRate"`
}

// Availability lists matching sessions with availableSeats and
// occupancyRate computed from their taken seats.
func (s *AvailabilityService) Availability(ctx context.Context, q AvailabilityQuery) ([]SessionAvailability, error) {
	if q.MovieID == 0 && q.TheaterID == 0 {
		return nil, ValidationError("movieRef")
	}
	f := repository.SessionFilter{MovieID: q.MovieID, TheaterID: q.TheaterID, From: q.From, To: q.To}
	if !q.Date.IsZero() {
		day := time.Date(q.Date.Year(), q.Date.Month(), q.Date.Day(), 0, 0, 0, 0, time.UTC)
		f.From, f.To = day, day.AddDate(0, 0, 1)
	}
	if !f.From.IsZero() && !f.To.IsZero() && f.To.Before(f.From) {
		return nil, ValidationError("endDate")
	}
	sessions, err := s.sessions.List(ctx, f)
	if err != nil {
		return nil, translateStoreError(err)
	}
	out := make([]SessionAvailability, 0, len(sessions))
	for _, sess := range sessions {
		out = append(out, SessionAvailability{
			Session:        sess,
			AvailableSeats: sess.AvailableSeats(),
			OccupancyRate:  sess.OccupancyRate(),
		})
	}
	return out, nil
}

// StatsQuery restricts the statistics.  All fields are optional.
type StatsQuery struct {
	MovieID   uint64
	TheaterID uint64
	From      time.Time
	To        time.Time
}

// MovieOccupancy is the occupancy of one movie across its sessions.
type MovieOccupancy struct {
	MovieID       uint64  `json:"movieRef"`
	Sessions      int64   `json:"sessions"`
	TotalSeats    int64   `json:"totalSeats"`
	TakenSeats    int64   `json:"takenSeats"`
	OccupancyRate float64 `json:"occupancyRate"`
}

// BookingStats aggregates bookings and occupancy.
type BookingStats struct {
	TotalBookings int64            `json:"totalBookings"`
	ByStatus      map[string]int64 `json:"byStatus"`
	Revenue       decimal.Decimal  `json:"revenue"`
	SeatsSold     int64            `json:"seatsSold"`
	Movies        []MovieOccupancy `json:"movies"`
}

// Stats counts bookings per status, sums revenue and seats over
// CONFIRMED and COMPLETED bookings, and reports per-movie occupancy.
func (s *AvailabilityService) Stats(ctx context.Context, q StatsQuery) (*BookingStats, error) {
	if !q.From.IsZero() && !q.To.IsZero() && q.To.Before(q.From) {
		return nil, ValidationError("endDate")
	}
	f := repository.StatsFilter{MovieID: q.MovieID, TheaterID: q.TheaterID, From: q.From, To: q.To}
	totals, err := s.stats.BookingTotals(ctx, f)
	if err != nil {
		return nil, translateStoreError(err)
	}
	movies, err := s.stats.MovieOccupancy(ctx, f)
	if err != nil {
		return nil, translateStoreError(err)
	}

	out := &BookingStats{
		ByStatus: map[string]int64{
			model.BookingPending:   0,
			model.BookingConfirmed: 0,
			model.BookingCancelled: 0,
			model.BookingCompleted: 0,
		},
		Revenue: decimal.Zero,
		Movies:  make([]MovieOccupancy, 0, len(movies)),
	}
	for _, t := range totals {
		out.ByStatus[t.Status] += t.Count
		out.TotalBookings += t.Count
		if t.Status == model.BookingConfirmed || t.Status == model.BookingCompleted {
			out.Revenue = out.Revenue.Add(t.Revenue)
			out.SeatsSold += t.Seats
		}
	}
	for _, m := range movies {
		out.Movies = append(out.Movies, MovieOccupancy{
			MovieID:       m.MovieID,
			Sessions:      m.Sessions,
			TotalSeats:    m.TotalSeats,
			TakenSeats:    m.Taken,
			OccupancyRate: model.Occupancy(uint64(max(m.Taken, 0)), uint64(max(m.TotalSeats, 0))),
		})
	}
	return out, nil
}
