package service

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/iliyamo/cinema-booking/internal/model"
)

// SessionScheduler creates sessions.
type SessionScheduler interface {
	Schedule(ctx context.Context, s *model.Session) (*model.Session, error)
}

// ScheduleInput describes a new session.
type ScheduleInput struct {
	MovieID      uint64
	TheaterID    uint64
	StartsAt     time.Time
	PricePerSeat decimal.Decimal
	TotalSeats   uint32
}

// SessionService schedules showtimes after checking that the movie and
// theater exist.
type SessionService struct {
	sessions SessionScheduler
	catalog  Catalog
	now      func() time.Time
	log      *zap.Logger
}

func NewSessionService(sessions SessionScheduler, catalog Catalog, log *zap.Logger) *SessionService {
	if log == nil {
		log = zap.NewNop()
	}
	return &SessionService{
		sessions: sessions,
		catalog:  catalog,
		now:      func() time.Time { return time.Now().UTC() },
		log:      log.Named("sessions"),
	}
}

// Schedule creates a SCHEDULED session with no taken seats.  The start
// time must be in the future.
func (s *SessionService) Schedule(ctx context.Context, in ScheduleInput) (*model.Session, error) {
	switch {
	case in.MovieID == 0:
		return nil, ValidationError("movieRef")
	case in.TheaterID == 0:
		return nil, ValidationError("theaterRef")
	case in.StartsAt.IsZero() || !in.StartsAt.After(s.now()):
		return nil, ValidationError("startTime")
	case in.PricePerSeat.IsNegative():
		return nil, ValidationError("pricePerSeat")
	case in.TotalSeats == 0:
		return nil, ValidationError("totalSeats")
	}
	if _, err := s.catalog.GetMovie(ctx, in.MovieID); err != nil {
		return nil, translateStoreError(err)
	}
	if _, err := s.catalog.GetTheater(ctx, in.TheaterID); err != nil {
		return nil, translateStoreError(err)
	}
	sess, err := s.sessions.Schedule(ctx, &model.Session{
		MovieID:      in.MovieID,
		TheaterID:    in.TheaterID,
		StartsAt:     in.StartsAt.UTC(),
		PricePerSeat: in.PricePerSeat,
		TotalSeats:   in.TotalSeats,
	})
	if err != nil {
		return nil, translateStoreError(err)
	}
	s.log.Info("session scheduled",
		zap.Uint64("session_id", sess.ID),
		zap.Uint64("movie_id", sess.MovieID),
		zap.Uint64("theater_id", sess.TheaterID),
		zap.Time("starts_at", sess.StartsAt))
	return sess, nil
}
