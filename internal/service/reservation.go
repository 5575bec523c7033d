package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/iliyamo/cinema-booking/internal/model"
	"github.com/iliyamo/cinema-booking/internal/repository"
)

// SessionRegistry owns the seat-capacity state of sessions.
type SessionRegistry interface {
	Load(ctx context.Context, id uint64) (*model.Session, error)
	ClaimSeats(ctx context.Context, id uint64, seats []string, expectedVersion uint32) (*model.Session, error)
	ReleaseSeats(ctx context.Context, id uint64, seats []string) (*model.Session, error)
}

// BookingLedger owns booking records.
type BookingLedger interface {
	Create(ctx context.Context, b *model.Booking) (*model.Booking, error)
	Find(ctx context.Context, id uint64) (*model.Booking, error)
	MarkCancelled(ctx context.Context, id uint64, reason string, at time.Time) (*model.Booking, error)
	ListByUser(ctx context.Context, f repository.BookingFilter) ([]model.Booking, int64, error)
}

// Catalog resolves the entities a booking references.
type Catalog interface {
	GetMovie(ctx context.Context, id uint64) (*model.Movie, error)
	GetTheater(ctx context.Context, id uint64) (*model.Theater, error)
	GetUser(ctx context.Context, id uint64) (*model.User, error)
}

// Transactor runs fn inside one all-or-nothing unit of work.  An error
// returned by fn undoes every write fn made.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// EventPublisher announces committed booking changes.  Publishing is
// best effort; a failure never undoes a committed booking.
type EventPublisher interface {
	BookingConfirmed(ctx context.Context, b *model.Booking) error
	BookingCancelled(ctx context.Context, b *model.Booking) error
}

// NoopPublisher discards events.  Used when no broker is configured.
type NoopPublisher struct{}

func (NoopPublisher) BookingConfirmed(context.Context, *model.Booking) error { return nil }
func (NoopPublisher) BookingCancelled(context.Context, *model.Booking) error { return nil }

// ReservationConfig tunes the coordinator's retry behaviour.
type ReservationConfig struct {
	MaxClaimAttempts int           // seat-claim attempts before giving up with seats_unavailable
	TxRetries        int           // attempts of one unit of work on transient store errors
	RetryBase        time.Duration // first backoff interval between transient retries
	PublishTimeout   time.Duration // upper bound on announcing a committed change
	Now              func() time.Time
}

func (c *ReservationConfig) setDefaults() {
	if c.MaxClaimAttempts <= 0 {
		c.MaxClaimAttempts = 3
	}
	if c.TxRetries <= 0 {
		c.TxRetries = 3
	}
	if c.RetryBase <= 0 {
		c.RetryBase = 20 * time.Millisecond
	}
	if c.PublishTimeout <= 0 {
		c.PublishTimeout = 2 * time.Second
	}
	if c.Now == nil {
		c.Now = func() time.Time { return time.Now().UTC() }
	}
}

// maxSeatLabel matches session_seats.seat_label.
const maxSeatLabel = 16

// ReservationService is the reservation coordinator.  It is the only
// writer of a session's taken seats and of booking status, and it runs
// every claim+persist and release+cancel pair as one transaction.
type ReservationService struct {
	sessions SessionRegistry
	bookings BookingLedger
	catalog  Catalog
	tx       Transactor
	events   EventPublisher
	cfg      ReservationConfig
	log      *zap.Logger
}

// NewReservationService wires the coordinator.  A nil publisher or
// logger is replaced with a no-op.
func NewReservationService(sessions SessionRegistry, bookings BookingLedger, catalog Catalog, tx Transactor,
	events EventPublisher, cfg ReservationConfig, log *zap.Logger) *ReservationService {
	cfg.setDefaults()
	if events == nil {
		events = NoopPublisher{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &ReservationService{
		sessions: sessions,
		bookings: bookings,
		catalog:  catalog,
		tx:       tx,
		events:   events,
		cfg:      cfg,
		log:      log.Named("reservation"),
	}
}

// CreateBookingInput is a booking request.  Seats are labels such as
// "A1"; TotalPrice is charged as given.
type CreateBookingInput struct {
	MovieID    uint64
	TheaterID  uint64
	SessionID  uint64
	UserID     uint64
	Seats      []string
	TotalPrice decimal.Decimal
}

func (in *CreateBookingInput) validate() error {
	switch {
	case in.MovieID == 0:
		return ValidationError("movieRef")
	case in.TheaterID == 0:
		return ValidationError("theaterRef")
	case in.SessionID == 0:
		return ValidationError("sessionRef")
	case in.UserID == 0:
		return ValidationError("userRef")
	case len(in.Seats) == 0:
		return ValidationError("seats")
	case in.TotalPrice.IsNegative():
		return ValidationError("totalPrice")
	}
	seen := make(map[string]struct{}, len(in.Seats))
	for i, l := range in.Seats {
		l = strings.TrimSpace(l)
		if l == "" || len(l) > maxSeatLabel {
			return ValidationError("seats")
		}
		if _, dup := seen[l]; dup {
			return ValidationError("seats")
		}
		seen[l] = struct{}{}
		in.Seats[i] = l
	}
	return nil
}

// CreateBooking validates the references, claims the seats and writes
// a CONFIRMED booking in one transaction.
//
// References are checked movie, theater, session, user; the first
// missing one is reported.  The capacity and taken-seat checks on the
// loaded session are a fast path only: the claim itself is a
// conditional write, and when it loses a race the session is re-read
// and the claim retried up to MaxClaimAttempts times.  If the booking
// write fails after the claim, the transaction rollback releases the
// seats again before the error is returned.
func (s *ReservationService) CreateBooking(ctx context.Context, in CreateBookingInput) (*model.Booking, error) {
	in.Seats = append([]string(nil), in.Seats...)
	if err := in.validate(); err != nil {
		return nil, err
	}

	// Validating
	if _, err := s.catalog.GetMovie(ctx, in.MovieID); err != nil {
		return nil, translateStoreError(err)
	}
	if _, err := s.catalog.GetTheater(ctx, in.TheaterID); err != nil {
		return nil, translateStoreError(err)
	}
	sess, err := s.sessions.Load(ctx, in.SessionID)
	if err != nil {
		return nil, translateStoreError(err)
	}
	user, err := s.catalog.GetUser(ctx, in.UserID)
	if err != nil {
		return nil, translateStoreError(err)
	}
	if !user.IsActive {
		return nil, NotFound("user")
	}
	if sess.MovieID != in.MovieID || sess.TheaterID != in.TheaterID {
		return nil, ValidationError("sessionRef")
	}
	if sess.Status != model.SessionScheduled {
		return nil, InvalidState(sess.Status)
	}
	if uint64(len(in.Seats)) > uint64(sess.AvailableSeats()) {
		return nil, InsufficientCapacity()
	}

	// Reserving + Persisting
	for attempt := 1; ; attempt++ {
		if taken := sess.Taken(in.Seats); len(taken) > 0 {
			return nil, SeatsUnavailable(taken)
		}
		booking, err := s.reserve(ctx, sess, in)
		if err == nil {
			s.log.Info("booking confirmed",
				zap.Uint64("booking_id", booking.ID),
				zap.Uint64("session_id", booking.SessionID),
				zap.Strings("seats", booking.Seats),
				zap.Int("attempt", attempt))
			s.publish(ctx, "booking confirmed", booking, s.events.BookingConfirmed)
			return booking, nil
		}
		if !errors.Is(err, repository.ErrSeatConflict) && !errors.Is(err, repository.ErrVersionConflict) {
			return nil, translateStoreError(err)
		}

		s.log.Debug("seat claim conflict",
			zap.Uint64("session_id", in.SessionID),
			zap.Uint32("version", sess.Version),
			zap.Int("attempt", attempt),
			zap.Error(err))
		if sess, err = s.sessions.Load(ctx, in.SessionID); err != nil {
			return nil, translateStoreError(err)
		}
		if sess.Status != model.SessionScheduled {
			return nil, InvalidState(sess.Status)
		}
		if taken := sess.Taken(in.Seats); len(taken) > 0 {
			return nil, SeatsUnavailable(taken)
		}
		if uint64(len(in.Seats)) > uint64(sess.AvailableSeats()) {
			return nil, InsufficientCapacity()
		}
		if attempt >= s.cfg.MaxClaimAttempts {
			// The seats are still free; only the session kept changing under us.
			s.log.Warn("seat claim attempts exhausted under contention",
				zap.Uint64("session_id", in.SessionID),
				zap.Int("attempts", attempt))
			return nil, TransientStoreError(repository.ErrVersionConflict)
		}
	}
}

// reserve claims the seats at the version read in sess and writes the
// booking, both inside one transaction.
func (s *ReservationService) reserve(ctx context.Context, sess *model.Session, in CreateBookingInput) (*model.Booking, error) {
	var out *model.Booking
	err := s.atomic(ctx, "create booking", func(ctx context.Context) error {
		if _, err := s.sessions.ClaimSeats(ctx, sess.ID, in.Seats, sess.Version); err != nil {
			return err
		}
		b, err := s.bookings.Create(ctx, &model.Booking{
			SessionID:   sess.ID,
			UserID:      in.UserID,
			MovieID:     sess.MovieID,
			TheaterID:   sess.TheaterID,
			Seats:       in.Seats,
			TotalPrice:  in.TotalPrice,
			Status:      model.BookingConfirmed,
			BookingDate: s.cfg.Now(),
		})
		if err != nil {
			s.log.Error("booking write failed after seat claim, rolling back claim",
				zap.Uint64("session_id", sess.ID),
				zap.Strings("seats", in.Seats),
				zap.Error(err))
			return err
		}
		out = b
		return nil
	})
	return out, err
}

// CancelBooking cancels a PENDING or CONFIRMED booking and releases
// exactly its seats in the same transaction.  Cancelling twice yields
// invalid_state with the current status.
func (s *ReservationService) CancelBooking(ctx context.Context, id uint64, reason string) (*model.Booking, error) {
	if id == 0 {
		return nil, ValidationError("id")
	}
	b, err := s.bookings.Find(ctx, id)
	if err != nil {
		return nil, translateStoreError(err)
	}
	if !b.Cancellable() {
		return nil, InvalidState(b.Status)
	}

	var out *model.Booking
	err = s.atomic(ctx, "cancel booking", func(ctx context.Context) error {
		cancelled, err := s.bookings.MarkCancelled(ctx, id, strings.TrimSpace(reason), s.cfg.Now())
		if err != nil {
			return err
		}
		if _, err := s.sessions.ReleaseSeats(ctx, cancelled.SessionID, cancelled.Seats); err != nil {
			return err
		}
		out = cancelled
		return nil
	})
	if err != nil {
		return nil, translateStoreError(err)
	}
	s.log.Info("booking cancelled",
		zap.Uint64("booking_id", out.ID),
		zap.Uint64("session_id", out.SessionID),
		zap.Strings("seats", out.Seats))
	s.publish(ctx, "booking cancelled", out, s.events.BookingCancelled)
	return out, nil
}

// publish announces a committed change.  The broker gets at most
// PublishTimeout; a failure is logged and never reaches the caller.
func (s *ReservationService) publish(ctx context.Context, what string, b *model.Booking,
	send func(context.Context, *model.Booking) error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.PublishTimeout)
	defer cancel()
	if err := send(ctx, b); err != nil {
		s.log.Warn("publish "+what, zap.Uint64("booking_id", b.ID), zap.Error(err))
	}
}

// GetBooking returns a single booking.
func (s *ReservationService) GetBooking(ctx context.Context, id uint64) (*model.Booking, error) {
	b, err := s.bookings.Find(ctx, id)
	if err != nil {
		return nil, translateStoreError(err)
	}
	return b, nil
}

// BookingPage is one page of ListBookings.
type BookingPage struct {
	Items []model.Booking `json:"items"`
	Total int64           `json:"total"`
	Page  int             `json:"page"`
	Limit int             `json:"limit"`
}

// ListBookings returns a user's bookings, newest first.
func (s *ReservationService) ListBookings(ctx context.Context, f repository.BookingFilter) (*BookingPage, error) {
	f.Status = strings.ToUpper(strings.TrimSpace(f.Status))
	switch f.Status {
	case "", model.BookingPending, model.BookingConfirmed, model.BookingCancelled, model.BookingCompleted:
	default:
		return nil, ValidationError("status")
	}
	if !f.From.IsZero() && !f.To.IsZero() && f.To.Before(f.From) {
		return nil, ValidationError("endDate")
	}
	f.Normalize()
	items, total, err := s.bookings.ListByUser(ctx, f)
	if err != nil {
		return nil, translateStoreError(err)
	}
	return &BookingPage{Items: items, Total: total, Page: f.Page, Limit: f.Limit}, nil
}

// atomic runs fn in a transaction, retrying the whole unit with
// exponential backoff while the store reports transient failures.
// Business errors end the loop at once.
func (s *ReservationService) atomic(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.cfg.RetryBase
	b.MaxInterval = 20 * s.cfg.RetryBase

	attempt := 0
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		attempt++
		err := s.tx.WithinTx(ctx, fn)
		if err == nil {
			return struct{}{}, nil
		}
		if repository.IsTransient(err) {
			s.log.Warn("transient store error", zap.String("op", op), zap.Int("attempt", attempt), zap.Error(err))
			return struct{}{}, err
		}
		return struct{}{}, backoff.Permanent(err)
	}, backoff.WithBackOff(b), backoff.WithMaxTries(uint(s.cfg.TxRetries)))
	return err
}

// translateStoreError turns repository errors into service errors.
// Unknown errors are wrapped and surface as internal errors.
func translateStoreError(err error) error {
	var se *Error
	if errors.As(err, &se) {
		return se
	}
	var status *repository.StatusError
	switch {
	case errors.Is(err, repository.ErrMovieNotFound):
		return NotFound("movie")
	case errors.Is(err, repository.ErrTheaterNotFound):
		return NotFound("theater")
	case errors.Is(err, repository.ErrSessionNotFound):
		return NotFound("session")
	case errors.Is(err, repository.ErrUserNotFound):
		return NotFound("user")
	case errors.Is(err, repository.ErrBookingNotFound):
		return NotFound("booking")
	case errors.Is(err, repository.ErrCapacityExceeded):
		return InsufficientCapacity()
	case errors.As(err, &status):
		return InvalidState(status.Status)
	case repository.IsTransient(err):
		return TransientStoreError(err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return TransientStoreError(err)
	}
	return fmt.Errorf("store: %w", err)
}
