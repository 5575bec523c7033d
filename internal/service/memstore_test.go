package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/cinema-booking/internal/model"
	"github.com/iliyamo/cinema-booking/internal/repository"
)

// memStore is an in-memory registry, ledger, catalog and transactor.
// WithinTx serialises units of work behind one mutex and restores a
// snapshot when fn fails, which gives the same all-or-nothing behaviour
// as a database transaction.
type memStore struct {
	mu       sync.Mutex
	sessions map[uint64]*model.Session
	bookings map[uint64]*model.Booking
	movies   map[uint64]bool
	theaters map[uint64]bool
	users    map[uint64]*model.User
	nextID   uint64

	// fault injection, read and written under mu
	failCreate      error
	claimFailures   []error
	afterLoad       func(s *model.Session)
	beforeClaim     func(s *model.Session)
	claims, commits int
}

type inTxKey struct{}

func newMemStore() *memStore {
	return &memStore{
		sessions: map[uint64]*model.Session{},
		bookings: map[uint64]*model.Booking{},
		movies:   map[uint64]bool{7: true},
		theaters: map[uint64]bool{3: true},
		users: map[uint64]*model.User{
			5: {ID: 5, Email: "ana@example.com", Role: "CUSTOMER", IsActive: true},
			6: {ID: 6, Email: "bo@example.com", Role: "CUSTOMER", IsActive: true},
			8: {ID: 8, Email: "gone@example.com", Role: "CUSTOMER", IsActive: false},
		},
		nextID: 100,
	}
}

func (m *memStore) lock(ctx context.Context) func() {
	if ctx.Value(inTxKey{}) != nil {
		return func() {}
	}
	m.mu.Lock()
	return m.mu.Unlock
}

func (m *memStore) addSession(total uint32, taken ...string) *model.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	s := &model.Session{
		ID:           m.nextID,
		MovieID:      7,
		TheaterID:    3,
		StartsAt:     time.Date(2026, 3, 1, 19, 30, 0, 0, time.UTC),
		PricePerSeat: decimal.NewFromInt(10),
		TotalSeats:   total,
		TakenSeats:   append([]string{}, taken...),
		Status:       model.SessionScheduled,
	}
	sort.Strings(s.TakenSeats)
	m.sessions[s.ID] = s
	return copySession(s)
}

func copySession(s *model.Session) *model.Session {
	c := *s
	c.TakenSeats = append([]string{}, s.TakenSeats...)
	return &c
}

func copyBooking(b *model.Booking) *model.Booking {
	c := *b
	c.Seats = append([]string{}, b.Seats...)
	return &c
}

func (m *memStore) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(inTxKey{}) != nil {
		return fn(ctx)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	sessions := make(map[uint64]*model.Session, len(m.sessions))
	for id, s := range m.sessions {
		sessions[id] = copySession(s)
	}
	bookings := make(map[uint64]*model.Booking, len(m.bookings))
	for id, b := range m.bookings {
		bookings[id] = copyBooking(b)
	}
	nextID := m.nextID

	if err := fn(context.WithValue(ctx, inTxKey{}, true)); err != nil {
		m.sessions, m.bookings, m.nextID = sessions, bookings, nextID
		return err
	}
	m.commits++
	return nil
}

func (m *memStore) Load(ctx context.Context, id uint64) (*model.Session, error) {
	defer m.lock(ctx)()
	s, ok := m.sessions[id]
	if !ok {
		return nil, repository.ErrSessionNotFound
	}
	out := copySession(s)
	if m.afterLoad != nil && ctx.Value(inTxKey{}) == nil {
		m.afterLoad(s)
	}
	return out, nil
}

func (m *memStore) ClaimSeats(ctx context.Context, id uint64, seats []string, expectedVersion uint32) (*model.Session, error) {
	defer m.lock(ctx)()
	m.claims++
	if len(m.claimFailures) > 0 {
		err := m.claimFailures[0]
		m.claimFailures = m.claimFailures[1:]
		return nil, err
	}
	s, ok := m.sessions[id]
	if !ok {
		return nil, repository.ErrSessionNotFound
	}
	if m.beforeClaim != nil {
		m.beforeClaim(s)
	}
	if s.Status != model.SessionScheduled {
		return nil, &repository.StatusError{Err: repository.ErrSessionNotOpen, Status: s.Status}
	}
	if s.Version != expectedVersion {
		return nil, repository.ErrVersionConflict
	}
	if len(s.Taken(seats)) > 0 {
		return nil, repository.ErrSeatConflict
	}
	if uint64(len(s.TakenSeats)+len(seats)) > uint64(s.TotalSeats) {
		return nil, repository.ErrCapacityExceeded
	}
	s.TakenSeats = append(s.TakenSeats, seats...)
	sort.Strings(s.TakenSeats)
	s.Version++
	return copySession(s), nil
}

func (m *memStore) ReleaseSeats(ctx context.Context, id uint64, seats []string) (*model.Session, error) {
	defer m.lock(ctx)()
	s, ok := m.sessions[id]
	if !ok {
		return nil, repository.ErrSessionNotFound
	}
	drop := make(map[string]bool, len(seats))
	for _, l := range seats {
		drop[l] = true
	}
	kept := make([]string, 0, len(s.TakenSeats))
	for _, l := range s.TakenSeats {
		if !drop[l] {
			kept = append(kept, l)
		}
	}
	s.TakenSeats = kept
	s.Version++
	return copySession(s), nil
}

func (m *memStore) Create(ctx context.Context, b *model.Booking) (*model.Booking, error) {
	defer m.lock(ctx)()
	if m.failCreate != nil {
		return nil, m.failCreate
	}
	m.nextID++
	c := copyBooking(b)
	c.ID = m.nextID
	if c.Status == "" {
		c.Status = model.BookingPending
	}
	sort.Strings(c.Seats)
	c.CreatedAt, c.UpdatedAt = c.BookingDate, c.BookingDate
	m.bookings[c.ID] = c
	return copyBooking(c), nil
}

func (m *memStore) Find(ctx context.Context, id uint64) (*model.Booking, error) {
	defer m.lock(ctx)()
	b, ok := m.bookings[id]
	if !ok {
		return nil, repository.ErrBookingNotFound
	}
	return copyBooking(b), nil
}

func (m *memStore) MarkCancelled(ctx context.Context, id uint64, reason string, at time.Time) (*model.Booking, error) {
	defer m.lock(ctx)()
	b, ok := m.bookings[id]
	if !ok {
		return nil, repository.ErrBookingNotFound
	}
	if !b.Cancellable() {
		return nil, &repository.StatusError{Err: repository.ErrBookingState, Status: b.Status}
	}
	b.Status = model.BookingCancelled
	if reason != "" {
		b.CancellationReason = &reason
	}
	b.CancellationDate = &at
	b.UpdatedAt = at
	return copyBooking(b), nil
}

func (m *memStore) ListByUser(ctx context.Context, f repository.BookingFilter) ([]model.Booking, int64, error) {
	defer m.lock(ctx)()
	f.Normalize()
	all := make([]model.Booking, 0)
	for _, b := range m.bookings {
		if f.UserID != 0 && b.UserID != f.UserID {
			continue
		}
		if f.Status != "" && b.Status != f.Status {
			continue
		}
		all = append(all, *copyBooking(b))
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID > all[j].ID })
	start := (f.Page - 1) * f.Limit
	if start > len(all) {
		start = len(all)
	}
	end := min(start+f.Limit, len(all))
	return all[start:end], int64(len(all)), nil
}

func (m *memStore) GetMovie(ctx context.Context, id uint64) (*model.Movie, error) {
	if !m.movies[id] {
		return nil, repository.ErrMovieNotFound
	}
	return &model.Movie{ID: id, Title: "Arrival"}, nil
}

func (m *memStore) GetTheater(ctx context.Context, id uint64) (*model.Theater, error) {
	if !m.theaters[id] {
		return nil, repository.ErrTheaterNotFound
	}
	return &model.Theater{ID: id, Name: "Odeon"}, nil
}

func (m *memStore) GetUser(ctx context.Context, id uint64) (*model.User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	c := *u
	return &c, nil
}

// session returns a copy of the stored session.
func (m *memStore) session(id uint64) *model.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return copySession(m.sessions[id])
}

// activeSeats returns the union of seats over non-cancelled bookings of
// a session, with duplicates preserved so callers can detect them.
func (m *memStore) activeSeats(sessionID uint64) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0)
	for _, b := range m.bookings {
		if b.SessionID == sessionID && b.Active() {
			out = append(out, b.Seats...)
		}
	}
	sort.Strings(out)
	return out
}

// recordingPublisher remembers published events.
type recordingPublisher struct {
	mu        sync.Mutex
	confirmed []uint64
	cancelled []uint64
	err       error
}

func (p *recordingPublisher) BookingConfirmed(_ context.Context, b *model.Booking) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.confirmed = append(p.confirmed, b.ID)
	return p.err
}

func (p *recordingPublisher) BookingCancelled(_ context.Context, b *model.Booking) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cancelled = append(p.cancelled, b.ID)
	return p.err
}
