package repository

import (
    "context"
    "database/sql"
    "errors"
    "strings"
    "time"

    "github.com/iliyamo/cinema-booking/internal/database"
    "github.com/iliyamo/cinema-booking/internal/model"
)

// BookingRepo is the booking ledger.  Bookings are stored in the
// bookings table and their seat labels in booking_seats.  Rows are never
// deleted; cancellation and completion are status changes.
type BookingRepo struct {
    db *sql.DB
}

// NewBookingRepo returns a new BookingRepo bound to the given database.
func NewBookingRepo(db *sql.DB) *BookingRepo { return &BookingRepo{db: db} }

// BookingFilter defines filters and pagination for ListByUser.  UserID
// zero lists every user's bookings.  From is inclusive and To exclusive,
// both on booking_date.
type BookingFilter struct {
    UserID uint64
    Status string
    From   time.Time
    To     time.Time
    Page   int
    Limit  int
}

const (
    DefaultPageLimit = 20
    MaxPageLimit     = 100
)

// Normalize applies the default page and limit.
func (f *BookingFilter) Normalize() {
    if f.Page < 1 {
        f.Page = 1
    }
    if f.Limit < 1 {
        f.Limit = DefaultPageLimit
    }
    if f.Limit > MaxPageLimit {
        f.Limit = MaxPageLimit
    }
}

const bookingColumns = `id, session_id, user_id, movie_id, theater_id, total_price, status, booking_date,
    cancellation_reason, cancellation_date, created_at, updated_at`

func scanBooking(row interface{ Scan(...any) error }, b *model.Booking) error {
    var reason sql.NullString
    var cancelled sql.NullTime
    if err := row.Scan(&b.ID, &b.SessionID, &b.UserID, &b.MovieID, &b.TheaterID, &b.TotalPrice,
        &b.Status, &b.BookingDate, &reason, &cancelled, &b.CreatedAt, &b.UpdatedAt); err != nil {
        return err
    }
    if reason.Valid {
        s := reason.String
        b.CancellationReason = &s
    }
    if cancelled.Valid {
        t := cancelled.Time
        b.CancellationDate = &t
    }
    return nil
}

// Create inserts the booking and its seats.  An empty status defaults
// to PENDING.  The stored row is returned with its generated ID and
// timestamps.
func (r *BookingRepo) Create(ctx context.Context, b *model.Booking) (*model.Booking, error) {
    if b.Status == "" {
        b.Status = model.BookingPending
    }
    if b.BookingDate.IsZero() {
        b.BookingDate = time.Now().UTC()
    }
    q := database.Conn(ctx, r.db)
    const ins = `INSERT INTO bookings (session_id, user_id, movie_id, theater_id, total_price, status, booking_date)
        VALUES (?, ?, ?, ?, ?, ?, ?)`
    res, err := q.ExecContext(ctx, ins, b.SessionID, b.UserID, b.MovieID, b.TheaterID, b.TotalPrice, b.Status, b.BookingDate.UTC())
    if err != nil {
        return nil, err
    }
    id, err := res.LastInsertId()
    if err != nil {
        return nil, err
    }

    if len(b.Seats) > 0 {
        query := `INSERT INTO booking_seats (booking_id, seat_label) VALUES `
        args := make([]interface{}, 0, len(b.Seats)*2)
        for i, l := range b.Seats {
            if i > 0 {
                query += ","
            }
            query += "(?, ?)"
            args = append(args, id, l)
        }
        if _, err := q.ExecContext(ctx, query, args...); err != nil {
            return nil, err
        }
    }
    return r.Find(ctx, uint64(id))
}

// Find returns the booking with its seats sorted by label.
func (r *BookingRepo) Find(ctx context.Context, id uint64) (*model.Booking, error) {
    q := database.Conn(ctx, r.db)
    var b model.Booking
    err := scanBooking(q.QueryRowContext(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = ?`, id), &b)
    if errors.Is(err, sql.ErrNoRows) {
        return nil, ErrBookingNotFound
    }
    if err != nil {
        return nil, err
    }
    rows, err := q.QueryContext(ctx, `SELECT seat_label FROM booking_seats WHERE booking_id = ? ORDER BY seat_label`, id)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    b.Seats = make([]string, 0)
    for rows.Next() {
        var l string
        if err := rows.Scan(&l); err != nil {
            return nil, err
        }
        b.Seats = append(b.Seats, l)
    }
    if err := rows.Err(); err != nil {
        return nil, err
    }
    return &b, nil
}

// MarkCancelled moves a PENDING or CONFIRMED booking to CANCELLED and
// stamps the reason and date.  The update is conditional on the current
// status, so of two concurrent cancellations only one succeeds; the
// other gets a StatusError wrapping ErrBookingState.
func (r *BookingRepo) MarkCancelled(ctx context.Context, id uint64, reason string, at time.Time) (*model.Booking, error) {
    q := database.Conn(ctx, r.db)
    const upd = `UPDATE bookings SET status = 'CANCELLED', cancellation_reason = ?, cancellation_date = ?
        WHERE id = ? AND status IN ('PENDING','CONFIRMED')`
    var reasonArg any
    if strings.TrimSpace(reason) != "" {
        reasonArg = reason
    }
    res, err := q.ExecContext(ctx, upd, reasonArg, at.UTC(), id)
    if err != nil {
        return nil, err
    }
    n, err := res.RowsAffected()
    if err != nil {
        return nil, err
    }
    b, err := r.Find(ctx, id)
    if err != nil {
        return nil, err
    }
    if n == 0 {
        return nil, &StatusError{Err: ErrBookingState, Status: b.Status}
    }
    return b, nil
}

// ListByUser returns one page of bookings matching f, newest first,
// together with the total number of matches.
func (r *BookingRepo) ListByUser(ctx context.Context, f BookingFilter) ([]model.Booking, int64, error) {
    f.Normalize()
    q := database.Conn(ctx, r.db)

    where := []string{}
    args := []any{}
    if f.UserID != 0 {
        where = append(where, "user_id = ?")
        args = append(args, f.UserID)
    }
    if f.Status != "" {
        where = append(where, "status = ?")
        args = append(args, f.Status)
    }
    if !f.From.IsZero() {
        where = append(where, "booking_date >= ?")
        args = append(args, f.From.UTC())
    }
    if !f.To.IsZero() {
        where = append(where, "booking_date < ?")
        args = append(args, f.To.UTC())
    }
    cond := "1=1"
    if len(where) > 0 {
        cond = strings.Join(where, " AND ")
    }

    var total int64
    if err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM bookings WHERE `+cond, args...).Scan(&total); err != nil {
        return nil, 0, err
    }
    items := make([]model.Booking, 0)
    if total == 0 {
        return items, 0, nil
    }

    dataArgs := append(append([]any{}, args...), f.Limit, (f.Page-1)*f.Limit)
    rows, err := q.QueryContext(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE `+cond+` ORDER BY booking_date DESC, id DESC LIMIT ? OFFSET ?`, dataArgs...)
    if err != nil {
        return nil, 0, err
    }
    defer rows.Close()
    index := map[uint64]int{}
    for rows.Next() {
        var b model.Booking
        if err := scanBooking(rows, &b); err != nil {
            return nil, 0, err
        }
        b.Seats = make([]string, 0)
        index[b.ID] = len(items)
        items = append(items, b)
    }
    if err := rows.Err(); err != nil {
        return nil, 0, err
    }
    if len(items) == 0 {
        return items, total, nil
    }

    ids := make([]any, 0, len(items))
    for _, b := range items {
        ids = append(ids, b.ID)
    }
    seatRows, err := q.QueryContext(ctx, `SELECT booking_id, seat_label FROM booking_seats WHERE booking_id IN (`+placeholders(len(ids))+`) ORDER BY booking_id, seat_label`, ids...)
    if err != nil {
        return nil, 0, err
    }
    defer seatRows.Close()
    for seatRows.Next() {
        var bid uint64
        var label string
        if err := seatRows.Scan(&bid, &label); err != nil {
            return nil, 0, err
        }
        if i, ok := index[bid]; ok {
            items[i].Seats = append(items[i].Seats, label)
        }
    }
    if err := seatRows.Err(); err != nil {
        return nil, 0, err
    }
    return items, total, nil
}

// CompleteForSessions moves CONFIRMED bookings of COMPLETED sessions
// that started before the given instant to COMPLETED.  Seats stay
// taken.
func (r *BookingRepo) CompleteForSessions(ctx context.Context, before time.Time) (int64, error) {
    q := database.Conn(ctx, r.db)
    const upd = `UPDATE bookings b JOIN sessions s ON s.id = b.session_id
        SET b.status = 'COMPLETED'
        WHERE b.status = 'CONFIRMED' AND s.status = 'COMPLETED' AND s.starts_at < ?`
    res, err := q.ExecContext(ctx, upd, before.UTC())
    if err != nil {
        return 0, err
    }
    return res.RowsAffected()
}
