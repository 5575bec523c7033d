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

// SessionRepo is the session registry.  It owns the seat-capacity state
// of every showtime: the sessions row and the session_seats rows that
// record which labels are taken.  Every method resolves its connection
// through database.Conn so it joins the caller's transaction when one
// is bound to the context.
type SessionRepo struct {
    db *sql.DB
}

// NewSessionRepo returns a new SessionRepo bound to the given database.
func NewSessionRepo(db *sql.DB) *SessionRepo { return &SessionRepo{db: db} }

// SessionFilter narrows List.  Zero values are ignored.  From is
// inclusive, To is exclusive.
type SessionFilter struct {
    MovieID   uint64
    TheaterID uint64
    From      time.Time
    To        time.Time
}

const sessionColumns = `id, movie_id, theater_id, starts_at, price_per_seat, total_seats, status, version, created_at, updated_at`

func scanSession(row interface{ Scan(...any) error }, s *model.Session) error {
    return row.Scan(&s.ID, &s.MovieID, &s.TheaterID, &s.StartsAt, &s.PricePerSeat,
        &s.TotalSeats, &s.Status, &s.Version, &s.CreatedAt, &s.UpdatedAt)
}

// Schedule inserts a new SCHEDULED session with version 0 and no taken
// seats, and returns the stored row.
func (r *SessionRepo) Schedule(ctx context.Context, s *model.Session) (*model.Session, error) {
    q := database.Conn(ctx, r.db)
    const ins = `INSERT INTO sessions (movie_id, theater_id, starts_at, price_per_seat, total_seats, status, version)
        VALUES (?, ?, ?, ?, ?, 'SCHEDULED', 0)`
    res, err := q.ExecContext(ctx, ins, s.MovieID, s.TheaterID, s.StartsAt.UTC(), s.PricePerSeat, s.TotalSeats)
    if err != nil {
        return nil, err
    }
    id, err := res.LastInsertId()
    if err != nil {
        return nil, err
    }
    return r.Load(ctx, uint64(id))
}

// Load returns the session with its taken seats sorted by label.
func (r *SessionRepo) Load(ctx context.Context, id uint64) (*model.Session, error) {
    q := database.Conn(ctx, r.db)
    var s model.Session
    err := scanSession(q.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id), &s)
    if errors.Is(err, sql.ErrNoRows) {
        return nil, ErrSessionNotFound
    }
    if err != nil {
        return nil, err
    }
    seats, err := r.takenSeats(ctx, q, id)
    if err != nil {
        return nil, err
    }
    s.TakenSeats = seats
    return &s, nil
}

func (r *SessionRepo) takenSeats(ctx context.Context, q database.Querier, id uint64) ([]string, error) {
    rows, err := q.QueryContext(ctx, `SELECT seat_label FROM session_seats WHERE session_id = ? ORDER BY seat_label`, id)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    seats := make([]string, 0)
    for rows.Next() {
        var l string
        if err := rows.Scan(&l); err != nil {
            return nil, err
        }
        seats = append(seats, l)
    }
    return seats, rows.Err()
}

// ClaimSeats adds seats to the session's taken set as a conditional
// write.  The version bump succeeds only if the session is still at
// expectedVersion and SCHEDULED; it also takes the row lock, so the
// capacity and overlap checks that follow see the latest committed
// state.  The (session_id, seat_label) primary key is the last guard: a
// duplicate is reported as ErrSeatConflict.  Must run inside a
// transaction for the lock to hold until the booking is written.
func (r *SessionRepo) ClaimSeats(ctx context.Context, id uint64, seats []string, expectedVersion uint32) (*model.Session, error) {
    if len(seats) == 0 {
        return r.Load(ctx, id)
    }
    q := database.Conn(ctx, r.db)
    const bump = `UPDATE sessions SET version = version + 1 WHERE id = ? AND version = ? AND status = 'SCHEDULED'`
    res, err := q.ExecContext(ctx, bump, id, expectedVersion)
    if err != nil {
        return nil, err
    }
    n, err := res.RowsAffected()
    if err != nil {
        return nil, err
    }
    if n == 0 {
        return nil, r.claimMiss(ctx, q, id)
    }

    s, err := r.Load(ctx, id)
    if err != nil {
        return nil, err
    }
    if len(s.Taken(seats)) > 0 {
        return nil, ErrSeatConflict
    }
    if uint64(len(s.TakenSeats))+uint64(len(seats)) > uint64(s.TotalSeats) {
        return nil, ErrCapacityExceeded
    }

    query := `INSERT INTO session_seats (session_id, seat_label) VALUES `
    args := make([]interface{}, 0, len(seats)*2)
    for i, l := range seats {
        if i > 0 {
            query += ","
        }
        query += "(?, ?)"
        args = append(args, id, l)
    }
    if _, err := q.ExecContext(ctx, query, args...); err != nil {
        if isDuplicate(err) {
            return nil, ErrSeatConflict
        }
        return nil, err
    }
    return r.Load(ctx, id)
}

// claimMiss explains why the conditional version bump matched no row.
func (r *SessionRepo) claimMiss(ctx context.Context, q database.Querier, id uint64) error {
    var status string
    err := q.QueryRowContext(ctx, `SELECT status FROM sessions WHERE id = ?`, id).Scan(&status)
    if errors.Is(err, sql.ErrNoRows) {
        return ErrSessionNotFound
    }
    if err != nil {
        return err
    }
    if status != model.SessionScheduled {
        return &StatusError{Err: ErrSessionNotOpen, Status: status}
    }
    return ErrVersionConflict
}

// ReleaseSeats removes the given labels from the session's taken set.
// Labels that are not taken are ignored, so releasing twice is a no-op.
// The version is bumped so in-flight claims that read the old state
// re-read before writing.
func (r *SessionRepo) ReleaseSeats(ctx context.Context, id uint64, seats []string) (*model.Session, error) {
    q := database.Conn(ctx, r.db)
    res, err := q.ExecContext(ctx, `UPDATE sessions SET version = version + 1 WHERE id = ?`, id)
    if err != nil {
        return nil, err
    }
    n, err := res.RowsAffected()
    if err != nil {
        return nil, err
    }
    if n == 0 {
        return nil, ErrSessionNotFound
    }
    if len(seats) > 0 {
        args := make([]interface{}, 0, len(seats)+1)
        args = append(args, id)
        for _, l := range seats {
            args = append(args, l)
        }
        del := `DELETE FROM session_seats WHERE session_id = ? AND seat_label IN (` + placeholders(len(seats)) + `)`
        if _, err := q.ExecContext(ctx, del, args...); err != nil {
            return nil, err
        }
    }
    return r.Load(ctx, id)
}

// CompleteStarted marks every SCHEDULED session that started before the
// given instant as COMPLETED and returns how many rows changed.
func (r *SessionRepo) CompleteStarted(ctx context.Context, before time.Time) (int64, error) {
    q := database.Conn(ctx, r.db)
    const upd = `UPDATE sessions SET status = 'COMPLETED' WHERE status = 'SCHEDULED' AND starts_at < ?`
    res, err := q.ExecContext(ctx, upd, before.UTC())
    if err != nil {
        return 0, err
    }
    return res.RowsAffected()
}

// List returns the sessions matching f ordered by start time, each with
// its taken seats.  Seats are fetched with a single IN query rather than
// one query per session.
func (r *SessionRepo) List(ctx context.Context, f SessionFilter) ([]model.Session, error) {
    q := database.Conn(ctx, r.db)
    where := []string{"status <> 'CANCELLED'"}
    args := []any{}
    if f.MovieID != 0 {
        where = append(where, "movie_id = ?")
        args = append(args, f.MovieID)
    }
    if f.TheaterID != 0 {
        where = append(where, "theater_id = ?")
        args = append(args, f.TheaterID)
    }
    if !f.From.IsZero() {
        where = append(where, "starts_at >= ?")
        args = append(args, f.From.UTC())
    }
    if !f.To.IsZero() {
        where = append(where, "starts_at < ?")
        args = append(args, f.To.UTC())
    }
    rows, err := q.QueryContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE `+strings.Join(where, " AND ")+` ORDER BY starts_at, id`, args...)
    if err != nil {
        return nil, err
    }
    defer rows.Close()

    sessions := make([]model.Session, 0)
    index := map[uint64]int{}
    for rows.Next() {
        var s model.Session
        if err := scanSession(rows, &s); err != nil {
            return nil, err
        }
        s.TakenSeats = make([]string, 0)
        index[s.ID] = len(sessions)
        sessions = append(sessions, s)
    }
    if err := rows.Err(); err != nil {
        return nil, err
    }
    if len(sessions) == 0 {
        return sessions, nil
    }

    ids := make([]any, 0, len(sessions))
    for _, s := range sessions {
        ids = append(ids, s.ID)
    }
    seatRows, err := q.QueryContext(ctx, `SELECT session_id, seat_label FROM session_seats WHERE session_id IN (`+placeholders(len(ids))+`) ORDER BY session_id, seat_label`, ids...)
    if err != nil {
        return nil, err
    }
    defer seatRows.Close()
    for seatRows.Next() {
        var sid uint64
        var label string
        if err := seatRows.Scan(&sid, &label); err != nil {
            return nil, err
        }
        if i, ok := index[sid]; ok {
            sessions[i].TakenSeats = append(sessions[i].TakenSeats, label)
        }
    }
    return sessions, seatRows.Err()
}
