package repository

import (
    "context"
    "database/sql"
    "strings"
    "time"

    "github.com/shopspring/decimal"

    "github.com/iliyamo/cinema-booking/internal/database"
)

// StatsRepo runs the read-only aggregations behind the statistics
// endpoint.  Nothing here takes locks.
type StatsRepo struct {
    db *sql.DB
}

// NewStatsRepo returns a new StatsRepo bound to the given database.
func NewStatsRepo(db *sql.DB) *StatsRepo { return &StatsRepo{db: db} }

// StatsFilter restricts the aggregation.  Zero values are ignored.  The
// date range applies to booking_date for booking totals and to
// starts_at for occupancy.
type StatsFilter struct {
    MovieID   uint64
    TheaterID uint64
    From      time.Time
    To        time.Time
}

// StatusTotal is one row of the per-status booking aggregate.
type StatusTotal struct {
    Status  string
    Count   int64
    Revenue decimal.Decimal
    Seats   int64
}

// MovieOccupancyRow sums capacity and taken seats over a movie's
// sessions.
type MovieOccupancyRow struct {
    MovieID    uint64
    Sessions   int64
    TotalSeats int64
    Taken      int64
}

func (f StatsFilter) where(alias, dateCol string) (string, []any) {
    where := []string{}
    args := []any{}
    if f.MovieID != 0 {
        where = append(where, alias+".movie_id = ?")
        args = append(args, f.MovieID)
    }
    if f.TheaterID != 0 {
        where = append(where, alias+".theater_id = ?")
        args = append(args, f.TheaterID)
    }
    if !f.From.IsZero() {
        where = append(where, alias+"."+dateCol+" >= ?")
        args = append(args, f.From.UTC())
    }
    if !f.To.IsZero() {
        where = append(where, alias+"."+dateCol+" < ?")
        args = append(args, f.To.UTC())
    }
    if len(where) == 0 {
        return "1=1", args
    }
    return strings.Join(where, " AND "), args
}

// BookingTotals groups bookings by status with their count, summed
// total price and number of seats.
func (r *StatsRepo) BookingTotals(ctx context.Context, f StatsFilter) ([]StatusTotal, error) {
    cond, args := f.where("b", "booking_date")
    query := `SELECT b.status, COUNT(*), COALESCE(SUM(b.total_price), 0), COALESCE(SUM(bs.cnt), 0)
        FROM bookings b
        LEFT JOIN (SELECT booking_id, COUNT(*) AS cnt FROM booking_seats GROUP BY booking_id) bs ON bs.booking_id = b.id
        WHERE ` + cond + `
        GROUP BY b.status
        ORDER BY b.status`
    rows, err := database.Conn(ctx, r.db).QueryContext(ctx, query, args...)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    out := make([]StatusTotal, 0)
    for rows.Next() {
        var t StatusTotal
        if err := rows.Scan(&t.Status, &t.Count, &t.Revenue, &t.Seats); err != nil {
            return nil, err
        }
        out = append(out, t)
    }
    return out, rows.Err()
}

// MovieOccupancy sums capacity and taken seats per movie over the
// non-cancelled sessions matching f.
func (r *StatsRepo) MovieOccupancy(ctx context.Context, f StatsFilter) ([]MovieOccupancyRow, error) {
    cond, args := f.where("s", "starts_at")
    query := `SELECT s.movie_id, COUNT(*), COALESCE(SUM(s.total_seats), 0), COALESCE(SUM(ss.cnt), 0)
        FROM sessions s
        LEFT JOIN (SELECT session_id, COUNT(*) AS cnt FROM session_seats GROUP BY session_id) ss ON ss.session_id = s.id
        WHERE s.status <> 'CANCELLED' AND ` + cond + `
        GROUP BY s.movie_id
        ORDER BY s.movie_id`
    rows, err := database.Conn(ctx, r.db).QueryContext(ctx, query, args...)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    out := make([]MovieOccupancyRow, 0)
    for rows.Next() {
        var m MovieOccupancyRow
        if err := rows.Scan(&m.MovieID, &m.Sessions, &m.TotalSeats, &m.Taken); err != nil {
            return nil, err
        }
        out = append(out, m)
    }
    return out, rows.Err()
}
