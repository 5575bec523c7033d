package repository

import (
    "context"
    "database/sql"
    "errors"

    "github.com/iliyamo/cinema-booking/internal/database"
    "github.com/iliyamo/cinema-booking/internal/model"
)

// CatalogRepo provides read-only lookups of the movies, theaters and
// users a booking references.  The booking engine never writes these
// tables.
type CatalogRepo struct {
    db *sql.DB
}

// NewCatalogRepo returns a new CatalogRepo bound to the given database.
func NewCatalogRepo(db *sql.DB) *CatalogRepo { return &CatalogRepo{db: db} }

// GetMovie returns the movie or ErrMovieNotFound.
func (r *CatalogRepo) GetMovie(ctx context.Context, id uint64) (*model.Movie, error) {
    var m model.Movie
    err := database.Conn(ctx, r.db).QueryRowContext(ctx,
        `SELECT id, title, created_at FROM movies WHERE id = ?`, id).Scan(&m.ID, &m.Title, &m.CreatedAt)
    if errors.Is(err, sql.ErrNoRows) {
        return nil, ErrMovieNotFound
    }
    if err != nil {
        return nil, err
    }
    return &m, nil
}

// GetTheater returns the theater or ErrTheaterNotFound.
func (r *CatalogRepo) GetTheater(ctx context.Context, id uint64) (*model.Theater, error) {
    var t model.Theater
    err := database.Conn(ctx, r.db).QueryRowContext(ctx,
        `SELECT id, name, created_at FROM theaters WHERE id = ?`, id).Scan(&t.ID, &t.Name, &t.CreatedAt)
    if errors.Is(err, sql.ErrNoRows) {
        return nil, ErrTheaterNotFound
    }
    if err != nil {
        return nil, err
    }
    return &t, nil
}

// GetUser returns the user or ErrUserNotFound.  Inactive users are
// returned as well; the caller decides whether they may book.
func (r *CatalogRepo) GetUser(ctx context.Context, id uint64) (*model.User, error) {
    var u model.User
    err := database.Conn(ctx, r.db).QueryRowContext(ctx,
        `SELECT id, email, role, is_active FROM users WHERE id = ?`, id).Scan(&u.ID, &u.Email, &u.Role, &u.IsActive)
    if errors.Is(err, sql.ErrNoRows) {
        return nil, ErrUserNotFound
    }
    if err != nil {
        return nil, err
    }
    return &u, nil
}
