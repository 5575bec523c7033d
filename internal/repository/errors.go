// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as the
// reservation service to distinguish between different failure
// scenarios. For example, ErrSeatConflict indicates that a seat claim
// lost a race against another writer, while ErrBookingState signals
// that a booking is no longer in a state that allows the requested
// transition.
package repository

import (
    "database/sql/driver"
    "errors"
    "fmt"
    "strings"

    "github.com/go-sql-driver/mysql"
)

var (
    ErrSessionNotFound = errors.New("session not found")
    ErrBookingNotFound = errors.New("booking not found")
    ErrMovieNotFound   = errors.New("movie not found")
    ErrTheaterNotFound = errors.New("theater not found")
    ErrUserNotFound    = errors.New("user not found")
)

// ErrSessionNotOpen is returned when seats are claimed on a session that
// is no longer SCHEDULED.  It is always wrapped in a StatusError that
// carries the session's current status.
var ErrSessionNotOpen = errors.New("session not open")

// ErrSeatConflict is returned when one of the requested seats was
// already taken at write time.
var ErrSeatConflict = errors.New("seat conflict")

// ErrVersionConflict is returned when the session changed since it was
// read.  The seats may still be free; callers should re-read and retry.
var ErrVersionConflict = errors.New("session version changed")

// ErrCapacityExceeded is returned when claiming the seats would take
// the session above its total capacity.
var ErrCapacityExceeded = errors.New("capacity exceeded")

// ErrBookingState is returned when a booking cannot move to the
// requested status.  It is wrapped in a StatusError.
var ErrBookingState = errors.New("invalid booking state")

// StatusError attaches the current status of a row to a state error.
type StatusError struct {
    Err    error
    Status string
}

func (e *StatusError) Error() string { return fmt.Sprintf("%v: %s", e.Err, e.Status) }

func (e *StatusError) Unwrap() error { return e.Err }

// MySQL server error numbers the repositories care about.
const (
    errDupEntry        = 1062
    errLockWaitTimeout = 1205
    errDeadlock        = 1213
)

// IsTransient reports whether err is a store failure that is worth
// retrying: deadlocks, lock wait timeouts and dropped connections.
func IsTransient(err error) bool {
    if err == nil {
        return false
    }
    if errors.Is(err, driver.ErrBadConn) || errors.Is(err, mysql.ErrInvalidConn) {
        return true
    }
    var me *mysql.MySQLError
    if errors.As(err, &me) {
        return me.Number == errDeadlock || me.Number == errLockWaitTimeout
    }
    return false
}

func isDuplicate(err error) bool {
    var me *mysql.MySQLError
    return errors.As(err, &me) && me.Number == errDupEntry
}

// placeholders returns "?,?,?" with n question marks.
func placeholders(n int) string {
    if n <= 0 {
        return ""
    }
    return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}
