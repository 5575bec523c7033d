package handler // handler defines http handlers

import (
    "errors"  // errors provides sentinel values used in callerID
    "math"    // math checks float subjects are whole numbers
    "strconv" // strconv converts strings to numeric types
    "strings" // strings provides trimming helpers
    "time"    // time parses ISO-8601 query dates

    "github.com/labstack/echo/v4" // echo defines request context types

    "github.com/iliyamo/cinema-booking/internal/model"
    "github.com/iliyamo/cinema-booking/internal/service"
)

// RoleOwner is the role allowed to see every user's bookings and to run
// the owner endpoints.
const RoleOwner = model.RoleOwner

var errNoCaller = errors.New("invalid user_id in context")

// maxExactFloat is the largest integer a float64 holds without rounding.
const maxExactFloat = 1 << 53

// callerID extracts the user_id stored by JWTAuth and converts it to uint64.
func callerID(c echo.Context) (uint64, error) {
    switch t := c.Get("user_id").(type) {
    case uint64:
        return t, nil
    case int64:
        if t > 0 {
            return uint64(t), nil
        }
    case float64:
        // JSON numbers decode as float64; only whole values that round-trip
        // exactly are ids.
        if t > 0 && t <= maxExactFloat && t == math.Trunc(t) {
            return uint64(t), nil
        }
    case string:
        if n, err := strconv.ParseUint(t, 10, 64); err == nil && n > 0 {
            return n, nil
        }
    }
    return 0, errNoCaller
}

// isOwner reports whether the caller carries the OWNER role.
func isOwner(c echo.Context) bool {
    role, _ := c.Get("role").(string)
    return role == RoleOwner
}

// parseID reads a positive numeric path parameter.
func parseID(c echo.Context, name string) (uint64, error) {
    id, err := strconv.ParseUint(c.Param(name), 10, 64)
    if err != nil || id == 0 {
        return 0, service.ValidationError(name)
    }
    return id, nil
}

// queryUint reads an optional positive numeric query parameter; absent
// means zero.
func queryUint(c echo.Context, name string) (uint64, error) {
    raw := strings.TrimSpace(c.QueryParam(name))
    if raw == "" {
        return 0, nil
    }
    n, err := strconv.ParseUint(raw, 10, 64)
    if err != nil || n == 0 {
        return 0, service.ValidationError(name)
    }
    return n, nil
}

// queryInt reads an optional non-negative integer query parameter.
func queryInt(c echo.Context, name string) (int, error) {
    raw := strings.TrimSpace(c.QueryParam(name))
    if raw == "" {
        return 0, nil
    }
    n, err := strconv.Atoi(raw)
    if err != nil || n < 0 {
        return 0, service.ValidationError(name)
    }
    return n, nil
}

// queryDate parses an ISO-8601 date or timestamp.  A bare date used as an
// upper bound covers the whole day, so it is moved to the next midnight
// because every range filter is end-exclusive.
func queryDate(c echo.Context, name string, upper bool) (time.Time, error) {
    raw := strings.TrimSpace(c.QueryParam(name))
    if raw == "" {
        return time.Time{}, nil
    }
    if t, err := time.Parse(time.RFC3339, raw); err == nil {
        return t.UTC(), nil
    }
    d, err := time.ParseInLocation("2006-01-02", raw, time.UTC)
    if err != nil {
        return time.Time{}, service.ValidationError(name)
    }
    if upper {
        d = d.AddDate(0, 0, 1)
    }
    return d, nil
}
