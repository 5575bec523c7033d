package middleware

// identity.go holds the helpers that read the caller identity JWTAuth
// stored in the echo context.

import (
    "math"
    "strconv"

    "github.com/labstack/echo/v4"
)

const (
    ctxUserID = "user_id"
    ctxRole   = "role"
)

// maxExactFloat is the largest integer a float64 holds without rounding.
const maxExactFloat = 1 << 53

// subject returns the authenticated user id as a string, or "anon" when the
// request carries no usable subject claim.  JSON numbers decode as float64
// so both numeric and string subjects are accepted; fractional or
// out-of-range numbers are not.
func subject(c echo.Context) string {
    switch v := c.Get(ctxUserID).(type) {
    case string:
        if v != "" {
            return v
        }
    case float64:
        if v > 0 && v <= maxExactFloat && v == math.Trunc(v) {
            return strconv.FormatUint(uint64(v), 10)
        }
    case uint64:
        if v > 0 {
            return strconv.FormatUint(v, 10)
        }
    case int64:
        if v > 0 {
            return strconv.FormatInt(v, 10)
        }
    }
    return "anon"
}
