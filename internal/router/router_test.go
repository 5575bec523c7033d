package router

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/cinema-booking/internal/config"
	"github.com/iliyamo/cinema-booking/internal/handler"
	"github.com/iliyamo/cinema-booking/internal/model"
	"github.com/iliyamo/cinema-booking/internal/service"
)

type stubReporter struct{}

func (stubReporter) Availability(context.Context, service.AvailabilityQuery) ([]service.SessionAvailability, error) {
	return []service.SessionAvailability{}, nil
}

func (stubReporter) Stats(context.Context, service.StatsQuery) (*service.BookingStats, error) {
	return &service.BookingStats{}, nil
}

func token(t *testing.T, role string) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "1", "role": role}).SignedString([]byte("secret"))
	require.NoError(t, err)
	return s
}

func TestRegisterRoutes_Guards(t *testing.T) {
	e := echo.New()
	RegisterRoutes(e, Handlers{
		Health:       handler.Health(nil),
		Bookings:     handler.NewBookingHandler(&service.ReservationService{}, nil),
		Availability: handler.NewAvailabilityHandler(stubReporter{}, nil),
		Sessions:     handler.NewSessionHandler(&service.SessionService{}, nil),
	}, Options{JWTSecret: "secret"})

	do := func(path, bearer string) int {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		if bearer != "" {
			req.Header.Set(echo.HeaderAuthorization, "Bearer "+bearer)
		}
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, do("/healthz", ""))
	assert.Equal(t, http.StatusUnauthorized, do("/v1/availability?movieRef=1", ""))
	assert.Equal(t, http.StatusOK, do("/v1/availability?movieRef=1", token(t, "CUSTOMER")))
	assert.Equal(t, http.StatusForbidden, do("/v1/stats", token(t, "CUSTOMER")))
	assert.Equal(t, http.StatusOK, do("/v1/stats", token(t, "OWNER")))
	assert.Equal(t, http.StatusForbidden, do("/v1/availability?movieRef=1", token(t, "GUEST")))
}

// countingReporter reports one fewer free seat on every call, as if a
// booking landed between requests.
type countingReporter struct {
	calls atomic.Int32
}

func (r *countingReporter) Availability(context.Context, service.AvailabilityQuery) ([]service.SessionAvailability, error) {
	n := r.calls.Add(1)
	return []service.SessionAvailability{{
		Session:        model.Session{ID: 1, MovieID: 1, TheaterID: 1, TotalSeats: 10},
		AvailableSeats: uint32(10 - n),
	}}, nil
}

func (r *countingReporter) Stats(context.Context, service.StatsQuery) (*service.BookingStats, error) {
	r.calls.Add(1)
	return &service.BookingStats{}, nil
}

func TestRegisterRoutes_AvailabilityBypassesCache(t *testing.T) {
	// Nothing listens on this address; cache reads fail and fall through.
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 50 * time.Millisecond, MaxRetries: -1})
	t.Cleanup(func() { _ = rdb.Close() })

	rep := &countingReporter{}
	e := echo.New()
	RegisterRoutes(e, Handlers{
		Health:       handler.Health(nil),
		Bookings:     handler.NewBookingHandler(&service.ReservationService{}, nil),
		Availability: handler.NewAvailabilityHandler(rep, nil),
		Sessions:     handler.NewSessionHandler(&service.SessionService{}, nil),
	}, Options{
		JWTSecret: "secret",
		Cache: config.CacheConfig{
			Enabled:      true,
			Methods:      map[string]bool{http.MethodGet: true},
			TTL:          30 * time.Second,
			KeyStrategy:  "route_query",
			Prefix:       "cache",
			MaxBodyBytes: 1 << 20,
		},
		Redis: rdb,
	})

	get := func(path, role string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token(t, role))
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		return rec
	}
	seats := func(rec *httptest.ResponseRecorder) uint32 {
		var out struct {
			Items []struct {
				AvailableSeats uint32 `json:"availableSeats"`
			} `json:"items"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
		require.Len(t, out.Items, 1)
		return out.Items[0].AvailableSeats
	}

	first := get("/v1/availability?movieRef=1", "CUSTOMER")
	require.Equal(t, http.StatusOK, first.Code)
	assert.Empty(t, first.Header().Get("X-Cache"))
	assert.Equal(t, uint32(9), seats(first))

	second := get("/v1/availability?movieRef=1", "CUSTOMER")
	require.Equal(t, http.StatusOK, second.Code)
	assert.Empty(t, second.Header().Get("X-Cache"))
	assert.Equal(t, uint32(8), seats(second), "availability reflects the latest state")

	stats := get("/v1/stats", "OWNER")
	require.Equal(t, http.StatusOK, stats.Code)
	assert.Equal(t, "MISS", stats.Header().Get("X-Cache"))
}
