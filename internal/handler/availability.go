package handler

import (
    "context"
    "net/http"

    "github.com/labstack/echo/v4"
    "go.uber.org/zap"

    "github.com/iliyamo/cinema-booking/internal/service"
)

// AvailabilityReporter is the read-only reporting surface.
type AvailabilityReporter interface {
    Availability(ctx context.Context, q service.AvailabilityQuery) ([]service.SessionAvailability, error)
    Stats(ctx context.Context, q service.StatsQuery) (*service.BookingStats, error)
}

// AvailabilityHandler serves availability and statistics.
type AvailabilityHandler struct {
    svc AvailabilityReporter
    log *zap.Logger
}

func NewAvailabilityHandler(svc AvailabilityReporter, log *zap.Logger) *AvailabilityHandler {
    if svc == nil {
        panic("nil service passed to NewAvailabilityHandler")
    }
    if log == nil {
        log = zap.NewNop()
    }
    return &AvailabilityHandler{svc: svc, log: log}
}

// Availability handles GET /v1/availability?movieRef=&theaterRef=&date=.
func (h *AvailabilityHandler) Availability(c echo.Context) error {
    var (
        q   service.AvailabilityQuery
        err error
    )
    if q.MovieID, err = queryUint(c, "movieRef"); err != nil {
        return writeError(c, h.log, err)
    }
    if q.TheaterID, err = queryUint(c, "theaterRef"); err != nil {
        return writeError(c, h.log, err)
    }
    if q.Date, err = queryDate(c, "date", false); err != nil {
        return writeError(c, h.log, err)
    }
    items, err := h.svc.Availability(c.Request().Context(), q)
    if err != nil {
        return writeError(c, h.log, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// Stats handles GET /v1/stats.  Owners only.
func (h *AvailabilityHandler) Stats(c echo.Context) error {
    var (
        q   service.StatsQuery
        err error
    )
    if q.MovieID, err = queryUint(c, "movieRef"); err != nil {
        return writeError(c, h.log, err)
    }
    if q.TheaterID, err = queryUint(c, "theaterRef"); err != nil {
        return writeError(c, h.log, err)
    }
    if q.From, err = queryDate(c, "startDate", false); err != nil {
        return writeError(c, h.log, err)
    }
    if q.To, err = queryDate(c, "endDate", true); err != nil {
        return writeError(c, h.log, err)
    }
    stats, err := h.svc.Stats(c.Request().Context(), q)
    if err != nil {
        return writeError(c, h.log, err)
    }
    return c.JSON(http.StatusOK, stats)
}
