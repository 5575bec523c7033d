package handler

import (
    "context"
    "net/http"
    "time"

    "github.com/labstack/echo/v4"
    "github.com/shopspring/decimal"
    "go.uber.org/zap"

    "github.com/iliyamo/cinema-booking/internal/model"
    "github.com/iliyamo/cinema-booking/internal/service"
)

// Scheduler creates sessions.
type Scheduler interface {
    Schedule(ctx context.Context, in service.ScheduleInput) (*model.Session, error)
}

// SessionHandler lets owners schedule showtimes.
type SessionHandler struct {
    svc Scheduler
    log *zap.Logger
}

func NewSessionHandler(svc Scheduler, log *zap.Logger) *SessionHandler {
    if svc == nil {
        panic("nil service passed to NewSessionHandler")
    }
    if log == nil {
        log = zap.NewNop()
    }
    return &SessionHandler{svc: svc, log: log}
}

type scheduleRequest struct {
    MovieRef     uint64          `json:"movieRef"`
    TheaterRef   uint64          `json:"theaterRef"`
    StartTime    time.Time       `json:"startTime"`
    PricePerSeat decimal.Decimal `json:"pricePerSeat"`
    TotalSeats   uint32          `json:"totalSeats"`
}

// Create handles POST /v1/sessions and returns 201 with the session.
func (h *SessionHandler) Create(c echo.Context) error {
    var req scheduleRequest
    if err := c.Bind(&req); err != nil {
        return writeError(c, h.log, service.ValidationError("body"))
    }
    sess, err := h.svc.Schedule(c.Request().Context(), service.ScheduleInput{
        MovieID:      req.MovieRef,
        TheaterID:    req.TheaterRef,
        StartsAt:     req.StartTime.UTC(),
        PricePerSeat: req.PricePerSeat,
        TotalSeats:   req.TotalSeats,
    })
    if err != nil {
        return writeError(c, h.log, err)
    }
    return c.JSON(http.StatusCreated, sess)
}
