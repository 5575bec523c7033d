package handler

import (
    "context"
    "net/http"

    "github.com/labstack/echo/v4"
    "github.com/shopspring/decimal"
    "go.uber.org/zap"

    "github.com/iliyamo/cinema-booking/internal/model"
    "github.com/iliyamo/cinema-booking/internal/repository"
    "github.com/iliyamo/cinema-booking/internal/service"
)

// BookingService is the part of the reservation coordinator the HTTP
// layer needs.
type BookingService interface {
    CreateBooking(ctx context.Context, in service.CreateBookingInput) (*model.Booking, error)
    CancelBooking(ctx context.Context, id uint64, reason string) (*model.Booking, error)
    GetBooking(ctx context.Context, id uint64) (*model.Booking, error)
    ListBookings(ctx context.Context, f repository.BookingFilter) (*service.BookingPage, error)
}

// BookingHandler serves the booking endpoints.  JWTAuth must run before
// every method.  Customers act on their own bookings only; owners may
// act on any.
type BookingHandler struct {
    svc BookingService
    log *zap.Logger
}

// NewBookingHandler panics if svc is nil.
func NewBookingHandler(svc BookingService, log *zap.Logger) *BookingHandler {
    if svc == nil {
        panic("nil service passed to NewBookingHandler")
    }
    if log == nil {
        log = zap.NewNop()
    }
    return &BookingHandler{svc: svc, log: log}
}

type createBookingRequest struct {
    MovieRef   uint64          `json:"movieRef"`
    TheaterRef uint64          `json:"theaterRef"`
    SessionRef uint64          `json:"sessionRef"`
    UserRef    uint64          `json:"userRef"`
    Seats      []string        `json:"seats"`
    TotalPrice decimal.Decimal `json:"totalPrice"`
}

type cancelBookingRequest struct {
    Reason string `json:"reason"`
}

// Create handles POST /v1/bookings.  userRef defaults to the caller; a
// customer naming another user is rejected with 403.
func (h *BookingHandler) Create(c echo.Context) error {
    caller, err := callerID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized", "message": "missing user"})
    }
    var req createBookingRequest
    if err := c.Bind(&req); err != nil {
        return writeError(c, h.log, service.ValidationError("body"))
    }
    if req.UserRef == 0 {
        req.UserRef = caller
    }
    if req.UserRef != caller && !isOwner(c) {
        return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden", "message": "cannot book for another user"})
    }

    b, err := h.svc.CreateBooking(c.Request().Context(), service.CreateBookingInput{
        MovieID:    req.MovieRef,
        TheaterID:  req.TheaterRef,
        SessionID:  req.SessionRef,
        UserID:     req.UserRef,
        Seats:      req.Seats,
        TotalPrice: req.TotalPrice,
    })
    if err != nil {
        return writeError(c, h.log, err)
    }
    return c.JSON(http.StatusCreated, b)
}

// Cancel handles PUT /v1/bookings/:id/cancel.
func (h *BookingHandler) Cancel(c echo.Context) error {
    id, err := parseID(c, "id")
    if err != nil {
        return writeError(c, h.log, err)
    }
    if _, err := h.owned(c, id); err != nil {
        return writeError(c, h.log, err)
    }
    var req cancelBookingRequest
    // The body is optional; an empty reason is stored as NULL.
    if c.Request().ContentLength != 0 {
        if err := c.Bind(&req); err != nil {
            return writeError(c, h.log, service.ValidationError("body"))
        }
    }
    b, err := h.svc.CancelBooking(c.Request().Context(), id, req.Reason)
    if err != nil {
        return writeError(c, h.log, err)
    }
    return c.JSON(http.StatusOK, b)
}

// Get handles GET /v1/bookings/:id.
func (h *BookingHandler) Get(c echo.Context) error {
    id, err := parseID(c, "id")
    if err != nil {
        return writeError(c, h.log, err)
    }
    b, err := h.owned(c, id)
    if err != nil {
        return writeError(c, h.log, err)
    }
    return c.JSON(http.StatusOK, b)
}

// List handles GET /v1/bookings.  Customers always see their own
// bookings; owners may pass userRef or omit it to list everyone's.
func (h *BookingHandler) List(c echo.Context) error {
    caller, err := callerID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized", "message": "missing user"})
    }
    var f repository.BookingFilter
    if f.UserID, err = queryUint(c, "userRef"); err != nil {
        return writeError(c, h.log, err)
    }
    if !isOwner(c) {
        if f.UserID != 0 && f.UserID != caller {
            return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden", "message": "cannot list another user's bookings"})
        }
        f.UserID = caller
    }
    f.Status = c.QueryParam("status")
    if f.From, err = queryDate(c, "startDate", false); err != nil {
        return writeError(c, h.log, err)
    }
    if f.To, err = queryDate(c, "endDate", true); err != nil {
        return writeError(c, h.log, err)
    }
    if f.Page, err = queryInt(c, "page"); err != nil {
        return writeError(c, h.log, err)
    }
    if f.Limit, err = queryInt(c, "limit"); err != nil {
        return writeError(c, h.log, err)
    }

    page, err := h.svc.ListBookings(c.Request().Context(), f)
    if err != nil {
        return writeError(c, h.log, err)
    }
    return c.JSON(http.StatusOK, page)
}

// owned loads a booking and hides it from customers who do not own it.
func (h *BookingHandler) owned(c echo.Context, id uint64) (*model.Booking, error) {
    caller, err := callerID(c)
    if err != nil {
        return nil, service.NotFound("booking")
    }
    b, err := h.svc.GetBooking(c.Request().Context(), id)
    if err != nil {
        return nil, err
    }
    if b.UserID != caller && !isOwner(c) {
        return nil, service.NotFound("booking")
    }
    return b, nil
}
