package handler

import (
    "errors"
    "net/http"

    "github.com/labstack/echo/v4"
    "go.uber.org/zap"

    "github.com/iliyamo/cinema-booking/internal/service"
)

var kindStatus = map[service.Kind]int{
    service.KindNotFound:             http.StatusNotFound,
    service.KindInsufficientCapacity: http.StatusConflict,
    service.KindSeatsUnavailable:     http.StatusConflict,
    service.KindInvalidState:         http.StatusConflict,
    service.KindValidation:           http.StatusBadRequest,
    service.KindTransient:            http.StatusServiceUnavailable,
}

// writeError renders err as {"error": kind, "message": text, ...details}.
// Errors outside the service taxonomy are logged and reported as
// internal_error without their text.
func writeError(c echo.Context, log *zap.Logger, err error) error {
    var se *service.Error
    if !errors.As(err, &se) {
        log.Error("unhandled error", zap.String("path", c.Path()), zap.Error(err))
        return c.JSON(http.StatusInternalServerError, echo.Map{
            "error":   "internal_error",
            "message": "internal server error",
        })
    }
    status, ok := kindStatus[se.Kind]
    if !ok {
        status = http.StatusInternalServerError
    }

    body := echo.Map{"error": string(se.Kind), "message": se.Error()}
    switch se.Kind {
    case service.KindNotFound:
        body["entity"] = se.Entity
    case service.KindSeatsUnavailable:
        body["seats"] = se.Seats
    case service.KindInvalidState:
        body["status"] = se.Status
    case service.KindValidation:
        body["field"] = se.Field
    case service.KindTransient:
        // The cause may carry driver details; keep it in the log only.
        body["message"] = "store temporarily unavailable, retry later"
        log.Warn("transient store error", zap.String("path", c.Path()), zap.Error(se.Err))
    }
    return c.JSON(status, body)
}
