package middleware

import (
    "time"

    "github.com/labstack/echo/v4"
    "go.uber.org/zap"
)

// RequestLogger logs one line per request.  Server errors log at error
// level and client errors at warn.  It should run after echo's RequestID
// middleware so the id is available.
func RequestLogger(log *zap.Logger) echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            start := time.Now()
            err := next(c)
            if err != nil {
                // Let echo's error handler write the response so the status is final.
                c.Error(err)
            }

            req := c.Request()
            res := c.Response()
            requestID := res.Header().Get(echo.HeaderXRequestID)
            if requestID == "" {
                requestID = req.Header.Get(echo.HeaderXRequestID)
            }
            fields := []zap.Field{
                zap.String("request_id", requestID),
                zap.Int("status", res.Status),
                zap.String("method", req.Method),
                zap.String("path", req.URL.Path),
                zap.String("query", req.URL.RawQuery),
                zap.String("ip", c.RealIP()),
                zap.Duration("latency", time.Since(start)),
                zap.Int64("bytes_out", res.Size),
            }
            if uid := subject(c); uid != "anon" {
                fields = append(fields, zap.String("user_id", uid))
            }
            if err != nil {
                fields = append(fields, zap.Error(err))
            }

            switch status := res.Status; {
            case status >= 500:
                log.Error("server error", fields...)
            case status >= 400:
                log.Warn("client error", fields...)
            default:
                log.Info("request completed", fields...)
            }
            return nil
        }
    }
}
