package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4" // import the Echo web framework to handle routing
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/iliyamo/cinema-booking/internal/config"
	"github.com/iliyamo/cinema-booking/internal/handler"    // import the handlers that implement the HTTP surface
	"github.com/iliyamo/cinema-booking/internal/middleware" // import middleware for JWT authentication and role enforcement
	"github.com/iliyamo/cinema-booking/internal/model"
)

// Handlers groups the HTTP handlers mounted by RegisterRoutes.
type Handlers struct {
	Health       echo.HandlerFunc
	Bookings     *handler.BookingHandler
	Availability *handler.AvailabilityHandler
	Sessions     *handler.SessionHandler
}

// Options carries what the middleware needs.  A nil Redis client turns
// rate limiting and caching into no-ops.
type Options struct {
	JWTSecret string
	RateLimit config.RateLimitConfig
	Cache     config.CacheConfig
	Redis     *redis.Client
	Log       *zap.Logger
}

// RegisterRoutes mounts the health check and the /v1 API.
//
// Every /v1 route requires a valid access token.  Booking writes are
// rate limited per caller.  Only stats go through the short-lived response
// cache: availability must reflect the seats taken by the latest booking.
// Stats and session scheduling are limited to owners.
func RegisterRoutes(e *echo.Echo, h Handlers, opts Options) {
	e.GET("/healthz", h.Health)

	limit := middleware.NewTokenBucket(opts.RateLimit, opts.Redis, opts.Log)
	cache := middleware.NewRedisCache(opts.Cache, opts.Redis, opts.Log)
	owner := middleware.RequireRole(model.RoleOwner)

	v1 := e.Group("/v1", middleware.JWTAuth(opts.JWTSecret), middleware.RequireRole(model.RoleOwner, model.RoleCustomer))

	v1.POST("/bookings", h.Bookings.Create, limit)
	v1.PUT("/bookings/:id/cancel", h.Bookings.Cancel, limit)
	v1.GET("/bookings", h.Bookings.List)
	v1.GET("/bookings/:id", h.Bookings.Get)

	v1.GET("/availability", h.Availability.Availability)
	v1.GET("/stats", h.Availability.Stats, owner, cache)

	v1.POST("/sessions", h.Sessions.Create, owner)
}
