package main // Entry point package

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"                   // Echo web framework
	echomw "github.com/labstack/echo/v4/middleware" // request id and panic recovery
	"go.uber.org/zap"

	"github.com/iliyamo/cinema-booking/internal/config"     // Internal config loader
	"github.com/iliyamo/cinema-booking/internal/database"   // MySQL connection and transactions
	"github.com/iliyamo/cinema-booking/internal/handler"    // HTTP handlers
	"github.com/iliyamo/cinema-booking/internal/logger"     // zap construction
	"github.com/iliyamo/cinema-booking/internal/middleware" // request logging
	"github.com/iliyamo/cinema-booking/internal/queue"      // RabbitMQ events
	"github.com/iliyamo/cinema-booking/internal/repository" // data access
	"github.com/iliyamo/cinema-booking/internal/router"     // Internal router setup
	"github.com/iliyamo/cinema-booking/internal/service"    // booking engine
	"github.com/iliyamo/cinema-booking/internal/worker"     // background sweeps
)

func main() {
	cfg, err := config.Load() // Load environment config
	if err != nil {
		// The logger level comes from config, so this one goes to stderr.
		os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(1)
	}
	log, err := logger.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		os.Stderr.WriteString("logger: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Error("server stopped", zap.Error(err))
		_ = log.Sync()
		os.Exit(1)
	}
}

func run(cfg config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(cfg.DB.User, cfg.DB.Pass, cfg.DB.Host, cfg.DB.Port, cfg.DB.Name,
		database.Options{MaxOpenConns: cfg.DB.MaxOpenConns})
	if err != nil {
		return err
	}
	defer db.Close()
	if cfg.DB.AutoMigrate {
		if err := database.Migrate(ctx, db); err != nil {
			return err
		}
		log.Info("schema migrated")
	}

	sessions := repository.NewSessionRepo(db)
	bookings := repository.NewBookingRepo(db)
	catalog := repository.NewCatalogRepo(db)
	stats := repository.NewStatsRepo(db)
	txm := database.NewTxManager(db)

	var events service.EventPublisher = service.NoopPublisher{}
	var wg sync.WaitGroup
	if cfg.RabbitMQURL != "" {
		pub := queue.NewPublisher(cfg.RabbitMQURL, log)
		defer pub.Close()
		events = pub

		audit, err := queue.NewAuditLogger(queue.AuditLogPath)
		if err != nil {
			return err
		}
		defer func() { _ = audit.Sync() }()
		consumer := queue.NewConsumer(cfg.RabbitMQURL, log, audit)
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = consumer.Run(ctx)
		}()
	} else {
		log.Warn("RABBITMQ_URL not set, booking events disabled")
	}

	reservations := service.NewReservationService(sessions, bookings, catalog, txm, events, service.ReservationConfig{
		MaxClaimAttempts: cfg.Booking.MaxClaimAttempts,
		TxRetries:        cfg.Booking.TxRetries,
		RetryBase:        cfg.Booking.RetryBase,
	}, log)
	scheduler := service.NewSessionService(sessions, catalog, log)
	reporter := service.NewAvailabilityService(sessions, stats)

	sweeper := worker.NewCompletionSweeper(sessions, bookings, txm, cfg.Booking.SweepInterval, log)
	wg.Add(1)
	go func() {
		defer wg.Done()
		sweeper.Run(ctx)
	}()

	rdb := config.NewRedisClient(cfg.Redis, log)
	if rdb != nil {
		defer rdb.Close()
	}

	e := echo.New() // Create Echo instance
	e.HideBanner = true
	e.HidePort = true
	e.Use(echomw.RequestIDWithConfig(echomw.RequestIDConfig{Generator: uuid.NewString}))
	e.Use(middleware.RequestLogger(log))
	e.Use(echomw.Recover())
	router.RegisterRoutes(e, router.Handlers{
		Health:       handler.Health(db),
		Bookings:     handler.NewBookingHandler(reservations, log),
		Availability: handler.NewAvailabilityHandler(reporter, log),
		Sessions:     handler.NewSessionHandler(scheduler, log),
	}, router.Options{
		JWTSecret: cfg.JWTSecret,
		RateLimit: cfg.RateLimit,
		Cache:     cfg.Cache,
		Redis:     rdb,
		Log:       log,
	})

	addr := ":" + cfg.Port // Address string with port
	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", zap.String("addr", addr), zap.String("env", cfg.Env))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			stop()
			wg.Wait()
			return err
		}
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err = e.Shutdown(shutdownCtx)
	stop()
	wg.Wait()
	return err
}
