package worker

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// SessionCompleter marks sessions that have started as COMPLETED.
type SessionCompleter interface {
	CompleteStarted(ctx context.Context, before time.Time) (int64, error)
}

// BookingCompleter marks CONFIRMED bookings of completed sessions as
// COMPLETED.
type BookingCompleter interface {
	CompleteForSessions(ctx context.Context, before time.Time) (int64, error)
}

// Transactor runs fn in one transaction.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// CompletionSweeper closes out sessions whose start time has passed.
// Completed bookings keep their seats, so availability is unchanged; the
// sweep only moves statuses forward.
type CompletionSweeper struct {
	sessions SessionCompleter
	bookings BookingCompleter
	tx       Transactor
	interval time.Duration
	now      func() time.Time
	log      *zap.Logger
}

func NewCompletionSweeper(sessions SessionCompleter, bookings BookingCompleter, tx Transactor, interval time.Duration, log *zap.Logger) *CompletionSweeper {
	if log == nil {
		log = zap.NewNop()
	}
	return &CompletionSweeper{
		sessions: sessions,
		bookings: bookings,
		tx:       tx,
		interval: interval,
		now:      func() time.Time { return time.Now().UTC() },
		log:      log.Named("completion"),
	}
}

// Run sweeps once immediately and then every interval until ctx is done.
// A non-positive interval disables the sweeper.
func (w *CompletionSweeper) Run(ctx context.Context) {
	if w.interval <= 0 {
		w.log.Info("completion sweeper disabled")
		return
	}
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.sweepAndLog(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.sweepAndLog(ctx)
		}
	}
}

func (w *CompletionSweeper) sweepAndLog(ctx context.Context) {
	sessions, bookings, err := w.Sweep(ctx)
	if err != nil {
		if ctx.Err() == nil {
			w.log.Error("completion sweep failed", zap.Error(err))
		}
		return
	}
	if sessions > 0 || bookings > 0 {
		w.log.Info("completion sweep",
			zap.Int64("sessions_completed", sessions),
			zap.Int64("bookings_completed", bookings))
	}
}

// Sweep completes started sessions and then their confirmed bookings in
// a single transaction.
func (w *CompletionSweeper) Sweep(ctx context.Context) (sessions, bookings int64, err error) {
	now := w.now()
	err = w.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		if sessions, err = w.sessions.CompleteStarted(ctx, now); err != nil {
			return err
		}
		bookings, err = w.bookings.CompleteForSessions(ctx, now)
		return err
	})
	if err != nil {
		return 0, 0, err
	}
	return sessions, bookings, nil
}
