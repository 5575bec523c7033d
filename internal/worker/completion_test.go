package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSessions struct {
	calls  atomic.Int32
	before time.Time
	n      int64
	err    error
}

func (f *fakeSessions) CompleteStarted(_ context.Context, before time.Time) (int64, error) {
	f.calls.Add(1)
	f.before = before
	return f.n, f.err
}

type fakeBookings struct {
	calls atomic.Int32
	n     int64
}

func (f *fakeBookings) CompleteForSessions(context.Context, time.Time) (int64, error) {
	f.calls.Add(1)
	return f.n, nil
}

type fakeTx struct{ commits, rollbacks int }

func (f *fakeTx) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := fn(ctx); err != nil {
		f.rollbacks++
		return err
	}
	f.commits++
	return nil
}

func TestSweep(t *testing.T) {
	sessions := &fakeSessions{n: 2}
	bookings := &fakeBookings{n: 5}
	tx := &fakeTx{}
	w := NewCompletionSweeper(sessions, bookings, tx, time.Minute, nil)
	fixed := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	w.now = func() time.Time { return fixed }

	s, b, err := w.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), s)
	assert.Equal(t, int64(5), b)
	assert.Equal(t, fixed, sessions.before)
	assert.Equal(t, 1, tx.commits)
}

func TestSweep_RollsBackOnError(t *testing.T) {
	sessions := &fakeSessions{err: errors.New("lock wait timeout")}
	bookings := &fakeBookings{}
	tx := &fakeTx{}
	w := NewCompletionSweeper(sessions, bookings, tx, time.Minute, nil)

	_, _, err := w.Sweep(context.Background())
	require.Error(t, err)
	assert.Equal(t, 1, tx.rollbacks)
	assert.Zero(t, bookings.calls.Load())
}

func TestRun_SweepsUntilCancelled(t *testing.T) {
	sessions := &fakeSessions{}
	w := NewCompletionSweeper(sessions, &fakeBookings{}, &fakeTx{}, 10*time.Millisecond, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool { return sessions.calls.Load() >= 2 }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}

func TestRun_Disabled(t *testing.T) {
	sessions := &fakeSessions{}
	w := NewCompletionSweeper(sessions, &fakeBookings{}, &fakeTx{}, 0, nil)
	w.Run(context.Background())
	assert.Zero(t, sessions.calls.Load())
}
