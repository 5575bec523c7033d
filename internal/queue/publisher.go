package queue

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "sync"
    "time"

    "github.com/google/uuid"
    amqp "github.com/rabbitmq/amqp091-go"
    "go.uber.org/zap"

    "github.com/iliyamo/cinema-booking/internal/model"
)

// Default connection settings for Publisher.
const (
    DefaultDialTimeout  = 2 * time.Second
    DefaultDialCooldown = 5 * time.Second
)

// ErrPublisherClosed is returned by a Publisher after Close.
var ErrPublisherClosed = errors.New("publisher closed")

// Publisher sends booking events to RabbitMQ.  It keeps one connection
// and channel open and redials lazily when either has been closed, so a
// broker outage only costs the events published while it lasts.  Errors
// are logged and returned so callers can choose to ignore them.
//
// Dialling happens in the background and never under the lock.  Callers
// wait for it only as long as their context allows, and concurrent
// callers share a single dial.  After a failed dial, publishes fail fast
// until the cooldown has passed.
type Publisher struct {
    url         string
    log         *zap.Logger
    dialTimeout time.Duration
    cooldown    time.Duration

    mu      sync.Mutex
    conn    *amqp.Connection
    ch      *amqp.Channel
    dialing chan struct{} // closed when the in-flight dial ends
    dialErr error
    retryAt time.Time
    closed  bool
}

// NewPublisher returns a Publisher for the broker at url.  No connection
// is made until the first event is published.
func NewPublisher(url string, log *zap.Logger) *Publisher {
    if log == nil {
        log = zap.NewNop()
    }
    return &Publisher{
        url:         url,
        log:         log.Named("publisher"),
        dialTimeout: DefaultDialTimeout,
        cooldown:    DefaultDialCooldown,
    }
}

// BookingConfirmed publishes a BookingConfirmedEvent to booking.confirmed.
func (p *Publisher) BookingConfirmed(ctx context.Context, b *model.Booking) error {
    return p.publish(ctx, BookingConfirmedQueue, NewBookingConfirmedEvent(b))
}

// BookingCancelled publishes a BookingCancelledEvent to booking.cancelled.
func (p *Publisher) BookingCancelled(ctx context.Context, b *model.Booking) error {
    return p.publish(ctx, BookingCancelledQueue, NewBookingCancelledEvent(b))
}

func (p *Publisher) publish(ctx context.Context, queue string, event any) error {
    body, err := json.Marshal(event)
    if err != nil {
        return fmt.Errorf("marshal event: %w", err)
    }

    ch, err := p.channel(ctx)
    if err != nil {
        p.log.Warn("rabbitmq unavailable", zap.String("queue", queue), zap.Error(err))
        return err
    }

    pub := amqp.Publishing{
        ContentType:  "application/json",
        DeliveryMode: amqp.Persistent, // store on disk
        MessageId:    uuid.NewString(),
        Timestamp:    time.Now().UTC(),
        Body:         body,
    }
    if err := ch.PublishWithContext(ctx,
        "",    // default exchange
        queue, // routing key = queue name
        false, // mandatory
        false, // immediate
        pub,
    ); err != nil {
        p.log.Warn("rabbitmq publish failed", zap.String("queue", queue), zap.Error(err))
        p.mu.Lock()
        if p.ch == ch {
            p.reset()
        }
        p.mu.Unlock()
        return err
    }
    p.log.Debug("event published", zap.String("queue", queue), zap.String("message_id", pub.MessageId))
    return nil
}

// channel returns an open channel.  When there is none it starts a dial,
// or joins the one in flight, and waits for it until ctx is done.
func (p *Publisher) channel(ctx context.Context) (*amqp.Channel, error) {
    p.mu.Lock()
    if p.closed {
        p.mu.Unlock()
        return nil, ErrPublisherClosed
    }
    if p.ch != nil && !p.ch.IsClosed() && p.conn != nil && !p.conn.IsClosed() {
        ch := p.ch
        p.mu.Unlock()
        return ch, nil
    }
    if p.dialing == nil {
        if wait := time.Until(p.retryAt); wait > 0 {
            err := p.dialErr
            p.mu.Unlock()
            return nil, fmt.Errorf("broker unavailable, next dial in %s: %w", wait.Round(time.Millisecond), err)
        }
        p.reset()
        p.dialing = make(chan struct{})
        go p.dial(p.dialing)
    }
    done := p.dialing
    p.mu.Unlock()

    select {
    case <-done:
    case <-ctx.Done():
        return nil, fmt.Errorf("wait for broker: %w", ctx.Err())
    }

    p.mu.Lock()
    defer p.mu.Unlock()
    switch {
    case p.closed:
        return nil, ErrPublisherClosed
    case p.dialErr != nil:
        return nil, p.dialErr
    case p.ch == nil:
        return nil, errors.New("broker connection lost")
    }
    return p.ch, nil
}

// dial opens a connection and channel and declares both queues, then
// publishes the outcome to waiters by closing done.
func (p *Publisher) dial(done chan struct{}) {
    conn, ch, err := p.open()

    p.mu.Lock()
    defer p.mu.Unlock()
    defer close(done)
    p.dialing = nil

    switch {
    case err != nil:
        p.dialErr = err
        p.retryAt = time.Now().Add(p.cooldown)
        p.log.Warn("rabbitmq dial failed", zap.Duration("retry_in", p.cooldown), zap.Error(err))
    case p.closed:
        _ = ch.Close()
        _ = conn.Close()
    default:
        p.conn, p.ch, p.dialErr = conn, ch, nil
    }
}

func (p *Publisher) open() (*amqp.Connection, *amqp.Channel, error) {
    conn, err := amqp.DialConfig(p.url, amqp.Config{
        Heartbeat: 10 * time.Second,
        Locale:    "en_US",
        Dial:      amqp.DefaultDial(p.dialTimeout),
    })
    if err != nil {
        return nil, nil, fmt.Errorf("dial: %w", err)
    }
    ch, err := conn.Channel()
    if err != nil {
        _ = conn.Close()
        return nil, nil, fmt.Errorf("channel open: %w", err)
    }
    if err := declareQueues(ch); err != nil {
        _ = ch.Close()
        _ = conn.Close()
        return nil, nil, err
    }
    return conn, ch, nil
}

// reset drops the current connection.  Caller holds p.mu.
func (p *Publisher) reset() {
    if p.ch != nil {
        _ = p.ch.Close()
        p.ch = nil
    }
    if p.conn != nil {
        _ = p.conn.Close()
        p.conn = nil
    }
}

// Close releases the broker connection.  A dial still in flight is
// discarded when it completes.
func (p *Publisher) Close() error {
    p.mu.Lock()
    defer p.mu.Unlock()
    p.closed = true
    p.reset()
    return nil
}

// declareQueues makes sure both booking queues exist (idempotent).
// Durable so messages survive broker restarts.
func declareQueues(ch *amqp.Channel) error {
    for _, name := range []string{BookingConfirmedQueue, BookingCancelledQueue} {
        if _, err := ch.QueueDeclare(
            name,  // name
            true,  // durable
            false, // autoDelete
            false, // exclusive
            false, // noWait
            nil,   // args
        ); err != nil {
            return fmt.Errorf("queue declare %s: %w", name, err)
        }
    }
    return nil
}
