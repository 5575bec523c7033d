package queue

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "os"
    "path/filepath"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"
    "go.uber.org/zap"
)

// AuditLogPath is where the consumer appends booking events by default.
const AuditLogPath = "logs/booking.log"

// Consumer listens to the booking queues and writes one structured
// audit entry per event.
type Consumer struct {
    url   string
    log   *zap.Logger
    audit *zap.Logger
}

// NewConsumer returns a Consumer for the broker at url.  audit receives
// the booking entries; log receives the consumer's own diagnostics.
func NewConsumer(url string, log, audit *zap.Logger) *Consumer {
    if log == nil {
        log = zap.NewNop()
    }
    if audit == nil {
        audit = zap.NewNop()
    }
    return &Consumer{url: url, log: log.Named("booking-consumer"), audit: audit}
}

// NewAuditLogger builds a JSON zap logger that appends to path,
// creating the parent directory when missing.
func NewAuditLogger(path string) (*zap.Logger, error) {
    if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
        return nil, fmt.Errorf("mkdir %s: %w", filepath.Dir(path), err)
    }
    cfg := zap.NewProductionConfig()
    cfg.OutputPaths = []string{path}
    cfg.ErrorOutputPaths = []string{"stderr"}
    cfg.Sampling = nil
    cfg.DisableCaller = true
    cfg.DisableStacktrace = true
    return cfg.Build()
}

// Run connects to RabbitMQ, declares both booking queues and consumes
// until ctx is cancelled.  It reconnects with exponential backoff when
// the broker goes away and only returns ctx.Err().  Messages that fail
// to decode are rejected without requeue so the loop keeps moving.
func (c *Consumer) Run(ctx context.Context) error {
    wait := time.Second
    for {
        conn, err := amqp.DialConfig(c.url, amqp.Config{
            Heartbeat: 10 * time.Second,
            Locale:    "en_US",
            Dial:      amqp.DefaultDial(DefaultDialTimeout),
        })
        if err != nil {
            c.log.Warn("failed to dial broker", zap.Error(err), zap.Duration("retry_in", wait))
            if !sleep(ctx, wait) {
                return ctx.Err()
            }
            if wait < 30*time.Second {
                wait *= 2
            }
            continue
        }
        wait = time.Second // reset after successful connect

        err = c.consumeLoop(ctx, conn)
        _ = conn.Close()
        if ctx.Err() != nil {
            return ctx.Err()
        }
        c.log.Warn("consume loop ended, reconnecting", zap.Error(err))
        if !sleep(ctx, 2*time.Second) {
            return ctx.Err()
        }
    }
}

func sleep(ctx context.Context, d time.Duration) bool {
    t := time.NewTimer(d)
    defer t.Stop()
    select {
    case <-ctx.Done():
        return false
    case <-t.C:
        return true
    }
}

func (c *Consumer) consumeLoop(ctx context.Context, conn *amqp.Connection) error {
    ch, err := conn.Channel()
    if err != nil {
        return fmt.Errorf("channel open: %w", err)
    }
    defer func() { _ = ch.Close() }()

    if err := ch.Qos(50, 0, false); err != nil {
        c.log.Warn("set QoS failed", zap.Error(err))
    }
    if err := declareQueues(ch); err != nil {
        return err
    }

    confirmed, err := ch.Consume(BookingConfirmedQueue, "", false, false, false, false, nil)
    if err != nil {
        return fmt.Errorf("queue consume: %w", err)
    }
    cancelled, err := ch.Consume(BookingCancelledQueue, "", false, false, false, false, nil)
    if err != nil {
        return fmt.Errorf("queue consume: %w", err)
    }

    for {
        var d amqp.Delivery
        var ok bool
        select {
        case <-ctx.Done():
            return ctx.Err()
        case d, ok = <-confirmed:
        case d, ok = <-cancelled:
        }
        if !ok {
            return errors.New("deliveries channel closed")
        }
        if err := c.handleMessage(d.RoutingKey, d.Body); err != nil {
            c.log.Error("handle message failed", zap.String("queue", d.RoutingKey), zap.Error(err))
            _ = d.Nack(false, false) // reject, do not requeue to avoid tight loops
            continue
        }
        _ = d.Ack(false)
    }
}

func (c *Consumer) handleMessage(queue string, body []byte) error {
    switch queue {
    case BookingConfirmedQueue:
        var ev BookingConfirmedEvent
        if err := json.Unmarshal(body, &ev); err != nil {
            return fmt.Errorf("unmarshal: %w", err)
        }
        c.audit.Info("booking confirmed",
            zap.String("at", ev.ConfirmedAt),
            zap.Uint64("booking_id", ev.BookingID),
            zap.Uint64("user_id", ev.UserID),
            zap.Uint64("session_id", ev.SessionID),
            zap.Uint64("movie_id", ev.MovieID),
            zap.Uint64("theater_id", ev.TheaterID),
            zap.Strings("seats", ev.Seats),
            zap.String("total", ev.TotalPrice.StringFixed(2)))
    case BookingCancelledQueue:
        var ev BookingCancelledEvent
        if err := json.Unmarshal(body, &ev); err != nil {
            return fmt.Errorf("unmarshal: %w", err)
        }
        c.audit.Info("booking cancelled",
            zap.String("at", ev.CancelledAt),
            zap.Uint64("booking_id", ev.BookingID),
            zap.Uint64("user_id", ev.UserID),
            zap.Uint64("session_id", ev.SessionID),
            zap.Strings("seats", ev.Seats),
            zap.String("reason", ev.Reason))
    default:
        return fmt.Errorf("unexpected queue %q", queue)
    }
    return nil
}
