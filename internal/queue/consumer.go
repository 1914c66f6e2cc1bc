package queue

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "os"
    "path/filepath"
    "strings"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"
    "github.com/rs/zerolog"
)

// AuditConsumer reads project events and appends one line per event to a
// log file.
type AuditConsumer struct {
    url     string
    queue   string
    logPath string
    log     zerolog.Logger
}

func NewAuditConsumer(url, queue, logPath string, log zerolog.Logger) *AuditConsumer {
    return &AuditConsumer{
        url:     url,
        queue:   queue,
        logPath: logPath,
        log:     log.With().Str("component", "audit-consumer").Logger(),
    }
}

// Run connects to the broker and consumes until ctx is done, reconnecting
// with exponential backoff (capped at 30s) whenever the connection drops.
// Messages that cannot be handled are rejected without requeue.
func (c *AuditConsumer) Run(ctx context.Context) error {
    backoff := time.Second
    for {
        if ctx.Err() != nil {
            return ctx.Err()
        }
        conn, err := amqp.Dial(c.url)
        if err != nil {
            c.log.Warn().Err(err).Dur("retry_in", backoff).Msg("dial broker failed")
            if !sleep(ctx, backoff) {
                return ctx.Err()
            }
            if backoff < 30*time.Second {
                backoff *= 2
            }
            continue
        }
        backoff = time.Second

        err = c.consumeLoop(ctx, conn)
        _ = conn.Close()
        if ctx.Err() != nil {
            return ctx.Err()
        }
        c.log.Warn().Err(err).Msg("consume loop ended, reconnecting")
        if !sleep(ctx, 2*time.Second) {
            return ctx.Err()
        }
    }
}

func (c *AuditConsumer) consumeLoop(ctx context.Context, conn *amqp.Connection) error {
    ch, err := conn.Channel()
    if err != nil {
        return fmt.Errorf("channel open: %w", err)
    }
    defer func() { _ = ch.Close() }()

    if err := ch.Qos(50, 0, false); err != nil {
        c.log.Warn().Err(err).Msg("set QoS failed")
    }
    if _, err := ch.QueueDeclare(c.queue, true, false, false, false, nil); err != nil {
        return fmt.Errorf("queue declare: %w", err)
    }
    msgs, err := ch.Consume(c.queue, "", false, false, false, false, nil)
    if err != nil {
        return fmt.Errorf("queue consume: %w", err)
    }

    for {
        select {
        case <-ctx.Done():
            return ctx.Err()
        case d, ok := <-msgs:
            if !ok {
                return errors.New("deliveries channel closed")
            }
            if err := c.handle(d.Body); err != nil {
                c.log.Error().Err(err).Msg("handle message failed")
                _ = d.Nack(false, false)
                continue
            }
            _ = d.Ack(false)
        }
    }
}

func (c *AuditConsumer) handle(body []byte) error {
    var ev ProjectEvent
    if err := json.Unmarshal(body, &ev); err != nil {
        return fmt.Errorf("unmarshal: %w", err)
    }
    if ev.Type == "" || ev.ProjectID == "" {
        return errors.New("event without type or project id")
    }
    if err := os.MkdirAll(filepath.Dir(c.logPath), 0o755); err != nil {
        return fmt.Errorf("mkdir logs: %w", err)
    }
    f, err := os.OpenFile(c.logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
    if err != nil {
        return fmt.Errorf("open log file: %w", err)
    }
    defer f.Close()

    if _, err := f.WriteString(FormatAuditLine(ev)); err != nil {
        return fmt.Errorf("write log: %w", err)
    }
    return nil
}

// FormatAuditLine renders ev as a single newline-terminated line.
func FormatAuditLine(ev ProjectEvent) string {
    var b strings.Builder
    fmt.Fprintf(&b, "[%s] %s | project_id=%s | user_id=%s",
        ev.OccurredAt.UTC().Format(time.RFC3339), ev.Type, ev.ProjectID, ev.UserID)
    if ev.VersionID != "" {
        fmt.Fprintf(&b, " | version_id=%s", ev.VersionID)
    }
    if ev.Model != "" {
        fmt.Fprintf(&b, " | model=%q", ev.Model)
    }
    if ev.Error != "" {
        fmt.Fprintf(&b, " | error=%q", ev.Error)
    }
    b.WriteByte('\n')
    return b.String()
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
