package queue

import (
    "context"
    "encoding/json"
    "fmt"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"
)

// AMQPPublisher sends each event to a durable queue on the default
// exchange.  It dials per publish, so a broker restart between events needs
// no reconnect handling.  Messages are marked persistent.
type AMQPPublisher struct {
    url   string
    queue string
}

func NewAMQPPublisher(url, queue string) *AMQPPublisher {
    return &AMQPPublisher{url: url, queue: queue}
}

func (p *AMQPPublisher) Publish(ctx context.Context, ev ProjectEvent) error {
    conn, err := amqp.Dial(p.url)
    if err != nil {
        return fmt.Errorf("rabbitmq dial: %w", err)
    }
    defer func() { _ = conn.Close() }()

    ch, err := conn.Channel()
    if err != nil {
        return fmt.Errorf("rabbitmq channel: %w", err)
    }
    defer func() { _ = ch.Close() }()

    // Idempotent; durable so messages survive broker restarts.
    if _, err := ch.QueueDeclare(
        p.queue, // name
        true,    // durable
        false,   // autoDelete
        false,   // exclusive
        false,   // noWait
        nil,     // args
    ); err != nil {
        return fmt.Errorf("rabbitmq queue declare: %w", err)
    }

    body, err := json.Marshal(ev)
    if err != nil {
        return fmt.Errorf("marshal event: %w", err)
    }

    pub := amqp.Publishing{
        ContentType:  "application/json",
        DeliveryMode: amqp.Persistent,
        Timestamp:    time.Now().UTC(),
        Type:         string(ev.Type),
        Body:         body,
    }
    if err := ch.PublishWithContext(ctx,
        "",      // default exchange
        p.queue, // routing key = queue name
        false,   // mandatory
        false,   // immediate
        pub,
    ); err != nil {
        return fmt.Errorf("rabbitmq publish: %w", err)
    }
    return nil
}

var _ Publisher = (*AMQPPublisher)(nil)
