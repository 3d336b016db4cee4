package service

import (
	"context"
	"encoding/json"
	"net"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"github.com/iliyamo/agent-incentives/internal/metrics"
)

// PublishTimeout bounds an event publish made after a write has committed.
// Callers detach it from the request so a client disconnect does not drop
// the event, while a stalled broker cannot hold the response for longer.
const PublishTimeout = 3 * time.Second

// Publisher sends domain events to durable RabbitMQ queues on the default
// exchange.  A connection is dialled per publish; event volume is a handful
// of messages per administrative action.  A nil *Publisher or one without a
// URL is a no-op so callers never branch on whether events are enabled.
type Publisher struct {
	url string
	log zerolog.Logger
}

// NewPublisher returns a publisher for the broker at url.
func NewPublisher(url string, log zerolog.Logger) *Publisher {
	return &Publisher{url: url, log: log}
}

// Publish marshals event to JSON and delivers it as a persistent message to
// queue.  Errors are logged and returned so the caller can choose to ignore
// them.
func (p *Publisher) Publish(ctx context.Context, queue string, event any) error {
	if p == nil || p.url == "" {
		return nil
	}
	err := p.publish(ctx, queue, event)
	result := "ok"
	if err != nil {
		result = "error"
		p.log.Warn().Err(err).Str("queue", queue).Msg("rabbitmq: publish failed")
	}
	metrics.EventsPublished.WithLabelValues(queue, result).Inc()
	return err
}

func (p *Publisher) publish(ctx context.Context, queue string, event any) error {
	body, err := json.Marshal(event)
	if err != nil {
		return err
	}

	conn, err := amqp.DialConfig(p.url, amqp.Config{
		Heartbeat: 10 * time.Second,
		Locale:    "en_US",
		Dial:      dialContext(ctx),
	})
	if err != nil {
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		return err
	}
	defer func() { _ = ch.Close() }()

	// Idempotent; durable so messages survive broker restarts.
	if _, err := ch.QueueDeclare(
		queue, // name
		true,  // durable
		false, // autoDelete
		false, // exclusive
		false, // noWait
		nil,   // args
	); err != nil {
		return err
	}

	return ch.PublishWithContext(ctx,
		"",    // default exchange
		queue, // routing key = queue name
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now().UTC(),
			Body:         body,
		},
	)
}

// dialHandshakeTimeout bounds the AMQP handshake when ctx has no deadline.
const dialHandshakeTimeout = 5 * time.Second

// dialContext returns an amqp dial function bound to ctx.  The connection
// deadline covers the handshake; amqp091 clears it once the connection is
// open.
func dialContext(ctx context.Context) func(network, addr string) (net.Conn, error) {
	return func(network, addr string) (net.Conn, error) {
		var d net.Dialer
		conn, err := d.DialContext(ctx, network, addr)
		if err != nil {
			return nil, err
		}
		deadline, ok := ctx.Deadline()
		if !ok {
			deadline = time.Now().Add(dialHandshakeTimeout)
		}
		if err := conn.SetDeadline(deadline); err != nil {
			_ = conn.Close()
			return nil, err
		}
		return conn, nil
	}
}
