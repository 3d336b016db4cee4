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
	"github.com/rs/zerolog"
)

// AuditConsumer listens to the registration and booking queues and appends
// one human-readable line per event to <LogDir>/<queue>.log.
type AuditConsumer struct {
	URL    string
	LogDir string
	Log    zerolog.Logger
}

// Run connects to RabbitMQ, declares both queues (durable) and consumes them
// until ctx is cancelled.  Broker failures trigger a reconnect loop with
// exponential backoff capped at 30s.  Malformed messages are logged and
// rejected without requeue so the loop keeps moving.
func (a *AuditConsumer) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		conn, err := amqp.Dial(a.URL)
		if err != nil {
			a.Log.Warn().Err(err).Dur("retry_in", backoff).Msg("audit-consumer: dial failed")
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second // reset after successful connect

		err = a.consume(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		a.Log.Warn().Err(err).Msg("audit-consumer: consume loop ended; reconnecting")
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

func (a *AuditConsumer) consume(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		a.Log.Warn().Err(err).Msg("audit-consumer: set QoS failed")
	}

	type delivery struct {
		queue string
		msg   amqp.Delivery
	}
	merged := make(chan delivery)
	closed := make(chan string, 2)
	done := make(chan struct{})
	defer close(done)

	for _, name := range []string{AgentRegisteredQueue, BookingStatusChangedQueue} {
		if _, err := ch.QueueDeclare(name, true, false, false, false, nil); err != nil {
			return fmt.Errorf("queue declare %s: %w", name, err)
		}
		msgs, err := ch.Consume(name, "", false, false, false, false, nil)
		if err != nil {
			return fmt.Errorf("queue consume %s: %w", name, err)
		}
		go func(name string, msgs <-chan amqp.Delivery) {
			for d := range msgs {
				select {
				case merged <- delivery{queue: name, msg: d}:
				case <-done:
					return
				}
			}
			closed <- name
		}(name, msgs)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case name := <-closed:
			return fmt.Errorf("deliveries channel closed: %s", name)
		case d := <-merged:
			if err := a.Handle(d.queue, d.msg.Body); err != nil {
				a.Log.Error().Err(err).Str("queue", d.queue).Msg("audit-consumer: handle message failed")
				_ = d.msg.Nack(false, false) // reject, do not requeue to avoid tight loops
				continue
			}
			_ = d.msg.Ack(false)
		}
	}
}

// Handle decodes one message from queueName and appends its audit line.
func (a *AuditConsumer) Handle(queueName string, body []byte) error {
	line, err := FormatAuditLine(queueName, body)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(a.LogDir, 0o755); err != nil {
		return fmt.Errorf("mkdir logs: %w", err)
	}
	fpath := filepath.Join(a.LogDir, queueName+".log")
	f, err := os.OpenFile(fpath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(line); err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	return nil
}

// FormatAuditLine renders a single newline-terminated audit entry.
func FormatAuditLine(queueName string, body []byte) (string, error) {
	switch queueName {
	case AgentRegisteredQueue:
		var ev AgentRegisteredEvent
		if err := json.Unmarshal(body, &ev); err != nil {
			return "", fmt.Errorf("unmarshal: %w", err)
		}
		kind := "joined existing agency"
		if ev.CreatedAgency {
			kind = "created agency"
		}
		return fmt.Sprintf("[%s] Agent registered (%s) | agent_id=%s | agency_id=%s | email=%q | name=\"%s %s\"\n",
			ev.RegisteredAt, kind, ev.AgentID, ev.AgencyID, ev.Email, ev.FirstName, ev.LastName), nil
	case BookingStatusChangedQueue:
		var ev BookingStatusChangedEvent
		if err := json.Unmarshal(body, &ev); err != nil {
			return "", fmt.Errorf("unmarshal: %w", err)
		}
		return fmt.Sprintf("[%s] Booking status changed | booking_id=%s | %s -> %s\n",
			ev.ChangedAt, ev.BookingID, ev.From, ev.To), nil
	}
	return "", errors.New("unknown queue " + queueName)
}
