package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const auditQueueName = "room-booking.audit"

var auditKeys = []string{"booking.*", "room.*", "user.*"}

// ConsumerConfig tells the audit consumer where to connect and write.
type ConsumerConfig struct {
	URL      string
	Exchange string
	LogDir   string
}

// StartAuditConsumer connects to RabbitMQ, binds a durable queue to every
// booking, room and user event and appends one line per message to
// <LogDir>/booking.log.  It reconnects with backoff and returns only when
// ctx is cancelled.  A message that cannot be handled is rejected without
// requeue so the loop never spins on it.
func StartAuditConsumer(ctx context.Context, cfg ConsumerConfig) error {
	if cfg.Exchange == "" {
		cfg.Exchange = DefaultExchange
	}
	if cfg.LogDir == "" {
		cfg.LogDir = "logs"
	}

	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		conn, err := amqp.Dial(cfg.URL)
		if err != nil {
			log.Printf("booking-consumer: failed to dial broker: %v; retrying in %s", err, backoff)
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = consumeLoop(ctx, conn, cfg)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Printf("booking-consumer: consume loop ended: %v; reconnecting", err)
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

func consumeLoop(ctx context.Context, conn *amqp.Connection, cfg ConsumerConfig) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		log.Printf("booking-consumer: set QoS failed: %v", err)
	}
	if err := ch.ExchangeDeclare(cfg.Exchange, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("exchange declare: %w", err)
	}
	q, err := ch.QueueDeclare(auditQueueName, true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	for _, key := range auditKeys {
		if err := ch.QueueBind(q.Name, key, cfg.Exchange, false, nil); err != nil {
			return fmt.Errorf("bind %s: %w", key, err)
		}
	}

	msgs, err := ch.ConsumeWithContext(ctx, q.Name, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}
	for d := range msgs {
		if err := appendLine(cfg.LogDir, d.RoutingKey, d.Body); err != nil {
			log.Printf("booking-consumer: handle message failed: %v", err)
			_ = d.Nack(false, false)
			continue
		}
		_ = d.Ack(false)
	}
	return errors.New("deliveries channel closed")
}

func appendLine(dir, key string, body []byte) error {
	line, err := FormatLine(key, body)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir logs: %w", err)
	}
	f, err := os.OpenFile(filepath.Join(dir, "booking.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()
	if _, err := f.WriteString(line); err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	return nil
}

// FormatLine renders one event as a single human friendly log line.
func FormatLine(key string, body []byte) (string, error) {
	switch key {
	case KeyRoomCreated, KeyRoomUpdated:
		var ev RoomEvent
		if err := json.Unmarshal(body, &ev); err != nil {
			return "", fmt.Errorf("unmarshal %s: %w", key, err)
		}
		if ev.RoomID == "" {
			return "", fmt.Errorf("%s: missing room_id", key)
		}
		tenant := ev.TenantID
		if tenant == "" {
			tenant = "-"
		}
		return fmt.Sprintf("[%s] %s | room_id=%s | name=%q | owner=%s | tenant=%s | actor=%s\n",
			ev.OccurredAt.Format(time.RFC3339), key, ev.RoomID, ev.Name, ev.OwnerID, tenant, ev.ActorID), nil
	case KeyRoomDeleted, KeyUserDeleted:
		var ev RemovalEvent
		if err := json.Unmarshal(body, &ev); err != nil {
			return "", fmt.Errorf("unmarshal %s: %w", key, err)
		}
		return fmt.Sprintf("[%s] %s | id=%s | actor=%s | removed_bookings=%d\n",
			ev.OccurredAt.Format(time.RFC3339), key, ev.ID, ev.ActorID, ev.Removed), nil
	default:
		var ev BookingEvent
		if err := json.Unmarshal(body, &ev); err != nil {
			return "", fmt.Errorf("unmarshal %s: %w", key, err)
		}
		if ev.BookingID == "" {
			return "", fmt.Errorf("%s: missing booking_id", key)
		}
		return fmt.Sprintf("[%s] %s | booking_id=%s | room_id=%s | user_id=%s | %s..%s | type=%s | status=%s | earned=%d | used=%d\n",
			ev.OccurredAt.Format(time.RFC3339), key, ev.BookingID, ev.RoomID, ev.UserID,
			ev.StartDate, ev.EndDate, ev.Type, ev.Status, ev.CreditsEarned, ev.CreditsUsed), nil
	}
}
