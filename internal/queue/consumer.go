package queue

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// StartAuditConsumer connects to RabbitMQ, declares the durable audit
// queue, and starts consuming events. Each event is appended to
// logs/audit.log in a single-line, human-friendly format; this is the
// durable audit trail for check-ins, cancellations and payment
// verifications (manual verifications record the acting staff id).
// The function runs a reconnect loop with backoff and keeps running;
// processing errors are logged and the offending message rejected so
// the server continues operating.
func StartAuditConsumer() error {
	backoff := time.Second
	for {
		conn, err := amqp.Dial(brokerURL())
		if err != nil {
			log.Printf("audit-consumer: failed to dial broker: %v; retrying in %s", err, backoff)
			time.Sleep(backoff)
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second // reset after successful connect

		if err := consumeLoop(conn); err != nil {
			log.Printf("audit-consumer: consume loop ended: %v; reconnecting", err)
			time.Sleep(2 * time.Second)
			continue
		}
	}
}

func consumeLoop(conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		log.Printf("audit-consumer: set QoS failed: %v", err)
	}

	_, err = ch.QueueDeclare(auditQueueName, true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}

	msgs, err := ch.Consume(auditQueueName, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for d := range msgs {
		if err := handleMessage(d.Body); err != nil {
			log.Printf("audit-consumer: handle message failed: %v", err)
			_ = d.Nack(false, false) // reject, do not requeue to avoid tight loops
			continue
		}
		_ = d.Ack(false)
	}
	return errors.New("deliveries channel closed")
}

func handleMessage(body []byte) error {
	// Peek at the type to decide how to render the line.
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(body, &head); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}

	var line string
	switch head.Type {
	case EventReservationCheckedIn, EventReservationCancelled:
		var ev ReservationEvent
		if err := json.Unmarshal(body, &ev); err != nil {
			return fmt.Errorf("unmarshal reservation event: %w", err)
		}
		rooms := "[]"
		if len(ev.RoomNumbers) > 0 {
			rooms = fmt.Sprintf("[%s]", strings.Join(ev.RoomNumbers, ","))
		}
		line = fmt.Sprintf("[%s] %s | reservation_id=%d | status=%s | guest=%q | rooms=%s | reason=%q\n",
			ev.OccurredAt, ev.Type, ev.ReservationID, ev.Status, ev.GuestName, rooms, ev.ReasonCode)
	case EventPaymentConfirmed, EventPaymentForceVerified, EventPaymentExpired:
		var ev PaymentEvent
		if err := json.Unmarshal(body, &ev); err != nil {
			return fmt.Errorf("unmarshal payment event: %w", err)
		}
		actor := "-"
		if ev.ActorID != nil {
			actor = fmt.Sprintf("%d", *ev.ActorID)
		}
		line = fmt.Sprintf("[%s] %s | intent_id=%d | invoice_id=%d | reservation_id=%d | amount=%d cents | ref=%q | actor=%s\n",
			ev.OccurredAt, ev.Type, ev.IntentID, ev.InvoiceID, ev.ReservationID, ev.AmountCents, ev.Reference, actor)
	default:
		line = fmt.Sprintf("[%s] unknown event: %s\n", time.Now().UTC().Format(time.RFC3339), string(body))
	}

	if err := os.MkdirAll("logs", 0o755); err != nil {
		return fmt.Errorf("mkdir logs: %w", err)
	}
	fpath := filepath.Join("logs", "audit.log")
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
