// Package queue defines the domain events exchanged over the message
// broker and the publisher/consumer plumbing around them.  Every event
// lands on a single durable audit queue; downstream consumers can log,
// notify or feed analytics without querying the primary database.
package queue

// Event types carried in the Type field.
const (
	EventReservationCheckedIn = "reservation.checked_in"
	EventReservationCancelled = "reservation.cancelled"
	EventPaymentConfirmed     = "payment.confirmed"
	EventPaymentForceVerified = "payment.force_verified"
	EventPaymentExpired       = "payment.expired"
)

// ReservationEvent is published when a reservation crosses a lifecycle
// boundary worth auditing (check-in, cancellation).
type ReservationEvent struct {
	Type          string   `json:"type"`
	ReservationID uint64   `json:"reservation_id"`
	Status        string   `json:"status"`
	GuestName     string   `json:"guest_name"`
	RoomNumbers   []string `json:"room_numbers,omitempty"`
	ReasonCode    string   `json:"reason_code,omitempty"`
	OccurredAt    string   `json:"occurred_at"`
}

// PaymentEvent is published when a payment intent reaches a terminal
// state.  ActorID is set only for manual verification, identifying the
// staff member for the audit trail.
type PaymentEvent struct {
	Type          string  `json:"type"`
	IntentID      uint64  `json:"intent_id"`
	InvoiceID     uint64  `json:"invoice_id"`
	ReservationID uint64  `json:"reservation_id"`
	AmountCents   int64   `json:"amount_cents"`
	Reference     string  `json:"reference"`
	ActorID       *uint64 `json:"actor_id,omitempty"`
	OccurredAt    string  `json:"occurred_at"`
}
