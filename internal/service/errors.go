// Package service implements the booking core: the reservation state
// machine, the room allocation matcher and the payment confirmation
// workflow.  Typed errors defined here carry enough detail for
// handlers to build actionable responses (allowed actions, per-type
// shortfalls) without string matching.
package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/hotelhub/booking-api/internal/model"
)

// ErrInvalidStayWindow is returned when a reservation's check-out is
// not strictly later than its check-in.
var ErrInvalidStayWindow = errors.New("check-out must be later than check-in")

// ErrUnknownCancelReason is returned when a cancellation carries a
// reason code outside the fixed taxonomy.
var ErrUnknownCancelReason = errors.New("unknown cancellation reason code")

// ErrCancelNoteTooLong is returned when the optional cancellation note
// exceeds the bounded length.
var ErrCancelNoteTooLong = errors.New("cancellation note exceeds 500 characters")

// ErrDuplicateRoomSelection is returned when the same concrete room id
// appears more than once in a check-in selection.
var ErrDuplicateRoomSelection = errors.New("duplicate room in selection")

// ErrIntentTerminal is returned when an operation targets a payment
// intent that already reached CONFIRMED, EXPIRED or FAILED.
var ErrIntentTerminal = errors.New("payment intent already in a terminal state")

// ErrAmountMismatch is returned when a payment request names an amount
// different from the invoice total.
var ErrAmountMismatch = errors.New("amount does not match invoice total")

// InvalidTransitionError reports a transition request that is not
// legal from the reservation's current status.  Allowed lists the
// actions the caller may retry with.
type InvalidTransitionError struct {
	ReservationID uint64
	Current       model.BookingStatus
	Requested     Action
	Allowed       []Action
}

func (e *InvalidTransitionError) Error() string {
	allowed := make([]string, 0, len(e.Allowed))
	for _, a := range e.Allowed {
		allowed = append(allowed, string(a))
	}
	return fmt.Sprintf("invalid transition %q for reservation %d in status %s (allowed: %s)",
		e.Requested, e.ReservationID, e.Current, strings.Join(allowed, ", "))
}

// Deficiency describes one under-selected room-type requirement.
type Deficiency struct {
	RoomTypeID uint64 `json:"room_type_id"`
	TypeName   string `json:"type_name"`
	Required   uint32 `json:"required"`
	Selected   uint32 `json:"selected"`
	Shortfall  uint32 `json:"shortfall"`
}

// AllocationError reports that a room selection does not cover the
// reservation's requirements.  No assignment is committed when any
// deficiency exists.
type AllocationError struct {
	Deficiencies []Deficiency
}

func (e *AllocationError) Error() string {
	parts := make([]string, 0, len(e.Deficiencies))
	for _, d := range e.Deficiencies {
		parts = append(parts, fmt.Sprintf("%s: need %d more", d.TypeName, d.Shortfall))
	}
	return "allocation deficiency: " + strings.Join(parts, "; ")
}

// RoomUnavailableError reports rooms that were available at query time
// but no longer are at commit time.  The allocator never substitutes
// another room; the caller must re-query and re-select.
type RoomUnavailableError struct {
	RoomIDs []uint64
}

func (e *RoomUnavailableError) Error() string {
	return fmt.Sprintf("rooms no longer available: %v", e.RoomIDs)
}
