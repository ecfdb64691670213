package model

import "time"

// BookingStatus enumerates the lifecycle states of a reservation.
// The happy path is linear: PENDING -> CONFIRMED -> CHECKED_IN ->
// CHECKED_OUT.  CANCELLED is reachable from PENDING or CONFIRMED only.
// CHECKED_OUT and CANCELLED are terminal.
type BookingStatus string

const (
	StatusPending    BookingStatus = "PENDING"
	StatusConfirmed  BookingStatus = "CONFIRMED"
	StatusCheckedIn  BookingStatus = "CHECKED_IN"
	StatusCheckedOut BookingStatus = "CHECKED_OUT"
	StatusCancelled  BookingStatus = "CANCELLED"
)

// Terminal reports whether no further transition may leave this status.
func (s BookingStatus) Terminal() bool {
	return s == StatusCheckedOut || s == StatusCancelled
}

// BookingType distinguishes how a reservation entered the system.
// ONLINE reservations are created by guests through self-service;
// WALK_IN reservations are entered by front-desk staff.  The state
// machine and allocator treat both identically.
type BookingType string

const (
	BookingOnline BookingType = "ONLINE"
	BookingWalkIn BookingType = "WALK_IN"
)

// CancelReason is the fixed taxonomy of cancellation reason codes.  A
// cancellation must carry one of these; a free-text note is optional.
type CancelReason string

const (
	CancelGuestRequest     CancelReason = "GUEST_REQUEST"
	CancelNoShow           CancelReason = "NO_SHOW"
	CancelPaymentTimeout   CancelReason = "PAYMENT_TIMEOUT"
	CancelDuplicateBooking CancelReason = "DUPLICATE_BOOKING"
	CancelForceMajeure     CancelReason = "FORCE_MAJEURE"
	CancelOther            CancelReason = "OTHER"
)

// ValidCancelReason reports whether the given code belongs to the taxonomy.
func ValidCancelReason(r CancelReason) bool {
	switch r {
	case CancelGuestRequest, CancelNoShow, CancelPaymentTimeout,
		CancelDuplicateBooking, CancelForceMajeure, CancelOther:
		return true
	}
	return false
}

// Reservation represents one guest stay request and its lifecycle
// state.  Reservations are created in PENDING and are mutated only
// through the booking state machine.  They are never physically
// deleted; cancellation is a terminal state, not removal.
//
// Fields:
//  ID             – primary key identifier.
//  GuestName      – full name of the booking guest.
//  GuestEmail     – contact email address.
//  GuestPhone     – contact phone number.
//  Headcount      – number of guests staying.
//  CheckIn        – planned check-in timestamp (UTC).
//  CheckOut       – planned check-out timestamp (UTC); strictly later
//                   than CheckIn.
//  SpecialRequest – free-text request from the guest (nullable).
//  Status         – current BookingStatus.
//  Type           – booking origin (ONLINE or WALK_IN).
//  CancelReason   – reason code when cancelled (nullable).
//  CancelNote     – optional bounded-length cancellation note (nullable).
//  CreatedAt      – creation timestamp.
//  UpdatedAt      – last update timestamp.
type Reservation struct {
	ID             uint64        `json:"id"`
	GuestName      string        `json:"guest_name"`
	GuestEmail     string        `json:"guest_email"`
	GuestPhone     string        `json:"guest_phone"`
	Headcount      uint32        `json:"headcount"`
	CheckIn        time.Time     `json:"check_in"`
	CheckOut       time.Time     `json:"check_out"`
	SpecialRequest *string       `json:"special_request,omitempty"`
	Status         BookingStatus `json:"status"`
	Type           BookingType   `json:"booking_type"`
	CancelReason   *CancelReason `json:"cancel_reason,omitempty"`
	CancelNote     *string       `json:"cancel_note,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

// RoomTypeRequirement is an abstract demand attached to a reservation:
// N rooms of a given type, independent of which concrete rooms will
// fulfill it.  Requirements are created together with the reservation
// and are read-only afterward; they are the allocation target.
//
// Fields:
//  ID                – primary key identifier.
//  ReservationID     – owning reservation.
//  RoomTypeID        – the required room type.
//  Quantity          – how many rooms of the type are required.
//  TypeName          – room type name captured at booking time.
//  NightlyPriceCents – reference nightly price in minor units.
type RoomTypeRequirement struct {
	ID                uint64 `json:"id"`
	ReservationID     uint64 `json:"reservation_id"`
	RoomTypeID        uint64 `json:"room_type_id"`
	Quantity          uint32 `json:"quantity"`
	TypeName          string `json:"type_name"`
	NightlyPriceCents int64  `json:"nightly_price_cents"`
}

// AssignedRoom binds a concrete room to a reservation for a date
// range.  Rows are created exactly once per reservation by a
// successful allocation; a reservation must never acquire a second,
// independent allocation.
//
// Fields:
//  ID            – primary key identifier.
//  ReservationID – owning reservation.
//  RoomID        – concrete room bound to the stay.
//  RoomNumber    – room number captured at allocation time.
//  RoomTypeID    – type of the bound room.
//  CheckIn       – stay start stamped from the reservation or an
//                  explicit override.
//  CheckOut      – stay end.
//  CreatedAt     – when the allocation was committed.
type AssignedRoom struct {
	ID            uint64    `json:"id"`
	ReservationID uint64    `json:"reservation_id"`
	RoomID        uint64    `json:"room_id"`
	RoomNumber    string    `json:"room_number"`
	RoomTypeID    uint64    `json:"room_type_id"`
	CheckIn       time.Time `json:"check_in"`
	CheckOut      time.Time `json:"check_out"`
	CreatedAt     time.Time `json:"created_at"`
}
