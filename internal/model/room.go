package model

import "time"

// RoomStatus tracks the live operational state of a physical room.
// AVAILABLE rooms can be allocated; allocation flips them to RESERVED,
// check-in to OCCUPIED, and check-out back to AVAILABLE.  MAINTENANCE
// rooms never appear in availability queries.
type RoomStatus string

const (
	RoomAvailable   RoomStatus = "AVAILABLE"
	RoomReserved    RoomStatus = "RESERVED"
	RoomOccupied    RoomStatus = "OCCUPIED"
	RoomMaintenance RoomStatus = "MAINTENANCE"
)

// RoomType describes a category of rooms sharing capacity and pricing.
//
// Fields:
//  ID                – primary key identifier.
//  Name              – unique type name (e.g. "Deluxe Twin").
//  Capacity          – maximum number of guests per room.
//  NightlyPriceCents – current nightly price in minor units.
type RoomType struct {
	ID                uint64 `json:"id"`
	Name              string `json:"name"`
	Capacity          uint32 `json:"capacity"`
	NightlyPriceCents int64  `json:"nightly_price_cents"`
}

// Room is a physical room in the hotel inventory.
//
// Fields:
//  ID         – primary key identifier.
//  RoomNumber – human-visible room number (e.g. "201").
//  RoomTypeID – the room's type.
//  Floor      – floor the room is on.
//  Status     – live RoomStatus.
//  CreatedAt  – creation timestamp.
//  UpdatedAt  – last update timestamp.
type Room struct {
	ID         uint64     `json:"id"`
	RoomNumber string     `json:"room_number"`
	RoomTypeID uint64     `json:"room_type_id"`
	Floor      uint32     `json:"floor"`
	Status     RoomStatus `json:"status"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// RoomCandidate is a room returned by the inventory availability query
// for a specific date window.  Candidates are transient: they are
// consumed by the allocation matcher and discarded after selection,
// never persisted.
//
// Fields:
//  RoomID            – identifier of the physical room.
//  RoomNumber        – human-visible room number.
//  RoomTypeID        – type of the room.
//  TypeName          – name of the room type.
//  Floor             – floor the room is on.
//  Capacity          – guests the room accommodates.
//  NightlyPriceCents – current nightly price in minor units.
//  Status            – room status at query time; must still be
//                      AVAILABLE at commit time.
type RoomCandidate struct {
	RoomID            uint64     `json:"room_id"`
	RoomNumber        string     `json:"room_number"`
	RoomTypeID        uint64     `json:"room_type_id"`
	TypeName          string     `json:"type_name"`
	Floor             uint32     `json:"floor"`
	Capacity          uint32     `json:"capacity"`
	NightlyPriceCents int64      `json:"nightly_price_cents"`
	Status            RoomStatus `json:"status"`
}
