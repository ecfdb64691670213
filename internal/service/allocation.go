package service

import (
	"context"
	"database/sql"
	"time"

	"github.com/hotelhub/booking-api/internal/model"
	"github.com/hotelhub/booking-api/internal/repository"
)

// Allocator reconciles a staff member's concrete room selection
// against a reservation's abstract room-type requirements and, when
// the selection covers every requirement, binds the rooms to the
// reservation.  Validation and commit are separate steps: validation
// is pure and unit-testable, commit runs inside the state machine's
// transaction so an allocation is all-or-nothing.
type Allocator struct {
	rooms    *repository.RoomRepo
	assigned *repository.AssignedRoomRepo
}

// NewAllocator constructs an Allocator over the room and assignment
// repositories.
func NewAllocator(rooms *repository.RoomRepo, assigned *repository.AssignedRoomRepo) *Allocator {
	return &Allocator{rooms: rooms, assigned: assigned}
}

// ValidateSelection checks a selection against the requirements.  The
// rules, in order:
//
//  1. The same concrete room must not appear twice.
//  2. With at least one requirement of quantity > 0, an empty
//     selection is rejected.
//  3. For every requirement, the count of selected rooms of that type
//     must reach the required quantity.  Selecting more rooms than
//     required, or rooms of types nobody asked for, is allowed (staff
//     may assign an upgrade); selecting fewer never is.
//
// On under-selection it returns an *AllocationError naming each
// deficient type and its shortfall.
func (a *Allocator) ValidateSelection(reqs []model.RoomTypeRequirement, selected []model.RoomCandidate) error {
	seen := make(map[uint64]struct{}, len(selected))
	for _, c := range selected {
		if _, dup := seen[c.RoomID]; dup {
			return ErrDuplicateRoomSelection
		}
		seen[c.RoomID] = struct{}{}
	}

	byType := make(map[uint64]uint32, len(selected))
	for _, c := range selected {
		byType[c.RoomTypeID]++
	}

	var deficiencies []Deficiency
	for _, rq := range reqs {
		if rq.Quantity == 0 {
			continue
		}
		got := byType[rq.RoomTypeID]
		if got < rq.Quantity {
			deficiencies = append(deficiencies, Deficiency{
				RoomTypeID: rq.RoomTypeID,
				TypeName:   rq.TypeName,
				Required:   rq.Quantity,
				Selected:   got,
				Shortfall:  rq.Quantity - got,
			})
		}
	}
	if len(deficiencies) > 0 {
		return &AllocationError{Deficiencies: deficiencies}
	}
	return nil
}

// CommitTx locks the selected rooms, re-validates the selection
// against live room state and binds the rooms to the reservation, all
// within the caller's transaction.  The stay window is stamped from
// the reservation unless an explicit override is given.  Rooms are
// flipped to the given target status (RESERVED when allocation
// precedes check-in, OCCUPIED when allocation and check-in happen in
// one step).
//
// A room that is no longer AVAILABLE, or that vanished since the
// availability query, fails the whole commit with
// *RoomUnavailableError; nothing is ever partially bound and no
// substitute room is chosen silently.
func (a *Allocator) CommitTx(ctx context.Context, tx *sql.Tx, res *model.Reservation,
	reqs []model.RoomTypeRequirement, roomIDs []uint64,
	overrideIn, overrideOut *time.Time, target model.RoomStatus) ([]model.AssignedRoom, error) {

	locked, err := a.rooms.CandidatesForUpdateTx(ctx, tx, roomIDs)
	if err != nil {
		return nil, err
	}

	var unavailable []uint64
	selected := make([]model.RoomCandidate, 0, len(roomIDs))
	for _, id := range roomIDs {
		c, ok := locked[id]
		if !ok || c.Status != model.RoomAvailable {
			unavailable = append(unavailable, id)
			continue
		}
		selected = append(selected, c)
	}
	if len(unavailable) > 0 {
		return nil, &RoomUnavailableError{RoomIDs: unavailable}
	}

	if err := a.ValidateSelection(reqs, selected); err != nil {
		return nil, err
	}

	checkIn, checkOut := res.CheckIn, res.CheckOut
	if overrideIn != nil {
		checkIn = *overrideIn
	}
	if overrideOut != nil {
		checkOut = *overrideOut
	}
	if !checkOut.After(checkIn) {
		return nil, ErrInvalidStayWindow
	}

	assignments := make([]model.AssignedRoom, 0, len(selected))
	for _, c := range selected {
		assignments = append(assignments, model.AssignedRoom{
			ReservationID: res.ID,
			RoomID:        c.RoomID,
			RoomNumber:    c.RoomNumber,
			RoomTypeID:    c.RoomTypeID,
			CheckIn:       checkIn,
			CheckOut:      checkOut,
		})
	}
	if err := a.assigned.CreateBulkTx(ctx, tx, assignments); err != nil {
		return nil, err
	}
	if err := a.rooms.BulkUpdateStatusTx(ctx, tx, roomIDs, target); err != nil {
		return nil, err
	}
	return assignments, nil
}
