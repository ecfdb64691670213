package service

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/hotelhub/booking-api/internal/model"
	"github.com/hotelhub/booking-api/internal/queue"
	"github.com/hotelhub/booking-api/internal/repository"
)

// Action is a booking state machine transition request.
type Action string

const (
	ActionConfirm  Action = "confirm"
	ActionCheckIn  Action = "checkIn"
	ActionCheckOut Action = "checkOut"
	ActionCancel   Action = "cancel"
)

// allowedActions is the transition table: for each status, the actions
// that may legally be requested.  Terminal statuses have no entries.
var allowedActions = map[model.BookingStatus][]Action{
	model.StatusPending:    {ActionConfirm, ActionCancel},
	model.StatusConfirmed:  {ActionCheckIn, ActionCancel},
	model.StatusCheckedIn:  {ActionCheckOut},
	model.StatusCheckedOut: {},
	model.StatusCancelled:  {},
}

// AllowedActions returns the actions legal from the given status.
func AllowedActions(s model.BookingStatus) []Action {
	return allowedActions[s]
}

// ErrAlreadyAllocated is returned when an allocation is requested for
// a reservation that already holds one; a reservation never acquires a
// second, independent allocation.
var ErrAlreadyAllocated = errors.New("reservation already has assigned rooms")

// TransitionPayload carries the action-specific inputs of a transition
// request.  SelectedRoomIDs is consumed by checkIn (when no allocation
// exists yet); ReasonCode and Note by cancel; the overrides allow
// staff to stamp an assignment window different from the reservation's.
type TransitionPayload struct {
	SelectedRoomIDs  []uint64
	ReasonCode       model.CancelReason
	Note             *string
	CheckInOverride  *time.Time
	CheckOutOverride *time.Time
}

// RequirementInput is one room-type demand of a new reservation.
type RequirementInput struct {
	RoomTypeID uint64
	Quantity   uint32
}

// CreateReservationInput carries everything needed to open a new
// reservation with its requirements and invoice.
type CreateReservationInput struct {
	GuestName      string
	GuestEmail     string
	GuestPhone     string
	Headcount      uint32
	CheckIn        time.Time
	CheckOut       time.Time
	SpecialRequest *string
	Type           model.BookingType
	Requirements   []RequirementInput
	TaxRatePercent int64
}

// BookingService is the authoritative lifecycle controller for
// reservations.  All status changes go through Transition, which
// serializes concurrent requests per reservation and re-reads the
// current status under a row lock before applying anything, so two
// simultaneous check-ins can never both allocate.
type BookingService struct {
	db           *sql.DB
	reservations *repository.ReservationRepo
	assigned     *repository.AssignedRoomRepo
	rooms        *repository.RoomRepo
	invoices     *repository.InvoiceRepo
	allocator    *Allocator
	events       queue.Publisher

	locks sync.Map // reservation id -> *sync.Mutex
}

// NewBookingService wires the state machine over its repositories.
// events may be nil, in which case no events are published.
func NewBookingService(db *sql.DB, reservations *repository.ReservationRepo,
	assigned *repository.AssignedRoomRepo, rooms *repository.RoomRepo,
	invoices *repository.InvoiceRepo, allocator *Allocator, events queue.Publisher) *BookingService {
	return &BookingService{
		db:           db,
		reservations: reservations,
		assigned:     assigned,
		rooms:        rooms,
		invoices:     invoices,
		allocator:    allocator,
		events:       events,
	}
}

// lockFor returns the mutex serializing transitions of one
// reservation.  Entries are never removed; the map is bounded by the
// number of reservations touched during the process lifetime.
func (s *BookingService) lockFor(id uint64) *sync.Mutex {
	v, _ := s.locks.LoadOrStore(id, &sync.Mutex{})
	return v.(*sync.Mutex)
}

// CreateReservation opens a new PENDING reservation together with its
// room-type requirements and its invoice.  The invoice captures the
// canonical pricing breakdown and guest snapshot once, here, so no
// later consumer has to re-derive either.
func (s *BookingService) CreateReservation(ctx context.Context, in CreateReservationInput) (*model.Reservation, error) {
	if !in.CheckOut.After(in.CheckIn) {
		return nil, ErrInvalidStayWindow
	}

	reqs := make([]model.RoomTypeRequirement, 0, len(in.Requirements))
	var subtotal int64
	nights := nightsBetween(in.CheckIn, in.CheckOut)
	for _, ri := range in.Requirements {
		rt, err := s.rooms.RoomTypeByID(ctx, ri.RoomTypeID)
		if err != nil {
			return nil, err
		}
		reqs = append(reqs, model.RoomTypeRequirement{
			RoomTypeID:        rt.ID,
			Quantity:          ri.Quantity,
			TypeName:          rt.Name,
			NightlyPriceCents: rt.NightlyPriceCents,
		})
		subtotal += int64(ri.Quantity) * nights * rt.NightlyPriceCents
	}

	res := &model.Reservation{
		GuestName:      in.GuestName,
		GuestEmail:     in.GuestEmail,
		GuestPhone:     in.GuestPhone,
		Headcount:      in.Headcount,
		CheckIn:        in.CheckIn.UTC(),
		CheckOut:       in.CheckOut.UTC(),
		SpecialRequest: in.SpecialRequest,
		Status:         model.StatusPending,
		Type:           in.Type,
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err := s.reservations.CreateTx(ctx, tx, res, reqs); err != nil {
		return nil, err
	}
	tax := subtotal * in.TaxRatePercent / 100
	inv := &model.Invoice{
		ReservationID: res.ID,
		Pricing: model.PricingBreakdown{
			RoomSubtotalCents: subtotal,
			TaxCents:          tax,
			DiscountCents:     0,
			TotalCents:        subtotal + tax,
		},
		Customer: model.CustomerInfo{
			Name:  in.GuestName,
			Email: in.GuestEmail,
			Phone: in.GuestPhone,
		},
		Status: model.InvoiceOpen,
	}
	if err := s.invoices.CreateTx(ctx, tx, inv); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true
	return res, nil
}

// Transition applies one state machine action to a reservation and
// returns the updated record.  The per-reservation mutex plus the
// SELECT ... FOR UPDATE re-read inside the transaction give
// at-most-one-in-flight semantics: the status checked is always the
// committed current one, never a stale read.
func (s *BookingService) Transition(ctx context.Context, reservationID uint64, action Action, p TransitionPayload) (*model.Reservation, error) {
	mu := s.lockFor(reservationID)
	mu.Lock()
	defer mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	res, err := s.reservations.GetForUpdateTx(ctx, tx, reservationID)
	if err != nil {
		return nil, err
	}
	if !actionAllowed(res.Status, action) {
		return nil, &InvalidTransitionError{
			ReservationID: reservationID,
			Current:       res.Status,
			Requested:     action,
			Allowed:       allowedActions[res.Status],
		}
	}

	var roomNumbers []string
	switch action {
	case ActionConfirm:
		if err := s.reservations.UpdateStatusTx(ctx, tx, reservationID, model.StatusConfirmed); err != nil {
			return nil, err
		}
		res.Status = model.StatusConfirmed

	case ActionCheckIn:
		roomNumbers, err = s.checkInTx(ctx, tx, res, p)
		if err != nil {
			return nil, err
		}
		res.Status = model.StatusCheckedIn

	case ActionCheckOut:
		if err := s.checkOutTx(ctx, tx, res); err != nil {
			return nil, err
		}
		res.Status = model.StatusCheckedOut

	case ActionCancel:
		if err := s.cancelTx(ctx, tx, res, p); err != nil {
			return nil, err
		}
		res.Status = model.StatusCancelled
		res.CancelReason = &p.ReasonCode
		res.CancelNote = p.Note

	default:
		return nil, &InvalidTransitionError{
			ReservationID: reservationID,
			Current:       res.Status,
			Requested:     action,
			Allowed:       allowedActions[res.Status],
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true

	s.publishTransition(ctx, res, action, roomNumbers, p)
	return res, nil
}

// checkInTx performs the checkIn action inside the transaction.  A
// reservation that already holds an allocation takes the direct
// check-in path: its rooms flip from RESERVED to OCCUPIED without
// re-running the matcher.  This is the idempotency guard against
// double allocation.  Otherwise the selection in the payload is
// validated and committed, binding rooms as OCCUPIED in one step.
func (s *BookingService) checkInTx(ctx context.Context, tx *sql.Tx, res *model.Reservation, p TransitionPayload) ([]string, error) {
	count, err := s.assigned.CountByReservationTx(ctx, tx, res.ID)
	if err != nil {
		return nil, err
	}
	var assignments []model.AssignedRoom
	if count > 0 {
		// Direct check-in.
		assignments, err = s.assigned.ListByReservationTx(ctx, tx, res.ID)
		if err != nil {
			return nil, err
		}
		ids := make([]uint64, 0, len(assignments))
		for _, a := range assignments {
			ids = append(ids, a.RoomID)
		}
		if err := s.rooms.BulkUpdateStatusTx(ctx, tx, ids, model.RoomOccupied); err != nil {
			return nil, err
		}
	} else {
		reqs, err := s.reservations.RequirementsTx(ctx, tx, res.ID)
		if err != nil {
			return nil, err
		}
		assignments, err = s.allocator.CommitTx(ctx, tx, res, reqs, p.SelectedRoomIDs,
			p.CheckInOverride, p.CheckOutOverride, model.RoomOccupied)
		if err != nil {
			return nil, err
		}
	}
	if err := s.reservations.UpdateStatusTx(ctx, tx, res.ID, model.StatusCheckedIn); err != nil {
		return nil, err
	}
	numbers := make([]string, 0, len(assignments))
	for _, a := range assignments {
		numbers = append(numbers, a.RoomNumber)
	}
	return numbers, nil
}

// checkOutTx releases the reservation's rooms back to inventory and
// finalizes the invoice.
func (s *BookingService) checkOutTx(ctx context.Context, tx *sql.Tx, res *model.Reservation) error {
	ids, err := s.assigned.RoomIDsByReservationTx(ctx, tx, res.ID)
	if err != nil {
		return err
	}
	if err := s.rooms.BulkUpdateStatusTx(ctx, tx, ids, model.RoomAvailable); err != nil {
		return err
	}
	if err := s.invoices.FinalizeByReservationTx(ctx, tx, res.ID); err != nil {
		return err
	}
	return s.reservations.UpdateStatusTx(ctx, tx, res.ID, model.StatusCheckedOut)
}

// cancelTx validates the cancellation inputs and marks the
// reservation cancelled, releasing any rooms an earlier allocation may
// hold.  The reservation row and its history are preserved.
func (s *BookingService) cancelTx(ctx context.Context, tx *sql.Tx, res *model.Reservation, p TransitionPayload) error {
	if !model.ValidCancelReason(p.ReasonCode) {
		return ErrUnknownCancelReason
	}
	if p.Note != nil && utf8.RuneCountInString(*p.Note) > 500 {
		return ErrCancelNoteTooLong
	}
	ids, err := s.assigned.RoomIDsByReservationTx(ctx, tx, res.ID)
	if err != nil {
		return err
	}
	if err := s.rooms.BulkUpdateStatusTx(ctx, tx, ids, model.RoomAvailable); err != nil {
		return err
	}
	return s.reservations.CancelTx(ctx, tx, res.ID, p.ReasonCode, p.Note)
}

// AllocateRooms commits an allocation ahead of check-in: rooms are
// bound to the reservation and flipped to RESERVED, so a later checkIn
// takes the direct path.  Only a CONFIRMED reservation can be
// allocated, and only once.
func (s *BookingService) AllocateRooms(ctx context.Context, reservationID uint64, roomIDs []uint64, overrideIn, overrideOut *time.Time) ([]model.AssignedRoom, error) {
	mu := s.lockFor(reservationID)
	mu.Lock()
	defer mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	res, err := s.reservations.GetForUpdateTx(ctx, tx, reservationID)
	if err != nil {
		return nil, err
	}
	if res.Status != model.StatusConfirmed {
		return nil, &InvalidTransitionError{
			ReservationID: reservationID,
			Current:       res.Status,
			Requested:     ActionCheckIn,
			Allowed:       allowedActions[res.Status],
		}
	}
	count, err := s.assigned.CountByReservationTx(ctx, tx, reservationID)
	if err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, ErrAlreadyAllocated
	}
	reqs, err := s.reservations.RequirementsTx(ctx, tx, reservationID)
	if err != nil {
		return nil, err
	}
	assignments, err := s.allocator.CommitTx(ctx, tx, res, reqs, roomIDs,
		overrideIn, overrideOut, model.RoomReserved)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true
	return assignments, nil
}

// AssignmentStatus reports whether a reservation holds a committed
// allocation and how many rooms it covers.  Callers use it to decide
// between direct check-in and full allocation.
func (s *BookingService) AssignmentStatus(ctx context.Context, reservationID uint64) (bool, int, error) {
	if _, err := s.reservations.GetByID(ctx, reservationID); err != nil {
		return false, 0, err
	}
	n, err := s.assigned.CountByReservation(ctx, reservationID)
	if err != nil {
		return false, 0, err
	}
	return n > 0, n, nil
}

// publishTransition emits audit events for the transitions worth
// recording.  Publishing happens after commit and never fails the
// transition; errors are logged by the publisher.
func (s *BookingService) publishTransition(ctx context.Context, res *model.Reservation, action Action, roomNumbers []string, p TransitionPayload) {
	if s.events == nil {
		return
	}
	now := time.Now().UTC().Format(time.RFC3339)
	switch action {
	case ActionCheckIn:
		ev := queue.ReservationEvent{
			Type:          queue.EventReservationCheckedIn,
			ReservationID: res.ID,
			Status:        string(res.Status),
			GuestName:     res.GuestName,
			RoomNumbers:   roomNumbers,
			OccurredAt:    now,
		}
		if err := s.events.PublishReservation(ctx, ev); err != nil {
			log.Printf("booking: publish %s failed: %v", ev.Type, err)
		}
	case ActionCancel:
		ev := queue.ReservationEvent{
			Type:          queue.EventReservationCancelled,
			ReservationID: res.ID,
			Status:        string(res.Status),
			GuestName:     res.GuestName,
			ReasonCode:    string(p.ReasonCode),
			OccurredAt:    now,
		}
		if err := s.events.PublishReservation(ctx, ev); err != nil {
			log.Printf("booking: publish %s failed: %v", ev.Type, err)
		}
	}
}

func actionAllowed(status model.BookingStatus, action Action) bool {
	for _, a := range allowedActions[status] {
		if a == action {
			return true
		}
	}
	return false
}

// nightsBetween counts the nights in a stay window, always at least
// one for a valid window.
func nightsBetween(in, out time.Time) int64 {
	n := int64(out.Sub(in).Hours() / 24)
	if n < 1 {
		n = 1
	}
	return n
}
