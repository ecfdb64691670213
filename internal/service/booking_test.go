package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/hotelhub/booking-api/internal/model"
	"github.com/hotelhub/booking-api/internal/repository"
)

func newBookingService(t *testing.T) (*BookingService, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock init error: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	rooms := repository.NewRoomRepo(db)
	assigned := repository.NewAssignedRoomRepo(db)
	svc := NewBookingService(db,
		repository.NewReservationRepo(db),
		assigned,
		rooms,
		repository.NewInvoiceRepo(db),
		NewAllocator(rooms, assigned),
		nil)
	return svc, mock
}

// reservationRow builds one reservations row in column order.
func reservationRow(id uint64, status model.BookingStatus) *sqlmock.Rows {
	now := time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)
	return sqlmock.NewRows([]string{
		"id", "guest_name", "guest_email", "guest_phone", "headcount",
		"check_in", "check_out", "special_request", "booking_status", "booking_type",
		"cancel_reason", "cancel_note", "created_at", "updated_at",
	}).AddRow(id, "Brigitta Kusuma", "brigitta@example.com", "+62811", 2,
		now.AddDate(0, 0, 5), now.AddDate(0, 0, 8), nil, string(status), "ONLINE",
		nil, nil, now, now)
}

func expectLockedRead(mock sqlmock.Sqlmock, id uint64, status model.BookingStatus) {
	mock.ExpectQuery(`FROM reservations WHERE id = \? FOR UPDATE`).
		WithArgs(id).
		WillReturnRows(reservationRow(id, status))
}

func TestTransitionConfirmFromPending(t *testing.T) {
	svc, mock := newBookingService(t)

	mock.ExpectBegin()
	expectLockedRead(mock, 7, model.StatusPending)
	mock.ExpectExec(`UPDATE reservations SET booking_status = \? WHERE id = \?`).
		WithArgs(string(model.StatusConfirmed), uint64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	res, err := svc.Transition(context.Background(), 7, ActionConfirm, TransitionPayload{})
	if err != nil {
		t.Fatalf("confirm failed: %v", err)
	}
	if res.Status != model.StatusConfirmed {
		t.Fatalf("expected CONFIRMED, got %s", res.Status)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestTransitionRejectsCancelAfterCheckIn(t *testing.T) {
	svc, mock := newBookingService(t)

	mock.ExpectBegin()
	expectLockedRead(mock, 7, model.StatusCheckedIn)
	mock.ExpectRollback()

	_, err := svc.Transition(context.Background(), 7, ActionCancel, TransitionPayload{
		ReasonCode: model.CancelGuestRequest,
	})
	var invalid *InvalidTransitionError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidTransitionError, got %v", err)
	}
	if invalid.Current != model.StatusCheckedIn {
		t.Fatalf("wrong current status: %s", invalid.Current)
	}
	if len(invalid.Allowed) != 1 || invalid.Allowed[0] != ActionCheckOut {
		t.Fatalf("expected only checkOut allowed, got %v", invalid.Allowed)
	}
}

func TestTransitionRejectsActionsFromTerminalStates(t *testing.T) {
	for _, status := range []model.BookingStatus{model.StatusCheckedOut, model.StatusCancelled} {
		for _, action := range []Action{ActionConfirm, ActionCheckIn, ActionCheckOut, ActionCancel} {
			svc, mock := newBookingService(t)
			mock.ExpectBegin()
			expectLockedRead(mock, 7, status)
			mock.ExpectRollback()

			_, err := svc.Transition(context.Background(), 7, action, TransitionPayload{
				ReasonCode: model.CancelOther,
			})
			var invalid *InvalidTransitionError
			if !errors.As(err, &invalid) {
				t.Fatalf("%s from %s: expected InvalidTransitionError, got %v", action, status, err)
			}
			if len(invalid.Allowed) != 0 {
				t.Fatalf("%s should allow nothing, got %v", status, invalid.Allowed)
			}
		}
	}
}

func TestTransitionCancelValidation(t *testing.T) {
	t.Run("unknown reason", func(t *testing.T) {
		svc, mock := newBookingService(t)
		mock.ExpectBegin()
		expectLockedRead(mock, 7, model.StatusPending)
		mock.ExpectRollback()

		_, err := svc.Transition(context.Background(), 7, ActionCancel, TransitionPayload{
			ReasonCode: model.CancelReason("CHANGED_MY_MIND"),
		})
		if !errors.Is(err, ErrUnknownCancelReason) {
			t.Fatalf("expected ErrUnknownCancelReason, got %v", err)
		}
	})

	t.Run("note too long", func(t *testing.T) {
		svc, mock := newBookingService(t)
		mock.ExpectBegin()
		expectLockedRead(mock, 7, model.StatusPending)
		mock.ExpectRollback()

		note := strings.Repeat("x", 501)
		_, err := svc.Transition(context.Background(), 7, ActionCancel, TransitionPayload{
			ReasonCode: model.CancelGuestRequest,
			Note:       &note,
		})
		if !errors.Is(err, ErrCancelNoteTooLong) {
			t.Fatalf("expected ErrCancelNoteTooLong, got %v", err)
		}
	})

	t.Run("multibyte note within limit", func(t *testing.T) {
		svc, mock := newBookingService(t)
		mock.ExpectBegin()
		expectLockedRead(mock, 7, model.StatusPending)
		mock.ExpectQuery(`SELECT room_id FROM assigned_rooms WHERE reservation_id = \?`).
			WithArgs(uint64(7)).
			WillReturnRows(sqlmock.NewRows([]string{"room_id"}))
		mock.ExpectExec(`UPDATE reservations SET booking_status = \?, cancel_reason`).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		// 500 runes but well over 500 bytes; counted as characters.
		note := strings.Repeat("ü", 500)
		res, err := svc.Transition(context.Background(), 7, ActionCancel, TransitionPayload{
			ReasonCode: model.CancelGuestRequest,
			Note:       &note,
		})
		if err != nil {
			t.Fatalf("cancel with multibyte note failed: %v", err)
		}
		if res.Status != model.StatusCancelled {
			t.Fatalf("expected CANCELLED, got %s", res.Status)
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Fatalf("unmet expectations: %v", err)
		}
	})
}

func TestTransitionCancelReleasesRooms(t *testing.T) {
	svc, mock := newBookingService(t)

	mock.ExpectBegin()
	expectLockedRead(mock, 7, model.StatusConfirmed)
	mock.ExpectQuery(`SELECT room_id FROM assigned_rooms WHERE reservation_id = \?`).
		WithArgs(uint64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"room_id"}).AddRow(10).AddRow(11))
	mock.ExpectExec(`UPDATE rooms SET status = \? WHERE id IN`).
		WithArgs(string(model.RoomAvailable), uint64(10), uint64(11)).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(`UPDATE reservations SET booking_status = \?, cancel_reason`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	res, err := svc.Transition(context.Background(), 7, ActionCancel, TransitionPayload{
		ReasonCode: model.CancelNoShow,
	})
	if err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	if res.Status != model.StatusCancelled {
		t.Fatalf("expected CANCELLED, got %s", res.Status)
	}
	if res.CancelReason == nil || *res.CancelReason != model.CancelNoShow {
		t.Fatalf("cancel reason not recorded: %+v", res.CancelReason)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestTransitionDirectCheckInSkipsMatcher(t *testing.T) {
	svc, mock := newBookingService(t)

	assignedRows := sqlmock.NewRows([]string{
		"id", "reservation_id", "room_id", "room_number", "room_type_id",
		"check_in", "check_out", "created_at",
	}).AddRow(1, 7, 10, "101", 1,
		time.Date(2026, 9, 1, 14, 0, 0, 0, time.UTC),
		time.Date(2026, 9, 3, 11, 0, 0, 0, time.UTC),
		time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC))

	mock.ExpectBegin()
	expectLockedRead(mock, 7, model.StatusConfirmed)
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM assigned_rooms WHERE reservation_id = \?`).
		WithArgs(uint64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(`FROM assigned_rooms`).
		WithArgs(uint64(7)).
		WillReturnRows(assignedRows)
	mock.ExpectExec(`UPDATE rooms SET status = \? WHERE id IN`).
		WithArgs(string(model.RoomOccupied), uint64(10)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE reservations SET booking_status = \? WHERE id = \?`).
		WithArgs(string(model.StatusCheckedIn), uint64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	// No selection in the payload: the existing allocation is reused.
	res, err := svc.Transition(context.Background(), 7, ActionCheckIn, TransitionPayload{})
	if err != nil {
		t.Fatalf("direct check-in failed: %v", err)
	}
	if res.Status != model.StatusCheckedIn {
		t.Fatalf("expected CHECKED_IN, got %s", res.Status)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestTransitionCheckInAllocatesSelection(t *testing.T) {
	svc, mock := newBookingService(t)

	requirementRows := sqlmock.NewRows([]string{
		"id", "reservation_id", "room_type_id", "quantity", "type_name", "nightly_price_cents",
	}).AddRow(1, 7, 2, 1, "Suite", 1_250_000)

	mock.ExpectBegin()
	expectLockedRead(mock, 7, model.StatusConfirmed)
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM assigned_rooms WHERE reservation_id = \?`).
		WithArgs(uint64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery(`FROM room_type_requirements`).
		WithArgs(uint64(7)).
		WillReturnRows(requirementRows)
	// Locked re-read of the selection: the required suite plus an extra
	// room of an unrequested type, both still AVAILABLE.
	mock.ExpectQuery(`FROM rooms rm`).
		WithArgs(uint64(201), uint64(305)).
		WillReturnRows(candidateRows(candidateOf(201, 2, "201"), candidateOf(305, 3, "305")))
	mock.ExpectExec(`INSERT INTO assigned_rooms`).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(`UPDATE rooms SET status = \? WHERE id IN`).
		WithArgs(string(model.RoomOccupied), uint64(201), uint64(305)).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(`UPDATE reservations SET booking_status = \? WHERE id = \?`).
		WithArgs(string(model.StatusCheckedIn), uint64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	res, err := svc.Transition(context.Background(), 7, ActionCheckIn, TransitionPayload{
		SelectedRoomIDs: []uint64{201, 305},
	})
	if err != nil {
		t.Fatalf("check-in with selection failed: %v", err)
	}
	if res.Status != model.StatusCheckedIn {
		t.Fatalf("expected CHECKED_IN, got %s", res.Status)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestTransitionCheckOutReleasesAndFinalizes(t *testing.T) {
	svc, mock := newBookingService(t)

	mock.ExpectBegin()
	expectLockedRead(mock, 7, model.StatusCheckedIn)
	mock.ExpectQuery(`SELECT room_id FROM assigned_rooms WHERE reservation_id = \?`).
		WithArgs(uint64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"room_id"}).AddRow(10))
	mock.ExpectExec(`UPDATE rooms SET status = \? WHERE id IN`).
		WithArgs(string(model.RoomAvailable), uint64(10)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE invoices SET status = 'FINALIZED'`).
		WithArgs(uint64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE reservations SET booking_status = \? WHERE id = \?`).
		WithArgs(string(model.StatusCheckedOut), uint64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	res, err := svc.Transition(context.Background(), 7, ActionCheckOut, TransitionPayload{})
	if err != nil {
		t.Fatalf("check-out failed: %v", err)
	}
	if res.Status != model.StatusCheckedOut {
		t.Fatalf("expected CHECKED_OUT, got %s", res.Status)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestAllocateRoomsRefusesSecondAllocation(t *testing.T) {
	svc, mock := newBookingService(t)

	mock.ExpectBegin()
	expectLockedRead(mock, 7, model.StatusConfirmed)
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM assigned_rooms WHERE reservation_id = \?`).
		WithArgs(uint64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
	mock.ExpectRollback()

	_, err := svc.AllocateRooms(context.Background(), 7, []uint64{10, 11}, nil, nil)
	if !errors.Is(err, ErrAlreadyAllocated) {
		t.Fatalf("expected ErrAlreadyAllocated, got %v", err)
	}
}

func TestCreateReservationRejectsInvalidWindow(t *testing.T) {
	svc, _ := newBookingService(t)

	checkIn := time.Date(2026, 9, 3, 14, 0, 0, 0, time.UTC)
	_, err := svc.CreateReservation(context.Background(), CreateReservationInput{
		GuestName:  "Brigitta Kusuma",
		GuestEmail: "brigitta@example.com",
		CheckIn:    checkIn,
		CheckOut:   checkIn, // zero-length stay
	})
	if !errors.Is(err, ErrInvalidStayWindow) {
		t.Fatalf("expected ErrInvalidStayWindow, got %v", err)
	}
}

func TestNightsBetween(t *testing.T) {
	in := time.Date(2026, 9, 1, 14, 0, 0, 0, time.UTC)
	if n := nightsBetween(in, in.AddDate(0, 0, 3)); n != 3 {
		t.Fatalf("expected 3 nights, got %d", n)
	}
	// Short stays still bill one night.
	if n := nightsBetween(in, in.Add(6*time.Hour)); n != 1 {
		t.Fatalf("expected 1 night minimum, got %d", n)
	}
}
