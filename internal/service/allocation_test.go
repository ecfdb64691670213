package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/hotelhub/booking-api/internal/model"
	"github.com/hotelhub/booking-api/internal/repository"
)

func reqOf(typeID uint64, qty uint32, name string) model.RoomTypeRequirement {
	return model.RoomTypeRequirement{RoomTypeID: typeID, Quantity: qty, TypeName: name}
}

func candidateOf(roomID, typeID uint64, number string) model.RoomCandidate {
	return model.RoomCandidate{RoomID: roomID, RoomTypeID: typeID, RoomNumber: number, Status: model.RoomAvailable}
}

func TestValidateSelectionExactCover(t *testing.T) {
	a := &Allocator{}
	reqs := []model.RoomTypeRequirement{reqOf(1, 2, "Deluxe"), reqOf(2, 1, "Suite")}
	selected := []model.RoomCandidate{
		candidateOf(10, 1, "101"),
		candidateOf(11, 1, "102"),
		candidateOf(20, 2, "201"),
	}
	if err := a.ValidateSelection(reqs, selected); err != nil {
		t.Fatalf("exact cover should pass, got %v", err)
	}
}

func TestValidateSelectionOverSelectionAllowed(t *testing.T) {
	a := &Allocator{}
	reqs := []model.RoomTypeRequirement{reqOf(1, 1, "Deluxe")}
	// One deluxe required; staff also assigns a suite nobody asked for.
	selected := []model.RoomCandidate{
		candidateOf(10, 1, "101"),
		candidateOf(20, 2, "201"),
	}
	if err := a.ValidateSelection(reqs, selected); err != nil {
		t.Fatalf("over-selection should pass, got %v", err)
	}
}

func TestValidateSelectionShortfall(t *testing.T) {
	a := &Allocator{}
	reqs := []model.RoomTypeRequirement{reqOf(1, 2, "Deluxe"), reqOf(2, 1, "Suite")}
	selected := []model.RoomCandidate{
		candidateOf(10, 1, "101"),
		candidateOf(20, 2, "201"),
	}
	err := a.ValidateSelection(reqs, selected)
	var alloc *AllocationError
	if !errors.As(err, &alloc) {
		t.Fatalf("expected AllocationError, got %v", err)
	}
	if len(alloc.Deficiencies) != 1 {
		t.Fatalf("expected one deficiency, got %d", len(alloc.Deficiencies))
	}
	d := alloc.Deficiencies[0]
	if d.RoomTypeID != 1 || d.Required != 2 || d.Selected != 1 || d.Shortfall != 1 {
		t.Fatalf("wrong deficiency: %+v", d)
	}
}

func TestValidateSelectionEmptySelection(t *testing.T) {
	a := &Allocator{}
	reqs := []model.RoomTypeRequirement{reqOf(1, 1, "Deluxe")}
	err := a.ValidateSelection(reqs, nil)
	var alloc *AllocationError
	if !errors.As(err, &alloc) {
		t.Fatalf("empty selection should be deficient, got %v", err)
	}
	if alloc.Deficiencies[0].Shortfall != 1 {
		t.Fatalf("expected shortfall 1, got %d", alloc.Deficiencies[0].Shortfall)
	}
}

func TestValidateSelectionDuplicateRoom(t *testing.T) {
	a := &Allocator{}
	reqs := []model.RoomTypeRequirement{reqOf(1, 2, "Deluxe")}
	selected := []model.RoomCandidate{
		candidateOf(10, 1, "101"),
		candidateOf(10, 1, "101"),
	}
	if err := a.ValidateSelection(reqs, selected); !errors.Is(err, ErrDuplicateRoomSelection) {
		t.Fatalf("expected ErrDuplicateRoomSelection, got %v", err)
	}
}

// candidateRows builds the row set CandidatesForUpdateTx scans.
func candidateRows(cands ...model.RoomCandidate) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{
		"id", "room_number", "room_type_id", "name", "floor",
		"capacity", "nightly_price_cents", "status",
	})
	for _, c := range cands {
		rows.AddRow(c.RoomID, c.RoomNumber, c.RoomTypeID, c.TypeName, c.Floor,
			c.Capacity, c.NightlyPriceCents, string(c.Status))
	}
	return rows
}

func TestCommitTxRefusesUnavailableRoom(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock init error: %v", err)
	}
	defer db.Close()

	reserved := candidateOf(11, 1, "102")
	reserved.Status = model.RoomReserved

	mock.ExpectBegin()
	mock.ExpectQuery("FROM rooms rm").
		WillReturnRows(candidateRows(candidateOf(10, 1, "101"), reserved))
	mock.ExpectRollback()

	a := NewAllocator(repository.NewRoomRepo(db), repository.NewAssignedRoomRepo(db))
	ctx := context.Background()
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	defer func() { _ = tx.Rollback() }()

	res := &model.Reservation{
		ID:       7,
		CheckIn:  time.Date(2026, 9, 1, 14, 0, 0, 0, time.UTC),
		CheckOut: time.Date(2026, 9, 3, 11, 0, 0, 0, time.UTC),
	}
	reqs := []model.RoomTypeRequirement{reqOf(1, 2, "Deluxe")}

	_, err = a.CommitTx(ctx, tx, res, reqs, []uint64{10, 11}, nil, nil, model.RoomOccupied)
	var unavail *RoomUnavailableError
	if !errors.As(err, &unavail) {
		t.Fatalf("expected RoomUnavailableError, got %v", err)
	}
	if len(unavail.RoomIDs) != 1 || unavail.RoomIDs[0] != 11 {
		t.Fatalf("wrong unavailable rooms: %v", unavail.RoomIDs)
	}
}

func TestCommitTxRefusesVanishedRoom(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock init error: %v", err)
	}
	defer db.Close()

	// Room 99 never comes back from the locked read.
	mock.ExpectBegin()
	mock.ExpectQuery("FROM rooms rm").
		WillReturnRows(candidateRows(candidateOf(10, 1, "101")))
	mock.ExpectRollback()

	a := NewAllocator(repository.NewRoomRepo(db), repository.NewAssignedRoomRepo(db))
	ctx := context.Background()
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	defer func() { _ = tx.Rollback() }()

	res := &model.Reservation{
		ID:       7,
		CheckIn:  time.Date(2026, 9, 1, 14, 0, 0, 0, time.UTC),
		CheckOut: time.Date(2026, 9, 3, 11, 0, 0, 0, time.UTC),
	}
	reqs := []model.RoomTypeRequirement{reqOf(1, 1, "Deluxe")}

	_, err = a.CommitTx(ctx, tx, res, reqs, []uint64{10, 99}, nil, nil, model.RoomOccupied)
	var unavail *RoomUnavailableError
	if !errors.As(err, &unavail) {
		t.Fatalf("expected RoomUnavailableError, got %v", err)
	}
	if len(unavail.RoomIDs) != 1 || unavail.RoomIDs[0] != 99 {
		t.Fatalf("wrong unavailable rooms: %v", unavail.RoomIDs)
	}
}
