package repository

import (
	"context"
	"database/sql"

	"github.com/hotelhub/booking-api/internal/model"
)

// AssignedRoomRepo provides data access to the assigned_rooms table,
// the durable record of which concrete rooms are bound to a
// reservation for a date range.  Rows are written exactly once per
// reservation, by the allocator's commit, and are read by the direct
// check-in short circuit and the check-out release path.
type AssignedRoomRepo struct {
	db *sql.DB
}

// NewAssignedRoomRepo returns a new AssignedRoomRepo bound to the given database.
func NewAssignedRoomRepo(db *sql.DB) *AssignedRoomRepo { return &AssignedRoomRepo{db: db} }

// CreateBulkTx inserts the assignment rows for a reservation in a
// single statement within the provided transaction.  The caller must
// commit or roll back.  Passing an empty slice has no effect and
// returns nil.
func (r *AssignedRoomRepo) CreateBulkTx(ctx context.Context, tx *sql.Tx, rooms []model.AssignedRoom) error {
	if len(rooms) == 0 {
		return nil
	}
	query := `INSERT INTO assigned_rooms
		(reservation_id, room_id, room_number, room_type_id, check_in, check_out) VALUES `
	args := make([]interface{}, 0, len(rooms)*6)
	for i, ar := range rooms {
		if i > 0 {
			query += ","
		}
		query += "(?, ?, ?, ?, ?, ?)"
		args = append(args, ar.ReservationID, ar.RoomID, ar.RoomNumber, ar.RoomTypeID,
			ar.CheckIn.UTC(), ar.CheckOut.UTC())
	}
	_, err := tx.ExecContext(ctx, query, args...)
	return err
}

// CountByReservationTx returns the number of assignment rows held by a
// reservation, read inside the transaction.  The state machine uses a
// non-zero count as the signal to take the direct check-in path
// instead of re-running the matcher.
func (r *AssignedRoomRepo) CountByReservationTx(ctx context.Context, tx *sql.Tx, reservationID uint64) (int, error) {
	var n int
	err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM assigned_rooms WHERE reservation_id = ?`, reservationID).Scan(&n)
	return n, err
}

// CountByReservation is the non-transactional variant of
// CountByReservationTx, used by the assignment-status endpoint.
func (r *AssignedRoomRepo) CountByReservation(ctx context.Context, reservationID uint64) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM assigned_rooms WHERE reservation_id = ?`, reservationID).Scan(&n)
	return n, err
}

// RoomIDsByReservationTx returns the concrete room ids bound to a
// reservation, read inside the transaction.  Direct check-in, check-out
// and cancellation use this list to flip or release room statuses.
func (r *AssignedRoomRepo) RoomIDsByReservationTx(ctx context.Context, tx *sql.Tx, reservationID uint64) ([]uint64, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT room_id FROM assigned_rooms WHERE reservation_id = ?`, reservationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []uint64
	for rows.Next() {
		var id uint64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ListByReservationTx returns the full assignment rows for a
// reservation inside the transaction, ordered by room number.
func (r *AssignedRoomRepo) ListByReservationTx(ctx context.Context, tx *sql.Tx, reservationID uint64) ([]model.AssignedRoom, error) {
	const q = `SELECT id, reservation_id, room_id, room_number, room_type_id,
	                  check_in, check_out, created_at
	           FROM assigned_rooms
	           WHERE reservation_id = ?
	           ORDER BY room_number`
	rows, err := tx.QueryContext(ctx, q, reservationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.AssignedRoom, 0)
	for rows.Next() {
		var ar model.AssignedRoom
		if err := rows.Scan(&ar.ID, &ar.ReservationID, &ar.RoomID, &ar.RoomNumber,
			&ar.RoomTypeID, &ar.CheckIn, &ar.CheckOut, &ar.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, ar)
	}
	return out, rows.Err()
}

// ListByReservation returns the full assignment rows for a
// reservation, ordered by room number for deterministic output.
func (r *AssignedRoomRepo) ListByReservation(ctx context.Context, reservationID uint64) ([]model.AssignedRoom, error) {
	const q = `SELECT id, reservation_id, room_id, room_number, room_type_id,
	                  check_in, check_out, created_at
	           FROM assigned_rooms
	           WHERE reservation_id = ?
	           ORDER BY room_number`
	rows, err := r.db.QueryContext(ctx, q, reservationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.AssignedRoom, 0)
	for rows.Next() {
		var ar model.AssignedRoom
		if err := rows.Scan(&ar.ID, &ar.ReservationID, &ar.RoomID, &ar.RoomNumber,
			&ar.RoomTypeID, &ar.CheckIn, &ar.CheckOut, &ar.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, ar)
	}
	return out, rows.Err()
}
