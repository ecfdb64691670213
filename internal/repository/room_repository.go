package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/hotelhub/booking-api/internal/model"
)

// RoomRepo encapsulates database operations on the physical room
// inventory (rooms and room_types).  Availability for a date window is
// derived from the live room status plus the absence of an overlapping
// assignment belonging to an active reservation.
type RoomRepo struct {
	db *sql.DB
}

// NewRoomRepo constructs a RoomRepo given a DB handle.
func NewRoomRepo(db *sql.DB) *RoomRepo { return &RoomRepo{db: db} }

// AvailableRooms returns the rooms of the requested types that can be
// allocated for the [checkIn, checkOut) window: their live status is
// AVAILABLE and no CONFIRMED or CHECKED_IN reservation holds an
// overlapping assignment on them.  Passing an empty typeIDs slice
// returns candidates of every type.  Results are ordered by type and
// room number for deterministic output.
func (r *RoomRepo) AvailableRooms(ctx context.Context, checkIn, checkOut time.Time, typeIDs []uint64) ([]model.RoomCandidate, error) {
	query := `SELECT rm.id, rm.room_number, rm.room_type_id, rt.name, rm.floor,
	                 rt.capacity, rt.nightly_price_cents, rm.status
	          FROM rooms rm
	          JOIN room_types rt ON rt.id = rm.room_type_id
	          WHERE rm.status = 'AVAILABLE'
	            AND NOT EXISTS (
	                SELECT 1 FROM assigned_rooms ar
	                JOIN reservations res ON res.id = ar.reservation_id
	                WHERE ar.room_id = rm.id
	                  AND res.booking_status IN ('CONFIRMED', 'CHECKED_IN')
	                  AND ar.check_in < ? AND ar.check_out > ?
	            )`
	args := []interface{}{checkOut.UTC(), checkIn.UTC()}
	if len(typeIDs) > 0 {
		placeholders := make([]string, 0, len(typeIDs))
		for _, id := range typeIDs {
			placeholders = append(placeholders, "?")
			args = append(args, id)
		}
		query += ` AND rm.room_type_id IN (` + strings.Join(placeholders, ",") + `)`
	}
	query += ` ORDER BY rm.room_type_id, rm.room_number`
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	candidates := make([]model.RoomCandidate, 0)
	for rows.Next() {
		var c model.RoomCandidate
		var status string
		if err := rows.Scan(&c.RoomID, &c.RoomNumber, &c.RoomTypeID, &c.TypeName,
			&c.Floor, &c.Capacity, &c.NightlyPriceCents, &status); err != nil {
			return nil, err
		}
		c.Status = model.RoomStatus(status)
		candidates = append(candidates, c)
	}
	return candidates, rows.Err()
}

// CandidatesForUpdateTx loads the given rooms inside the transaction
// with row locks (SELECT ... FOR UPDATE), returning their current
// state as candidates.  The allocator calls this immediately before
// committing an allocation so that a room which became unavailable
// between the availability query and the commit is detected rather
// than silently substituted.  Rooms are returned in the order of the
// ids slice; ids not present in the table are simply absent from the
// result.
func (r *RoomRepo) CandidatesForUpdateTx(ctx context.Context, tx *sql.Tx, roomIDs []uint64) (map[uint64]model.RoomCandidate, error) {
	if len(roomIDs) == 0 {
		return map[uint64]model.RoomCandidate{}, nil
	}
	placeholders := make([]string, 0, len(roomIDs))
	args := make([]interface{}, 0, len(roomIDs))
	for _, id := range roomIDs {
		placeholders = append(placeholders, "?")
		args = append(args, id)
	}
	query := `SELECT rm.id, rm.room_number, rm.room_type_id, rt.name, rm.floor,
	                 rt.capacity, rt.nightly_price_cents, rm.status
	          FROM rooms rm
	          JOIN room_types rt ON rt.id = rm.room_type_id
	          WHERE rm.id IN (` + strings.Join(placeholders, ",") + `)
	          FOR UPDATE`
	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[uint64]model.RoomCandidate, len(roomIDs))
	for rows.Next() {
		var c model.RoomCandidate
		var status string
		if err := rows.Scan(&c.RoomID, &c.RoomNumber, &c.RoomTypeID, &c.TypeName,
			&c.Floor, &c.Capacity, &c.NightlyPriceCents, &status); err != nil {
			return nil, err
		}
		c.Status = model.RoomStatus(status)
		out[c.RoomID] = c
	}
	return out, rows.Err()
}

// BulkUpdateStatusTx sets the status of the given rooms in a single
// statement within the transaction.  Both the allocator (AVAILABLE ->
// RESERVED / OCCUPIED) and the check-out path (-> AVAILABLE) go
// through this method so that room availability is only ever mutated
// under the same exclusive commit path.  Passing an empty slice has no
// effect and returns nil.
func (r *RoomRepo) BulkUpdateStatusTx(ctx context.Context, tx *sql.Tx, roomIDs []uint64, status model.RoomStatus) error {
	if len(roomIDs) == 0 {
		return nil
	}
	placeholders := make([]string, 0, len(roomIDs))
	args := make([]interface{}, 0, len(roomIDs)+1)
	args = append(args, string(status))
	for _, id := range roomIDs {
		placeholders = append(placeholders, "?")
		args = append(args, id)
	}
	query := `UPDATE rooms SET status = ? WHERE id IN (` + strings.Join(placeholders, ",") + `)`
	_, err := tx.ExecContext(ctx, query, args...)
	return err
}

// RoomTypeByID returns a room type row.  Used when building
// requirements at reservation-creation time to capture the type name
// and reference price.
func (r *RoomRepo) RoomTypeByID(ctx context.Context, id uint64) (*model.RoomType, error) {
	var rt model.RoomType
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, capacity, nightly_price_cents FROM room_types WHERE id = ?`, id).
		Scan(&rt.ID, &rt.Name, &rt.Capacity, &rt.NightlyPriceCents)
	if err != nil {
		return nil, err
	}
	return &rt, nil
}
