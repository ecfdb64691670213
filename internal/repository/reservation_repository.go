package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/hotelhub/booking-api/internal/model"
)

// ReservationRepo provides data access for reservations and their
// room-type requirements.  Reservations are only ever inserted and
// status-updated; rows are never deleted.  Requirements are written
// once at reservation creation and read-only afterward.  All
// timestamp fields are stored in UTC.
type ReservationRepo struct {
	db *sql.DB
}

// NewReservationRepo returns a new ReservationRepo bound to the given database.
func NewReservationRepo(db *sql.DB) *ReservationRepo { return &ReservationRepo{db: db} }

// DB exposes the underlying handle so callers can open transactions
// spanning multiple repositories.
func (r *ReservationRepo) DB() *sql.DB { return r.db }

const reservationColumns = `id, guest_name, guest_email, guest_phone, headcount,
	check_in, check_out, special_request, booking_status, booking_type,
	cancel_reason, cancel_note, created_at, updated_at`

// CreateTx inserts a new reservation and its room-type requirements
// within the scope of an existing transaction.  It populates the
// generated ID and DB-side timestamps on the provided record.  The
// caller must commit or roll back the transaction.  The reservation
// must satisfy check_out > check_in; the service layer validates this
// before calling.
func (r *ReservationRepo) CreateTx(ctx context.Context, tx *sql.Tx, res *model.Reservation, reqs []model.RoomTypeRequirement) error {
	const q = `INSERT INTO reservations
		(guest_name, guest_email, guest_phone, headcount, check_in, check_out,
		 special_request, booking_status, booking_type)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	result, err := tx.ExecContext(ctx, q,
		res.GuestName, res.GuestEmail, res.GuestPhone, res.Headcount,
		res.CheckIn.UTC(), res.CheckOut.UTC(), res.SpecialRequest,
		string(res.Status), string(res.Type))
	if err != nil {
		return err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	res.ID = uint64(id)
	if err := r.insertRequirementsTx(ctx, tx, res.ID, reqs); err != nil {
		return err
	}
	// Query back the full row to populate timestamps and defaults.
	row := tx.QueryRowContext(ctx, `SELECT `+reservationColumns+` FROM reservations WHERE id = ?`, res.ID)
	return scanReservation(row, res)
}

// insertRequirementsTx bulk-inserts the room_type_requirements rows for
// a reservation in a single statement.  Passing an empty slice has no
// effect and returns nil.
func (r *ReservationRepo) insertRequirementsTx(ctx context.Context, tx *sql.Tx, reservationID uint64, reqs []model.RoomTypeRequirement) error {
	if len(reqs) == 0 {
		return nil
	}
	query := `INSERT INTO room_type_requirements
		(reservation_id, room_type_id, quantity, type_name, nightly_price_cents) VALUES `
	args := make([]interface{}, 0, len(reqs)*5)
	for i, rq := range reqs {
		if i > 0 {
			query += ","
		}
		query += "(?, ?, ?, ?, ?)"
		args = append(args, reservationID, rq.RoomTypeID, rq.Quantity, rq.TypeName, rq.NightlyPriceCents)
	}
	_, err := tx.ExecContext(ctx, query, args...)
	return err
}

// GetByID returns a single reservation.  It returns
// ErrReservationNotFound when no reservation with the given id exists.
func (r *ReservationRepo) GetByID(ctx context.Context, id uint64) (*model.Reservation, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+reservationColumns+` FROM reservations WHERE id = ?`, id)
	var res model.Reservation
	if err := scanReservation(row, &res); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrReservationNotFound
		}
		return nil, err
	}
	return &res, nil
}

// GetForUpdateTx re-reads a reservation inside the given transaction
// with a row lock (SELECT ... FOR UPDATE).  The state machine uses
// this to guarantee transitions are applied against the current
// status, never a stale read.  Returns ErrReservationNotFound when the
// id does not exist.
func (r *ReservationRepo) GetForUpdateTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Reservation, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+reservationColumns+` FROM reservations WHERE id = ? FOR UPDATE`, id)
	var res model.Reservation
	if err := scanReservation(row, &res); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrReservationNotFound
		}
		return nil, err
	}
	return &res, nil
}

// UpdateStatusTx writes a new booking status for the reservation
// within the transaction.  It does not validate the transition; that
// is the state machine's job.
func (r *ReservationRepo) UpdateStatusTx(ctx context.Context, tx *sql.Tx, id uint64, status model.BookingStatus) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE reservations SET booking_status = ? WHERE id = ?`, string(status), id)
	return err
}

// CancelTx marks a reservation cancelled, recording the reason code
// and the optional note.  The row itself is preserved.
func (r *ReservationRepo) CancelTx(ctx context.Context, tx *sql.Tx, id uint64, reason model.CancelReason, note *string) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE reservations SET booking_status = ?, cancel_reason = ?, cancel_note = ? WHERE id = ?`,
		string(model.StatusCancelled), string(reason), note, id)
	return err
}

// RequirementsTx loads the room-type requirements of a reservation
// inside the given transaction, ordered by room type for deterministic
// output.
func (r *ReservationRepo) RequirementsTx(ctx context.Context, tx *sql.Tx, reservationID uint64) ([]model.RoomTypeRequirement, error) {
	const q = `SELECT id, reservation_id, room_type_id, quantity, type_name, nightly_price_cents
	           FROM room_type_requirements
	           WHERE reservation_id = ?
	           ORDER BY room_type_id`
	rows, err := tx.QueryContext(ctx, q, reservationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var reqs []model.RoomTypeRequirement
	for rows.Next() {
		var rq model.RoomTypeRequirement
		if err := rows.Scan(&rq.ID, &rq.ReservationID, &rq.RoomTypeID, &rq.Quantity, &rq.TypeName, &rq.NightlyPriceCents); err != nil {
			return nil, err
		}
		reqs = append(reqs, rq)
	}
	return reqs, rows.Err()
}

// Requirements is the non-transactional variant of RequirementsTx.
func (r *ReservationRepo) Requirements(ctx context.Context, reservationID uint64) ([]model.RoomTypeRequirement, error) {
	const q = `SELECT id, reservation_id, room_type_id, quantity, type_name, nightly_price_cents
	           FROM room_type_requirements
	           WHERE reservation_id = ?
	           ORDER BY room_type_id`
	rows, err := r.db.QueryContext(ctx, q, reservationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var reqs []model.RoomTypeRequirement
	for rows.Next() {
		var rq model.RoomTypeRequirement
		if err := rows.Scan(&rq.ID, &rq.ReservationID, &rq.RoomTypeID, &rq.Quantity, &rq.TypeName, &rq.NightlyPriceCents); err != nil {
			return nil, err
		}
		reqs = append(reqs, rq)
	}
	return reqs, rows.Err()
}

// List returns reservations ordered by creation time descending
// (newest first), up to the given limit.  Staff use this for the
// booking desk overview.
func (r *ReservationRepo) List(ctx context.Context, limit int) ([]model.Reservation, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+reservationColumns+` FROM reservations ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Reservation, 0)
	for rows.Next() {
		var res model.Reservation
		if err := scanReservation(rows, &res); err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, rows.Err()
}

// ListByGuestEmail returns the reservations belonging to a guest,
// newest first.  Customers only ever see their own reservations;
// ownership is enforced by the handler against the authenticated user.
func (r *ReservationRepo) ListByGuestEmail(ctx context.Context, email string) ([]model.Reservation, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+reservationColumns+` FROM reservations WHERE guest_email = ? ORDER BY created_at DESC`, email)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Reservation, 0)
	for rows.Next() {
		var res model.Reservation
		if err := scanReservation(rows, &res); err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, rows.Err()
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanReservation reads one reservations row into res, converting
// nullable columns to pointers.
func scanReservation(row rowScanner, res *model.Reservation) error {
	var (
		special      sql.NullString
		status       string
		bookingType  string
		cancelReason sql.NullString
		cancelNote   sql.NullString
	)
	if err := row.Scan(
		&res.ID, &res.GuestName, &res.GuestEmail, &res.GuestPhone, &res.Headcount,
		&res.CheckIn, &res.CheckOut, &special, &status, &bookingType,
		&cancelReason, &cancelNote, &res.CreatedAt, &res.UpdatedAt,
	); err != nil {
		return err
	}
	res.Status = model.BookingStatus(status)
	res.Type = model.BookingType(bookingType)
	if special.Valid {
		s := special.String
		res.SpecialRequest = &s
	}
	if cancelReason.Valid {
		cr := model.CancelReason(cancelReason.String)
		res.CancelReason = &cr
	}
	if cancelNote.Valid {
		n := cancelNote.String
		res.CancelNote = &n
	}
	return nil
}
