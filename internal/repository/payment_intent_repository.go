package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/hotelhub/booking-api/internal/model"
)

// PaymentIntentRepo provides data access to the payment_intents table.
// Status changes are expressed as guarded UPDATE statements so that an
// intent can only ever leave PENDING once: a confirmation and an
// expiry racing each other resolve in the database, not in process
// memory, and a terminal intent can never be revived.
type PaymentIntentRepo struct {
	db *sql.DB
}

// NewPaymentIntentRepo returns a new PaymentIntentRepo bound to the given database.
func NewPaymentIntentRepo(db *sql.DB) *PaymentIntentRepo { return &PaymentIntentRepo{db: db} }

const intentColumns = `id, invoice_id, reservation_id, amount_cents, reference,
	bank_name, bank_account, bank_holder, status, verified_by, has_update,
	expires_at, confirmed_at, created_at`

// Create inserts a new PENDING intent and populates the generated ID
// and DB-side timestamps on the record.
func (r *PaymentIntentRepo) Create(ctx context.Context, in *model.PaymentIntent) error {
	const q = `INSERT INTO payment_intents
		(invoice_id, reservation_id, amount_cents, reference,
		 bank_name, bank_account, bank_holder, status, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	result, err := r.db.ExecContext(ctx, q,
		in.InvoiceID, in.ReservationID, in.AmountCents, in.Reference,
		in.Bank.BankName, in.Bank.AccountNumber, in.Bank.AccountHolder,
		string(in.Status), in.ExpiresAt.UTC())
	if err != nil {
		return err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	in.ID = uint64(id)
	row := r.db.QueryRowContext(ctx, `SELECT `+intentColumns+` FROM payment_intents WHERE id = ?`, in.ID)
	return scanIntent(row, in)
}

// GetByID returns an intent, or ErrIntentNotFound when the id does not
// exist.
func (r *PaymentIntentRepo) GetByID(ctx context.Context, id uint64) (*model.PaymentIntent, error) {
	var in model.PaymentIntent
	row := r.db.QueryRowContext(ctx, `SELECT `+intentColumns+` FROM payment_intents WHERE id = ?`, id)
	if err := scanIntent(row, &in); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrIntentNotFound
		}
		return nil, err
	}
	return &in, nil
}

// ConfirmFromSettlement transitions the intent to CONFIRMED when, and
// only when, it is still PENDING and its expiry deadline has not
// passed.  This is the guard behind expiry finality: a late oracle
// match can never move an intent out of EXPIRED.  Returns true when
// the transition was applied.
func (r *PaymentIntentRepo) ConfirmFromSettlement(ctx context.Context, id uint64, now time.Time) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE payment_intents
		 SET status = 'CONFIRMED', confirmed_at = ?, has_update = 1
		 WHERE id = ? AND status = 'PENDING' AND expires_at > ?`,
		now.UTC(), id, now.UTC())
	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	return n > 0, err
}

// ForceConfirm transitions a PENDING intent to CONFIRMED on the
// authority of a staff actor, recording who verified it.  Unlike
// ConfirmFromSettlement it does not require the deadline to be in the
// future, but it still refuses to touch a terminal intent.  Returns
// true when the transition was applied.
func (r *PaymentIntentRepo) ForceConfirm(ctx context.Context, id, verifiedBy uint64, now time.Time) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE payment_intents
		 SET status = 'CONFIRMED', confirmed_at = ?, verified_by = ?, has_update = 1
		 WHERE id = ? AND status = 'PENDING'`,
		now.UTC(), verifiedBy, id)
	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	return n > 0, err
}

// MarkExpired transitions a PENDING intent to EXPIRED.  Returns true
// when the transition was applied; false means the intent already
// reached a terminal status.
func (r *PaymentIntentRepo) MarkExpired(ctx context.Context, id uint64) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE payment_intents SET status = 'EXPIRED', has_update = 1
		 WHERE id = ? AND status = 'PENDING'`, id)
	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	return n > 0, err
}

// TakeUpdateFlag atomically reads and clears the has_update flag.  The
// payment-status endpoint uses the returned value to tell clients
// whether the status actually changed since their last poll.
func (r *PaymentIntentRepo) TakeUpdateFlag(ctx context.Context, id uint64) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE payment_intents SET has_update = 0 WHERE id = ? AND has_update = 1`, id)
	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	return n > 0, err
}

// ListPending returns all intents still in PENDING, used at startup to
// resume polling for intents that were live when the process stopped.
func (r *PaymentIntentRepo) ListPending(ctx context.Context) ([]model.PaymentIntent, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+intentColumns+` FROM payment_intents WHERE status = 'PENDING' ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.PaymentIntent, 0)
	for rows.Next() {
		var in model.PaymentIntent
		if err := scanIntent(rows, &in); err != nil {
			return nil, err
		}
		out = append(out, in)
	}
	return out, rows.Err()
}

func scanIntent(row rowScanner, in *model.PaymentIntent) error {
	var (
		status      string
		verifiedBy  sql.NullInt64
		confirmedAt sql.NullTime
	)
	if err := row.Scan(
		&in.ID, &in.InvoiceID, &in.ReservationID, &in.AmountCents, &in.Reference,
		&in.Bank.BankName, &in.Bank.AccountNumber, &in.Bank.AccountHolder,
		&status, &verifiedBy, &in.HasUpdate,
		&in.ExpiresAt, &confirmedAt, &in.CreatedAt,
	); err != nil {
		return err
	}
	in.Status = model.IntentStatus(status)
	if verifiedBy.Valid {
		v := uint64(verifiedBy.Int64)
		in.VerifiedBy = &v
	}
	if confirmedAt.Valid {
		t := confirmedAt.Time
		in.ConfirmedAt = &t
	}
	return nil
}
