package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/hotelhub/booking-api/internal/model"
)

// InvoiceRepo provides data access to the invoices table.  An invoice
// carries the canonical pricing breakdown and customer snapshot
// produced once at creation time; later consumers (payment intents,
// rendering) read these columns instead of re-deriving figures from
// other tables.
type InvoiceRepo struct {
	db *sql.DB
}

// NewInvoiceRepo returns a new InvoiceRepo bound to the given database.
func NewInvoiceRepo(db *sql.DB) *InvoiceRepo { return &InvoiceRepo{db: db} }

const invoiceColumns = `id, reservation_id, room_subtotal_cents, tax_cents,
	discount_cents, total_cents, customer_name, customer_email, customer_phone,
	status, finalized_at, created_at`

// CreateTx inserts an invoice within the provided transaction and
// populates the generated ID on the record.  One invoice exists per
// reservation; the unique key on reservation_id enforces this.
func (r *InvoiceRepo) CreateTx(ctx context.Context, tx *sql.Tx, inv *model.Invoice) error {
	const q = `INSERT INTO invoices
		(reservation_id, room_subtotal_cents, tax_cents, discount_cents, total_cents,
		 customer_name, customer_email, customer_phone, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	result, err := tx.ExecContext(ctx, q,
		inv.ReservationID,
		inv.Pricing.RoomSubtotalCents, inv.Pricing.TaxCents,
		inv.Pricing.DiscountCents, inv.Pricing.TotalCents,
		inv.Customer.Name, inv.Customer.Email, inv.Customer.Phone,
		string(inv.Status))
	if err != nil {
		return err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	inv.ID = uint64(id)
	return nil
}

// GetByID returns an invoice, or ErrInvoiceNotFound when the id does
// not exist.
func (r *InvoiceRepo) GetByID(ctx context.Context, id uint64) (*model.Invoice, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE id = ?`, id)
	return scanInvoice(row)
}

// GetByReservation returns the invoice attached to a reservation, or
// ErrInvoiceNotFound when none exists.
func (r *InvoiceRepo) GetByReservation(ctx context.Context, reservationID uint64) (*model.Invoice, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+invoiceColumns+` FROM invoices WHERE reservation_id = ?`, reservationID)
	return scanInvoice(row)
}

// MarkPaid flips an invoice from OPEN to PAID.  Called when the
// payment intent covering it is confirmed.
func (r *InvoiceRepo) MarkPaid(ctx context.Context, id uint64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE invoices SET status = 'PAID' WHERE id = ? AND status = 'OPEN'`, id)
	return err
}

// FinalizeByReservationTx finalizes the reservation's invoice at
// check-out within the transaction, stamping finalized_at.
func (r *InvoiceRepo) FinalizeByReservationTx(ctx context.Context, tx *sql.Tx, reservationID uint64) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE invoices SET status = 'FINALIZED', finalized_at = UTC_TIMESTAMP()
		 WHERE reservation_id = ? AND finalized_at IS NULL`, reservationID)
	return err
}

func scanInvoice(row rowScanner) (*model.Invoice, error) {
	var inv model.Invoice
	var status string
	var finalizedAt sql.NullTime
	err := row.Scan(
		&inv.ID, &inv.ReservationID,
		&inv.Pricing.RoomSubtotalCents, &inv.Pricing.TaxCents,
		&inv.Pricing.DiscountCents, &inv.Pricing.TotalCents,
		&inv.Customer.Name, &inv.Customer.Email, &inv.Customer.Phone,
		&status, &finalizedAt, &inv.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrInvoiceNotFound
		}
		return nil, err
	}
	inv.Status = model.InvoiceStatus(status)
	if finalizedAt.Valid {
		t := finalizedAt.Time
		inv.FinalizedAt = &t
	}
	return &inv, nil
}
