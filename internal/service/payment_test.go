package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/hotelhub/booking-api/internal/model"
	"github.com/hotelhub/booking-api/internal/repository"
	"github.com/hotelhub/booking-api/internal/settlement"
)

// fakeOracle serves canned transactions, recording the fragment it was
// asked for.
type fakeOracle struct {
	txns     []settlement.Transaction
	err      error
	fragment string
}

func (f *fakeOracle) SearchNarrative(_ context.Context, fragment string) ([]settlement.Transaction, error) {
	f.fragment = fragment
	return f.txns, f.err
}

var testClock = time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)

func newPaymentService(t *testing.T, oracle settlement.Oracle) (*PaymentService, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock init error: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	svc := NewPaymentService(
		repository.NewPaymentIntentRepo(db),
		repository.NewInvoiceRepo(db),
		repository.NewReservationRepo(db),
		oracle, nil,
		model.BankDetails{BankName: "Bank Nusantara", AccountNumber: "123456", AccountHolder: "HotelHub"},
		30*time.Minute,
	).WithClock(func() time.Time { return testClock })
	return svc, mock
}

// intentRow builds one payment_intents row in column order.
func intentRow(id uint64, status model.IntentStatus, amount int64, ref string, expiresAt time.Time) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "invoice_id", "reservation_id", "amount_cents", "reference",
		"bank_name", "bank_account", "bank_holder", "status", "verified_by", "has_update",
		"expires_at", "confirmed_at", "created_at",
	}).AddRow(id, 42, 7, amount, ref,
		"Bank Nusantara", "123456", "HotelHub", string(status), nil, false,
		expiresAt, nil, testClock.Add(-10*time.Minute))
}

func expectIntentGet(mock sqlmock.Sqlmock, id uint64, rows *sqlmock.Rows) {
	mock.ExpectQuery(`FROM payment_intents WHERE id = \?`).
		WithArgs(id).
		WillReturnRows(rows)
}

func TestPollOnceConfirmsOnExactMatch(t *testing.T) {
	oracle := &fakeOracle{txns: []settlement.Transaction{
		{ID: "tx-1", AmountCents: 5_000_000, Narrative: "TRF INV42 BK7 brigitta k", PostedAt: testClock},
	}}
	svc, mock := newPaymentService(t, oracle)

	expiresAt := testClock.Add(20 * time.Minute)
	expectIntentGet(mock, 9, intentRow(9, model.IntentPending, 5_000_000, "HOTELHUB INV42 BK7", expiresAt))
	mock.ExpectExec(`expires_at > \?`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	expectIntentGet(mock, 9, intentRow(9, model.IntentConfirmed, 5_000_000, "HOTELHUB INV42 BK7", expiresAt))
	mock.ExpectExec(`UPDATE invoices SET status = 'PAID'`).
		WithArgs(uint64(42)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	in, done, err := svc.PollOnce(context.Background(), 9)
	if err != nil {
		t.Fatalf("poll failed: %v", err)
	}
	if !done {
		t.Fatalf("poll should report finished after confirmation")
	}
	if in.Status != model.IntentConfirmed {
		t.Fatalf("expected CONFIRMED, got %s", in.Status)
	}
	// The oracle is searched with the brand stripped.
	if oracle.fragment != "INV42 BK7" {
		t.Fatalf("wrong search fragment: %q", oracle.fragment)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPollOnceAmountMismatchStaysPending(t *testing.T) {
	// Narrative matches but the settled amount is short; no confirmation.
	oracle := &fakeOracle{txns: []settlement.Transaction{
		{ID: "tx-2", AmountCents: 4_999_999, Narrative: "TRF INV42 BK7", PostedAt: testClock},
	}}
	svc, mock := newPaymentService(t, oracle)

	expectIntentGet(mock, 9, intentRow(9, model.IntentPending, 5_000_000, "HOTELHUB INV42 BK7", testClock.Add(20*time.Minute)))

	in, done, err := svc.PollOnce(context.Background(), 9)
	if err != nil {
		t.Fatalf("poll failed: %v", err)
	}
	if done {
		t.Fatalf("mismatch must keep polling")
	}
	if in.Status != model.IntentPending {
		t.Fatalf("expected PENDING, got %s", in.Status)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPollOnceExpiresPastDeadline(t *testing.T) {
	oracle := &fakeOracle{}
	svc, mock := newPaymentService(t, oracle)

	expired := testClock.Add(-time.Minute)
	expectIntentGet(mock, 9, intentRow(9, model.IntentPending, 5_000_000, "HOTELHUB INV42 BK7", expired))
	mock.ExpectExec(`SET status = 'EXPIRED'`).
		WithArgs(uint64(9)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	expectIntentGet(mock, 9, intentRow(9, model.IntentExpired, 5_000_000, "HOTELHUB INV42 BK7", expired))

	in, done, err := svc.PollOnce(context.Background(), 9)
	if err != nil {
		t.Fatalf("poll failed: %v", err)
	}
	if !done {
		t.Fatalf("expired intent should finish polling")
	}
	if in.Status != model.IntentExpired {
		t.Fatalf("expected EXPIRED, got %s", in.Status)
	}
	// The oracle must not be consulted once the deadline passed.
	if oracle.fragment != "" {
		t.Fatalf("oracle searched after expiry: %q", oracle.fragment)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPollOnceTerminalIsNoop(t *testing.T) {
	oracle := &fakeOracle{}
	svc, mock := newPaymentService(t, oracle)

	expectIntentGet(mock, 9, intentRow(9, model.IntentConfirmed, 5_000_000, "HOTELHUB INV42 BK7", testClock.Add(time.Hour)))

	in, done, err := svc.PollOnce(context.Background(), 9)
	if err != nil {
		t.Fatalf("poll failed: %v", err)
	}
	if !done || in.Status != model.IntentConfirmed {
		t.Fatalf("terminal intent should be reported finished untouched, got done=%v status=%s", done, in.Status)
	}
}

func TestPollOnceOracleOutageRetries(t *testing.T) {
	oracle := &fakeOracle{err: errors.New("oracle down")}
	svc, mock := newPaymentService(t, oracle)

	expectIntentGet(mock, 9, intentRow(9, model.IntentPending, 5_000_000, "HOTELHUB INV42 BK7", testClock.Add(time.Hour)))

	in, done, err := svc.PollOnce(context.Background(), 9)
	if err != nil {
		t.Fatalf("outage must not surface as an error: %v", err)
	}
	if done {
		t.Fatalf("outage must keep polling")
	}
	if in.Status != model.IntentPending {
		t.Fatalf("expected PENDING, got %s", in.Status)
	}
}

func TestRequestTransferRejectsWrongAmount(t *testing.T) {
	svc, mock := newPaymentService(t, &fakeOracle{})

	rows := sqlmock.NewRows([]string{
		"id", "reservation_id", "room_subtotal_cents", "tax_cents",
		"discount_cents", "total_cents", "customer_name", "customer_email", "customer_phone",
		"status", "finalized_at", "created_at",
	}).AddRow(42, 7, 4_500_000, 500_000, 0, 5_000_000,
		"Brigitta Kusuma", "brigitta@example.com", "+62 811 000", "OPEN", nil, testClock)
	mock.ExpectQuery(`FROM invoices WHERE id = \?`).
		WithArgs(uint64(42)).
		WillReturnRows(rows)

	_, err := svc.RequestTransfer(context.Background(), 42, 4_999_999)
	if !errors.Is(err, ErrAmountMismatch) {
		t.Fatalf("expected ErrAmountMismatch, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestForceVerifyRecordsActor(t *testing.T) {
	svc, mock := newPaymentService(t, &fakeOracle{})

	mock.ExpectExec(`verified_by = \?`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	expectIntentGet(mock, 9, intentRow(9, model.IntentConfirmed, 5_000_000, "HOTELHUB INV42 BK7", testClock.Add(-time.Minute)))
	mock.ExpectExec(`UPDATE invoices SET status = 'PAID'`).
		WithArgs(uint64(42)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	in, err := svc.ForceVerify(context.Background(), 9, 77)
	if err != nil {
		t.Fatalf("force verify failed: %v", err)
	}
	if in.Status != model.IntentConfirmed {
		t.Fatalf("expected CONFIRMED, got %s", in.Status)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestForceVerifyRefusesTerminalIntent(t *testing.T) {
	svc, mock := newPaymentService(t, &fakeOracle{})

	// Guarded update touches no row: the intent already settled.
	mock.ExpectExec(`verified_by = \?`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	expectIntentGet(mock, 9, intentRow(9, model.IntentExpired, 5_000_000, "HOTELHUB INV42 BK7", testClock.Add(-time.Hour)))

	_, err := svc.ForceVerify(context.Background(), 9, 77)
	if !errors.Is(err, ErrIntentTerminal) {
		t.Fatalf("expected ErrIntentTerminal, got %v", err)
	}
}

func TestBuildReference(t *testing.T) {
	ref := buildReference(42, "Brigitta Kusuma", 7)
	if ref != "HOTELHUB INV42 BK7" {
		t.Fatalf("wrong reference: %q", ref)
	}
	if got := MatchFragment(ref); got != "INV42 BK7" {
		t.Fatalf("wrong match fragment: %q", got)
	}
}

func TestInitials(t *testing.T) {
	cases := map[string]string{
		"Brigitta Kusuma":        "BK",
		"john":                   "J",
		"Anna Maria Luisa Rossi": "AML", // capped at three
		"":                       "X",
	}
	for name, want := range cases {
		if got := initials(name); got != want {
			t.Fatalf("initials(%q) = %q, want %q", name, got, want)
		}
	}
}
