package model

import "time"

// IntentStatus enumerates the states of a payment intent.  PENDING is
// the only non-terminal state; CONFIRMED, EXPIRED and FAILED are
// terminal and an intent never leaves them.
type IntentStatus string

const (
	IntentPending   IntentStatus = "PENDING"
	IntentConfirmed IntentStatus = "CONFIRMED"
	IntentExpired   IntentStatus = "EXPIRED"
	IntentFailed    IntentStatus = "FAILED"
)

// Terminal reports whether the status admits no further change.
func (s IntentStatus) Terminal() bool { return s != IntentPending }

// InvoiceStatus tracks the billing state of a reservation's invoice.
type InvoiceStatus string

const (
	InvoiceOpen      InvoiceStatus = "OPEN"
	InvoicePaid      InvoiceStatus = "PAID"
	InvoiceFinalized InvoiceStatus = "FINALIZED"
)

// PricingBreakdown is the canonical price composition of an invoice.
// It is produced once, at invoice-creation time, so that every
// downstream consumer reads the same figures instead of re-deriving
// them from scattered sources.
//
// Fields:
//  RoomSubtotalCents – sum of nightly prices over the stay.
//  TaxCents          – tax portion in minor units.
//  DiscountCents     – discount applied in minor units.
//  TotalCents        – RoomSubtotal + Tax - Discount.
type PricingBreakdown struct {
	RoomSubtotalCents int64 `json:"room_subtotal_cents"`
	TaxCents          int64 `json:"tax_cents"`
	DiscountCents     int64 `json:"discount_cents"`
	TotalCents        int64 `json:"total_cents"`
}

// CustomerInfo is the guest snapshot captured on the invoice at
// creation time.
//
// Fields:
//  Name  – guest full name.
//  Email – guest email address.
//  Phone – guest phone number.
type CustomerInfo struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// Invoice is the single billing document attached to a reservation.
//
// Fields:
//  ID            – primary key identifier.
//  ReservationID – owning reservation (one invoice per reservation).
//  Pricing       – canonical PricingBreakdown.
//  Customer      – guest snapshot at invoice creation.
//  Status        – InvoiceStatus.
//  FinalizedAt   – set when the invoice is finalized at check-out.
//  CreatedAt     – creation timestamp.
type Invoice struct {
	ID            uint64           `json:"id"`
	ReservationID uint64           `json:"reservation_id"`
	Pricing       PricingBreakdown `json:"pricing"`
	Customer      CustomerInfo     `json:"customer"`
	Status        InvoiceStatus    `json:"status"`
	FinalizedAt   *time.Time       `json:"finalized_at,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
}

// BankDetails are the counterparty account details rendered to the
// guest alongside a transfer request.
//
// Fields:
//  BankName      – name of the receiving bank.
//  AccountNumber – account number to transfer to.
//  AccountHolder – name on the receiving account.
type BankDetails struct {
	BankName      string `json:"bank_name"`
	AccountNumber string `json:"account_number"`
	AccountHolder string `json:"account_holder"`
}

// PaymentIntent is a requested, time-boxed bank transfer awaiting
// external confirmation.  An intent is created PENDING with a hard
// expiry and is mutated only by the settlement poller or by an
// explicit manual verification; once CONFIRMED, EXPIRED or FAILED it
// never changes again.
//
// Fields:
//  ID            – primary key identifier.
//  InvoiceID     – invoice being paid.
//  ReservationID – reservation the invoice belongs to.
//  AmountCents   – exact amount expected, in minor currency units.
//  Reference     – deterministic, human-decodable transfer reference
//                  embedding the invoice id and a guest fragment, so a
//                  bank narrative can be matched back to the intent.
//  Bank          – counterparty details shown to the guest.
//  Status        – IntentStatus.
//  VerifiedBy    – staff user id when manually verified (nullable).
//  HasUpdate     – true when the status changed since the client last
//                  polled; cleared on read.
//  ExpiresAt     – hard expiry deadline.
//  ConfirmedAt   – set when the intent is confirmed (nullable).
//  CreatedAt     – creation timestamp.
type PaymentIntent struct {
	ID            uint64       `json:"id"`
	InvoiceID     uint64       `json:"invoice_id"`
	ReservationID uint64       `json:"reservation_id"`
	AmountCents   int64        `json:"amount_cents"`
	Reference     string       `json:"reference"`
	Bank          BankDetails  `json:"bank"`
	Status        IntentStatus `json:"status"`
	VerifiedBy    *uint64      `json:"verified_by,omitempty"`
	HasUpdate     bool         `json:"-"`
	ExpiresAt     time.Time    `json:"expires_at"`
	ConfirmedAt   *time.Time   `json:"confirmed_at,omitempty"`
	CreatedAt     time.Time    `json:"created_at"`
}
