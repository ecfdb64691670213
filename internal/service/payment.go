package service

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"
	"unicode"

	"github.com/hotelhub/booking-api/internal/model"
	"github.com/hotelhub/booking-api/internal/queue"
	"github.com/hotelhub/booking-api/internal/repository"
	"github.com/hotelhub/booking-api/internal/settlement"
)

// referenceBrand prefixes every transfer reference.  Guests copy the
// full reference into their bank transfer; the oracle match strips the
// brand and searches for the remainder, which carries the identifying
// payload.
const referenceBrand = "HOTELHUB"

// PaymentService owns the bank-transfer confirmation workflow: it
// issues payment intents with deterministic references, checks the
// settlement oracle for matching transfers, and applies the single
// allowed PENDING -> terminal transition.  The clock is injected so
// expiry behavior is testable.
type PaymentService struct {
	intents      *repository.PaymentIntentRepo
	invoices     *repository.InvoiceRepo
	reservations *repository.ReservationRepo
	oracle       settlement.Oracle
	events       queue.Publisher

	bank model.BankDetails
	ttl  time.Duration
	now  func() time.Time
}

// NewPaymentService wires the payment workflow.  ttl is how long a new
// intent stays payable; events may be nil.
func NewPaymentService(intents *repository.PaymentIntentRepo, invoices *repository.InvoiceRepo,
	reservations *repository.ReservationRepo, oracle settlement.Oracle, events queue.Publisher,
	bank model.BankDetails, ttl time.Duration) *PaymentService {
	return &PaymentService{
		intents:      intents,
		invoices:     invoices,
		reservations: reservations,
		oracle:       oracle,
		events:       events,
		bank:         bank,
		ttl:          ttl,
		now:          time.Now,
	}
}

// WithClock overrides the service clock.  Tests use this to move an
// intent past its deadline without sleeping.
func (s *PaymentService) WithClock(now func() time.Time) *PaymentService {
	s.now = now
	return s
}

// RequestTransfer opens a PENDING payment intent for an invoice.  The
// amount is the invoice total; a non-zero amountCents is a client-side
// cross-check and must equal it.  The reference is generated from the
// invoice and its guest, and the expiry deadline is stamped from the
// service clock plus the configured TTL.
func (s *PaymentService) RequestTransfer(ctx context.Context, invoiceID uint64, amountCents int64) (*model.PaymentIntent, error) {
	inv, err := s.invoices.GetByID(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	if amountCents != 0 && amountCents != inv.Pricing.TotalCents {
		return nil, ErrAmountMismatch
	}
	res, err := s.reservations.GetByID(ctx, inv.ReservationID)
	if err != nil {
		return nil, err
	}
	in := &model.PaymentIntent{
		InvoiceID:     inv.ID,
		ReservationID: inv.ReservationID,
		AmountCents:   inv.Pricing.TotalCents,
		Reference:     buildReference(inv.ID, res.GuestName, res.ID),
		Bank:          s.bank,
		Status:        model.IntentPending,
		ExpiresAt:     s.now().UTC().Add(s.ttl),
	}
	if err := s.intents.Create(ctx, in); err != nil {
		return nil, err
	}
	return in, nil
}

// PollOnce runs one settlement check for an intent and returns the
// refreshed record plus whether polling is finished.  A terminal
// intent is finished immediately.  A PENDING intent past its deadline
// is expired first, with the guarded UPDATE deciding any race against
// a concurrent confirmation.  Otherwise the oracle is searched for the
// intent's reference; a narrative hit confirms the intent only when
// the settled amount equals the expected amount exactly, and any
// wrong-amount hit is logged as a mismatch while the intent stays
// PENDING.
func (s *PaymentService) PollOnce(ctx context.Context, intentID uint64) (*model.PaymentIntent, bool, error) {
	in, err := s.intents.GetByID(ctx, intentID)
	if err != nil {
		return nil, true, err
	}
	if in.Status.Terminal() {
		return in, true, nil
	}

	now := s.now().UTC()
	if !now.Before(in.ExpiresAt) {
		applied, err := s.intents.MarkExpired(ctx, in.ID)
		if err != nil {
			return nil, false, err
		}
		in, err = s.intents.GetByID(ctx, in.ID)
		if err != nil {
			return nil, true, err
		}
		if applied {
			s.publishPayment(ctx, queue.EventPaymentExpired, in, nil)
		}
		return in, true, nil
	}

	txns, err := s.oracle.SearchNarrative(ctx, MatchFragment(in.Reference))
	if err != nil {
		// Oracle outage: stay PENDING, retry on the next tick.
		log.Printf("payment: oracle search for intent %d failed: %v", in.ID, err)
		return in, false, nil
	}
	for _, txn := range txns {
		if txn.AmountCents != in.AmountCents {
			log.Printf("payment: mismatch on intent %d: transaction %s amount %d, expected %d",
				in.ID, txn.ID, txn.AmountCents, in.AmountCents)
			continue
		}
		applied, err := s.intents.ConfirmFromSettlement(ctx, in.ID, now)
		if err != nil {
			return nil, false, err
		}
		in, err = s.intents.GetByID(ctx, in.ID)
		if err != nil {
			return nil, true, err
		}
		if applied {
			if err := s.invoices.MarkPaid(ctx, in.InvoiceID); err != nil {
				log.Printf("payment: mark invoice %d paid failed: %v", in.InvoiceID, err)
			}
			s.publishPayment(ctx, queue.EventPaymentConfirmed, in, nil)
		}
		return in, true, nil
	}
	return in, false, nil
}

// ForceVerify confirms a PENDING intent on a staff member's authority,
// bypassing the oracle and the expiry deadline but never a terminal
// status.  Returns ErrIntentTerminal when the intent already settled.
func (s *PaymentService) ForceVerify(ctx context.Context, intentID, staffID uint64) (*model.PaymentIntent, error) {
	applied, err := s.intents.ForceConfirm(ctx, intentID, staffID, s.now().UTC())
	if err != nil {
		return nil, err
	}
	in, err := s.intents.GetByID(ctx, intentID)
	if err != nil {
		return nil, err
	}
	if !applied {
		return in, ErrIntentTerminal
	}
	if err := s.invoices.MarkPaid(ctx, in.InvoiceID); err != nil {
		log.Printf("payment: mark invoice %d paid failed: %v", in.InvoiceID, err)
	}
	s.publishPayment(ctx, queue.EventPaymentForceVerified, in, &staffID)
	return in, nil
}

// Status returns the current intent state plus whether the status
// changed since the caller last asked.  The update flag is cleared by
// the read, so a second poll without an intervening change reports
// false.
func (s *PaymentService) Status(ctx context.Context, intentID uint64) (*model.PaymentIntent, bool, error) {
	in, err := s.intents.GetByID(ctx, intentID)
	if err != nil {
		return nil, false, err
	}
	changed, err := s.intents.TakeUpdateFlag(ctx, intentID)
	if err != nil {
		return nil, false, err
	}
	return in, changed, nil
}

func (s *PaymentService) publishPayment(ctx context.Context, eventType string, in *model.PaymentIntent, actorID *uint64) {
	if s.events == nil {
		return
	}
	ev := queue.PaymentEvent{
		Type:          eventType,
		IntentID:      in.ID,
		InvoiceID:     in.InvoiceID,
		ReservationID: in.ReservationID,
		AmountCents:   in.AmountCents,
		Reference:     in.Reference,
		ActorID:       actorID,
		OccurredAt:    s.now().UTC().Format(time.RFC3339),
	}
	if err := s.events.PublishPayment(ctx, ev); err != nil {
		log.Printf("payment: publish %s failed: %v", eventType, err)
	}
}

// buildReference produces the transfer reference shown to the guest:
// the brand, the invoice id, and a short guest fragment made of the
// guest's initials plus the reservation id.  Invoice 42 for guest
// "Brigitta Kusuma" on reservation 7 yields "HOTELHUB INV42 BK7".
func buildReference(invoiceID uint64, guestName string, reservationID uint64) string {
	return fmt.Sprintf("%s INV%d %s%d", referenceBrand, invoiceID, initials(guestName), reservationID)
}

// MatchFragment is the portion of a reference searched for in bank
// narratives: the reference with the brand prefix removed.  Banks
// routinely truncate or re-case narratives around the brand, so the
// match keys on the identifying payload only.
func MatchFragment(reference string) string {
	return strings.TrimPrefix(reference, referenceBrand+" ")
}

// initials returns the upper-cased first letters of the name's words,
// capped at three, or "X" for a blank name.
func initials(name string) string {
	var b strings.Builder
	for _, word := range strings.Fields(name) {
		r := []rune(word)[0]
		if unicode.IsLetter(r) {
			b.WriteRune(unicode.ToUpper(r))
		}
		if b.Len() >= 3 {
			break
		}
	}
	if b.Len() == 0 {
		return "X"
	}
	return b.String()
}
