package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/hotelhub/booking-api/internal/repository"
	"github.com/hotelhub/booking-api/internal/service"
)

// PaymentHandler exposes the bank-transfer confirmation workflow:
// opening an intent (which starts background polling), polling status
// from the client side, manual verification, and stopping the poll.
type PaymentHandler struct {
	Payments *service.PaymentService
	Poller   *service.PollerRegistry
}

func NewPaymentHandler(p *service.PaymentService, reg *service.PollerRegistry) *PaymentHandler {
	if p == nil || reg == nil {
		panic("nil dependency passed to NewPaymentHandler")
	}
	return &PaymentHandler{Payments: p, Poller: reg}
}

type createIntentReq struct {
	InvoiceID   uint64 `json:"invoice_id"`
	AmountCents int64  `json:"amount_cents"` // optional cross-check against the invoice total
}

// CreateIntent handles POST /v1/payments/intents.  The response
// carries the exact amount, the generated transfer reference, the
// receiving bank details and the expiry deadline; background polling
// against the settlement oracle starts immediately.
func (h *PaymentHandler) CreateIntent(c echo.Context) error {
	var req createIntentReq
	if err := c.Bind(&req); err != nil || req.InvoiceID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invoice_id required"})
	}
	in, err := h.Payments.RequestTransfer(c.Request().Context(), req.InvoiceID, req.AmountCents)
	if err != nil {
		if errors.Is(err, repository.ErrInvoiceNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "invoice not found"})
		}
		if errors.Is(err, service.ErrAmountMismatch) {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "amount_cents does not match the invoice total"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to create payment intent"})
	}
	if err := h.Poller.Start(in.ID); err != nil {
		// The intent exists either way; the client can still poll status.
		c.Logger().Warnf("failed to schedule polling for intent %d: %v", in.ID, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"item": in})
}

// GetIntent handles GET /v1/payments/intents/:id.  has_new_update is
// true exactly once after a status change; reading it clears the flag.
func (h *PaymentHandler) GetIntent(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid intent id"})
	}
	in, changed, err := h.Payments.Status(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrIntentNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "payment intent not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to fetch payment intent"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"item":           in,
		"has_new_update": changed,
	})
}

// PollNow handles POST /v1/payments/intents/:id/poll (staff): one
// immediate settlement check outside the background cadence.
func (h *PaymentHandler) PollNow(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid intent id"})
	}
	in, done, err := h.Payments.PollOnce(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrIntentNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "payment intent not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "poll failed"})
	}
	if done {
		h.Poller.Stop(id)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"item":    in,
		"settled": done,
	})
}

// StopPoll handles DELETE /v1/payments/intents/:id/poll (staff),
// cancelling background polling without touching the intent itself.
func (h *PaymentHandler) StopPoll(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid intent id"})
	}
	h.Poller.Stop(id)
	return c.NoContent(http.StatusNoContent)
}

// ForceVerify handles POST /v1/payments/intents/:id/verify (staff):
// confirms a PENDING intent on the acting staff member's authority,
// recording who verified it.  A terminal intent is never revived.
func (h *PaymentHandler) ForceVerify(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid intent id"})
	}
	staffID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	in, err := h.Payments.ForceVerify(c.Request().Context(), id, staffID)
	if err != nil {
		if errors.Is(err, repository.ErrIntentNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "payment intent not found"})
		}
		if errors.Is(err, service.ErrIntentTerminal) {
			return c.JSON(http.StatusConflict, echo.Map{
				"error":  "payment intent already settled",
				"status": in.Status,
			})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "verification failed"})
	}
	h.Poller.Stop(id)
	return c.JSON(http.StatusOK, echo.Map{"item": in})
}
