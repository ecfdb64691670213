package handler

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/hotelhub/booking-api/internal/model"
	"github.com/hotelhub/booking-api/internal/repository"
	"github.com/hotelhub/booking-api/internal/service"
)

// BookingHandler exposes the reservation lifecycle over HTTP: creation,
// listing, the transition endpoint driving the state machine, and the
// allocation endpoints.  Authentication and role checks are performed
// by middleware; allocation routes are staff-only, while transitions
// additionally allow the reservation's own guest for confirm/cancel.
type BookingHandler struct {
	Bookings     *service.BookingService
	Reservations *repository.ReservationRepo
	Assigned     *repository.AssignedRoomRepo
	Invoices     *repository.InvoiceRepo
	Users        *repository.UserRepo
	TaxRate      int
}

// NewBookingHandler constructs a BookingHandler.  All dependencies must
// be non-nil.
func NewBookingHandler(b *service.BookingService, r *repository.ReservationRepo,
	a *repository.AssignedRoomRepo, inv *repository.InvoiceRepo, u *repository.UserRepo, taxRate int) *BookingHandler {
	if b == nil || r == nil || a == nil || inv == nil || u == nil {
		panic("nil dependency passed to NewBookingHandler")
	}
	return &BookingHandler{Bookings: b, Reservations: r, Assigned: a, Invoices: inv, Users: u, TaxRate: taxRate}
}

// ----- DTOs -----

type requirementReq struct {
	RoomTypeID uint64 `json:"room_type_id"`
	Quantity   uint32 `json:"quantity"`
}

type createReservationReq struct {
	GuestName      string           `json:"guest_name"`
	GuestEmail     string           `json:"guest_email"`
	GuestPhone     string           `json:"guest_phone"`
	Headcount      uint32           `json:"headcount"`
	CheckIn        time.Time        `json:"check_in"`
	CheckOut       time.Time        `json:"check_out"`
	SpecialRequest *string          `json:"special_request"`
	BookingType    string           `json:"booking_type"` // ONLINE | WALK_IN
	Requirements   []requirementReq `json:"requirements"`
}

type transitionReq struct {
	Action          string     `json:"action"` // confirm | checkIn | checkOut | cancel
	SelectedRoomIDs []uint64   `json:"selected_room_ids,omitempty"`
	ReasonCode      string     `json:"reason_code,omitempty"`
	Note            *string    `json:"note,omitempty"`
	CheckIn         *time.Time `json:"check_in,omitempty"`
	CheckOut        *time.Time `json:"check_out,omitempty"`
}

type allocateReq struct {
	RoomIDs  []uint64   `json:"room_ids"`
	CheckIn  *time.Time `json:"check_in,omitempty"`
	CheckOut *time.Time `json:"check_out,omitempty"`
}

// CreateReservation handles POST /v1/reservations.  A new reservation
// always starts PENDING; the invoice with the canonical pricing
// breakdown is created in the same transaction.
func (h *BookingHandler) CreateReservation(c echo.Context) error {
	var req createReservationReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if req.GuestName == "" || req.GuestEmail == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "guest_name and guest_email are required"})
	}
	if len(req.Requirements) == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "at least one room requirement is required"})
	}
	bt := model.BookingType(req.BookingType)
	if bt != model.BookingOnline && bt != model.BookingWalkIn {
		bt = model.BookingOnline
	}

	in := service.CreateReservationInput{
		GuestName:      req.GuestName,
		GuestEmail:     req.GuestEmail,
		GuestPhone:     req.GuestPhone,
		Headcount:      req.Headcount,
		CheckIn:        req.CheckIn,
		CheckOut:       req.CheckOut,
		SpecialRequest: req.SpecialRequest,
		Type:           bt,
		TaxRatePercent: int64(h.TaxRate),
	}
	for _, r := range req.Requirements {
		if r.RoomTypeID == 0 || r.Quantity == 0 {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "requirements need room_type_id and quantity"})
		}
		in.Requirements = append(in.Requirements, service.RequirementInput{
			RoomTypeID: r.RoomTypeID,
			Quantity:   r.Quantity,
		})
	}

	res, err := h.Bookings.CreateReservation(c.Request().Context(), in)
	if err != nil {
		if errors.Is(err, service.ErrInvalidStayWindow) {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to create reservation"})
	}
	return c.JSON(http.StatusCreated, echo.Map{"item": res})
}

// ListReservations handles GET /v1/reservations (staff).  An optional
// guest_email query filters by guest.
func (h *BookingHandler) ListReservations(c echo.Context) error {
	ctx := c.Request().Context()
	if email := c.QueryParam("guest_email"); email != "" {
		items, err := h.Reservations.ListByGuestEmail(ctx, email)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load reservations"})
		}
		return c.JSON(http.StatusOK, echo.Map{"items": items})
	}
	items, err := h.Reservations.List(ctx, 200)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load reservations"})
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// GetReservation handles GET /v1/reservations/:id, returning the
// reservation with its requirements and invoice.  A guest can only
// fetch reservations booked under their own email.
func (h *BookingHandler) GetReservation(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid reservation id"})
	}
	ctx := c.Request().Context()
	res, err := h.Reservations.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrReservationNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "reservation not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to fetch reservation"})
	}
	if role, _ := c.Get("role").(string); role != model.RoleStaff {
		if err := h.requireOwnership(c, res); err != nil {
			return err
		}
	}
	reqs, err := h.Reservations.Requirements(ctx, id)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to fetch requirements"})
	}
	resp := echo.Map{
		"item":            res,
		"requirements":    reqs,
		"allowed_actions": service.AllowedActions(res.Status),
	}
	if inv, err := h.Invoices.GetByReservation(ctx, id); err == nil {
		resp["invoice"] = inv
	}
	return c.JSON(http.StatusOK, resp)
}

// Transition handles POST /v1/reservations/:id/transition.  Staff may
// run any action; a guest may only confirm or cancel their own
// reservation.  The body names the action plus its action-specific
// inputs; errors map onto the typed service errors so clients get the
// allowed actions or the per-type shortfall back.
func (h *BookingHandler) Transition(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid reservation id"})
	}
	var req transitionReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if role, _ := c.Get("role").(string); role != model.RoleStaff {
		if err := h.authorizeGuestTransition(c, id, service.Action(req.Action)); err != nil {
			return err
		}
	}

	res, err := h.Bookings.Transition(c.Request().Context(), id, service.Action(req.Action), service.TransitionPayload{
		SelectedRoomIDs:  req.SelectedRoomIDs,
		ReasonCode:       model.CancelReason(req.ReasonCode),
		Note:             req.Note,
		CheckInOverride:  req.CheckIn,
		CheckOutOverride: req.CheckOut,
	})
	if err != nil {
		return h.transitionError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"item":            res,
		"allowed_actions": service.AllowedActions(res.Status),
	})
}

// Allocate handles POST /v1/reservations/:id/allocate (staff): binds
// rooms ahead of arrival so check-in later takes the direct path.
func (h *BookingHandler) Allocate(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid reservation id"})
	}
	var req allocateReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	assignments, err := h.Bookings.AllocateRooms(c.Request().Context(), id, req.RoomIDs, req.CheckIn, req.CheckOut)
	if err != nil {
		if errors.Is(err, service.ErrAlreadyAllocated) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "reservation already has assigned rooms"})
		}
		return h.transitionError(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"items": assignments})
}

// Assignment handles GET /v1/reservations/:id/assignment, reporting
// whether the reservation holds a committed allocation and which rooms.
func (h *BookingHandler) Assignment(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid reservation id"})
	}
	ctx := c.Request().Context()
	allocated, count, err := h.Bookings.AssignmentStatus(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrReservationNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "reservation not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to fetch assignment"})
	}
	items := []model.AssignedRoom{}
	if allocated {
		items, err = h.Assigned.ListByReservation(ctx, id)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to fetch assignment"})
		}
	}
	return c.JSON(http.StatusOK, echo.Map{
		"allocated": allocated,
		"count":     count,
		"items":     items,
	})
}

// authorizeGuestTransition enforces the guest-side rules: only
// confirm and cancel, and only on a reservation booked under the
// caller's own email.  Returns nil when the transition may proceed;
// otherwise the response has already been written.
func (h *BookingHandler) authorizeGuestTransition(c echo.Context, reservationID uint64, action service.Action) error {
	if action != service.ActionConfirm && action != service.ActionCancel {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "staff role required for this action"})
	}
	res, err := h.Reservations.GetByID(c.Request().Context(), reservationID)
	if err != nil {
		if errors.Is(err, repository.ErrReservationNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "reservation not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to fetch reservation"})
	}
	return h.requireOwnership(c, res)
}

// requireOwnership verifies the caller's account email matches the
// reservation's guest email.  Returns nil when it does; otherwise the
// response has already been written.
func (h *BookingHandler) requireOwnership(c echo.Context, res *model.Reservation) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	u, err := h.Users.GetByID(c.Request().Context(), uid)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	if !strings.EqualFold(res.GuestEmail, u.Email) {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "not your reservation"})
	}
	return nil
}

// transitionError maps the service error taxonomy onto HTTP responses.
func (h *BookingHandler) transitionError(c echo.Context, err error) error {
	var invalid *service.InvalidTransitionError
	if errors.As(err, &invalid) {
		return c.JSON(http.StatusConflict, echo.Map{
			"error":           err.Error(),
			"current_status":  invalid.Current,
			"allowed_actions": invalid.Allowed,
		})
	}
	var alloc *service.AllocationError
	if errors.As(err, &alloc) {
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{
			"error":        "selection does not cover requirements",
			"deficiencies": alloc.Deficiencies,
		})
	}
	var unavail *service.RoomUnavailableError
	if errors.As(err, &unavail) {
		return c.JSON(http.StatusConflict, echo.Map{
			"error":       "some rooms are no longer available",
			"unavailable": unavail.RoomIDs,
		})
	}
	switch {
	case errors.Is(err, repository.ErrReservationNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "reservation not found"})
	case errors.Is(err, service.ErrDuplicateRoomSelection),
		errors.Is(err, service.ErrUnknownCancelReason),
		errors.Is(err, service.ErrCancelNoteTooLong),
		errors.Is(err, service.ErrInvalidStayWindow):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "transition failed"})
}
