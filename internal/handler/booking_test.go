package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hotelhub/booking-api/internal/repository"
	"github.com/hotelhub/booking-api/internal/service"
)

func newBookingHandler(t *testing.T) (*BookingHandler, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	reservations := repository.NewReservationRepo(db)
	rooms := repository.NewRoomRepo(db)
	assigned := repository.NewAssignedRoomRepo(db)
	invoices := repository.NewInvoiceRepo(db)
	users := repository.NewUserRepo(db)
	svc := service.NewBookingService(db, reservations, assigned, rooms, invoices,
		service.NewAllocator(rooms, assigned), nil)
	return NewBookingHandler(svc, reservations, assigned, invoices, users, 10), mock
}

func reservationGetContext(role string, userID uint64) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetPath("/v1/reservations/:id")
	c.SetParamNames("id")
	c.SetParamValues("7")
	c.Set("role", role)
	c.Set("user_id", userID)
	return c, rec
}

func expectReservationRead(mock sqlmock.Sqlmock, guestEmail string) {
	now := time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{
		"id", "guest_name", "guest_email", "guest_phone", "headcount",
		"check_in", "check_out", "special_request", "booking_status", "booking_type",
		"cancel_reason", "cancel_note", "created_at", "updated_at",
	}).AddRow(7, "Brigitta Kusuma", guestEmail, "+62811", 2,
		now.AddDate(0, 0, 5), now.AddDate(0, 0, 8), nil, "PENDING", "ONLINE",
		nil, nil, now, now)
	mock.ExpectQuery(`FROM reservations WHERE id = \?`).
		WithArgs(uint64(7)).
		WillReturnRows(rows)
}

func expectUserRead(mock sqlmock.Sqlmock, id uint64, email string) {
	rows := sqlmock.NewRows([]string{
		"id", "email", "password_hash", "role", "is_active", "created_at", "updated_at",
	}).AddRow(id, email, "x", "GUEST", true,
		time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC))
	mock.ExpectQuery(`FROM users WHERE id=\?`).
		WithArgs(id).
		WillReturnRows(rows)
}

func TestGetReservationGuestCannotReadOthers(t *testing.T) {
	h, mock := newBookingHandler(t)

	expectReservationRead(mock, "brigitta@example.com")
	expectUserRead(mock, 42, "someone.else@example.com")

	c, rec := reservationGetContext("GUEST", 42)
	require.NoError(t, h.GetReservation(c))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetReservationGuestReadsOwn(t *testing.T) {
	h, mock := newBookingHandler(t)

	expectReservationRead(mock, "brigitta@example.com")
	// Email comparison ignores case.
	expectUserRead(mock, 42, "Brigitta@Example.com")
	mock.ExpectQuery(`FROM room_type_requirements`).
		WithArgs(uint64(7)).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "reservation_id", "room_type_id", "quantity", "type_name", "nightly_price_cents",
		}).AddRow(1, 7, 2, 1, "Suite", 1_250_000))
	mock.ExpectQuery(`FROM invoices WHERE reservation_id = \?`).
		WithArgs(uint64(7)).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "reservation_id", "room_subtotal_cents", "tax_cents",
			"discount_cents", "total_cents", "customer_name", "customer_email", "customer_phone",
			"status", "finalized_at", "created_at",
		}).AddRow(42, 7, 4_500_000, 500_000, 0, 5_000_000,
			"Brigitta Kusuma", "brigitta@example.com", "+62811", "OPEN", nil,
			time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)))

	c, rec := reservationGetContext("GUEST", 42)
	require.NoError(t, h.GetReservation(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetReservationStaffSkipsOwnershipCheck(t *testing.T) {
	h, mock := newBookingHandler(t)

	expectReservationRead(mock, "brigitta@example.com")
	mock.ExpectQuery(`FROM room_type_requirements`).
		WithArgs(uint64(7)).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "reservation_id", "room_type_id", "quantity", "type_name", "nightly_price_cents",
		}))
	mock.ExpectQuery(`FROM invoices WHERE reservation_id = \?`).
		WithArgs(uint64(7)).
		WillReturnError(repository.ErrInvoiceNotFound)

	c, rec := reservationGetContext("STAFF", 9)
	require.NoError(t, h.GetReservation(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}
