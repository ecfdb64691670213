package handler

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/hotelhub/booking-api/internal/repository"
)

// RoomHandler exposes room inventory reads.  Availability answers the
// front desk's question before an allocation: which AVAILABLE rooms of
// the wanted types have no overlapping active stay in the requested
// window.
type RoomHandler struct {
	Rooms *repository.RoomRepo
}

func NewRoomHandler(r *repository.RoomRepo) *RoomHandler {
	if r == nil {
		panic("nil repository passed to NewRoomHandler")
	}
	return &RoomHandler{Rooms: r}
}

// Available handles GET /v1/rooms/available.  Query parameters:
// check_in and check_out as RFC 3339 timestamps, and an optional
// type_ids comma-separated list restricting the room types.
func (h *RoomHandler) Available(c echo.Context) error {
	checkIn, err := time.Parse(time.RFC3339, c.QueryParam("check_in"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "check_in must be RFC 3339"})
	}
	checkOut, err := time.Parse(time.RFC3339, c.QueryParam("check_out"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "check_out must be RFC 3339"})
	}
	if !checkOut.After(checkIn) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "check_out must be later than check_in"})
	}

	var typeIDs []uint64
	if raw := c.QueryParam("type_ids"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			id, err := strconv.ParseUint(strings.TrimSpace(part), 10, 64)
			if err != nil || id == 0 {
				return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid type_ids"})
			}
			typeIDs = append(typeIDs, id)
		}
	}

	items, err := h.Rooms.AvailableRooms(c.Request().Context(), checkIn, checkOut, typeIDs)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load availability"})
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}
