package router

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/hotelhub/booking-api/internal/config"
	"github.com/hotelhub/booking-api/internal/handler"
	"github.com/hotelhub/booking-api/internal/middleware"
	"github.com/hotelhub/booking-api/internal/model"
)

// RegisterBooking registers the reservation and room-inventory routes.
// Reservation creation, reads and the transition endpoint are open to
// both roles (the handler narrows what a guest may do); allocation
// writes and the full listing are staff-only.  The availability read
// is cached in Redis since it is the hottest query the front desk
// issues.
func RegisterBooking(e *echo.Echo, b *handler.BookingHandler, r *handler.RoomHandler,
	jwtSecret string, cacheCfg config.CacheConfig, rdb *redis.Client) {

	both := e.Group(
		"/v1",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleStaff, model.RoleGuest),
	)
	both.POST("/reservations", b.CreateReservation)
	both.GET("/reservations/:id", b.GetReservation)
	both.POST("/reservations/:id/transition", b.Transition)
	both.GET("/rooms/available", r.Available, middleware.NewRedisCache(cacheCfg, rdb))

	staff := e.Group(
		"/v1",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleStaff),
	)
	staff.GET("/reservations", b.ListReservations)
	staff.POST("/reservations/:id/allocate", b.Allocate)
	staff.GET("/reservations/:id/assignment", b.Assignment)
}
