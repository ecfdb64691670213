package router

import (
	"github.com/labstack/echo/v4"

	"github.com/hotelhub/booking-api/internal/handler"
	"github.com/hotelhub/booking-api/internal/middleware"
	"github.com/hotelhub/booking-api/internal/model"
)

// RegisterPayments registers the payment-intent routes.  Guests open
// intents and poll their status; manual verification and poll control
// are staff-only because they act on the hotel's authority.
func RegisterPayments(e *echo.Echo, p *handler.PaymentHandler, jwtSecret string) {
	both := e.Group(
		"/v1/payments",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleStaff, model.RoleGuest),
	)
	both.POST("/intents", p.CreateIntent)
	both.GET("/intents/:id", p.GetIntent)

	staff := e.Group(
		"/v1/payments",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleStaff),
	)
	staff.POST("/intents/:id/poll", p.PollNow)
	staff.DELETE("/intents/:id/poll", p.StopPoll)
	staff.POST("/intents/:id/verify", p.ForceVerify)
}
