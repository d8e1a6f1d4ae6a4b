// Package router defines how HTTP routes are registered for the API.
package router

import (
    "github.com/labstack/echo/v4"

    "github.com/happyhu/event-booking/internal/handler"
    "github.com/happyhu/event-booking/internal/middleware"
)

// RegisterRoutes registers routes that do not require authentication.
// Customers book and pay without an account, so the whole public
// booking surface lives here.
func RegisterRoutes(e *echo.Echo, b *handler.BookingHandler) {
    // Health check for load balancers and monitoring.
    e.GET("/healthz", handler.Health)

    // Free bookings are committed directly; paid ones are staged and
    // materialized by the payment return callback.
    e.POST("/v1/bookings", b.Create)
    e.POST("/v1/bookings/stage", b.Stage)
    e.GET("/v1/payments/return", b.PaymentReturn)

    // Availability browsing.
    e.GET("/v1/calendar", b.Calendar)
    e.GET("/v1/bookings/:id", b.Get)
}

// RegisterAdmin registers the staff login and the protected
// administrative surface.  Protected routes require a valid access
// token carrying the ADMIN role.
func RegisterAdmin(e *echo.Echo, a *handler.AuthHandler, adm *handler.AdminBookingHandler, jwtSecret string) {
    e.POST("/v1/auth/login", a.Login)

    g := e.Group("/v1")
    g.Use(middleware.JWTAuth(jwtSecret))
    g.Use(middleware.RequireRole("ADMIN"))
    g.GET("/me", a.Me)
    g.GET("/admin/bookings", adm.List)
    g.PUT("/admin/bookings/:id", adm.Update)
    g.DELETE("/admin/bookings/:id", adm.Delete)
    g.POST("/admin/bookings/:id/status", adm.Transition)
}
