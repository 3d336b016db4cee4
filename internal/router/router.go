package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/iliyamo/agent-incentives/internal/handler"
)

// RegisterRoutes registers operational endpoints: the health check used by
// load balancers and the Prometheus scrape endpoint.
func RegisterRoutes(e *echo.Echo, db handler.Pinger) {
	e.GET("/healthz", handler.Health(db))
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
}

// RegisterRegistration registers the public agent sign-up endpoints.  The
// limiter guards only the writes: the candidate lookup answers 200 in every
// case, so it is never throttled.
func RegisterRegistration(e *echo.Echo, h *handler.RegistrationHandler, limiter echo.MiddlewareFunc) {
	g := e.Group("/registration")
	g.GET("/agency-candidates", h.AgencyCandidates)
	g.POST("", h.Register, limiter)
	g.POST("/intake", h.Intake, limiter)
}

// RegisterAdmin registers the dashboard API under /v1.  Only the stats and
// hotel catalogue reads go through the response cache; lists that admins
// act on must always be fresh.
func RegisterAdmin(e *echo.Echo, h *handler.AdminHandler, cache echo.MiddlewareFunc) {
	v1 := e.Group("/v1")

	v1.GET("/dashboard/stats", h.Stats, cache)
	v1.GET("/hotels", h.ListHotels, cache)

	// Bookings
	v1.GET("/bookings", h.ListBookings)
	v1.POST("/bookings", h.CreateBooking)
	v1.GET("/bookings/:id", h.GetBooking)
	v1.POST("/bookings/:id/approve", h.ApproveBooking)
	v1.POST("/bookings/:id/reject", h.RejectBooking)
	v1.POST("/bookings/:id/redeem", h.RedeemBooking)
	v1.DELETE("/bookings/:id", h.DeleteBooking)

	// Agents
	v1.GET("/agents", h.ListAgents)
	v1.POST("/agents/:id/activate", h.ActivateAgent)
	v1.POST("/agents/:id/disable", h.DisableAgent)

	// Agencies
	v1.GET("/agencies", h.ListAgencies)
	v1.POST("/agencies/:id/approve", h.ApproveAgency)
	v1.POST("/agencies/:id/archive", h.ArchiveAgency)

	// Sample data
	v1.POST("/admin/seed", h.Seed)
	v1.POST("/admin/clear", h.Clear)
}
