package handler

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/iliyamo/agent-incentives/internal/metrics"
	"github.com/iliyamo/agent-incentives/internal/model"
	"github.com/iliyamo/agent-incentives/internal/queue"
	"github.com/iliyamo/agent-incentives/internal/repository"
	"github.com/iliyamo/agent-incentives/internal/service"
)

// CachePurger drops cached dashboard responses after a write.
type CachePurger interface {
	Purge(ctx context.Context) error
}

// AdminHandler bundles the repositories behind the admin dashboard API.
type AdminHandler struct {
	Bookings *repository.BookingRepo
	Agents   *repository.AgentRepo
	Agencies *repository.AgencyRepo
	Hotels   *repository.HotelRepo
	Seeder   *repository.SeedRepo
	Events   service.EventPublisher // optional
	Cache    CachePurger            // optional
	Log      zerolog.Logger
}

func (h *AdminHandler) purge(ctx context.Context) {
	if h.Cache == nil {
		return
	}
	if err := h.Cache.Purge(ctx); err != nil {
		h.Log.Warn().Err(err).Msg("response cache purge failed")
	}
}

// adminError maps repository errors onto status codes.  Unknown errors are
// logged and hidden behind a generic message.
func (h *AdminHandler) adminError(c echo.Context, err error, what string) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": what + " not found"})
	case errors.Is(err, repository.ErrConflict):
		return c.JSON(http.StatusConflict, echo.Map{"error": what + " is not in a state that allows this action"})
	}
	h.Log.Error().Err(err).Str("path", c.Path()).Msg("admin request failed")
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
}

// Stats handles GET /v1/dashboard/stats.
func (h *AdminHandler) Stats(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	stats, err := h.Bookings.Stats(ctx)
	if err != nil {
		return h.adminError(c, err, "stats")
	}
	return c.JSON(http.StatusOK, stats)
}

// ListBookings handles GET /v1/bookings?status=&q=&offset=.
func (h *AdminHandler) ListBookings(c echo.Context) error {
	status := strings.ToLower(strings.TrimSpace(c.QueryParam("status")))
	if status != "" && status != "all" && !slices.Contains(model.BookingStatuses, status) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid status"})
	}
	offset, err := strconv.Atoi(c.QueryParam("offset"))
	if err != nil || offset < 0 {
		offset = 0 // missing or malformed offset means the first page
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	page, err := h.Bookings.List(ctx, repository.BookingQuery{Status: status, Search: c.QueryParam("q"), Offset: offset})
	if err != nil {
		return h.adminError(c, err, "bookings")
	}
	if page.Bookings == nil {
		page.Bookings = []model.BookingRow{}
	}
	return c.JSON(http.StatusOK, page)
}

// GetBooking handles GET /v1/bookings/:id.
func (h *AdminHandler) GetBooking(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	b, err := h.Bookings.GetByID(ctx, c.Param("id"))
	if err != nil {
		return h.adminError(c, err, "booking")
	}
	return c.JSON(http.StatusOK, b)
}

type createBookingRequest struct {
	AgentID        string  `json:"agentId"`
	HotelID        string  `json:"hotelId"`
	RoomTypeID     string  `json:"roomTypeId"`
	GuestName      string  `json:"guestName"`
	ArrivalDate    string  `json:"arrivalDate"` // YYYY-MM-DD
	NumberOfNights int     `json:"numberOfNights"`
	YourRef        *string `json:"yourRef"`
	HotelRef       *string `json:"hotelRef"`
}

// CreateBooking handles POST /v1/bookings.  Points are computed from the
// room type factor.
func (h *AdminHandler) CreateBooking(c echo.Context) error {
	var req createBookingRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	req.AgentID = strings.TrimSpace(req.AgentID)
	req.RoomTypeID = strings.TrimSpace(req.RoomTypeID)
	req.GuestName = strings.TrimSpace(req.GuestName)
	switch {
	case req.AgentID == "":
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "agentId is required"})
	case req.RoomTypeID == "":
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "roomTypeId is required"})
	case req.GuestName == "":
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "guestName is required"})
	case req.NumberOfNights < 1:
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "numberOfNights must be at least 1"})
	}
	arrival, err := time.Parse("2006-01-02", strings.TrimSpace(req.ArrivalDate))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "arrivalDate must be YYYY-MM-DD"})
	}

	b := &model.Booking{
		AgentID:        req.AgentID,
		HotelID:        strings.TrimSpace(req.HotelID),
		RoomTypeID:     req.RoomTypeID,
		GuestName:      req.GuestName,
		ArrivalDate:    arrival,
		NumberOfNights: req.NumberOfNights,
		YourRef:        req.YourRef,
		HotelRef:       req.HotelRef,
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Bookings.Create(ctx, b); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "room type does not belong to the hotel"})
		}
		return h.adminError(c, err, "room type, agent or hotel")
	}
	h.purge(ctx)
	return c.JSON(http.StatusCreated, b)
}

// ApproveBooking handles POST /v1/bookings/:id/approve.
func (h *AdminHandler) ApproveBooking(c echo.Context) error { return h.transitionBooking(c, "approve") }

// RejectBooking handles POST /v1/bookings/:id/reject.
func (h *AdminHandler) RejectBooking(c echo.Context) error { return h.transitionBooking(c, "reject") }

// RedeemBooking handles POST /v1/bookings/:id/redeem.
func (h *AdminHandler) RedeemBooking(c echo.Context) error { return h.transitionBooking(c, "redeem") }

func (h *AdminHandler) transitionBooking(c echo.Context, action string) error {
	id := c.Param("id")
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	from, to, err := h.Bookings.Transition(ctx, id, action)
	if err != nil {
		return h.adminError(c, err, "booking")
	}
	metrics.BookingTransitions.WithLabelValues(to).Inc()
	h.purge(ctx)

	if h.Events != nil {
		ev := queue.BookingStatusChangedEvent{BookingID: id, From: from, To: to, ChangedAt: time.Now().UTC().Format(time.RFC3339)}
		pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), service.PublishTimeout)
		defer cancel()
		if err := h.Events.Publish(pubCtx, queue.BookingStatusChangedQueue, ev); err != nil {
			h.Log.Warn().Err(err).Str("booking_id", id).Msg("booking.status_changed event not published")
		}
	}
	return c.JSON(http.StatusOK, echo.Map{"id": id, "status": to})
}

// DeleteBooking handles DELETE /v1/bookings/:id.
func (h *AdminHandler) DeleteBooking(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Bookings.Delete(ctx, c.Param("id")); err != nil {
		return h.adminError(c, err, "booking")
	}
	h.purge(ctx)
	return c.NoContent(http.StatusNoContent)
}

// ListAgents handles GET /v1/agents.
func (h *AdminHandler) ListAgents(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	items, err := h.Agents.List(ctx)
	if err != nil {
		return h.adminError(c, err, "agents")
	}
	if items == nil {
		items = []model.AgentListing{}
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// ActivateAgent handles POST /v1/agents/:id/activate.
func (h *AdminHandler) ActivateAgent(c echo.Context) error {
	return h.statusAction(c, "agent", model.AgentActive, h.Agents.Activate)
}

// DisableAgent handles POST /v1/agents/:id/disable.
func (h *AdminHandler) DisableAgent(c echo.Context) error {
	return h.statusAction(c, "agent", model.AgentDisabled, h.Agents.Disable)
}

// ListAgencies handles GET /v1/agencies?zip=&q=.  Without parameters every
// agency is listed.  With zip the result is the agencies at exactly that zip
// code, narrowed by address when q has at least two characters, capped at
// repository.AgencySearchLimit.  q without zip is rejected.
func (h *AdminHandler) ListAgencies(c echo.Context) error {
	zip := strings.TrimSpace(c.QueryParam("zip"))
	q := strings.TrimSpace(c.QueryParam("q"))
	if zip == "" && q != "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "zip required"})
	}
	if utf8.RuneCountInString(q) < 2 {
		q = ""
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	var (
		items []model.Agency
		err   error
	)
	if zip == "" {
		items, err = h.Agencies.List(ctx)
	} else {
		items, err = h.Agencies.Search(ctx, zip, q, repository.AgencySearchLimit)
	}
	if err != nil {
		return h.adminError(c, err, "agencies")
	}
	if items == nil {
		items = []model.Agency{}
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// ApproveAgency handles POST /v1/agencies/:id/approve.
func (h *AdminHandler) ApproveAgency(c echo.Context) error {
	return h.statusAction(c, "agency", model.AgencyActive, h.Agencies.Approve)
}

// ArchiveAgency handles POST /v1/agencies/:id/archive.
func (h *AdminHandler) ArchiveAgency(c echo.Context) error {
	return h.statusAction(c, "agency", model.AgencyArchived, h.Agencies.Archive)
}

func (h *AdminHandler) statusAction(c echo.Context, what, to string, apply func(context.Context, string) error) error {
	id := c.Param("id")
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := apply(ctx, id); err != nil {
		return h.adminError(c, err, what)
	}
	h.purge(ctx)
	return c.JSON(http.StatusOK, echo.Map{"id": id, "status": to})
}

// ListHotels handles GET /v1/hotels.
func (h *AdminHandler) ListHotels(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	items, err := h.Hotels.ListWithRoomTypes(ctx)
	if err != nil {
		return h.adminError(c, err, "hotels")
	}
	if items == nil {
		items = []model.Hotel{}
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// Seed handles POST /v1/admin/seed.
func (h *AdminHandler) Seed(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	seeded, err := h.Seeder.Seed(ctx)
	if err != nil {
		h.Log.Error().Err(err).Msg("seed failed")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to seed database"})
	}
	if !seeded {
		return c.JSON(http.StatusOK, echo.Map{"message": MsgAlreadySeeded})
	}
	h.purge(ctx)
	return c.JSON(http.StatusOK, echo.Map{"message": MsgSeeded})
}

// Clear handles POST /v1/admin/clear.
func (h *AdminHandler) Clear(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	if err := h.Seeder.Clear(ctx); err != nil {
		h.Log.Error().Err(err).Msg("clear failed")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to clear data"})
	}
	h.purge(ctx)
	return c.JSON(http.StatusOK, echo.Map{"message": MsgCleared})
}

// Seed and clear messages, shared with the CLI.
const (
	MsgAlreadySeeded = "Database already seeded! Clear data first to re-seed."
	MsgSeeded        = "Database seeded with bookings successfully!"
	MsgCleared       = "All data cleared successfully!"
)
