package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/agent-incentives/internal/service"
)

// RegistrationHandler serves the public agent sign-up flow: the agency
// candidate lookup and the final registration submit.
type RegistrationHandler struct {
	Matcher     *service.Matcher
	Coordinator *service.Coordinator
}

// NewRegistrationHandler wires the handler; both dependencies are required.
func NewRegistrationHandler(m *service.Matcher, c *service.Coordinator) *RegistrationHandler {
	if m == nil || c == nil {
		panic("nil dependency passed to NewRegistrationHandler")
	}
	return &RegistrationHandler{Matcher: m, Coordinator: c}
}

type agentPayload struct {
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Telephone string `json:"telephone"`
}

func (p agentPayload) input() service.AgentInput {
	return service.AgentInput{Email: p.Email, FirstName: p.FirstName, LastName: p.LastName, Telephone: p.Telephone}
}

type agencyPayload struct {
	Name    string `json:"name"`
	Address string `json:"address"`
	City    string `json:"city"`
	Country string `json:"country"`
	ZipCode string `json:"zipCode"`
}

func (p agencyPayload) input() service.NewAgency {
	return service.NewAgency{Name: p.Name, Address: p.Address, City: p.City, Country: p.Country, ZipCode: p.ZipCode}
}

type registerRequest struct {
	Agent            agentPayload   `json:"agent"`
	Agency           *agencyPayload `json:"agency"`
	ExistingAgencyID string         `json:"existingAgencyId"`
}

type intakeRequest struct {
	Agent  agentPayload  `json:"agent"`
	Agency agencyPayload `json:"agency"`
}

// AgencyCandidates handles GET /registration/agency-candidates?zip=&q=.
// It always answers 200; bad input or a store failure yields an empty list.
func (h *RegistrationHandler) AgencyCandidates(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	candidates := h.Matcher.FindCandidates(ctx, c.QueryParam("zip"), c.QueryParam("q"))
	return c.JSON(http.StatusOK, echo.Map{"candidates": candidates})
}

// Register handles POST /registration.  An existing agency id takes
// precedence over an agency payload sent alongside it.
func (h *RegistrationHandler) Register(c echo.Context) error {
	var req registerRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}

	var choice service.AgencyChoice
	if id := strings.TrimSpace(req.ExistingAgencyID); id != "" {
		choice.ExistingID = id
	} else if req.Agency != nil {
		na := req.Agency.input()
		choice.New = &na
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	res, err := h.Coordinator.Register(ctx, req.Agent.input(), choice)
	if err != nil {
		return registrationError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": res.Message})
}

// Intake handles POST /registration/intake: the agent's details plus the
// agency they typed.  Matching agencies are returned for confirmation;
// with no match the agent is registered with the new agency at once.
func (h *RegistrationHandler) Intake(c echo.Context) error {
	var req intakeRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	step, err := h.Coordinator.Begin(ctx, req.Agent.input(), req.Agency.input())
	if err != nil {
		return registrationError(c, err)
	}
	if step.Stage == service.StageConfirmation {
		return c.JSON(http.StatusOK, echo.Map{"stage": step.Stage, "candidates": step.Candidates})
	}
	return c.JSON(http.StatusOK, echo.Map{"stage": step.Stage, "message": step.Result.Message})
}

func registrationError(c echo.Context, err error) error {
	var ve *service.ValidationError
	if errors.As(err, &ve) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": ve.Message, "field": ve.Field})
	}
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": service.MsgRegistrationError})
}
