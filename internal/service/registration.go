// Package service holds the registration workflow that sits between the HTTP
// handlers and the repositories: agency matching, validation and the commit
// of a new agent.
package service

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/iliyamo/agent-incentives/internal/metrics"
	"github.com/iliyamo/agent-incentives/internal/model"
	"github.com/iliyamo/agent-incentives/internal/queue"
	"github.com/iliyamo/agent-incentives/internal/repository"
)

// MaxCandidates caps the number of agencies offered to a registering agent.
const MaxCandidates = 5

// minQueryLen is the shortest address query that is applied as a filter.
const minQueryLen = 2

// Messages returned to the registering agent.
const (
	MsgAlreadyRegistered = "This email is already registered. Please contact support if you cannot access your account."
	MsgJoinedExisting    = "Registration submitted! Your request to join the agency is pending review."
	MsgCreatedAgency     = "Registration submitted! Your new agency has been created and is pending review."
	MsgRegistrationError = "Registration failed. Please check your information and try again."
)

// ErrRegistrationFailed is returned for every commit failure other than a
// duplicate email.  The underlying cause is logged, never returned.
var ErrRegistrationFailed = errors.New("registration failed")

// ValidationError reports a missing or malformed input field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func invalid(field, msg string) error { return &ValidationError{Field: field, Message: msg} }

// CandidateFinder is the read side used by the Matcher.
type CandidateFinder interface {
	FindCandidates(ctx context.Context, zipPrefix, query string, limit int) ([]model.AgencySummary, error)
}

// RegistrationStore commits a decided registration atomically.
type RegistrationStore interface {
	Commit(ctx context.Context, reg repository.Registration) (repository.RegistrationResult, error)
}

// EventPublisher delivers domain events.  *Publisher satisfies it.
type EventPublisher interface {
	Publish(ctx context.Context, queue string, event any) error
}

// Matcher looks up existing agencies a registering agent may belong to.
type Matcher struct {
	finder CandidateFinder
	log    zerolog.Logger
}

// NewMatcher returns a Matcher backed by finder.  finder may be nil, in
// which case every lookup yields no candidates.
func NewMatcher(finder CandidateFinder, log zerolog.Logger) *Matcher {
	return &Matcher{finder: finder, log: log}
}

// FindCandidates returns up to MaxCandidates agencies whose zip code starts
// with zip, narrowed by addressQuery when it has at least two characters.
// It never fails: an empty zip, a missing store or a store error all yield
// an empty, non-nil slice.
func (m *Matcher) FindCandidates(ctx context.Context, zip, addressQuery string) []model.AgencySummary {
	zip = strings.TrimSpace(zip)
	if zip == "" {
		metrics.CandidateLookups.WithLabelValues("skipped").Inc()
		return []model.AgencySummary{}
	}
	q := strings.TrimSpace(addressQuery)
	if utf8.RuneCountInString(q) < minQueryLen {
		q = ""
	}
	if m == nil || m.finder == nil {
		metrics.CandidateLookups.WithLabelValues("error").Inc()
		return []model.AgencySummary{}
	}

	found, err := m.finder.FindCandidates(ctx, zip, q, MaxCandidates)
	if err != nil {
		m.log.Error().Err(err).Str("zip", zip).Msg("agency candidate lookup failed")
		metrics.CandidateLookups.WithLabelValues("error").Inc()
		return []model.AgencySummary{}
	}
	if len(found) > MaxCandidates {
		found = found[:MaxCandidates]
	}
	if len(found) == 0 {
		metrics.CandidateLookups.WithLabelValues("miss").Inc()
		return []model.AgencySummary{}
	}
	metrics.CandidateLookups.WithLabelValues("hit").Inc()
	return found
}

// AgentInput is the personal part of a registration.
type AgentInput struct {
	Email     string
	FirstName string
	LastName  string
	Telephone string
}

// NewAgency is the prospective agency typed by the registering agent.
type NewAgency struct {
	Name    string
	Address string
	City    string
	Country string
	ZipCode string
}

// AgencyChoice selects the agency to attach the agent to.  Exactly one of
// ExistingID and New must be set.
type AgencyChoice struct {
	ExistingID string
	New        *NewAgency
}

// Outcome classifies a completed registration.
type Outcome string

const (
	OutcomeAlreadyRegistered Outcome = "already_registered"
	OutcomeJoinedExisting    Outcome = "joined_existing"
	OutcomeCreatedAgency     Outcome = "created_agency"
)

// Result is returned by Register.  AgentID and AgencyID are empty when the
// email was already registered.
type Result struct {
	Outcome  Outcome
	Message  string
	AgentID  string
	AgencyID string
}

// Stages of the server-side intake.
const (
	StageConfirmation = "confirmation"
	StageDone         = "done"
)

// Step is the response to Begin: either candidates to confirm against, or
// the result of registering with a new agency.
type Step struct {
	Stage      string
	Candidates []model.AgencySummary
	Result     *Result
}

// Coordinator validates registrations and commits them through the store.
type Coordinator struct {
	matcher *Matcher
	store   RegistrationStore
	events  EventPublisher
	log     zerolog.Logger
	now     func() time.Time
}

// NewCoordinator wires a coordinator.  events may be nil.
func NewCoordinator(matcher *Matcher, store RegistrationStore, events EventPublisher, log zerolog.Logger) *Coordinator {
	return &Coordinator{matcher: matcher, store: store, events: events, log: log, now: time.Now}
}

// Begin runs intake and matching for an agent who typed a prospective
// agency.  When existing agencies match, the caller must confirm a choice
// and call Register; otherwise the agent is registered with the new agency
// straight away.
func (c *Coordinator) Begin(ctx context.Context, agent AgentInput, agency NewAgency) (Step, error) {
	agent = normalizeAgent(agent)
	agency = normalizeAgency(agency)
	if err := validateAgent(agent); err != nil {
		metrics.Registrations.WithLabelValues("invalid").Inc()
		return Step{}, err
	}
	if err := validateAgency(agency); err != nil {
		metrics.Registrations.WithLabelValues("invalid").Inc()
		return Step{}, err
	}

	candidates := c.matcher.FindCandidates(ctx, agency.ZipCode, agency.Address)
	if len(candidates) > 0 {
		return Step{Stage: StageConfirmation, Candidates: candidates}, nil
	}

	res, err := c.Register(ctx, agent, AgencyChoice{New: &agency})
	if err != nil {
		return Step{}, err
	}
	return Step{Stage: StageDone, Result: &res}, nil
}

// Register validates the input and commits the agent, together with a new
// agency when one was chosen, in a single transaction.  A duplicate email
// is a normal outcome, not an error.  Any other store failure is logged and
// reported as ErrRegistrationFailed.
func (c *Coordinator) Register(ctx context.Context, agent AgentInput, choice AgencyChoice) (Result, error) {
	agent = normalizeAgent(agent)
	if err := validateAgent(agent); err != nil {
		metrics.Registrations.WithLabelValues("invalid").Inc()
		return Result{}, err
	}
	choice.ExistingID = strings.TrimSpace(choice.ExistingID)
	if err := validateChoice(&choice); err != nil {
		metrics.Registrations.WithLabelValues("invalid").Inc()
		return Result{}, err
	}

	if c.store == nil {
		c.log.Error().Msg("registration store not configured")
		metrics.Registrations.WithLabelValues("failed").Inc()
		return Result{}, ErrRegistrationFailed
	}

	reg := repository.Registration{
		Agent: model.Agent{
			Email:     agent.Email,
			FirstName: agent.FirstName,
			LastName:  agent.LastName,
		},
		ExistingAgencyID: choice.ExistingID,
	}
	if agent.Telephone != "" {
		tel := agent.Telephone
		reg.Agent.Telephone = &tel
	}
	if choice.New != nil {
		reg.NewAgency = &model.Agency{
			Name:    choice.New.Name,
			Address: choice.New.Address,
			City:    choice.New.City,
			Country: choice.New.Country,
			ZipCode: choice.New.ZipCode,
		}
	}

	committed, err := c.store.Commit(ctx, reg)
	if errors.Is(err, repository.ErrEmailExists) {
		metrics.Registrations.WithLabelValues(string(OutcomeAlreadyRegistered)).Inc()
		return Result{Outcome: OutcomeAlreadyRegistered, Message: MsgAlreadyRegistered}, nil
	}
	if err != nil {
		c.log.Error().Err(err).Str("email", agent.Email).Msg("registration commit failed")
		metrics.Registrations.WithLabelValues("failed").Inc()
		return Result{}, ErrRegistrationFailed
	}

	res := Result{
		Outcome:  OutcomeJoinedExisting,
		Message:  MsgJoinedExisting,
		AgentID:  committed.AgentID,
		AgencyID: committed.AgencyID,
	}
	if committed.CreatedAgency {
		res.Outcome = OutcomeCreatedAgency
		res.Message = MsgCreatedAgency
	}
	metrics.Registrations.WithLabelValues(string(res.Outcome)).Inc()
	c.log.Info().
		Str("agent_id", res.AgentID).
		Str("agency_id", res.AgencyID).
		Str("outcome", string(res.Outcome)).
		Msg("agent registered")

	c.publishRegistered(ctx, agent, choice, committed)
	return res, nil
}

func (c *Coordinator) publishRegistered(ctx context.Context, agent AgentInput, choice AgencyChoice, committed repository.RegistrationResult) {
	if c.events == nil {
		return
	}
	ev := queue.AgentRegisteredEvent{
		AgentID:       committed.AgentID,
		AgencyID:      committed.AgencyID,
		Email:         agent.Email,
		FirstName:     agent.FirstName,
		LastName:      agent.LastName,
		CreatedAgency: committed.CreatedAgency,
		RegisteredAt:  c.now().UTC().Format(time.RFC3339),
	}
	if choice.New != nil {
		ev.AgencyName = choice.New.Name
	}
	// The registration is already committed; a slow or absent broker must
	// not hold the response.
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), PublishTimeout)
	defer cancel()
	if err := c.events.Publish(pubCtx, queue.AgentRegisteredQueue, ev); err != nil {
		c.log.Warn().Err(err).Str("agent_id", committed.AgentID).Msg("agent.registered event not published")
	}
}

func normalizeAgent(a AgentInput) AgentInput {
	return AgentInput{
		Email:     strings.ToLower(strings.TrimSpace(a.Email)),
		FirstName: strings.TrimSpace(a.FirstName),
		LastName:  strings.TrimSpace(a.LastName),
		Telephone: strings.TrimSpace(a.Telephone),
	}
}

func normalizeAgency(a NewAgency) NewAgency {
	return NewAgency{
		Name:    strings.TrimSpace(a.Name),
		Address: strings.TrimSpace(a.Address),
		City:    strings.TrimSpace(a.City),
		Country: strings.TrimSpace(a.Country),
		ZipCode: strings.TrimSpace(a.ZipCode),
	}
}

func validateAgent(a AgentInput) error {
	switch {
	case a.Email == "":
		return invalid("email", "email is required")
	case !strings.Contains(a.Email, "@"):
		return invalid("email", "email is invalid")
	case a.FirstName == "":
		return invalid("firstName", "first name is required")
	case a.LastName == "":
		return invalid("lastName", "last name is required")
	}
	return nil
}

func validateAgency(a NewAgency) error {
	switch {
	case a.Name == "":
		return invalid("agency.name", "agency name is required")
	case a.Address == "":
		return invalid("agency.address", "agency address is required")
	case a.City == "":
		return invalid("agency.city", "agency city is required")
	case a.Country == "":
		return invalid("agency.country", "agency country is required")
	case a.ZipCode == "":
		return invalid("agency.zipCode", "agency zip code is required")
	}
	return nil
}

// validateChoice normalises a new agency in place and checks that exactly
// one option was picked.
func validateChoice(c *AgencyChoice) error {
	if c.New != nil {
		n := normalizeAgency(*c.New)
		c.New = &n
	}
	switch {
	case c.ExistingID == "" && c.New == nil:
		return invalid("agency", "choose an existing agency or enter a new one")
	case c.ExistingID != "" && c.New != nil:
		return invalid("agency", "choose either an existing agency or a new one, not both")
	case c.New != nil:
		return validateAgency(*c.New)
	}
	return nil
}
