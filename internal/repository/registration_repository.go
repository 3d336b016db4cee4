package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/iliyamo/agent-incentives/internal/model"
)

// Registration is the fully decided write of the registration flow: the
// agent to create and exactly one of a new agency to insert or the id of an
// existing agency to join.
type Registration struct {
	Agent            model.Agent
	NewAgency        *model.Agency
	ExistingAgencyID string
}

// RegistrationResult carries the identifiers generated by a commit.
type RegistrationResult struct {
	AgentID       string
	AgencyID      string
	CreatedAgency bool
}

// RegistrationRepo commits registrations atomically across the agencies
// and agents tables.
type RegistrationRepo struct {
	db       *sql.DB
	agencies *AgencyRepo
	agents   *AgentRepo
}

// NewRegistrationRepo wires the repository with its table helpers.
func NewRegistrationRepo(db *sql.DB) *RegistrationRepo {
	return &RegistrationRepo{db: db, agencies: NewAgencyRepo(db), agents: NewAgentRepo(db)}
}

// Commit runs the duplicate check, the optional agency insert and the agent
// insert in one transaction.  ErrEmailExists is returned, with nothing
// written, when the email is already registered; that covers both the early
// lookup and a concurrent insert caught by the unique index.
func (r *RegistrationRepo) Commit(ctx context.Context, reg Registration) (RegistrationResult, error) {
	if r.db == nil {
		return RegistrationResult{}, fmt.Errorf("registration: store not configured")
	}
	if (reg.NewAgency == nil) == (reg.ExistingAgencyID == "") {
		return RegistrationResult{}, fmt.Errorf("registration: exactly one agency choice required")
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return RegistrationResult{}, fmt.Errorf("registration: begin: %w", err)
	}
	// Rollback after a successful Commit is a no-op.
	defer func() { _ = tx.Rollback() }()

	exists, err := r.agents.EmailExistsTx(ctx, tx, reg.Agent.Email)
	if err != nil {
		return RegistrationResult{}, fmt.Errorf("registration: lookup email: %w", err)
	}
	if exists {
		return RegistrationResult{}, ErrEmailExists
	}

	res := RegistrationResult{AgencyID: reg.ExistingAgencyID}
	if reg.NewAgency != nil {
		agency := *reg.NewAgency
		agency.Status = model.AgencyPending
		if err := r.agencies.CreateTx(ctx, tx, &agency); err != nil {
			return RegistrationResult{}, fmt.Errorf("registration: insert agency: %w", err)
		}
		res.AgencyID = agency.ID
		res.CreatedAgency = true
	}

	agent := reg.Agent
	agent.AgencyID = res.AgencyID
	agent.Role = model.RoleAgent
	agent.Status = model.AgentPending
	if err := r.agents.CreateTx(ctx, tx, &agent); err != nil {
		if err == ErrEmailExists {
			return RegistrationResult{}, err
		}
		return RegistrationResult{}, fmt.Errorf("registration: insert agent: %w", err)
	}
	res.AgentID = agent.ID

	if err := tx.Commit(); err != nil {
		return RegistrationResult{}, fmt.Errorf("registration: commit: %w", err)
	}
	return res, nil
}
