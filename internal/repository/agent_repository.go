package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/iliyamo/agent-incentives/internal/model"
)

// AgentRepo persists agents.
type AgentRepo struct{ db *sql.DB }

func NewAgentRepo(db *sql.DB) *AgentRepo { return &AgentRepo{db: db} }

// EmailExistsTx reports whether an agent with the normalized email exists.
func (r *AgentRepo) EmailExistsTx(ctx context.Context, tx *sql.Tx, email string) (bool, error) {
	var one int
	err := tx.QueryRowContext(ctx, "SELECT 1 FROM agents WHERE email=? LIMIT 1",
		strings.ToLower(strings.TrimSpace(email))).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// CreateTx inserts an agent inside tx.  ID, role and status are defaulted
// when empty.  A unique index violation on email maps to ErrEmailExists.
func (r *AgentRepo) CreateTx(ctx context.Context, tx *sql.Tx, a *model.Agent) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.Role == "" {
		a.Role = model.RoleAgent
	}
	if a.Status == "" {
		a.Status = model.AgentPending
	}
	a.Email = strings.ToLower(strings.TrimSpace(a.Email))
	_, err := tx.ExecContext(ctx,
		`INSERT INTO agents (id, email, role, agency_id, first_name, last_name, telephone, status)
		 VALUES (?,?,?,?,?,?,?,?)`,
		a.ID, a.Email, a.Role, a.AgencyID, a.FirstName, a.LastName, a.Telephone, a.Status)
	if err != nil {
		if isDuplicateKey(err) {
			return ErrEmailExists
		}
		return err
	}
	return nil
}

// List returns all agents with their agency name, newest first.
func (r *AgentRepo) List(ctx context.Context) ([]model.AgentListing, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT a.id, a.email, COALESCE(a.first_name,''), COALESCE(a.last_name,''), a.telephone,
		        a.agency_id, a.role, a.status, a.created_at, a.updated_at, COALESCE(g.name,'')
		 FROM agents a LEFT JOIN agencies g ON g.id = a.agency_id
		 ORDER BY a.created_at DESC, a.id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.AgentListing
	for rows.Next() {
		var (
			l   model.AgentListing
			tel sql.NullString
		)
		if err := rows.Scan(&l.ID, &l.Email, &l.FirstName, &l.LastName, &tel,
			&l.AgencyID, &l.Role, &l.Status, &l.CreatedAt, &l.UpdatedAt, &l.AgencyName); err != nil {
			return nil, err
		}
		if tel.Valid {
			t := tel.String
			l.Telephone = &t
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// Activate enables a pending or disabled agent.
func (r *AgentRepo) Activate(ctx context.Context, id string) error {
	return transition(ctx, r.db, "agents", id, model.AgentActive, model.AgentPending, model.AgentDisabled)
}

// Disable blocks a pending or active agent.
func (r *AgentRepo) Disable(ctx context.Context, id string) error {
	return transition(ctx, r.db, "agents", id, model.AgentDisabled, model.AgentPending, model.AgentActive)
}
