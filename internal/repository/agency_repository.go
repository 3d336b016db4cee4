package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/google/uuid"

	"github.com/iliyamo/agent-incentives/internal/model"
)

// AgencyRepo encapsulates all database queries related to agencies.
type AgencyRepo struct {
	db *sql.DB
}

// NewAgencyRepo constructs an AgencyRepo with the provided DB handle.
func NewAgencyRepo(db *sql.DB) *AgencyRepo {
	return &AgencyRepo{db: db}
}

// FindCandidates returns up to limit agencies whose zip code starts with
// zipPrefix.  When query is non-empty the result is further restricted to
// agencies whose address or name contains it, case-insensitively.  Callers
// are responsible for trimming and threshold checks; this method only
// composes the SQL.
func (r *AgencyRepo) FindCandidates(ctx context.Context, zipPrefix, query string, limit int) ([]model.AgencySummary, error) {
	where := []string{"zip_code LIKE ?"}
	args := []any{escapeLike(zipPrefix) + "%"}

	if query != "" {
		where = append(where, "(LOWER(address) LIKE ? OR LOWER(name) LIKE ?)")
		pattern := "%" + escapeLike(strings.ToLower(query)) + "%"
		args = append(args, pattern, pattern)
	}

	q := `SELECT id, name,
	             COALESCE(address, ''), COALESCE(city, ''), COALESCE(country, ''), COALESCE(zip_code, '')
	      FROM agencies
	      WHERE ` + strings.Join(where, " AND ") + `
	      ORDER BY name ASC, id ASC
	      LIMIT ?`
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]model.AgencySummary, 0, limit)
	for rows.Next() {
		var a model.AgencySummary
		if err := rows.Scan(&a.ID, &a.Name, &a.Address, &a.City, &a.Country, &a.ZipCode); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateTx inserts a new agency within the scope of an existing transaction.
// A fresh UUID is assigned to a.ID and the status defaults to pending.  The
// caller must commit or rollback the transaction.
func (r *AgencyRepo) CreateTx(ctx context.Context, tx *sql.Tx, a *model.Agency) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.Status == "" {
		a.Status = model.AgencyPending
	}
	const q = `INSERT INTO agencies (id, name, address, city, country, zip_code, status)
	           VALUES (?, ?, ?, ?, ?, ?, ?)`
	_, err := tx.ExecContext(ctx, q, a.ID, a.Name, a.Address, a.City, a.Country, a.ZipCode, a.Status)
	return err
}

// AgencySearchLimit caps the admin agency search.
const AgencySearchLimit = 50

const agencySelect = `SELECT id, name, COALESCE(address, ''), COALESCE(city, ''), COALESCE(country, ''),
	                  COALESCE(zip_code, ''), status, created_at, updated_at
	           FROM agencies`

// List returns every agency ordered by name.
func (r *AgencyRepo) List(ctx context.Context) ([]model.Agency, error) {
	return r.queryAgencies(ctx, agencySelect+` ORDER BY name, id`)
}

// Search returns up to limit agencies whose zip code equals zip.  A
// non-empty address narrows the result to agencies whose address contains
// it, case-insensitively.
func (r *AgencyRepo) Search(ctx context.Context, zip, address string, limit int) ([]model.Agency, error) {
	where := []string{"zip_code = ?"}
	args := []any{zip}

	if address != "" {
		where = append(where, "LOWER(address) LIKE ?")
		args = append(args, "%"+escapeLike(strings.ToLower(address))+"%")
	}
	args = append(args, limit)

	return r.queryAgencies(ctx, agencySelect+`
	           WHERE `+strings.Join(where, " AND ")+`
	           ORDER BY name, id
	           LIMIT ?`, args...)
}

func (r *AgencyRepo) queryAgencies(ctx context.Context, q string, args ...any) ([]model.Agency, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Agency
	for rows.Next() {
		var a model.Agency
		if err := rows.Scan(&a.ID, &a.Name, &a.Address, &a.City, &a.Country, &a.ZipCode,
			&a.Status, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Approve moves a pending agency to active.
func (r *AgencyRepo) Approve(ctx context.Context, id string) error {
	return transition(ctx, r.db, "agencies", id, model.AgencyActive, model.AgencyPending)
}

// Archive retires a pending or active agency.  Agents keep their reference.
func (r *AgencyRepo) Archive(ctx context.Context, id string) error {
	return transition(ctx, r.db, "agencies", id, model.AgencyArchived, model.AgencyPending, model.AgencyActive)
}
