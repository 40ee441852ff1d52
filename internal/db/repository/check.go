// Package repository implements persistence on the SQLite check store.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"driftscope/internal/domain"
)

const timeFormat = time.RFC3339

var _ domain.CheckRepository = (*CheckRepo)(nil)

// CheckRepo persists saved checks. Writes go through writeDB (a
// single-connection pool), reads through readDB.
type CheckRepo struct {
	writeDB *sql.DB
	readDB  *sql.DB
}

func NewCheckRepo(writeDB, readDB *sql.DB) *CheckRepo {
	return &CheckRepo{writeDB: writeDB, readDB: readDB}
}

// Create inserts a new check, assigning its id and timestamps.
func (r *CheckRepo) Create(ctx context.Context, check *domain.Check) (*domain.Check, error) {
	if check.Name == "" {
		return nil, domain.ErrValidation("check name is required")
	}
	if check.Type == "" {
		return nil, domain.ErrValidation("check type is required")
	}

	nodeIDs, err := json.Marshal(check.NodeIDs)
	if err != nil {
		return nil, fmt.Errorf("encode node ids: %w", err)
	}
	viewOptions, err := json.Marshal(check.ViewOptions)
	if err != nil {
		return nil, fmt.Errorf("encode view options: %w", err)
	}

	now := time.Now().UTC()
	stored := *check
	stored.ID = domain.NewID()
	stored.CreatedAt = now
	stored.UpdatedAt = now

	_, err = r.writeDB.ExecContext(ctx,
		`INSERT INTO checks (id, name, type, description, node_ids, view_options, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		stored.ID, stored.Name, string(stored.Type), stored.Description,
		string(nodeIDs), string(viewOptions),
		now.Format(timeFormat), now.Format(timeFormat))
	if err != nil {
		return nil, fmt.Errorf("insert check: %w", err)
	}

	return &stored, nil
}

// GetByID reads one check.
func (r *CheckRepo) GetByID(ctx context.Context, id string) (*domain.Check, error) {
	row := r.readDB.QueryRowContext(ctx,
		`SELECT id, name, type, description, node_ids, view_options, created_at, updated_at
		 FROM checks WHERE id = ?`, id)
	check, err := scanCheck(row)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound("check %q not found", id)
	}
	if err != nil {
		return nil, err
	}
	return check, nil
}

// List returns all checks, newest first.
func (r *CheckRepo) List(ctx context.Context) ([]*domain.Check, error) {
	rows, err := r.readDB.QueryContext(ctx,
		`SELECT id, name, type, description, node_ids, view_options, created_at, updated_at
		 FROM checks ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list checks: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var checks []*domain.Check
	for rows.Next() {
		check, err := scanCheck(rows)
		if err != nil {
			return nil, err
		}
		checks = append(checks, check)
	}
	return checks, rows.Err()
}

// Rename updates a check's name.
func (r *CheckRepo) Rename(ctx context.Context, id, name string) (*domain.Check, error) {
	if name == "" {
		return nil, domain.ErrValidation("check name is required")
	}

	res, err := r.writeDB.ExecContext(ctx,
		`UPDATE checks SET name = ?, updated_at = ? WHERE id = ?`,
		name, time.Now().UTC().Format(timeFormat), id)
	if err != nil {
		return nil, fmt.Errorf("rename check: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, domain.ErrNotFound("check %q not found", id)
	}
	return r.GetByID(ctx, id)
}

// Delete removes a check.
func (r *CheckRepo) Delete(ctx context.Context, id string) error {
	res, err := r.writeDB.ExecContext(ctx, `DELETE FROM checks WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete check: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound("check %q not found", id)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCheck(row rowScanner) (*domain.Check, error) {
	var (
		check                domain.Check
		typ                  string
		nodeIDs, viewOptions string
		createdAt, updatedAt string
	)
	err := row.Scan(&check.ID, &check.Name, &typ, &check.Description,
		&nodeIDs, &viewOptions, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	check.Type = domain.CheckType(typ)
	if err := json.Unmarshal([]byte(nodeIDs), &check.NodeIDs); err != nil {
		return nil, fmt.Errorf("decode node ids: %w", err)
	}
	if err := json.Unmarshal([]byte(viewOptions), &check.ViewOptions); err != nil {
		return nil, fmt.Errorf("decode view options: %w", err)
	}
	if check.CreatedAt, err = time.Parse(timeFormat, createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if check.UpdatedAt, err = time.Parse(timeFormat, updatedAt); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}
	return &check, nil
}
