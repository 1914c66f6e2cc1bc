package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/iliyamo/aether/internal/model"
)

// VersionRepo appends and reads generated-code snapshots.  Like messages,
// versions are never updated.
type VersionRepo struct {
	db DBTX
}

func NewVersionRepo(db DBTX) *VersionRepo { return &VersionRepo{db: db} }

func (r *VersionRepo) WithTx(tx *sql.Tx) *VersionRepo { return &VersionRepo{db: tx} }

func (r *VersionRepo) Create(ctx context.Context, v *model.Version) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO versions (id, project_id, code, model, created_at) VALUES (?, ?, ?, ?, ?)`,
		v.ID, v.ProjectID, v.Code, v.Model, v.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("creating version: %w", err)
	}
	return nil
}

// Get loads one version of a project.  A version id that exists under a
// different project is reported as ErrVersionNotFound.
func (r *VersionRepo) Get(ctx context.Context, projectID, versionID string) (*model.Version, error) {
	var v model.Version
	err := r.db.QueryRowContext(ctx,
		`SELECT id, project_id, code, model, created_at FROM versions WHERE id = ? AND project_id = ?`,
		versionID, projectID,
	).Scan(&v.ID, &v.ProjectID, &v.Code, &v.Model, &v.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrVersionNotFound
		}
		return nil, fmt.Errorf("getting version: %w", err)
	}
	return &v, nil
}

// ListByProject returns the project's versions in creation order.
func (r *VersionRepo) ListByProject(ctx context.Context, projectID string) ([]model.Version, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, project_id, code, model, created_at
		 FROM versions WHERE project_id = ? ORDER BY created_at ASC`, projectID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing versions: %w", err)
	}
	defer rows.Close()

	results := []model.Version{}
	for rows.Next() {
		var v model.Version
		if err := rows.Scan(&v.ID, &v.ProjectID, &v.Code, &v.Model, &v.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning version: %w", err)
		}
		results = append(results, v)
	}
	return results, rows.Err()
}

// DeleteByProject is only used when a whole project is deleted.
func (r *VersionRepo) DeleteByProject(ctx context.Context, projectID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM versions WHERE project_id = ?`, projectID); err != nil {
		return fmt.Errorf("deleting versions: %w", err)
	}
	return nil
}
