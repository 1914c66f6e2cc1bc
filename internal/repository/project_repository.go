package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/iliyamo/aether/internal/model"
)

// ProjectRepo provides access to the projects table.  Lookups that take a
// userID are owner-scoped and report ErrProjectNotFound for foreign rows.
type ProjectRepo struct {
	db DBTX
}

func NewProjectRepo(db DBTX) *ProjectRepo { return &ProjectRepo{db: db} }

// WithTx returns a repo bound to tx.
func (r *ProjectRepo) WithTx(tx *sql.Tx) *ProjectRepo { return &ProjectRepo{db: tx} }

const projectColumns = `id, user_id, name, initial_prompt, current_code, current_version_index, is_published, created_at, updated_at`

// Create inserts a project.  CurrentCode and CurrentVersionID are expected to
// be nil for a new project.
func (r *ProjectRepo) Create(ctx context.Context, p *model.Project) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO projects (`+projectColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.UserID, p.Name, p.InitialPrompt, p.CurrentCode, p.CurrentVersionID, p.IsPublished,
		p.CreatedAt.UTC(), p.UpdatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("creating project: %w", err)
	}
	return nil
}

// GetByID loads a project regardless of owner.
func (r *ProjectRepo) GetByID(ctx context.Context, id string) (*model.Project, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+projectColumns+` FROM projects WHERE id = ?`, id)
	return scanProject(row)
}

// GetForUser loads a project owned by userID.
func (r *ProjectRepo) GetForUser(ctx context.Context, id, userID string) (*model.Project, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+projectColumns+` FROM projects WHERE id = ? AND user_id = ?`, id, userID)
	return scanProject(row)
}

// GetPublished loads a project only if it is published.
func (r *ProjectRepo) GetPublished(ctx context.Context, id string) (*model.Project, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+projectColumns+` FROM projects WHERE id = ? AND is_published = 1`, id)
	return scanProject(row)
}

// ListByUser returns the user's projects, newest first.
func (r *ProjectRepo) ListByUser(ctx context.Context, userID string) ([]model.Project, error) {
	return r.list(ctx, `SELECT `+projectColumns+` FROM projects WHERE user_id = ? ORDER BY created_at DESC`, userID)
}

// ListPublished returns every published project, most recently updated first.
func (r *ProjectRepo) ListPublished(ctx context.Context) ([]model.Project, error) {
	return r.list(ctx, `SELECT `+projectColumns+` FROM projects WHERE is_published = 1 ORDER BY updated_at DESC`)
}

func (r *ProjectRepo) list(ctx context.Context, query string, args ...any) ([]model.Project, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing projects: %w", err)
	}
	defer rows.Close()

	results := []model.Project{}
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, *p)
	}
	return results, rows.Err()
}

// SetCurrent moves the current pointer and live code of a project.
func (r *ProjectRepo) SetCurrent(ctx context.Context, projectID, versionID, code string, now time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE projects SET current_version_index = ?, current_code = ?, updated_at = ? WHERE id = ?`,
		versionID, code, now.UTC(), projectID,
	)
	if err != nil {
		return fmt.Errorf("updating current version: %w", err)
	}
	return expectOne(res, ErrProjectNotFound)
}

// SaveCode overwrites the live code without creating a version.
func (r *ProjectRepo) SaveCode(ctx context.Context, id, userID, code string, now time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE projects SET current_code = ?, updated_at = ? WHERE id = ? AND user_id = ?`,
		code, now.UTC(), id, userID,
	)
	if err != nil {
		return fmt.Errorf("saving project code: %w", err)
	}
	return expectOne(res, ErrProjectNotFound)
}

// TogglePublished flips is_published and returns the new value.
func (r *ProjectRepo) TogglePublished(ctx context.Context, id, userID string, now time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE projects SET is_published = CASE WHEN is_published = 1 THEN 0 ELSE 1 END, updated_at = ? WHERE id = ? AND user_id = ?`,
		now.UTC(), id, userID,
	)
	if err != nil {
		return false, fmt.Errorf("toggling publish: %w", err)
	}
	if err := expectOne(res, ErrProjectNotFound); err != nil {
		return false, err
	}
	var published bool
	if err := r.db.QueryRowContext(ctx, `SELECT is_published FROM projects WHERE id = ?`, id).Scan(&published); err != nil {
		return false, fmt.Errorf("reading publish flag: %w", err)
	}
	return published, nil
}

// Delete removes a project row.  Messages and versions must be removed by
// the caller in the same transaction.
func (r *ProjectRepo) Delete(ctx context.Context, id, userID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM projects WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("deleting project: %w", err)
	}
	return expectOne(res, ErrProjectNotFound)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProject(s rowScanner) (*model.Project, error) {
	var (
		p       model.Project
		code    sql.NullString
		current sql.NullString
	)
	err := s.Scan(&p.ID, &p.UserID, &p.Name, &p.InitialPrompt, &code, &current, &p.IsPublished, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProjectNotFound
		}
		return nil, fmt.Errorf("scanning project: %w", err)
	}
	if code.Valid {
		p.CurrentCode = &code.String
	}
	if current.Valid {
		p.CurrentVersionID = &current.String
	}
	return &p, nil
}

// expectOne turns a zero-row update into notFound.
func expectOne(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("reading rows affected: %w", err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}
