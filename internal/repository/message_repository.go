package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/iliyamo/aether/internal/model"
)

// MessageRepo appends and lists conversation turns.  There is no update
// method: messages are immutable once written.
type MessageRepo struct {
	db DBTX
}

func NewMessageRepo(db DBTX) *MessageRepo { return &MessageRepo{db: db} }

func (r *MessageRepo) WithTx(tx *sql.Tx) *MessageRepo { return &MessageRepo{db: tx} }

func (r *MessageRepo) Create(ctx context.Context, m *model.Message) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO messages (id, project_id, role, content, created_at) VALUES (?, ?, ?, ?, ?)`,
		m.ID, m.ProjectID, m.Role, m.Content, m.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("creating message: %w", err)
	}
	return nil
}

// ListByProject returns the project's messages in creation order.
func (r *MessageRepo) ListByProject(ctx context.Context, projectID string) ([]model.Message, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, project_id, role, content, created_at
		 FROM messages WHERE project_id = ? ORDER BY created_at ASC`, projectID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing messages: %w", err)
	}
	defer rows.Close()

	results := []model.Message{}
	for rows.Next() {
		var m model.Message
		if err := rows.Scan(&m.ID, &m.ProjectID, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		results = append(results, m)
	}
	return results, rows.Err()
}

// DeleteByProject is only used when a whole project is deleted.
func (r *MessageRepo) DeleteByProject(ctx context.Context, projectID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM messages WHERE project_id = ?`, projectID); err != nil {
		return fmt.Errorf("deleting messages: %w", err)
	}
	return nil
}
