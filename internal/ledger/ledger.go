// Package ledger records a project's history: conversation messages and
// generated versions are appended, never edited, and the project's current
// pointer moves between versions.
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/aether/internal/model"
	"github.com/iliyamo/aether/internal/repository"
)

// Ledger wraps the project, message and version repositories.  Writes that
// touch more than one row run in a single transaction.
type Ledger struct {
	db       *sql.DB
	projects *repository.ProjectRepo
	messages *repository.MessageRepo
	versions *repository.VersionRepo

	clockMu sync.Mutex
	last    time.Time
	now     func() time.Time
}

func New(db *sql.DB) *Ledger {
	return &Ledger{
		db:       db,
		projects: repository.NewProjectRepo(db),
		messages: repository.NewMessageRepo(db),
		versions: repository.NewVersionRepo(db),
		now:      time.Now,
	}
}

// stamp returns a UTC time at microsecond precision that is strictly after
// every earlier stamp from this ledger, so the feed order matches append
// order.
func (l *Ledger) stamp() time.Time {
	l.clockMu.Lock()
	defer l.clockMu.Unlock()
	t := l.now().UTC().Truncate(time.Microsecond)
	if !t.After(l.last) {
		t = l.last.Add(time.Microsecond)
	}
	l.last = t
	return t
}

func (l *Ledger) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// CreateProject inserts a project together with its opening user message.
func (l *Ledger) CreateProject(ctx context.Context, userID, name, prompt string) (*model.Project, *model.Message, error) {
	at := l.stamp()
	p := &model.Project{
		ID:            uuid.NewString(),
		UserID:        userID,
		Name:          name,
		InitialPrompt: prompt,
		CreatedAt:     at,
		UpdatedAt:     at,
	}
	m := &model.Message{
		ID:        uuid.NewString(),
		ProjectID: p.ID,
		Role:      model.RoleUser,
		Content:   prompt,
		CreatedAt: l.stamp(),
	}
	err := l.inTx(ctx, func(tx *sql.Tx) error {
		if err := l.projects.WithTx(tx).Create(ctx, p); err != nil {
			return err
		}
		return l.messages.WithTx(tx).Create(ctx, m)
	})
	if err != nil {
		return nil, nil, err
	}
	p.Conversation = []model.Message{*m}
	return p, m, nil
}

// AppendMessage adds one conversation turn.
func (l *Ledger) AppendMessage(ctx context.Context, projectID, role, content string) (*model.Message, error) {
	if role != model.RoleUser && role != model.RoleAssistant {
		return nil, fmt.Errorf("invalid message role %q", role)
	}
	m := &model.Message{
		ID:        uuid.NewString(),
		ProjectID: projectID,
		Role:      role,
		Content:   content,
		CreatedAt: l.stamp(),
	}
	if err := l.messages.Create(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

// AppendVersion stores a new version, makes it current and, when note is
// not empty, appends it as an assistant message after the version.
func (l *Ledger) AppendVersion(ctx context.Context, projectID, code, modelName, note string) (*model.Version, *model.Message, error) {
	v := &model.Version{
		ID:        uuid.NewString(),
		ProjectID: projectID,
		Code:      code,
		Model:     modelName,
		CreatedAt: l.stamp(),
	}
	var m *model.Message
	if note != "" {
		m = &model.Message{
			ID:        uuid.NewString(),
			ProjectID: projectID,
			Role:      model.RoleAssistant,
			Content:   note,
			CreatedAt: l.stamp(),
		}
	}
	err := l.inTx(ctx, func(tx *sql.Tx) error {
		if err := l.versions.WithTx(tx).Create(ctx, v); err != nil {
			return err
		}
		if err := l.projects.WithTx(tx).SetCurrent(ctx, projectID, v.ID, v.Code, v.CreatedAt); err != nil {
			return err
		}
		if m != nil {
			return l.messages.WithTx(tx).Create(ctx, m)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return v, m, nil
}

// Rollback makes versionID the project's current version.  It returns
// repository.ErrVersionNotFound, changing nothing, when the version does
// not belong to the project.  No message or version is created.
func (l *Ledger) Rollback(ctx context.Context, projectID, versionID string) (*model.Version, error) {
	var v *model.Version
	err := l.inTx(ctx, func(tx *sql.Tx) error {
		var err error
		v, err = l.versions.WithTx(tx).Get(ctx, projectID, versionID)
		if err != nil {
			return err
		}
		return l.projects.WithTx(tx).SetCurrent(ctx, projectID, v.ID, v.Code, l.stamp())
	})
	if err != nil {
		return nil, err
	}
	return v, nil
}

// Project loads a project owned by userID with its conversation and
// versions.
func (l *Ledger) Project(ctx context.Context, projectID, userID string) (*model.Project, error) {
	p, err := l.projects.GetForUser(ctx, projectID, userID)
	if err != nil {
		return nil, err
	}
	if err := l.loadHistory(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// Published loads a project only when it is published.
func (l *Ledger) Published(ctx context.Context, projectID string) (*model.Project, error) {
	return l.projects.GetPublished(ctx, projectID)
}

func (l *Ledger) loadHistory(ctx context.Context, p *model.Project) error {
	msgs, err := l.messages.ListByProject(ctx, p.ID)
	if err != nil {
		return err
	}
	versions, err := l.versions.ListByProject(ctx, p.ID)
	if err != nil {
		return err
	}
	p.Conversation = msgs
	p.Versions = versions
	return nil
}

// CurrentVersion returns the version the project's pointer names, or nil
// before the first generation.
func (l *Ledger) CurrentVersion(ctx context.Context, projectID string) (*model.Version, error) {
	p, err := l.projects.GetByID(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if p.CurrentVersionID == nil {
		return nil, nil
	}
	v, err := l.versions.Get(ctx, projectID, *p.CurrentVersionID)
	if errors.Is(err, repository.ErrVersionNotFound) {
		return nil, fmt.Errorf("project %s points at missing version %s", projectID, *p.CurrentVersionID)
	}
	return v, err
}

// RecentMessages returns at most limit of the newest messages in creation
// order.  A non-positive limit returns all of them.
func (l *Ledger) RecentMessages(ctx context.Context, projectID string, limit int) ([]model.Message, error) {
	msgs, err := l.messages.ListByProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	return msgs, nil
}

// Feed returns the project's messages and versions merged by time.
func (l *Ledger) Feed(ctx context.Context, projectID string) ([]model.FeedItem, error) {
	msgs, err := l.messages.ListByProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	versions, err := l.versions.ListByProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	return model.MergeFeed(msgs, versions), nil
}

// SaveCode stores hand-edited code as the live document.  The version
// history and pointer are left alone.
func (l *Ledger) SaveCode(ctx context.Context, projectID, userID, code string) error {
	return l.projects.SaveCode(ctx, projectID, userID, code, l.stamp())
}

// TogglePublished flips the project's public visibility.
func (l *Ledger) TogglePublished(ctx context.Context, projectID, userID string) (bool, error) {
	return l.projects.TogglePublished(ctx, projectID, userID, l.stamp())
}

// Delete removes the project with all of its messages and versions.
func (l *Ledger) Delete(ctx context.Context, projectID, userID string) error {
	return l.inTx(ctx, func(tx *sql.Tx) error {
		projects := l.projects.WithTx(tx)
		if _, err := projects.GetForUser(ctx, projectID, userID); err != nil {
			return err
		}
		if err := l.messages.WithTx(tx).DeleteByProject(ctx, projectID); err != nil {
			return err
		}
		if err := l.versions.WithTx(tx).DeleteByProject(ctx, projectID); err != nil {
			return err
		}
		return projects.Delete(ctx, projectID, userID)
	})
}

// List returns the user's projects without history, newest first.
func (l *Ledger) List(ctx context.Context, userID string) ([]model.Project, error) {
	return l.projects.ListByUser(ctx, userID)
}

// ListPublished returns every published project without history.
func (l *Ledger) ListPublished(ctx context.Context) ([]model.Project, error) {
	return l.projects.ListPublished(ctx)
}
