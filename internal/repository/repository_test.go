package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/iliyamo/aether/internal/database"
	"github.com/iliyamo/aether/internal/model"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.OpenSQLite(":memory:")
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := database.Migrate(context.Background(), db, database.SQLite); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	return db
}

func newProject(id, userID string, at time.Time) *model.Project {
	return &model.Project{
		ID:            id,
		UserID:        userID,
		Name:          "landing page",
		InitialPrompt: "a landing page",
		CreatedAt:     at,
		UpdatedAt:     at,
	}
}

func TestProjectRepoOwnerScoping(t *testing.T) {
	ctx := context.Background()
	projects := NewProjectRepo(openTestDB(t))
	now := time.Now().UTC()
	if err := projects.Create(ctx, newProject("p1", "alice", now)); err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := projects.GetForUser(ctx, "p1", "alice")
	if err != nil {
		t.Fatalf("GetForUser: %v", err)
	}
	if got.CurrentCode != nil || got.CurrentVersionID != nil {
		t.Errorf("new project has current code/version: %+v", got)
	}
	if _, err := projects.GetForUser(ctx, "p1", "bob"); !errors.Is(err, ErrProjectNotFound) {
		t.Errorf("GetForUser(other user) err = %v, want ErrProjectNotFound", err)
	}
	if err := projects.SaveCode(ctx, "p1", "bob", "<html/>", now); !errors.Is(err, ErrProjectNotFound) {
		t.Errorf("SaveCode(other user) err = %v, want ErrProjectNotFound", err)
	}
}

func TestProjectRepoTogglePublished(t *testing.T) {
	ctx := context.Background()
	projects := NewProjectRepo(openTestDB(t))
	now := time.Now().UTC()
	if err := projects.Create(ctx, newProject("p1", "alice", now)); err != nil {
		t.Fatalf("Create: %v", err)
	}

	published, err := projects.TogglePublished(ctx, "p1", "alice", now)
	if err != nil || !published {
		t.Fatalf("TogglePublished = %v, %v; want true, nil", published, err)
	}
	if _, err := projects.GetPublished(ctx, "p1"); err != nil {
		t.Fatalf("GetPublished: %v", err)
	}
	list, err := projects.ListPublished(ctx)
	if err != nil || len(list) != 1 {
		t.Fatalf("ListPublished = %d items, %v; want 1, nil", len(list), err)
	}

	published, err = projects.TogglePublished(ctx, "p1", "alice", now)
	if err != nil || published {
		t.Fatalf("TogglePublished = %v, %v; want false, nil", published, err)
	}
	if _, err := projects.GetPublished(ctx, "p1"); !errors.Is(err, ErrProjectNotFound) {
		t.Fatalf("GetPublished after unpublish err = %v, want ErrProjectNotFound", err)
	}
}

func TestVersionRepoScopedToProject(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	projects := NewProjectRepo(db)
	versions := NewVersionRepo(db)
	now := time.Now().UTC()
	for _, id := range []string{"p1", "p2"} {
		if err := projects.Create(ctx, newProject(id, "alice", now)); err != nil {
			t.Fatalf("Create %s: %v", id, err)
		}
	}
	v := &model.Version{ID: "v1", ProjectID: "p1", Code: "<p>one</p>", Model: "m/a", CreatedAt: now}
	if err := versions.Create(ctx, v); err != nil {
		t.Fatalf("Create version: %v", err)
	}

	got, err := versions.Get(ctx, "p1", "v1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Code != v.Code || got.Model != v.Model {
		t.Errorf("Get = %+v, want code %q model %q", got, v.Code, v.Model)
	}
	if _, err := versions.Get(ctx, "p2", "v1"); !errors.Is(err, ErrVersionNotFound) {
		t.Errorf("Get(other project) err = %v, want ErrVersionNotFound", err)
	}
}

func TestMessagesListInCreationOrder(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	projects := NewProjectRepo(db)
	messages := NewMessageRepo(db)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	if err := projects.Create(ctx, newProject("p1", "alice", base)); err != nil {
		t.Fatalf("Create: %v", err)
	}
	// Inserted out of order on purpose; sub-second offsets exercise the
	// stored timestamp format.
	for i, off := range []time.Duration{1500 * time.Millisecond, 0, 250 * time.Millisecond} {
		m := &model.Message{ID: string(rune('a' + i)), ProjectID: "p1", Role: model.RoleUser, Content: "x", CreatedAt: base.Add(off)}
		if err := messages.Create(ctx, m); err != nil {
			t.Fatalf("Create message: %v", err)
		}
	}
	list, err := messages.ListByProject(ctx, "p1")
	if err != nil {
		t.Fatalf("ListByProject: %v", err)
	}
	want := []string{"b", "c", "a"}
	for i, m := range list {
		if m.ID != want[i] {
			t.Fatalf("order = %v at %d, want %v", m.ID, i, want)
		}
	}
}

func TestUserRepoDebitAndRefresh(t *testing.T) {
	ctx := context.Background()
	users := NewUserRepo(openTestDB(t), database.SQLite)
	yesterday := time.Now().UTC().Add(-36 * time.Hour)

	if err := users.Ensure(ctx, "alice", 6, yesterday); err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	// A second Ensure must not reset the balance.
	if err := users.Ensure(ctx, "alice", 100, yesterday); err != nil {
		t.Fatalf("Ensure again: %v", err)
	}
	if err := users.Debit(ctx, "alice", 5); err != nil {
		t.Fatalf("Debit: %v", err)
	}
	if err := users.Debit(ctx, "alice", 5); !errors.Is(err, ErrInsufficientCredits) {
		t.Fatalf("Debit beyond balance err = %v, want ErrInsufficientCredits", err)
	}

	now := time.Now().UTC()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	changed, err := users.RefreshIfStale(ctx, "alice", 20, now, dayStart)
	if err != nil || !changed {
		t.Fatalf("RefreshIfStale = %v, %v; want true, nil", changed, err)
	}
	changed, err = users.RefreshIfStale(ctx, "alice", 20, now, dayStart)
	if err != nil || changed {
		t.Fatalf("second RefreshIfStale = %v, %v; want false, nil", changed, err)
	}
	credits, err := users.Credits(ctx, "alice")
	if err != nil || credits != 20 {
		t.Fatalf("Credits = %d, %v; want 20, nil", credits, err)
	}
	if _, err := users.Credits(ctx, "nobody"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("Credits(unknown) err = %v, want ErrUserNotFound", err)
	}
}
