package service

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/iliyamo/aether/internal/completion"
	"github.com/iliyamo/aether/internal/credit"
	"github.com/iliyamo/aether/internal/database"
	"github.com/iliyamo/aether/internal/ledger"
	"github.com/iliyamo/aether/internal/model"
	"github.com/iliyamo/aether/internal/queue"
	"github.com/iliyamo/aether/internal/repository"
	"github.com/iliyamo/aether/internal/roster"
)

// scriptedEngine answers the enhance phase with a fixed brief and hands the
// generate phase to generate.
type scriptedEngine struct {
	mu          sync.Mutex
	generate    func(ctx context.Context, transcript []completion.Message) (completion.Result, error)
	transcripts [][]completion.Message
}

func (e *scriptedEngine) Complete(ctx context.Context, models []string, transcript []completion.Message, _ completion.Options) (completion.Result, error) {
	if models[0] == "test/enhance" {
		return completion.Result{Content: "a warm bakery landing page", ModelUsed: "test/enhance"}, nil
	}
	e.mu.Lock()
	e.transcripts = append(e.transcripts, transcript)
	gen := e.generate
	e.mu.Unlock()
	return gen(ctx, transcript)
}

func (e *scriptedEngine) setGenerate(fn func(ctx context.Context, transcript []completion.Message) (completion.Result, error)) {
	e.mu.Lock()
	e.generate = fn
	e.mu.Unlock()
}

func returns(code string) func(context.Context, []completion.Message) (completion.Result, error) {
	return func(context.Context, []completion.Message) (completion.Result, error) {
		return completion.Result{Content: code, ModelUsed: "test/generate"}, nil
	}
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []queue.ProjectEvent
}

func (p *recordingPublisher) Publish(_ context.Context, ev queue.ProjectEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) types() []queue.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]queue.EventType, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.Type)
	}
	return out
}

type fixture struct {
	orch    *Orchestrator
	history *ledger.Ledger
	credits *credit.Ledger
	engine  *scriptedEngine
	events  *recordingPublisher
}

func newFixture(t *testing.T, daily int) *fixture {
	t.Helper()
	db, err := database.OpenSQLite(":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	ctx := context.Background()
	if err := database.Migrate(ctx, db, database.SQLite); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	credits := credit.NewLedger(repository.NewUserRepo(db, database.SQLite), daily, zerolog.Nop())
	if err := credits.EnsureAccount(ctx, "u1"); err != nil {
		t.Fatalf("EnsureAccount: %v", err)
	}

	f := &fixture{
		history: ledger.New(db),
		credits: credits,
		engine:  &scriptedEngine{generate: returns("```html\n<html>v1</html>\n```")},
		events:  &recordingPublisher{},
	}
	models := roster.New(roster.Config{Enhance: []string{"test/enhance"}, Generate: []string{"test/generate"}})
	f.orch = NewOrchestrator(f.history, credits, f.engine, models, f.events, Options{
		Cost:          5,
		MaxTokens:     4096,
		EnhanceTokens: 512,
		Timeout:       time.Second,
		HistoryLimit:  10,
	}, zerolog.Nop())
	return f
}

func (f *fixture) wait(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := f.orch.Wait(ctx); err != nil {
		t.Fatalf("Wait: %v", err)
	}
}

func (f *fixture) balance(t *testing.T) int {
	t.Helper()
	n, err := f.credits.Balance(context.Background(), "u1")
	if err != nil {
		t.Fatalf("Balance: %v", err)
	}
	return n
}

// created returns a project whose first generation has finished.
func (f *fixture) created(t *testing.T) *model.Project {
	t.Helper()
	p, err := f.orch.CreateProject(context.Background(), "u1", "  a bakery site  ")
	if err != nil {
		t.Fatalf("CreateProject: %v", err)
	}
	f.wait(t)
	got, err := f.history.Project(context.Background(), p.ID, "u1")
	if err != nil {
		t.Fatalf("Project: %v", err)
	}
	return got
}

func TestCreateProjectGeneratesInBackground(t *testing.T) {
	f := newFixture(t, 20)
	p := f.created(t)

	if p.Name != "a bakery site" || p.InitialPrompt != "a bakery site" {
		t.Fatalf("name=%q prompt=%q", p.Name, p.InitialPrompt)
	}
	if len(p.Versions) != 1 {
		t.Fatalf("versions = %d, want 1", len(p.Versions))
	}
	if p.CurrentCode == nil || *p.CurrentCode != "<html>v1</html>" {
		t.Fatalf("current code = %v, want fence-stripped document", p.CurrentCode)
	}
	if p.Versions[0].Model != "test/generate" {
		t.Fatalf("version model = %q", p.Versions[0].Model)
	}

	var roles []string
	for _, m := range p.Conversation {
		roles = append(roles, m.Role)
	}
	if strings.Join(roles, ",") != "user,assistant,assistant" {
		t.Fatalf("conversation roles = %v", roles)
	}
	if !strings.Contains(p.Conversation[1].Content, "enhanced your prompt") {
		t.Fatalf("second message = %q", p.Conversation[1].Content)
	}
	if got := f.orch.Status(p.ID); got.State != StateIdle {
		t.Fatalf("status = %+v, want idle", got)
	}
	if got := f.balance(t); got != 15 {
		t.Fatalf("balance = %d, want 15", got)
	}

	types := f.events.types()
	if len(types) != 2 || !slices.Contains(types, queue.EventProjectCreated) || !slices.Contains(types, queue.EventVersionCreated) {
		t.Fatalf("events = %v", types)
	}
}

func TestRequestRevisionAppendsVersion(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 20)
	p := f.created(t)

	f.engine.setGenerate(returns("<html>v2</html>"))
	res, err := f.orch.RequestRevision(ctx, "u1", p.ID, "make it blue")
	if err != nil {
		t.Fatalf("RequestRevision: %v", err)
	}
	if res.Version.Code != "<html>v2</html>" || res.Message.Role != model.RoleAssistant {
		t.Fatalf("result = %+v", res)
	}

	got, _ := f.history.Project(ctx, p.ID, "u1")
	if len(got.Versions) != 2 || *got.CurrentVersionID != res.Version.ID {
		t.Fatalf("versions=%d current=%s", len(got.Versions), *got.CurrentVersionID)
	}
	if f.balance(t) != 10 {
		t.Fatalf("balance = %d, want 10", f.balance(t))
	}

	// The generate transcript carries the current document before the
	// instruction.
	tr := f.engine.transcripts[len(f.engine.transcripts)-1]
	if tr[0].Role != completion.RoleSystem {
		t.Fatalf("transcript starts with %q", tr[0].Role)
	}
	if !strings.Contains(tr[len(tr)-2].Content, "<html>v1</html>") {
		t.Fatalf("current code missing from transcript: %q", tr[len(tr)-2].Content)
	}
	if tr[len(tr)-1].Content != "a warm bakery landing page" {
		t.Fatalf("instruction = %q", tr[len(tr)-1].Content)
	}
}

func TestFailedRevisionKeepsPrompt(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 20)
	p := f.created(t)
	before := f.balance(t)

	upstream := &completion.ProviderError{Kind: completion.Transport, Status: http.StatusBadGateway, Message: "bad gateway"}
	f.engine.setGenerate(func(context.Context, []completion.Message) (completion.Result, error) {
		return completion.Result{}, upstream
	})
	_, err := f.orch.RequestRevision(ctx, "u1", p.ID, "add a contact form")
	var pe *completion.ProviderError
	if !errors.As(err, &pe) || pe.Status != http.StatusBadGateway {
		t.Fatalf("err = %v, want the provider error", err)
	}

	got, _ := f.history.Project(ctx, p.ID, "u1")
	if len(got.Versions) != 1 || *got.CurrentVersionID != p.Versions[0].ID {
		t.Fatalf("versions=%d current=%s, want unchanged", len(got.Versions), *got.CurrentVersionID)
	}
	found := false
	for _, m := range got.Conversation {
		if m.Role == model.RoleUser && m.Content == "add a contact form" {
			found = true
		}
	}
	if !found {
		t.Fatal("user message lost after failed revision")
	}
	if f.balance(t) != before {
		t.Fatalf("balance = %d, want refunded %d", f.balance(t), before)
	}
	st := f.orch.Status(p.ID)
	if st.State != StateFailed || st.LastError == "" {
		t.Fatalf("status = %+v, want failed with error", st)
	}

	// A failed project accepts the next revision.
	f.engine.setGenerate(returns("<html>v2</html>"))
	if _, err := f.orch.RequestRevision(ctx, "u1", p.ID, "add a contact form"); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if st := f.orch.Status(p.ID); st.State != StateIdle {
		t.Fatalf("status after retry = %+v", st)
	}
	f.wait(t)
}

func TestConcurrentRevisionRejected(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 20)
	p := f.created(t)

	entered := make(chan struct{})
	release := make(chan struct{})
	f.engine.setGenerate(func(context.Context, []completion.Message) (completion.Result, error) {
		close(entered)
		<-release
		return completion.Result{Content: "<html>v2</html>", ModelUsed: "test/generate"}, nil
	})

	errc := make(chan error, 1)
	go func() {
		_, err := f.orch.RequestRevision(ctx, "u1", p.ID, "first")
		errc <- err
	}()
	<-entered

	if _, err := f.orch.RequestRevision(ctx, "u1", p.ID, "second"); !errors.Is(err, ErrRevisionInProgress) {
		t.Fatalf("second revision = %v, want ErrRevisionInProgress", err)
	}
	if _, err := f.orch.Rollback(ctx, "u1", p.ID, p.Versions[0].ID); !errors.Is(err, ErrRevisionInProgress) {
		t.Fatalf("rollback during generation = %v, want ErrRevisionInProgress", err)
	}
	if got := f.orch.Status(p.ID); got.State != StateGenerating {
		t.Fatalf("status = %+v, want generating", got)
	}

	close(release)
	if err := <-errc; err != nil {
		t.Fatalf("first revision: %v", err)
	}
	f.wait(t)
}

func TestRevisionInsufficientCredits(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 5)
	p := f.created(t)

	_, err := f.orch.RequestRevision(ctx, "u1", p.ID, "more color")
	if !errors.Is(err, repository.ErrInsufficientCredits) {
		t.Fatalf("err = %v, want ErrInsufficientCredits", err)
	}
	got, _ := f.history.Project(ctx, p.ID, "u1")
	if last := got.Conversation[len(got.Conversation)-1]; last.Content != "more color" {
		t.Fatalf("last message = %q, want the kept prompt", last.Content)
	}
	if len(got.Versions) != 1 {
		t.Fatalf("versions = %d, want 1", len(got.Versions))
	}
	if f.balance(t) != 0 {
		t.Fatalf("balance = %d, want 0", f.balance(t))
	}
}

func TestCreateProjectValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 0)

	if _, err := f.orch.CreateProject(ctx, "u1", "   "); !errors.Is(err, ErrEmptyPrompt) {
		t.Fatalf("empty prompt = %v, want ErrEmptyPrompt", err)
	}
	if _, err := f.orch.CreateProject(ctx, "u1", "a site"); !errors.Is(err, repository.ErrInsufficientCredits) {
		t.Fatalf("no credits = %v, want ErrInsufficientCredits", err)
	}
	projects, _ := f.history.List(ctx, "u1")
	if len(projects) != 0 {
		t.Fatalf("projects = %d, want none", len(projects))
	}
}

func TestCreateProjectFailureRefunds(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 20)
	f.engine.setGenerate(func(context.Context, []completion.Message) (completion.Result, error) {
		return completion.Result{}, completion.ErrNoUsableResponse
	})

	p, err := f.orch.CreateProject(ctx, "u1", "a bakery site")
	if err != nil {
		t.Fatalf("CreateProject: %v", err)
	}
	f.wait(t)

	if st := f.orch.Status(p.ID); st.State != StateFailed {
		t.Fatalf("status = %+v, want failed", st)
	}
	if f.balance(t) != 20 {
		t.Fatalf("balance = %d, want 20 after refund", f.balance(t))
	}
	got, _ := f.history.Project(ctx, p.ID, "u1")
	if got.CurrentVersionID != nil || len(got.Versions) != 0 {
		t.Fatalf("project has a version after failed creation")
	}
}

func TestRollbackAndDelete(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 20)
	p := f.created(t)
	f.engine.setGenerate(returns("<html>v2</html>"))
	if _, err := f.orch.RequestRevision(ctx, "u1", p.ID, "v2 please"); err != nil {
		t.Fatalf("RequestRevision: %v", err)
	}

	got, err := f.orch.Rollback(ctx, "u1", p.ID, p.Versions[0].ID)
	if err != nil {
		t.Fatalf("Rollback: %v", err)
	}
	if *got.CurrentCode != "<html>v1</html>" || len(got.Versions) != 2 {
		t.Fatalf("after rollback code=%q versions=%d", *got.CurrentCode, len(got.Versions))
	}
	if _, err := f.orch.Rollback(ctx, "u1", p.ID, "nope"); !errors.Is(err, repository.ErrVersionNotFound) {
		t.Fatalf("unknown rollback = %v", err)
	}
	if _, err := f.orch.Rollback(ctx, "intruder", p.ID, p.Versions[0].ID); !errors.Is(err, repository.ErrProjectNotFound) {
		t.Fatalf("foreign rollback = %v", err)
	}

	if err := f.orch.Delete(ctx, "u1", p.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	f.wait(t)
	types := f.events.types()
	if !slices.Contains(types, queue.EventProjectDeleted) || !slices.Contains(types, queue.EventRolledBack) {
		t.Fatalf("events = %v, want rollback and deletion events", types)
	}
}

func TestRevisionOutlivesCaller(t *testing.T) {
	f := newFixture(t, 20)
	p := f.created(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.engine.setGenerate(func(genCtx context.Context, _ []completion.Message) (completion.Result, error) {
		cancel()
		if err := genCtx.Err(); err != nil {
			return completion.Result{}, err
		}
		return completion.Result{Content: "<html>v2</html>", ModelUsed: "test/generate"}, nil
	})

	if _, err := f.orch.RequestRevision(ctx, "u1", p.ID, "make it blue"); err != nil && !errors.Is(err, context.Canceled) {
		t.Fatalf("RequestRevision = %v, want success or context.Canceled", err)
	}
	f.wait(t)

	got, err := f.history.Project(context.Background(), p.ID, "u1")
	if err != nil {
		t.Fatalf("Project: %v", err)
	}
	if len(got.Versions) != 2 || *got.CurrentCode != "<html>v2</html>" {
		t.Fatalf("versions=%d code=%q, want the revision recorded", len(got.Versions), *got.CurrentCode)
	}
	if st := f.orch.Status(p.ID); st.State != StateIdle {
		t.Fatalf("status = %+v, want idle", st)
	}
	if n := f.balance(t); n != 10 {
		t.Fatalf("balance = %d, want 10 with both generations charged", n)
	}
}

func TestHoldBlocksRevisionAndRestoresStatus(t *testing.T) {
	f := newFixture(t, 20)
	p := f.created(t)
	f.orch.finish(p.ID, errors.New("provider down"))

	release, err := f.orch.hold(p.ID)
	if err != nil {
		t.Fatalf("hold: %v", err)
	}
	if _, err := f.orch.RequestRevision(context.Background(), "u1", p.ID, "now"); !errors.Is(err, ErrRevisionInProgress) {
		t.Fatalf("revision while held = %v, want ErrRevisionInProgress", err)
	}
	if _, err := f.orch.hold(p.ID); !errors.Is(err, ErrRevisionInProgress) {
		t.Fatalf("second hold = %v, want ErrRevisionInProgress", err)
	}
	release()

	if st := f.orch.Status(p.ID); st.State != StateFailed || st.LastError != "provider down" {
		t.Fatalf("status after release = %+v, want the earlier failure", st)
	}
}

func TestRevisionBuildsOnRolledBackCode(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 20)
	p := f.created(t)
	f.engine.setGenerate(returns("<html>v2</html>"))
	if _, err := f.orch.RequestRevision(ctx, "u1", p.ID, "v2 please"); err != nil {
		t.Fatalf("RequestRevision: %v", err)
	}
	if _, err := f.orch.Rollback(ctx, "u1", p.ID, p.Versions[0].ID); err != nil {
		t.Fatalf("Rollback: %v", err)
	}

	f.engine.setGenerate(returns("<html>v3</html>"))
	if _, err := f.orch.RequestRevision(ctx, "u1", p.ID, "v3 please"); err != nil {
		t.Fatalf("RequestRevision: %v", err)
	}
	f.engine.mu.Lock()
	last := f.engine.transcripts[len(f.engine.transcripts)-1]
	f.engine.mu.Unlock()
	var codeTurn string
	for _, m := range last {
		if strings.HasPrefix(m.Content, "Current website code:") {
			codeTurn = m.Content
		}
	}
	if !strings.Contains(codeTurn, "<html>v1</html>") {
		t.Fatalf("revision context = %q, want the rolled-back code", codeTurn)
	}
	f.wait(t)
}
