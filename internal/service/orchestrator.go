// Package service runs project generations: it charges credits, drives the
// completion engine through the enhance and generate phases, and records
// the outcome in the project ledger.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/iliyamo/aether/internal/completion"
	"github.com/iliyamo/aether/internal/ledger"
	"github.com/iliyamo/aether/internal/metrics"
	"github.com/iliyamo/aether/internal/model"
	"github.com/iliyamo/aether/internal/queue"
	"github.com/iliyamo/aether/internal/roster"
)

// State is a project's generation state.  A failed project accepts new
// revisions.
type State string

const (
	StateIdle       State = "idle"
	StateGenerating State = "generating"
	StateFailed     State = "failed"
)

// Status is what clients poll while a generation runs.
type Status struct {
	State     State  `json:"status"`
	LastError string `json:"last_error,omitempty"`
}

// Completer is satisfied by *completion.Engine.
type Completer interface {
	Complete(ctx context.Context, models []string, transcript []completion.Message, opts completion.Options) (completion.Result, error)
}

// ModelRoster is satisfied by *roster.Roster.
type ModelRoster interface {
	Resolve(kind roster.Kind) []string
}

// Credits is satisfied by *credit.Ledger.
type Credits interface {
	Charge(ctx context.Context, userID string, cost int) error
	Refund(ctx context.Context, userID string, cost int) error
}

// Options holds the generation settings taken from config.
type Options struct {
	Cost          int           // credits per generation
	MaxTokens     int           // ceiling for the generate phase
	EnhanceTokens int           // ceiling for the enhance phase
	Timeout       time.Duration // per provider attempt
	HistoryLimit  int           // recent messages included in the transcript
}

type Orchestrator struct {
	history *ledger.Ledger
	credits Credits
	engine  Completer
	models  ModelRoster
	events  queue.Publisher
	log     zerolog.Logger
	opts    Options

	mu     sync.Mutex
	states map[string]Status

	// wg tracks background generations and event publishes.
	wg sync.WaitGroup
}

func NewOrchestrator(history *ledger.Ledger, credits Credits, engine Completer, models ModelRoster, events queue.Publisher, opts Options, log zerolog.Logger) *Orchestrator {
	if events == nil {
		events = queue.NewNoopPublisher()
	}
	return &Orchestrator{
		history: history,
		credits: credits,
		engine:  engine,
		models:  models,
		events:  events,
		log:     log.With().Str("component", "orchestrator").Logger(),
		opts:    opts,
		states:  make(map[string]Status),
	}
}

// Status reports the generation state of a project.  Projects never seen by
// this process are idle.
func (o *Orchestrator) Status(projectID string) Status {
	o.mu.Lock()
	defer o.mu.Unlock()
	if s, ok := o.states[projectID]; ok {
		return s
	}
	return Status{State: StateIdle}
}

// begin moves the project into generating, or fails when it already is.
func (o *Orchestrator) begin(projectID string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.states[projectID].State == StateGenerating {
		return ErrRevisionInProgress
	}
	o.states[projectID] = Status{State: StateGenerating}
	return nil
}

// hold claims the project like begin for a short mutation.  release puts
// back whatever status the project had before.
func (o *Orchestrator) hold(projectID string) (release func(), err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	prev, seen := o.states[projectID]
	if prev.State == StateGenerating {
		return nil, ErrRevisionInProgress
	}
	o.states[projectID] = Status{State: StateGenerating}
	return func() {
		o.mu.Lock()
		defer o.mu.Unlock()
		if seen {
			o.states[projectID] = prev
		} else {
			delete(o.states, projectID)
		}
	}, nil
}

func (o *Orchestrator) finish(projectID string, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if err == nil {
		delete(o.states, projectID)
		return
	}
	o.states[projectID] = Status{State: StateFailed, LastError: err.Error()}
}

// forget drops the state of a deleted project.
func (o *Orchestrator) forget(projectID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.states, projectID)
}

// job is one generation run.
type job struct {
	userID    string
	projectID string
	prompt    string
	code      string // current code, empty on creation
	creation  bool
}

// CreateProject charges the user, stores the project with its opening
// prompt and starts the first generation in the background.  The returned
// project is in the generating state; clients poll until it has code.
func (o *Orchestrator) CreateProject(ctx context.Context, userID, prompt string) (*model.Project, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, ErrEmptyPrompt
	}
	if err := o.credits.Charge(ctx, userID, o.opts.Cost); err != nil {
		return nil, err
	}

	p, _, err := o.history.CreateProject(ctx, userID, projectName(prompt), prompt)
	if err != nil {
		o.refund(userID)
		return nil, err
	}
	_ = o.begin(p.ID)
	o.publish(queue.ProjectEvent{Type: queue.EventProjectCreated, ProjectID: p.ID, UserID: userID})

	j := job{userID: userID, projectID: p.ID, prompt: prompt, creation: true}
	bg := context.WithoutCancel(ctx)
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		_, _ = o.run(bg, j)
	}()
	return p, nil
}

// RevisionResult is the outcome of a successful revision.
type RevisionResult struct {
	Message *model.Message `json:"message"`
	Version *model.Version `json:"version"`
}

// RequestRevision appends the user's message, charges for the generation
// and runs it.  The run is detached from ctx: a caller that goes away stops
// waiting with ctx.Err() but the generation still finishes and is recorded,
// so a polling client sees the new version.  On failure the message stays
// in the conversation, versions and the current pointer are unchanged and
// the charge is refunded.
func (o *Orchestrator) RequestRevision(ctx context.Context, userID, projectID, message string) (*RevisionResult, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, ErrEmptyPrompt
	}
	if _, err := o.history.Project(ctx, projectID, userID); err != nil {
		return nil, err
	}
	if err := o.begin(projectID); err != nil {
		return nil, err
	}

	// Read the code only once the project is claimed so a rollback that
	// landed before begin is what the revision builds on.
	p, err := o.history.Project(ctx, projectID, userID)
	if err != nil {
		o.finish(projectID, err)
		return nil, err
	}
	if _, err := o.history.AppendMessage(ctx, projectID, model.RoleUser, message); err != nil {
		o.finish(projectID, err)
		return nil, err
	}
	if err := o.credits.Charge(ctx, userID, o.opts.Cost); err != nil {
		o.finish(projectID, err)
		return nil, err
	}

	j := job{userID: userID, projectID: projectID, prompt: message}
	if p.CurrentCode != nil {
		j.code = *p.CurrentCode
	}

	type outcome struct {
		res *RevisionResult
		err error
	}
	done := make(chan outcome, 1)
	bg := context.WithoutCancel(ctx)
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		res, err := o.run(bg, j)
		done <- outcome{res, err}
	}()

	select {
	case out := <-done:
		return out.res, out.err
	case <-ctx.Done():
		o.log.Info().Str("project_id", projectID).Msg("caller left, revision continues in background")
		return nil, ctx.Err()
	}
}

// run executes both phases for a project that is already generating and
// settles its state.  The charge for the job must already be taken.
func (o *Orchestrator) run(ctx context.Context, j job) (res *RevisionResult, err error) {
	log := o.log.With().Str("project_id", j.projectID).Str("user_id", j.userID).Bool("creation", j.creation).Logger()
	start := time.Now()

	defer func() {
		o.finish(j.projectID, err)
		if err != nil {
			metrics.RecordRevision("failure")
			log.Error().Err(err).Dur("elapsed", time.Since(start)).Msg("generation failed")
			o.refund(j.userID)
			o.publish(queue.ProjectEvent{Type: queue.EventRevisionFailed, ProjectID: j.projectID, UserID: j.userID, Error: err.Error()})
			return
		}
		metrics.RecordRevision("success")
		log.Info().Str("version_id", res.Version.ID).Str("model", res.Version.Model).Dur("elapsed", time.Since(start)).Msg("generation succeeded")
		o.publish(queue.ProjectEvent{Type: queue.EventVersionCreated, ProjectID: j.projectID, UserID: j.userID, VersionID: res.Version.ID, Model: res.Version.Model})
	}()

	enhanced, err := o.engine.Complete(ctx, o.models.Resolve(roster.Enhance), enhanceTranscript(j.prompt), completion.Options{
		MaxTokens: o.opts.EnhanceTokens,
		Timeout:   o.opts.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("enhance prompt: %w", err)
	}
	instruction := strings.TrimSpace(enhanced.Content)
	if _, err := o.history.AppendMessage(ctx, j.projectID, model.RoleAssistant, enhancedNote(instruction)); err != nil {
		return nil, err
	}

	recent, err := o.history.RecentMessages(ctx, j.projectID, o.opts.HistoryLimit)
	if err != nil {
		return nil, err
	}
	generated, err := o.engine.Complete(ctx, o.models.Resolve(roster.Generate), generateTranscript(recent, j.code, instruction), completion.Options{
		MaxTokens: o.opts.MaxTokens,
		Timeout:   o.opts.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("generate code: %w", err)
	}
	code := stripCodeFences(generated.Content)
	if code == "" {
		return nil, ErrEmptyCode
	}

	note := revisedNote
	if j.creation {
		note = createdNote
	}
	v, m, err := o.history.AppendVersion(ctx, j.projectID, code, generated.ModelUsed, note)
	if err != nil {
		return nil, err
	}
	return &RevisionResult{Message: m, Version: v}, nil
}

func enhanceTranscript(prompt string) []completion.Message {
	return []completion.Message{
		{Role: completion.RoleSystem, Content: enhanceSystemPrompt},
		{Role: completion.RoleUser, Content: prompt},
	}
}

// generateTranscript is the system prompt, the recent conversation, the
// current code when there is one and finally the instruction.
func generateTranscript(recent []model.Message, code, instruction string) []completion.Message {
	system := generateSystemPrompt
	if code != "" {
		system = reviseSystemPrompt
	}
	out := make([]completion.Message, 0, len(recent)+3)
	out = append(out, completion.Message{Role: completion.RoleSystem, Content: system})
	for _, m := range recent {
		out = append(out, completion.Message{Role: m.Role, Content: m.Content})
	}
	if code != "" {
		out = append(out, completion.Message{Role: completion.RoleUser, Content: "Current website code:\n" + code})
	}
	out = append(out, completion.Message{Role: completion.RoleUser, Content: instruction})
	return out
}

// Rollback points the project back at versionID.  It holds the generating
// guard while it runs, so it cannot interleave with a revision.
func (o *Orchestrator) Rollback(ctx context.Context, userID, projectID, versionID string) (*model.Project, error) {
	if _, err := o.history.Project(ctx, projectID, userID); err != nil {
		return nil, err
	}
	release, err := o.hold(projectID)
	if err != nil {
		return nil, err
	}
	v, err := o.history.Rollback(ctx, projectID, versionID)
	release()
	if err != nil {
		return nil, err
	}
	o.publish(queue.ProjectEvent{Type: queue.EventRolledBack, ProjectID: projectID, UserID: userID, VersionID: v.ID, Model: v.Model})
	return o.history.Project(ctx, projectID, userID)
}

// Delete removes a project with its history.  A generating project cannot
// be deleted.
func (o *Orchestrator) Delete(ctx context.Context, userID, projectID string) error {
	release, err := o.hold(projectID)
	if err != nil {
		return err
	}
	if err := o.history.Delete(ctx, projectID, userID); err != nil {
		release()
		return err
	}
	o.forget(projectID)
	o.publish(queue.ProjectEvent{Type: queue.EventProjectDeleted, ProjectID: projectID, UserID: userID})
	return nil
}

// refund returns the job's charge, detached from the request context.
func (o *Orchestrator) refund(userID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := o.credits.Refund(ctx, userID, o.opts.Cost); err != nil {
		o.log.Error().Err(err).Str("user_id", userID).Int("credits", o.opts.Cost).Msg("refund failed")
	}
}

// Wait blocks until background generations and pending event publishes
// finish or ctx is done.
func (o *Orchestrator) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return errors.Join(errors.New("background generations still running"), ctx.Err())
	}
}
