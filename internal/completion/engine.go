// Package completion talks to the remote language model.  The Engine walks
// an ordered list of candidate models one at a time and returns the first
// non-empty answer.
package completion

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/iliyamo/aether/internal/metrics"
)

// Transcript roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one entry of the transcript sent to the provider.
type Message struct {
	Role    string
	Content string
}

// Request is a single provider call.  MaxTokens of zero leaves the ceiling
// to the provider.
type Request struct {
	Model     string
	Messages  []Message
	MaxTokens int
}

// Provider performs one chat completion.  Implementations should return
// errors already passed through Classify.
type Provider interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// Options tunes a Complete call.  Zero values disable the token ceiling and
// the per-attempt deadline.
type Options struct {
	MaxTokens int
	Timeout   time.Duration
}

// Result is the first usable answer and the model that produced it.
type Result struct {
	Content   string
	ModelUsed string
}

const (
	minRetryTokens = 256
	retryMargin    = 32
)

type Engine struct {
	provider Provider
	log      zerolog.Logger
}

func NewEngine(p Provider, log zerolog.Logger) *Engine {
	return &Engine{provider: p, log: log.With().Str("component", "completion").Logger()}
}

// Complete tries models in order until one returns non-empty content.
//
// Empty content clears any earlier error and moves on.  An affordability
// failure that reports a count below opts.MaxTokens is retried once on the
// same model with the ceiling lowered to max(256, N-32).  On exhaustion
// the last hard error is returned unchanged, or ErrNoUsableResponse when
// the remaining failures were all empty answers.  A cancelled ctx stops
// the walk and its error is returned.
func (e *Engine) Complete(ctx context.Context, models []string, transcript []Message, opts Options) (Result, error) {
	var lastErr error
	for _, model := range models {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}

		content, err := e.attempt(ctx, model, transcript, opts.MaxTokens, opts.Timeout)
		if err == nil {
			if content != "" {
				return Result{Content: content, ModelUsed: model}, nil
			}
			lastErr = nil
			continue
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Result{}, ctxErr
		}

		pe := Classify(err)
		if budget, ok := retryBudget(pe, opts.MaxTokens); ok {
			metrics.RecordAffordabilityRetry(model)
			e.log.Info().
				Str("model", model).
				Int("affordable", pe.Affordable).
				Int("max_tokens", budget).
				Msg("retrying with reduced token ceiling")

			content, err = e.attempt(ctx, model, transcript, budget, opts.Timeout)
			if err == nil {
				if content != "" {
					return Result{Content: content, ModelUsed: model}, nil
				}
				lastErr = nil
				continue
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				return Result{}, ctxErr
			}
			pe = Classify(err)
		}
		lastErr = pe
	}

	if lastErr != nil {
		return Result{}, lastErr
	}
	return Result{}, ErrNoUsableResponse
}

func (e *Engine) attempt(ctx context.Context, model string, transcript []Message, maxTokens int, timeout time.Duration) (string, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()
	content, err := e.provider.Complete(ctx, Request{Model: model, Messages: transcript, MaxTokens: maxTokens})
	elapsed := time.Since(start)
	if err != nil {
		pe := Classify(err)
		metrics.RecordAttempt(model, metrics.OutcomeError)
		e.log.Warn().
			Err(err).
			Str("model", model).
			Str("kind", pe.Kind.String()).
			Int("status", pe.Status).
			Dur("elapsed", elapsed).
			Msg("completion attempt failed")
		return "", pe
	}

	content = strings.TrimSpace(content)
	if content == "" {
		metrics.RecordAttempt(model, metrics.OutcomeEmpty)
		e.log.Warn().Str("model", model).Dur("elapsed", elapsed).Msg("completion returned empty content")
		return "", nil
	}
	metrics.RecordAttempt(model, metrics.OutcomeSuccess)
	e.log.Debug().Str("model", model).Dur("elapsed", elapsed).Int("chars", len(content)).Msg("completion succeeded")
	return content, nil
}

// retryBudget reports the reduced ceiling for an affordability failure, or
// false when no retry applies.
func retryBudget(pe *ProviderError, maxTokens int) (int, bool) {
	if pe == nil || pe.Kind != Affordability || maxTokens <= 0 {
		return 0, false
	}
	if pe.Affordable <= 0 || pe.Affordable >= maxTokens {
		return 0, false
	}
	return max(minRetryTokens, pe.Affordable-retryMargin), true
}
