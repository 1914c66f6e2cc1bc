package completion

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	openai "github.com/sashabaranov/go-openai"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		kind       Kind
		status     int
		affordable int
	}{
		{
			name: "affordability",
			err: &openai.APIError{
				HTTPStatusCode: http.StatusPaymentRequired,
				Message:        "This request requires more credits. You requested up to 4096 tokens, but can only afford 500.",
			},
			kind: Affordability, status: 402, affordable: 500,
		},
		{
			name:   "payment required without count",
			err:    &openai.APIError{HTTPStatusCode: http.StatusPaymentRequired, Message: "insufficient credits"},
			kind:   Affordability,
			status: 402,
		},
		{
			name:   "server error",
			err:    &openai.RequestError{HTTPStatusCode: http.StatusBadGateway, Err: errors.New("bad gateway")},
			kind:   Transport,
			status: 502,
		},
		{
			name:   "rate limited",
			err:    &openai.APIError{HTTPStatusCode: http.StatusTooManyRequests, Message: "slow down"},
			kind:   Transport,
			status: 429,
		},
		{
			name:   "gateway timeout",
			err:    &openai.APIError{HTTPStatusCode: http.StatusGatewayTimeout, Message: "timeout"},
			kind:   Timeout,
			status: 504,
		},
		{
			name:   "bad request",
			err:    &openai.APIError{HTTPStatusCode: http.StatusBadRequest, Message: "invalid model"},
			kind:   Unknown,
			status: 400,
		},
		{
			name: "deadline",
			err:  fmt.Errorf("post: %w", context.DeadlineExceeded),
			kind: Timeout,
		},
		{
			name: "plain",
			err:  errors.New("boom"),
			kind: Unknown,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pe := Classify(tt.err)
			if pe.Kind != tt.kind {
				t.Errorf("Kind = %v, want %v", pe.Kind, tt.kind)
			}
			if pe.Status != tt.status {
				t.Errorf("Status = %d, want %d", pe.Status, tt.status)
			}
			if pe.Affordable != tt.affordable {
				t.Errorf("Affordable = %d, want %d", pe.Affordable, tt.affordable)
			}
			if !errors.Is(pe, tt.err) {
				t.Errorf("classified error does not wrap the original")
			}
		})
	}
}

func TestClassifyKeepsClassified(t *testing.T) {
	orig := &ProviderError{Kind: Transport, Status: 503}
	if got := Classify(fmt.Errorf("wrapped: %w", orig)); got != orig {
		t.Fatalf("Classify = %v, want the original ProviderError", got)
	}
	if Classify(nil) != nil {
		t.Fatal("Classify(nil) should be nil")
	}
}
