package completion

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"regexp"
	"strconv"

	openai "github.com/sashabaranov/go-openai"
)

// Kind is the class a provider failure falls into.
type Kind int

const (
	Unknown Kind = iota
	Transport
	Timeout
	Affordability
)

func (k Kind) String() string {
	switch k {
	case Transport:
		return "transport"
	case Timeout:
		return "timeout"
	case Affordability:
		return "affordability"
	default:
		return "unknown"
	}
}

// ErrNoUsableResponse is returned when every candidate model answered with
// empty content and no hard error remained.
var ErrNoUsableResponse = errors.New("completion: no model returned usable content")

// ProviderError is a classified failure of a single provider call.
type ProviderError struct {
	Kind    Kind
	Status  int    // HTTP status, 0 when the request never got a response
	Message string // provider supplied message
	// Affordable is the output token count the account can still pay for,
	// parsed from "can only afford N".  Zero when absent.
	Affordable int
	Err        error
}

func (e *ProviderError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("provider %s error (status %d): %s", e.Kind, e.Status, e.Message)
	}
	return fmt.Sprintf("provider %s error: %s", e.Kind, e.Message)
}

func (e *ProviderError) Unwrap() error { return e.Err }

var affordPattern = regexp.MustCompile(`(?i)can only afford\s+(\d+)`)

// Classify turns any error from a provider call into a *ProviderError.
// Errors that are already classified are returned as they are.
func Classify(err error) *ProviderError {
	if err == nil {
		return nil
	}
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		msg := http.StatusText(reqErr.HTTPStatusCode)
		if reqErr.Err != nil {
			msg = reqErr.Err.Error()
		}
		if len(reqErr.Body) > 0 {
			msg = string(reqErr.Body)
		}
		return fromStatus(reqErr.HTTPStatusCode, msg, err)
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return fromStatus(apiErr.HTTPStatusCode, apiErr.Message, err)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return &ProviderError{Kind: Timeout, Message: err.Error(), Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		kind := Transport
		if netErr.Timeout() {
			kind = Timeout
		}
		return &ProviderError{Kind: kind, Message: err.Error(), Err: err}
	}
	return &ProviderError{Kind: Unknown, Message: err.Error(), Err: err}
}

func fromStatus(status int, msg string, err error) *ProviderError {
	pe := &ProviderError{Kind: Unknown, Status: status, Message: msg, Err: err}
	switch {
	case status == http.StatusPaymentRequired:
		pe.Kind = Affordability
		if m := affordPattern.FindStringSubmatch(msg); m != nil {
			if n, convErr := strconv.Atoi(m[1]); convErr == nil {
				pe.Affordable = n
			}
		}
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		pe.Kind = Timeout
	case status == http.StatusTooManyRequests || status >= 500:
		pe.Kind = Transport
	}
	return pe
}
