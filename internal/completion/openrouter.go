package completion

import (
	"context"
	"net/http"

	openai "github.com/sashabaranov/go-openai"
)

// OpenRouter is a Provider for any OpenAI-compatible chat completions
// endpoint.  The default base URL points at OpenRouter.
type OpenRouter struct {
	client *openai.Client
}

const DefaultBaseURL = "https://openrouter.ai/api/v1"

// NewOpenRouter builds the adapter.  httpClient may be nil.
func NewOpenRouter(apiKey, baseURL string, httpClient *http.Client) *OpenRouter {
	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = DefaultBaseURL
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if httpClient != nil {
		cfg.HTTPClient = httpClient
	}
	return &OpenRouter{client: openai.NewClientWithConfig(cfg)}
}

// Complete sends one chat completion.  A response without choices counts as
// empty content.
func (o *OpenRouter) Complete(ctx context.Context, req Request) (string, error) {
	msgs := make([]openai.ChatCompletionMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     req.Model,
		Messages:  msgs,
		MaxTokens: req.MaxTokens,
	})
	if err != nil {
		return "", Classify(err)
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Message.Content, nil
}
