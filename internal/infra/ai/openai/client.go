package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"

	domain "github.com/userlens/sessionlens/internal/domain/analysis"
	"github.com/userlens/sessionlens/internal/domain/prompt"
)

const maxTokens = 4096

// rough accounting only; authoritative cost tracking lives in the router
const centsPerThousandTokens = 1

type Client struct {
	*openai.Client
	Model string
}

func NewClient(apiKey, model string) *Client {
	return &Client{Client: openai.NewClient(apiKey), Model: model}
}

// Invoke sends the rendered prompt and returns the raw JSON payload.
// Transport failures come back wrapped in ErrProviderUnreachable so the
// pipeline can switch to its fallback; provider-reported failures do not.
func (c *Client) Invoke(ctx context.Context, promptText string, pol domain.Policy) (*domain.Invocation, error) {
	model := c.Model
	if model == "" {
		model = "gpt-4o-mini"
	}
	req := openai.ChatCompletionRequest{
		Model: model,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: prompt.SystemPrompt()},
			{Role: openai.ChatMessageRoleUser, Content: promptText},
		},
	}
	// For reasoning models (o1/o3/o4/gpt-5*) use MaxCompletionTokens instead of MaxTokens
	if strings.HasPrefix(model, "o1") || strings.HasPrefix(model, "o3") || strings.HasPrefix(model, "o4") || strings.HasPrefix(model, "gpt-5") {
		req.MaxCompletionTokens = maxTokens
	} else {
		req.MaxTokens = maxTokens
	}

	resp, err := c.CreateChatCompletion(ctx, req)
	if err != nil {
		var apiErr *openai.APIError
		var reqErr *openai.RequestError
		if errors.As(err, &apiErr) || errors.As(err, &reqErr) {
			// the provider answered and reported failure; terminal upstream
			return nil, fmt.Errorf("provider error: %w", err)
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrProviderUnreachable, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("provider error: empty completion")
	}

	return &domain.Invocation{
		Payload:   resp.Choices[0].Message.Content,
		Provider:  "openai",
		Model:     model,
		CostCents: resp.Usage.TotalTokens * centsPerThousandTokens / 1000,
	}, nil
}
