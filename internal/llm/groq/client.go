package groq

import (
	"context"
	"fmt"

	"github.com/conneroisu/groq-go"

	"langtutor/internal/llm"
	"langtutor/internal/provider"
)

const name = "groq"

var _ llm.Completer = (*Client)(nil)

type Client struct {
	client *groq.Client
	model  groq.ChatModel
}

// NewClient creates a Groq completer. baseURL is only set in tests.
func NewClient(apiKey, model, baseURL string) (*Client, error) {
	var (
		client *groq.Client
		err    error
	)
	if baseURL != "" {
		client, err = groq.NewClient(apiKey, groq.WithBaseURL(baseURL))
	} else {
		client, err = groq.NewClient(apiKey)
	}
	if err != nil {
		return nil, fmt.Errorf("create groq client: %w", err)
	}

	return &Client{
		client: client,
		model:  groq.ChatModel(model),
	}, nil
}

func (c *Client) Name() string {
	return name
}

func (c *Client) Complete(ctx context.Context, req llm.CompletionRequest) (string, error) {
	messages := make([]groq.ChatCompletionMessage, 0, len(req.Messages)+1)
	if req.System != "" {
		messages = append(messages, groq.ChatCompletionMessage{Role: groq.RoleSystem, Content: req.System})
	}
	for _, m := range req.Messages {
		role := groq.RoleUser
		if m.Role == llm.RoleAssistant {
			role = groq.RoleAssistant
		}
		messages = append(messages, groq.ChatCompletionMessage{Role: role, Content: m.Content})
	}

	resp, err := c.client.ChatCompletion(ctx, groq.ChatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		return "", provider.Wrap(name, "complete", fmt.Errorf("generate: %w", err))
	}

	if len(resp.Choices) == 0 {
		return "", provider.Empty(name, "complete", "no response")
	}

	content := resp.Choices[0].Message.Content
	if content == "" {
		return "", provider.Empty(name, "complete", "empty response")
	}

	return content, nil
}
