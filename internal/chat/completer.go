package chat

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const completionMaxTokens = 1024

// Completer produces one completion for a message.
type Completer interface {
	Complete(ctx context.Context, system, message string) (string, error)
}

// AnthropicCompleter forwards messages to the Anthropic Messages API.
type AnthropicCompleter struct {
	client *anthropic.Client
	model  string
}

func NewAnthropicCompleter(apiKey, model string) *AnthropicCompleter {
	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	return &AnthropicCompleter{client: &client, model: model}
}

var _ Completer = (*AnthropicCompleter)(nil)

func (c *AnthropicCompleter) Complete(ctx context.Context, system, message string) (string, error) {
	prompt := message
	if system != "" {
		prompt = system + "\n\n---\n\nUser: " + message
	}
	resp, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: completionMaxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("messages API: %w", err)
	}
	var text string
	for _, block := range resp.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}
	return text, nil
}
