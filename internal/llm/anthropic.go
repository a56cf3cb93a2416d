package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/BaekSe/tootoo-recomendation/pkg/config"
)

// AnthropicClient implements ChatClient over the Messages API.
type AnthropicClient struct {
	client    anthropic.Client
	model     anthropic.Model
	maxTokens int64
}

// NewAnthropicClient creates a new Anthropic-backed chat client
func NewAnthropicClient(cfg config.LLMConfig) (*AnthropicClient, error) {
	if cfg.AnthropicAPIKey == "" {
		return nil, fmt.Errorf("ANTHROPIC_API_KEY is required for the anthropic provider")
	}

	client := anthropic.NewClient(
		option.WithAPIKey(cfg.AnthropicAPIKey),
		option.WithMaxRetries(0), // 재시도 예산은 리페어 패스가 전부
	)

	return &AnthropicClient{
		client:    client,
		model:     anthropic.Model(cfg.AnthropicModel),
		maxTokens: int64(cfg.MaxTokens),
	}, nil
}

// Provider returns the provider identifier stored with each snapshot.
func (c *AnthropicClient) Provider() string {
	return "anthropic"
}

// Complete sends one Messages API request and returns the concatenated text
// blocks of the response.
func (c *AnthropicClient) Complete(ctx context.Context, system string, messages []Message) (string, error) {
	params := anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		System: []anthropic.TextBlockParam{
			{Text: system},
		},
		Messages: make([]anthropic.MessageParam, 0, len(messages)),
	}

	for _, msg := range messages {
		block := anthropic.NewTextBlock(msg.Content)
		switch msg.Role {
		case RoleAssistant:
			params.Messages = append(params.Messages, anthropic.NewAssistantMessage(block))
		default:
			params.Messages = append(params.Messages, anthropic.NewUserMessage(block))
		}
	}

	resp, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("anthropic messages request: %w", err)
	}

	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}

	if sb.Len() == 0 {
		return "", fmt.Errorf("anthropic response contains no text blocks")
	}
	return sb.String(), nil
}
