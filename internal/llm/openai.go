package llm

import (
	"context"
	"fmt"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/BaekSe/tootoo-recomendation/pkg/config"
)

// OpenAIClient implements ChatClient over the Chat Completions API.
type OpenAIClient struct {
	client openai.Client
	model  openai.ChatModel
}

// NewOpenAIClient creates a new OpenAI-backed chat client
func NewOpenAIClient(cfg config.LLMConfig) (*OpenAIClient, error) {
	if cfg.OpenAIAPIKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is required for the openai provider")
	}

	client := openai.NewClient(
		option.WithAPIKey(cfg.OpenAIAPIKey),
		option.WithMaxRetries(0),
	)

	return &OpenAIClient{
		client: client,
		model:  openai.ChatModel(cfg.OpenAIModel),
	}, nil
}

// Provider returns the provider identifier stored with each snapshot.
func (c *OpenAIClient) Provider() string {
	return "openai"
}

// Complete sends one chat completion request and returns the first choice's
// message content.
func (c *OpenAIClient) Complete(ctx context.Context, system string, messages []Message) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model:    c.model,
		Messages: make([]openai.ChatCompletionMessageParamUnion, 0, len(messages)+1),
	}

	params.Messages = append(params.Messages, openai.SystemMessage(system))
	for _, msg := range messages {
		switch msg.Role {
		case RoleAssistant:
			params.Messages = append(params.Messages, openai.AssistantMessage(msg.Content))
		default:
			params.Messages = append(params.Messages, openai.UserMessage(msg.Content))
		}
	}

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("openai chat completion request: %w", err)
	}

	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("openai response contains no message content")
	}
	return resp.Choices[0].Message.Content, nil
}
