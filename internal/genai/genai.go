// Package genai provides the LLM completion client for LeadFlow dialogue
// generation, backed by the OpenAI API.
package genai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/corevida/leadflow/internal/models"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// DefaultMaxTokens bounds completion length when the caller passes zero.
const DefaultMaxTokens = 512

// ErrEmptyCompletion indicates the API answered successfully but returned no
// usable text. Callers can distinguish this from transport failures, which
// come back as wrapped request errors.
var ErrEmptyCompletion = errors.New("completion contained no choices")

// ClientInterface is the LLM contract the dialogue flow depends on.
type ClientInterface interface {
	// Complete generates one completion from a system prompt and a bounded
	// turn history.
	Complete(ctx context.Context, systemPrompt string, history []models.Message, maxTokens int) (string, error)
}

// Opts holds configuration options for the GenAI client.
type Opts struct {
	APIKey string
	Model  string
}

// Option defines a configuration option for the GenAI client.
type Option func(*Opts)

// WithAPIKey sets the OpenAI API key.
func WithAPIKey(key string) Option {
	return func(o *Opts) { o.APIKey = key }
}

// WithModel overrides the completion model.
func WithModel(model string) Option {
	return func(o *Opts) { o.Model = model }
}

// Client wraps the OpenAI chat completion service.
type Client struct {
	client openai.Client
	model  string
}

// NewClient initializes a GenAI client. The API key falls back to the
// OPENAI_API_KEY environment variable.
func NewClient(opts ...Option) (*Client, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY not set")
	}
	if cfg.Model == "" {
		cfg.Model = openai.ChatModelGPT4oMini
	}
	slog.Debug("genai.NewClient: creating client", "model", cfg.Model)
	return &Client{
		client: openai.NewClient(option.WithAPIKey(cfg.APIKey)),
		model:  cfg.Model,
	}, nil
}

// Complete generates a completion from the system prompt and turn history.
// History roles map onto chat roles; anything that is not "assistant" is sent
// as a user turn.
func (c *Client) Complete(ctx context.Context, systemPrompt string, history []models.Message, maxTokens int) (string, error) {
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}

	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(history)+1)
	if systemPrompt != "" {
		messages = append(messages, openai.SystemMessage(systemPrompt))
	}
	for _, msg := range history {
		if msg.Role == "assistant" {
			messages = append(messages, openai.AssistantMessage(msg.Content))
		} else {
			messages = append(messages, openai.UserMessage(msg.Content))
		}
	}

	slog.Debug("genai.Complete: requesting completion", "model", c.model, "turns", len(history), "maxTokens", maxTokens)
	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:     c.model,
		Messages:  messages,
		MaxTokens: openai.Int(int64(maxTokens)),
	})
	if err != nil {
		slog.Error("genai.Complete: request failed", "error", err)
		return "", fmt.Errorf("chat completion request: %w", err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		slog.Error("genai.Complete: empty completion", "model", c.model)
		return "", ErrEmptyCompletion
	}
	return resp.Choices[0].Message.Content, nil
}
