// Package suggest asks a chat model for a short greeting idea for a memory.
package suggest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/dukerupert/memories/internal/model"
)

var ErrDisabled = errors.New("suggestions not configured")

const systemPrompt = `You help people remember the dates that matter to them.
Given one memory, reply with a single warm, specific greeting or small gesture idea.
Keep it under 60 words. No lists, no preamble.`

// ChatClient is the subset of *openai.Client the service calls.
type ChatClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

type Service struct {
	client  ChatClient
	model   string
	timeout time.Duration
}

// New returns a Service backed by the OpenAI API. With no API key the
// service is disabled and Suggest returns ErrDisabled.
func New(cfg Config) *Service {
	if cfg.APIKey == "" {
		return NewWithClient(nil, cfg.Model, cfg.Timeout)
	}
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	return NewWithClient(openai.NewClientWithConfig(oc), cfg.Model, cfg.Timeout)
}

func NewWithClient(client ChatClient, model string, timeout time.Duration) *Service {
	if model == "" {
		model = openai.GPT4oMini
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Service{client: client, model: model, timeout: timeout}
}

func (s *Service) Enabled() bool {
	return s != nil && s.client != nil
}

// Suggest returns a greeting idea for m, which next occurs in daysUntil days.
func (s *Service) Suggest(ctx context.Context, m model.Memory, daysUntil int) (string, error) {
	if !s.Enabled() {
		return "", ErrDisabled
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: s.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: systemPrompt,
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: Prompt(m, daysUntil),
			},
		},
		Temperature: 0.8,
		MaxTokens:   120,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("chat completion: no choices returned")
	}

	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", errors.New("chat completion: empty reply")
	}
	return text, nil
}

// Prompt describes m for the model.
func Prompt(m model.Memory, daysUntil int) string {
	when := fmt.Sprintf("in %d days", daysUntil)
	switch daysUntil {
	case 0:
		when = "today"
	case 1:
		when = "tomorrow"
	}
	date := time.Date(2000, time.Month(m.Month), m.Day, 0, 0, 0, 0, time.UTC).Format("January 2")
	return fmt.Sprintf("%s: %s on %s, which is %s.", m.Category, m.DisplayName, date, when)
}
