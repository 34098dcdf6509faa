// Package openai generates forecast summaries through an OpenAI-compatible
// chat completion API.
package openai

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/couchcryptid/weather-forecast-etl/internal/domain"
)

// SystemPrompt frames the model as a forecaster.
const SystemPrompt = "You are a weather forecaster providing clear, concise 7-day weather summaries."

const (
	maxTokens   = 200
	temperature = 0.7
)

// Generator turns a formatted prompt into summary text.
type Generator struct {
	client  *goopenai.Client
	model   string
	timeout time.Duration
}

// NewGenerator creates a Generator. An empty baseURL uses the OpenAI default.
// timeout bounds each completion request.
func NewGenerator(apiKey, baseURL, model string, timeout time.Duration) *Generator {
	cfg := goopenai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}
	cfg.HTTPClient = &http.Client{Timeout: timeout}
	if model == "" {
		model = goopenai.GPT3Dot5Turbo
	}
	return &Generator{
		client:  goopenai.NewClientWithConfig(cfg),
		model:   model,
		timeout: timeout,
	}
}

// Generate requests a completion for prompt. Rate limiting is reported as
// *domain.RateLimitError, any other failure as *domain.GenerationError.
func (g *Generator) Generate(ctx context.Context, prompt string) (string, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	resp, err := g.client.CreateChatCompletion(ctx, goopenai.ChatCompletionRequest{
		Model: g.model,
		Messages: []goopenai.ChatCompletionMessage{
			{Role: goopenai.ChatMessageRoleSystem, Content: SystemPrompt},
			{Role: goopenai.ChatMessageRoleUser, Content: prompt},
		},
		MaxTokens:   maxTokens,
		Temperature: temperature,
	})
	if err != nil {
		return "", classify(err)
	}
	if len(resp.Choices) == 0 {
		return "", &domain.GenerationError{Err: errors.New("completion returned no choices")}
	}

	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", &domain.GenerationError{Err: errors.New("completion returned empty text")}
	}
	return text, nil
}

func classify(err error) error {
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode == http.StatusTooManyRequests {
		return &domain.RateLimitError{Err: err}
	}
	var reqErr *goopenai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode == http.StatusTooManyRequests {
		return &domain.RateLimitError{Err: err}
	}
	return &domain.GenerationError{Err: err}
}
