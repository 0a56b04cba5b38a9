// Package gemini implements the answer engine boundary using Google's
// Gemini API.
package gemini

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"text/template"
	"time"

	"google.golang.org/genai"

	"github.com/phrazzld/askstream/internal/config"
	"github.com/phrazzld/askstream/internal/engine"
)

// defaultPromptTemplate is used when no template is configured.
const defaultPromptTemplate = `You are a concise assistant answering user questions.

Question: {{.Question}}

Answer in plain text, without markup.`

// baseRetryDelay is the first retry delay; subsequent attempts back
// off exponentially with jitter.
const baseRetryDelay = 500 * time.Millisecond

// Engine implements engine.Engine using the Gemini API.
type Engine struct {
	logger         *slog.Logger
	client         *genai.Client
	model          string
	promptTemplate *template.Template
	maxRetries     int
}

// New creates a Gemini-backed answer engine from LLM configuration.
//
// Returns engine.ErrInvalidConfig (wrapped) if the configuration is
// incomplete or the prompt template does not parse.
func New(ctx context.Context, log *slog.Logger, cfg config.LLMConfig) (*Engine, error) {
	if log == nil {
		return nil, errors.New("logger cannot be nil")
	}

	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("%w: gemini API key cannot be empty", engine.ErrInvalidConfig)
	}

	if cfg.ModelName == "" {
		return nil, fmt.Errorf("%w: model name cannot be empty", engine.ErrInvalidConfig)
	}

	templateText := cfg.PromptTemplate
	if templateText == "" {
		templateText = defaultPromptTemplate
	}

	promptTemplate, err := template.New("answer").Parse(templateText)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to parse prompt template: %v", engine.ErrInvalidConfig, err)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.GeminiAPIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create Gemini client: %v", engine.ErrInvalidConfig, err)
	}

	maxRetries := cfg.MaxRetries
	if maxRetries < 1 {
		maxRetries = 1
	}

	return &Engine{
		logger:         log.With(slog.String("component", "gemini_engine")),
		client:         client,
		model:          cfg.ModelName,
		promptTemplate: promptTemplate,
		maxRetries:     maxRetries,
	}, nil
}

// Ensure Engine implements engine.Engine.
var _ engine.Engine = (*Engine)(nil)

// Compute implements engine.Engine.Compute.
// Transient API failures are retried with exponential backoff and
// jitter up to the configured attempt count; the final error is
// wrapped in engine.ErrGenerationFailed.
func (e *Engine) Compute(ctx context.Context, text string) (string, error) {
	if text == "" {
		return "", engine.ErrEmptyQuestion
	}

	prompt, err := e.createPrompt(text)
	if err != nil {
		return "", err
	}

	var lastErr error
	for attempt := 1; attempt <= e.maxRetries; attempt++ {
		if attempt > 1 {
			delay := retryDelay(attempt)
			e.logger.Warn("retrying answer generation",
				slog.Int("attempt", attempt),
				slog.Duration("delay", delay),
				slog.String("error", lastErr.Error()))

			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(delay):
			}
		}

		answer, err := e.generate(ctx, prompt)
		if err == nil {
			return answer, nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return "", err
		}
		lastErr = err
	}

	return "", fmt.Errorf("%w: %v", engine.ErrGenerationFailed, lastErr)
}

// generate performs a single model call.
func (e *Engine) generate(ctx context.Context, prompt string) (string, error) {
	resp, err := e.client.Models.GenerateContent(ctx, e.model, genai.Text(prompt), nil)
	if err != nil {
		return "", fmt.Errorf("model call failed: %w", err)
	}

	answer := resp.Text()
	if answer == "" {
		return "", engine.ErrEmptyResponse
	}

	return answer, nil
}

// createPrompt renders the prompt template with the question text.
func (e *Engine) createPrompt(question string) (string, error) {
	var buf bytes.Buffer
	err := e.promptTemplate.Execute(&buf, struct{ Question string }{Question: question})
	if err != nil {
		return "", fmt.Errorf("failed to render prompt: %w", err)
	}
	return buf.String(), nil
}

// retryDelay computes the exponential backoff delay with full jitter
// for the given attempt (attempt >= 2).
func retryDelay(attempt int) time.Duration {
	backoff := float64(baseRetryDelay) * math.Pow(2, float64(attempt-2))
	return time.Duration(backoff * (0.5 + rand.Float64()/2))
}
