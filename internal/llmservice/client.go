package llmservice

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/googleai"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"evidence-rag/internal/config"
	"evidence-rag/internal/models"
)

// Generator sends a fully assembled prompt to the hosted model and returns its text
type Generator struct {
	mu         sync.Mutex
	model      llms.Model
	newModel   func(ctx context.Context) (llms.Model, error)
	timeout    time.Duration
	maxRetries int
}

// NewGenerator builds a generator for llmConfig. The client is created on the
// first call so a process can start without credentials.
func NewGenerator(llmConfig *config.LLMConfig) *Generator {
	return &Generator{
		newModel: func(ctx context.Context) (llms.Model, error) {
			return NewModel(ctx, llmConfig)
		},
		timeout:    llmConfig.Timeout,
		maxRetries: llmConfig.MaxRetries,
	}
}

// NewGeneratorWithModel wraps an existing langchaingo model
func NewGeneratorWithModel(model llms.Model, timeout time.Duration, maxRetries int) *Generator {
	return &Generator{model: model, timeout: timeout, maxRetries: maxRetries}
}

// NewModel creates the langchaingo client for the configured provider
func NewModel(ctx context.Context, llmConfig *config.LLMConfig) (llms.Model, error) {
	log.Debug().Str("provider", llmConfig.Provider).Str("model", llmConfig.Model).Msg("Creating inference client")
	switch llmConfig.Provider {
	case config.ProviderGoogleAI, "":
		if llmConfig.Key == "" {
			return nil, fmt.Errorf("%w: %s not set", models.ErrMissingCredential, config.GoogleAPIKeyEnv)
		}
		return googleai.New(ctx,
			googleai.WithAPIKey(llmConfig.Key),
			googleai.WithDefaultModel(llmConfig.Model),
		)
	case config.ProviderOpenAI:
		opts := []openai.Option{
			openai.WithToken(strings.TrimPrefix(llmConfig.Key, "Bearer ")),
			openai.WithModel(llmConfig.Model),
		}
		if llmConfig.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(llmConfig.BaseURL))
		}
		return openai.New(opts...)
	case config.ProviderOllama:
		return ollama.New(
			ollama.WithServerURL(llmConfig.BaseURL),
			ollama.WithModel(llmConfig.Model),
		)
	default:
		return nil, fmt.Errorf("unknown inference provider: %s", llmConfig.Provider)
	}
}

func (g *Generator) client(ctx context.Context) (llms.Model, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.model != nil {
		return g.model, nil
	}
	model, err := g.newModel(ctx)
	if err != nil {
		return nil, err
	}
	g.model = model
	return model, nil
}

// Generate returns the model's text for prompt. Transient failures are
// retried with exponential backoff; each attempt is bounded by the timeout.
func (g *Generator) Generate(ctx context.Context, prompt string) (string, error) {
	llm, err := g.client(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: %w", models.ErrModel, err)
	}

	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeHuman, prompt),
	}

	var text string
	attempt := 0
	operation := func() error {
		attempt++
		callCtx := ctx
		if g.timeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, g.timeout)
			defer cancel()
		}

		resp, err := llm.GenerateContent(callCtx, messages)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			log.Warn().Err(err).Int("attempt", attempt).Msg("Generation failed")
			return err
		}
		if len(resp.Choices) == 0 {
			return backoff.Permanent(errors.New("empty response from model"))
		}
		text = resp.Choices[0].Content
		return nil
	}

	retries := g.maxRetries
	if retries < 0 {
		retries = 0
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 200 * time.Millisecond
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(retries)), ctx)

	if err := backoff.Retry(operation, policy); err != nil {
		return "", fmt.Errorf("%w: %w", models.ErrModel, err)
	}
	return text, nil
}
