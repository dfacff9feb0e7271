package embedding

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"evidence-rag/internal/config"
	"evidence-rag/internal/models"
)

// Embedder maps text to a fixed-length unit vector
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// New returns the process-wide embedder described by cfg. The model is not
// loaded until the first Embed call.
func New(cfg *config.LLMConfig) *Lazy {
	return NewLazy(func(ctx context.Context) (Embedder, error) {
		log.Info().Str("provider", cfg.Provider).Str("model", cfg.Model).Msg("Loading embedding model...")
		return load(cfg)
	})
}

func load(cfg *config.LLMConfig) (Embedder, error) {
	switch cfg.Provider {
	case config.ProviderLocal, "":
		return NewHashEmbedder(cfg.Dimension), nil
	case config.ProviderOllama:
		llm, err := ollama.New(
			ollama.WithServerURL(cfg.BaseURL),
			ollama.WithModel(cfg.Model),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize ollama: %w", err)
		}
		return NewLangchainEmbedder(llm)
	case config.ProviderOpenAI:
		opts := []openai.Option{
			openai.WithToken(strings.TrimPrefix(cfg.Key, "Bearer ")),
			openai.WithEmbeddingModel(cfg.Model),
		}
		if cfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
		}
		llm, err := openai.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize openai: %w", err)
		}
		return NewLangchainEmbedder(llm)
	default:
		return nil, fmt.Errorf("unknown embedding provider: %s", cfg.Provider)
	}
}

// LangchainEmbedder adapts a langchaingo embeddings client
type LangchainEmbedder struct {
	embedder embeddings.Embedder
}

func NewLangchainEmbedder(client embeddings.EmbedderClient) (*LangchainEmbedder, error) {
	e, err := embeddings.NewEmbedder(client)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}
	return &LangchainEmbedder{embedder: e}, nil
}

func (e *LangchainEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	v, err := e.embedder.EmbedQuery(ctx, text)
	if err != nil {
		return nil, err
	}
	return Normalize(v)
}

// Normalize scales v to unit length in place and returns it
func Normalize(v []float32) ([]float32, error) {
	if len(v) == 0 {
		return nil, errors.New("empty embedding")
	}
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return nil, errors.New("zero-magnitude embedding")
	}
	norm := float32(math.Sqrt(sum))
	for i := range v {
		v[i] /= norm
	}
	return v, nil
}

func wrapModelError(err error) error {
	if errors.Is(err, models.ErrModel) {
		return err
	}
	return fmt.Errorf("%w: %w", models.ErrModel, err)
}
