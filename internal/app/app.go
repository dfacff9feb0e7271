package app

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"evidence-rag/internal/config"
	"evidence-rag/internal/embedding"
	"evidence-rag/internal/llmservice"
	"evidence-rag/internal/models"
	"evidence-rag/internal/parser"
	"evidence-rag/internal/rag"
	"evidence-rag/internal/vectorstore"
)

// App holds the long-lived pieces shared by the CLI and the server
type App struct {
	Config   *config.Config
	Embedder *embedding.Lazy
	Store    *vectorstore.Store
	RAG      *rag.RAG
}

// New opens the store and wires the orchestrator. Nothing is embedded or
// generated until the first request.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	embedder := embedding.New(&cfg.EmbedLLM)

	store, err := vectorstore.Open(ctx, cfg.Store, cfg.EmbedLLM.Dimension, embedder)
	if err != nil {
		return nil, fmt.Errorf("failed to open vector store: %w", err)
	}

	loader := parser.NewLoader(cfg.Evidence.ExtendedFormats)
	evidenceDir := cfg.Evidence.Dir
	r := rag.NewRAG(
		store,
		embedder,
		llmservice.NewGenerator(&cfg.Inference),
		func() []models.SourceDocument {
			log.Info().Str("dir", evidenceDir).Msg("Looking for evidence")
			return loader.Load(evidenceDir)
		},
		cfg.RAG.TopK,
	)

	return &App{Config: cfg, Embedder: embedder, Store: store, RAG: r}, nil
}

// LoadEvidence reads the configured evidence directory
func (a *App) LoadEvidence() []models.SourceDocument {
	return parser.NewLoader(a.Config.Evidence.ExtendedFormats).Load(a.Config.Evidence.Dir)
}

func (a *App) Close() {
	if err := a.Store.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close vector store")
	}
}
