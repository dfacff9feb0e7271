package rag

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"evidence-rag/internal/embedding"
	"evidence-rag/internal/models"
)

// Store is the part of the vector store the orchestrator needs
type Store interface {
	Exists(ctx context.Context) (bool, error)
	WriteAll(ctx context.Context, records []models.EmbeddedRecord) error
	Query(ctx context.Context, vector []float32, k int) ([]models.Record, error)
}

type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Loader returns the evidence documents to ingest
type Loader func() []models.SourceDocument

type RAG struct {
	mu        sync.Mutex
	store     Store
	embedder  embedding.Embedder
	generator Generator
	loader    Loader
	topK      int
}

func NewRAG(store Store, embedder embedding.Embedder, generator Generator, loader Loader, topK int) *RAG {
	if topK <= 0 {
		topK = models.DefaultTopK
	}
	return &RAG{
		store:     store,
		embedder:  embedder,
		generator: generator,
		loader:    loader,
		topK:      topK,
	}
}

// InitializeIfNeeded ingests the evidence directory when the store has no
// table yet. Concurrent callers wait for a single ingestion. A failed store
// write is logged and leaves the store cold.
func (r *RAG) InitializeIfNeeded(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	exists, err := r.store.Exists(ctx)
	if err != nil {
		return fmt.Errorf("failed to check vector store: %w", err)
	}
	if exists {
		return nil
	}

	log.Info().Msg("Vector store is cold, ingesting evidence")
	docs := r.loadDocuments()
	if len(docs) == 0 {
		log.Warn().Msg("No evidence documents found")
		return nil
	}

	records, err := r.embedDocuments(ctx, docs)
	if err != nil {
		return err
	}
	if err := r.store.WriteAll(ctx, records); err != nil {
		log.Error().Err(err).Msg("Failed to populate vector store")
	}
	return nil
}

// Ingest embeds docs and replaces the store contents with them
func (r *RAG) Ingest(ctx context.Context, docs []models.SourceDocument) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	records, err := r.embedDocuments(ctx, docs)
	if err != nil {
		return 0, err
	}
	if err := r.store.WriteAll(ctx, records); err != nil {
		return 0, err
	}
	return len(records), nil
}

func (r *RAG) loadDocuments() []models.SourceDocument {
	if r.loader == nil {
		return nil
	}
	return r.loader()
}

func (r *RAG) embedDocuments(ctx context.Context, docs []models.SourceDocument) ([]models.EmbeddedRecord, error) {
	records := make([]models.EmbeddedRecord, 0, len(docs))
	for _, doc := range docs {
		vec, err := r.embedder.Embed(ctx, doc.Content)
		if err != nil {
			return nil, fmt.Errorf("failed to embed %s: %w", doc.Source, err)
		}
		records = append(records, models.EmbeddedRecord{Vector: vec, Text: doc.Content, Source: doc.Source})
	}
	return records, nil
}

// RetrieveContext returns the k nearest evidence records formatted as
// source-labelled blocks, or "" when nothing matches
func (r *RAG) RetrieveContext(ctx context.Context, question string, k int) (string, error) {
	vec, err := r.embedder.Embed(ctx, question)
	if err != nil {
		return "", fmt.Errorf("failed to embed question: %w", err)
	}
	records, err := r.store.Query(ctx, vec, k)
	if err != nil {
		return "", err
	}
	return FormatContext(records), nil
}

func FormatContext(records []models.Record) string {
	blocks := make([]string, 0, len(records))
	for _, rec := range records {
		blocks = append(blocks, fmt.Sprintf(models.SourceHeaderFormat, rec.Source)+"\n"+rec.Text+"\n"+models.BlockDivider)
	}
	return strings.Join(blocks, models.BlockSeparator)
}

// BuildPrompt assembles the instruction, evidence and question. The evidence
// section is present even when empty.
func BuildPrompt(evidence, question string) string {
	return fmt.Sprintf(models.PromptTemplate, models.SystemPrompt, evidence, question)
}

// Answer retrieves evidence for question and asks the model. Retrieval
// errors are returned; generation never fails, see Generate.
func (r *RAG) Answer(ctx context.Context, question string) (*models.PromptResponse, error) {
	evidence, err := r.RetrieveContext(ctx, question, r.topK)
	if err != nil {
		return nil, err
	}
	return &models.PromptResponse{
		Query:   question,
		Context: evidence,
		Content: r.Generate(ctx, evidence, question),
	}, nil
}

// Generate asks the model to answer question from evidence. A failed call is
// logged and replaced by models.GenerationErrorText.
func (r *RAG) Generate(ctx context.Context, evidence, question string) string {
	content, err := r.generator.Generate(ctx, BuildPrompt(evidence, question))
	if err != nil {
		log.Error().Err(err).Msg("Error during generation")
		return models.GenerationErrorText
	}
	return content
}
