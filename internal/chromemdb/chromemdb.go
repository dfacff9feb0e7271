package chromemdb

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"

	"github.com/philippgille/chromem-go"
	"github.com/rs/zerolog/log"

	"evidence-rag/internal/helper"
	"evidence-rag/internal/models"
)

const (
	compress = false
	// metadata key holding the source filename of a record
	sourceKey = "source"
)

// VectorDBManager wraps a persistent chromem-go database. One collection plays
// the role of the evidence table. chromem ranks by cosine similarity only;
// distances are reported as 1 - similarity.
type VectorDBManager struct {
	mu            sync.RWMutex
	db            *chromem.DB
	dbPath        string
	table         string
	embeddingFunc chromem.EmbeddingFunc
}

// NewVectorDBManager creates dbPath if needed and opens the database in it.
// An empty dbPath keeps everything in memory.
func NewVectorDBManager(dbPath, table string, embeddingFunc chromem.EmbeddingFunc) (*VectorDBManager, error) {
	var (
		db  *chromem.DB
		err error
	)
	if dbPath == "" {
		db = chromem.NewDB()
	} else {
		if err := helper.CreateFolder(dbPath); err != nil {
			return nil, err
		}
		db, err = chromem.NewPersistentDB(dbPath, compress)
		if err != nil {
			return nil, fmt.Errorf("failed to create database: %w", err)
		}
	}

	return &VectorDBManager{
		db:            db,
		dbPath:        dbPath,
		table:         table,
		embeddingFunc: embeddingFunc,
	}, nil
}

// TableExists reports whether a collection called name is present
func (m *VectorDBManager) TableExists(_ context.Context, name string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.db.ListCollections()[name]
	return ok, nil
}

// WriteAll drops the collection and recreates it with exactly records.
// With no records the collection is left absent.
func (m *VectorDBManager) WriteAll(ctx context.Context, records []models.EmbeddedRecord) error {
	docs := make([]chromem.Document, 0, len(records))
	for i, r := range records {
		docs = append(docs, chromem.Document{
			ID:        helper.RecordID(r.Source, i),
			Content:   r.Text,
			Metadata:  map[string]string{sourceKey: r.Source},
			Embedding: r.Vector,
		})
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.db.DeleteCollection(m.table); err != nil {
		return fmt.Errorf("failed to drop collection: %w", err)
	}
	if len(docs) == 0 {
		log.Warn().Str("table", m.table).Msg("No records to store, table left empty")
		return nil
	}

	c, err := m.db.CreateCollection(m.table, nil, m.embeddingFunc)
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}
	if err := c.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return fmt.Errorf("failed to add documents: %w", err)
	}

	log.Info().Int("count", len(docs)).Str("path", m.dbPath).Msg("Stored documents in chromem")
	return nil
}

// Query returns up to k records closest to vector
func (m *VectorDBManager) Query(ctx context.Context, vector []float32, k int) ([]models.Record, error) {
	if len(vector) == 0 {
		return nil, errors.New("query embedding must be provided")
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	c := m.db.GetCollection(m.table, m.embeddingFunc)
	if c == nil {
		return nil, models.ErrTableNotFound
	}
	k = min(k, c.Count())
	if k <= 0 {
		return nil, nil
	}

	results, err := c.QueryEmbedding(ctx, vector, k, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to query by similarity: %w", err)
	}

	records := make([]models.Record, 0, len(results))
	for _, res := range results {
		records = append(records, models.Record{
			Text:     res.Content,
			Source:   res.Metadata[sourceKey],
			Distance: 1 - res.Similarity,
		})
	}
	return records, nil
}

// Close is a no-op; a persistent chromem DB writes through on every change
func (m *VectorDBManager) Close() error {
	return nil
}
