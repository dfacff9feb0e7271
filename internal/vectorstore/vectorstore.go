package vectorstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/philippgille/chromem-go"
	"github.com/rs/zerolog/log"

	"evidence-rag/internal/chromemdb"
	"evidence-rag/internal/config"
	"evidence-rag/internal/db"
	"evidence-rag/internal/embedding"
	"evidence-rag/internal/models"
	"evidence-rag/internal/sqlitedb"
)

// Driver is what each storage backend implements. Query returns
// models.ErrTableNotFound while nothing has been written.
type Driver interface {
	TableExists(ctx context.Context, name string) (bool, error)
	WriteAll(ctx context.Context, records []models.EmbeddedRecord) error
	Query(ctx context.Context, vector []float32, k int) ([]models.Record, error)
	Close() error
}

// Store is the evidence table shared by the CLI and the server
type Store struct {
	driver Driver
	table  string
}

// New wraps an already opened driver
func New(driver Driver, table string) *Store {
	if table == "" {
		table = models.DefaultTableName
	}
	return &Store{driver: driver, table: table}
}

// Open connects to the backend named by cfg.Driver. dimension is the embedder
// output size; embedder may be nil when records always carry their vectors.
func Open(ctx context.Context, cfg config.StoreConfig, dimension int, embedder embedding.Embedder) (*Store, error) {
	table := cfg.Table
	if table == "" {
		table = models.DefaultTableName
	}

	var (
		driver Driver
		err    error
	)
	switch cfg.Driver {
	case config.DriverChromem, "":
		var ef chromem.EmbeddingFunc
		if embedder != nil {
			ef = embedder.Embed
		}
		driver, err = chromemdb.NewVectorDBManager(cfg.Path, table, ef)
	case config.DriverSQLite:
		driver, err = sqlitedb.Open(cfg.Path, table)
	case config.DriverPostgres:
		driver, err = db.Open(ctx, cfg.DSN, table, dimension, cfg.Debug)
	default:
		return nil, fmt.Errorf("unknown store driver: %s", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}

	log.Info().Str("driver", cfg.Driver).Str("path", cfg.Path).Str("table", table).Msg("Vector store connected")
	return New(driver, table), nil
}

func (s *Store) Table() string {
	return s.table
}

// Exists reports whether the evidence table has been written
func (s *Store) Exists(ctx context.Context) (bool, error) {
	return s.driver.TableExists(ctx, s.table)
}

func (s *Store) TableExists(ctx context.Context, name string) (bool, error) {
	return s.driver.TableExists(ctx, name)
}

// WriteAll replaces the whole table with records
func (s *Store) WriteAll(ctx context.Context, records []models.EmbeddedRecord) error {
	if err := s.driver.WriteAll(ctx, records); err != nil {
		return fmt.Errorf("failed to write %d records: %w", len(records), err)
	}
	return nil
}

// Query returns up to k records ordered by ascending cosine distance.
// A table that was never written yields no records and no error.
func (s *Store) Query(ctx context.Context, vector []float32, k int) ([]models.Record, error) {
	if k <= 0 {
		return nil, nil
	}
	records, err := s.driver.Query(ctx, vector, k)
	if errors.Is(err, models.ErrTableNotFound) {
		log.Warn().Str("table", s.table).Msg("Vector store has no evidence table yet")
		return []models.Record{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query vector store: %w", err)
	}

	out := records[:0]
	for _, r := range records {
		if !r.Valid() {
			log.Warn().Str("source", r.Source).Msg("Skipping malformed record")
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func (s *Store) Close() error {
	return s.driver.Close()
}
