package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pgvector/pgvector-go"
	"github.com/rs/zerolog/log"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"

	"evidence-rag/internal/models"
)

// Document is one row of the evidence table
type Document struct {
	bun.BaseModel `bun:"table:evidence,alias:d"`
	ID            int64           `bun:"id,pk,autoincrement"`
	Text          string          `bun:"text,notnull"`
	Source        string          `bun:"source,notnull"`
	Embedding     pgvector.Vector `bun:"embedding,type:vector"`
	Distance      float32         `bun:"distance,scanonly"`
}

// Store keeps the evidence table in Postgres with the pgvector extension.
// Neighbours are ordered by the cosine distance operator <=>.
type Store struct {
	db        *bun.DB
	table     string
	dimension int
}

func NewDB(sqldb *sql.DB, debug bool) *bun.DB {
	db := bun.NewDB(sqldb, pgdialect.New())
	if debug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}
	return db
}

func ConnectDB(dsn string) *sql.DB {
	return sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
}

// Open connects to dsn and makes sure the vector extension is installed
func Open(ctx context.Context, dsn, table string, dimension int, debug bool) (*Store, error) {
	db := NewDB(ConnectDB(dsn), debug)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	if _, err := db.ExecContext(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable pgvector: %w", err)
	}
	return &Store{db: db, table: table, dimension: dimension}, nil
}

func (s *Store) TableExists(ctx context.Context, name string) (bool, error) {
	return s.db.NewSelect().
		TableExpr("information_schema.tables").
		Where("table_schema = current_schema()").
		Where("table_name = ?", name).
		Exists(ctx)
}

// WriteAll drops and recreates the table with records inside one transaction,
// so readers see either the old or the new corpus
func (s *Store) WriteAll(ctx context.Context, records []models.EmbeddedRecord) error {
	docs := make([]Document, 0, len(records))
	for _, r := range records {
		docs = append(docs, Document{
			Text:      r.Text,
			Source:    r.Source,
			Embedding: pgvector.NewVector(r.Vector),
		})
	}

	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS ?", bun.Ident(s.table)); err != nil {
			return fmt.Errorf("failed to drop table: %w", err)
		}
		if len(docs) == 0 {
			return nil
		}

		if _, err := tx.ExecContext(ctx,
			"CREATE TABLE ? (id bigserial PRIMARY KEY, text text NOT NULL, source text NOT NULL, embedding vector(?) NOT NULL)",
			bun.Ident(s.table), s.dimension); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}

		_, err := tx.NewInsert().
			Model(&docs).
			ModelTableExpr("?", bun.Ident(s.table)).
			ExcludeColumn("id", "distance").
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to insert documents: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	if len(docs) == 0 {
		log.Warn().Str("table", s.table).Msg("No records to store, table left empty")
		return nil
	}
	log.Info().Int("count", len(docs)).Str("table", s.table).Msg("Stored documents in postgres")
	return nil
}

func (s *Store) Query(ctx context.Context, vector []float32, k int) ([]models.Record, error) {
	exists, err := s.TableExists(ctx, s.table)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, models.ErrTableNotFound
	}
	if k <= 0 {
		return nil, nil
	}

	var docs []Document
	err = s.db.NewSelect().
		Model(&docs).
		ModelTableExpr("? AS d", bun.Ident(s.table)).
		Column("text", "source").
		ColumnExpr("d.embedding <=> ? AS distance", pgvector.NewVector(vector)).
		OrderExpr("distance").
		Limit(k).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to search documents: %w", err)
	}

	records := make([]models.Record, 0, len(docs))
	for _, d := range docs {
		records = append(records, models.Record{Text: d.Text, Source: d.Source, Distance: d.Distance})
	}
	return records, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}
