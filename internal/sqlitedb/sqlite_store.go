package sqlitedb

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"regexp"
	"sort"
	"sync"

	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"

	"evidence-rag/internal/helper"
	"evidence-rag/internal/models"
)

const fileName = "evidence.db"

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Store keeps the evidence table in a single SQLite file. Similarity is
// brute-force cosine distance computed in Go, which is plenty for a handful
// of documents.
type Store struct {
	mu    sync.RWMutex
	db    *sql.DB
	table string
}

// Open creates dir if needed and opens dir/evidence.db
func Open(dir, table string) (*Store, error) {
	if !identPattern.MatchString(table) {
		return nil, fmt.Errorf("sqlitedb: invalid table name %q", table)
	}
	if err := helper.CreateFolder(dir); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", filepath.Join(dir, fileName))
	if err != nil {
		return nil, fmt.Errorf("sqlitedb: open: %w", err)
	}
	// one writer at a time keeps the overwrite transaction simple
	db.SetMaxOpenConns(1)
	return &Store{db: db, table: table}, nil
}

func (s *Store) TableExists(ctx context.Context, name string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT count(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, name).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("sqlitedb: table lookup: %w", err)
	}
	return n > 0, nil
}

// WriteAll replaces the table in one transaction. With no records the table
// is dropped and not recreated.
func (s *Store) WriteAll(ctx context.Context, records []models.EmbeddedRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, fmt.Sprintf(`DROP TABLE IF EXISTS %q`, s.table)); err != nil {
		return fmt.Errorf("sqlitedb: drop table: %w", err)
	}
	if len(records) == 0 {
		log.Warn().Str("table", s.table).Msg("No records to store, table left empty")
		return tx.Commit()
	}

	ddl := fmt.Sprintf(`CREATE TABLE %q (
		id TEXT PRIMARY KEY,
		text TEXT NOT NULL,
		source TEXT NOT NULL,
		embedding BLOB NOT NULL
	)`, s.table)
	if _, err := tx.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("sqlitedb: create table: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(`INSERT INTO %q(id, text, source, embedding) VALUES(?, ?, ?, ?)`, s.table))
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, r := range records {
		if _, err := stmt.ExecContext(ctx, helper.RecordID(r.Source, i), r.Text, r.Source, EncodeEmbedding(r.Vector)); err != nil {
			return fmt.Errorf("sqlitedb: insert %s: %w", r.Source, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	log.Info().Int("count", len(records)).Str("table", s.table).Msg("Stored documents in sqlite")
	return nil
}

func (s *Store) Query(ctx context.Context, vector []float32, k int) ([]models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

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

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`SELECT text, source, embedding FROM %q`, s.table))
	if err != nil {
		return nil, fmt.Errorf("sqlitedb: select: %w", err)
	}
	defer rows.Close()

	var out []models.Record
	for rows.Next() {
		var (
			r    models.Record
			blob []byte
		)
		if err := rows.Scan(&r.Text, &r.Source, &blob); err != nil {
			return nil, err
		}
		vec, err := DecodeEmbedding(blob)
		if err != nil {
			return nil, err
		}
		d, err := CosineDistance(vector, vec)
		if err != nil {
			return nil, err
		}
		r.Distance = float32(d)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Distance < out[j].Distance })
	if len(out) > k {
		out = out[:k]
	}
	return out, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}
