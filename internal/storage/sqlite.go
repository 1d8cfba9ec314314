package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/ruiji/internal/models"
)

const (
	metaSource     = "source"
	metaDimensions = "dimensions"
	metaImportedAt = "imported_at"
)

// SQLiteStorage implements Storage using SQLite.
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS words (
		id INTEGER PRIMARY KEY,
		word TEXT NOT NULL UNIQUE,
		vector BLOB NOT NULL
	);

	CREATE TABLE IF NOT EXISTS queries (
		id TEXT PRIMARY KEY,
		words TEXT NOT NULL,
		top_n INTEGER NOT NULL,
		result_count INTEGER NOT NULL,
		error TEXT,
		duration_ms INTEGER NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_queries_created_at ON queries(created_at);
	`
	_, err := db.Exec(schema)
	return err
}

// SaveVocabulary replaces the stored word table in one transaction. Word ids are the
// slice positions.
func (s *SQLiteStorage) SaveVocabulary(ctx context.Context, v *Vocabulary) error {
	if len(v.Words) != len(v.Vectors) {
		return fmt.Errorf("vocabulary has %d words but %d vectors", len(v.Words), len(v.Vectors))
	}
	if v.ImportedAt.IsZero() {
		v.ImportedAt = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM words`); err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO words (id, word, vector) VALUES (?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, w := range v.Words {
		if len(v.Vectors[i]) != v.Dimensions {
			return fmt.Errorf("word %q has %d values, want %d", w, len(v.Vectors[i]), v.Dimensions)
		}
		if _, err := stmt.ExecContext(ctx, i, w, EncodeVector(v.Vectors[i])); err != nil {
			return fmt.Errorf("insert word %q: %w", w, err)
		}
	}

	meta := map[string]string{
		metaSource:     v.Source,
		metaDimensions: strconv.Itoa(v.Dimensions),
		metaImportedAt: v.ImportedAt.Format(time.RFC3339Nano),
	}
	for k, val := range meta {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO meta (key, value) VALUES (?, ?)
			 ON CONFLICT(key) DO UPDATE SET value = excluded.value`, k, val); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// LoadVocabulary reads the stored word table in id order.
func (s *SQLiteStorage) LoadVocabulary(ctx context.Context) (*Vocabulary, error) {
	meta, err := s.readMeta(ctx)
	if err != nil {
		return nil, err
	}
	dimStr, ok := meta[metaDimensions]
	if !ok {
		return nil, ErrNoVocabulary
	}
	dim, err := strconv.Atoi(dimStr)
	if err != nil {
		return nil, fmt.Errorf("invalid stored dimensions %q: %w", dimStr, err)
	}
	v := &Vocabulary{Source: meta[metaSource], Dimensions: dim}
	if ts, ok := meta[metaImportedAt]; ok {
		v.ImportedAt, _ = time.Parse(time.RFC3339Nano, ts)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT word, vector FROM words ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var word string
		var blob []byte
		if err := rows.Scan(&word, &blob); err != nil {
			return nil, err
		}
		vec, err := DecodeVector(blob)
		if err != nil {
			return nil, fmt.Errorf("word %q: %w", word, err)
		}
		if len(vec) != dim {
			return nil, fmt.Errorf("word %q has %d values, want %d", word, len(vec), dim)
		}
		v.Words = append(v.Words, word)
		v.Vectors = append(v.Vectors, vec)
	}
	return v, rows.Err()
}

func (s *SQLiteStorage) readMeta(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM meta`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	meta := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		meta[k] = v
	}
	return meta, rows.Err()
}

// CountWords returns the number of stored words.
func (s *SQLiteStorage) CountWords(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM words`).Scan(&count)
	return count, err
}

// LogQuery records a similarity request. An empty ID gets a fresh UUID.
func (s *SQLiteStorage) LogQuery(ctx context.Context, entry *models.QueryLogEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	wordsJSON, err := json.Marshal(entry.Words)
	if err != nil {
		return fmt.Errorf("failed to marshal words: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO queries (id, words, top_n, result_count, error, duration_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, string(wordsJSON), entry.TopN, entry.ResultCount, entry.Error, entry.DurationMs, entry.CreatedAt,
	)
	return err
}

// RecentQueries returns up to limit logged queries, newest first.
func (s *SQLiteStorage) RecentQueries(ctx context.Context, limit int) ([]*models.QueryLogEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, words, top_n, result_count, error, duration_ms, created_at
		 FROM queries ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*models.QueryLogEntry
	for rows.Next() {
		var e models.QueryLogEntry
		var wordsJSON string
		var errMsg sql.NullString
		if err := rows.Scan(&e.ID, &wordsJSON, &e.TopN, &e.ResultCount, &errMsg, &e.DurationMs, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Error = errMsg.String
		if err := json.Unmarshal([]byte(wordsJSON), &e.Words); err != nil {
			return nil, fmt.Errorf("failed to unmarshal words: %w", err)
		}
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

