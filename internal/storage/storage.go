// Package storage persists imported vocabularies and the query log.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/hyperjump/ruiji/internal/models"
)

// ErrNoVocabulary is returned by LoadVocabulary when nothing has been imported.
var ErrNoVocabulary = errors.New("no vocabulary imported")

// Vocabulary is a word table in id order together with its import metadata.
type Vocabulary struct {
	Source     string
	Dimensions int
	Words      []string
	Vectors    [][]float32
	ImportedAt time.Time
}

// Storage defines vocabulary and query log persistence operations.
type Storage interface {
	// Vocabulary operations
	SaveVocabulary(ctx context.Context, v *Vocabulary) error
	LoadVocabulary(ctx context.Context) (*Vocabulary, error)
	CountWords(ctx context.Context) (int64, error)

	// Query log
	LogQuery(ctx context.Context, entry *models.QueryLogEntry) error
	RecentQueries(ctx context.Context, limit int) ([]*models.QueryLogEntry, error)

	Close() error
}
