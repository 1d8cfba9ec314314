package search

import (
	"context"
	"fmt"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/hyperjump/ruiji/internal/config"
	"github.com/hyperjump/ruiji/internal/embedding"
	"github.com/hyperjump/ruiji/internal/storage"
)

// IndexLoader builds a fresh index from wherever the vectors live.
type IndexLoader interface {
	Load(ctx context.Context) (*embedding.Index, error)
	// Source names what Load reads, for status output.
	Source() string
	Format() string
}

// Loader reads an index in the configured format: the text file, a binary snapshot,
// or the table imported into SQLite.
type Loader struct {
	cfg    config.EmbeddingConfig
	store  storage.Storage
	logger *zap.Logger
}

// NewLoader creates a Loader. store is required only for the sqlite format.
func NewLoader(cfg config.EmbeddingConfig, store storage.Storage, logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{cfg: cfg, store: store, logger: logger}
}

// Format returns the configured format.
func (l *Loader) Format() string {
	return l.cfg.Format
}

// Source returns the file the loader reads, or "sqlite" for the database format.
func (l *Loader) Source() string {
	switch l.cfg.Format {
	case config.FormatSnapshot:
		return l.cfg.SnapshotPath
	case config.FormatSQLite:
		return config.FormatSQLite
	default:
		return l.cfg.Path
	}
}

// WatchPath returns the file whose changes should trigger a reload, or "" when the
// format has no single source file.
func (l *Loader) WatchPath() string {
	if l.cfg.Format == config.FormatSQLite {
		return ""
	}
	return l.Source()
}

// Load builds a new index.
func (l *Loader) Load(ctx context.Context) (*embedding.Index, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	switch l.cfg.Format {
	case config.FormatSnapshot:
		return embedding.LoadSnapshot(l.cfg.SnapshotPath)
	case config.FormatSQLite:
		if l.store == nil {
			return nil, fmt.Errorf("sqlite format requires a database")
		}
		v, err := l.store.LoadVocabulary(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load vocabulary from database: %w", err)
		}
		l.logger.Info("Loaded vocabulary from database",
			zap.String("source", v.Source), zap.Int("words", len(v.Words)), zap.Int("dimensions", v.Dimensions))
		return IndexFromVocabulary(v)
	case config.FormatText, "":
		return embedding.Load(l.cfg.Path, l.textOptions()...)
	default:
		return nil, fmt.Errorf("unknown embedding format %q", l.cfg.Format)
	}
}

// LoadText always parses the text file, whatever the configured format. Import uses it.
func (l *Loader) LoadText() (*embedding.Index, error) {
	return embedding.Load(l.cfg.Path, l.textOptions()...)
}

func (l *Loader) textOptions() []embedding.LoadOption {
	opts := []embedding.LoadOption{embedding.WithLogger(l.logger)}
	if l.cfg.Dimensions > 0 {
		opts = append(opts, embedding.WithDimensions(l.cfg.Dimensions))
	}
	if l.cfg.MaxWords > 0 {
		opts = append(opts, embedding.WithMaxWords(l.cfg.MaxWords))
	}
	return opts
}

// VocabularyFromIndex copies an index into the storage representation.
func VocabularyFromIndex(idx *embedding.Index, source string) *storage.Vocabulary {
	words := idx.Words()
	vectors := make([][]float32, len(words))
	for i, w := range words {
		vectors[i], _ = idx.Lookup(w)
	}
	return &storage.Vocabulary{
		Source:     filepath.Base(source),
		Dimensions: idx.Dimensions(),
		Words:      words,
		Vectors:    vectors,
	}
}

// IndexFromVocabulary builds an index from a stored vocabulary.
func IndexFromVocabulary(v *storage.Vocabulary) (*embedding.Index, error) {
	return embedding.New(v.Words, v.Vectors)
}

// Import parses the text file and writes it to the database, the snapshot, or both.
func Import(ctx context.Context, l *Loader, toDatabase, toSnapshot bool) (*embedding.Index, error) {
	idx, err := l.LoadText()
	if err != nil {
		return nil, err
	}
	if toDatabase {
		if l.store == nil {
			return nil, fmt.Errorf("database import requires a database")
		}
		if err := l.store.SaveVocabulary(ctx, VocabularyFromIndex(idx, l.cfg.Path)); err != nil {
			return nil, fmt.Errorf("failed to import into database: %w", err)
		}
		l.logger.Info("Imported vocabulary into database", zap.Int("words", idx.Len()))
	}
	if toSnapshot {
		if err := embedding.SaveSnapshot(l.cfg.SnapshotPath, idx); err != nil {
			return nil, fmt.Errorf("failed to write snapshot: %w", err)
		}
		l.logger.Info("Wrote snapshot", zap.String("path", l.cfg.SnapshotPath), zap.Int("words", idx.Len()))
	}
	return idx, nil
}
