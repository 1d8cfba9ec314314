// Package search serves similarity queries over the current embedding index.
package search

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/ruiji/internal/config"
	"github.com/hyperjump/ruiji/internal/embedding"
	"github.com/hyperjump/ruiji/internal/keyword"
	"github.com/hyperjump/ruiji/internal/models"
	"github.com/hyperjump/ruiji/internal/storage"
)

// ErrInvalidQuery wraps request validation failures.
var ErrInvalidQuery = errors.New("invalid query")

// snapshot is one immutable generation of served state.
type snapshot struct {
	index      *embedding.Index
	vocab      *keyword.VocabIndex
	speller    *keyword.SpellChecker
	loadedAt   time.Time
	generation uint64
}

// Engine answers lookups and similarity queries. The served index is swapped atomically
// on reload; readers never block.
type Engine struct {
	current    atomic.Pointer[snapshot]
	generation atomic.Uint64
	reloadMu   sync.Mutex

	loader  IndexLoader
	store   storage.Storage
	cache   *ResultCache
	logger  *zap.Logger
	query   config.QueryConfig
	suggest config.SuggestConfig
	paths   []string
}

// EngineOption is a functional option for configuring Engine.
type EngineOption func(*Engine)

// WithLoader sets the loader used by Reload.
func WithLoader(l IndexLoader) EngineOption {
	return func(e *Engine) {
		e.loader = l
	}
}

// WithStorage enables the query log and stored word counts.
func WithStorage(s storage.Storage) EngineOption {
	return func(e *Engine) {
		e.store = s
	}
}

// WithLogger sets the logger. Nil means no logging.
func WithLogger(l *zap.Logger) EngineOption {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithQueryConfig sets top_n limits, cache size and query logging.
func WithQueryConfig(cfg config.QueryConfig) EngineOption {
	return func(e *Engine) {
		e.query = cfg
	}
}

// WithSuggestConfig sets the "did you mean" settings.
func WithSuggestConfig(cfg config.SuggestConfig) EngineOption {
	return func(e *Engine) {
		e.suggest = cfg
	}
}

// WithDiskPaths lists files whose size is reported by Status.
func WithDiskPaths(paths ...string) EngineOption {
	return func(e *Engine) {
		e.paths = paths
	}
}

// NewEngine creates an engine serving idx.
func NewEngine(idx *embedding.Index, opts ...EngineOption) (*Engine, error) {
	if idx == nil {
		return nil, fmt.Errorf("index is required")
	}
	e := &Engine{
		logger: zap.NewNop(),
		query: config.QueryConfig{
			DefaultTopN: models.DefaultTopN,
			MaxTopN:     models.MaxTopN,
		},
		suggest: config.SuggestConfig{MaxDistance: 2, MaxSuggestions: 5},
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.query.CacheSize > 0 {
		e.cache = NewResultCache(e.query.CacheSize)
	}
	if err := e.Swap(idx); err != nil {
		return nil, err
	}
	return e, nil
}

// Index returns the index currently served.
func (e *Engine) Index() *embedding.Index {
	return e.current.Load().index
}

// Swap serves idx from now on. In-flight queries finish on the index they started with.
func (e *Engine) Swap(idx *embedding.Index) error {
	if idx == nil {
		return fmt.Errorf("index is required")
	}
	next := &snapshot{
		index:      idx,
		loadedAt:   time.Now().UTC(),
		generation: e.generation.Add(1),
	}
	if e.suggest.EnabledOrDefault() {
		vocab, err := keyword.NewVocabIndex(idx.Words())
		if err != nil {
			// Suggestions are optional; serve without them.
			e.logger.Warn("Failed to build vocabulary index, suggestions disabled", zap.Error(err))
		} else {
			next.vocab = vocab
			next.speller = keyword.NewSpellChecker(vocab,
				keyword.WithMaxDistance(e.suggest.MaxDistance),
				keyword.WithMaxSuggestions(e.suggest.MaxSuggestions),
				keyword.WithTranspositions(true),
			)
		}
	}

	prev := e.current.Swap(next)
	if e.cache != nil {
		e.cache.Purge()
	}
	if prev != nil && prev.vocab != nil {
		if err := prev.vocab.Close(); err != nil {
			e.logger.Warn("Failed to close previous vocabulary index", zap.Error(err))
		}
	}
	e.logger.Info("Serving embedding index",
		zap.Int("words", idx.Len()),
		zap.Int("dimensions", idx.Dimensions()),
		zap.Uint64("generation", next.generation),
	)
	return nil
}

// Reload builds a new index with the loader and swaps it in. On failure the current
// index keeps serving. Concurrent reloads are serialized.
func (e *Engine) Reload(ctx context.Context) error {
	if e.loader == nil {
		return fmt.Errorf("engine has no loader")
	}
	e.reloadMu.Lock()
	defer e.reloadMu.Unlock()

	start := time.Now()
	idx, err := e.loader.Load(ctx)
	if err != nil {
		e.logger.Error("Reload failed, keeping current index", zap.Error(err))
		return fmt.Errorf("reload failed: %w", err)
	}
	if err := e.Swap(idx); err != nil {
		return err
	}
	e.logger.Info("Reloaded embedding index", zap.Duration("took", time.Since(start)))
	return nil
}

// Similar answers a similarity query. Validation failures wrap ErrInvalidQuery; lookup
// failures are the embedding package's typed errors.
func (e *Engine) Similar(ctx context.Context, q *models.SimilarityQuery) (*models.SimilarityResponse, error) {
	start := time.Now()
	if err := q.Validate(e.query.DefaultTopN, e.query.MaxTopN); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidQuery, err)
	}
	cur := e.current.Load()

	var (
		neighbors []models.Neighbor
		cached    bool
		err       error
	)
	key := cacheKey(cur.generation, q.Words, q.TopN)
	if e.cache != nil {
		neighbors, cached = e.cache.Get(key)
	}
	if !cached {
		var hits []embedding.Neighbor
		hits, err = cur.index.MostSimilar(q.Words, q.TopN)
		if err == nil {
			neighbors = make([]models.Neighbor, len(hits))
			for i, h := range hits {
				neighbors[i] = models.Neighbor{Word: h.Word, ID: h.ID, Score: h.Score, Rank: i + 1}
			}
			if e.cache != nil {
				e.cache.Set(key, neighbors)
			}
		}
	}
	elapsed := time.Since(start)
	e.logQuery(ctx, q, len(neighbors), elapsed, err)
	if err != nil {
		e.logger.Debug("Similarity query failed", zap.Strings("words", q.Words), zap.Error(err))
		return nil, err
	}

	resp := &models.SimilarityResponse{
		Query:     q.Words,
		TopN:      q.TopN,
		Neighbors: make([]*models.Neighbor, len(neighbors)),
		Total:     len(neighbors),
		QueryTime: elapsed.Milliseconds(),
		Cached:    cached,
	}
	for i := range neighbors {
		n := neighbors[i]
		resp.Neighbors[i] = &n
	}
	return resp, nil
}

// Lookup returns the stored vector of word, or an *embedding.UnknownWordError.
func (e *Engine) Lookup(word string) (*models.WordVector, error) {
	idx := e.current.Load().index
	vec, ok := idx.Lookup(word)
	if !ok {
		return nil, &embedding.UnknownWordError{Words: []string{word}}
	}
	id, _ := idx.ID(word)
	return &models.WordVector{Word: word, ID: id, Dimensions: len(vec), Vector: vec}, nil
}

// Matrix returns embedding rows for req.Words; unknown words get zero rows.
func (e *Engine) Matrix(req *models.MatrixRequest) (*models.MatrixResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidQuery, err)
	}
	idx := e.current.Load().index
	rows, hits := idx.EmbeddingMatrix(req.Words)
	return &models.MatrixResponse{
		Words:      req.Words,
		Rows:       rows,
		Hits:       hits,
		Dimensions: idx.Dimensions(),
	}, nil
}

// Suggest returns close vocabulary words for each of words that has any. It returns nil
// when suggestions are disabled.
func (e *Engine) Suggest(words []string) map[string][]string {
	cur := e.current.Load()
	if cur.speller == nil || len(words) == 0 {
		return nil
	}
	sugg, err := cur.speller.SuggestAll(words)
	if err != nil {
		// The vocabulary index may have been closed by a concurrent reload.
		e.logger.Debug("Suggestion lookup failed", zap.Error(err))
		return nil
	}
	if len(sugg) == 0 {
		return nil
	}
	return sugg
}

// Status describes the served index.
func (e *Engine) Status(ctx context.Context) *models.Status {
	cur := e.current.Load()
	stats := cur.index.Stats()
	st := &models.Status{
		Words:       cur.index.Len(),
		Dimensions:  cur.index.Dimensions(),
		Duplicates:  stats.Duplicates,
		Truncated:   stats.Truncated,
		LoadedAt:    cur.loadedAt,
		Generation:  cur.generation,
		Suggestions: cur.speller != nil,
	}
	if e.loader != nil {
		st.Source = e.loader.Source()
		st.Format = e.loader.Format()
	}
	if e.cache != nil {
		st.CacheEntries = e.cache.Len()
	}
	if n, err := storage.DiskUsageBytes(e.paths...); err == nil {
		st.SourceBytes = n
	} else {
		e.logger.Debug("Failed to measure disk usage", zap.Error(err))
	}
	if e.store != nil {
		if n, err := e.store.CountWords(ctx); err == nil {
			st.StoredWords = n
		}
	}
	return st
}

// RecentQueries returns the newest logged queries. It returns nil when there is no storage.
func (e *Engine) RecentQueries(ctx context.Context, limit int) ([]*models.QueryLogEntry, error) {
	if e.store == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 20
	}
	return e.store.RecentQueries(ctx, limit)
}

// Close releases the vocabulary index.
func (e *Engine) Close() error {
	cur := e.current.Load()
	if cur != nil && cur.vocab != nil {
		return cur.vocab.Close()
	}
	return nil
}

func (e *Engine) logQuery(ctx context.Context, q *models.SimilarityQuery, n int, took time.Duration, queryErr error) {
	if e.store == nil || !e.query.LogQueries {
		return
	}
	entry := &models.QueryLogEntry{
		Words:       q.Words,
		TopN:        q.TopN,
		ResultCount: n,
		DurationMs:  took.Milliseconds(),
	}
	if queryErr != nil {
		entry.ResultCount = 0
		entry.Error = queryErr.Error()
	}
	if err := e.store.LogQuery(ctx, entry); err != nil {
		e.logger.Warn("Failed to log query", zap.Error(err))
	}
}
