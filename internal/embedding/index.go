// Package embedding loads pre-trained word vectors and answers lookup and
// cosine-similarity queries over them.
//
// An Index is built once (from a GloVe-style text file, a binary snapshot, or an
// in-memory table) and is immutable afterwards, so it can be shared by any number of
// concurrent readers without locking.
package embedding

import (
	"fmt"

	"github.com/hyperjump/ruiji/internal/vector"
)

// DefaultTopN is the number of neighbours returned when callers do not choose one.
const DefaultTopN = 10

// Neighbor is one similarity hit.
type Neighbor struct {
	Word  string
	ID    int
	Score float64
}

// LoadStats describes how an Index was built.
type LoadStats struct {
	Lines      int // non-blank lines read
	Duplicates int // repeated words skipped (first occurrence wins)
	Truncated  bool
}

// Index is a read-only vocabulary with its raw and row-normalized embedding matrices.
type Index struct {
	words []string
	ids   map[string]int
	raw   *vector.Matrix
	unit  *vector.Matrix
	stats LoadStats
}

// New builds an Index from parallel words and vectors slices. Word ids follow slice order.
// Words must be distinct and every vector must have the same, positive length.
func New(words []string, vectors [][]float32) (*Index, error) {
	if len(words) != len(vectors) {
		return nil, fmt.Errorf("words and vectors length mismatch: %d != %d", len(words), len(vectors))
	}
	dim := 0
	if len(vectors) > 0 {
		dim = len(vectors[0])
	}
	b, err := newBuilder(dim, len(words))
	if err != nil {
		return nil, err
	}
	for i, w := range words {
		if _, dup := b.ids[w]; dup {
			return nil, fmt.Errorf("duplicate word %q at row %d", w, i)
		}
		if err := b.add(w, vectors[i]); err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
	}
	return b.build(), nil
}

// builder accumulates rows before the normalized matrix is derived.
type builder struct {
	words []string
	ids   map[string]int
	raw   *vector.Matrix
	stats LoadStats
}

func newBuilder(dim, capacity int) (*builder, error) {
	b := &builder{ids: make(map[string]int, capacity)}
	if dim > 0 {
		m, err := vector.NewMatrix(dim, capacity)
		if err != nil {
			return nil, err
		}
		b.raw = m
	} else if capacity > 0 {
		return nil, fmt.Errorf("%w: vectors must have at least one value", ErrDimensionMismatch)
	}
	return b, nil
}

func (b *builder) add(word string, vec []float32) error {
	if b.raw == nil || len(vec) != b.raw.Dimensions() {
		want := 0
		if b.raw != nil {
			want = b.raw.Dimensions()
		}
		return fmt.Errorf("%w: got %d, expected %d", ErrDimensionMismatch, len(vec), want)
	}
	if err := b.raw.Append(vec); err != nil {
		return err
	}
	b.ids[word] = len(b.words)
	b.words = append(b.words, word)
	return nil
}

func (b *builder) build() *Index {
	idx := &Index{
		words: b.words,
		ids:   b.ids,
		raw:   b.raw,
		stats: b.stats,
	}
	if b.raw != nil {
		idx.unit = b.raw.Normalized()
	}
	return idx
}

// Len returns the vocabulary size N.
func (idx *Index) Len() int {
	return len(idx.words)
}

// Dimensions returns the vector width D (0 for an empty index with unknown width).
func (idx *Index) Dimensions() int {
	if idx.raw == nil {
		return 0
	}
	return idx.raw.Dimensions()
}

// Stats returns load statistics.
func (idx *Index) Stats() LoadStats {
	return idx.stats
}

// ID returns the vocabulary id of word.
func (idx *Index) ID(word string) (int, bool) {
	id, ok := idx.ids[word]
	return id, ok
}

// Word returns the word with the given id.
func (idx *Index) Word(id int) (string, bool) {
	if id < 0 || id >= len(idx.words) {
		return "", false
	}
	return idx.words[id], true
}

// Words returns a copy of the vocabulary in id order.
func (idx *Index) Words() []string {
	return append([]string(nil), idx.words...)
}

// Contains reports whether word is in the vocabulary (exact match).
func (idx *Index) Contains(word string) bool {
	_, ok := idx.ids[word]
	return ok
}

// Lookup returns a copy of the raw vector for word. The match is exact: no case folding,
// no partial matches.
func (idx *Index) Lookup(word string) ([]float32, bool) {
	id, ok := idx.ids[word]
	if !ok {
		return nil, false
	}
	return idx.raw.RowCopy(id), true
}

// MostSimilarWord is MostSimilar for a single word.
func (idx *Index) MostSimilarWord(word string, topN int) ([]Neighbor, error) {
	return idx.MostSimilar([]string{word}, topN)
}

// MostSimilar returns the topN vocabulary words closest by cosine similarity to the mean of
// the query words' vectors. Every query word must be in the vocabulary; unknown words fail
// the whole query with an *UnknownWordError rather than being skipped. Results are ordered
// by descending score, ties by ascending id. The query words themselves are not excluded.
func (idx *Index) MostSimilar(words []string, topN int) ([]Neighbor, error) {
	if len(words) == 0 {
		return nil, ErrEmptyQuery
	}
	if topN < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidTopN, topN)
	}
	query, err := idx.queryVector(words)
	if err != nil {
		return nil, err
	}
	unit, _, ok := vector.Normalize(query)
	if !ok {
		return nil, ErrDegenerateVector
	}
	hits, err := idx.unit.Search(unit, topN)
	if err != nil {
		return nil, err
	}
	out := make([]Neighbor, len(hits))
	for i, h := range hits {
		out[i] = Neighbor{Word: idx.words[h.Row], ID: h.Row, Score: h.Score}
	}
	return out, nil
}

// queryVector resolves words to raw rows and averages them.
func (idx *Index) queryVector(words []string) ([]float32, error) {
	rows := make([][]float32, 0, len(words))
	var unknown []string
	for _, w := range words {
		id, ok := idx.ids[w]
		if !ok {
			unknown = append(unknown, w)
			continue
		}
		rows = append(rows, idx.raw.Row(id))
	}
	if len(unknown) > 0 {
		return nil, &UnknownWordError{Words: unknown}
	}
	if len(rows) == 1 {
		return rows[0], nil
	}
	return vector.Mean(rows), nil
}

// EmbeddingMatrix returns one row per entry of vocab for initializing a downstream
// embedding layer: the raw vector for known words and a zero row for unknown ones.
// hits is the number of known words.
func (idx *Index) EmbeddingMatrix(vocab []string) (rows [][]float32, hits int) {
	dim := idx.Dimensions()
	rows = make([][]float32, len(vocab))
	for i, w := range vocab {
		if vec, ok := idx.Lookup(w); ok {
			rows[i] = vec
			hits++
			continue
		}
		rows[i] = make([]float32, dim)
	}
	return rows, hits
}
