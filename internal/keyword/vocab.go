package keyword

import (
	"fmt"

	"github.com/blevesearch/bleve/v2"
	keywordanalyzer "github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
)

const indexBatchSize = 1000

// VocabIndex is an in-memory Bleve index over vocabulary words. It implements
// TermDictionary and CandidateSource. Word rank is the vocabulary id; pre-trained files list
// frequent words first, so lower ranks get higher frequency weights.
type VocabIndex struct {
	index bleve.Index
	words []string
	rank  map[string]int
}

type vocabDoc struct {
	Word string `json:"word"`
}

// NewVocabIndex indexes words (in vocabulary order) into a memory-only Bleve index.
func NewVocabIndex(words []string) (*VocabIndex, error) {
	im := bleve.NewIndexMapping()
	docMapping := bleve.NewDocumentMapping()
	// Keyword analyzer: one exact token per word, no lowercasing or stemming, so
	// fuzzy matches are computed against the word exactly as it appears in the file.
	wordField := bleve.NewTextFieldMapping()
	wordField.Analyzer = keywordanalyzer.Name
	wordField.Store = false
	wordField.IncludeInAll = false
	docMapping.AddFieldMappingsAt("word", wordField)
	im.DefaultMapping = docMapping

	index, err := bleve.NewMemOnly(im)
	if err != nil {
		return nil, fmt.Errorf("failed to create vocabulary index: %w", err)
	}
	v := &VocabIndex{
		index: index,
		words: append([]string(nil), words...),
		rank:  make(map[string]int, len(words)),
	}
	batch := index.NewBatch()
	for i, w := range words {
		v.rank[w] = i
		if err := batch.Index(w, vocabDoc{Word: w}); err != nil {
			_ = index.Close()
			return nil, fmt.Errorf("index word %q: %w", w, err)
		}
		if batch.Size() >= indexBatchSize {
			if err := index.Batch(batch); err != nil {
				_ = index.Close()
				return nil, fmt.Errorf("index batch: %w", err)
			}
			batch.Reset()
		}
	}
	if batch.Size() > 0 {
		if err := index.Batch(batch); err != nil {
			_ = index.Close()
			return nil, fmt.Errorf("index batch: %w", err)
		}
	}
	return v, nil
}

// Candidates runs a fuzzy term query and returns up to limit matching words.
func (v *VocabIndex) Candidates(term string, maxDistance, limit int) ([]string, error) {
	if term == "" || limit <= 0 {
		return nil, nil
	}
	if maxDistance > 2 {
		// Bleve caps fuzziness at 2.
		maxDistance = 2
	}
	fq := bleve.NewFuzzyQuery(term)
	fq.SetField("word")
	fq.SetFuzziness(maxDistance)
	req := bleve.NewSearchRequest(fq)
	req.Size = limit
	res, err := v.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("vocabulary fuzzy search failed: %w", err)
	}
	out := make([]string, len(res.Hits))
	for i, hit := range res.Hits {
		out[i] = hit.ID
	}
	return out, nil
}

// GetAllTerms returns every word in vocabulary order.
func (v *VocabIndex) GetAllTerms() ([]string, error) {
	return append([]string(nil), v.words...), nil
}

// GetTermFrequency returns a weight derived from vocabulary rank: N for the first word,
// 1 for the last, 0 for unknown words.
func (v *VocabIndex) GetTermFrequency(term string) (int, error) {
	r, ok := v.rank[term]
	if !ok {
		return 0, nil
	}
	return len(v.words) - r, nil
}

// ContainsTerm reports whether term is in the vocabulary.
func (v *VocabIndex) ContainsTerm(term string) (bool, error) {
	_, ok := v.rank[term]
	return ok, nil
}

// DocCount returns the number of indexed words.
func (v *VocabIndex) DocCount() (uint64, error) {
	return v.index.DocCount()
}

// Close releases the index.
func (v *VocabIndex) Close() error {
	return v.index.Close()
}
