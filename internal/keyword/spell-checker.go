package keyword

import (
	"sort"
	"sync"
)

// candidateLimit bounds how many fuzzy matches are pulled from a CandidateSource
// before ranking.
const candidateLimit = 64

// Suggestion is a vocabulary word close to a word the caller asked for.
type Suggestion struct {
	Term      string  `json:"term"`
	Distance  int     `json:"distance"`
	Frequency int     `json:"frequency"`
	Score     float64 `json:"score"`
}

// SpellChecker suggests vocabulary words for unknown query words. Matching is
// case-sensitive, like vocabulary lookup.
type SpellChecker struct {
	dictionary     TermDictionary
	maxDistance    int
	minFreq        int
	maxSuggestions int
	transpositions bool

	termsMu sync.Mutex
	terms   []string
}

// SpellCheckerOption is a functional option for configuring SpellChecker.
type SpellCheckerOption func(*SpellChecker)

// WithMaxDistance sets the maximum edit distance for suggestions.
func WithMaxDistance(d int) SpellCheckerOption {
	return func(s *SpellChecker) {
		if d > 0 {
			s.maxDistance = d
		}
	}
}

// WithMinFrequency sets the minimum frequency weight a suggested word needs.
func WithMinFrequency(f int) SpellCheckerOption {
	return func(s *SpellChecker) {
		if f >= 0 {
			s.minFreq = f
		}
	}
}

// WithMaxSuggestions sets the maximum number of suggestions to return per word.
func WithMaxSuggestions(n int) SpellCheckerOption {
	return func(s *SpellChecker) {
		if n > 0 {
			s.maxSuggestions = n
		}
	}
}

// WithTranspositions counts an adjacent swap as a single edit.
func WithTranspositions(enabled bool) SpellCheckerOption {
	return func(s *SpellChecker) {
		s.transpositions = enabled
	}
}

// NewSpellChecker creates a new SpellChecker with the given dictionary. When the
// dictionary also implements CandidateSource, candidates come from it instead of a
// full scan.
func NewSpellChecker(dict TermDictionary, opts ...SpellCheckerOption) *SpellChecker {
	s := &SpellChecker{
		dictionary:     dict,
		maxDistance:    2,
		minFreq:        1,
		maxSuggestions: 5,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Suggest returns up to maxSuggestions vocabulary words within maxDistance edits of
// term, best first. Words already in the vocabulary get no suggestions.
func (s *SpellChecker) Suggest(term string) ([]Suggestion, error) {
	if term == "" {
		return nil, nil
	}
	known, err := s.dictionary.ContainsTerm(term)
	if err != nil {
		return nil, err
	}
	if known {
		return nil, nil
	}

	candidates, err := s.candidates(term)
	if err != nil {
		return nil, err
	}

	termLen := len([]rune(term))
	var out []Suggestion
	for _, cand := range candidates {
		if cand == term {
			continue
		}
		if abs(len([]rune(cand))-termLen) > s.maxDistance {
			continue
		}
		dist := s.distance(term, cand)
		if dist > s.maxDistance {
			continue
		}
		freq, err := s.dictionary.GetTermFrequency(cand)
		if err != nil {
			return nil, err
		}
		if freq < s.minFreq {
			continue
		}
		out = append(out, Suggestion{
			Term:      cand,
			Distance:  dist,
			Frequency: freq,
			Score:     float64(freq) / float64(dist+1),
		})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Distance != out[j].Distance {
			return out[i].Distance < out[j].Distance
		}
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Term < out[j].Term
	})
	if len(out) > s.maxSuggestions {
		out = out[:s.maxSuggestions]
	}
	return out, nil
}

// SuggestAll returns suggestion terms for each word that has at least one.
func (s *SpellChecker) SuggestAll(words []string) (map[string][]string, error) {
	result := make(map[string][]string)
	for _, w := range words {
		if _, done := result[w]; done {
			continue
		}
		sugg, err := s.Suggest(w)
		if err != nil {
			return nil, err
		}
		if len(sugg) == 0 {
			continue
		}
		terms := make([]string, len(sugg))
		for i, sg := range sugg {
			terms[i] = sg.Term
		}
		result[w] = terms
	}
	return result, nil
}

// IsMisspelled reports whether term is missing from the vocabulary.
func (s *SpellChecker) IsMisspelled(term string) bool {
	ok, err := s.dictionary.ContainsTerm(term)
	return err == nil && !ok
}

func (s *SpellChecker) candidates(term string) ([]string, error) {
	if src, ok := s.dictionary.(CandidateSource); ok {
		return src.Candidates(term, s.maxDistance, candidateLimit)
	}
	s.termsMu.Lock()
	defer s.termsMu.Unlock()
	if s.terms == nil {
		terms, err := s.dictionary.GetAllTerms()
		if err != nil {
			return nil, err
		}
		s.terms = terms
	}
	return s.terms, nil
}

func (s *SpellChecker) distance(a, b string) int {
	if s.transpositions {
		return OptimalStringAlignment(a, b)
	}
	return LevenshteinDistance(a, b)
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
