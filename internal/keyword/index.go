// Package keyword provides "did you mean" suggestions over an embedding vocabulary.
package keyword

// TermDictionary provides access to the known terms for spell checking.
// This interface allows dependency injection for testing.
type TermDictionary interface {
	// GetAllTerms returns all known terms.
	GetAllTerms() ([]string, error)
	// GetTermFrequency returns a popularity weight for a term (higher is more common).
	GetTermFrequency(term string) (int, error)
	// ContainsTerm checks if a term exists (exact match).
	ContainsTerm(term string) (bool, error)
}

// CandidateSource narrows the dictionary to terms that may be within maxDistance edits of
// term, so a large vocabulary does not have to be scanned linearly.
type CandidateSource interface {
	Candidates(term string, maxDistance, limit int) ([]string, error)
}
