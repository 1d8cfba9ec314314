// Package models defines the request and response types shared by the engine, the HTTP API and the CLI.
package models

import (
	"fmt"
	"strings"
)

const (
	// DefaultTopN is used when a request leaves top_n unset.
	DefaultTopN = 10
	// MaxTopN caps top_n when no tighter limit is configured.
	MaxTopN = 100
)

// SimilarityQuery asks for the nearest neighbours of the average of Words.
// Query is an alternative whitespace-separated form, merged into Words by Validate.
type SimilarityQuery struct {
	Words []string `json:"words,omitempty"`
	Query string   `json:"query,omitempty"`
	TopN  int      `json:"top_n,omitempty"`
}

// Validate merges Query into Words, rejects empty or negative requests and
// normalizes TopN to [1, maxTopN]. Zero TopN becomes defaultTopN. Non-positive limits
// fall back to DefaultTopN and MaxTopN.
func (q *SimilarityQuery) Validate(defaultTopN, maxTopN int) error {
	if q.Query != "" {
		q.Words = append(q.Words, strings.Fields(q.Query)...)
		q.Query = ""
	}
	words := q.Words[:0]
	for _, w := range q.Words {
		if w = strings.TrimSpace(w); w != "" {
			words = append(words, w)
		}
	}
	q.Words = words
	if len(q.Words) == 0 {
		return fmt.Errorf("query must contain at least one word")
	}
	if q.TopN < 0 {
		return fmt.Errorf("top_n must be positive, got %d", q.TopN)
	}
	if defaultTopN <= 0 {
		defaultTopN = DefaultTopN
	}
	if maxTopN <= 0 {
		maxTopN = MaxTopN
	}
	if q.TopN == 0 {
		q.TopN = min(defaultTopN, maxTopN)
	}
	if q.TopN > maxTopN {
		q.TopN = maxTopN
	}
	return nil
}

// MatrixRequest asks for the embedding rows of a vocabulary list.
type MatrixRequest struct {
	Words []string `json:"words"`
}

// Validate rejects an empty word list.
func (r *MatrixRequest) Validate() error {
	if len(r.Words) == 0 {
		return fmt.Errorf("words cannot be empty")
	}
	return nil
}
