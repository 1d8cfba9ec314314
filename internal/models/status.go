package models

import "time"

// QueryLogEntry records one similarity request.
type QueryLogEntry struct {
	ID          string    `json:"id"`
	Words       []string  `json:"words"`
	TopN        int       `json:"top_n"`
	ResultCount int       `json:"result_count"`
	Error       string    `json:"error,omitempty"`
	DurationMs  int64     `json:"duration_ms"`
	CreatedAt   time.Time `json:"created_at"`
}

// Status describes the currently served vocabulary.
type Status struct {
	Source       string    `json:"source"`
	Format       string    `json:"format"`
	Words        int       `json:"words"`
	Dimensions   int       `json:"dimensions"`
	Duplicates   int       `json:"duplicates"`
	Truncated    bool      `json:"truncated"`
	LoadedAt     time.Time `json:"loaded_at"`
	Generation   uint64    `json:"generation"`
	CacheEntries int       `json:"cache_entries"`
	SourceBytes  int64     `json:"source_bytes"`
	StoredWords  int64     `json:"stored_words,omitempty"`
	Suggestions  bool      `json:"suggestions"`
}
