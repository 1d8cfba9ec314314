package models

// Neighbor is one ranked similarity hit.
type Neighbor struct {
	Word  string  `json:"word"`
	ID    int     `json:"id"`
	Score float64 `json:"score"`
	Rank  int     `json:"rank"`
}

// SimilarityResponse is the response for a similarity request.
type SimilarityResponse struct {
	Query     []string    `json:"query"`
	TopN      int         `json:"top_n"`
	Neighbors []*Neighbor `json:"neighbors"`
	Total     int         `json:"total"`
	QueryTime int64       `json:"query_time_ms"`
	// Cached is set when the neighbours came from the result cache.
	Cached bool `json:"cached,omitempty"`
}

// WordVector is the stored vector of one vocabulary word.
type WordVector struct {
	Word       string    `json:"word"`
	ID         int       `json:"id"`
	Dimensions int       `json:"dimensions"`
	Vector     []float32 `json:"vector"`
}

// MatrixResponse holds one row per requested word; unknown words get zero rows.
type MatrixResponse struct {
	Words      []string    `json:"words"`
	Rows       [][]float32 `json:"rows"`
	Hits       int         `json:"hits"`
	Dimensions int         `json:"dimensions"`
}

// ErrorResponse is the JSON body of a failed API call.
type ErrorResponse struct {
	Error string `json:"error"`
	// Unknown lists query words missing from the vocabulary.
	Unknown []string `json:"unknown,omitempty"`
	// Suggestions maps each unknown word to close vocabulary words ("did you mean").
	Suggestions map[string][]string `json:"suggestions,omitempty"`
}
