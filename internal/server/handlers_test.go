package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/hyperjump/ruiji/internal/config"
	"github.com/hyperjump/ruiji/internal/embedding"
	"github.com/hyperjump/ruiji/internal/models"
	"github.com/hyperjump/ruiji/internal/search"
	"github.com/hyperjump/ruiji/internal/storage"
)

const testVectors = `cat 1 0
dog 0.9 0.1
car 0 1
zero 0 0
`

type fixedLoader struct{ idx *embedding.Index }

func (l fixedLoader) Load(context.Context) (*embedding.Index, error) { return l.idx, nil }
func (l fixedLoader) Source() string                                  { return "fixed" }
func (l fixedLoader) Format() string                                  { return config.FormatText }

func newTestServer(t *testing.T, opts ...search.EngineOption) *Server {
	t.Helper()
	idx, err := embedding.Parse(strings.NewReader(testVectors))
	if err != nil {
		t.Fatal(err)
	}
	opts = append([]search.EngineOption{search.WithLoader(fixedLoader{idx})}, opts...)
	engine, err := search.NewEngine(idx, opts...)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = engine.Close() })
	return NewServer(engine, &config.ServerConfig{Host: "localhost", Port: 0}, zap.NewNop())
}

func do(t *testing.T, srv *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var r *http.Request
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		r = httptest.NewRequest(method, path, bytes.NewReader(b))
		r.Header.Set("Content-Type", "application/json")
	} else {
		r = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, r)
	return w
}

func TestHandleHealth(t *testing.T) {
	w := do(t, newTestServer(t), http.MethodGet, "/health", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var body map[string]string
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil || body["status"] != "ok" {
		t.Errorf("body = %v, %v", body, err)
	}
}

func TestHandleSimilar(t *testing.T) {
	srv := newTestServer(t)
	w := do(t, srv, http.MethodPost, "/api/v1/similar", map[string]interface{}{"words": []string{"cat"}, "top_n": 2})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %s", ct)
	}
	var resp models.SimilarityResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Neighbors) != 2 || resp.Neighbors[0].Word != "cat" || resp.Neighbors[1].Word != "dog" {
		t.Errorf("neighbors = %+v", resp.Neighbors)
	}
	if resp.Neighbors[1].Score < 0.99 || resp.Neighbors[1].Score > 1 {
		t.Errorf("dog score = %f", resp.Neighbors[1].Score)
	}
}

func TestHandleSimilar_Errors(t *testing.T) {
	srv := newTestServer(t)
	tests := []struct {
		name   string
		body   interface{}
		status int
	}{
		{"unknown word", map[string]interface{}{"words": []string{"cta"}}, http.StatusNotFound},
		{"zero vector", map[string]interface{}{"words": []string{"zero"}}, http.StatusUnprocessableEntity},
		{"empty words", map[string]interface{}{"words": []string{}}, http.StatusBadRequest},
		{"negative top_n", map[string]interface{}{"words": []string{"cat"}, "top_n": -2}, http.StatusBadRequest},
		{"unknown field", map[string]interface{}{"wrods": []string{"cat"}}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, srv, http.MethodPost, "/api/v1/similar", tt.body)
			if w.Code != tt.status {
				t.Errorf("status = %d, want %d (%s)", w.Code, tt.status, w.Body.String())
			}
			var body models.ErrorResponse
			if err := json.NewDecoder(w.Body).Decode(&body); err != nil || body.Error == "" {
				t.Errorf("error body = %+v, %v", body, err)
			}
		})
	}

	r := httptest.NewRequest(http.MethodPost, "/api/v1/similar", strings.NewReader("{not json"))
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, r)
	if w.Code != http.StatusBadRequest {
		t.Errorf("malformed body: status = %d", w.Code)
	}
}

func TestHandleSimilar_UnknownWordSuggestions(t *testing.T) {
	w := do(t, newTestServer(t), http.MethodPost, "/api/v1/similar", map[string]interface{}{"query": "cat dgo"})
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d", w.Code)
	}
	var body models.ErrorResponse
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if len(body.Unknown) != 1 || body.Unknown[0] != "dgo" {
		t.Errorf("unknown = %v", body.Unknown)
	}
	if s := body.Suggestions["dgo"]; len(s) == 0 || s[0] != "dog" {
		t.Errorf("suggestions = %v", body.Suggestions)
	}
}

func TestHandleLookup(t *testing.T) {
	srv := newTestServer(t)
	w := do(t, srv, http.MethodGet, "/api/v1/words/dog", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var wv models.WordVector
	if err := json.NewDecoder(w.Body).Decode(&wv); err != nil {
		t.Fatal(err)
	}
	if wv.Word != "dog" || wv.ID != 1 || len(wv.Vector) != 2 || wv.Vector[0] != 0.9 {
		t.Errorf("word vector = %+v", wv)
	}

	if w := do(t, srv, http.MethodGet, "/api/v1/words/Dog", nil); w.Code != http.StatusNotFound {
		t.Errorf("case-sensitive miss: status = %d", w.Code)
	}
}

func TestHandleLookup_EscapedWords(t *testing.T) {
	idx, err := embedding.Parse(strings.NewReader("1/2 1 0\nw/ 0 1\n100% 1 1\nnaïve 0.5 0.5\n"))
	if err != nil {
		t.Fatal(err)
	}
	engine, err := search.NewEngine(idx)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = engine.Close() })
	srv := NewServer(engine, &config.ServerConfig{Host: "localhost"}, zap.NewNop())

	for _, word := range idx.Words() {
		t.Run(word, func(t *testing.T) {
			w := do(t, srv, http.MethodGet, "/api/v1/words/"+url.PathEscape(word), nil)
			if w.Code != http.StatusOK {
				t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
			}
			var wv models.WordVector
			if err := json.NewDecoder(w.Body).Decode(&wv); err != nil {
				t.Fatal(err)
			}
			if wv.Word != word {
				t.Errorf("word = %q, want %q", wv.Word, word)
			}
		})
	}
}

func TestHandleMatrix(t *testing.T) {
	srv := newTestServer(t)
	w := do(t, srv, http.MethodPost, "/api/v1/matrix", map[string]interface{}{"words": []string{"car", "bus"}})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp models.MatrixResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Hits != 1 || len(resp.Rows) != 2 || resp.Rows[0][1] != 1 || resp.Rows[1][0] != 0 {
		t.Errorf("matrix = %+v", resp)
	}

	if w := do(t, srv, http.MethodPost, "/api/v1/matrix", map[string]interface{}{"words": []string{}}); w.Code != http.StatusBadRequest {
		t.Errorf("empty words: status = %d", w.Code)
	}
}

func TestHandleStatusAndReload(t *testing.T) {
	srv := newTestServer(t)
	w := do(t, srv, http.MethodGet, "/api/v1/status", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var st models.Status
	if err := json.NewDecoder(w.Body).Decode(&st); err != nil {
		t.Fatal(err)
	}
	if st.Words != 4 || st.Dimensions != 2 || st.Source != "fixed" || !st.Suggestions {
		t.Errorf("status = %+v", st)
	}

	w = do(t, srv, http.MethodPost, "/api/v1/reload", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("reload status = %d", w.Code)
	}
	var after models.Status
	if err := json.NewDecoder(w.Body).Decode(&after); err != nil {
		t.Fatal(err)
	}
	if after.Generation != st.Generation+1 {
		t.Errorf("generation %d -> %d", st.Generation, after.Generation)
	}
}

func TestHandleQueries(t *testing.T) {
	store, err := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "ruiji.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	srv := newTestServer(t, search.WithStorage(store), search.WithQueryConfig(config.QueryConfig{LogQueries: true}))

	do(t, srv, http.MethodPost, "/api/v1/similar", map[string]interface{}{"words": []string{"cat"}})
	do(t, srv, http.MethodPost, "/api/v1/similar", map[string]interface{}{"words": []string{"car"}})

	w := do(t, srv, http.MethodGet, "/api/v1/queries?limit=1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var body struct {
		Queries []*models.QueryLogEntry `json:"queries"`
	}
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if len(body.Queries) != 1 || body.Queries[0].ID == "" {
		t.Errorf("queries = %+v", body.Queries)
	}

	if w := do(t, srv, http.MethodGet, "/api/v1/queries?limit=zero", nil); w.Code != http.StatusBadRequest {
		t.Errorf("bad limit: status = %d", w.Code)
	}

	noStore := newTestServer(t)
	w = do(t, noStore, http.MethodGet, "/api/v1/queries", nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"queries":[]`) {
		t.Errorf("without storage: %d %s", w.Code, w.Body.String())
	}
}
