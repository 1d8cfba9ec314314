package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hyperjump/ruiji/internal/embedding"
	"github.com/hyperjump/ruiji/internal/models"
	"github.com/hyperjump/ruiji/internal/search"
)

const maxBodyBytes = 1 << 20

func (s *Server) handleSimilar(w http.ResponseWriter, r *http.Request) {
	var query models.SimilarityQuery
	if err := decodeBody(w, r, &query); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.logger.Debug("similar request", zap.Strings("words", query.Words), zap.Int("top_n", query.TopN))
	resp, err := s.engine.Similar(r.Context(), &query)
	if err != nil {
		s.respondQueryError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleLookup(w http.ResponseWriter, r *http.Request) {
	word, err := wordParam(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid word in path")
		return
	}
	s.logger.Debug("lookup request", zap.String("word", word))
	wv, err := s.engine.Lookup(word)
	if err != nil {
		s.respondQueryError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, wv)
}

// wordParam returns the decoded {word} segment. chi routes on the escaped path when the
// request has one (a word containing "/" arrives as %2F), so the segment is unescaped then.
func wordParam(r *http.Request) (string, error) {
	word := chi.URLParam(r, "word")
	if r.URL.RawPath == "" {
		return word, nil
	}
	return url.PathUnescape(word)
}

func (s *Server) handleMatrix(w http.ResponseWriter, r *http.Request) {
	var req models.MatrixRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.logger.Debug("matrix request", zap.Int("words", len(req.Words)))
	resp, err := s.engine.Matrix(&req)
	if err != nil {
		s.respondQueryError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleQueries(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			s.respondError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, 1000)
	}
	entries, err := s.engine.RecentQueries(r.Context(), limit)
	if err != nil {
		s.logger.Error("recent queries failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if entries == nil {
		entries = []*models.QueryLogEntry{}
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"queries": entries})
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	s.logger.Debug("reload request")
	if err := s.engine.Reload(r.Context()); err != nil {
		s.logger.Error("reload failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, s.engine.Status(r.Context()))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, s.engine.Status(r.Context()))
}

// respondQueryError maps engine errors to HTTP statuses. Unknown words get 404 with
// suggestions, a zero query vector 422, bad input 400.
func (s *Server) respondQueryError(w http.ResponseWriter, err error) {
	var uw *embedding.UnknownWordError
	switch {
	case errors.As(err, &uw):
		s.respondJSON(w, http.StatusNotFound, &models.ErrorResponse{
			Error:       err.Error(),
			Unknown:     uw.Words,
			Suggestions: s.engine.Suggest(uw.Words),
		})
	case errors.Is(err, embedding.ErrDegenerateVector):
		s.respondError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, search.ErrInvalidQuery),
		errors.Is(err, embedding.ErrInvalidTopN),
		errors.Is(err, embedding.ErrEmptyQuery):
		s.respondError(w, http.StatusBadRequest, err.Error())
	default:
		s.logger.Error("query failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, &models.ErrorResponse{Error: message})
}
