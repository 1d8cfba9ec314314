package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hyperjump/ruiji/internal/models"
)

// apiError is a non-2xx reply from the server.
type apiError struct {
	Status int
	Body   models.ErrorResponse
}

func (e *apiError) Error() string {
	msg := e.Body.Error
	if msg == "" {
		msg = http.StatusText(e.Status)
	}
	return fmt.Sprintf("server returned %d: %s", e.Status, msg)
}

// apiClient talks to a running ruiji server, so one-shot commands do not have to load
// the vectors themselves.
type apiClient struct {
	baseURL string
	http    *http.Client
}

func newAPIClient(baseURL string) *apiClient {
	return &apiClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *apiClient) Similar(ctx context.Context, q *models.SimilarityQuery) (*models.SimilarityResponse, error) {
	var resp models.SimilarityResponse
	if err := c.do(ctx, http.MethodPost, "/api/v1/similar", q, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *apiClient) Lookup(ctx context.Context, word string) (*models.WordVector, error) {
	var wv models.WordVector
	if err := c.do(ctx, http.MethodGet, "/api/v1/words/"+url.PathEscape(word), nil, &wv); err != nil {
		return nil, err
	}
	return &wv, nil
}

func (c *apiClient) Status(ctx context.Context) (*models.Status, error) {
	var st models.Status
	if err := c.do(ctx, http.MethodGet, "/api/v1/status", nil, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

func (c *apiClient) RecentQueries(ctx context.Context, limit int) ([]*models.QueryLogEntry, error) {
	var out struct {
		Queries []*models.QueryLogEntry `json:"queries"`
	}
	path := "/api/v1/queries?limit=" + strconv.Itoa(limit)
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Queries, nil
}

func (c *apiClient) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		apiErr := &apiError{Status: resp.StatusCode}
		b, _ := io.ReadAll(resp.Body)
		if jsonErr := json.Unmarshal(b, &apiErr.Body); jsonErr != nil {
			apiErr.Body.Error = strings.TrimSpace(string(b))
		}
		return apiErr
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
