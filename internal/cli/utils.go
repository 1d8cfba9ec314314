// Package cli provides CLI output helpers for ruiji.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/hyperjump/ruiji/internal/models"
	"github.com/hyperjump/ruiji/pkg/utils"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseOutputFormat validates a --output flag value.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(strings.ToLower(s)) {
	case OutputText, "":
		return OutputText, nil
	case OutputJSON:
		return OutputJSON, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want text or json)", s)
	}
}

// WriteSimilarResults writes similarity results to w in the given format.
func WriteSimilarResults(w io.Writer, resp *models.SimilarityResponse, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, resp)
	}
	fmt.Fprintf(w, "\nNearest to %s (%d results in %dms)\n\n",
		strings.Join(resp.Query, " + "), resp.Total, resp.QueryTime)
	width := 4
	for _, n := range resp.Neighbors {
		width = max(width, len([]rune(n.Word)))
	}
	fmt.Fprintf(w, "%4s  %-*s  %s\n", "RANK", width, "WORD", "SCORE")
	for _, n := range resp.Neighbors {
		fmt.Fprintf(w, "%4d  %-*s  %.4f\n", n.Rank, width, n.Word, n.Score)
	}
	fmt.Fprintln(w)
	return nil
}

// WriteWordVector writes a word's vector. Text output elides all but the first maxValues
// values (0 shows everything).
func WriteWordVector(w io.Writer, wv *models.WordVector, format OutputFormat, maxValues int) error {
	if format == OutputJSON {
		return writeJSON(w, wv)
	}
	fmt.Fprintf(w, "%s (id %d, %d dimensions)\n%s\n",
		wv.Word, wv.ID, wv.Dimensions, utils.FormatVector(wv.Vector, 4, maxValues))
	return nil
}

// WriteUnknownWords explains which words are missing and what the user may have meant.
func WriteUnknownWords(w io.Writer, unknown []string, suggestions map[string][]string) {
	for _, word := range unknown {
		fmt.Fprintf(w, "Unknown word %q", word)
		if s := suggestions[word]; len(s) > 0 {
			fmt.Fprintf(w, " - did you mean: %s?", strings.Join(s, ", "))
		}
		fmt.Fprintln(w)
	}
}

// WriteStatus writes the engine status.
func WriteStatus(w io.Writer, st *models.Status, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, st)
	}
	rows := map[string]string{
		"Source":      st.Source,
		"Format":      st.Format,
		"Words":       fmt.Sprint(st.Words),
		"Dimensions":  fmt.Sprint(st.Dimensions),
		"Duplicates":  fmt.Sprint(st.Duplicates),
		"Truncated":   fmt.Sprint(st.Truncated),
		"Loaded at":   st.LoadedAt.Format("2006-01-02 15:04:05 MST"),
		"Disk usage":  FormatBytes(st.SourceBytes),
		"Suggestions": fmt.Sprint(st.Suggestions),
	}
	if st.StoredWords > 0 {
		rows["Stored words"] = fmt.Sprint(st.StoredWords)
	}
	keys := make([]string, 0, len(rows))
	for k := range rows {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(w, "%-13s %s\n", k+":", rows[k])
	}
	return nil
}

// WriteQueryLog writes logged queries, newest first.
func WriteQueryLog(w io.Writer, entries []*models.QueryLogEntry, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, entries)
	}
	for _, e := range entries {
		outcome := fmt.Sprintf("%d results", e.ResultCount)
		if e.Error != "" {
			outcome = "error: " + utils.Truncate(e.Error, 60)
		}
		fmt.Fprintf(w, "%s  %-30s top %-3d %5dms  %s\n",
			e.CreatedAt.Format("2006-01-02 15:04:05"), utils.Truncate(strings.Join(e.Words, " "), 30),
			e.TopN, e.DurationMs, outcome)
	}
	return nil
}

// FormatBytes renders n with a binary unit suffix.
func FormatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
