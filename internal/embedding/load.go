package embedding

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

const maxLineBytes = 16 * 1024 * 1024

// LoadOption configures Load and Parse.
type LoadOption func(*loadOptions)

type loadOptions struct {
	dimensions int
	maxWords   int
	logger     *zap.Logger
}

// WithDimensions fixes D instead of inferring it from the first line.
func WithDimensions(d int) LoadOption {
	return func(o *loadOptions) {
		if d > 0 {
			o.dimensions = d
		}
	}
}

// WithMaxWords stops reading after n distinct words (0 = no limit).
// Pre-trained files are ordered by corpus frequency, so this keeps the most common words.
func WithMaxWords(n int) LoadOption {
	return func(o *loadOptions) {
		if n > 0 {
			o.maxWords = n
		}
	}
}

// WithLogger sets a logger for load progress and duplicate warnings.
func WithLogger(l *zap.Logger) LoadOption {
	return func(o *loadOptions) { o.logger = l }
}

// Load reads a whitespace-separated embedding file ("word v1 ... vD" per line, no header).
// A missing or unreadable file yields a *NotFoundError; a malformed line a *ParseError.
func Load(path string, opts ...LoadOption) (*Index, error) {
	f, err := openRegular(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Parse(f, opts...)
}

// openRegular opens path for reading. Missing files, directories and other non-regular
// files yield a *NotFoundError.
func openRegular(path string) (*os.File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &NotFoundError{Path: path, Err: err}
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, &NotFoundError{Path: path, Err: err}
	}
	if !info.Mode().IsRegular() {
		_ = f.Close()
		return nil, &NotFoundError{Path: path, Err: fmt.Errorf("not a regular file (%s)", info.Mode().Type())}
	}
	return f, nil
}

// Parse reads embedding lines from r. See Load for the format.
func Parse(r io.Reader, opts ...LoadOption) (*Index, error) {
	o := loadOptions{}
	for _, opt := range opts {
		opt(&o)
	}

	var b *builder
	if o.dimensions > 0 {
		var err error
		if b, err = newBuilder(o.dimensions, 0); err != nil {
			return nil, err
		}
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if lineNo == 1 {
			line = strings.TrimPrefix(line, "\ufeff")
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		if b == nil {
			if len(fields) < 2 {
				return nil, &ParseError{Line: lineNo, Msg: "no vector values after word"}
			}
			var err error
			if b, err = newBuilder(len(fields)-1, 0); err != nil {
				return nil, err
			}
		}
		b.stats.Lines++
		word := fields[0]
		vec, perr := parseValues(fields[1:], b.raw.Dimensions(), lineNo)
		if perr != nil {
			return nil, perr
		}
		if _, dup := b.ids[word]; dup {
			b.stats.Duplicates++
			if o.logger != nil {
				o.logger.Debug("duplicate word skipped", zap.String("word", word), zap.Int("line", lineNo))
			}
			continue
		}
		if err := b.add(word, vec); err != nil {
			return nil, &ParseError{Line: lineNo, Msg: "invalid row", Err: err}
		}
		if o.maxWords > 0 && len(b.words) >= o.maxWords {
			b.stats.Truncated = true
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, &ParseError{Line: lineNo + 1, Msg: "read failed", Err: err}
	}
	if b == nil {
		b = &builder{ids: map[string]int{}}
	}
	idx := b.build()
	if o.logger != nil {
		o.logger.Info("embeddings loaded",
			zap.Int("words", idx.Len()),
			zap.Int("dimensions", idx.Dimensions()),
			zap.Int("duplicates", idx.stats.Duplicates),
			zap.Bool("truncated", idx.stats.Truncated))
	}
	return idx, nil
}

func parseValues(tokens []string, dim, lineNo int) ([]float32, error) {
	if len(tokens) != dim {
		return nil, &ParseError{Line: lineNo, Msg: fmt.Sprintf("expected %d values, got %d", dim, len(tokens))}
	}
	vec := make([]float32, dim)
	for i, tok := range tokens {
		v, err := strconv.ParseFloat(tok, 32)
		if err != nil {
			return nil, &ParseError{Line: lineNo, Msg: fmt.Sprintf("value %d is not a number", i+1), Err: err}
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, &ParseError{Line: lineNo, Msg: fmt.Sprintf("value %d is not finite: %q", i+1, tok)}
		}
		vec[i] = float32(v)
	}
	return vec, nil
}
