package embedding

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors. Each typed error below matches its sentinel with errors.Is.
var (
	// ErrNotFound means the embedding source is missing or unreadable.
	ErrNotFound = errors.New("embedding source not found")
	// ErrParse means a line of the embedding file is malformed.
	ErrParse = errors.New("malformed embedding file")
	// ErrUnknownWord means a query word is not in the vocabulary.
	ErrUnknownWord = errors.New("unknown word")
	// ErrDegenerateVector means the query vector has zero norm and has no direction.
	ErrDegenerateVector = errors.New("degenerate query vector (zero norm)")
	// ErrInvalidTopN means topN is below 1.
	ErrInvalidTopN = errors.New("topN must be at least 1")
	// ErrEmptyQuery means no query words were given.
	ErrEmptyQuery = errors.New("query has no words")
	// ErrDimensionMismatch means a vector does not have the table's dimension.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
)

// NotFoundError reports an embedding source that could not be opened.
type NotFoundError struct {
	Path string
	Err  error
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("embedding source %s: %v", e.Path, e.Err)
}

func (e *NotFoundError) Unwrap() error { return e.Err }

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// ParseError reports a malformed line. Line is 1-based.
type ParseError struct {
	Line int
	Msg  string
	Err  error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("line %d: %s: %v", e.Line, e.Msg, e.Err)
	}
	return fmt.Sprintf("line %d: %s", e.Line, e.Msg)
}

func (e *ParseError) Unwrap() error { return e.Err }

func (e *ParseError) Is(target error) bool { return target == ErrParse }

// UnknownWordError lists the query words that are absent from the vocabulary, in query order.
type UnknownWordError struct {
	Words []string
}

func (e *UnknownWordError) Error() string {
	quoted := make([]string, len(e.Words))
	for i, w := range e.Words {
		quoted[i] = fmt.Sprintf("%q", w)
	}
	return fmt.Sprintf("unknown word: %s", strings.Join(quoted, ", "))
}

func (e *UnknownWordError) Is(target error) bool { return target == ErrUnknownWord }
