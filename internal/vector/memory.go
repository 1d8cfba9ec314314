package vector

import (
	"container/heap"
	"fmt"
)

// Matrix is a dense row-major N x D matrix of float32 values.
// Rows are appended while building and the matrix is treated as read-only afterwards;
// it carries no lock, so callers must finish building before sharing it.
type Matrix struct {
	dimensions int
	rows       int
	data       []float32
}

// Result is a single search hit: the row ordinal and its inner product with the query.
type Result struct {
	Row   int
	Score float64
}

// NewMatrix creates an empty matrix with the given row width. capacity is a hint for the
// number of rows that will be appended.
func NewMatrix(dimensions, capacity int) (*Matrix, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive")
	}
	if capacity < 0 {
		capacity = 0
	}
	return &Matrix{
		dimensions: dimensions,
		data:       make([]float32, 0, capacity*dimensions),
	}, nil
}

// Append copies vec into a new last row.
func (m *Matrix) Append(vec []float32) error {
	if len(vec) != m.dimensions {
		return fmt.Errorf("vector dimension mismatch: got %d, expected %d", len(vec), m.dimensions)
	}
	m.data = append(m.data, vec...)
	m.rows++
	return nil
}

// Row returns a view of row i. The returned slice aliases the matrix and must not be modified.
func (m *Matrix) Row(i int) []float32 {
	if i < 0 || i >= m.rows {
		return nil
	}
	return m.data[i*m.dimensions : (i+1)*m.dimensions : (i+1)*m.dimensions]
}

// RowCopy returns a copy of row i, or nil when i is out of range.
func (m *Matrix) RowCopy(i int) []float32 {
	row := m.Row(i)
	if row == nil {
		return nil
	}
	out := make([]float32, len(row))
	copy(out, row)
	return out
}

// Rows returns the number of rows.
func (m *Matrix) Rows() int {
	return m.rows
}

// Dimensions returns the row width.
func (m *Matrix) Dimensions() int {
	return m.dimensions
}

// Normalized returns a new matrix whose rows are the L2-normalized rows of m.
// Zero rows stay zero.
func (m *Matrix) Normalized() *Matrix {
	out := &Matrix{
		dimensions: m.dimensions,
		rows:       m.rows,
		data:       make([]float32, len(m.data)),
	}
	for i := 0; i < m.rows; i++ {
		unit, _, _ := Normalize(m.Row(i))
		copy(out.data[i*m.dimensions:], unit)
	}
	return out
}

// Search returns the top-k rows by inner product with query (cosine similarity when both
// sides are unit length). Results are ordered by descending score; equal scores are ordered
// by ascending row, so the output equals a full stable sort truncated to k.
func (m *Matrix) Search(query []float32, k int) ([]Result, error) {
	if len(query) != m.dimensions {
		return nil, fmt.Errorf("query dimension mismatch: got %d, expected %d", len(query), m.dimensions)
	}
	if k <= 0 || m.rows == 0 {
		return nil, nil
	}
	if k > m.rows {
		k = m.rows
	}
	h := make(resultHeap, 0, k)
	for i := 0; i < m.rows; i++ {
		r := Result{Row: i, Score: InnerProduct(query, m.Row(i))}
		if len(h) < k {
			heap.Push(&h, r)
			continue
		}
		if ranksBefore(r, h[0]) {
			h[0] = r
			heap.Fix(&h, 0)
		}
	}
	out := make([]Result, len(h))
	for i := len(h) - 1; i >= 0; i-- {
		out[i] = heap.Pop(&h).(Result)
	}
	return out, nil
}

// ranksBefore reports whether a is ordered before b in search output.
func ranksBefore(a, b Result) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	return a.Row < b.Row
}

// resultHeap keeps the current top-k with the worst-ranked result at the root.
type resultHeap []Result

func (h resultHeap) Len() int           { return len(h) }
func (h resultHeap) Less(i, j int) bool { return ranksBefore(h[j], h[i]) }
func (h resultHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *resultHeap) Push(x any) { *h = append(*h, x.(Result)) }

func (h *resultHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}
