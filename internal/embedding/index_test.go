package embedding

import (
	"errors"
	"math"
	"strings"
	"testing"
)

const animals = `cat 1 0
dog 0.9 0.1
car 0 1
`

func mustParse(t testing.TB, text string, opts ...LoadOption) *Index {
	t.Helper()
	idx, err := Parse(strings.NewReader(text), opts...)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return idx
}

func TestIndex_Lookup(t *testing.T) {
	idx := mustParse(t, animals)
	tests := []struct {
		word  string
		want  []float32
		found bool
	}{
		{"cat", []float32{1, 0}, true},
		{"dog", []float32{0.9, 0.1}, true},
		{"car", []float32{0, 1}, true},
		{"airplane", nil, false},
		{"Cat", nil, false},
		{"ca", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.word, func(t *testing.T) {
			got, ok := idx.Lookup(tt.word)
			if ok != tt.found {
				t.Fatalf("Lookup(%q) found = %v, want %v", tt.word, ok, tt.found)
			}
			if !tt.found {
				if got != nil {
					t.Errorf("absent word should return nil vector, got %v", got)
				}
				return
			}
			if len(got) != idx.Dimensions() {
				t.Fatalf("len = %d, want %d", len(got), idx.Dimensions())
			}
			for i := range got {
				if math.Abs(float64(got[i]-tt.want[i])) > 1e-6 {
					t.Errorf("Lookup(%q)[%d] = %f, want %f", tt.word, i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestIndex_LookupReturnsCopy(t *testing.T) {
	idx := mustParse(t, animals)
	v, _ := idx.Lookup("cat")
	v[0] = 42
	again, _ := idx.Lookup("cat")
	if again[0] != 1 {
		t.Errorf("mutating a lookup result changed the index: %v", again)
	}
}

func TestIndex_Vocabulary(t *testing.T) {
	idx := mustParse(t, animals)
	if idx.Len() != 3 || idx.Dimensions() != 2 {
		t.Fatalf("Len=%d Dimensions=%d", idx.Len(), idx.Dimensions())
	}
	for want, word := range []string{"cat", "dog", "car"} {
		id, ok := idx.ID(word)
		if !ok || id != want {
			t.Errorf("ID(%q) = %d, %v; want %d", word, id, ok, want)
		}
		w, ok := idx.Word(want)
		if !ok || w != word {
			t.Errorf("Word(%d) = %q, want %q", want, w, word)
		}
	}
	if _, ok := idx.Word(3); ok {
		t.Error("Word(3) should be out of range")
	}
}

func TestIndex_MostSimilarExample(t *testing.T) {
	idx := mustParse(t, animals)
	got, err := idx.MostSimilarWord("cat", 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 neighbors, got %d", len(got))
	}
	if got[0].Word != "cat" || math.Abs(got[0].Score-1) > 1e-6 {
		t.Errorf("first = %+v, want cat/1.0", got[0])
	}
	if got[1].Word != "dog" || math.Abs(got[1].Score-0.9939) > 1e-3 {
		t.Errorf("second = %+v, want dog/~0.994", got[1])
	}
}

func TestIndex_MostSimilarProperties(t *testing.T) {
	idx := mustParse(t, `the 0.4 0.1 0.3
a 0.3 0.2 0.3
king 0.9 0.8 0.1
queen 0.85 0.9 0.15
man 0.7 0.2 0.1
woman 0.65 0.35 0.2
car -0.2 0.1 0.9
`)
	for _, w := range idx.Words() {
		for _, k := range []int{1, 3, 7, 50} {
			got, err := idx.MostSimilarWord(w, k)
			if err != nil {
				t.Fatalf("MostSimilarWord(%q, %d): %v", w, k, err)
			}
			if len(got) > k || len(got) > idx.Len() {
				t.Errorf("%q k=%d: %d results", w, k, len(got))
			}
			if got[0].Word != w || math.Abs(got[0].Score-1) > 1e-5 {
				t.Errorf("%q k=%d: first = %+v, want self with 1.0", w, k, got[0])
			}
			for i := 1; i < len(got); i++ {
				if got[i].Score > got[i-1].Score {
					t.Errorf("%q: scores increase at %d: %+v", w, i, got)
				}
			}
		}
	}
	if got, _ := idx.MostSimilarWord("king", 50); len(got) != idx.Len() {
		t.Errorf("topN > N should return all %d words, got %d", idx.Len(), len(got))
	}
}

func TestIndex_MostSimilarAveragingSelf(t *testing.T) {
	idx := mustParse(t, `king 0.9 0.8 0.1
queen 0.85 0.9 0.15
man 0.7 0.2 0.1
car -0.2 0.1 0.9
`)
	single, err := idx.MostSimilarWord("queen", 4)
	if err != nil {
		t.Fatal(err)
	}
	double, err := idx.MostSimilar([]string{"queen", "queen"}, 4)
	if err != nil {
		t.Fatal(err)
	}
	for i := range single {
		if single[i].Word != double[i].Word {
			t.Fatalf("ranking differs at %d: %v vs %v", i, single, double)
		}
	}
}

func TestIndex_MostSimilarAverage(t *testing.T) {
	idx := mustParse(t, `x 1 0
y 0 1
xy 1 1
`)
	got, err := idx.MostSimilar([]string{"x", "y"}, 1)
	if err != nil {
		t.Fatal(err)
	}
	if got[0].Word != "xy" || math.Abs(got[0].Score-1) > 1e-6 {
		t.Errorf("mean of x and y should point at xy, got %+v", got)
	}
}

func TestIndex_MostSimilarIdempotent(t *testing.T) {
	idx := mustParse(t, animals)
	first, _ := idx.MostSimilar([]string{"dog", "car"}, 3)
	for i := 0; i < 5; i++ {
		again, _ := idx.MostSimilar([]string{"dog", "car"}, 3)
		for j := range first {
			if first[j] != again[j] {
				t.Fatalf("call %d differs at %d: %+v vs %+v", i, j, first[j], again[j])
			}
		}
	}
}

func TestIndex_MostSimilarTiesByID(t *testing.T) {
	idx := mustParse(t, `q 1 0
b 0 1
a 0 1
c 0 -1
`)
	got, err := idx.MostSimilarWord("b", 4)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"b", "a", "q", "c"}
	for i, n := range got {
		if n.Word != want[i] {
			t.Fatalf("got %v, want order %v", got, want)
		}
	}
}

func TestIndex_MostSimilarErrors(t *testing.T) {
	idx := mustParse(t, animals+"zero 0 0\n")
	tests := []struct {
		name   string
		words  []string
		topN   int
		target error
	}{
		{"unknown in average", []string{"cat", "unknownword"}, 10, ErrUnknownWord},
		{"unknown single", []string{"airplane"}, 10, ErrUnknownWord},
		{"zero vector", []string{"zero"}, 10, ErrDegenerateVector},
		{"second word unknown", []string{"cat", "minuscat"}, 10, ErrUnknownWord},
		{"empty query", nil, 10, ErrEmptyQuery},
		{"topN zero", []string{"cat"}, 0, ErrInvalidTopN},
		{"topN negative", []string{"cat"}, -3, ErrInvalidTopN},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := idx.MostSimilar(tt.words, tt.topN)
			if !errors.Is(err, tt.target) {
				t.Errorf("err = %v, want %v", err, tt.target)
			}
		})
	}
}

func TestIndex_MostSimilarCancellingAverage(t *testing.T) {
	idx := mustParse(t, `up 0 1
down 0 -1
`)
	_, err := idx.MostSimilar([]string{"up", "down"}, 2)
	if !errors.Is(err, ErrDegenerateVector) {
		t.Errorf("err = %v, want ErrDegenerateVector", err)
	}
}

func TestIndex_UnknownWordErrorDetail(t *testing.T) {
	idx := mustParse(t, animals)
	_, err := idx.MostSimilar([]string{"foo", "cat", "bar"}, 3)
	var uw *UnknownWordError
	if !errors.As(err, &uw) {
		t.Fatalf("expected *UnknownWordError, got %T %v", err, err)
	}
	if len(uw.Words) != 2 || uw.Words[0] != "foo" || uw.Words[1] != "bar" {
		t.Errorf("Words = %v", uw.Words)
	}
	if !strings.Contains(err.Error(), `"foo"`) {
		t.Errorf("message should name the word: %v", err)
	}
}

func TestIndex_EmbeddingMatrix(t *testing.T) {
	idx := mustParse(t, animals)
	rows, hits := idx.EmbeddingMatrix([]string{"dog", "zebra", "car"})
	if hits != 2 {
		t.Errorf("hits = %d, want 2", hits)
	}
	if len(rows) != 3 {
		t.Fatalf("rows = %d", len(rows))
	}
	if rows[0][0] != 0.9 || rows[2][1] != 1 {
		t.Errorf("known rows wrong: %v", rows)
	}
	if len(rows[1]) != 2 || rows[1][0] != 0 || rows[1][1] != 0 {
		t.Errorf("unknown word should get a zero row, got %v", rows[1])
	}
}

func TestNew(t *testing.T) {
	idx, err := New([]string{"a", "b"}, [][]float32{{1, 0}, {0, 1}})
	if err != nil {
		t.Fatal(err)
	}
	if idx.Len() != 2 || idx.Dimensions() != 2 {
		t.Errorf("Len=%d Dimensions=%d", idx.Len(), idx.Dimensions())
	}
	if _, err := New([]string{"a", "a"}, [][]float32{{1}, {2}}); err == nil {
		t.Error("expected error for duplicate words")
	}
	if _, err := New([]string{"a", "b"}, [][]float32{{1, 2}, {3}}); !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("ragged rows: err = %v", err)
	}
	if _, err := New([]string{"a"}, nil); err == nil {
		t.Error("expected error for length mismatch")
	}
	empty, err := New(nil, nil)
	if err != nil || empty.Len() != 0 {
		t.Errorf("empty New: %v, %v", empty, err)
	}
}
