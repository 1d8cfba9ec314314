package embedding

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
)

// Snapshot header limits. Anything larger is treated as a corrupt file rather than
// allocated.
const (
	maxSnapshotDimensions = 1 << 16
	maxSnapshotWordBytes  = 64 << 10
)

// SaveSnapshot writes idx to path in a compact binary form that loads much faster than the
// text format. Directory is created if needed. Format (little endian): dimension (4), n (4),
// then per word in id order: wordLen (4), word bytes, vector (dimension*4 bytes).
// The file is written next to path and renamed into place, so readers never see a
// partial snapshot.
func SaveSnapshot(path string, idx *Index) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}
	f, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create snapshot file: %w", err)
	}
	tmp := f.Name()
	fail := func(err error) error {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	w := bufio.NewWriter(f)
	if err := writeSnapshot(w, idx); err != nil {
		return fail(err)
	}
	if err := w.Flush(); err != nil {
		return fail(fmt.Errorf("flush snapshot: %w", err))
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("close snapshot: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("rename snapshot: %w", err)
	}
	return nil
}

func writeSnapshot(w io.Writer, idx *Index) error {
	dim := idx.Dimensions()
	if err := binary.Write(w, binary.LittleEndian, uint32(dim)); err != nil {
		return fmt.Errorf("write dimensions: %w", err)
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(idx.Len())); err != nil {
		return fmt.Errorf("write count: %w", err)
	}
	for i, word := range idx.words {
		wordBytes := []byte(word)
		if err := binary.Write(w, binary.LittleEndian, uint32(len(wordBytes))); err != nil {
			return fmt.Errorf("write word len: %w", err)
		}
		if _, err := w.Write(wordBytes); err != nil {
			return fmt.Errorf("write word: %w", err)
		}
		if _, err := w.Write(float32SliceToBytes(idx.raw.Row(i))); err != nil {
			return fmt.Errorf("write vector: %w", err)
		}
	}
	return nil
}

// LoadSnapshot reads a snapshot written by SaveSnapshot.
func LoadSnapshot(path string) (*Index, error) {
	f, err := openRegular(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadSnapshot(bufio.NewReader(f))
}

// ReadSnapshot decodes a snapshot stream.
func ReadSnapshot(r io.Reader) (*Index, error) {
	var dim, n uint32
	if err := binary.Read(r, binary.LittleEndian, &dim); err != nil {
		return nil, fmt.Errorf("read dimensions: %w", err)
	}
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return nil, fmt.Errorf("read count: %w", err)
	}
	if dim > maxSnapshotDimensions {
		return nil, fmt.Errorf("%w: snapshot dimension %d exceeds %d", ErrDimensionMismatch, dim, maxSnapshotDimensions)
	}
	if n > 0 && dim == 0 {
		return nil, fmt.Errorf("%w: snapshot has %d rows of zero width", ErrDimensionMismatch, n)
	}
	b, err := newBuilder(int(dim), min(int(n), 1<<20))
	if err != nil {
		return nil, err
	}
	buf := make([]byte, int(dim)*4)
	for i := uint32(0); i < n; i++ {
		var wordLen uint32
		if err := binary.Read(r, binary.LittleEndian, &wordLen); err != nil {
			return nil, fmt.Errorf("read word len (row %d): %w", i, err)
		}
		if wordLen > maxSnapshotWordBytes {
			return nil, fmt.Errorf("snapshot row %d: word length %d exceeds %d", i, wordLen, maxSnapshotWordBytes)
		}
		wordBytes := make([]byte, wordLen)
		if _, err := io.ReadFull(r, wordBytes); err != nil {
			return nil, fmt.Errorf("read word (row %d): %w", i, err)
		}
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, fmt.Errorf("read vector (row %d): %w", i, err)
		}
		word := string(wordBytes)
		if _, dup := b.ids[word]; dup {
			return nil, fmt.Errorf("snapshot row %d: duplicate word %q", i, word)
		}
		if err := b.add(word, bytesToFloat32Slice(buf)); err != nil {
			return nil, fmt.Errorf("snapshot row %d: %w", i, err)
		}
	}
	b.stats.Lines = int(n)
	return b.build(), nil
}

func float32SliceToBytes(s []float32) []byte {
	const size = 4
	out := make([]byte, len(s)*size)
	for i, v := range s {
		binary.LittleEndian.PutUint32(out[i*size:(i+1)*size], math.Float32bits(v))
	}
	return out
}

func bytesToFloat32Slice(b []byte) []float32 {
	const size = 4
	out := make([]float32, len(b)/size)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*size : (i+1)*size]))
	}
	return out
}
