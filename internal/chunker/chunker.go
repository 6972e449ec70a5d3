// Package chunker splits normalized text into overlapping fixed-size windows.
package chunker

import (
	"errors"
	"fmt"
	"iter"
)

const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 100
)

var ErrInvalidChunkConfig = errors.New("invalid chunk config")

// Chunk is one window of the input. Start and End are character (rune)
// offsets, End exclusive.
type Chunk struct {
	Index int
	Start int
	End   int
	Text  string
}

// Validate checks that a window of size with the given overlap always
// advances.
func Validate(size, overlap int) error {
	if size <= 0 {
		return fmt.Errorf("%w: chunk size %d must be positive", ErrInvalidChunkConfig, size)
	}
	if overlap < 0 || overlap >= size {
		return fmt.Errorf("%w: overlap %d must be in [0, %d)", ErrInvalidChunkConfig, overlap, size)
	}
	return nil
}

// Split returns the windows [start, min(start+size, len)) for start = 0,
// size-overlap, 2*(size-overlap), ... until start reaches the end of text.
// The sequence is lazy and can be ranged over any number of times.
func Split(text string, size, overlap int) (iter.Seq[Chunk], error) {
	if err := Validate(size, overlap); err != nil {
		return nil, err
	}
	runes := []rune(text)
	step := size - overlap
	return func(yield func(Chunk) bool) {
		for i, start := 0, 0; start < len(runes); i, start = i+1, start+step {
			end := min(start+size, len(runes))
			if !yield(Chunk{Index: i, Start: start, End: end, Text: string(runes[start:end])}) {
				return
			}
			if end == len(runes) {
				return
			}
		}
	}, nil
}

// Collect materializes Split.
func Collect(text string, size, overlap int) ([]Chunk, error) {
	seq, err := Split(text, size, overlap)
	if err != nil {
		return nil, err
	}
	var out []Chunk
	for c := range seq {
		out = append(out, c)
	}
	return out, nil
}
