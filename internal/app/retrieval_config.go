package app

import (
	"fmt"
	"time"

	"coursetutor/internal/chunker"
)

// RetrievalConfig is shared by ingestion and answering. It is passed in at
// construction; nothing reads it from package state.
type RetrievalConfig struct {
	ChunkSize         int
	ChunkOverlap      int
	TutorTopK         int
	CompanionTopK     int
	MaxContextChars   int
	EmbedRetries      int
	EmbedRetryBackoff time.Duration
	EmbedRatePerSec   float64
	CourseParallelism int
	EmbedTimeout      time.Duration
	CompleteTimeout   time.Duration
}

func DefaultRetrievalConfig() RetrievalConfig {
	return RetrievalConfig{
		ChunkSize:         chunker.DefaultChunkSize,
		ChunkOverlap:      chunker.DefaultChunkOverlap,
		TutorTopK:         3,
		CompanionTopK:     5,
		MaxContextChars:   6000,
		EmbedRetries:      2,
		EmbedRetryBackoff: 500 * time.Millisecond,
		EmbedRatePerSec:   5,
		CourseParallelism: 4,
		EmbedTimeout:      30 * time.Second,
		CompleteTimeout:   90 * time.Second,
	}
}

func (c RetrievalConfig) Validate() error {
	if err := chunker.Validate(c.ChunkSize, c.ChunkOverlap); err != nil {
		return err
	}
	if c.TutorTopK <= 0 || c.CompanionTopK <= 0 {
		return fmt.Errorf("%w: top-k must be positive", ErrInvalidInput)
	}
	if c.MaxContextChars <= 0 {
		return fmt.Errorf("%w: max context chars must be positive", ErrInvalidInput)
	}
	if c.EmbedRetries < 0 || c.CourseParallelism <= 0 {
		return fmt.Errorf("%w: retries and parallelism out of range", ErrInvalidInput)
	}
	return nil
}
