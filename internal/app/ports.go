package app

import (
	"context"

	"coursetutor/internal/model"
)

// ContentSource is read access to the items that own indexed text.
type ContentSource interface {
	GetMaterial(ctx context.Context, id uint) (*model.CourseMaterial, error)
	ListMaterialsByCourse(ctx context.Context, courseID uint) ([]model.CourseMaterial, error)
	GetLesson(ctx context.Context, id uint) (*model.Lesson, error)
	ListLessonsByCourse(ctx context.Context, courseID uint) ([]model.Lesson, error)
	GetEbook(ctx context.Context, id uint) (*model.Ebook, error)
}

type ChunkWriter interface {
	ReplaceBySource(ctx context.Context, sourceType model.SourceType, sourceID uint, records []model.ChunkRecord) error
	DeleteBySource(ctx context.Context, sourceType model.SourceType, sourceID uint) (int64, error)
}

type ChunkReader interface {
	ListByCourse(ctx context.Context, courseID uint) ([]model.ChunkRecord, error)
	ListForCompanion(ctx context.Context, courseID uint) ([]model.ChunkRecord, error)
}

// QueryCache stores question embeddings. Implementations may fail freely;
// callers treat every error as a miss.
type QueryCache interface {
	Get(ctx context.Context, text string) ([]float32, bool, error)
	Set(ctx context.Context, text string, vec []float32) error
}
