package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"coursetutor/internal/model"
)

// ChunkRepository is the durable vector store. It is the only owner of
// ChunkRecord rows.
type ChunkRepository struct {
	db *gorm.DB
}

func NewChunkRepository(db *gorm.DB) *ChunkRepository {
	return &ChunkRepository{db: db}
}

// ReplaceBySource deletes every record of (sourceType, sourceID) and inserts
// records in the same transaction, so readers see either the old set or the
// new one.
func (r *ChunkRepository) ReplaceBySource(ctx context.Context, sourceType model.SourceType, sourceID uint, records []model.ChunkRecord) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("source_type = ? AND source_id = ?", sourceType, sourceID).Delete(&model.ChunkRecord{}).Error; err != nil {
			return fmt.Errorf("delete chunk records by source failed: %w", err)
		}
		if len(records) == 0 {
			return nil
		}
		for i := range records {
			records[i].ID = 0
			records[i].SourceType = sourceType
			records[i].SourceID = sourceID
		}
		if err := tx.CreateInBatches(&records, 100).Error; err != nil {
			return fmt.Errorf("create chunk records batch failed: %w", err)
		}
		return nil
	})
}

func (r *ChunkRepository) DeleteBySource(ctx context.Context, sourceType model.SourceType, sourceID uint) (int64, error) {
	res := r.db.WithContext(ctx).Where("source_type = ? AND source_id = ?", sourceType, sourceID).Delete(&model.ChunkRecord{})
	if res.Error != nil {
		return 0, fmt.Errorf("delete chunk records by source failed: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// ListByCourse returns every record scoped to the course, including records
// without an embedding.
func (r *ChunkRepository) ListByCourse(ctx context.Context, courseID uint) ([]model.ChunkRecord, error) {
	var list []model.ChunkRecord
	if err := r.db.WithContext(ctx).Where("course_id = ?", courseID).Order("id ASC").Find(&list).Error; err != nil {
		return nil, fmt.Errorf("list chunk records by course failed: %w", err)
	}
	return list, nil
}

// ListForCompanion returns the course's records plus every library e-book
// record regardless of course.
func (r *ChunkRepository) ListForCompanion(ctx context.Context, courseID uint) ([]model.ChunkRecord, error) {
	var list []model.ChunkRecord
	if err := r.db.WithContext(ctx).
		Where("course_id = ? OR source_type = ?", courseID, model.SourceEbook).
		Order("id ASC").
		Find(&list).Error; err != nil {
		return nil, fmt.Errorf("list companion chunk records failed: %w", err)
	}
	return list, nil
}

func (r *ChunkRepository) ListBySource(ctx context.Context, sourceType model.SourceType, sourceID uint) ([]model.ChunkRecord, error) {
	var list []model.ChunkRecord
	if err := r.db.WithContext(ctx).
		Where("source_type = ? AND source_id = ?", sourceType, sourceID).
		Order("chunk_index ASC").
		Find(&list).Error; err != nil {
		return nil, fmt.Errorf("list chunk records by source failed: %w", err)
	}
	return list, nil
}

func (r *ChunkRepository) CountBySource(ctx context.Context, sourceType model.SourceType, sourceID uint) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&model.ChunkRecord{}).
		Where("source_type = ? AND source_id = ?", sourceType, sourceID).
		Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count chunk records by source failed: %w", err)
	}
	return n, nil
}

func (r *ChunkRepository) CountByCourse(ctx context.Context, courseID uint) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&model.ChunkRecord{}).Where("course_id = ?", courseID).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count chunk records by course failed: %w", err)
	}
	return n, nil
}
