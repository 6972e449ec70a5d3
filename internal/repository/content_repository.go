package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"coursetutor/internal/model"
)

// ContentRepository gives read access to the items that get indexed.
type ContentRepository struct {
	db *gorm.DB
}

func NewContentRepository(db *gorm.DB) *ContentRepository {
	return &ContentRepository{db: db}
}

func (r *ContentRepository) GetMaterial(ctx context.Context, id uint) (*model.CourseMaterial, error) {
	var m model.CourseMaterial
	if err := r.db.WithContext(ctx).First(&m, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get course material failed: %w", err)
	}
	return &m, nil
}

func (r *ContentRepository) ListMaterialsByCourse(ctx context.Context, courseID uint) ([]model.CourseMaterial, error) {
	var list []model.CourseMaterial
	if err := r.db.WithContext(ctx).Where("course_id = ?", courseID).Order("id ASC").Find(&list).Error; err != nil {
		return nil, fmt.Errorf("list course materials failed: %w", err)
	}
	return list, nil
}

func (r *ContentRepository) GetLesson(ctx context.Context, id uint) (*model.Lesson, error) {
	var l model.Lesson
	if err := r.db.WithContext(ctx).First(&l, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get lesson failed: %w", err)
	}
	return &l, nil
}

func (r *ContentRepository) ListLessonsByCourse(ctx context.Context, courseID uint) ([]model.Lesson, error) {
	var list []model.Lesson
	if err := r.db.WithContext(ctx).Where("course_id = ?", courseID).Order("id ASC").Find(&list).Error; err != nil {
		return nil, fmt.Errorf("list lessons failed: %w", err)
	}
	return list, nil
}

func (r *ContentRepository) GetEbook(ctx context.Context, id uint) (*model.Ebook, error) {
	var e model.Ebook
	if err := r.db.WithContext(ctx).First(&e, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get ebook failed: %w", err)
	}
	return &e, nil
}
