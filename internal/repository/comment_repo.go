package repository

import (
	"context"

	"gorm.io/gorm"

	"smart-timetable/internal/model"
)

// CommentRepository 评论数据访问接口
type CommentRepository interface {
	Create(ctx context.Context, c *model.Comment) error
	GetByID(ctx context.Context, id string) (*model.Comment, error)
	// ListByTimetable 按创建时间倒序
	ListByTimetable(ctx context.Context, timetableID string, offset, limit int) ([]model.Comment, int64, error)
	Delete(ctx context.Context, id string) error
}

type commentRepo struct {
	db *gorm.DB
}

// NewCommentRepo 创建 CommentRepository 实例
func NewCommentRepo(db *gorm.DB) CommentRepository {
	return &commentRepo{db: db}
}

func (r *commentRepo) Create(ctx context.Context, c *model.Comment) error {
	return r.db.WithContext(ctx).Create(c).Error
}

func (r *commentRepo) GetByID(ctx context.Context, id string) (*model.Comment, error) {
	var c model.Comment
	err := r.db.WithContext(ctx).
		Where("comment_id = ?", id).
		First(&c).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *commentRepo) ListByTimetable(ctx context.Context, timetableID string, offset, limit int) ([]model.Comment, int64, error) {
	var list []model.Comment
	var total int64

	db := r.db.WithContext(ctx).Model(&model.Comment{}).
		Where("timetable_id = ?", timetableID)

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if err := db.Order("created_at DESC").
		Offset(offset).Limit(limit).
		Find(&list).Error; err != nil {
		return nil, 0, err
	}

	return list, total, nil
}

func (r *commentRepo) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).
		Where("comment_id = ?", id).
		Delete(&model.Comment{}).Error
}
