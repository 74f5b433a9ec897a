package repository

import (
	"context"

	"gorm.io/gorm"

	"smart-timetable/internal/model"
	pkgerrors "smart-timetable/pkg/errors"
)

// TimetableFilter 课表列表过滤条件
type TimetableFilter struct {
	Semester   string
	ClassGrade string
}

// TimetableRepository 课表文档数据访问接口
type TimetableRepository interface {
	Create(ctx context.Context, t *model.Timetable) error
	GetByID(ctx context.Context, id string) (*model.Timetable, error)
	// Update 乐观锁更新，version 不匹配时返回 ErrOptimisticLock
	Update(ctx context.Context, t *model.Timetable) error
	// Delete 返回 gorm.ErrRecordNotFound 表示文档不存在
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, filter TimetableFilter, offset, limit int) ([]model.Timetable, int64, error)
	// ListAll 返回全部文档（含内容），用于跨课表查询
	ListAll(ctx context.Context) ([]model.Timetable, error)
}

type timetableRepo struct {
	db *gorm.DB
}

// NewTimetableRepo 创建 TimetableRepository 实例
func NewTimetableRepo(db *gorm.DB) TimetableRepository {
	return &timetableRepo{db: db}
}

func (r *timetableRepo) Create(ctx context.Context, t *model.Timetable) error {
	if t.Version == 0 {
		t.Version = 1
	}
	return r.db.WithContext(ctx).Create(t).Error
}

func (r *timetableRepo) GetByID(ctx context.Context, id string) (*model.Timetable, error) {
	var t model.Timetable
	err := r.db.WithContext(ctx).
		Where("document_id = ?", id).
		First(&t).Error
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *timetableRepo) Update(ctx context.Context, t *model.Timetable) error {
	oldVersion := t.Version
	result := r.db.WithContext(ctx).
		Model(&model.Timetable{}).
		Where("document_id = ? AND version = ?", t.DocumentID, oldVersion).
		Updates(map[string]interface{}{
			"content":       t.Content,
			"semester":      t.Semester,
			"academic_year": t.AcademicYear,
			"class_grade":   t.ClassGrade,
			"section":       t.Section,
			"updated_by":    t.UpdatedBy,
			"updated_at":    t.UpdatedAt,
			"version":       oldVersion + 1,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pkgerrors.ErrOptimisticLock
	}
	t.Version = oldVersion + 1
	return nil
}

func (r *timetableRepo) Delete(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).
		Where("document_id = ?", id).
		Delete(&model.Timetable{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *timetableRepo) List(ctx context.Context, filter TimetableFilter, offset, limit int) ([]model.Timetable, int64, error) {
	var list []model.Timetable
	var total int64

	db := r.db.WithContext(ctx).Model(&model.Timetable{})
	if filter.Semester != "" {
		db = db.Where("semester = ?", filter.Semester)
	}
	if filter.ClassGrade != "" {
		db = db.Where("class_grade = ?", filter.ClassGrade)
	}

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	// 列表不返回内容列
	if err := db.Omit("content").
		Offset(offset).Limit(limit).
		Order("document_id ASC").
		Find(&list).Error; err != nil {
		return nil, 0, err
	}

	return list, total, nil
}

func (r *timetableRepo) ListAll(ctx context.Context) ([]model.Timetable, error) {
	var list []model.Timetable
	err := r.db.WithContext(ctx).
		Order("document_id ASC").
		Find(&list).Error
	return list, err
}
