package repository

import (
	"context"

	"gorm.io/gorm"

	"smart-timetable/internal/model"
)

// TeacherRepository 教师目录数据访问接口
type TeacherRepository interface {
	Create(ctx context.Context, t *model.Teacher) error
	GetByEmployeeID(ctx context.Context, employeeID string) (*model.Teacher, error)
	List(ctx context.Context, department string, offset, limit int) ([]model.Teacher, int64, error)
}

// SubjectRepository 科目目录数据访问接口
type SubjectRepository interface {
	Create(ctx context.Context, s *model.Subject) error
	GetByCode(ctx context.Context, code string) (*model.Subject, error)
	List(ctx context.Context, department string, offset, limit int) ([]model.Subject, int64, error)
}

// ── Teacher ──

type teacherRepo struct {
	db *gorm.DB
}

// NewTeacherRepo 创建 TeacherRepository 实例
func NewTeacherRepo(db *gorm.DB) TeacherRepository {
	return &teacherRepo{db: db}
}

func (r *teacherRepo) Create(ctx context.Context, t *model.Teacher) error {
	return r.db.WithContext(ctx).Create(t).Error
}

func (r *teacherRepo) GetByEmployeeID(ctx context.Context, employeeID string) (*model.Teacher, error) {
	var t model.Teacher
	err := r.db.WithContext(ctx).
		Where("employee_id = ?", employeeID).
		First(&t).Error
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *teacherRepo) List(ctx context.Context, department string, offset, limit int) ([]model.Teacher, int64, error) {
	var list []model.Teacher
	var total int64

	db := r.db.WithContext(ctx).Model(&model.Teacher{})
	if department != "" {
		db = db.Where("department = ?", department)
	}
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if err := db.Order("name ASC").Offset(offset).Limit(limit).Find(&list).Error; err != nil {
		return nil, 0, err
	}
	return list, total, nil
}

// ── Subject ──

type subjectRepo struct {
	db *gorm.DB
}

// NewSubjectRepo 创建 SubjectRepository 实例
func NewSubjectRepo(db *gorm.DB) SubjectRepository {
	return &subjectRepo{db: db}
}

func (r *subjectRepo) Create(ctx context.Context, s *model.Subject) error {
	return r.db.WithContext(ctx).Create(s).Error
}

func (r *subjectRepo) GetByCode(ctx context.Context, code string) (*model.Subject, error) {
	var s model.Subject
	err := r.db.WithContext(ctx).
		Where("code = ?", code).
		First(&s).Error
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *subjectRepo) List(ctx context.Context, department string, offset, limit int) ([]model.Subject, int64, error) {
	var list []model.Subject
	var total int64

	db := r.db.WithContext(ctx).Model(&model.Subject{})
	if department != "" {
		db = db.Where("department = ?", department)
	}
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if err := db.Order("code ASC").Offset(offset).Limit(limit).Find(&list).Error; err != nil {
		return nil, 0, err
	}
	return list, total, nil
}
