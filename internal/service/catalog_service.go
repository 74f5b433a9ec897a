package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"smart-timetable/internal/dto"
	"smart-timetable/internal/model"
	"smart-timetable/internal/repository"
	pkgerrors "smart-timetable/pkg/errors"
)

// ── 目录模块业务错误 ──

var (
	ErrTeacherExists = errors.New("工号已存在")
	ErrSubjectExists = errors.New("科目代码已存在")
	ErrDuplicateItem = errors.New("批次内重复")
)

// CatalogService 教师 / 科目目录业务接口
//
// 批量导入逐项处理：单项失败（重复、写库错误）记录在结果中，其余继续。
type CatalogService interface {
	ImportTeachers(ctx context.Context, req *dto.ImportTeachersRequest, actor Actor) (*dto.BatchResponse, error)
	ImportSubjects(ctx context.Context, req *dto.ImportSubjectsRequest, actor Actor) (*dto.BatchResponse, error)
	ListTeachers(ctx context.Context, req *dto.CatalogListRequest) (*dto.PageResult[dto.TeacherResponse], error)
	ListSubjects(ctx context.Context, req *dto.CatalogListRequest) (*dto.PageResult[dto.SubjectResponse], error)
}

type catalogService struct {
	repo   *repository.Repository
	logger *zap.Logger
}

// NewCatalogService 创建 CatalogService 实例
func NewCatalogService(repo *repository.Repository, logger *zap.Logger) CatalogService {
	return &catalogService{repo: repo, logger: logger}
}

// ═══════════════════════════════════════════════════════════
// 教师
// ═══════════════════════════════════════════════════════════

func (s *catalogService) ImportTeachers(ctx context.Context, req *dto.ImportTeachersRequest, actor Actor) (*dto.BatchResponse, error) {
	batch := &dto.BatchResponse{Results: []dto.BatchItemResult{}}
	seen := make(map[string]struct{}, len(req.Teachers))

	for _, item := range req.Teachers {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		key := strings.TrimSpace(item.EmployeeID)
		if _, dup := seen[key]; dup {
			batch.Add(dto.BatchItemResult{Key: key, Error: ErrDuplicateItem.Error()})
			continue
		}
		seen[key] = struct{}{}

		err := s.createTeacher(ctx, key, item, actor)
		if err != nil {
			batch.Add(dto.BatchItemResult{Key: key, Error: err.Error()})
			continue
		}
		batch.Add(dto.BatchItemResult{Key: key, Success: true})
	}

	s.logger.Info("教师目录导入完成",
		zap.Int("total", batch.Total),
		zap.Int("succeeded", batch.Succeeded),
		zap.Int("failed", batch.Failed),
	)
	return batch, nil
}

func (s *catalogService) createTeacher(ctx context.Context, employeeID string, item dto.TeacherItem, actor Actor) error {
	if _, err := s.repo.Teacher.GetByEmployeeID(ctx, employeeID); err == nil {
		return ErrTeacherExists
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		s.logger.Error("查询教师失败", zap.String("employee_id", employeeID), zap.Error(err))
		return err
	}

	subjects := make([]string, 0, len(item.Subjects))
	for _, sub := range item.Subjects {
		if sub = strings.TrimSpace(sub); sub != "" {
			subjects = append(subjects, sub)
		}
	}

	t := &model.Teacher{
		EmployeeID: employeeID,
		Name:       strings.TrimSpace(item.Name),
		Email:      normalizeEmail(item.Email),
		Department: strings.TrimSpace(item.Department),
		Subjects:   subjects,
	}
	t.CreatedBy = model.StrPtr(actor.UserID)
	if err := s.repo.Teacher.Create(ctx, t); err != nil {
		if pkgerrors.IsDuplicateKey(err) {
			return ErrTeacherExists
		}
		s.logger.Error("创建教师失败", zap.String("employee_id", employeeID), zap.Error(err))
		return err
	}
	return nil
}

func (s *catalogService) ListTeachers(ctx context.Context, req *dto.CatalogListRequest) (*dto.PageResult[dto.TeacherResponse], error) {
	list, total, err := s.repo.Teacher.List(ctx, req.Department, req.GetOffset(), req.GetPageSize())
	if err != nil {
		s.logger.Error("查询教师列表失败", zap.Error(err))
		return nil, err
	}

	items := make([]dto.TeacherResponse, 0, len(list))
	for _, t := range list {
		subjects := []string(t.Subjects)
		if subjects == nil {
			subjects = []string{}
		}
		items = append(items, dto.TeacherResponse{
			ID:         t.TeacherID,
			EmployeeID: t.EmployeeID,
			Name:       t.Name,
			Email:      t.Email,
			Department: t.Department,
			Subjects:   subjects,
		})
	}
	return &dto.PageResult[dto.TeacherResponse]{
		List:     items,
		Total:    total,
		Page:     req.GetPage(),
		PageSize: req.GetPageSize(),
	}, nil
}

// ═══════════════════════════════════════════════════════════
// 科目
// ═══════════════════════════════════════════════════════════

func (s *catalogService) ImportSubjects(ctx context.Context, req *dto.ImportSubjectsRequest, actor Actor) (*dto.BatchResponse, error) {
	batch := &dto.BatchResponse{Results: []dto.BatchItemResult{}}
	seen := make(map[string]struct{}, len(req.Subjects))

	for _, item := range req.Subjects {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		code := strings.ToUpper(strings.TrimSpace(item.Code))
		if _, dup := seen[code]; dup {
			batch.Add(dto.BatchItemResult{Key: code, Error: ErrDuplicateItem.Error()})
			continue
		}
		seen[code] = struct{}{}

		if err := s.createSubject(ctx, code, item, actor); err != nil {
			batch.Add(dto.BatchItemResult{Key: code, Error: err.Error()})
			continue
		}
		batch.Add(dto.BatchItemResult{Key: code, Success: true})
	}

	s.logger.Info("科目目录导入完成",
		zap.Int("total", batch.Total),
		zap.Int("succeeded", batch.Succeeded),
		zap.Int("failed", batch.Failed),
	)
	return batch, nil
}

func (s *catalogService) createSubject(ctx context.Context, code string, item dto.SubjectItem, actor Actor) error {
	if _, err := s.repo.Subject.GetByCode(ctx, code); err == nil {
		return ErrSubjectExists
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		s.logger.Error("查询科目失败", zap.String("code", code), zap.Error(err))
		return err
	}

	sub := &model.Subject{
		Code:       code,
		Name:       strings.TrimSpace(item.Name),
		Department: strings.TrimSpace(item.Department),
		Credits:    item.Credits,
	}
	sub.CreatedBy = model.StrPtr(actor.UserID)
	if err := s.repo.Subject.Create(ctx, sub); err != nil {
		if pkgerrors.IsDuplicateKey(err) {
			return ErrSubjectExists
		}
		s.logger.Error("创建科目失败", zap.String("code", code), zap.Error(err))
		return err
	}
	return nil
}

func (s *catalogService) ListSubjects(ctx context.Context, req *dto.CatalogListRequest) (*dto.PageResult[dto.SubjectResponse], error) {
	list, total, err := s.repo.Subject.List(ctx, req.Department, req.GetOffset(), req.GetPageSize())
	if err != nil {
		s.logger.Error("查询科目列表失败", zap.Error(err))
		return nil, err
	}

	items := make([]dto.SubjectResponse, 0, len(list))
	for _, sub := range list {
		items = append(items, dto.SubjectResponse{
			ID:         sub.SubjectID,
			Code:       sub.Code,
			Name:       sub.Name,
			Department: sub.Department,
			Credits:    sub.Credits,
		})
	}
	return &dto.PageResult[dto.SubjectResponse]{
		List:     items,
		Total:    total,
		Page:     req.GetPage(),
		PageSize: req.GetPageSize(),
	}, nil
}
