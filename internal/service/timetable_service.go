package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"smart-timetable/internal/dto"
	"smart-timetable/internal/model"
	"smart-timetable/internal/realtime"
	"smart-timetable/internal/repository"
	"smart-timetable/internal/schema"
	pkgerrors "smart-timetable/pkg/errors"
	appvalidator "smart-timetable/pkg/validator"
)

// ── 课表模块业务错误 ──

var (
	ErrTimetableNotFound  = errors.New("课表不存在")
	ErrTimetableInvalidID = errors.New("课表 ID 格式错误")
	ErrTimetableMalformed = errors.New("课表 JSON 格式错误")
	ErrTimetableInvalid   = errors.New("课表结构校验未通过")
	ErrTeacherRequired    = errors.New("教师姓名不能为空")
)

// ValidationError 课表校验失败，携带完整的校验结果
type ValidationError struct {
	Result schema.Result
}

func (e *ValidationError) Error() string {
	return ErrTimetableInvalid.Error() + ": " + strings.Join(e.Result.Errors, "; ")
}

// Is 使 errors.Is(err, ErrTimetableInvalid) 成立
func (e *ValidationError) Is(target error) bool {
	return target == ErrTimetableInvalid
}

// TimetableService 课表文档业务接口
type TimetableService interface {
	// Template 返回空课表
	Template() schema.Record
	// Validate 仅校验不保存；JSON 本身格式错误时返回 ErrTimetableMalformed
	Validate(raw []byte) (schema.Result, error)
	// Sanitize 仅清洗不保存
	Sanitize(raw []byte) (schema.Record, error)

	List(ctx context.Context, req *dto.TimetableListRequest) (*dto.PageResult[dto.TimetableSummary], error)
	Get(ctx context.Context, id string) (*dto.TimetableDocument, error)
	Save(ctx context.Context, id string, req *dto.SaveTimetableRequest, opts dto.SaveOptions, actor Actor) (*dto.SaveTimetableResponse, error)
	Delete(ctx context.Context, id string) error

	// ImportJSON 批量导入 docID → 课表，逐项返回结果
	ImportJSON(ctx context.Context, docs map[string]json.RawMessage, actor Actor) (*dto.BatchResponse, error)
	// ImportXLSX 从工作簿导入，每个 Sheet 对应一份课表
	ImportXLSX(ctx context.Context, data []byte, actor Actor) (*dto.BatchResponse, error)
	// ImportICS 将 iCalendar 中的周课程导入到指定课表（整份覆盖）
	ImportICS(ctx context.Context, id string, data []byte, actor Actor) (*dto.ICSImportResponse, error)

	Subjects(ctx context.Context, id string) ([]string, error)
	Teachers(ctx context.Context, id string) ([]string, error)
	Conflicts(ctx context.Context, id, teacher string) ([]schema.Conflict, error)
	// TeacherConflicts 跨全部课表检测同一教师在同一时间段的重复占用
	TeacherConflicts(ctx context.Context, teacher string) (*dto.TeacherConflictReport, error)
}

type timetableService struct {
	repo      *repository.Repository
	validator *schema.Validator
	cache     TimetableCache
	publisher EventPublisher
	cacheTTL  time.Duration
	logger    *zap.Logger
	now       func() time.Time
	loc       *time.Location
}

// NewTimetableService 创建 TimetableService 实例
func NewTimetableService(
	repo *repository.Repository,
	validator *schema.Validator,
	cache TimetableCache,
	publisher EventPublisher,
	cacheTTL time.Duration,
	logger *zap.Logger,
) TimetableService {
	return &timetableService{
		repo:      repo,
		validator: validator,
		cache:     cache,
		publisher: publisher,
		cacheTTL:  cacheTTL,
		logger:    logger,
		now:       time.Now,
		loc:       time.Local,
	}
}

// saveParams 内部保存参数
type saveParams struct {
	sanitize bool
	version  *int
	// fresh 为 true 时重置 createdAt/createdBy（批量导入）
	fresh bool
}

func (s *timetableService) Template() schema.Record {
	return s.validator.CreateEmpty()
}

func (s *timetableService) Validate(raw []byte) (schema.Result, error) {
	candidate, err := schema.Decode(raw)
	if err != nil {
		return schema.Result{}, fmt.Errorf("%w: %v", ErrTimetableMalformed, err)
	}
	return s.validator.Validate(candidate), nil
}

func (s *timetableService) Sanitize(raw []byte) (schema.Record, error) {
	candidate, err := schema.Decode(raw)
	if err != nil {
		return schema.Record{}, fmt.Errorf("%w: %v", ErrTimetableMalformed, err)
	}
	return s.validator.Sanitize(candidate), nil
}

// ═══════════════════════════════════════════════════════════
// 查询
// ═══════════════════════════════════════════════════════════

func (s *timetableService) List(ctx context.Context, req *dto.TimetableListRequest) (*dto.PageResult[dto.TimetableSummary], error) {
	filter := repository.TimetableFilter{
		Semester:   req.Semester,
		ClassGrade: req.ClassGrade,
	}
	list, total, err := s.repo.Timetable.List(ctx, filter, req.GetOffset(), req.GetPageSize())
	if err != nil {
		s.logger.Error("查询课表列表失败", zap.Error(err))
		return nil, err
	}

	items := make([]dto.TimetableSummary, 0, len(list))
	for i := range list {
		items = append(items, toTimetableSummary(&list[i]))
	}
	return &dto.PageResult[dto.TimetableSummary]{
		List:     items,
		Total:    total,
		Page:     req.GetPage(),
		PageSize: req.GetPageSize(),
	}, nil
}

func (s *timetableService) Get(ctx context.Context, id string) (*dto.TimetableDocument, error) {
	if !appvalidator.IsDocID(id) {
		return nil, ErrTimetableInvalidID
	}

	// 1. 缓存
	if data, ok, err := s.cache.GetTimetable(ctx, id); err != nil {
		s.logger.Warn("读取课表缓存失败", zap.String("document_id", id), zap.Error(err))
	} else if ok {
		var doc dto.TimetableDocument
		if err := json.Unmarshal(data, &doc); err == nil {
			return &doc, nil
		}
		s.logger.Warn("课表缓存内容损坏", zap.String("document_id", id))
	}

	// 2. 数据库
	t, err := s.repo.Timetable.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTimetableNotFound
		}
		s.logger.Error("查询课表失败", zap.String("document_id", id), zap.Error(err))
		return nil, err
	}
	doc, err := s.toDocument(t)
	if err != nil {
		return nil, err
	}

	// 3. 回填缓存
	if data, err := json.Marshal(doc); err == nil {
		if err := s.cache.SetTimetable(ctx, id, data, s.cacheTTL); err != nil {
			s.logger.Warn("写入课表缓存失败", zap.String("document_id", id), zap.Error(err))
		}
	}
	return doc, nil
}

func (s *timetableService) Subjects(ctx context.Context, id string) ([]string, error) {
	rec, err := s.loadRecord(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.validator.UniqueSubjects(rec), nil
}

func (s *timetableService) Teachers(ctx context.Context, id string) ([]string, error) {
	rec, err := s.loadRecord(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.validator.UniqueTeachers(rec), nil
}

func (s *timetableService) Conflicts(ctx context.Context, id, teacher string) ([]schema.Conflict, error) {
	teacher = strings.TrimSpace(teacher)
	if teacher == "" {
		return nil, ErrTeacherRequired
	}
	rec, err := s.loadRecord(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.validator.TeacherConflicts(rec, teacher), nil
}

func (s *timetableService) TeacherConflicts(ctx context.Context, teacher string) (*dto.TeacherConflictReport, error) {
	teacher = strings.TrimSpace(teacher)
	if teacher == "" {
		return nil, ErrTeacherRequired
	}

	docs, err := s.repo.Timetable.ListAll(ctx)
	if err != nil {
		s.logger.Error("查询全部课表失败", zap.Error(err))
		return nil, err
	}

	var bookings []schema.Booking
	for i := range docs {
		rec, err := decodeContent(&docs[i])
		if err != nil {
			s.logger.Warn("课表内容无法解析，跳过", zap.String("document_id", docs[i].DocumentID), zap.Error(err))
			continue
		}
		bookings = append(bookings, s.validator.Bookings(rec, docs[i].DocumentID)...)
	}

	return &dto.TeacherConflictReport{
		Teacher:   teacher,
		Documents: len(docs),
		Conflicts: schema.TeacherConflictsIn(bookings, teacher),
	}, nil
}

// loadRecord 读取课表内容（经缓存）
func (s *timetableService) loadRecord(ctx context.Context, id string) (schema.Record, error) {
	doc, err := s.Get(ctx, id)
	if err != nil {
		return schema.Record{}, err
	}
	return doc.Timetable, nil
}

// ═══════════════════════════════════════════════════════════
// 保存 / 删除
// ═══════════════════════════════════════════════════════════

func (s *timetableService) Save(ctx context.Context, id string, req *dto.SaveTimetableRequest, opts dto.SaveOptions, actor Actor) (*dto.SaveTimetableResponse, error) {
	if !appvalidator.IsDocID(id) {
		return nil, ErrTimetableInvalidID
	}
	candidate, err := schema.Decode(req.Timetable)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTimetableMalformed, err)
	}
	return s.save(ctx, id, candidate, saveParams{sanitize: opts.Sanitize, version: req.Version}, actor)
}

// save 校验（或清洗）→ 盖元数据戳 → 新建或乐观锁更新 → 失效缓存 → 推送事件
func (s *timetableService) save(ctx context.Context, id string, candidate interface{}, p saveParams, actor Actor) (*dto.SaveTimetableResponse, error) {
	// 1. 校验或清洗
	var rec schema.Record
	if p.sanitize {
		rec = s.validator.Sanitize(candidate)
	} else {
		var res schema.Result
		rec, res = s.validator.ParseValue(candidate)
		if !res.IsValid {
			return nil, &ValidationError{Result: res}
		}
	}

	// 2. 查询现有文档
	existing, err := s.repo.Timetable.GetByID(ctx, id)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		s.logger.Error("查询课表失败", zap.String("document_id", id), zap.Error(err))
		return nil, err
	}
	if existing == nil && p.version != nil {
		return nil, ErrTimetableNotFound
	}
	if existing != nil && p.version != nil && *p.version != existing.Version {
		return nil, pkgerrors.ErrOptimisticLock
	}

	// 3. 元数据
	var prev *schema.Metadata
	if existing != nil && !p.fresh {
		if old, err := decodeContent(existing); err == nil {
			prev = old.Metadata
		}
	}
	rec.Metadata = s.stampMetadata(rec.Metadata, prev, actor)

	content, err := json.Marshal(rec)
	if err != nil {
		return nil, err
	}

	// 4. 写库
	now := s.now()
	t := &model.Timetable{
		DocumentID:   id,
		Content:      content,
		Semester:     rec.Metadata.Semester,
		AcademicYear: rec.Metadata.AcademicYear,
		ClassGrade:   rec.Metadata.ClassGrade,
		Section:      rec.Metadata.Section,
	}
	t.UpdatedAt = now
	t.UpdatedBy = model.StrPtr(actor.UserID)

	created := existing == nil
	if created {
		t.CreatedAt = now
		t.CreatedBy = model.StrPtr(actor.UserID)
		if err := s.repo.Timetable.Create(ctx, t); err != nil {
			if pkgerrors.IsDuplicateKey(err) {
				return nil, pkgerrors.ErrOptimisticLock
			}
			s.logger.Error("创建课表失败", zap.String("document_id", id), zap.Error(err))
			return nil, err
		}
	} else {
		t.CreatedAt = existing.CreatedAt
		t.CreatedBy = existing.CreatedBy
		t.Version = existing.Version
		if err := s.repo.Timetable.Update(ctx, t); err != nil {
			if !errors.Is(err, pkgerrors.ErrOptimisticLock) {
				s.logger.Error("更新课表失败", zap.String("document_id", id), zap.Error(err))
			}
			return nil, err
		}
	}

	// 5. 失效缓存 + 推送
	s.invalidate(ctx, id)
	s.publisher.Publish(id, realtime.EventTimetableSaved, toTimetableSummary(t))

	s.logger.Info("课表已保存",
		zap.String("document_id", id),
		zap.Bool("created", created),
		zap.Bool("sanitized", p.sanitize),
		zap.Int("version", t.Version),
	)

	return &dto.SaveTimetableResponse{
		TimetableDocument: dto.TimetableDocument{
			DocumentID: id,
			Timetable:  rec,
			Version:    t.Version,
			CreatedAt:  t.CreatedAt,
			UpdatedAt:  t.UpdatedAt,
		},
		Created:   created,
		Sanitized: p.sanitize,
	}, nil
}

func (s *timetableService) Delete(ctx context.Context, id string) error {
	if !appvalidator.IsDocID(id) {
		return ErrTimetableInvalidID
	}
	if err := s.repo.Timetable.Delete(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrTimetableNotFound
		}
		s.logger.Error("删除课表失败", zap.String("document_id", id), zap.Error(err))
		return err
	}
	s.invalidate(ctx, id)
	s.publisher.Publish(id, realtime.EventTimetableDeleted, map[string]string{"document_id": id})
	s.logger.Info("课表已删除", zap.String("document_id", id))
	return nil
}

// stampMetadata 由服务端写入 createdAt / updatedAt / createdBy，其余字段沿用请求
func (s *timetableService) stampMetadata(in, prev *schema.Metadata, actor Actor) *schema.Metadata {
	meta := &schema.Metadata{}
	if in != nil {
		*meta = *in
	}
	ts := s.now().UTC().Format(time.RFC3339)

	meta.CreatedAt = ts
	meta.CreatedBy = actorName(actor)
	if prev != nil {
		if prev.CreatedAt != "" {
			meta.CreatedAt = prev.CreatedAt
		}
		if prev.CreatedBy != "" {
			meta.CreatedBy = prev.CreatedBy
		}
	}
	meta.UpdatedAt = ts
	return meta
}

func (s *timetableService) invalidate(ctx context.Context, ids ...string) {
	if err := s.cache.DeleteTimetable(ctx, ids...); err != nil {
		s.logger.Warn("清除课表缓存失败", zap.Strings("document_ids", ids), zap.Error(err))
	}
}

// ═══════════════════════════════════════════════════════════
// 导入
// ═══════════════════════════════════════════════════════════

func (s *timetableService) ImportJSON(ctx context.Context, docs map[string]json.RawMessage, actor Actor) (*dto.BatchResponse, error) {
	ids := make([]string, 0, len(docs))
	for id := range docs {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	batch := &dto.BatchResponse{Results: []dto.BatchItemResult{}}
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		batch.Add(s.importOne(ctx, id, func() (interface{}, error) {
			candidate, err := schema.Decode(docs[id])
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrTimetableMalformed, err)
			}
			return candidate, nil
		}, actor))
	}

	s.logger.Info("课表 JSON 导入完成",
		zap.Int("total", batch.Total),
		zap.Int("succeeded", batch.Succeeded),
		zap.Int("failed", batch.Failed),
	)
	return batch, nil
}

// importOne 导入单份课表，所有错误都折叠进结果项
func (s *timetableService) importOne(ctx context.Context, id string, load func() (interface{}, error), actor Actor) dto.BatchItemResult {
	item := dto.BatchItemResult{Key: id}
	if !appvalidator.IsDocID(id) {
		item.Error = ErrTimetableInvalidID.Error()
		return item
	}
	candidate, err := load()
	if err != nil {
		item.Error = err.Error()
		return item
	}
	if _, err := s.save(ctx, id, candidate, saveParams{fresh: true}, actor); err != nil {
		var ve *ValidationError
		if errors.As(err, &ve) {
			item.Error = ErrTimetableInvalid.Error()
			item.Errors = ve.Result.Errors
		} else {
			item.Error = err.Error()
		}
		return item
	}
	item.Success = true
	return item
}

// ── 辅助函数 ──

// decodeContent 解码已持久化的课表内容（写入前已校验，按类型解码即可）
func decodeContent(t *model.Timetable) (schema.Record, error) {
	var rec schema.Record
	if err := json.Unmarshal(t.Content, &rec); err != nil {
		return schema.Record{}, fmt.Errorf("解析课表 %s 内容失败: %w", t.DocumentID, err)
	}
	return rec, nil
}

func (s *timetableService) toDocument(t *model.Timetable) (*dto.TimetableDocument, error) {
	rec, err := decodeContent(t)
	if err != nil {
		s.logger.Error("课表内容损坏", zap.String("document_id", t.DocumentID), zap.Error(err))
		return nil, err
	}
	return &dto.TimetableDocument{
		DocumentID: t.DocumentID,
		Timetable:  rec,
		Version:    t.Version,
		CreatedAt:  t.CreatedAt,
		UpdatedAt:  t.UpdatedAt,
	}, nil
}

func toTimetableSummary(t *model.Timetable) dto.TimetableSummary {
	return dto.TimetableSummary{
		DocumentID:   t.DocumentID,
		Semester:     t.Semester,
		AcademicYear: t.AcademicYear,
		ClassGrade:   t.ClassGrade,
		Section:      t.Section,
		Version:      t.Version,
		UpdatedAt:    t.UpdatedAt,
	}
}

func actorName(a Actor) string {
	if a.Email != "" {
		return a.Email
	}
	return a.UserID
}
