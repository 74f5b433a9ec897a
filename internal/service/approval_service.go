package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"smart-timetable/internal/dto"
	"smart-timetable/internal/model"
	"smart-timetable/internal/repository"
	pkgerrors "smart-timetable/pkg/errors"
)

// ── 审批模块业务错误 ──

var (
	ErrRequestNotFound   = errors.New("申请不存在")
	ErrRequestNotPending = errors.New("申请已处理，不能重复审批")
	ErrRequestForbidden  = errors.New("无权查看该申请")
)

// ApprovalService 审批申请业务接口
type ApprovalService interface {
	Create(ctx context.Context, req *dto.CreateApprovalRequest, actor Actor) (*dto.ApprovalResponse, error)
	List(ctx context.Context, req *dto.ApprovalListRequest) (*dto.PageResult[dto.ApprovalResponse], error)
	// Get 管理员或申请人可查看
	Get(ctx context.Context, id string, actor Actor) (*dto.ApprovalResponse, error)
	Approve(ctx context.Context, id string, req *dto.DecideApprovalRequest, actor Actor) (*dto.ApprovalResponse, error)
	Reject(ctx context.Context, id string, req *dto.DecideApprovalRequest, actor Actor) (*dto.ApprovalResponse, error)
	// PurgeDecided 删除审批时间早于 now-retention 的已处理申请
	PurgeDecided(ctx context.Context, retention time.Duration) (int64, error)
}

type approvalService struct {
	repo   *repository.Repository
	logger *zap.Logger
	now    func() time.Time
}

// NewApprovalService 创建 ApprovalService 实例
func NewApprovalService(repo *repository.Repository, logger *zap.Logger) ApprovalService {
	return &approvalService{repo: repo, logger: logger, now: time.Now}
}

func (s *approvalService) Create(ctx context.Context, req *dto.CreateApprovalRequest, actor Actor) (*dto.ApprovalResponse, error) {
	// 关联课表必须存在
	if req.TimetableID != "" {
		if _, err := s.repo.Timetable.GetByID(ctx, req.TimetableID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrTimetableNotFound
			}
			s.logger.Error("查询课表失败", zap.String("timetable_id", req.TimetableID), zap.Error(err))
			return nil, err
		}
	}

	r := &model.ApprovalRequest{
		Title:          strings.TrimSpace(req.Title),
		Description:    strings.TrimSpace(req.Description),
		Type:           req.Type,
		Status:         model.RequestStatusPending,
		TimetableID:    model.StrPtr(req.TimetableID),
		RequesterEmail: actor.Email,
	}
	now := s.now()
	r.CreatedAt = now
	r.UpdatedAt = now
	r.CreatedBy = model.StrPtr(actor.UserID)

	if err := s.repo.Request.Create(ctx, r); err != nil {
		s.logger.Error("创建申请失败", zap.Error(err))
		return nil, err
	}

	s.logger.Info("收到审批申请",
		zap.String("request_id", r.RequestID),
		zap.String("type", r.Type),
		zap.String("requester", actor.Email),
	)
	resp := toApprovalResponse(r)
	return &resp, nil
}

func (s *approvalService) List(ctx context.Context, req *dto.ApprovalListRequest) (*dto.PageResult[dto.ApprovalResponse], error) {
	list, total, err := s.repo.Request.List(ctx, req.Status, req.GetOffset(), req.GetPageSize())
	if err != nil {
		s.logger.Error("查询申请列表失败", zap.Error(err))
		return nil, err
	}

	items := make([]dto.ApprovalResponse, 0, len(list))
	for i := range list {
		items = append(items, toApprovalResponse(&list[i]))
	}
	return &dto.PageResult[dto.ApprovalResponse]{
		List:     items,
		Total:    total,
		Page:     req.GetPage(),
		PageSize: req.GetPageSize(),
	}, nil
}

func (s *approvalService) Get(ctx context.Context, id string, actor Actor) (*dto.ApprovalResponse, error) {
	r, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor.Role != model.RoleAdmin && (r.CreatedBy == nil || *r.CreatedBy != actor.UserID) {
		return nil, ErrRequestForbidden
	}
	resp := toApprovalResponse(r)
	return &resp, nil
}

func (s *approvalService) Approve(ctx context.Context, id string, req *dto.DecideApprovalRequest, actor Actor) (*dto.ApprovalResponse, error) {
	return s.decide(ctx, id, model.RequestStatusApproved, req, actor)
}

func (s *approvalService) Reject(ctx context.Context, id string, req *dto.DecideApprovalRequest, actor Actor) (*dto.ApprovalResponse, error) {
	return s.decide(ctx, id, model.RequestStatusRejected, req, actor)
}

// decide 仅 pending 状态可审批；并发审批由仓储层的状态条件兜底
func (s *approvalService) decide(ctx context.Context, id, status string, req *dto.DecideApprovalRequest, actor Actor) (*dto.ApprovalResponse, error) {
	r, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if r.Status != model.RequestStatusPending {
		return nil, ErrRequestNotPending
	}

	now := s.now()
	r.Status = status
	r.Note = strings.TrimSpace(req.Note)
	r.DecidedAt = &now
	r.UpdatedAt = now
	r.UpdatedBy = model.StrPtr(actor.UserID)

	if err := s.repo.Request.Decide(ctx, r); err != nil {
		if errors.Is(err, pkgerrors.ErrOptimisticLock) {
			return nil, ErrRequestNotPending
		}
		s.logger.Error("审批申请失败", zap.String("request_id", id), zap.Error(err))
		return nil, err
	}

	s.logger.Info("申请已审批",
		zap.String("request_id", id),
		zap.String("status", status),
		zap.String("operator_id", actor.UserID),
	)
	resp := toApprovalResponse(r)
	return &resp, nil
}

func (s *approvalService) PurgeDecided(ctx context.Context, retention time.Duration) (int64, error) {
	before := s.now().Add(-retention)
	n, err := s.repo.Request.DeleteDecidedBefore(ctx, before)
	if err != nil {
		s.logger.Error("清理已处理申请失败", zap.Error(err))
		return 0, err
	}
	if n > 0 {
		s.logger.Info("已清理过期申请", zap.Int64("deleted", n), zap.Time("before", before))
	}
	return n, nil
}

func (s *approvalService) get(ctx context.Context, id string) (*model.ApprovalRequest, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrRequestNotFound
	}
	r, err := s.repo.Request.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRequestNotFound
		}
		s.logger.Error("查询申请失败", zap.String("request_id", id), zap.Error(err))
		return nil, err
	}
	return r, nil
}

func toApprovalResponse(r *model.ApprovalRequest) dto.ApprovalResponse {
	resp := dto.ApprovalResponse{
		ID:             r.RequestID,
		Title:          r.Title,
		Description:    r.Description,
		Type:           r.Type,
		Status:         r.Status,
		RequesterEmail: r.RequesterEmail,
		Note:           r.Note,
		DecidedAt:      r.DecidedAt,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
	if r.TimetableID != nil {
		resp.TimetableID = *r.TimetableID
	}
	if r.CreatedBy != nil {
		resp.RequestedBy = *r.CreatedBy
	}
	if r.UpdatedBy != nil {
		resp.UpdatedBy = *r.UpdatedBy
	}
	return resp
}
