package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"smart-timetable/internal/model"
	pkgerrors "smart-timetable/pkg/errors"
)

// ApprovalRequestRepository 审批申请数据访问接口
type ApprovalRequestRepository interface {
	Create(ctx context.Context, req *model.ApprovalRequest) error
	GetByID(ctx context.Context, id string) (*model.ApprovalRequest, error)
	List(ctx context.Context, status string, offset, limit int) ([]model.ApprovalRequest, int64, error)
	// Decide 仅当申请仍为 pending 时写入审批结果，否则返回 ErrOptimisticLock
	Decide(ctx context.Context, req *model.ApprovalRequest) error
	// DeleteDecidedBefore 删除在 before 之前已审批的申请，返回删除条数
	DeleteDecidedBefore(ctx context.Context, before time.Time) (int64, error)
}

type approvalRequestRepo struct {
	db *gorm.DB
}

// NewApprovalRequestRepo 创建 ApprovalRequestRepository 实例
func NewApprovalRequestRepo(db *gorm.DB) ApprovalRequestRepository {
	return &approvalRequestRepo{db: db}
}

func (r *approvalRequestRepo) Create(ctx context.Context, req *model.ApprovalRequest) error {
	return r.db.WithContext(ctx).Create(req).Error
}

func (r *approvalRequestRepo) GetByID(ctx context.Context, id string) (*model.ApprovalRequest, error) {
	var req model.ApprovalRequest
	err := r.db.WithContext(ctx).
		Where("request_id = ?", id).
		First(&req).Error
	if err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *approvalRequestRepo) List(ctx context.Context, status string, offset, limit int) ([]model.ApprovalRequest, int64, error) {
	var list []model.ApprovalRequest
	var total int64

	db := r.db.WithContext(ctx).Model(&model.ApprovalRequest{})
	if status != "" {
		db = db.Where("status = ?", status)
	}

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

func (r *approvalRequestRepo) Decide(ctx context.Context, req *model.ApprovalRequest) error {
	result := r.db.WithContext(ctx).
		Model(&model.ApprovalRequest{}).
		Where("request_id = ? AND status = ?", req.RequestID, model.RequestStatusPending).
		Updates(map[string]interface{}{
			"status":     req.Status,
			"note":       req.Note,
			"decided_at": req.DecidedAt,
			"updated_by": req.UpdatedBy,
			"updated_at": req.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pkgerrors.ErrOptimisticLock
	}
	return nil
}

func (r *approvalRequestRepo) DeleteDecidedBefore(ctx context.Context, before time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("status <> ? AND decided_at < ?", model.RequestStatusPending, before).
		Delete(&model.ApprovalRequest{})
	return result.RowsAffected, result.Error
}
