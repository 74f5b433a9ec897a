package service

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"smart-timetable/internal/dto"
	"smart-timetable/internal/model"
	"smart-timetable/internal/realtime"
	"smart-timetable/internal/repository"
)

// ── 评论模块业务错误 ──

var (
	ErrCommentNotFound  = errors.New("评论不存在")
	ErrCommentEmpty     = errors.New("评论内容不能为空")
	ErrCommentTooLong   = errors.New("评论内容过长")
	ErrCommentForbidden = errors.New("只能删除自己的评论")
)

// CommentService 课表评论业务接口
type CommentService interface {
	List(ctx context.Context, timetableID string, req *dto.CommentListRequest) (*dto.PageResult[dto.CommentResponse], error)
	Create(ctx context.Context, timetableID string, req *dto.CreateCommentRequest, actor Actor) (*dto.CommentResponse, error)
	// Delete 管理员或评论作者可删除
	Delete(ctx context.Context, id string, actor Actor) error
}

type commentService struct {
	repo      *repository.Repository
	publisher EventPublisher
	maxLength int
	logger    *zap.Logger
}

// NewCommentService 创建 CommentService 实例
func NewCommentService(repo *repository.Repository, publisher EventPublisher, maxLength int, logger *zap.Logger) CommentService {
	return &commentService{
		repo:      repo,
		publisher: publisher,
		maxLength: maxLength,
		logger:    logger,
	}
}

func (s *commentService) List(ctx context.Context, timetableID string, req *dto.CommentListRequest) (*dto.PageResult[dto.CommentResponse], error) {
	if err := s.ensureTimetable(ctx, timetableID); err != nil {
		return nil, err
	}

	list, total, err := s.repo.Comment.ListByTimetable(ctx, timetableID, req.GetOffset(), req.GetPageSize())
	if err != nil {
		s.logger.Error("查询评论列表失败", zap.String("timetable_id", timetableID), zap.Error(err))
		return nil, err
	}

	items := make([]dto.CommentResponse, 0, len(list))
	for i := range list {
		items = append(items, toCommentResponse(&list[i]))
	}
	return &dto.PageResult[dto.CommentResponse]{
		List:     items,
		Total:    total,
		Page:     req.GetPage(),
		PageSize: req.GetPageSize(),
	}, nil
}

func (s *commentService) Create(ctx context.Context, timetableID string, req *dto.CreateCommentRequest, actor Actor) (*dto.CommentResponse, error) {
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return nil, ErrCommentEmpty
	}
	if utf8.RuneCountInString(text) > s.maxLength {
		return nil, ErrCommentTooLong
	}
	if err := s.ensureTimetable(ctx, timetableID); err != nil {
		return nil, err
	}

	c := &model.Comment{
		TimetableID: timetableID,
		UserID:      actor.UserID,
		UserEmail:   actor.Email,
		UserRole:    actor.Role,
		Text:        text,
	}
	if err := s.repo.Comment.Create(ctx, c); err != nil {
		s.logger.Error("创建评论失败", zap.String("timetable_id", timetableID), zap.Error(err))
		return nil, err
	}

	resp := toCommentResponse(c)
	s.publisher.Publish(timetableID, realtime.EventCommentCreated, resp)
	return &resp, nil
}

func (s *commentService) Delete(ctx context.Context, id string, actor Actor) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrCommentNotFound
	}
	c, err := s.repo.Comment.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrCommentNotFound
		}
		s.logger.Error("查询评论失败", zap.String("comment_id", id), zap.Error(err))
		return err
	}

	if actor.Role != model.RoleAdmin && c.UserID != actor.UserID {
		return ErrCommentForbidden
	}

	if err := s.repo.Comment.Delete(ctx, id); err != nil {
		s.logger.Error("删除评论失败", zap.String("comment_id", id), zap.Error(err))
		return err
	}

	s.publisher.Publish(c.TimetableID, realtime.EventCommentDeleted, map[string]string{
		"id":           c.CommentID,
		"timetable_id": c.TimetableID,
	})
	return nil
}

// ensureTimetable 评论必须挂在已存在的课表上
func (s *commentService) ensureTimetable(ctx context.Context, timetableID string) error {
	if _, err := s.repo.Timetable.GetByID(ctx, timetableID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrTimetableNotFound
		}
		s.logger.Error("查询课表失败", zap.String("timetable_id", timetableID), zap.Error(err))
		return err
	}
	return nil
}

func toCommentResponse(c *model.Comment) dto.CommentResponse {
	return dto.CommentResponse{
		ID:          c.CommentID,
		TimetableID: c.TimetableID,
		UserID:      c.UserID,
		UserEmail:   c.UserEmail,
		UserRole:    c.UserRole,
		Text:        c.Text,
		CreatedAt:   c.CreatedAt,
	}
}
