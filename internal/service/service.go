package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"smart-timetable/config"
	"smart-timetable/internal/realtime"
	"smart-timetable/internal/repository"
	"smart-timetable/internal/schema"
	"smart-timetable/pkg/jwt"
	"smart-timetable/pkg/redis"
)

// Service 所有 Service 的聚合入口
type Service struct {
	Auth      AuthService
	Timetable TimetableService
	Export    ExportService
	Comment   CommentService
	Request   ApprovalService
	Catalog   CatalogService
}

// Actor 当前操作人（来自 JWT Claims）
type Actor struct {
	UserID string
	Email  string
	Role   string
}

// ── 可选的外部能力 ──

// TokenBlacklist Token 黑名单（Redis）
type TokenBlacklist interface {
	BlacklistToken(ctx context.Context, jti string, ttl time.Duration) error
	IsBlacklisted(ctx context.Context, jti string) (bool, error)
}

// TimetableCache 课表文档缓存（Redis）
type TimetableCache interface {
	GetTimetable(ctx context.Context, id string) ([]byte, bool, error)
	SetTimetable(ctx context.Context, id string, data []byte, ttl time.Duration) error
	DeleteTimetable(ctx context.Context, ids ...string) error
}

// EventPublisher 实时事件发布（WebSocket Hub）
type EventPublisher interface {
	Publish(topic, eventType string, payload interface{})
}

// Redis 不可用或未启用实时推送时使用的空实现
type nopBlacklist struct{}

func (nopBlacklist) BlacklistToken(context.Context, string, time.Duration) error { return nil }
func (nopBlacklist) IsBlacklisted(context.Context, string) (bool, error) { return false, nil }

type nopCache struct{}

func (nopCache) GetTimetable(context.Context, string) ([]byte, bool, error) { return nil, false, nil }
func (nopCache) SetTimetable(context.Context, string, []byte, time.Duration) error { return nil }
func (nopCache) DeleteTimetable(context.Context, ...string) error { return nil }

type nopPublisher struct{}

func (nopPublisher) Publish(string, string, interface{}) {}

// NewService 创建 Service 聚合
//
// rdb、hub 允许为 nil：此时黑名单、缓存与实时推送退化为空实现。
func NewService(
	cfg *config.Config,
	repo *repository.Repository,
	jwtMgr *jwt.Manager,
	rdb *redis.Client,
	hub *realtime.Hub,
	validator *schema.Validator,
	logger *zap.Logger,
) *Service {
	var (
		blacklist TokenBlacklist = nopBlacklist{}
		cache     TimetableCache = nopCache{}
		publisher EventPublisher = nopPublisher{}
	)
	// nil 指针不能直接赋给接口，否则接口非 nil 但调用会 panic
	if rdb != nil {
		blacklist = rdb
		cache = rdb
	}
	if hub != nil {
		publisher = hub
	}

	timetable := NewTimetableService(repo, validator, cache, publisher, cfg.Cache.TimetableTTL, logger)

	return &Service{
		Auth:      NewAuthService(cfg, repo, jwtMgr, blacklist, logger),
		Timetable: timetable,
		Export:    NewExportService(timetable, validator, logger),
		Comment:   NewCommentService(repo, publisher, cfg.Comment.MaxLength, logger),
		Request:   NewApprovalService(repo, logger),
		Catalog:   NewCatalogService(repo, logger),
	}
}
