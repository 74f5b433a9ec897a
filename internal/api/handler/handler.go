package handler

import (
	"go.uber.org/zap"

	"smart-timetable/config"
	"smart-timetable/internal/realtime"
	"smart-timetable/internal/service"
)

// Handler 所有 Handler 的聚合入口
type Handler struct {
	Auth      *AuthHandler
	Timetable *TimetableHandler
	Export    *ExportHandler
	Comment   *CommentHandler
	Request   *RequestHandler
	Catalog   *CatalogHandler
	Health    *HealthHandler
}

// NewHandler 创建 Handler 聚合；hub 为 nil 时评论实时推送不可用
func NewHandler(cfg *config.Config, svc *service.Service, hub *realtime.Hub, health *HealthHandler, logger *zap.Logger) *Handler {
	return &Handler{
		Auth:      NewAuthHandler(svc.Auth, &cfg.Auth),
		Timetable: NewTimetableHandler(svc.Timetable, cfg.Server.BodyLimit),
		Export:    NewExportHandler(svc.Export),
		Comment:   NewCommentHandler(svc.Comment, hub, logger),
		Request:   NewRequestHandler(svc.Request),
		Catalog:   NewCatalogHandler(svc.Catalog),
		Health:    health,
	}
}
