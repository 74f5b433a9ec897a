package handler

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"smart-timetable/internal/dto"
	"smart-timetable/internal/realtime"
	"smart-timetable/internal/service"
	"smart-timetable/pkg/response"
)

// CommentHandler 评论模块 HTTP 处理器
type CommentHandler struct {
	svc    service.CommentService
	hub    *realtime.Hub
	logger *zap.Logger
}

// NewCommentHandler 创建 CommentHandler
func NewCommentHandler(svc service.CommentService, hub *realtime.Hub, logger *zap.Logger) *CommentHandler {
	return &CommentHandler{svc: svc, hub: hub, logger: logger}
}

// List 课表评论（新→旧）
// GET /api/v1/timetables/:id/comments
func (h *CommentHandler) List(c *gin.Context) {
	var req dto.CommentListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		badRequest(c, 21001, err)
		return
	}

	page, err := h.svc.List(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		handleCommentError(c, err)
		return
	}
	response.OKPage(c, page.List, page.Total, page.Page, page.PageSize)
}

// Create 发表评论
// POST /api/v1/timetables/:id/comments
func (h *CommentHandler) Create(c *gin.Context) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	var req dto.CreateCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, 21001, err)
		return
	}

	comment, err := h.svc.Create(c.Request.Context(), c.Param("id"), &req, actor)
	if err != nil {
		handleCommentError(c, err)
		return
	}
	response.Created(c, comment)
}

// Delete 删除评论（管理员或作者）
// DELETE /api/v1/comments/:id
func (h *CommentHandler) Delete(c *gin.Context) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	if err := h.svc.Delete(c.Request.Context(), c.Param("id"), actor); err != nil {
		handleCommentError(c, err)
		return
	}
	response.OK(c, nil)
}

// Stream 评论实时推送（WebSocket）
// GET /api/v1/timetables/:id/comments/ws
func (h *CommentHandler) Stream(c *gin.Context) {
	if h.hub == nil {
		response.NotFound(c, 21105, "实时推送未启用")
		return
	}

	id := c.Param("id")
	// 先确认课表存在，避免为不存在的课表建立订阅
	probe := &dto.CommentListRequest{PaginationRequest: dto.PaginationRequest{Page: 1, PageSize: 1}}
	if _, err := h.svc.List(c.Request.Context(), id, probe); err != nil {
		handleCommentError(c, err)
		return
	}

	if err := h.hub.Serve(c.Writer, c.Request, id); err != nil {
		// 升级失败时 websocket 库已写入错误响应
		h.logger.Warn("WebSocket 升级失败", zap.String("timetable_id", id), zap.Error(err))
	}
}
