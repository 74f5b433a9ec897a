package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"smart-timetable/internal/dto"
	"smart-timetable/internal/service"
	"smart-timetable/pkg/response"
)

// RequestHandler 审批申请 HTTP 处理器
type RequestHandler struct {
	svc service.ApprovalService
}

// NewRequestHandler 创建 RequestHandler
func NewRequestHandler(svc service.ApprovalService) *RequestHandler {
	return &RequestHandler{svc: svc}
}

// Create 提交申请
// POST /api/v1/requests
func (h *RequestHandler) Create(c *gin.Context) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	var req dto.CreateApprovalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, 22001, err)
		return
	}

	r, err := h.svc.Create(c.Request.Context(), &req, actor)
	if err != nil {
		handleRequestError(c, err)
		return
	}
	response.Created(c, r)
}

// List 申请列表（管理员）
// GET /api/v1/requests?status=pending
func (h *RequestHandler) List(c *gin.Context) {
	var req dto.ApprovalListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		badRequest(c, 22001, err)
		return
	}

	page, err := h.svc.List(c.Request.Context(), &req)
	if err != nil {
		handleRequestError(c, err)
		return
	}
	response.OKPage(c, page.List, page.Total, page.Page, page.PageSize)
}

// Get 申请详情（管理员或申请人）
// GET /api/v1/requests/:id
func (h *RequestHandler) Get(c *gin.Context) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	r, err := h.svc.Get(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		handleRequestError(c, err)
		return
	}
	response.OK(c, r)
}

// Approve 通过申请
// PUT /api/v1/requests/:id/approve
func (h *RequestHandler) Approve(c *gin.Context) {
	h.decide(c, h.svc.Approve)
}

// Reject 驳回申请
// PUT /api/v1/requests/:id/reject
func (h *RequestHandler) Reject(c *gin.Context) {
	h.decide(c, h.svc.Reject)
}

type decideFunc func(ctx context.Context, id string, req *dto.DecideApprovalRequest, actor service.Actor) (*dto.ApprovalResponse, error)

func (h *RequestHandler) decide(c *gin.Context, fn decideFunc) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	// 备注可选，空请求体合法
	var req dto.DecideApprovalRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, 22001, err)
			return
		}
	}

	r, err := fn(c.Request.Context(), c.Param("id"), &req, actor)
	if err != nil {
		handleRequestError(c, err)
		return
	}
	response.OK(c, r)
}
