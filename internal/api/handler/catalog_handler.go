package handler

import (
	"github.com/gin-gonic/gin"

	"smart-timetable/internal/dto"
	"smart-timetable/internal/service"
	"smart-timetable/pkg/response"
)

// CatalogHandler 教师 / 科目目录 HTTP 处理器
type CatalogHandler struct {
	svc service.CatalogService
}

// NewCatalogHandler 创建 CatalogHandler
func NewCatalogHandler(svc service.CatalogService) *CatalogHandler {
	return &CatalogHandler{svc: svc}
}

// ImportTeachers 批量导入教师
// POST /api/v1/catalog/teachers/import
func (h *CatalogHandler) ImportTeachers(c *gin.Context) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	var req dto.ImportTeachersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, 23001, err)
		return
	}

	batch, err := h.svc.ImportTeachers(c.Request.Context(), &req, actor)
	if err != nil {
		handleTimetableError(c, err)
		return
	}
	response.OK(c, batch)
}

// ImportSubjects 批量导入科目
// POST /api/v1/catalog/subjects/import
func (h *CatalogHandler) ImportSubjects(c *gin.Context) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	var req dto.ImportSubjectsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, 23001, err)
		return
	}

	batch, err := h.svc.ImportSubjects(c.Request.Context(), &req, actor)
	if err != nil {
		handleTimetableError(c, err)
		return
	}
	response.OK(c, batch)
}

// ListTeachers 教师列表
// GET /api/v1/catalog/teachers
func (h *CatalogHandler) ListTeachers(c *gin.Context) {
	var req dto.CatalogListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		badRequest(c, 23001, err)
		return
	}

	page, err := h.svc.ListTeachers(c.Request.Context(), &req)
	if err != nil {
		handleTimetableError(c, err)
		return
	}
	response.OKPage(c, page.List, page.Total, page.Page, page.PageSize)
}

// ListSubjects 科目列表
// GET /api/v1/catalog/subjects
func (h *CatalogHandler) ListSubjects(c *gin.Context) {
	var req dto.CatalogListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		badRequest(c, 23001, err)
		return
	}

	page, err := h.svc.ListSubjects(c.Request.Context(), &req)
	if err != nil {
		handleTimetableError(c, err)
		return
	}
	response.OKPage(c, page.List, page.Total, page.Page, page.PageSize)
}
