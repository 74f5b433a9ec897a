package handler

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"

	"smart-timetable/internal/service"
)

const (
	contentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	contentTypeICS  = "text/calendar; charset=utf-8"
)

// ExportHandler 导出模块 HTTP 处理器
type ExportHandler struct {
	exportSvc service.ExportService
}

// NewExportHandler 创建 ExportHandler
func NewExportHandler(exportSvc service.ExportService) *ExportHandler {
	return &ExportHandler{exportSvc: exportSvc}
}

// ExportXLSX 导出课表为 Excel
// GET /api/v1/timetables/:id/export.xlsx
func (h *ExportHandler) ExportXLSX(c *gin.Context) {
	buf, filename, err := h.exportSvc.ExportXLSX(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleExportError(c, err)
		return
	}
	sendFile(c, filename, contentTypeXLSX, buf.Bytes())
}

// ExportICS 导出课表为 iCalendar，可按教师过滤
// GET /api/v1/timetables/:id/export.ics?teacher=
func (h *ExportHandler) ExportICS(c *gin.Context) {
	data, filename, err := h.exportSvc.ExportICS(c.Request.Context(), c.Param("id"), strings.TrimSpace(c.Query("teacher")))
	if err != nil {
		handleExportError(c, err)
		return
	}
	sendFile(c, filename, contentTypeICS, data)
}

// sendFile 设置下载响应头并写出文件
func sendFile(c *gin.Context, filename, contentType string, data []byte) {
	encodedFilename := url.QueryEscape(filename)
	c.Header("Content-Description", "File Transfer")
	c.Header("Content-Disposition", "attachment; filename*=UTF-8''"+encodedFilename)
	c.Data(http.StatusOK, contentType, data)
}
