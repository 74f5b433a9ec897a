package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"smart-timetable/internal/dto"
	"smart-timetable/internal/service"
	"smart-timetable/pkg/response"
)

// 上传文件缺省上限
const defaultMaxUpload = 2 << 20

var errUploadTooLarge = errors.New("上传文件过大")

// TimetableHandler 课表模块 HTTP 处理器
type TimetableHandler struct {
	svc       service.TimetableService
	maxUpload int64
}

// NewTimetableHandler 创建 TimetableHandler；maxUpload<=0 时取 2MB
func NewTimetableHandler(svc service.TimetableService, maxUpload int64) *TimetableHandler {
	if maxUpload <= 0 {
		maxUpload = defaultMaxUpload
	}
	return &TimetableHandler{svc: svc, maxUpload: maxUpload}
}

// ═══════════════════════════════════════════════════════════
// 模板 / 校验 / 清洗（不落库）
// ═══════════════════════════════════════════════════════════

// Template 空课表模板
// GET /api/v1/timetables/template
func (h *TimetableHandler) Template(c *gin.Context) {
	response.OK(c, h.svc.Template())
}

// Validate 校验课表（dry run）
// POST /api/v1/timetables/validate
func (h *TimetableHandler) Validate(c *gin.Context) {
	raw, err := c.GetRawData()
	if err != nil {
		response.BadRequest(c, 20001, "读取请求体失败")
		return
	}
	result, err := h.svc.Validate(raw)
	if err != nil {
		handleTimetableError(c, err)
		return
	}
	response.OK(c, result)
}

// Sanitize 清洗课表
// POST /api/v1/timetables/sanitize
func (h *TimetableHandler) Sanitize(c *gin.Context) {
	raw, err := c.GetRawData()
	if err != nil {
		response.BadRequest(c, 20001, "读取请求体失败")
		return
	}
	rec, err := h.svc.Sanitize(raw)
	if err != nil {
		handleTimetableError(c, err)
		return
	}
	response.OK(c, rec)
}

// ═══════════════════════════════════════════════════════════
// 文档 CRUD
// ═══════════════════════════════════════════════════════════

// List 课表列表
// GET /api/v1/timetables
func (h *TimetableHandler) List(c *gin.Context) {
	var req dto.TimetableListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		badRequest(c, 20001, err)
		return
	}

	page, err := h.svc.List(c.Request.Context(), &req)
	if err != nil {
		handleTimetableError(c, err)
		return
	}
	response.OKPage(c, page.List, page.Total, page.Page, page.PageSize)
}

// Get 课表详情
// GET /api/v1/timetables/:id
func (h *TimetableHandler) Get(c *gin.Context) {
	doc, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleTimetableError(c, err)
		return
	}
	response.OK(c, doc)
}

// Save 新建或更新课表；?sanitize=true 时清洗后保存
// PUT /api/v1/timetables/:id
func (h *TimetableHandler) Save(c *gin.Context) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	var opts dto.SaveOptions
	if err := c.ShouldBindQuery(&opts); err != nil {
		badRequest(c, 20001, err)
		return
	}
	var req dto.SaveTimetableRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, 20001, err)
		return
	}

	resp, err := h.svc.Save(c.Request.Context(), c.Param("id"), &req, opts, actor)
	if err != nil {
		handleTimetableError(c, err)
		return
	}
	if resp.Created {
		response.Created(c, resp)
		return
	}
	response.OK(c, resp)
}

// Delete 删除课表
// DELETE /api/v1/timetables/:id
func (h *TimetableHandler) Delete(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), c.Param("id")); err != nil {
		handleTimetableError(c, err)
		return
	}
	response.OK(c, nil)
}

// ═══════════════════════════════════════════════════════════
// 导入
// ═══════════════════════════════════════════════════════════

// ImportJSON 批量导入 {docID: 课表}
// POST /api/v1/timetables/import
func (h *TimetableHandler) ImportJSON(c *gin.Context) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	var docs map[string]json.RawMessage
	if err := c.ShouldBindJSON(&docs); err != nil {
		response.ErrorWithDetails(c, http.StatusBadRequest, 20103, "课表 JSON 格式错误", err.Error())
		return
	}
	if len(docs) == 0 {
		response.BadRequest(c, 20001, "导入内容为空")
		return
	}

	batch, err := h.svc.ImportJSON(c.Request.Context(), docs, actor)
	if err != nil {
		handleTimetableError(c, err)
		return
	}
	response.OK(c, batch)
}

// ImportXLSX 从 Excel 导入（multipart, field="file"）
// POST /api/v1/timetables/import/xlsx
func (h *TimetableHandler) ImportXLSX(c *gin.Context) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}
	data, ok := h.readUpload(c)
	if !ok {
		return
	}

	batch, err := h.svc.ImportXLSX(c.Request.Context(), data, actor)
	if err != nil {
		handleTimetableError(c, err)
		return
	}
	response.OK(c, batch)
}

// ImportICS 从 iCalendar 导入到指定课表（multipart, field="file"）
// POST /api/v1/timetables/:id/import/ics
func (h *TimetableHandler) ImportICS(c *gin.Context) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}
	data, ok := h.readUpload(c)
	if !ok {
		return
	}

	resp, err := h.svc.ImportICS(c.Request.Context(), c.Param("id"), data, actor)
	if err != nil {
		handleTimetableError(c, err)
		return
	}
	if resp.Created {
		response.Created(c, resp)
		return
	}
	response.OK(c, resp)
}

// readUpload 读取上传文件；失败时已写入响应
func (h *TimetableHandler) readUpload(c *gin.Context) ([]byte, bool) {
	file, _, err := c.Request.FormFile("file")
	if err != nil {
		response.BadRequest(c, 20109, "请上传文件（字段名 file）")
		return nil, false
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, h.maxUpload+1))
	if err != nil {
		response.BadRequest(c, 20109, "读取上传文件失败")
		return nil, false
	}
	if int64(len(data)) > h.maxUpload {
		response.Error(c, http.StatusRequestEntityTooLarge, 10005, errUploadTooLarge.Error())
		return nil, false
	}
	return data, true
}

// ═══════════════════════════════════════════════════════════
// 派生查询
// ═══════════════════════════════════════════════════════════

// Subjects 课表中的科目
// GET /api/v1/timetables/:id/subjects
func (h *TimetableHandler) Subjects(c *gin.Context) {
	id := c.Param("id")
	names, err := h.svc.Subjects(c.Request.Context(), id)
	if err != nil {
		handleTimetableError(c, err)
		return
	}
	response.OK(c, dto.NamesResponse{DocumentID: id, Names: names})
}

// Teachers 课表中的教师
// GET /api/v1/timetables/:id/teachers
func (h *TimetableHandler) Teachers(c *gin.Context) {
	id := c.Param("id")
	names, err := h.svc.Teachers(c.Request.Context(), id)
	if err != nil {
		handleTimetableError(c, err)
		return
	}
	response.OK(c, dto.NamesResponse{DocumentID: id, Names: names})
}

// Conflicts 单份课表内某教师的冲突
// GET /api/v1/timetables/:id/conflicts?teacher=
func (h *TimetableHandler) Conflicts(c *gin.Context) {
	teacher := strings.TrimSpace(c.Query("teacher"))
	conflicts, err := h.svc.Conflicts(c.Request.Context(), c.Param("id"), teacher)
	if err != nil {
		handleTimetableError(c, err)
		return
	}
	response.OK(c, gin.H{"teacher": teacher, "conflicts": conflicts})
}

// TeacherConflicts 跨课表冲突报告
// GET /api/v1/timetables/teachers/:name/conflicts
func (h *TimetableHandler) TeacherConflicts(c *gin.Context) {
	report, err := h.svc.TeacherConflicts(c.Request.Context(), c.Param("name"))
	if err != nil {
		handleTimetableError(c, err)
		return
	}
	response.OK(c, report)
}
