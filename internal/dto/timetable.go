package dto

import (
	"encoding/json"
	"time"

	"smart-timetable/internal/schema"
)

// ── 课表文档 DTO ──

// TimetableListRequest 课表列表查询
type TimetableListRequest struct {
	PaginationRequest
	Semester   string `form:"semester"    binding:"omitempty,max=50"`
	ClassGrade string `form:"class_grade" binding:"omitempty,max=50"`
}

// SaveTimetableRequest 保存课表
//
// Timetable 保持原始 JSON，由 schema 包负责校验或清洗；
// Version 为空表示不做乐观锁检查（新建或强制覆盖）。
type SaveTimetableRequest struct {
	Timetable json.RawMessage `json:"timetable" binding:"required"`
	Version   *int            `json:"version"   binding:"omitempty,min=1"`
}

// SaveOptions 保存选项（来自 query）
type SaveOptions struct {
	Sanitize bool `form:"sanitize"`
}

// TimetableSummary 课表列表项（不含内容）
type TimetableSummary struct {
	DocumentID   string    `json:"document_id"`
	Semester     string    `json:"semester"`
	AcademicYear string    `json:"academic_year"`
	ClassGrade   string    `json:"class_grade"`
	Section      string    `json:"section"`
	Version      int       `json:"version"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// TimetableDocument 课表文档详情
type TimetableDocument struct {
	DocumentID string        `json:"document_id"`
	Timetable  schema.Record `json:"timetable"`
	Version    int           `json:"version"`
	CreatedAt  time.Time     `json:"created_at"`
	UpdatedAt  time.Time     `json:"updated_at"`
}

// SaveTimetableResponse 保存结果
type SaveTimetableResponse struct {
	TimetableDocument
	Created   bool `json:"created"`
	Sanitized bool `json:"sanitized"`
}

// TeacherConflictReport 教师跨课表冲突报告
type TeacherConflictReport struct {
	Teacher   string            `json:"teacher"`
	Documents int               `json:"documents"` // 参与检测的课表数
	Conflicts []schema.Conflict `json:"conflicts"`
}

// NamesResponse 科目或教师列表
type NamesResponse struct {
	DocumentID string   `json:"document_id"`
	Names      []string `json:"names"`
}

// ICSImportResponse 日历导入结果
type ICSImportResponse struct {
	SaveTimetableResponse
	Imported int      `json:"imported"`
	Skipped  []string `json:"skipped"`
}
