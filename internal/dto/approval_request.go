package dto

import "time"

// ── 审批申请 DTO ──

// CreateApprovalRequest 提交申请
type CreateApprovalRequest struct {
	Title       string `json:"title"        binding:"required,max=200"`
	Description string `json:"description"  binding:"omitempty,max=2000"`
	Type        string `json:"type"         binding:"required,oneof=timetable_change room_booking other"`
	TimetableID string `json:"timetable_id" binding:"omitempty,doc_id"`
}

// DecideApprovalRequest 审批（通过 / 驳回）
type DecideApprovalRequest struct {
	Note string `json:"note" binding:"omitempty,max=500"`
}

// ApprovalListRequest 申请列表查询
type ApprovalListRequest struct {
	PaginationRequest
	Status string `form:"status" binding:"omitempty,oneof=pending approved rejected"`
}

// ApprovalResponse 申请详情
type ApprovalResponse struct {
	ID             string     `json:"id"`
	Title          string     `json:"title"`
	Description    string     `json:"description"`
	Type           string     `json:"type"`
	Status         string     `json:"status"`
	TimetableID    string     `json:"timetable_id,omitempty"`
	RequestedBy    string     `json:"requested_by"`
	RequesterEmail string     `json:"requester_email"`
	UpdatedBy      string     `json:"updated_by,omitempty"`
	Note           string     `json:"note,omitempty"`
	DecidedAt      *time.Time `json:"decided_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}
