package model

import "time"

// 申请状态
const (
	RequestStatusPending  = "pending"
	RequestStatusApproved = "approved"
	RequestStatusRejected = "rejected"
)

// 申请类型
const (
	RequestTypeTimetableChange = "timetable_change"
	RequestTypeRoomBooking     = "room_booking"
	RequestTypeOther           = "other"
)

// ApprovalRequest 审批申请，对应 approval_requests
// CreatedBy 为申请人，UpdatedBy 为审批人
type ApprovalRequest struct {
	RequestID      string     `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"request_id"`
	Title          string     `gorm:"type:varchar(200);not null"                     json:"title"`
	Description    string     `gorm:"type:text;not null;default:''"                  json:"description"`
	Type           string     `gorm:"type:varchar(30);not null"                      json:"type"`
	Status         string     `gorm:"type:varchar(20);not null;default:'pending'"    json:"status"`
	TimetableID    *string    `gorm:"type:varchar(64)"                               json:"timetable_id,omitempty"`
	RequesterEmail string     `gorm:"type:varchar(255);not null;default:''"          json:"requester_email"`
	Note           string     `gorm:"type:text;not null;default:''"                  json:"note"`
	DecidedAt      *time.Time `                                                      json:"decided_at,omitempty"`
	BaseModel
}

// TableName 指定表名
func (ApprovalRequest) TableName() string { return "approval_requests" }
