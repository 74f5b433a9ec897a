package dto

import "time"

// ── 评论 DTO ──

// CreateCommentRequest 发表评论
type CreateCommentRequest struct {
	Text string `json:"text" binding:"required,max=1000"`
}

// CommentListRequest 评论列表查询
type CommentListRequest struct {
	PaginationRequest
}

// CommentResponse 评论
type CommentResponse struct {
	ID          string    `json:"id"`
	TimetableID string    `json:"timetable_id"`
	UserID      string    `json:"user_id"`
	UserEmail   string    `json:"user_email"`
	UserRole    string    `json:"user_role"`
	Text        string    `json:"text"`
	CreatedAt   time.Time `json:"created_at"`
}
