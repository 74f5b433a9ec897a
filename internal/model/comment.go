package model

import "time"

// Comment 课表评论，对应 comments
type Comment struct {
	CommentID   string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"comment_id"`
	TimetableID string    `gorm:"type:varchar(64);not null;index"                json:"timetable_id"`
	UserID      string    `gorm:"type:uuid;not null"                             json:"user_id"`
	UserEmail   string    `gorm:"type:varchar(255);not null;default:''"          json:"user_email"`
	UserRole    string    `gorm:"type:varchar(20);not null;default:''"           json:"user_role"`
	Text        string    `gorm:"type:text;not null"                             json:"text"`
	CreatedAt   time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"             json:"created_at"`
}

// TableName 指定表名
func (Comment) TableName() string { return "comments" }
