package repository

import "gorm.io/gorm"

// Repository 所有 Repository 的聚合入口
type Repository struct {
	User      UserRepository
	Timetable TimetableRepository
	Comment   CommentRepository
	Request   ApprovalRequestRepository
	Teacher   TeacherRepository
	Subject   SubjectRepository
}

// NewRepository 创建 Repository 聚合
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{
		User:      NewUserRepo(db),
		Timetable: NewTimetableRepo(db),
		Comment:   NewCommentRepo(db),
		Request:   NewApprovalRequestRepo(db),
		Teacher:   NewTeacherRepo(db),
		Subject:   NewSubjectRepo(db),
	}
}
