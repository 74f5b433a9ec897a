package model

import "gorm.io/datatypes"

// Teacher 教师目录，对应 teachers
type Teacher struct {
	TeacherID  string                      `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"teacher_id"`
	EmployeeID string                      `gorm:"type:varchar(50);not null;uniqueIndex"          json:"employee_id"`
	Name       string                      `gorm:"type:varchar(100);not null"                     json:"name"`
	Email      string                      `gorm:"type:varchar(255);not null;default:''"          json:"email"`
	Department string                      `gorm:"type:varchar(100);not null;default:''"          json:"department"`
	Subjects   datatypes.JSONSlice[string] `gorm:"type:jsonb;not null;default:'[]'"               json:"subjects"`
	BaseModel
}

// TableName 指定表名
func (Teacher) TableName() string { return "teachers" }

// Subject 科目目录，对应 subjects
type Subject struct {
	SubjectID  string `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"subject_id"`
	Code       string `gorm:"type:varchar(50);not null;uniqueIndex"          json:"code"`
	Name       string `gorm:"type:varchar(100);not null"                     json:"name"`
	Department string `gorm:"type:varchar(100);not null;default:''"          json:"department"`
	Credits    int    `gorm:"not null;default:0"                             json:"credits"`
	BaseModel
}

// TableName 指定表名
func (Subject) TableName() string { return "subjects" }
