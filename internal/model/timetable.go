package model

import "gorm.io/datatypes"

// Timetable 课表文档，对应 timetables
//
// Content 保存完整的课表 JSON（含 metadata）；semester 等元数据冗余到列上便于检索。
type Timetable struct {
	DocumentID   string         `gorm:"type:varchar(64);primaryKey"           json:"document_id"`
	Content      datatypes.JSON `gorm:"type:jsonb;not null"                   json:"content"`
	Semester     string         `gorm:"type:text;not null;default:''"         json:"semester"`
	AcademicYear string         `gorm:"type:varchar(9);not null;default:''"   json:"academic_year"`
	ClassGrade   string         `gorm:"type:text;not null;default:''"         json:"class_grade"`
	Section      string         `gorm:"type:text;not null;default:''"         json:"section"`
	VersionedModel
}

// TableName 指定表名
func (Timetable) TableName() string { return "timetables" }
