package dto

// ── 教师 / 科目目录 DTO ──

// TeacherItem 导入的教师条目
type TeacherItem struct {
	EmployeeID string   `json:"employee_id" binding:"required,max=50"`
	Name       string   `json:"name"        binding:"required,max=100"`
	Email      string   `json:"email"       binding:"omitempty,email,max=255"`
	Department string   `json:"department"  binding:"omitempty,max=100"`
	Subjects   []string `json:"subjects"    binding:"omitempty,max=50,dive,max=100"`
}

// ImportTeachersRequest 批量导入教师
type ImportTeachersRequest struct {
	Teachers []TeacherItem `json:"teachers" binding:"required,min=1,max=500,dive"`
}

// SubjectItem 导入的科目条目
type SubjectItem struct {
	Code       string `json:"code"       binding:"required,max=50"`
	Name       string `json:"name"       binding:"required,max=100"`
	Department string `json:"department" binding:"omitempty,max=100"`
	Credits    int    `json:"credits"    binding:"omitempty,min=0,max=30"`
}

// ImportSubjectsRequest 批量导入科目
type ImportSubjectsRequest struct {
	Subjects []SubjectItem `json:"subjects" binding:"required,min=1,max=500,dive"`
}

// CatalogListRequest 目录列表查询
type CatalogListRequest struct {
	PaginationRequest
	Department string `form:"department" binding:"omitempty,max=100"`
}

// TeacherResponse 教师
type TeacherResponse struct {
	ID         string   `json:"id"`
	EmployeeID string   `json:"employee_id"`
	Name       string   `json:"name"`
	Email      string   `json:"email,omitempty"`
	Department string   `json:"department,omitempty"`
	Subjects   []string `json:"subjects"`
}

// SubjectResponse 科目
type SubjectResponse struct {
	ID         string `json:"id"`
	Code       string `json:"code"`
	Name       string `json:"name"`
	Department string `json:"department,omitempty"`
	Credits    int    `json:"credits"`
}
