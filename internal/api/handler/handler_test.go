package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"smart-timetable/internal/dto"
	"smart-timetable/internal/schema"
	"smart-timetable/internal/service"
	pkgerrors "smart-timetable/pkg/errors"
	"smart-timetable/pkg/jwt"
	"smart-timetable/pkg/response"
	appvalidator "smart-timetable/pkg/validator"
)

func init() {
	gin.SetMode(gin.TestMode)
	if err := appvalidator.Init(); err != nil {
		panic(err)
	}
}

// ═══════════════════════════════════════════════════════════
// Mock Services
// ═══════════════════════════════════════════════════════════

// ── Mock AuthService ──

type mockAuthService struct {
	registerResult *dto.UserResponse
	registerErr    error
	loginResult    *dto.TokenResponse
	loginErr       error
	refreshResult  *dto.TokenResponse
	refreshErr     error
	refreshGot     string
	logoutErr      error
	logoutJTI      string
	meResult       *dto.UserResponse
	meErr          error
}

func (m *mockAuthService) Register(_ context.Context, _ *dto.RegisterRequest) (*dto.UserResponse, error) {
	return m.registerResult, m.registerErr
}
func (m *mockAuthService) Login(_ context.Context, _ *dto.LoginRequest) (*dto.TokenResponse, error) {
	return m.loginResult, m.loginErr
}
func (m *mockAuthService) Refresh(_ context.Context, token string) (*dto.TokenResponse, error) {
	m.refreshGot = token
	return m.refreshResult, m.refreshErr
}
func (m *mockAuthService) Logout(_ context.Context, jti string, _ time.Time) error {
	m.logoutJTI = jti
	return m.logoutErr
}
func (m *mockAuthService) Me(_ context.Context, _ string) (*dto.UserResponse, error) {
	return m.meResult, m.meErr
}

// ── Mock TimetableService ──

type mockTimetableService struct {
	validateResult schema.Result
	validateErr    error
	getResult      *dto.TimetableDocument
	getErr         error
	saveResult     *dto.SaveTimetableResponse
	saveErr        error
	saveOpts       dto.SaveOptions
	saveActor      service.Actor
	deleteErr      error
	listResult     *dto.PageResult[dto.TimetableSummary]
	listErr        error
	importResult   *dto.BatchResponse
	importErr      error
	importData     []byte
	icsResult      *dto.ICSImportResponse
	icsErr         error
	names          []string
	namesErr       error
	conflicts      []schema.Conflict
	conflictsErr   error
	report         *dto.TeacherConflictReport
	reportErr      error
}

func (m *mockTimetableService) Template() schema.Record { return schema.Default().CreateEmpty() }
func (m *mockTimetableService) Validate(_ []byte) (schema.Result, error) {
	return m.validateResult, m.validateErr
}
func (m *mockTimetableService) Sanitize(_ []byte) (schema.Record, error) {
	return schema.Default().CreateEmpty(), m.validateErr
}
func (m *mockTimetableService) List(_ context.Context, _ *dto.TimetableListRequest) (*dto.PageResult[dto.TimetableSummary], error) {
	return m.listResult, m.listErr
}
func (m *mockTimetableService) Get(_ context.Context, _ string) (*dto.TimetableDocument, error) {
	return m.getResult, m.getErr
}
func (m *mockTimetableService) Save(_ context.Context, _ string, _ *dto.SaveTimetableRequest, opts dto.SaveOptions, actor service.Actor) (*dto.SaveTimetableResponse, error) {
	m.saveOpts = opts
	m.saveActor = actor
	return m.saveResult, m.saveErr
}
func (m *mockTimetableService) Delete(_ context.Context, _ string) error { return m.deleteErr }
func (m *mockTimetableService) ImportJSON(_ context.Context, _ map[string]json.RawMessage, _ service.Actor) (*dto.BatchResponse, error) {
	return m.importResult, m.importErr
}
func (m *mockTimetableService) ImportXLSX(_ context.Context, data []byte, _ service.Actor) (*dto.BatchResponse, error) {
	m.importData = data
	return m.importResult, m.importErr
}
func (m *mockTimetableService) ImportICS(_ context.Context, _ string, data []byte, _ service.Actor) (*dto.ICSImportResponse, error) {
	m.importData = data
	return m.icsResult, m.icsErr
}
func (m *mockTimetableService) Subjects(_ context.Context, _ string) ([]string, error) {
	return m.names, m.namesErr
}
func (m *mockTimetableService) Teachers(_ context.Context, _ string) ([]string, error) {
	return m.names, m.namesErr
}
func (m *mockTimetableService) Conflicts(_ context.Context, _, _ string) ([]schema.Conflict, error) {
	return m.conflicts, m.conflictsErr
}
func (m *mockTimetableService) TeacherConflicts(_ context.Context, _ string) (*dto.TeacherConflictReport, error) {
	return m.report, m.reportErr
}

// ── Mock ExportService ──

type mockExportService struct {
	buf      *bytes.Buffer
	data     []byte
	filename string
	err      error
	teacher  string
}

func (m *mockExportService) ExportXLSX(_ context.Context, _ string) (*bytes.Buffer, string, error) {
	return m.buf, m.filename, m.err
}
func (m *mockExportService) ExportICS(_ context.Context, _, teacher string) ([]byte, string, error) {
	m.teacher = teacher
	return m.data, m.filename, m.err
}

// ── Mock CommentService ──

type mockCommentService struct {
	listResult   *dto.PageResult[dto.CommentResponse]
	listErr      error
	createResult *dto.CommentResponse
	createErr    error
	deleteErr    error
}

func (m *mockCommentService) List(_ context.Context, _ string, _ *dto.CommentListRequest) (*dto.PageResult[dto.CommentResponse], error) {
	return m.listResult, m.listErr
}
func (m *mockCommentService) Create(_ context.Context, _ string, _ *dto.CreateCommentRequest, _ service.Actor) (*dto.CommentResponse, error) {
	return m.createResult, m.createErr
}
func (m *mockCommentService) Delete(_ context.Context, _ string, _ service.Actor) error {
	return m.deleteErr
}

// ── Mock ApprovalService ──

type mockApprovalService struct {
	result   *dto.ApprovalResponse
	err      error
	list     *dto.PageResult[dto.ApprovalResponse]
	lastNote string
}

func (m *mockApprovalService) Create(_ context.Context, _ *dto.CreateApprovalRequest, _ service.Actor) (*dto.ApprovalResponse, error) {
	return m.result, m.err
}
func (m *mockApprovalService) List(_ context.Context, _ *dto.ApprovalListRequest) (*dto.PageResult[dto.ApprovalResponse], error) {
	return m.list, m.err
}
func (m *mockApprovalService) Get(_ context.Context, _ string, _ service.Actor) (*dto.ApprovalResponse, error) {
	return m.result, m.err
}
func (m *mockApprovalService) Approve(_ context.Context, _ string, req *dto.DecideApprovalRequest, _ service.Actor) (*dto.ApprovalResponse, error) {
	m.lastNote = req.Note
	return m.result, m.err
}
func (m *mockApprovalService) Reject(_ context.Context, _ string, req *dto.DecideApprovalRequest, _ service.Actor) (*dto.ApprovalResponse, error) {
	m.lastNote = req.Note
	return m.result, m.err
}
func (m *mockApprovalService) PurgeDecided(_ context.Context, _ time.Duration) (int64, error) {
	return 0, nil
}

// ── Mock CatalogService ──

type mockCatalogService struct {
	batch *dto.BatchResponse
	err   error
}

func (m *mockCatalogService) ImportTeachers(_ context.Context, _ *dto.ImportTeachersRequest, _ service.Actor) (*dto.BatchResponse, error) {
	return m.batch, m.err
}
func (m *mockCatalogService) ImportSubjects(_ context.Context, _ *dto.ImportSubjectsRequest, _ service.Actor) (*dto.BatchResponse, error) {
	return m.batch, m.err
}
func (m *mockCatalogService) ListTeachers(_ context.Context, _ *dto.CatalogListRequest) (*dto.PageResult[dto.TeacherResponse], error) {
	return &dto.PageResult[dto.TeacherResponse]{List: []dto.TeacherResponse{}, Page: 1, PageSize: 20}, m.err
}
func (m *mockCatalogService) ListSubjects(_ context.Context, _ *dto.CatalogListRequest) (*dto.PageResult[dto.SubjectResponse], error) {
	return &dto.PageResult[dto.SubjectResponse]{List: []dto.SubjectResponse{}, Page: 1, PageSize: 20}, m.err
}

// ═══════════════════════════════════════════════════════════
// Test Helpers
// ═══════════════════════════════════════════════════════════

func setupGin() (*gin.Engine, *gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	c, r := gin.CreateTestContext(w)
	return r, c, w
}

// setAuth 模拟 JWTAuth 写入的上下文
func setAuth(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(CtxUserID, "7b2d4c1e-0000-4000-8000-000000000001")
		c.Set(CtxRole, role)
		c.Set(CtxEmail, role+"@school.edu")
		c.Set(CtxTokenJTI, "test-jti")
		c.Set(CtxTokenExp, time.Now().Add(15*time.Minute))
		c.Next()
	}
}

func jsonBody(v interface{}) io.Reader {
	b, _ := json.Marshal(v)
	return bytes.NewReader(b)
}

func parseResponse(w *httptest.ResponseRecorder) response.Response {
	var resp response.Response
	json.Unmarshal(w.Body.Bytes(), &resp)
	return resp
}

// multipartBody 构造 field="file" 的上传请求体
func multipartBody(t *testing.T, filename string, content []byte) (io.Reader, string) {
	t.Helper()
	body := new(bytes.Buffer)
	mw := multipart.NewWriter(body)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatal(err)
	}
	fw.Write(content)
	mw.Close()
	return body, mw.FormDataContentType()
}

func findCookie(w *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range w.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// ═══════════════════════════════════════════════════════════
// AuthHandler Tests
// ═══════════════════════════════════════════════════════════

func TestAuthHandler_Register_Success(t *testing.T) {
	mock := &mockAuthService{registerResult: &dto.UserResponse{ID: "u1", Email: "t@school.edu", Role: "teacher"}}
	h := NewAuthHandler(mock, nil)

	_, _, w := setupGin()
	req := httptest.NewRequest("POST", "/auth/register", jsonBody(dto.RegisterRequest{
		Email: "t@school.edu", Password: "secret1", Role: "teacher",
	}))
	req.Header.Set("Content-Type", "application/json")

	r := gin.New()
	r.POST("/auth/register", h.Register)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Errorf("期望 201，实际 %d", w.Code)
	}
}

func TestAuthHandler_Register_InvalidRole(t *testing.T) {
	h := NewAuthHandler(&mockAuthService{}, nil)

	_, _, w := setupGin()
	req := httptest.NewRequest("POST", "/auth/register", jsonBody(map[string]string{
		"email": "t@school.edu", "password": "secret1", "role": "janitor",
	}))
	req.Header.Set("Content-Type", "application/json")

	r := gin.New()
	r.POST("/auth/register", h.Register)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("期望 400，实际 %d", w.Code)
	}
	resp := parseResponse(w)
	if resp.Code != 10001 || resp.Details == "" {
		t.Errorf("应返回 10001 及校验详情，实际 %+v", resp)
	}
}

func TestAuthHandler_Login_Success(t *testing.T) {
	mock := &mockAuthService{
		loginResult: &dto.TokenResponse{
			AccessToken:  "test-access-token",
			RefreshToken: "test-refresh-token",
			ExpiresIn:    900,
		},
	}
	h := NewAuthHandler(mock, nil)

	_, _, w := setupGin()
	req := httptest.NewRequest("POST", "/auth/login", jsonBody(dto.LoginRequest{
		Email:    "admin@school.edu",
		Password: "secret1",
	}))
	req.Header.Set("Content-Type", "application/json")

	r := gin.New()
	r.POST("/auth/login", h.Login)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("期望 200，实际 %d", w.Code)
	}
	cookie := findCookie(w, "refresh_token")
	if cookie == nil {
		t.Fatal("应设置 refresh_token Cookie")
	}
	if cookie.Value != "test-refresh-token" || !cookie.HttpOnly || cookie.Path != "/api/v1/auth" {
		t.Errorf("Cookie 属性不符: %+v", cookie)
	}
}

func TestAuthHandler_Login_BadJSON(t *testing.T) {
	h := NewAuthHandler(&mockAuthService{}, nil)

	_, _, w := setupGin()
	req := httptest.NewRequest("POST", "/auth/login", bytes.NewReader([]byte("invalid json")))
	req.Header.Set("Content-Type", "application/json")

	r := gin.New()
	r.POST("/auth/login", h.Login)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("期望 400，实际 %d", w.Code)
	}
}

func TestAuthHandler_RefreshToken_FromCookie(t *testing.T) {
	mock := &mockAuthService{
		refreshResult: &dto.TokenResponse{AccessToken: "new-access", RefreshToken: "new-refresh", ExpiresIn: 900},
	}
	h := NewAuthHandler(mock, nil)

	_, _, w := setupGin()
	req := httptest.NewRequest("POST", "/auth/refresh", nil)
	req.AddCookie(&http.Cookie{Name: "refresh_token", Value: "cookie-refresh"})

	r := gin.New()
	r.POST("/auth/refresh", h.RefreshToken)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("期望 200，实际 %d", w.Code)
	}
	if mock.refreshGot != "cookie-refresh" {
		t.Errorf("应使用 Cookie 中的 token，实际 %q", mock.refreshGot)
	}
	if c := findCookie(w, "refresh_token"); c == nil || c.Value != "new-refresh" {
		t.Error("应轮换 refresh_token Cookie")
	}
}

func TestAuthHandler_RefreshToken_MissingToken(t *testing.T) {
	h := NewAuthHandler(&mockAuthService{}, nil)

	_, _, w := setupGin()
	req := httptest.NewRequest("POST", "/auth/refresh", jsonBody(map[string]string{}))
	req.Header.Set("Content-Type", "application/json")

	r := gin.New()
	r.POST("/auth/refresh", h.RefreshToken)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("期望 400，实际 %d", w.Code)
	}
}

func TestAuthHandler_Logout_Success(t *testing.T) {
	mock := &mockAuthService{}
	h := NewAuthHandler(mock, nil)

	_, _, w := setupGin()
	req := httptest.NewRequest("POST", "/auth/logout", nil)

	r := gin.New()
	r.POST("/auth/logout", setAuth("teacher"), h.Logout)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("期望 200，实际 %d", w.Code)
	}
	if mock.logoutJTI != "test-jti" {
		t.Errorf("应吊销当前 jti，实际 %q", mock.logoutJTI)
	}
	if c := findCookie(w, "refresh_token"); c == nil || c.MaxAge >= 0 {
		t.Error("应清除 refresh_token Cookie")
	}
}

func TestAuthHandler_Me_Unauthenticated(t *testing.T) {
	h := NewAuthHandler(&mockAuthService{}, nil)

	_, _, w := setupGin()
	req := httptest.NewRequest("GET", "/auth/me", nil)

	r := gin.New()
	r.GET("/auth/me", h.Me)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("期望 401，实际 %d", w.Code)
	}
}

func TestAuthHandler_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   int
	}{
		{"InvalidCredentials", service.ErrInvalidCredentials, 401, 11001},
		{"TokenExpired", jwt.ErrTokenExpired, 401, 11004},
		{"TokenInvalid", jwt.ErrTokenInvalid, 401, 11004},
		{"WrongType", service.ErrTokenTypeInvalid, 401, 11004},
		{"Revoked", service.ErrTokenRevoked, 401, 11005},
		{"UserNotFound", service.ErrUserNotFound, 404, 11006},
		{"InternalError", errors.New("unknown"), 500, 50000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewAuthHandler(&mockAuthService{refreshErr: tt.err}, nil)

			_, _, w := setupGin()
			req := httptest.NewRequest("POST", "/auth/refresh", jsonBody(dto.RefreshTokenRequest{RefreshToken: "x"}))
			req.Header.Set("Content-Type", "application/json")

			r := gin.New()
			r.POST("/auth/refresh", h.RefreshToken)
			r.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("期望状态 %d，实际 %d", tt.wantStatus, w.Code)
			}
			if resp := parseResponse(w); resp.Code != tt.wantCode {
				t.Errorf("期望错误码 %d，实际 %d", tt.wantCode, resp.Code)
			}
		})
	}
}

// ═══════════════════════════════════════════════════════════
// TimetableHandler Tests
// ═══════════════════════════════════════════════════════════

func TestTimetableHandler_Validate_AlwaysOK(t *testing.T) {
	mock := &mockTimetableService{validateResult: schema.Result{IsValid: false, Errors: []string{"Missing day: Friday"}}}
	h := NewTimetableHandler(mock, 0)

	_, _, w := setupGin()
	req := httptest.NewRequest("POST", "/timetables/validate", strings.NewReader(`{}`))

	r := gin.New()
	r.POST("/timetables/validate", h.Validate)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("校验结果无论是否通过都应返回 200，实际 %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "Missing day: Friday") {
		t.Errorf("响应应包含错误列表: %s", w.Body.String())
	}
}

func TestTimetableHandler_Save(t *testing.T) {
	tests := []struct {
		name       string
		created    bool
		wantStatus int
	}{
		{"新建", true, http.StatusCreated},
		{"更新", false, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := &mockTimetableService{saveResult: &dto.SaveTimetableResponse{Created: tt.created}}
			h := NewTimetableHandler(mock, 0)

			_, _, w := setupGin()
			req := httptest.NewRequest("PUT", "/timetables/grade-10?sanitize=true", jsonBody(map[string]interface{}{
				"timetable": map[string]interface{}{},
			}))
			req.Header.Set("Content-Type", "application/json")

			r := gin.New()
			r.PUT("/timetables/:id", setAuth("teacher"), h.Save)
			r.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("期望 %d，实际 %d", tt.wantStatus, w.Code)
			}
			if !mock.saveOpts.Sanitize {
				t.Error("应透传 sanitize 选项")
			}
			if mock.saveActor.Email != "teacher@school.edu" {
				t.Errorf("操作者不符: %+v", mock.saveActor)
			}
		})
	}
}

func TestTimetableHandler_Save_ValidationFailed(t *testing.T) {
	result := schema.Result{IsValid: false, Errors: []string{"Missing day: Monday"}}
	mock := &mockTimetableService{saveErr: &service.ValidationError{Result: result}}
	h := NewTimetableHandler(mock, 0)

	_, _, w := setupGin()
	req := httptest.NewRequest("PUT", "/timetables/grade-10", jsonBody(map[string]interface{}{"timetable": map[string]interface{}{}}))
	req.Header.Set("Content-Type", "application/json")

	r := gin.New()
	r.PUT("/timetables/:id", setAuth("admin"), h.Save)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("期望 422，实际 %d", w.Code)
	}
	var body struct {
		Code int           `json:"code"`
		Data schema.Result `json:"data"`
	}
	json.Unmarshal(w.Body.Bytes(), &body)
	if body.Code != 20104 || len(body.Data.Errors) != 1 || body.Data.IsValid {
		t.Errorf("422 响应应携带完整校验结果: %s", w.Body.String())
	}
}

func TestTimetableHandler_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   int
	}{
		{"NotFound", service.ErrTimetableNotFound, 404, 20101},
		{"InvalidID", service.ErrTimetableInvalidID, 400, 20102},
		{"Malformed", service.ErrTimetableMalformed, 400, 20103},
		{"OptimisticLock", pkgerrors.ErrOptimisticLock, 409, 20105},
		{"InternalError", errors.New("unknown"), 500, 50000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewTimetableHandler(&mockTimetableService{getErr: tt.err}, 0)

			_, _, w := setupGin()
			req := httptest.NewRequest("GET", "/timetables/grade-10", nil)

			r := gin.New()
			r.GET("/timetables/:id", h.Get)
			r.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("期望状态 %d，实际 %d", tt.wantStatus, w.Code)
			}
			if resp := parseResponse(w); resp.Code != tt.wantCode {
				t.Errorf("期望错误码 %d，实际 %d", tt.wantCode, resp.Code)
			}
		})
	}
}

func TestTimetableHandler_List(t *testing.T) {
	mock := &mockTimetableService{listResult: &dto.PageResult[dto.TimetableSummary]{
		List: []dto.TimetableSummary{{DocumentID: "grade-10"}}, Total: 1, Page: 1, PageSize: 20,
	}}
	h := NewTimetableHandler(mock, 0)

	_, _, w := setupGin()
	req := httptest.NewRequest("GET", "/timetables?page_size=500", nil)

	r := gin.New()
	r.GET("/timetables", h.List)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("page_size 超限应返回 400，实际 %d", w.Code)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/timetables?class_grade=10", nil))
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"total":1`) {
		t.Errorf("分页响应不符: %d %s", w.Code, w.Body.String())
	}
}

func TestTimetableHandler_ImportJSON_Empty(t *testing.T) {
	h := NewTimetableHandler(&mockTimetableService{}, 0)

	_, _, w := setupGin()
	req := httptest.NewRequest("POST", "/timetables/import", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")

	r := gin.New()
	r.POST("/timetables/import", setAuth("admin"), h.ImportJSON)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("空导入应返回 400，实际 %d", w.Code)
	}
}

func TestTimetableHandler_ImportXLSX(t *testing.T) {
	mock := &mockTimetableService{importResult: &dto.BatchResponse{Total: 1, Succeeded: 1}}
	h := NewTimetableHandler(mock, 0)

	body, ct := multipartBody(t, "timetables.xlsx", []byte("workbook-bytes"))
	_, _, w := setupGin()
	req := httptest.NewRequest("POST", "/timetables/import/xlsx", body)
	req.Header.Set("Content-Type", ct)

	r := gin.New()
	r.POST("/timetables/import/xlsx", setAuth("admin"), h.ImportXLSX)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("期望 200，实际 %d", w.Code)
	}
	if string(mock.importData) != "workbook-bytes" {
		t.Errorf("上传内容未透传: %q", mock.importData)
	}
}

func TestTimetableHandler_ImportXLSX_Upload(t *testing.T) {
	t.Run("缺少文件", func(t *testing.T) {
		h := NewTimetableHandler(&mockTimetableService{}, 0)
		_, _, w := setupGin()
		req := httptest.NewRequest("POST", "/timetables/import/xlsx", nil)

		r := gin.New()
		r.POST("/timetables/import/xlsx", setAuth("admin"), h.ImportXLSX)
		r.ServeHTTP(w, req)

		if resp := parseResponse(w); w.Code != http.StatusBadRequest || resp.Code != 20109 {
			t.Errorf("期望 400/20109，实际 %d/%d", w.Code, resp.Code)
		}
	})

	t.Run("文件过大", func(t *testing.T) {
		h := NewTimetableHandler(&mockTimetableService{}, 8)
		body, ct := multipartBody(t, "big.xlsx", []byte("0123456789"))
		_, _, w := setupGin()
		req := httptest.NewRequest("POST", "/timetables/import/xlsx", body)
		req.Header.Set("Content-Type", ct)

		r := gin.New()
		r.POST("/timetables/import/xlsx", setAuth("admin"), h.ImportXLSX)
		r.ServeHTTP(w, req)

		if w.Code != http.StatusRequestEntityTooLarge {
			t.Errorf("期望 413，实际 %d", w.Code)
		}
	})

	t.Run("无法解析", func(t *testing.T) {
		h := NewTimetableHandler(&mockTimetableService{importErr: service.ErrWorkbookUnreadable}, 0)
		body, ct := multipartBody(t, "bad.xlsx", []byte("x"))
		_, _, w := setupGin()
		req := httptest.NewRequest("POST", "/timetables/import/xlsx", body)
		req.Header.Set("Content-Type", ct)

		r := gin.New()
		r.POST("/timetables/import/xlsx", setAuth("admin"), h.ImportXLSX)
		r.ServeHTTP(w, req)

		if resp := parseResponse(w); resp.Code != 20107 {
			t.Errorf("期望 20107，实际 %d", resp.Code)
		}
	})
}

func TestTimetableHandler_ImportICS_Created(t *testing.T) {
	mock := &mockTimetableService{icsResult: &dto.ICSImportResponse{
		SaveTimetableResponse: dto.SaveTimetableResponse{Created: true},
		Imported:              3,
		Skipped:               []string{},
	}}
	h := NewTimetableHandler(mock, 0)

	body, ct := multipartBody(t, "cal.ics", []byte("BEGIN:VCALENDAR"))
	_, _, w := setupGin()
	req := httptest.NewRequest("POST", "/timetables/grade-10/import/ics", body)
	req.Header.Set("Content-Type", ct)

	r := gin.New()
	r.POST("/timetables/:id/import/ics", setAuth("teacher"), h.ImportICS)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Errorf("期望 201，实际 %d", w.Code)
	}
}

func TestTimetableHandler_Conflicts(t *testing.T) {
	mock := &mockTimetableService{conflicts: []schema.Conflict{
		{Day: "Monday", TimeSlot: "9:00", Subjects: [2]string{"Mathematics", "Physics"}},
	}}
	h := NewTimetableHandler(mock, 0)

	_, _, w := setupGin()
	req := httptest.NewRequest("GET", "/timetables/grade-10/conflicts?teacher=Dr.%20Smith", nil)

	r := gin.New()
	r.GET("/timetables/:id/conflicts", h.Conflicts)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("期望 200，实际 %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"teacher":"Dr. Smith"`) {
		t.Errorf("响应应回显教师: %s", w.Body.String())
	}
}

// ═══════════════════════════════════════════════════════════
// ExportHandler Tests
// ═══════════════════════════════════════════════════════════

func TestExportHandler_ExportXLSX(t *testing.T) {
	mock := &mockExportService{buf: bytes.NewBufferString("excel content"), filename: "timetable_grade-10.xlsx"}
	h := NewExportHandler(mock)

	_, _, w := setupGin()
	req := httptest.NewRequest("GET", "/timetables/grade-10/export.xlsx", nil)

	r := gin.New()
	r.GET("/timetables/:id/export.xlsx", h.ExportXLSX)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("期望 200，实际 %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != contentTypeXLSX {
		t.Errorf("Content-Type 不符: %s", ct)
	}
	if cd := w.Header().Get("Content-Disposition"); !strings.Contains(cd, "timetable_grade-10.xlsx") {
		t.Errorf("Content-Disposition 不符: %s", cd)
	}
}

func TestExportHandler_ExportICS(t *testing.T) {
	mock := &mockExportService{data: []byte("BEGIN:VCALENDAR"), filename: "timetable_grade-10.ics"}
	h := NewExportHandler(mock)

	_, _, w := setupGin()
	req := httptest.NewRequest("GET", "/timetables/grade-10/export.ics?teacher=%20Dr.%20Smith%20", nil)

	r := gin.New()
	r.GET("/timetables/:id/export.ics", h.ExportICS)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("期望 200，实际 %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/calendar") {
		t.Errorf("Content-Type 不符: %s", ct)
	}
	if mock.teacher != "Dr. Smith" {
		t.Errorf("教师过滤应去除首尾空白，实际 %q", mock.teacher)
	}
}

func TestExportHandler_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   int
	}{
		{"Empty", service.ErrExportEmpty, 404, 24101},
		{"GenerateFail", service.ErrExportGenerateFail, 500, 24102},
		{"TimetableNotFound", service.ErrTimetableNotFound, 404, 20101},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewExportHandler(&mockExportService{err: tt.err})

			_, _, w := setupGin()
			req := httptest.NewRequest("GET", "/timetables/grade-10/export.ics", nil)

			r := gin.New()
			r.GET("/timetables/:id/export.ics", h.ExportICS)
			r.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("期望状态 %d，实际 %d", tt.wantStatus, w.Code)
			}
			if resp := parseResponse(w); resp.Code != tt.wantCode {
				t.Errorf("期望错误码 %d，实际 %d", tt.wantCode, resp.Code)
			}
		})
	}
}

// ═══════════════════════════════════════════════════════════
// CommentHandler Tests
// ═══════════════════════════════════════════════════════════

func TestCommentHandler_Create(t *testing.T) {
	mock := &mockCommentService{createResult: &dto.CommentResponse{ID: "c1", Text: "hello"}}
	h := NewCommentHandler(mock, nil, zap.NewNop())

	_, _, w := setupGin()
	req := httptest.NewRequest("POST", "/timetables/grade-10/comments", jsonBody(dto.CreateCommentRequest{Text: "hello"}))
	req.Header.Set("Content-Type", "application/json")

	r := gin.New()
	r.POST("/timetables/:id/comments", setAuth("student"), h.Create)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Errorf("期望 201，实际 %d", w.Code)
	}
}

func TestCommentHandler_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   int
	}{
		{"NotFound", service.ErrCommentNotFound, 404, 21101},
		{"Forbidden", service.ErrCommentForbidden, 403, 21104},
		{"TimetableNotFound", service.ErrTimetableNotFound, 404, 20101},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewCommentHandler(&mockCommentService{deleteErr: tt.err}, nil, zap.NewNop())

			_, _, w := setupGin()
			req := httptest.NewRequest("DELETE", "/comments/c1", nil)

			r := gin.New()
			r.DELETE("/comments/:id", setAuth("teacher"), h.Delete)
			r.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("期望状态 %d，实际 %d", tt.wantStatus, w.Code)
			}
			if resp := parseResponse(w); resp.Code != tt.wantCode {
				t.Errorf("期望错误码 %d，实际 %d", tt.wantCode, resp.Code)
			}
		})
	}
}

func TestCommentHandler_Stream_Disabled(t *testing.T) {
	h := NewCommentHandler(&mockCommentService{}, nil, zap.NewNop())

	_, _, w := setupGin()
	req := httptest.NewRequest("GET", "/timetables/grade-10/comments/ws", nil)

	r := gin.New()
	r.GET("/timetables/:id/comments/ws", h.Stream)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("未启用实时推送时期望 404，实际 %d", w.Code)
	}
}

// ═══════════════════════════════════════════════════════════
// RequestHandler Tests
// ═══════════════════════════════════════════════════════════

func TestRequestHandler_Approve_EmptyBody(t *testing.T) {
	mock := &mockApprovalService{result: &dto.ApprovalResponse{ID: "r1", Status: "approved"}}
	h := NewRequestHandler(mock)

	_, _, w := setupGin()
	req := httptest.NewRequest("PUT", "/requests/r1/approve", nil)

	r := gin.New()
	r.PUT("/requests/:id/approve", setAuth("admin"), h.Approve)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("空请求体应允许，实际 %d", w.Code)
	}
}

func TestRequestHandler_Reject_WithNote(t *testing.T) {
	mock := &mockApprovalService{result: &dto.ApprovalResponse{ID: "r1", Status: "rejected"}}
	h := NewRequestHandler(mock)

	_, _, w := setupGin()
	req := httptest.NewRequest("PUT", "/requests/r1/reject", jsonBody(dto.DecideApprovalRequest{Note: "实验室已排满"}))
	req.Header.Set("Content-Type", "application/json")

	r := gin.New()
	r.PUT("/requests/:id/reject", setAuth("admin"), h.Reject)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK || mock.lastNote != "实验室已排满" {
		t.Errorf("驳回结果不符: %d note=%q", w.Code, mock.lastNote)
	}
}

func TestRequestHandler_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   int
	}{
		{"NotFound", service.ErrRequestNotFound, 404, 22101},
		{"NotPending", service.ErrRequestNotPending, 409, 22102},
		{"Forbidden", service.ErrRequestForbidden, 403, 22103},
		{"TimetableNotFound", service.ErrTimetableNotFound, 404, 20101},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewRequestHandler(&mockApprovalService{err: tt.err})

			_, _, w := setupGin()
			req := httptest.NewRequest("GET", "/requests/r1", nil)

			r := gin.New()
			r.GET("/requests/:id", setAuth("teacher"), h.Get)
			r.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("期望状态 %d，实际 %d", tt.wantStatus, w.Code)
			}
			if resp := parseResponse(w); resp.Code != tt.wantCode {
				t.Errorf("期望错误码 %d，实际 %d", tt.wantCode, resp.Code)
			}
		})
	}
}

func TestRequestHandler_Create_InvalidType(t *testing.T) {
	h := NewRequestHandler(&mockApprovalService{})

	_, _, w := setupGin()
	req := httptest.NewRequest("POST", "/requests", jsonBody(map[string]string{"title": "x", "type": "holiday"}))
	req.Header.Set("Content-Type", "application/json")

	r := gin.New()
	r.POST("/requests", setAuth("teacher"), h.Create)
	r.ServeHTTP(w, req)

	if resp := parseResponse(w); w.Code != http.StatusBadRequest || resp.Code != 22001 {
		t.Errorf("期望 400/22001，实际 %d/%d", w.Code, resp.Code)
	}
}

// ═══════════════════════════════════════════════════════════
// CatalogHandler Tests
// ═══════════════════════════════════════════════════════════

func TestCatalogHandler_ImportTeachers(t *testing.T) {
	mock := &mockCatalogService{batch: &dto.BatchResponse{Total: 1, Succeeded: 1}}
	h := NewCatalogHandler(mock)

	_, _, w := setupGin()
	req := httptest.NewRequest("POST", "/catalog/teachers/import", jsonBody(dto.ImportTeachersRequest{
		Teachers: []dto.TeacherItem{{EmployeeID: "T001", Name: "Dr. Smith"}},
	}))
	req.Header.Set("Content-Type", "application/json")

	r := gin.New()
	r.POST("/catalog/teachers/import", setAuth("admin"), h.ImportTeachers)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("期望 200，实际 %d: %s", w.Code, w.Body.String())
	}
}

func TestCatalogHandler_ListSubjects(t *testing.T) {
	h := NewCatalogHandler(&mockCatalogService{})

	_, _, w := setupGin()
	req := httptest.NewRequest("GET", "/catalog/subjects", nil)

	r := gin.New()
	r.GET("/catalog/subjects", h.ListSubjects)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"list":[]`) {
		t.Errorf("空列表应返回 []: %d %s", w.Code, w.Body.String())
	}
}

// ═══════════════════════════════════════════════════════════
// HealthHandler Tests
// ═══════════════════════════════════════════════════════════

func TestHealthHandler_Ready(t *testing.T) {
	ok := func(context.Context) error { return nil }
	down := func(context.Context) error { return errors.New("connection refused") }

	tests := []struct {
		name       string
		db, cache  PingFunc
		wantStatus int
		wantBody   string
	}{
		{"全部正常", ok, ok, http.StatusOK, `"redis":"ok"`},
		{"未启用 Redis", ok, nil, http.StatusOK, `"redis":"disabled"`},
		{"Redis 故障仅降级", ok, down, http.StatusOK, `"redis":"connection refused"`},
		{"数据库故障", down, ok, http.StatusServiceUnavailable, `"status":"unavailable"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHealthHandler(tt.db, tt.cache)

			_, _, w := setupGin()
			r := gin.New()
			r.GET("/health/ready", h.Ready)
			r.ServeHTTP(w, httptest.NewRequest("GET", "/health/ready", nil))

			if w.Code != tt.wantStatus {
				t.Errorf("期望 %d，实际 %d", tt.wantStatus, w.Code)
			}
			if !strings.Contains(w.Body.String(), tt.wantBody) {
				t.Errorf("响应应包含 %s: %s", tt.wantBody, w.Body.String())
			}
		})
	}
}
