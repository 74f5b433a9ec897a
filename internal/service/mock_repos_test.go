package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"smart-timetable/internal/model"
	"smart-timetable/internal/repository"
	pkgerrors "smart-timetable/pkg/errors"
)

var errMockDB = errors.New("mock db error")

// newTestRepository 组装全部 mock 仓储
func newTestRepository() (*repository.Repository, *mockRepos) {
	m := &mockRepos{
		user:      newMockUserRepo(),
		timetable: newMockTimetableRepo(),
		comment:   newMockCommentRepo(),
		request:   newMockRequestRepo(),
		teacher:   newMockTeacherRepo(),
		subject:   newMockSubjectRepo(),
	}
	return &repository.Repository{
		User:      m.user,
		Timetable: m.timetable,
		Comment:   m.comment,
		Request:   m.request,
		Teacher:   m.teacher,
		Subject:   m.subject,
	}, m
}

type mockRepos struct {
	user      *mockUserRepo
	timetable *mockTimetableRepo
	comment   *mockCommentRepo
	request   *mockRequestRepo
	teacher   *mockTeacherRepo
	subject   *mockSubjectRepo
}

// ── Mock UserRepository ──

type mockUserRepo struct {
	users map[string]*model.User // key: user_id
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{users: make(map[string]*model.User)}
}

func (m *mockUserRepo) Create(_ context.Context, user *model.User) error {
	for _, u := range m.users {
		if u.Email == user.Email {
			return gorm.ErrDuplicatedKey
		}
	}
	if user.UserID == "" {
		user.UserID = uuid.New().String()
	}
	user.CreatedAt = time.Now()
	m.users[user.UserID] = user
	return nil
}

func (m *mockUserRepo) GetByID(_ context.Context, id string) (*model.User, error) {
	if u, ok := m.users[id]; ok {
		return u, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockUserRepo) GetByEmail(_ context.Context, email string) (*model.User, error) {
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockUserRepo) ExistsByEmail(_ context.Context, email string) (bool, error) {
	for _, u := range m.users {
		if u.Email == email {
			return true, nil
		}
	}
	return false, nil
}

// ── Mock TimetableRepository ──

type mockTimetableRepo struct {
	docs     map[string]*model.Timetable
	getCalls int
	listErr  error
}

func newMockTimetableRepo() *mockTimetableRepo {
	return &mockTimetableRepo{docs: make(map[string]*model.Timetable)}
}

func (m *mockTimetableRepo) Create(_ context.Context, t *model.Timetable) error {
	if _, ok := m.docs[t.DocumentID]; ok {
		return gorm.ErrDuplicatedKey
	}
	if t.Version == 0 {
		t.Version = 1
	}
	cp := *t
	m.docs[t.DocumentID] = &cp
	return nil
}

func (m *mockTimetableRepo) GetByID(_ context.Context, id string) (*model.Timetable, error) {
	m.getCalls++
	if t, ok := m.docs[id]; ok {
		cp := *t
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockTimetableRepo) Update(_ context.Context, t *model.Timetable) error {
	cur, ok := m.docs[t.DocumentID]
	if !ok || cur.Version != t.Version {
		return pkgerrors.ErrOptimisticLock
	}
	t.Version++
	cp := *t
	m.docs[t.DocumentID] = &cp
	return nil
}

func (m *mockTimetableRepo) Delete(_ context.Context, id string) error {
	if _, ok := m.docs[id]; !ok {
		return gorm.ErrRecordNotFound
	}
	delete(m.docs, id)
	return nil
}

func (m *mockTimetableRepo) List(_ context.Context, filter repository.TimetableFilter, offset, limit int) ([]model.Timetable, int64, error) {
	if m.listErr != nil {
		return nil, 0, m.listErr
	}
	var all []model.Timetable
	for _, t := range m.sorted() {
		if filter.Semester != "" && t.Semester != filter.Semester {
			continue
		}
		if filter.ClassGrade != "" && t.ClassGrade != filter.ClassGrade {
			continue
		}
		cp := t
		cp.Content = nil
		all = append(all, cp)
	}
	return paginate(all, offset, limit), int64(len(all)), nil
}

func (m *mockTimetableRepo) ListAll(_ context.Context) ([]model.Timetable, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	return m.sorted(), nil
}

func (m *mockTimetableRepo) sorted() []model.Timetable {
	ids := make([]string, 0, len(m.docs))
	for id := range m.docs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]model.Timetable, 0, len(ids))
	for _, id := range ids {
		out = append(out, *m.docs[id])
	}
	return out
}

// ── Mock CommentRepository ──

type mockCommentRepo struct {
	comments []*model.Comment
	clock    time.Time
}

func newMockCommentRepo() *mockCommentRepo {
	return &mockCommentRepo{clock: time.Date(2024, 9, 1, 8, 0, 0, 0, time.UTC)}
}

func (m *mockCommentRepo) Create(_ context.Context, c *model.Comment) error {
	if c.CommentID == "" {
		c.CommentID = uuid.New().String()
	}
	// 每条评论时间递增，便于验证排序
	m.clock = m.clock.Add(time.Minute)
	c.CreatedAt = m.clock
	cp := *c
	m.comments = append(m.comments, &cp)
	return nil
}

func (m *mockCommentRepo) GetByID(_ context.Context, id string) (*model.Comment, error) {
	for _, c := range m.comments {
		if c.CommentID == id {
			cp := *c
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockCommentRepo) ListByTimetable(_ context.Context, timetableID string, offset, limit int) ([]model.Comment, int64, error) {
	var all []model.Comment
	for i := len(m.comments) - 1; i >= 0; i-- {
		if m.comments[i].TimetableID == timetableID {
			all = append(all, *m.comments[i])
		}
	}
	return paginate(all, offset, limit), int64(len(all)), nil
}

func (m *mockCommentRepo) Delete(_ context.Context, id string) error {
	for i, c := range m.comments {
		if c.CommentID == id {
			m.comments = append(m.comments[:i], m.comments[i+1:]...)
			return nil
		}
	}
	return nil
}

// ── Mock ApprovalRequestRepository ──

type mockRequestRepo struct {
	requests map[string]*model.ApprovalRequest
}

func newMockRequestRepo() *mockRequestRepo {
	return &mockRequestRepo{requests: make(map[string]*model.ApprovalRequest)}
}

func (m *mockRequestRepo) Create(_ context.Context, req *model.ApprovalRequest) error {
	if req.RequestID == "" {
		req.RequestID = uuid.New().String()
	}
	cp := *req
	m.requests[req.RequestID] = &cp
	return nil
}

func (m *mockRequestRepo) GetByID(_ context.Context, id string) (*model.ApprovalRequest, error) {
	if r, ok := m.requests[id]; ok {
		cp := *r
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockRequestRepo) List(_ context.Context, status string, offset, limit int) ([]model.ApprovalRequest, int64, error) {
	var all []model.ApprovalRequest
	for _, r := range m.requests {
		if status == "" || r.Status == status {
			all = append(all, *r)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	return paginate(all, offset, limit), int64(len(all)), nil
}

func (m *mockRequestRepo) Decide(_ context.Context, req *model.ApprovalRequest) error {
	cur, ok := m.requests[req.RequestID]
	if !ok || cur.Status != model.RequestStatusPending {
		return pkgerrors.ErrOptimisticLock
	}
	cp := *req
	m.requests[req.RequestID] = &cp
	return nil
}

func (m *mockRequestRepo) DeleteDecidedBefore(_ context.Context, before time.Time) (int64, error) {
	var n int64
	for id, r := range m.requests {
		if r.Status != model.RequestStatusPending && r.DecidedAt != nil && r.DecidedAt.Before(before) {
			delete(m.requests, id)
			n++
		}
	}
	return n, nil
}

// ── Mock TeacherRepository / SubjectRepository ──

type mockTeacherRepo struct {
	teachers map[string]*model.Teacher // key: employee_id
	failOn   string
}

func newMockTeacherRepo() *mockTeacherRepo {
	return &mockTeacherRepo{teachers: make(map[string]*model.Teacher)}
}

func (m *mockTeacherRepo) Create(_ context.Context, t *model.Teacher) error {
	if t.EmployeeID == m.failOn {
		return errMockDB
	}
	if _, ok := m.teachers[t.EmployeeID]; ok {
		return gorm.ErrDuplicatedKey
	}
	if t.TeacherID == "" {
		t.TeacherID = uuid.New().String()
	}
	cp := *t
	m.teachers[t.EmployeeID] = &cp
	return nil
}

func (m *mockTeacherRepo) GetByEmployeeID(_ context.Context, employeeID string) (*model.Teacher, error) {
	if t, ok := m.teachers[employeeID]; ok {
		return t, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockTeacherRepo) List(_ context.Context, department string, offset, limit int) ([]model.Teacher, int64, error) {
	var all []model.Teacher
	for _, t := range m.teachers {
		if department == "" || t.Department == department {
			all = append(all, *t)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Name < all[j].Name })
	return paginate(all, offset, limit), int64(len(all)), nil
}

type mockSubjectRepo struct {
	subjects map[string]*model.Subject // key: code
}

func newMockSubjectRepo() *mockSubjectRepo {
	return &mockSubjectRepo{subjects: make(map[string]*model.Subject)}
}

func (m *mockSubjectRepo) Create(_ context.Context, s *model.Subject) error {
	if _, ok := m.subjects[s.Code]; ok {
		return gorm.ErrDuplicatedKey
	}
	if s.SubjectID == "" {
		s.SubjectID = uuid.New().String()
	}
	cp := *s
	m.subjects[s.Code] = &cp
	return nil
}

func (m *mockSubjectRepo) GetByCode(_ context.Context, code string) (*model.Subject, error) {
	if s, ok := m.subjects[code]; ok {
		return s, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockSubjectRepo) List(_ context.Context, department string, offset, limit int) ([]model.Subject, int64, error) {
	var all []model.Subject
	for _, s := range m.subjects {
		if department == "" || s.Department == department {
			all = append(all, *s)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Code < all[j].Code })
	return paginate(all, offset, limit), int64(len(all)), nil
}

// ── Mock 外部能力 ──

type mockCache struct {
	data    map[string][]byte
	sets    int
	deletes int
}

func newMockCache() *mockCache {
	return &mockCache{data: make(map[string][]byte)}
}

func (m *mockCache) GetTimetable(_ context.Context, id string) ([]byte, bool, error) {
	d, ok := m.data[id]
	return d, ok, nil
}

func (m *mockCache) SetTimetable(_ context.Context, id string, data []byte, _ time.Duration) error {
	m.sets++
	m.data[id] = data
	return nil
}

func (m *mockCache) DeleteTimetable(_ context.Context, ids ...string) error {
	for _, id := range ids {
		m.deletes++
		delete(m.data, id)
	}
	return nil
}

type publishedEvent struct {
	Topic   string
	Type    string
	Payload interface{}
}

type mockPublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (m *mockPublisher) Publish(topic, eventType string, payload interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, publishedEvent{Topic: topic, Type: eventType, Payload: payload})
}

func (m *mockPublisher) last() (publishedEvent, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.events) == 0 {
		return publishedEvent{}, false
	}
	return m.events[len(m.events)-1], true
}

type mockBlacklist struct {
	tokens map[string]time.Duration
}

func newMockBlacklist() *mockBlacklist {
	return &mockBlacklist{tokens: make(map[string]time.Duration)}
}

func (m *mockBlacklist) BlacklistToken(_ context.Context, jti string, ttl time.Duration) error {
	m.tokens[jti] = ttl
	return nil
}

func (m *mockBlacklist) IsBlacklisted(_ context.Context, jti string) (bool, error) {
	_, ok := m.tokens[jti]
	return ok, nil
}

// ── 辅助函数 ──

func paginate[T any](all []T, offset, limit int) []T {
	if offset >= len(all) {
		return []T{}
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end]
}
