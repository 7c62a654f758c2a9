package teams

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Kaustab2003/co2-emission-forecasting/internal/audit"
	"github.com/Kaustab2003/co2-emission-forecasting/internal/auth"
	"github.com/Kaustab2003/co2-emission-forecasting/internal/companies"
	"github.com/Kaustab2003/co2-emission-forecasting/internal/notifications"
)

// =====================================================
// Mocks
// =====================================================

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) SaveMember(ctx context.Context, member *Member) error {
	args := m.Called(ctx, member)
	return args.Error(0)
}

func (m *MockRepository) ListMembers(ctx context.Context, companyID uuid.UUID) ([]*Member, error) {
	args := m.Called(ctx, companyID)
	members, _ := args.Get(0).([]*Member)
	return members, args.Error(1)
}

func (m *MockRepository) IsMember(ctx context.Context, companyID, userID uuid.UUID) (bool, error) {
	args := m.Called(ctx, companyID, userID)
	return args.Bool(0), args.Error(1)
}

func (m *MockRepository) CreateTask(ctx context.Context, task *Task) error {
	args := m.Called(ctx, task)
	return args.Error(0)
}

func (m *MockRepository) ListTasks(ctx context.Context, companyID, userID uuid.UUID) ([]*Task, error) {
	args := m.Called(ctx, companyID, userID)
	tasks, _ := args.Get(0).([]*Task)
	return tasks, args.Error(1)
}

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Notify(ctx context.Context, alert notifications.Alert) error {
	args := m.Called(ctx, alert)
	return args.Error(0)
}

type fakeUsers map[string]*auth.User

func (f fakeUsers) GetUserByEmail(_ context.Context, email string) (*auth.User, error) {
	if user, ok := f[email]; ok {
		return user, nil
	}
	return nil, auth.ErrUserNotFound
}

type fakeCompanies map[uuid.UUID]*companies.Company

func (f fakeCompanies) GetCompany(_ context.Context, id uuid.UUID) (*companies.Company, error) {
	if company, ok := f[id]; ok {
		return company, nil
	}
	return nil, companies.ErrCompanyNotFound
}

type fixture struct {
	service  *Service
	repo     *MockRepository
	notifier *MockNotifier
	recorder *audit.MemoryRecorder
	company  *companies.Company
	analyst  *auth.User
}

func newFixture() *fixture {
	f := &fixture{
		repo:     new(MockRepository),
		notifier: new(MockNotifier),
		recorder: audit.NewMemoryRecorder(),
		company:  &companies.Company{ID: uuid.New(), OwnerID: uuid.New(), Name: "Acme"},
		analyst:  &auth.User{ID: uuid.New(), Email: "analyst@example.com", Name: "Ana"},
	}
	f.service = NewService(
		f.repo,
		fakeUsers{f.analyst.Email: f.analyst},
		fakeCompanies{f.company.ID: f.company},
		f.recorder,
		f.notifier,
		zap.NewNop(),
	)
	return f
}

// =====================================================
// Repository
// =====================================================

func TestPostgresRepository_SaveMember(t *testing.T) {
	db, mockDB, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewPostgresRepository(sqlx.NewDb(db, "sqlmock"))

	member := &Member{CompanyID: uuid.New(), UserID: uuid.New(), Role: RoleManager, InvitedBy: uuid.New(), CreatedAt: time.Now()}
	mockDB.ExpectExec(regexp.QuoteMeta("INSERT INTO team_members")).
		WithArgs(member.CompanyID, member.UserID, member.Role, member.InvitedBy, member.CreatedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.SaveMember(context.Background(), member))
	assert.NoError(t, mockDB.ExpectationsWereMet())
}

func TestPostgresRepository_ListMembersAndIsMember(t *testing.T) {
	db, mockDB, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewPostgresRepository(sqlx.NewDb(db, "sqlmock"))

	companyID := uuid.New()
	userID := uuid.New()
	rows := sqlmock.NewRows([]string{"company_id", "user_id", "email", "name", "role", "invited_by", "created_at"}).
		AddRow(companyID.String(), userID.String(), "a@example.com", "Ana", "analyst", uuid.New().String(), time.Now())
	mockDB.ExpectQuery(regexp.QuoteMeta("FROM team_members m")).WithArgs(companyID).WillReturnRows(rows)
	mockDB.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS")).
		WithArgs(companyID, userID).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	members, err := repo.ListMembers(context.Background(), companyID)
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.Equal(t, RoleAnalyst, members[0].Role)
	assert.Equal(t, userID, members[0].UserID)

	ok, err := repo.IsMember(context.Background(), companyID, userID)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, mockDB.ExpectationsWereMet())
}

func TestPostgresRepository_Tasks(t *testing.T) {
	db, mockDB, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewPostgresRepository(sqlx.NewDb(db, "sqlmock"))

	task := &Task{ID: uuid.New(), CompanyID: uuid.New(), From: uuid.New(), To: uuid.New(), Message: "Update Q3 data", CreatedAt: time.Now()}
	mockDB.ExpectExec(regexp.QuoteMeta("INSERT INTO team_tasks")).
		WithArgs(task.ID, task.CompanyID, task.From, task.To, task.Message, task.CreatedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mockDB.ExpectQuery(regexp.QuoteMeta("(to_user = $2 OR from_user = $2)")).
		WithArgs(task.CompanyID, task.To).
		WillReturnRows(sqlmock.NewRows([]string{"id", "company_id", "from_user", "to_user", "message", "created_at"}).
			AddRow(task.ID.String(), task.CompanyID.String(), task.From.String(), task.To.String(), task.Message, task.CreatedAt))

	require.NoError(t, repo.CreateTask(context.Background(), task))
	tasks, err := repo.ListTasks(context.Background(), task.CompanyID, task.To)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "Update Q3 data", tasks[0].Message)
	assert.NoError(t, mockDB.ExpectationsWereMet())
}

// =====================================================
// Service
// =====================================================

func TestService_Invite(t *testing.T) {
	f := newFixture()
	admin := uuid.New()

	f.repo.On("SaveMember", mock.Anything, mock.MatchedBy(func(m *Member) bool {
		return m.UserID == f.analyst.ID && m.Role == RoleAnalyst && m.InvitedBy == admin
	})).Return(nil)

	member, err := f.service.Invite(context.Background(), admin, f.company.ID, &InviteRequest{Email: f.analyst.Email, Role: RoleAnalyst})
	require.NoError(t, err)
	assert.Equal(t, "Ana", member.Name)

	entries, err := f.recorder.List(context.Background(), audit.Filter{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, audit.ActionTeamInvite, entries[0].Action)
	f.repo.AssertExpectations(t)
}

func TestService_InviteErrors(t *testing.T) {
	f := newFixture()

	_, err := f.service.Invite(context.Background(), uuid.New(), f.company.ID, &InviteRequest{Email: f.analyst.Email, Role: "owner"})
	assert.ErrorIs(t, err, ErrInvalidRole)

	_, err = f.service.Invite(context.Background(), uuid.New(), f.company.ID, &InviteRequest{Email: "nobody@example.com", Role: RoleManager})
	assert.ErrorIs(t, err, auth.ErrUserNotFound)

	f.repo.AssertNotCalled(t, "SaveMember", mock.Anything, mock.Anything)
}

func TestService_Authorize(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	stranger := uuid.New()

	f.repo.On("IsMember", mock.Anything, f.company.ID, f.analyst.ID).Return(true, nil)
	f.repo.On("IsMember", mock.Anything, f.company.ID, stranger).Return(false, nil)

	assert.NoError(t, f.service.Authorize(ctx, f.company.ID, f.company.OwnerID, false))
	assert.NoError(t, f.service.Authorize(ctx, f.company.ID, stranger, true))
	assert.NoError(t, f.service.Authorize(ctx, f.company.ID, f.analyst.ID, false))
	assert.ErrorIs(t, f.service.Authorize(ctx, f.company.ID, stranger, false), companies.ErrForbidden)
	assert.ErrorIs(t, f.service.Authorize(ctx, uuid.New(), stranger, true), companies.ErrCompanyNotFound)
}

func TestService_SendTask(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	owner := f.company.OwnerID

	f.repo.On("IsMember", mock.Anything, f.company.ID, f.analyst.ID).Return(true, nil)
	f.repo.On("CreateTask", mock.Anything, mock.MatchedBy(func(task *Task) bool {
		return task.From == owner && task.To == f.analyst.ID && task.Message == "Review supplier data"
	})).Return(nil).Once()
	f.notifier.On("Notify", mock.Anything, mock.MatchedBy(func(a notifications.Alert) bool {
		return a.Kind == notifications.KindTeamTask && a.CompanyID == f.company.ID
	})).Return(nil).Once()

	task, err := f.service.SendTask(ctx, f.company.ID, owner, &TaskRequest{To: f.analyst.ID, Message: "  Review supplier data "})
	require.NoError(t, err)
	assert.Equal(t, "Review supplier data", task.Message)

	f.repo.AssertExpectations(t)
	f.notifier.AssertExpectations(t)
}

func TestService_SendTaskValidation(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	stranger := uuid.New()

	f.repo.On("IsMember", mock.Anything, f.company.ID, stranger).Return(false, nil)

	_, err := f.service.SendTask(ctx, f.company.ID, f.company.OwnerID, &TaskRequest{To: stranger, Message: "hi"})
	assert.ErrorIs(t, err, ErrNotMember)

	_, err = f.service.SendTask(ctx, f.company.ID, f.company.OwnerID, &TaskRequest{To: f.company.OwnerID, Message: "   "})
	assert.ErrorIs(t, err, ErrEmptyTask)

	f.repo.AssertNotCalled(t, "CreateTask", mock.Anything, mock.Anything)
}

func TestService_InboxEmpty(t *testing.T) {
	f := newFixture()
	f.repo.On("ListTasks", mock.Anything, f.company.ID, f.analyst.ID).Return(nil, nil)

	tasks, err := f.service.Inbox(context.Background(), f.company.ID, f.analyst.ID)
	require.NoError(t, err)
	assert.NotNil(t, tasks)
	assert.Empty(t, tasks)
}

// =====================================================
// Handler
// =====================================================

func withCaller(userID uuid.UUID, role auth.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(auth.ContextUserID, userID.String())
		c.Set(auth.ContextUserRole, string(role))
		c.Next()
	}
}

func serve(f *fixture, caller uuid.UUID, role auth.Role, method, path string, body any) *httptest.ResponseRecorder {
	router := gin.New()
	NewHandler(f.service, zap.NewNop()).RegisterRoutes(router.Group("/api/v1/teams/companies/:id", withCaller(caller, role)))

	var data []byte
	if body != nil {
		data, _ = json.Marshal(body)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestHandler_TeamAccess(t *testing.T) {
	gin.SetMode(gin.TestMode)
	f := newFixture()
	base := "/api/v1/teams/companies/" + f.company.ID.String()
	stranger := uuid.New()

	f.repo.On("IsMember", mock.Anything, f.company.ID, f.analyst.ID).Return(true, nil)
	f.repo.On("IsMember", mock.Anything, f.company.ID, stranger).Return(false, nil)
	f.repo.On("ListTasks", mock.Anything, f.company.ID, f.analyst.ID).Return([]*Task{}, nil)

	w := serve(f, f.analyst.ID, auth.RoleUser, http.MethodGet, base+"/tasks", nil)
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = serve(f, stranger, auth.RoleUser, http.MethodGet, base+"/tasks", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = serve(f, stranger, auth.RoleUser, http.MethodGet, "/api/v1/teams/companies/"+uuid.New().String()+"/tasks", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = serve(f, stranger, auth.RoleUser, http.MethodGet, "/api/v1/teams/companies/x/tasks", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandler_InviteRequiresAdmin(t *testing.T) {
	gin.SetMode(gin.TestMode)
	f := newFixture()
	base := "/api/v1/teams/companies/" + f.company.ID.String()
	body := InviteRequest{Email: f.analyst.Email, Role: RoleManager}

	w := serve(f, f.company.OwnerID, auth.RoleUser, http.MethodPost, base+"/members", body)
	assert.Equal(t, http.StatusForbidden, w.Code)

	f.repo.On("SaveMember", mock.Anything, mock.Anything).Return(nil).Once()
	w = serve(f, uuid.New(), auth.RoleAdmin, http.MethodPost, base+"/members", body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var member Member
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &member))
	assert.Equal(t, RoleManager, member.Role)

	w = serve(f, uuid.New(), auth.RoleAdmin, http.MethodPost, base+"/members", gin.H{"email": "not-an-email", "role": "manager"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandler_SendTask(t *testing.T) {
	gin.SetMode(gin.TestMode)
	f := newFixture()
	base := "/api/v1/teams/companies/" + f.company.ID.String()

	f.repo.On("IsMember", mock.Anything, f.company.ID, f.analyst.ID).Return(true, nil)
	f.repo.On("CreateTask", mock.Anything, mock.Anything).Return(nil).Once()
	f.notifier.On("Notify", mock.Anything, mock.Anything).Return(nil).Once()

	w := serve(f, f.company.OwnerID, auth.RoleUser, http.MethodPost, base+"/tasks", TaskRequest{To: f.analyst.ID, Message: "Upload invoices"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = serve(f, f.company.OwnerID, auth.RoleUser, http.MethodPost, base+"/tasks", gin.H{"message": "no recipient"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
