package router_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"tasktracker/internal/auth"
	"tasktracker/internal/config"
	"tasktracker/internal/handler"
	"tasktracker/internal/model"
	"tasktracker/internal/repository"
	"tasktracker/internal/router"
	"tasktracker/internal/service"
)

// In-memory repositories backing the HTTP tests. They return
// gorm.ErrRecordNotFound like the real ones so the services cannot
// tell the difference.

type fakeUserRepo struct {
	mu    sync.Mutex
	users map[uuid.UUID]model.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[uuid.UUID]model.User)}
}

func (r *fakeUserRepo) Create(_ context.Context, user *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	for _, u := range r.users {
		if u.Email == user.Email {
			return gorm.ErrDuplicatedKey
		}
	}
	r.users[user.ID] = *user
	return nil
}

func (r *fakeUserRepo) Update(_ context.Context, user *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[user.ID] = *user
	return nil
}

func (r *fakeUserRepo) FindByID(_ context.Context, id uuid.UUID) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[id]; ok {
		out := u
		return &out, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeUserRepo) FindByEmail(_ context.Context, email string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email {
			out := u
			return &out, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeUserRepo) List(_ context.Context) ([]model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.User, 0, len(r.users))
	for _, u := range r.users {
		out = append(out, u)
	}
	return out, nil
}

type fakeTaskRepo struct {
	mu    sync.Mutex
	tasks map[uuid.UUID]model.Task
	users *fakeUserRepo
}

func newFakeTaskRepo(users *fakeUserRepo) *fakeTaskRepo {
	return &fakeTaskRepo{tasks: make(map[uuid.UUID]model.Task), users: users}
}

func (r *fakeTaskRepo) Create(_ context.Context, task *model.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if task.ID == uuid.Nil {
		task.ID = uuid.New()
	}
	r.tasks[task.ID] = *task
	return nil
}

func (r *fakeTaskRepo) Update(_ context.Context, task *model.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tasks[task.ID] = *task
	return nil
}

func (r *fakeTaskRepo) Delete(_ context.Context, task *model.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tasks, task.ID)
	return nil
}

func (r *fakeTaskRepo) FindByID(_ context.Context, id uuid.UUID) (*model.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.tasks[id]; ok {
		out := t
		return &out, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeTaskRepo) FindByOwner(_ context.Context, ownerID uuid.UUID) ([]model.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Task
	for _, t := range r.tasks {
		if t.OwnerID == ownerID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (r *fakeTaskRepo) ListAll(ctx context.Context) ([]model.Task, error) {
	r.mu.Lock()
	tasks := make([]model.Task, 0, len(r.tasks))
	for _, t := range r.tasks {
		tasks = append(tasks, t)
	}
	r.mu.Unlock()
	for i := range tasks {
		if owner, err := r.users.FindByID(ctx, tasks[i].OwnerID); err == nil {
			tasks[i].Owner = owner
		}
	}
	return tasks, nil
}

var (
	_ repository.UserRepository = (*fakeUserRepo)(nil)
	_ repository.TaskRepository = (*fakeTaskRepo)(nil)
)

const testSecret = "test-secret"

func newTestServer(t *testing.T) (*echo.Echo, *fakeUserRepo, *fakeTaskRepo) {
	t.Helper()

	e := echo.New()
	cfg := &config.Config{Env: "test"}
	jwtService := auth.NewJWTService(testSecret)

	userRepo := newFakeUserRepo()
	taskRepo := newFakeTaskRepo(userRepo)

	authService := service.NewAuthService(userRepo, jwtService)
	userService := service.NewUserService(userRepo, nil)
	taskService := service.NewTaskService(taskRepo, nil)

	router.Register(
		e,
		cfg,
		jwtService,
		handler.NewAuthHandler(authService),
		handler.NewUserHandler(userService),
		handler.NewTaskHandler(taskService, userService),
	)

	return e, userRepo, taskRepo
}

func doRequest(e *echo.Echo, method, path, body string, cookies []*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	for _, ck := range cookies {
		req.AddCookie(ck)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func sessionCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, ck := range rec.Result().Cookies() {
		if ck.Name == auth.SessionCookieName {
			return ck
		}
	}
	t.Fatal("no session cookie in response")
	return nil
}

func login(t *testing.T, e *echo.Echo, email, password string) *http.Cookie {
	t.Helper()
	rec := doRequest(e, http.MethodPost, "/api/auth/login",
		fmt.Sprintf(`{"email":%q,"password":%q}`, email, password), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return sessionCookie(t, rec)
}

func seedAdmin(t *testing.T, users *fakeUserRepo, email, password string) uuid.UUID {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), 10)
	require.NoError(t, err)
	admin := &model.User{
		Name:         "Root",
		Email:        email,
		PasswordHash: string(hash),
		Role:         model.RoleAdmin,
	}
	require.NoError(t, users.Create(context.Background(), admin))
	return admin.ID
}

func TestSessionLifecycle(t *testing.T) {
	e, _, _ := newTestServer(t)

	// register
	rec := doRequest(e, http.MethodPost, "/api/auth/register",
		`{"name":"A","email":"a@x.com","password":"secret1"}`, nil)
	assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.NotContains(t, rec.Body.String(), "password")

	// login sets the session cookie; the token never appears in the body
	rec = doRequest(e, http.MethodPost, "/api/auth/login",
		`{"email":"a@x.com","password":"secret1"}`, nil)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	ck := sessionCookie(t, rec)
	assert.True(t, ck.HttpOnly)
	assert.NotContains(t, rec.Body.String(), ck.Value)

	// protected greeting
	rec = doRequest(e, http.MethodGet, "/api/tasks/me", "", []*http.Cookie{ck})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Hello A")

	// logout clears the cookie
	rec = doRequest(e, http.MethodPost, "/api/auth/logout", "", []*http.Cookie{ck})
	assert.Equal(t, http.StatusOK, rec.Code)
	cleared := sessionCookie(t, rec)
	assert.Empty(t, cleared.Value)
	assert.Negative(t, cleared.MaxAge)

	// no cookie, no access
	rec = doRequest(e, http.MethodGet, "/api/tasks/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, false, body["success"])
}

func TestLoginFailuresShareOneShape(t *testing.T) {
	e, _, _ := newTestServer(t)

	rec := doRequest(e, http.MethodPost, "/api/auth/register",
		`{"name":"A","email":"a@x.com","password":"secret1"}`, nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	unknown := doRequest(e, http.MethodPost, "/api/auth/login",
		`{"email":"b@x.com","password":"secret1"}`, nil)
	wrongPass := doRequest(e, http.MethodPost, "/api/auth/login",
		`{"email":"a@x.com","password":"wrong66"}`, nil)

	assert.Equal(t, http.StatusBadRequest, unknown.Code)
	assert.Equal(t, http.StatusBadRequest, wrongPass.Code)
	assert.JSONEq(t, unknown.Body.String(), wrongPass.Body.String())
}

func TestRegisterDuplicateEmailIgnoresCase(t *testing.T) {
	e, _, _ := newTestServer(t)

	rec := doRequest(e, http.MethodPost, "/api/auth/register",
		`{"name":"A","email":"a@x.com","password":"secret1"}`, nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doRequest(e, http.MethodPost, "/api/auth/register",
		`{"name":"Imposter","email":"A@X.com","password":"secret2"}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "already exists")
}

func TestExpiredTokenIsRejected(t *testing.T) {
	e, users, _ := newTestServer(t)

	// The account exists, but the token is past its expiry instant.
	userID := seedAdmin(t, users, "root@x.com", "secret1")

	claims := &auth.Claims{
		UserID: userID,
		Role:   model.RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
			IssuedAt:  jwt.NewNumericDate(time.Now().Add(-2 * time.Hour)),
		},
	}
	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)

	rec := doRequest(e, http.MethodGet, "/api/tasks/me", "", []*http.Cookie{
		{Name: auth.SessionCookieName, Value: expired},
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAdminRoutesRequireAdminRole(t *testing.T) {
	e, users, _ := newTestServer(t)
	seedAdmin(t, users, "root@x.com", "secret1")

	rec := doRequest(e, http.MethodPost, "/api/auth/register",
		`{"name":"A","email":"a@x.com","password":"secret1"}`, nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	// unauthenticated
	rec = doRequest(e, http.MethodGet, "/api/auth/admin/users", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// authenticated but not admin
	userCk := login(t, e, "a@x.com", "secret1")
	rec = doRequest(e, http.MethodGet, "/api/auth/admin/users", "", []*http.Cookie{userCk})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// admin
	adminCk := login(t, e, "root@x.com", "secret1")
	rec = doRequest(e, http.MethodGet, "/api/auth/admin/users", "", []*http.Cookie{adminCk})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "a@x.com")
	assert.NotContains(t, rec.Body.String(), "password")
}

func TestRoleManagement(t *testing.T) {
	e, users, _ := newTestServer(t)
	adminID := seedAdmin(t, users, "root@x.com", "secret1")

	rec := doRequest(e, http.MethodPost, "/api/auth/register",
		`{"name":"A","email":"a@x.com","password":"secret1"}`, nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	other, err := users.FindByEmail(context.Background(), "a@x.com")
	require.NoError(t, err)

	adminCk := login(t, e, "root@x.com", "secret1")

	// promote another user
	rec = doRequest(e, http.MethodPut, "/api/auth/admin/users/"+other.ID.String()+"/role",
		`{"role":"admin"}`, []*http.Cookie{adminCk})
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"role":"admin"`)

	// self-demotion is rejected
	rec = doRequest(e, http.MethodPut, "/api/auth/admin/users/"+adminID.String()+"/role",
		`{"role":"user"}`, []*http.Cookie{adminCk})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "cannot demote")

	// unknown role value
	rec = doRequest(e, http.MethodPut, "/api/auth/admin/users/"+other.ID.String()+"/role",
		`{"role":"superuser"}`, []*http.Cookie{adminCk})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// unknown user
	rec = doRequest(e, http.MethodPut, "/api/auth/admin/users/"+uuid.NewString()+"/role",
		`{"role":"admin"}`, []*http.Cookie{adminCk})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTaskOwnershipOverHTTP(t *testing.T) {
	e, users, _ := newTestServer(t)
	seedAdmin(t, users, "root@x.com", "secret1")

	for _, u := range []string{`{"name":"A","email":"a@x.com","password":"secret1"}`,
		`{"name":"B","email":"b@x.com","password":"secret1"}`} {
		rec := doRequest(e, http.MethodPost, "/api/auth/register", u, nil)
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	aCk := login(t, e, "a@x.com", "secret1")
	bCk := login(t, e, "b@x.com", "secret1")
	adminCk := login(t, e, "root@x.com", "secret1")

	// A creates a task
	rec := doRequest(e, http.MethodPost, "/api/tasks",
		`{"title":"Write report","description":"Quarterly report"}`, []*http.Cookie{aCk})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created struct {
		Task struct {
			ID     uuid.UUID `json:"id"`
			Status string    `json:"status"`
		} `json:"task"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, "pending", created.Task.Status)
	taskPath := "/api/tasks/" + created.Task.ID.String()

	// B sees an empty list and cannot touch A's task
	rec = doRequest(e, http.MethodGet, "/api/tasks", "", []*http.Cookie{bCk})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "Write report")

	rec = doRequest(e, http.MethodPut, taskPath, `{"status":"completed"}`, []*http.Cookie{bCk})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = doRequest(e, http.MethodDelete, taskPath, "", []*http.Cookie{bCk})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// A patches only the status; title and description survive
	rec = doRequest(e, http.MethodPut, taskPath, `{"status":"completed"}`, []*http.Cookie{aCk})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"completed"`)
	assert.Contains(t, rec.Body.String(), "Write report")
	assert.Contains(t, rec.Body.String(), "Quarterly report")

	// admin list carries owner annotations
	rec = doRequest(e, http.MethodGet, "/api/tasks", "", []*http.Cookie{adminCk})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"owner"`)
	assert.Contains(t, rec.Body.String(), "a@x.com")

	// admin deletes A's task and gets the record back
	rec = doRequest(e, http.MethodDelete, taskPath, "", []*http.Cookie{adminCk})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Write report")

	rec = doRequest(e, http.MethodPut, taskPath, `{"status":"pending"}`, []*http.Cookie{aCk})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTaskValidationOverHTTP(t *testing.T) {
	e, _, _ := newTestServer(t)

	rec := doRequest(e, http.MethodPost, "/api/auth/register",
		`{"name":"A","email":"a@x.com","password":"secret1"}`, nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	ck := login(t, e, "a@x.com", "secret1")

	// title over 20 chars
	rec = doRequest(e, http.MethodPost, "/api/tasks",
		`{"title":"`+strings.Repeat("x", 21)+`","description":"d"}`, []*http.Cookie{ck})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// missing description
	rec = doRequest(e, http.MethodPost, "/api/tasks", `{"title":"t"}`, []*http.Cookie{ck})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// unknown status on update
	rec = doRequest(e, http.MethodPost, "/api/tasks",
		`{"title":"t","description":"d"}`, []*http.Cookie{ck})
	require.Equal(t, http.StatusCreated, rec.Code)
	var created struct {
		Task struct {
			ID uuid.UUID `json:"id"`
		} `json:"task"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	rec = doRequest(e, http.MethodPut, "/api/tasks/"+created.Task.ID.String(),
		`{"status":"archived"}`, []*http.Cookie{ck})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
