package handlers

import (
	"context"
	"encoding/json"
	"html/template"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"taskhub/internal/auth"
	dom "taskhub/internal/domain"
	"taskhub/internal/service"
	"taskhub/web"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSessions struct {
	mu        sync.Mutex
	seq       int
	sessions  map[string]auth.Session
	createErr error
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{sessions: map[string]auth.Session{}}
}

func (f *fakeSessions) Create(_ context.Context, userID int64, username string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return "", f.createErr
	}
	f.seq++
	cookie := "s" + strings.Repeat("0", f.seq)
	f.sessions[cookie] = auth.Session{ID: cookie, UserID: userID, Username: username}
	return cookie, nil
}

func (f *fakeSessions) Get(_ context.Context, cookie string) (auth.Session, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[cookie]
	return s, ok
}

func (f *fakeSessions) Delete(_ context.Context, cookie string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.sessions, cookie)
	return nil
}

func (f *fakeSessions) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sessions)
}

type fakeUserRepo struct {
	mu     sync.Mutex
	seq    int64
	byName map[string]dom.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{byName: map[string]dom.User{}}
}

func (r *fakeUserRepo) GetByUsername(_ context.Context, username string) (dom.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byName[username]
	if !ok {
		return dom.User{}, pgx.ErrNoRows
	}
	return u, nil
}

func (r *fakeUserRepo) GetByID(_ context.Context, id int64) (dom.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.byName {
		if u.ID == id {
			return u, nil
		}
	}
	return dom.User{}, pgx.ErrNoRows
}

func (r *fakeUserRepo) Create(_ context.Context, username, passwordHash string) (dom.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byName[username]; ok {
		return dom.User{}, &pgconn.PgError{Code: "23505"}
	}
	r.seq++
	u := dom.User{ID: r.seq, Username: username, PasswordHash: passwordHash}
	r.byName[username] = u
	return u, nil
}

func newAuthRouter(t *testing.T) (*gin.Engine, *fakeSessions, *service.UserService) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.SetHTMLTemplate(template.Must(template.ParseFS(web.Templates, "templates/*.html")))

	sessions := newFakeSessions()
	userSvc := service.NewUserService(newFakeUserRepo())
	h := NewAuthHandler(sessions, userSvc, 24*time.Hour)

	r.GET("/auth/login", h.LoginPage)
	r.POST("/auth/login", h.Login)
	r.GET("/auth/register", h.RegisterPage)
	r.POST("/auth/register", h.Register)
	r.GET("/auth/logout", h.Logout)
	r.POST("/auth/logout", h.Logout)
	return r, sessions, userSvc
}

func postJSON(r *gin.Engine, path string, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func postForm(r *gin.Engine, path string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func mustRegister(t *testing.T, svc *service.UserService, username, password string) dom.User {
	t.Helper()
	u, err := svc.Register(context.Background(), username, password, password)
	require.NoError(t, err)
	return u
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func sessionCookie(w *httptest.ResponseRecorder) *http.Cookie {
	res := w.Result()
	for _, c := range res.Cookies() {
		if c.Name == sessionCookieName {
			return c
		}
	}
	return nil
}

func TestLoginJSONSuccess(t *testing.T) {
	r, sessions, userSvc := newAuthRouter(t)
	mustRegister(t, userSvc, "alice", "secret1")

	w := postJSON(r, "/auth/login", `{"username":"alice","password":"secret1"}`)

	require.Equal(t, http.StatusOK, w.Code)
	body := decodeEnvelope(t, w)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "Login successful", body["message"])
	user := body["user"].(map[string]any)
	assert.Equal(t, "alice", user["username"])
	assert.NotEmpty(t, body["session"])

	cookie := sessionCookie(w)
	require.NotNil(t, cookie)
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, 1, sessions.count())

	sess, ok := sessions.Get(context.Background(), cookie.Value)
	require.True(t, ok)
	assert.Equal(t, "alice", sess.Username)
}

func TestLoginJSONInvalidCredentials(t *testing.T) {
	r, sessions, userSvc := newAuthRouter(t)
	mustRegister(t, userSvc, "alice", "secret1")

	for _, body := range []string{
		`{"username":"alice","password":"wrong"}`,
		`{"username":"nobody","password":"secret1"}`,
	} {
		w := postJSON(r, "/auth/login", body)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		env := decodeEnvelope(t, w)
		assert.Equal(t, false, env["success"])
		assert.Equal(t, "Invalid credentials", env["error"])
	}
	assert.Zero(t, sessions.count(), "no session may exist after failed logins")
}

func TestLoginJSONMissingFields(t *testing.T) {
	r, _, _ := newAuthRouter(t)

	for _, body := range []string{`{}`, `{"username":"alice"}`, `not json`} {
		w := postJSON(r, "/auth/login", body)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		env := decodeEnvelope(t, w)
		assert.Equal(t, "Username and password are required", env["error"])
	}
}

func TestLoginFormInvalidRerenders(t *testing.T) {
	r, _, userSvc := newAuthRouter(t)
	mustRegister(t, userSvc, "alice", "secret1")

	w := postForm(r, "/auth/login", url.Values{
		"username": {"alice"},
		"password": {"wrong"},
	})

	require.Equal(t, http.StatusOK, w.Code)
	html := w.Body.String()
	assert.Contains(t, html, "Invalid credentials")
	assert.Contains(t, html, `value="alice"`, "the username must be preserved")
	assert.NotContains(t, html, "wrong", "the password must never be echoed")
}

func TestLoginFormSuccessRedirects(t *testing.T) {
	r, sessions, userSvc := newAuthRouter(t)
	mustRegister(t, userSvc, "alice", "secret1")

	w := postForm(r, "/auth/login", url.Values{
		"username": {"alice"},
		"password": {"secret1"},
	})

	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/tasks", w.Header().Get("Location"))
	assert.NotNil(t, sessionCookie(w))
	assert.Equal(t, 1, sessions.count())
}

func TestLoginSessionStoreFailure(t *testing.T) {
	r, sessions, userSvc := newAuthRouter(t)
	mustRegister(t, userSvc, "alice", "secret1")
	sessions.createErr = context.DeadlineExceeded

	w := postJSON(r, "/auth/login", `{"username":"alice","password":"secret1"}`)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	env := decodeEnvelope(t, w)
	assert.Equal(t, "Server error during login", env["error"])
}

func TestRegisterJSONValidationMessages(t *testing.T) {
	r, sessions, _ := newAuthRouter(t)

	tests := []struct {
		body    string
		status  int
		wantErr string
	}{
		{`{"username":"ab","password":"secret1","confirmPassword":"secret1"}`,
			http.StatusBadRequest, "Username must be at least 3 characters long"},
		{`{"username":"validuser","password":"short","confirmPassword":"short"}`,
			http.StatusBadRequest, "Password must be at least 6 characters long"},
		{`{"username":"validuser","password":"secret1","confirmPassword":"secret2"}`,
			http.StatusBadRequest, "Passwords do not match"},
		{`{"username":"validuser"}`,
			http.StatusBadRequest, "All fields are required"},
	}
	for _, tt := range tests {
		w := postJSON(r, "/auth/register", tt.body)
		assert.Equal(t, tt.status, w.Code)
		env := decodeEnvelope(t, w)
		assert.Equal(t, tt.wantErr, env["error"])
	}
	assert.Zero(t, sessions.count())
}

func TestRegisterJSONConflict(t *testing.T) {
	r, _, userSvc := newAuthRouter(t)
	mustRegister(t, userSvc, "alice", "secret1")

	w := postJSON(r, "/auth/register", `{"username":"alice","password":"secret1","confirmPassword":"secret1"}`)

	assert.Equal(t, http.StatusConflict, w.Code)
	env := decodeEnvelope(t, w)
	assert.Equal(t, "Username already exists", env["error"])
}

func TestRegisterFormSuccessRedirects(t *testing.T) {
	r, sessions, _ := newAuthRouter(t)

	w := postForm(r, "/auth/register", url.Values{
		"username":        {"newuser"},
		"password":        {"secret1"},
		"confirmPassword": {"secret1"},
	})

	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/tasks", w.Header().Get("Location"))
	assert.Equal(t, 1, sessions.count())
}

func TestRegisterFormPreservesUsernameOnError(t *testing.T) {
	r, _, _ := newAuthRouter(t)

	w := postForm(r, "/auth/register", url.Values{
		"username":        {"newuser"},
		"password":        {"secret1"},
		"confirmPassword": {"different"},
	})

	require.Equal(t, http.StatusOK, w.Code)
	html := w.Body.String()
	assert.Contains(t, html, "Passwords do not match")
	assert.Contains(t, html, `value="newuser"`)
}

func TestLogoutIsIdempotent(t *testing.T) {
	r, sessions, userSvc := newAuthRouter(t)
	user := mustRegister(t, userSvc, "alice", "secret1")
	cookie, err := sessions.Create(context.Background(), user.ID, user.Username)
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodGet, "/auth/logout", nil)
		req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: cookie})
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusFound, w.Code, "logout %d", i+1)
		assert.Equal(t, "/auth/login", w.Header().Get("Location"))
		cleared := sessionCookie(w)
		require.NotNil(t, cleared)
		assert.Empty(t, cleared.Value)
	}
	assert.Zero(t, sessions.count())
}

func TestLogoutPostRedirectsSameAsGet(t *testing.T) {
	r, _, _ := newAuthRouter(t)

	w := postForm(r, "/auth/logout", url.Values{})
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/auth/login", w.Header().Get("Location"))
}
