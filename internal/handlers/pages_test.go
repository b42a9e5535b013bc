package handlers

import (
	"context"
	"html/template"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	dom "taskhub/internal/domain"
	"taskhub/internal/service"
	"taskhub/web"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPageRouter(t *testing.T, userID int64) (*gin.Engine, *fakeTaskRepo) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	repo := newFakeTaskRepo()
	h := NewPageHandler(service.NewTaskService(repo, nil))

	r := gin.New()
	r.SetHTMLTemplate(template.Must(template.ParseFS(web.Templates, "templates/*.html")))
	r.GET("/", h.Index)
	r.GET("/time", h.Time)
	pages := r.Group("", asUser(userID))
	pages.GET("/tasks", h.Tasks)
	pages.GET("/tasks/calendar", h.Calendar)
	pages.GET("/calendar", h.CalendarRedirect)
	r.NoRoute(h.NotFound)
	return r, repo
}

func get(r *gin.Engine, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestIndexPage(t *testing.T) {
	r, _ := newPageRouter(t, 1)

	w := get(r, "/")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Taskhub")
}

func TestTasksPageListsTasks(t *testing.T) {
	r, repo := newPageRouter(t, 1)
	_, err := repo.Create(context.Background(), dom.Task{UserID: 1, Title: "water the plants"})
	require.NoError(t, err)

	w := get(r, "/tasks")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "water the plants")
}

func TestCalendarBucketsTasksByDay(t *testing.T) {
	r, repo := newPageRouter(t, 1)
	due := time.Date(2100, time.March, 15, 10, 0, 0, 0, time.UTC)
	_, err := repo.Create(context.Background(), dom.Task{UserID: 1, Title: "quarterly report", DueAt: &due})
	require.NoError(t, err)

	w := get(r, "/tasks/calendar?year=2100&month=3")
	require.Equal(t, http.StatusOK, w.Code)
	html := w.Body.String()
	assert.Contains(t, html, "March 2100")
	assert.Contains(t, html, "quarterly report")
}

func TestCalendarRedirect(t *testing.T) {
	r, _ := newPageRouter(t, 1)

	w := get(r, "/calendar")
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/tasks/calendar", w.Header().Get("Location"))
}

func TestNotFoundRendersErrorPage(t *testing.T) {
	r, _ := newPageRouter(t, 1)

	w := get(r, "/no-such-page")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "Page not found")
}
