package handlers

import (
	"net/http"
	"strconv"
	"time"

	"taskhub/internal/auth"
	dom "taskhub/internal/domain"
	"taskhub/internal/service"

	"github.com/gin-gonic/gin"
)

// PageHandler renders the server-side HTML pages. Auth state comes from the
// context set by the auth middleware; templates receive the username (empty
// for anonymous visitors) for the shared navigation bar.
type PageHandler struct {
	taskSvc *service.TaskService
}

func NewPageHandler(taskSvc *service.TaskService) *PageHandler {
	return &PageHandler{taskSvc: taskSvc}
}

// Index renders the landing page.
func (h *PageHandler) Index(c *gin.Context) {
	c.HTML(http.StatusOK, "index.html", gin.H{
		"title": "Taskhub",
		"user":  currentUsername(c),
	})
}

// Time renders the countdown page; the timer itself runs client-side.
func (h *PageHandler) Time(c *gin.Context) {
	c.HTML(http.StatusOK, "time.html", gin.H{
		"title":              "Timer - Taskhub",
		"user":               currentUsername(c),
		"initialTime":        "10:00",
		"initialTimeSeconds": 600,
	})
}

// Tasks renders the task list page for the logged-in user.
func (h *PageHandler) Tasks(c *gin.Context) {
	userID := auth.UserIDFromContext(c)
	list, err := h.taskSvc.List(c.Request.Context(), userID)
	if err != nil {
		h.errorPage(c, http.StatusInternalServerError, "Something went wrong!")
		return
	}
	c.HTML(http.StatusOK, "tasks.html", gin.H{
		"title": "My Tasks - Taskhub",
		"user":  auth.UsernameFromContext(c),
		"tasks": list,
	})
}

// CalendarDay is one cell of the rendered month.
type CalendarDay struct {
	Day   int
	Tasks []dom.Task
}

// Calendar renders the month view. ?year= and ?month= select the month,
// defaulting to the current one.
func (h *PageHandler) Calendar(c *gin.Context) {
	now := time.Now().UTC()
	year := queryInt(c, "year", now.Year())
	month := time.Month(queryInt(c, "month", int(now.Month())))
	if month < time.January || month > time.December {
		month = now.Month()
	}

	userID := auth.UserIDFromContext(c)
	list, err := h.taskSvc.Month(c.Request.Context(), userID, year, month)
	if err != nil {
		h.errorPage(c, http.StatusInternalServerError, "Something went wrong!")
		return
	}

	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	daysInMonth := first.AddDate(0, 1, -1).Day()
	days := make([]CalendarDay, daysInMonth)
	for i := range days {
		days[i].Day = i + 1
	}
	for _, t := range list {
		if t.DueAt == nil {
			continue
		}
		d := t.DueAt.UTC().Day()
		days[d-1].Tasks = append(days[d-1].Tasks, t)
	}

	c.HTML(http.StatusOK, "calendar.html", gin.H{
		"title": "Calendar - Taskhub",
		"user":  auth.UsernameFromContext(c),
		"year":  year,
		"month": month.String(),
		"days":  days,
	})
}

// CalendarRedirect keeps the legacy /calendar path working.
func (h *PageHandler) CalendarRedirect(c *gin.Context) {
	c.Redirect(http.StatusFound, "/tasks/calendar")
}

// ServerError renders the generic error page; the recovery middleware calls
// it for panics so internals never reach the client.
func (h *PageHandler) ServerError(c *gin.Context) {
	h.errorPage(c, http.StatusInternalServerError, "Something went wrong!")
}

// NotFound renders the error page for unknown routes.
func (h *PageHandler) NotFound(c *gin.Context) {
	h.errorPage(c, http.StatusNotFound, "Page not found")
}

func (h *PageHandler) errorPage(c *gin.Context, status int, msg string) {
	c.HTML(status, "error.html", gin.H{
		"title": "Error - Taskhub",
		"user":  currentUsername(c),
		"error": msg,
	})
}

func currentUsername(c *gin.Context) string {
	if u, ok := auth.UserFromContext(c); ok {
		return u.Username
	}
	return ""
}

func queryInt(c *gin.Context, name string, def int) int {
	raw := c.Query(name)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}
