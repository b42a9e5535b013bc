package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"taskhub/internal/auth"
	"taskhub/internal/dto"
	"taskhub/internal/service"

	"github.com/gin-gonic/gin"
)

const sessionCookieName = "session_id"

// AuthHandler handles login, register and logout. Each POST supports two
// response modes from the same core call: a JSON envelope when the request
// declares application/json, an HTML re-render (or redirect) otherwise.
// The core never branches on the mode; only the presenters below do.
type AuthHandler struct {
	sessions auth.Sessions
	userSvc  *service.UserService
	ttl      time.Duration
}

// NewAuthHandler returns a new AuthHandler. ttl is the session cookie lifetime.
func NewAuthHandler(sessions auth.Sessions, userSvc *service.UserService, ttl time.Duration) *AuthHandler {
	return &AuthHandler{sessions: sessions, userSvc: userSvc, ttl: ttl}
}

// LoginPage renders the login form.
func (h *AuthHandler) LoginPage(c *gin.Context) {
	c.HTML(http.StatusOK, "login.html", gin.H{
		"title":    "Login - Taskhub",
		"formData": gin.H{},
	})
}

// RegisterPage renders the registration form.
func (h *AuthHandler) RegisterPage(c *gin.Context) {
	c.HTML(http.StatusOK, "register.html", gin.H{
		"title":    "Register - Taskhub",
		"formData": gin.H{},
	})
}

// Login godoc
// @Summary      Login
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body  dto.LoginRequest  true  "Credentials"
// @Success      200   {object}  dto.AuthSuccess
// @Failure      400   {object}  dto.AuthFailure
// @Failure      401   {object}  dto.AuthFailure
// @Failure      500   {object}  dto.AuthFailure
// @Router       /auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	// A malformed body leaves the fields empty and fails field validation
	// below with the same message a blank form gets.
	_ = c.ShouldBind(&req)

	user, err := h.userSvc.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		h.failAuth(c, "login.html", req.Username, err)
		return
	}

	cookie, err := h.sessions.Create(c.Request.Context(), user.ID, user.Username)
	if err != nil {
		slog.Error("create session", "username", user.Username, "err", err)
		h.failAuth(c, "login.html", req.Username, err)
		return
	}
	h.setSessionCookie(c, cookie)

	if wantsJSON(c) {
		c.JSON(http.StatusOK, dto.AuthSuccess{
			Success: true,
			Message: "Login successful",
			User:    dto.UserResponse{ID: user.ID, Username: user.Username},
			Session: cookie,
		})
		return
	}
	c.Redirect(http.StatusFound, "/tasks")
}

// Register godoc
// @Summary      Register
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body  dto.RegisterRequest  true  "Credentials"
// @Success      201   {object}  dto.AuthSuccess
// @Failure      400   {object}  dto.AuthFailure
// @Failure      409   {object}  dto.AuthFailure
// @Failure      500   {object}  dto.AuthFailure
// @Router       /auth/register [post]
func (h *AuthHandler) Register(c *gin.Context) {
	var req dto.RegisterRequest
	_ = c.ShouldBind(&req)

	user, err := h.userSvc.Register(c.Request.Context(), req.Username, req.Password, req.ConfirmPassword)
	if err != nil {
		h.failAuth(c, "register.html", strings.TrimSpace(req.Username), err)
		return
	}

	cookie, err := h.sessions.Create(c.Request.Context(), user.ID, user.Username)
	if err != nil {
		slog.Error("create session", "username", user.Username, "err", err)
		h.failAuth(c, "register.html", user.Username, err)
		return
	}
	h.setSessionCookie(c, cookie)

	if wantsJSON(c) {
		c.JSON(http.StatusCreated, dto.AuthSuccess{
			Success: true,
			Message: "Registration successful",
			User:    dto.UserResponse{ID: user.ID, Username: user.Username},
			Session: cookie,
		})
		return
	}
	c.Redirect(http.StatusFound, "/tasks")
}

// Logout godoc
// @Summary      Logout
// @Tags         auth
// @Success      302
// @Router       /auth/logout [post]
//
// Logout destroys the session and redirects to the login page. It serves GET
// and POST alike and is idempotent: a missing or already-destroyed session
// still logs out cleanly. A store failure is logged but the client is logged
// out regardless — its cookie is gone once the response is sent.
func (h *AuthHandler) Logout(c *gin.Context) {
	cookie, err := c.Cookie(sessionCookieName)
	if err == nil && cookie != "" {
		if err := h.sessions.Delete(c.Request.Context(), cookie); err != nil {
			slog.Error("destroy session", "err", err)
		}
	}
	c.SetCookie(sessionCookieName, "", -1, "/", "", false, true)
	c.Redirect(http.StatusFound, "/auth/login")
}

func (h *AuthHandler) setSessionCookie(c *gin.Context, cookie string) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(sessionCookieName, cookie, int(h.ttl.Seconds()), "/", "", false, true)
}

// failAuth presents a failed Login or Register in the mode the caller asked
// for. The submitted username is preserved for the form re-render; the
// password never is.
func (h *AuthHandler) failAuth(c *gin.Context, view, username string, err error) {
	status, msg := authErrorStatus(view, err)
	if status == http.StatusInternalServerError {
		slog.Error("auth failure", "view", view, "request_id", c.GetString("request_id"), "err", err)
	}
	if wantsJSON(c) {
		c.JSON(status, dto.AuthFailure{Success: false, Error: msg})
		return
	}
	title := "Login - Taskhub"
	if view == "register.html" {
		title = "Register - Taskhub"
	}
	c.HTML(http.StatusOK, view, gin.H{
		"title":    title,
		"error":    msg,
		"formData": gin.H{"username": username},
	})
}

func authErrorStatus(view string, err error) (int, string) {
	var ve *service.ValidationError
	switch {
	case errors.As(err, &ve):
		return http.StatusBadRequest, ve.Message
	case errors.Is(err, service.ErrInvalidCredentials):
		return http.StatusUnauthorized, "Invalid credentials"
	case errors.Is(err, service.ErrUsernameTaken):
		return http.StatusConflict, "Username already exists"
	default:
		if view == "register.html" {
			return http.StatusInternalServerError, "Server error during registration"
		}
		return http.StatusInternalServerError, "Server error during login"
	}
}

// wantsJSON reports whether the request declared a JSON body, which selects
// the JSON response mode.
func wantsJSON(c *gin.Context) bool {
	return c.ContentType() == "application/json"
}
