package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	dom "taskhub/internal/domain"
	"taskhub/internal/repo"
	"taskhub/internal/utils"

	"github.com/jackc/pgx/v5"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrUsernameTaken      = errors.New("username already exists")
	ErrUserNotFound       = errors.New("user not found")
)

// ValidationError reports missing or malformed input. Message is exactly what
// the user sees, so handlers pass it through untouched.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

const (
	usernameMinLen = 3
	usernameMaxLen = 30
	passwordMinLen = 6
)

// UserService handles registration and credential checks.
type UserService struct {
	repo repo.UserRepo
}

// NewUserService returns a new UserService.
func NewUserService(repo repo.UserRepo) *UserService {
	return &UserService{repo: repo}
}

// Login checks a username/password pair and returns the user on success.
// An unknown username and a wrong password return the same error so the
// response never reveals which of the two was wrong.
func (s *UserService) Login(ctx context.Context, username, password string) (dom.User, error) {
	if username == "" || password == "" {
		return dom.User{}, &ValidationError{Message: "Username and password are required"}
	}
	u, err := s.repo.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return dom.User{}, ErrInvalidCredentials
		}
		return dom.User{}, fmt.Errorf("lookup user: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return dom.User{}, ErrInvalidCredentials
	}
	return u, nil
}

// Register validates the fields, creates the user with a bcrypt hash and
// returns it. The checks run in a fixed order and each failure carries its
// own message; the username (trimmed) survives every failure for re-display.
func (s *UserService) Register(ctx context.Context, username, password, confirmPassword string) (dom.User, error) {
	if username == "" || password == "" || confirmPassword == "" {
		return dom.User{}, &ValidationError{Message: "All fields are required"}
	}
	username = strings.TrimSpace(username)
	if utf8.RuneCountInString(username) < usernameMinLen {
		return dom.User{}, &ValidationError{Message: "Username must be at least 3 characters long"}
	}
	if utf8.RuneCountInString(username) > usernameMaxLen {
		return dom.User{}, &ValidationError{Message: "Username cannot exceed 30 characters"}
	}
	if len(password) < passwordMinLen {
		return dom.User{}, &ValidationError{Message: "Password must be at least 6 characters long"}
	}
	if password != confirmPassword {
		return dom.User{}, &ValidationError{Message: "Passwords do not match"}
	}

	// Fast-path duplicate check for a friendly error; the unique index on
	// users.username remains the authoritative one (see Create below).
	_, err := s.repo.GetByUsername(ctx, username)
	if err == nil {
		return dom.User{}, ErrUsernameTaken
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return dom.User{}, fmt.Errorf("check username: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return dom.User{}, fmt.Errorf("hash password: %w", err)
	}
	u, err := s.repo.Create(ctx, username, string(hash))
	if err != nil {
		// A concurrent insert can win the race after the check above.
		if utils.IsPGUniqueViolation(err) {
			return dom.User{}, ErrUsernameTaken
		}
		return dom.User{}, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

// GetByID returns the user by id, ErrUserNotFound if it no longer exists.
func (s *UserService) GetByID(ctx context.Context, id int64) (dom.User, error) {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return dom.User{}, ErrUserNotFound
		}
		return dom.User{}, err
	}
	return u, nil
}
