package domain

import "time"

// Task is a single to-do item owned by one user.
// Не зависит от Gin, Postgres, Redis.
type Task struct {
	ID          int64
	UserID      int64
	Title       string
	Description string
	IsDone      bool
	DueAt       *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt *time.Time
}
