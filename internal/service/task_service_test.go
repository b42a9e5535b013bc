package service

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	dom "taskhub/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTaskRepo struct {
	mu    sync.Mutex
	seq   int64
	tasks map[int64]dom.Task
}

func newFakeTaskRepo() *fakeTaskRepo {
	return &fakeTaskRepo{tasks: map[int64]dom.Task{}}
}

func (r *fakeTaskRepo) Create(_ context.Context, t dom.Task) (dom.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	t.ID = r.seq
	t.CreatedAt = time.Now().UTC()
	t.UpdatedAt = t.CreatedAt
	r.tasks[t.ID] = t
	return t, nil
}

func (r *fakeTaskRepo) GetByID(_ context.Context, userID, id int64) (dom.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[id]
	if !ok || t.UserID != userID || t.DeletedAt != nil {
		return dom.Task{}, pgx.ErrNoRows
	}
	return t, nil
}

func (r *fakeTaskRepo) List(_ context.Context, userID int64) ([]dom.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []dom.Task
	for _, t := range r.tasks {
		if t.UserID == userID && t.DeletedAt == nil {
			out = append(out, t)
		}
	}
	return out, nil
}

func (r *fakeTaskRepo) Update(_ context.Context, userID, id int64, patch dom.Task) (dom.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[id]
	if !ok || t.UserID != userID || t.DeletedAt != nil {
		return dom.Task{}, pgx.ErrNoRows
	}
	t.Title = patch.Title
	t.Description = patch.Description
	t.DueAt = patch.DueAt
	t.IsDone = patch.IsDone
	t.UpdatedAt = time.Now().UTC()
	r.tasks[id] = t
	return t, nil
}

func (r *fakeTaskRepo) SoftDelete(_ context.Context, userID, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[id]
	if !ok || t.UserID != userID || t.DeletedAt != nil {
		return nil
	}
	now := time.Now().UTC()
	t.DeletedAt = &now
	r.tasks[id] = t
	return nil
}

func (r *fakeTaskRepo) MarkDone(_ context.Context, userID, id int64, done bool) (dom.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[id]
	if !ok || t.UserID != userID || t.DeletedAt != nil {
		return dom.Task{}, pgx.ErrNoRows
	}
	t.IsDone = done
	t.UpdatedAt = time.Now().UTC()
	r.tasks[id] = t
	return t, nil
}

func (r *fakeTaskRepo) Search(_ context.Context, userID int64, q string) ([]dom.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	q = strings.ToLower(q)
	var out []dom.Task
	for _, t := range r.tasks {
		if t.UserID != userID || t.DeletedAt != nil {
			continue
		}
		if strings.Contains(strings.ToLower(t.Title), q) || strings.Contains(strings.ToLower(t.Description), q) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (r *fakeTaskRepo) Overdue(_ context.Context, userID int64) ([]dom.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now().UTC()
	var out []dom.Task
	for _, t := range r.tasks {
		if t.UserID == userID && t.DeletedAt == nil && !t.IsDone && t.DueAt != nil && t.DueAt.Before(now) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (r *fakeTaskRepo) ByDueRange(_ context.Context, userID int64, from, to time.Time) ([]dom.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []dom.Task
	for _, t := range r.tasks {
		if t.UserID != userID || t.DeletedAt != nil || t.DueAt == nil {
			continue
		}
		if !t.DueAt.Before(from) && t.DueAt.Before(to) {
			out = append(out, t)
		}
	}
	return out, nil
}

func TestTaskCreateTrimsFields(t *testing.T) {
	svc := NewTaskService(newFakeTaskRepo(), nil)

	created, err := svc.Create(context.Background(), 1, "  buy milk  ", "  2 liters  ", nil)
	require.NoError(t, err)
	assert.Equal(t, "buy milk", created.Title)
	assert.Equal(t, "2 liters", created.Description)
}

func TestTaskCreateRejectsPastDueDate(t *testing.T) {
	svc := NewTaskService(newFakeTaskRepo(), nil)

	past := time.Now().UTC().Add(-time.Hour)
	_, err := svc.Create(context.Background(), 1, "late", "", &past)
	assert.ErrorIs(t, err, ErrInvalidDueDate)
}

func TestTaskUserIsolation(t *testing.T) {
	svc := NewTaskService(newFakeTaskRepo(), nil)

	created, err := svc.Create(context.Background(), 1, "mine", "", nil)
	require.NoError(t, err)

	_, err = svc.GetByID(context.Background(), 2, created.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	list, err := svc.List(context.Background(), 2)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestTaskCompleteAndDelete(t *testing.T) {
	svc := NewTaskService(newFakeTaskRepo(), nil)

	created, err := svc.Create(context.Background(), 1, "todo", "", nil)
	require.NoError(t, err)

	done, err := svc.Complete(context.Background(), 1, created.ID)
	require.NoError(t, err)
	assert.True(t, done.IsDone)

	require.NoError(t, svc.Delete(context.Background(), 1, created.ID))
	_, err = svc.GetByID(context.Background(), 1, created.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTaskUpdatePartial(t *testing.T) {
	svc := NewTaskService(newFakeTaskRepo(), nil)

	created, err := svc.Create(context.Background(), 1, "title", "desc", nil)
	require.NoError(t, err)

	newTitle := "renamed"
	updated, err := svc.Update(context.Background(), 1, created.ID, &newTitle, nil, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "renamed", updated.Title)
	assert.Equal(t, "desc", updated.Description)
}

func TestTaskMonthRange(t *testing.T) {
	svc := NewTaskService(newFakeTaskRepo(), nil)

	in := time.Date(2100, time.March, 15, 12, 0, 0, 0, time.UTC)
	out := time.Date(2100, time.April, 1, 0, 0, 0, 0, time.UTC)
	_, err := svc.Create(context.Background(), 1, "inside", "", &in)
	require.NoError(t, err)
	_, err = svc.Create(context.Background(), 1, "outside", "", &out)
	require.NoError(t, err)

	list, err := svc.Month(context.Background(), 1, 2100, time.March)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "inside", list[0].Title)
}
