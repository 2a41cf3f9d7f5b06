package repositoryimpl

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/workledger/workledger/internal/task"
	"github.com/workledger/workledger/pkg/cerr"
	"github.com/workledger/workledger/pkg/storage"
)

func newRepo(t *testing.T) *YAMLRepository {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	return NewYAMLRepository(store, 5*time.Second)
}

func newRecord(id string) *task.Record {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	return &task.Record{
		Task: task.Task{
			ID:        id,
			Title:     "write report",
			Priority:  task.PriorityMedium,
			CreatedAt: now,
			UpdatedAt: now,
		},
		Statuses: []task.Status{
			{ID: "st-1", TaskID: id, Name: task.StatusPending, IsCurrent: true, UpdatedAt: now},
		},
	}
}

func TestCreateAndGet(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()

	rec := newRecord("task-1")
	require.NoError(t, repo.Create(ctx, rec))
	assert.Equal(t, int64(1), rec.Version)

	got, err := repo.Get(ctx, "task-1")
	require.NoError(t, err)
	assert.Equal(t, "write report", got.Task.Title)
	assert.Equal(t, task.StatusPending, got.CurrentStatusName())
	assert.Equal(t, int64(1), got.Version)
}

func TestCreateDuplicate(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, newRecord("task-1")))
	err := repo.Create(ctx, newRecord("task-1"))
	assert.True(t, cerr.IsCode(err, cerr.AlreadyExists))
}

func TestGetNotFound(t *testing.T) {
	repo := newRepo(t)
	_, err := repo.Get(context.Background(), "missing")
	assert.True(t, cerr.IsCode(err, cerr.NotFound))
}

func TestUpdateBumpsVersion(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, newRecord("task-1")))

	rec, err := repo.Get(ctx, "task-1")
	require.NoError(t, err)
	rec.Task.Title = "revised report"
	require.NoError(t, repo.Update(ctx, rec))
	assert.Equal(t, int64(2), rec.Version)

	got, err := repo.Get(ctx, "task-1")
	require.NoError(t, err)
	assert.Equal(t, "revised report", got.Task.Title)
	assert.Equal(t, int64(2), got.Version)
}

func TestUpdateStaleVersionConflicts(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, newRecord("task-1")))

	first, err := repo.Get(ctx, "task-1")
	require.NoError(t, err)
	second, err := repo.Get(ctx, "task-1")
	require.NoError(t, err)

	require.NoError(t, repo.Update(ctx, first))

	err = repo.Update(ctx, second)
	assert.True(t, cerr.IsReason(err, task.ReasonConflict))
	assert.True(t, cerr.IsCode(err, cerr.Aborted))
	// The loser's version is untouched so it can reload and retry.
	assert.Equal(t, int64(1), second.Version)
}

func TestListFilters(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()

	a := newRecord("task-a")
	a.Task.Title = "quarterly report"
	a.Task.Priority = task.PriorityHigh
	a.Assignments = []task.Assignment{{TaskID: "task-a", UserID: "user-5", IsMainAssignee: true}}
	require.NoError(t, repo.Create(ctx, a))

	b := newRecord("task-b")
	b.Task.Title = "cleanup"
	require.NoError(t, repo.Create(ctx, b))

	all, err := repo.List(ctx, task.Filter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	byAssignee, err := repo.List(ctx, task.Filter{AssigneeID: "user-5"})
	require.NoError(t, err)
	require.Len(t, byAssignee, 1)
	assert.Equal(t, "task-a", byAssignee[0].Task.ID)

	byPriority, err := repo.List(ctx, task.Filter{Priority: task.PriorityHigh})
	require.NoError(t, err)
	require.Len(t, byPriority, 1)

	bySearch, err := repo.List(ctx, task.Filter{Search: "REPORT"})
	require.NoError(t, err)
	require.Len(t, bySearch, 1)
	assert.Equal(t, "task-a", bySearch[0].Task.ID)

	byStatus, err := repo.List(ctx, task.Filter{Status: task.StatusDone})
	require.NoError(t, err)
	assert.Empty(t, byStatus)
}
