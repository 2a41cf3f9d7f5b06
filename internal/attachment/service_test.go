package attachment_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/workledger/workledger/internal/attachment"
	attachmentrepo "github.com/workledger/workledger/internal/attachment/repositoryimpl"
	"github.com/workledger/workledger/internal/auth"
	"github.com/workledger/workledger/internal/task"
	taskrepo "github.com/workledger/workledger/internal/task/repositoryimpl"
	"github.com/workledger/workledger/pkg/cerr"
	"github.com/workledger/workledger/pkg/storage"
)

func newFixture(t *testing.T) (*attachment.Service, *attachmentrepo.YAMLRepository) {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	tasks := taskrepo.NewYAMLRepository(store, 5*time.Second)
	rec := &task.Record{
		Task: task.Task{ID: "task-1", Title: "write report"},
		Assignments: []task.Assignment{
			{TaskID: "task-1", UserID: "user-5", IsMainAssignee: true},
		},
		Statuses: []task.Status{
			{ID: "st-1", TaskID: "task-1", Name: task.StatusInProgress, IsCurrent: true},
		},
	}
	require.NoError(t, tasks.Create(context.Background(), rec))

	repo := attachmentrepo.NewYAMLRepository(store, 5*time.Second)
	return attachment.NewService(repo, tasks, nil), repo
}

func TestRegisterAndCount(t *testing.T) {
	service, repo := newFixture(t)
	ctx := context.Background()
	p := auth.Principal{UserID: "user-5", Permissions: []string{auth.CapTaskProgress, auth.CapTaskRead}}

	att, err := service.Register(ctx, p, "task-1", attachment.RegisterRequest{
		FileName:    "report.pdf",
		ContentType: "application/pdf",
		Size:        2048,
		StorageKey:  "uploads/report.pdf",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, att.ID)
	assert.Equal(t, "user-5", att.UploadedBy)

	_, err = service.Register(ctx, p, "task-1", attachment.RegisterRequest{FileName: "notes.txt"})
	require.NoError(t, err)

	count, err := repo.Count(ctx, "task-1")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	atts, err := service.List(ctx, p, "task-1")
	require.NoError(t, err)
	assert.Len(t, atts, 2)
}

func TestRegisterValidation(t *testing.T) {
	service, _ := newFixture(t)
	ctx := context.Background()
	p := auth.Principal{UserID: "user-5", Permissions: []string{auth.CapTaskProgress}}

	_, err := service.Register(ctx, p, "task-1", attachment.RegisterRequest{FileName: "  "})
	assert.True(t, cerr.IsCode(err, cerr.InvalidArgument))

	_, err = service.Register(ctx, p, "task-1", attachment.RegisterRequest{FileName: "a.txt", Size: -1})
	assert.True(t, cerr.IsCode(err, cerr.InvalidArgument))
}

func TestRegisterRequiresAssignment(t *testing.T) {
	service, _ := newFixture(t)
	ctx := context.Background()

	outsider := auth.Principal{UserID: "user-9", Permissions: []string{auth.CapTaskProgress}}
	_, err := service.Register(ctx, outsider, "task-1", attachment.RegisterRequest{FileName: "a.txt"})
	assert.True(t, cerr.IsReason(err, task.ReasonNotAssigned))

	// Admins may register on any task.
	adminUser := auth.Principal{UserID: "admin-1", Role: auth.RoleAdmin}
	_, err = service.Register(ctx, adminUser, "task-1", attachment.RegisterRequest{FileName: "a.txt"})
	assert.NoError(t, err)
}

func TestCountEmptyTask(t *testing.T) {
	_, repo := newFixture(t)
	count, err := repo.Count(context.Background(), "task-without-files")
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}
