package attachment

import (
	"context"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/workledger/workledger/internal/auth"
	"github.com/workledger/workledger/internal/task"
	"github.com/workledger/workledger/pkg/cerr"
)

// Service registers and lists attachment metadata. Registration is limited
// to current assignees of the task; the count feeds the task completion
// guard.
type Service struct {
	repo  Repository
	tasks task.Repository
	now   func() time.Time
}

func NewService(repo Repository, tasks task.Repository, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{repo: repo, tasks: tasks, now: now}
}

type RegisterRequest struct {
	FileName    string `json:"file_name"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
	StorageKey  string `json:"storage_key"`
}

func (s *Service) Register(ctx context.Context, p auth.Principal, taskID string, req RegisterRequest) (*Attachment, error) {
	if err := auth.Require(p, auth.CapTaskProgress, taskID); err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.FileName) == "" {
		return nil, cerr.NewError(cerr.InvalidArgument, "file_name is required", nil)
	}
	if req.Size < 0 {
		return nil, cerr.NewError(cerr.InvalidArgument, "size must not be negative", nil)
	}

	rec, err := s.tasks.Get(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if !rec.IsAssigned(p.UserID) && p.Role != auth.RoleAdmin {
		return nil, cerr.NewReasonError(cerr.FailedPrecondition, task.ReasonNotAssigned, taskID,
			"only assignees can register attachments")
	}

	att := &Attachment{
		ID:          ulid.Make().String(),
		TaskID:      taskID,
		FileName:    req.FileName,
		ContentType: req.ContentType,
		Size:        req.Size,
		StorageKey:  req.StorageKey,
		UploadedBy:  p.UserID,
		UploadedAt:  s.now(),
	}
	if err := s.repo.Add(ctx, att); err != nil {
		return nil, err
	}
	return att, nil
}

func (s *Service) List(ctx context.Context, p auth.Principal, taskID string) ([]*Attachment, error) {
	if err := auth.Require(p, auth.CapTaskRead, taskID); err != nil {
		return nil, err
	}
	return s.repo.ListByTask(ctx, taskID)
}
