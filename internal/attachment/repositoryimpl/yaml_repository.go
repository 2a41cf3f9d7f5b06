package repositoryimpl

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/workledger/workledger/internal/attachment"
	"github.com/workledger/workledger/pkg/cerr"
	"github.com/workledger/workledger/pkg/storage"
)

const attachmentsPrefix = "attachments"

// YAMLRepository keeps one document per task listing its attachments.
type YAMLRepository struct {
	storage storage.Storage
	timeout time.Duration

	mu sync.Mutex
}

func NewYAMLRepository(s storage.Storage, timeout time.Duration) *YAMLRepository {
	return &YAMLRepository{storage: s, timeout: timeout}
}

func path(taskID string) string {
	return fmt.Sprintf("%s/%s.yaml", attachmentsPrefix, taskID)
}

func (r *YAMLRepository) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, r.timeout)
}

func (r *YAMLRepository) Add(ctx context.Context, att *attachment.Attachment) error {
	ctx, cancel := r.opContext(ctx)
	defer cancel()

	r.mu.Lock()
	defer r.mu.Unlock()

	atts, err := r.load(ctx, att.TaskID)
	if err != nil {
		return err
	}
	atts = append(atts, att)
	data, err := yaml.Marshal(atts)
	if err != nil {
		return cerr.NewError(cerr.Internal, "server error", fmt.Errorf("failed to marshal attachments: %w", err))
	}
	if err := r.storage.Write(ctx, path(att.TaskID), data); err != nil {
		return cerr.WrapStorageWriteError("attachments", err)
	}
	return nil
}

func (r *YAMLRepository) ListByTask(ctx context.Context, taskID string) ([]*attachment.Attachment, error) {
	ctx, cancel := r.opContext(ctx)
	defer cancel()
	return r.load(ctx, taskID)
}

func (r *YAMLRepository) Count(ctx context.Context, taskID string) (int, error) {
	atts, err := r.ListByTask(ctx, taskID)
	if err != nil {
		return 0, err
	}
	return len(atts), nil
}

// load returns the task's attachment list; a missing document is an empty
// list, not an error.
func (r *YAMLRepository) load(ctx context.Context, taskID string) ([]*attachment.Attachment, error) {
	data, err := r.storage.Read(ctx, path(taskID))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil
		}
		return nil, cerr.WrapStorageReadError("attachments", err)
	}
	var atts []*attachment.Attachment
	if err := yaml.Unmarshal(data, &atts); err != nil {
		return nil, cerr.NewError(cerr.Internal, "server error", fmt.Errorf("failed to unmarshal attachments: %w", err))
	}
	return atts, nil
}
