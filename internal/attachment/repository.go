package attachment

import "context"

type Repository interface {
	Add(ctx context.Context, att *Attachment) error
	ListByTask(ctx context.Context, taskID string) ([]*Attachment, error)
	Count(ctx context.Context, taskID string) (int, error)
}
