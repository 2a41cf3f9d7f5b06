package task

import "context"

// Filter narrows List results. Zero values match everything.
type Filter struct {
	AssigneeID string
	Status     StatusName
	Priority   Priority
	Search     string
}

// Repository owns the canonical task records. Update must perform an
// optimistic version check and fail with a Conflict error when the stored
// version no longer matches the loaded one; implementations serialize
// writers per task so the check is sound.
type Repository interface {
	Create(ctx context.Context, rec *Record) error
	Get(ctx context.Context, id string) (*Record, error)
	List(ctx context.Context, filter Filter) ([]*Record, error)
	Update(ctx context.Context, rec *Record) error
}
