package repositoryimpl

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/workledger/workledger/internal/task"
	"github.com/workledger/workledger/pkg/cerr"
	"github.com/workledger/workledger/pkg/storage"
)

const tasksPrefix = "tasks"

// YAMLRepository stores one document per task holding the full record, so
// every mutation commits the task, its rows and its audit entries in a
// single write. Writers are serialized per task and checked against the
// version loaded by the caller; a stale version fails with Conflict.
type YAMLRepository struct {
	storage storage.Storage
	timeout time.Duration

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewYAMLRepository(s storage.Storage, timeout time.Duration) *YAMLRepository {
	return &YAMLRepository{
		storage: s,
		timeout: timeout,
		locks:   make(map[string]*sync.Mutex),
	}
}

func path(id string) string {
	return fmt.Sprintf("%s/%s.yaml", tasksPrefix, id)
}

func (r *YAMLRepository) lock(id string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.locks[id]
	if !ok {
		l = &sync.Mutex{}
		r.locks[id] = l
	}
	return l
}

func (r *YAMLRepository) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, r.timeout)
}

func (r *YAMLRepository) Create(ctx context.Context, rec *task.Record) error {
	ctx, cancel := r.opContext(ctx)
	defer cancel()

	l := r.lock(rec.Task.ID)
	l.Lock()
	defer l.Unlock()

	exists, err := r.storage.Exists(ctx, path(rec.Task.ID))
	if err != nil {
		return cerr.WrapStorageWriteError("task", err)
	}
	if exists {
		return cerr.NewError(cerr.AlreadyExists, "task already exists", nil)
	}
	rec.Version = 1
	return r.write(ctx, rec)
}

func (r *YAMLRepository) Get(ctx context.Context, id string) (*task.Record, error) {
	ctx, cancel := r.opContext(ctx)
	defer cancel()

	data, err := r.storage.Read(ctx, path(id))
	if err != nil {
		return nil, cerr.WrapStorageReadError("task", err)
	}
	var rec task.Record
	if err := yaml.Unmarshal(data, &rec); err != nil {
		return nil, cerr.NewError(cerr.Internal, "server error", fmt.Errorf("failed to unmarshal task record: %w", err))
	}
	return &rec, nil
}

func (r *YAMLRepository) List(ctx context.Context, filter task.Filter) ([]*task.Record, error) {
	ctx, cancel := r.opContext(ctx)
	defer cancel()

	paths, err := r.storage.List(ctx, tasksPrefix)
	if err != nil {
		return nil, cerr.WrapStorageReadError("tasks", err)
	}
	sort.Strings(paths)

	var out []*task.Record
	for _, p := range paths {
		data, err := r.storage.Read(ctx, p)
		if err != nil {
			continue
		}
		var rec task.Record
		if err := yaml.Unmarshal(data, &rec); err != nil {
			continue
		}
		if !matches(&rec, filter) {
			continue
		}
		out = append(out, &rec)
	}
	return out, nil
}

// Update writes the record back if and only if the stored version still
// matches the one the caller loaded, then bumps it.
func (r *YAMLRepository) Update(ctx context.Context, rec *task.Record) error {
	ctx, cancel := r.opContext(ctx)
	defer cancel()

	l := r.lock(rec.Task.ID)
	l.Lock()
	defer l.Unlock()

	data, err := r.storage.Read(ctx, path(rec.Task.ID))
	if err != nil {
		return cerr.WrapStorageReadError("task", err)
	}
	var stored task.Record
	if err := yaml.Unmarshal(data, &stored); err != nil {
		return cerr.NewError(cerr.Internal, "server error", fmt.Errorf("failed to unmarshal task record: %w", err))
	}
	if stored.Version != rec.Version {
		return task.ErrConflict(rec.Task.ID)
	}
	rec.Version++
	if err := r.write(ctx, rec); err != nil {
		rec.Version--
		return err
	}
	return nil
}

func (r *YAMLRepository) write(ctx context.Context, rec *task.Record) error {
	data, err := yaml.Marshal(rec)
	if err != nil {
		return cerr.NewError(cerr.Internal, "server error", fmt.Errorf("failed to marshal task record: %w", err))
	}
	if err := r.storage.Write(ctx, path(rec.Task.ID), data); err != nil {
		return cerr.WrapStorageWriteError("task", err)
	}
	return nil
}

func matches(rec *task.Record, filter task.Filter) bool {
	if filter.AssigneeID != "" && !rec.IsAssigned(filter.AssigneeID) {
		return false
	}
	if filter.Status != "" && rec.CurrentStatusName() != filter.Status {
		return false
	}
	if filter.Priority != "" && rec.Task.Priority != filter.Priority {
		return false
	}
	if filter.Search != "" {
		needle := strings.ToLower(filter.Search)
		if !strings.Contains(strings.ToLower(rec.Task.Title), needle) &&
			!strings.Contains(strings.ToLower(rec.Task.Description), needle) {
			return false
		}
	}
	return true
}
