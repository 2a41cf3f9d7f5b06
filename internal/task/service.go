package task

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/workledger/workledger/internal/auth"
	"github.com/workledger/workledger/internal/eventbus"
	"github.com/workledger/workledger/pkg/cerr"
	"github.com/workledger/workledger/pkg/clog"
)

const (
	writeAttempts = 3
	retryBackoff  = 50 * time.Millisecond
)

// errNoWrite signals from a mutation closure that the record is already in
// the requested state and must not be written back.
var errNoWrite = errors.New("task: no write needed")

// Service composes the engines into the operation surface. Every mutation
// follows the same shape: check the caller's capability, load the record,
// mutate it in memory (audit rows included), write it back in one store
// operation, then publish events. Events are emitted only after the commit
// so subscribers never observe state that was rolled back.
type Service struct {
	repo        Repository
	bus         *eventbus.Bus
	attachments AttachmentCounter
	assignments *AssignmentManager
	progress    *ProgressTracker
	engine      *StatusEngine
	recorder    *Recorder
	now         func() time.Time
}

func NewService(repo Repository, bus *eventbus.Bus, attachments AttachmentCounter, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	recorder := NewRecorder(now)
	return &Service{
		repo:        repo,
		bus:         bus,
		attachments: attachments,
		assignments: NewAssignmentManager(recorder, now),
		progress:    NewProgressTracker(recorder, now),
		engine:      NewStatusEngine(attachments, recorder, now),
		recorder:    recorder,
		now:         now,
	}
}

type CreateTaskRequest struct {
	Title              string     `json:"title"`
	Description        string     `json:"description"`
	Priority           Priority   `json:"priority"`
	PartID             string     `json:"part_id"`
	IsDirectAssignment bool       `json:"is_direct_assignment"`
	RequiredFileCount  int        `json:"required_file_count"`
	StartDate          *time.Time `json:"start_date"`
	DueDate            *time.Time `json:"due_date"`
	AssigneeIDs        []string   `json:"assignee_ids"`
	MainAssigneeID     string     `json:"main_assignee_id"`
}

// CreateTask validates the request, persists a fresh record with its
// initial pending status and task_created audit row, and optionally assigns
// the initial assignee set in the same commit.
func (s *Service) CreateTask(ctx context.Context, p auth.Principal, req CreateTaskRequest) (*Record, error) {
	if err := auth.Require(p, auth.CapTaskCreate, ""); err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.Title) == "" {
		return nil, cerr.NewError(cerr.InvalidArgument, "title is required", nil)
	}
	if req.Priority == "" {
		req.Priority = PriorityMedium
	}
	if !req.Priority.Valid() {
		return nil, cerr.NewError(cerr.InvalidArgument, "priority must be Low, Medium or High", nil)
	}
	if req.RequiredFileCount < 0 {
		return nil, cerr.NewError(cerr.InvalidArgument, "required_file_count must not be negative", nil)
	}
	if req.IsDirectAssignment {
		if len(req.AssigneeIDs) == 0 {
			return nil, cerr.NewError(cerr.InvalidArgument, "direct assignment requires assignees", nil)
		}
		if req.PartID != "" {
			return nil, cerr.NewError(cerr.InvalidArgument, "direct assignment cannot target a part", nil)
		}
	}
	if req.StartDate != nil && req.DueDate != nil && req.DueDate.Before(*req.StartDate) {
		return nil, cerr.NewError(cerr.InvalidArgument, "due date precedes start date", nil)
	}

	now := s.now()
	rec := &Record{
		Task: Task{
			ID:                 ulid.Make().String(),
			Title:              strings.TrimSpace(req.Title),
			Description:        req.Description,
			Priority:           req.Priority,
			PriorityOrder:      req.Priority.Order(),
			CreatedBy:          p.UserID,
			PartID:             req.PartID,
			IsDirectAssignment: req.IsDirectAssignment,
			RequiredFileCount:  req.RequiredFileCount,
			StartDate:          req.StartDate,
			DueDate:            req.DueDate,
			CreatedAt:          now,
			UpdatedAt:          now,
		},
	}
	s.engine.Initialize(rec, p.UserID)
	s.recorder.Record(rec, History{
		ActorID:           p.UserID,
		Action:            ActionTaskCreated,
		StatusID:          rec.Statuses[0].ID,
		StatusAfterUpdate: StatusPending,
	})

	var delta AssignDelta
	if len(req.AssigneeIDs) > 0 {
		main := req.MainAssigneeID
		if main == "" {
			main = req.AssigneeIDs[0]
		}
		var err error
		delta, err = s.assignments.Assign(rec, req.AssigneeIDs, main, p.UserID)
		if err != nil {
			return nil, err
		}
	}

	if err := s.repo.Create(ctx, rec); err != nil {
		return nil, err
	}
	if !delta.Empty() {
		s.publishAssignmentChanged(rec.Task.ID, p.UserID, delta)
	}
	return rec, nil
}

// Assign replaces the task's assignee set.
func (s *Service) Assign(ctx context.Context, p auth.Principal, taskID string, userIDs []string, mainAssigneeID string) (*Record, error) {
	if err := auth.Require(p, auth.CapTaskAssign, taskID); err != nil {
		return nil, err
	}
	var delta AssignDelta
	rec, err := s.withRetry(ctx, taskID, func(rec *Record) error {
		var err error
		delta, err = s.assignments.Assign(rec, userIDs, mainAssigneeID, p.UserID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if !delta.Empty() {
		s.publishAssignmentChanged(taskID, p.UserID, delta)
	}
	return rec, nil
}

// ChangeMainAssignee moves the main flag to another current assignee.
func (s *Service) ChangeMainAssignee(ctx context.Context, p auth.Principal, taskID, newMainUserID string) (*Record, error) {
	if err := auth.Require(p, auth.CapTaskAssign, taskID); err != nil {
		return nil, err
	}
	rec, err := s.withRetry(ctx, taskID, func(rec *Record) error {
		return s.assignments.ChangeMainAssignee(rec, newMainUserID, p.UserID)
	})
	if err != nil {
		return nil, err
	}
	s.bus.PublishNew(eventbus.TypeAssignmentChanged, taskID, map[string]string{
		"actor_id":      p.UserID,
		"main_assignee": newMainUserID,
	})
	return rec, nil
}

// UpdateProgress records a new percentage for the calling assignee. The
// first progress above zero on a pending task starts it.
func (s *Service) UpdateProgress(ctx context.Context, p auth.Principal, taskID string, percentage int, milestone string) (*Record, error) {
	if err := auth.Require(p, auth.CapTaskProgress, taskID); err != nil {
		return nil, err
	}
	var started bool
	rec, err := s.withRetry(ctx, taskID, func(rec *Record) error {
		if err := s.progress.UpdateProgress(rec, p.UserID, percentage, milestone, p.UserID); err != nil {
			return err
		}
		started = s.engine.OnProgressRecorded(rec, percentage, p.UserID)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if started {
		s.publishStatusChanged(taskID, p.UserID, StatusInProgress)
	}
	return rec, nil
}

// TickComplete marks the caller's latest progress row finished. A repeated
// tick is absorbed without a write. A tick that satisfies the completion
// requirements of a task in review promotes it to done in the same commit.
func (s *Service) TickComplete(ctx context.Context, p auth.Principal, taskID string) (*Record, error) {
	if err := auth.Require(p, auth.CapTaskProgress, taskID); err != nil {
		return nil, err
	}
	var completed bool
	rec, err := s.withRetry(ctx, taskID, func(rec *Record) error {
		changed, err := s.progress.TickComplete(rec, p.UserID, p.UserID)
		if err != nil {
			return err
		}
		if !changed {
			return errNoWrite
		}
		completed, err = s.engine.CompletionCheck(ctx, rec, p.UserID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if completed {
		s.publishStatusChanged(taskID, p.UserID, StatusDone)
	}
	return rec, nil
}

// RevertTick undoes the caller's completed tick. Reverting on a done task
// drops it back to in_progress.
func (s *Service) RevertTick(ctx context.Context, p auth.Principal, taskID string) (*Record, error) {
	if err := auth.Require(p, auth.CapTaskProgress, taskID); err != nil {
		return nil, err
	}
	var reopened bool
	rec, err := s.withRetry(ctx, taskID, func(rec *Record) error {
		if err := s.progress.RevertTick(rec, p.UserID, p.UserID); err != nil {
			return err
		}
		reopened = s.engine.OnTickReverted(rec, p.UserID)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if reopened {
		s.publishStatusChanged(taskID, p.UserID, StatusInProgress)
	}
	return rec, nil
}

// TransitionStatus applies an explicit transition request. The capability
// required depends on the edge being taken: archiving, leaving review and
// the done override each have their own.
func (s *Service) TransitionStatus(ctx context.Context, p auth.Principal, taskID string, target StatusName, description string) (*Record, error) {
	rec, err := s.withRetry(ctx, taskID, func(rec *Record) error {
		current := rec.CurrentStatusName()
		capability := auth.CapTaskTransition
		opts := TransitionOptions{Description: description}
		switch {
		case target == StatusArchived:
			capability = auth.CapTaskArchive
		case current == StatusReview:
			capability = auth.CapTaskReview
		case current == StatusDone && target == StatusInProgress:
			capability = auth.CapTaskOverride
			opts.Override = true
		}
		if err := auth.Require(p, capability, taskID); err != nil {
			return err
		}
		return s.engine.Transition(ctx, rec, target, p.UserID, opts)
	})
	if err != nil {
		return nil, err
	}
	s.publishStatusChanged(taskID, p.UserID, target)
	return rec, nil
}

// TaskDetail is the composed read view of a single task.
type TaskDetail struct {
	Task                Task         `json:"task"`
	Assignments         []Assignment `json:"assignments"`
	CurrentStatus       *Status      `json:"current_status"`
	Progresses          []Progress   `json:"progresses"`
	Histories           []History    `json:"histories"`
	AggregatePercentage int          `json:"aggregate_percentage"`
	AttachmentCount     int          `json:"attachment_count"`
}

// GetTaskDetail returns the task with its assignments, progress series,
// ledger in chronological order, current status and derived aggregate.
func (s *Service) GetTaskDetail(ctx context.Context, p auth.Principal, taskID string) (*TaskDetail, error) {
	if err := auth.Require(p, auth.CapTaskRead, taskID); err != nil {
		return nil, err
	}
	rec, err := s.repo.Get(ctx, taskID)
	if err != nil {
		return nil, err
	}
	count, err := s.attachments.Count(ctx, taskID)
	if err != nil {
		clog.AddError(ctx, err)
		count = 0
	}
	return &TaskDetail{
		Task:                rec.Task,
		Assignments:         rec.Assignments,
		CurrentStatus:       rec.CurrentStatus(),
		Progresses:          rec.Progresses,
		Histories:           rec.HistoryAscending(),
		AggregatePercentage: rec.AggregatePercentage(),
		AttachmentCount:     count,
	}, nil
}

// QueryHistory returns the task's full audit ledger, oldest first.
func (s *Service) QueryHistory(ctx context.Context, p auth.Principal, taskID string) ([]History, error) {
	if err := auth.Require(p, auth.CapTaskRead, taskID); err != nil {
		return nil, err
	}
	rec, err := s.repo.Get(ctx, taskID)
	if err != nil {
		return nil, err
	}
	return rec.HistoryAscending(), nil
}

// TaskSummary is one row of a task listing.
type TaskSummary struct {
	Task                Task       `json:"task"`
	CurrentStatus       StatusName `json:"current_status"`
	AggregatePercentage int        `json:"aggregate_percentage"`
	AssigneeIDs         []string   `json:"assignee_ids"`
	MainAssigneeID      string     `json:"main_assignee_id,omitempty"`
}

// ListTasks returns summaries matching the filter, highest priority first,
// oldest first within a priority.
func (s *Service) ListTasks(ctx context.Context, p auth.Principal, filter Filter) ([]TaskSummary, error) {
	if err := auth.Require(p, auth.CapTaskRead, ""); err != nil {
		return nil, err
	}
	recs, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	out := make([]TaskSummary, 0, len(recs))
	for _, rec := range recs {
		summary := TaskSummary{
			Task:                rec.Task,
			CurrentStatus:       rec.CurrentStatusName(),
			AggregatePercentage: rec.AggregatePercentage(),
		}
		for _, a := range rec.Assignments {
			summary.AssigneeIDs = append(summary.AssigneeIDs, a.UserID)
			if a.IsMainAssignee {
				summary.MainAssigneeID = a.UserID
			}
		}
		out = append(out, summary)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Task.PriorityOrder != out[j].Task.PriorityOrder {
			return out[i].Task.PriorityOrder > out[j].Task.PriorityOrder
		}
		return out[i].Task.CreatedAt.Before(out[j].Task.CreatedAt)
	})
	return out, nil
}

// withRetry runs the load, mutate, write cycle, retrying a bounded number
// of times when the write fails with a retryable code. The record is
// reloaded on every attempt so the mutation always sees fresh state.
func (s *Service) withRetry(ctx context.Context, taskID string, mutate func(rec *Record) error) (*Record, error) {
	var lastErr error
	for attempt := 0; attempt < writeAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, cerr.NewError(cerr.Canceled, "retry aborted", ctx.Err())
			case <-time.After(time.Duration(attempt) * retryBackoff):
			}
		}
		rec, err := s.repo.Get(ctx, taskID)
		if err != nil {
			return nil, err
		}
		if err := mutate(rec); err != nil {
			if errors.Is(err, errNoWrite) {
				return rec, nil
			}
			return nil, err
		}
		if err := s.repo.Update(ctx, rec); err != nil {
			if isRetryable(err) {
				lastErr = err
				continue
			}
			return nil, err
		}
		return rec, nil
	}
	return nil, lastErr
}

func (s *Service) publishStatusChanged(taskID, actorID string, status StatusName) {
	s.bus.PublishNew(eventbus.TypeStatusChanged, taskID, map[string]string{
		"actor_id": actorID,
		"status":   string(status),
	})
}

func (s *Service) publishAssignmentChanged(taskID, actorID string, delta AssignDelta) {
	s.bus.PublishNew(eventbus.TypeAssignmentChanged, taskID, map[string]string{
		"actor_id": actorID,
		"added":    strings.Join(delta.Added, ","),
		"removed":  strings.Join(delta.Removed, ","),
	})
}

func isRetryable(err error) bool {
	var ce *cerr.Error
	if errors.As(err, &ce) {
		return ce.Code.Retryable()
	}
	return false
}
