package task

import (
	"context"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/workledger/workledger/pkg/cerr"
)

// AttachmentCounter reports how many files are attached to a task. The
// engine depends only on the count, not on where files live.
type AttachmentCounter interface {
	Count(ctx context.Context, taskID string) (int, error)
}

// StatusEngine is the only component allowed to derive or change a task's
// status. It evaluates the transition rules and writes the status snapshot
// plus its audit row into the record; nothing outside this file flips
// is_current.
type StatusEngine struct {
	attachments AttachmentCounter
	recorder    *Recorder
	now         func() time.Time
}

func NewStatusEngine(attachments AttachmentCounter, recorder *Recorder, now func() time.Time) *StatusEngine {
	if now == nil {
		now = time.Now
	}
	return &StatusEngine{attachments: attachments, recorder: recorder, now: now}
}

// Initialize inserts the initial pending snapshot for a freshly created
// record. Creation is audited as task_created by the caller, so no
// status_changed row is recorded here.
func (e *StatusEngine) Initialize(rec *Record, actorID string) {
	rec.Statuses = append(rec.Statuses, Status{
		ID:        ulid.Make().String(),
		TaskID:    rec.Task.ID,
		Name:      StatusPending,
		IsCurrent: true,
		UpdatedBy: actorID,
		UpdatedAt: e.now(),
	})
}

// TransitionOptions carry caller context the rules need beyond the target.
type TransitionOptions struct {
	// Override permits the done → in_progress manager override.
	Override bool
	// Description is stored on the new status snapshot.
	Description string
}

// Transition applies an explicit transition request. Requesting the current
// status is rejected with NoOp so callers can detect redundant requests.
func (e *StatusEngine) Transition(ctx context.Context, rec *Record, target StatusName, actorID string, opts TransitionOptions) error {
	if !target.Valid() {
		return errInvalidTransition(rec.Task.ID, rec.CurrentStatusName(), target)
	}
	current := rec.CurrentStatusName()
	if target == current {
		return errNoOp(rec.Task.ID, current)
	}

	switch {
	case current == StatusPending && target == StatusInProgress:
		// Explicit start; also fires automatically on first progress > 0.
	case current == StatusInProgress && target == StatusReview:
	case current == StatusReview && target == StatusInProgress:
		// Reviewer rejection, always permitted.
	case current == StatusReview && target == StatusDone:
		if err := e.checkCompletionRequirements(ctx, rec); err != nil {
			return err
		}
	case current == StatusDone && target == StatusInProgress:
		if !opts.Override {
			return errInvalidTransition(rec.Task.ID, current, target)
		}
	case target == StatusArchived && !current.Terminal():
		// Explicit archive from any non-terminal state.
	default:
		return errInvalidTransition(rec.Task.ID, current, target)
	}

	e.apply(rec, target, actorID, opts.Description)
	return nil
}

// OnProgressRecorded moves a pending task to in_progress the first time any
// assignee records progress above zero. Returns true when a transition fired.
func (e *StatusEngine) OnProgressRecorded(rec *Record, percentage int, actorID string) bool {
	if rec.CurrentStatusName() != StatusPending || percentage <= 0 {
		return false
	}
	e.apply(rec, StatusInProgress, actorID, "first progress recorded")
	return true
}

// CompletionCheck promotes a task in review to done when the completion
// requirements hold. An unmet guard is not an error here: the tick that
// triggered the check stands on its own.
func (e *StatusEngine) CompletionCheck(ctx context.Context, rec *Record, actorID string) (bool, error) {
	if rec.CurrentStatusName() != StatusReview {
		return false, nil
	}
	if err := e.checkCompletionRequirements(ctx, rec); err != nil {
		if IsRequirementsErr(err) {
			return false, nil
		}
		return false, err
	}
	e.apply(rec, StatusDone, actorID, "completion requirements met")
	return true, nil
}

// OnTickReverted drops a done task back to in_progress. The tick revert is
// the only automatic exit from done.
func (e *StatusEngine) OnTickReverted(rec *Record, actorID string) bool {
	if rec.CurrentStatusName() != StatusDone {
		return false
	}
	e.apply(rec, StatusInProgress, actorID, "tick reverted")
	return true
}

func (e *StatusEngine) checkCompletionRequirements(ctx context.Context, rec *Record) error {
	if len(rec.Assignments) == 0 {
		return errIncompleteRequirements(rec.Task.ID, "cannot complete: task has no assignees")
	}
	if agg := rec.AggregatePercentage(); agg < 100 {
		return errIncompleteRequirements(rec.Task.ID,
			fmt.Sprintf("cannot complete: aggregate progress is %d%%", agg))
	}
	required := rec.Task.RequiredFileCount
	if required <= 0 {
		return nil
	}
	count, err := e.attachments.Count(ctx, rec.Task.ID)
	if err != nil {
		return err
	}
	if count < required {
		return errIncompleteRequirements(rec.Task.ID,
			fmt.Sprintf("cannot complete: %d of %d required files missing", required-count, required))
	}
	return nil
}

// apply inserts the new current status snapshot, flips the prior one and
// records the status_changed audit row.
func (e *StatusEngine) apply(rec *Record, target StatusName, actorID, description string) {
	now := e.now()
	for i := range rec.Statuses {
		rec.Statuses[i].IsCurrent = false
	}
	status := Status{
		ID:          ulid.Make().String(),
		TaskID:      rec.Task.ID,
		Name:        target,
		Description: description,
		IsCurrent:   true,
		UpdatedBy:   actorID,
		UpdatedAt:   now,
	}
	rec.Statuses = append(rec.Statuses, status)
	rec.Task.UpdatedAt = now

	e.recorder.Record(rec, History{
		ActorID:           actorID,
		StatusID:          status.ID,
		Action:            ActionStatusChanged,
		StatusAfterUpdate: target,
	})
}

// IsRequirementsErr reports whether err is the review → done completion
// guard failing.
func IsRequirementsErr(err error) bool {
	return cerr.IsReason(err, ReasonIncompleteRequirements)
}
