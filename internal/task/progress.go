package task

import (
	"time"

	"github.com/oklog/ulid/v2"
)

// ProgressTracker records per-assignee completion. Progress is a time
// series: updates append rows, never overwrite them, so the ledger and the
// series reconstruct identically.
type ProgressTracker struct {
	recorder *Recorder
	now      func() time.Time
}

func NewProgressTracker(recorder *Recorder, now func() time.Time) *ProgressTracker {
	if now == nil {
		now = time.Now
	}
	return &ProgressTracker{recorder: recorder, now: now}
}

// UpdateProgress appends a new progress row for the user and records the
// old/new percentages in the ledger.
func (t *ProgressTracker) UpdateProgress(rec *Record, userID string, percentage int, milestone, actorID string) error {
	if percentage < 0 || percentage > 100 {
		return errOutOfRange(rec.Task.ID, percentage)
	}
	if !rec.IsAssigned(userID) {
		return errNotAssigned(rec.Task.ID, userID)
	}

	oldPct := 0
	if prev := rec.LatestEffectiveProgress(userID); prev != nil {
		oldPct = prev.PercentageComplete
	}

	rec.Progresses = append(rec.Progresses, Progress{
		ID:                   ulid.Make().String(),
		TaskID:               rec.Task.ID,
		UserID:               userID,
		PercentageComplete:   percentage,
		MilestoneDescription: milestone,
		UpdatedAt:            t.now(),
	})
	rec.Task.UpdatedAt = t.now()

	t.recorder.Record(rec, History{
		ActorID:       actorID,
		Action:        ActionProgressUpdated,
		TargetUserID:  userID,
		OldPercentage: intPtr(oldPct),
		NewPercentage: intPtr(percentage),
		Detail:        milestone,
	})
	return nil
}

// TickComplete marks the user's latest progress row as explicitly finished.
// Calling it again without an intervening revert is a no-op, not an error;
// the returned bool reports whether anything changed. A user with no rows
// yet gets a fresh zero-percentage row carrying the tick; the tick is a
// declaration independent of the numeric percentage.
func (t *ProgressTracker) TickComplete(rec *Record, userID, actorID string) (bool, error) {
	if !rec.IsAssigned(userID) {
		return false, errNotAssigned(rec.Task.ID, userID)
	}

	// A second tick without an intervening revert is a no-op.
	for i := range rec.Progresses {
		if rec.Progresses[i].UserID == userID && rec.Progresses[i].IsTickComplete {
			return false, nil
		}
	}

	latest := rec.LatestEffectiveProgress(userID)
	if latest == nil {
		rec.Progresses = append(rec.Progresses, Progress{
			ID:        ulid.Make().String(),
			TaskID:    rec.Task.ID,
			UserID:    userID,
			UpdatedAt: t.now(),
		})
		latest = &rec.Progresses[len(rec.Progresses)-1]
	}

	latest.IsTickComplete = true
	latest.UpdatedAt = t.now()
	rec.Task.UpdatedAt = t.now()

	t.recorder.Record(rec, History{
		ActorID:       actorID,
		Action:        ActionTickCompleted,
		TargetUserID:  userID,
		NewPercentage: intPtr(latest.PercentageComplete),
	})
	return true, nil
}

// RevertTick undoes the user's most recent completed tick: the row is
// marked reverted and the tick flag cleared. Fails with NoActiveTick when
// there is nothing to revert.
func (t *ProgressTracker) RevertTick(rec *Record, userID, actorID string) error {
	if !rec.IsAssigned(userID) {
		return errNotAssigned(rec.Task.ID, userID)
	}

	// The tick may sit on an older row when progress was updated afterwards;
	// find the most recent row still carrying it.
	var ticked *Progress
	for i := range rec.Progresses {
		p := &rec.Progresses[i]
		if p.UserID != userID || !p.IsTickComplete {
			continue
		}
		if ticked == nil || !p.UpdatedAt.Before(ticked.UpdatedAt) {
			ticked = p
		}
	}
	if ticked == nil {
		return errNoActiveTick(rec.Task.ID, userID)
	}

	ticked.IsTickComplete = false
	ticked.TickReverted = true
	ticked.UpdatedAt = t.now()
	rec.Task.UpdatedAt = t.now()

	t.recorder.Record(rec, History{
		ActorID:       actorID,
		Action:        ActionTickReverted,
		TargetUserID:  userID,
		OldPercentage: intPtr(ticked.PercentageComplete),
	})
	return nil
}
