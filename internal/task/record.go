package task

import "sort"

// Record is the unit of atomicity: the task together with every row that
// belongs to it. Mutations load a record, change it in memory (appending
// history as they go) and write it back in one store operation, so a state
// change can never be persisted without its audit rows.
type Record struct {
	Task        Task         `yaml:"task"`
	Assignments []Assignment `yaml:"assignments"`
	Statuses    []Status     `yaml:"statuses"`
	Progresses  []Progress   `yaml:"progresses"`
	Histories   []History    `yaml:"histories"`
	// Version is bumped by the repository on every committed write and
	// checked optimistically to detect concurrent writers.
	Version int64 `yaml:"version"`
}

// CurrentStatus returns the single status row with is_current set, or nil
// for a freshly initialized record.
func (r *Record) CurrentStatus() *Status {
	for i := range r.Statuses {
		if r.Statuses[i].IsCurrent {
			return &r.Statuses[i]
		}
	}
	return nil
}

// CurrentStatusName is a convenience for guards; records always carry at
// least the initial pending row.
func (r *Record) CurrentStatusName() StatusName {
	if s := r.CurrentStatus(); s != nil {
		return s.Name
	}
	return StatusPending
}

func (r *Record) MainAssignee() *Assignment {
	for i := range r.Assignments {
		if r.Assignments[i].IsMainAssignee {
			return &r.Assignments[i]
		}
	}
	return nil
}

func (r *Record) IsAssigned(userID string) bool {
	for i := range r.Assignments {
		if r.Assignments[i].UserID == userID {
			return true
		}
	}
	return false
}

// LatestProgress returns the user's most recent progress row regardless of
// revert state, or nil when the user has never recorded progress.
func (r *Record) LatestProgress(userID string) *Progress {
	var latest *Progress
	for i := range r.Progresses {
		p := &r.Progresses[i]
		if p.UserID != userID {
			continue
		}
		// Ties prefer the later row; the slice is append-ordered.
		if latest == nil || !p.UpdatedAt.Before(latest.UpdatedAt) {
			latest = p
		}
	}
	return latest
}

// LatestEffectiveProgress returns the user's most recent non-reverted row.
func (r *Record) LatestEffectiveProgress(userID string) *Progress {
	var latest *Progress
	for i := range r.Progresses {
		p := &r.Progresses[i]
		if p.UserID != userID || p.TickReverted {
			continue
		}
		if latest == nil || !p.UpdatedAt.Before(latest.UpdatedAt) {
			latest = p
		}
	}
	return latest
}

// AggregatePercentage derives the task-level completion estimate: the
// arithmetic mean of each assignee's latest non-reverted percentage, rounded
// down. A task with no assignees aggregates to 0 and can never reach done.
func (r *Record) AggregatePercentage() int {
	n := len(r.Assignments)
	if n == 0 {
		return 0
	}
	sum := 0
	for _, a := range r.Assignments {
		if p := r.LatestEffectiveProgress(a.UserID); p != nil {
			sum += p.PercentageComplete
		}
	}
	return sum / n
}

// HistoryAscending returns a copy of the ledger ordered by creation time,
// oldest first. Ties keep insertion order.
func (r *Record) HistoryAscending() []History {
	out := make([]History, len(r.Histories))
	copy(out, r.Histories)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}
