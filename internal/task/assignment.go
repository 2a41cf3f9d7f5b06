package task

import (
	"fmt"
	"time"
)

// AssignmentManager owns the assignee set of a task and the main-assignee
// invariant: at most one main flag per task, and exactly one whenever any
// assignment exists.
type AssignmentManager struct {
	recorder *Recorder
	now      func() time.Time
}

func NewAssignmentManager(recorder *Recorder, now func() time.Time) *AssignmentManager {
	if now == nil {
		now = time.Now
	}
	return &AssignmentManager{recorder: recorder, now: now}
}

// AssignDelta reports which users were added to and removed from a task by
// an Assign call, for event emission.
type AssignDelta struct {
	Added   []string
	Removed []string
}

func (d AssignDelta) Empty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0
}

// Assign replaces the assignee set atomically: assignments absent from the
// new set are removed, new ones inserted, retained ones keep their original
// assigned timestamp. mainAssigneeID must be a member of userIDs. One
// history row is recorded per added and per removed user.
func (m *AssignmentManager) Assign(rec *Record, userIDs []string, mainAssigneeID, actorID string) (AssignDelta, error) {
	var delta AssignDelta

	if len(userIDs) == 0 {
		return delta, errInvalidAssignment(rec.Task.ID, "assignee set must not be empty")
	}
	set := make(map[string]struct{}, len(userIDs))
	for _, id := range userIDs {
		if id == "" {
			return delta, errInvalidAssignment(rec.Task.ID, "assignee id must not be empty")
		}
		set[id] = struct{}{}
	}
	if _, ok := set[mainAssigneeID]; !ok {
		return delta, errInvalidAssignment(rec.Task.ID,
			fmt.Sprintf("main assignee %s is not in the assignee set", mainAssigneeID))
	}

	existing := make(map[string]Assignment, len(rec.Assignments))
	for _, a := range rec.Assignments {
		existing[a.UserID] = a
	}

	next := make([]Assignment, 0, len(set))
	seen := make(map[string]struct{}, len(set))
	for _, id := range userIDs {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		a, ok := existing[id]
		if !ok {
			a = Assignment{
				TaskID:     rec.Task.ID,
				UserID:     id,
				AssignedAt: m.now(),
			}
			delta.Added = append(delta.Added, id)
		}
		a.IsMainAssignee = id == mainAssigneeID
		next = append(next, a)
	}
	for userID := range existing {
		if _, ok := set[userID]; !ok {
			delta.Removed = append(delta.Removed, userID)
		}
	}

	rec.Assignments = next
	rec.Task.AssignedBy = actorID
	rec.Task.UpdatedAt = m.now()

	for _, id := range delta.Added {
		m.recorder.Record(rec, History{
			ActorID:      actorID,
			Action:       ActionAssignmentChanged,
			TargetUserID: id,
			Detail:       "assigned",
		})
	}
	for _, id := range delta.Removed {
		m.recorder.Record(rec, History{
			ActorID:      actorID,
			Action:       ActionAssignmentChanged,
			TargetUserID: id,
			Detail:       "unassigned",
		})
	}
	return delta, nil
}

// ChangeMainAssignee flips the main flag to an existing assignee. There is
// never an intermediate state with zero or two mains: the record is written
// back in a single store operation.
func (m *AssignmentManager) ChangeMainAssignee(rec *Record, newMainUserID, actorID string) error {
	if !rec.IsAssigned(newMainUserID) {
		return errNotAssigned(rec.Task.ID, newMainUserID)
	}
	if current := rec.MainAssignee(); current != nil && current.UserID == newMainUserID {
		// Already main; nothing changes, nothing is recorded.
		return nil
	}
	for i := range rec.Assignments {
		rec.Assignments[i].IsMainAssignee = rec.Assignments[i].UserID == newMainUserID
	}
	rec.Task.UpdatedAt = m.now()

	m.recorder.Record(rec, History{
		ActorID:      actorID,
		Action:       ActionAssignmentChanged,
		TargetUserID: newMainUserID,
		Detail:       "main assignee changed",
	})
	return nil
}
