package task

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/workledger/workledger/pkg/cerr"
)

// testClock returns a clock that advances one second per call, so the
// append order of rows always matches their timestamps.
func testClock() func() time.Time {
	var mu sync.Mutex
	t := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t = t.Add(time.Second)
		return t
	}
}

func newTestRecord() *Record {
	return &Record{
		Task: Task{ID: "task-1", Title: "write report"},
		Statuses: []Status{
			{ID: "st-1", TaskID: "task-1", Name: StatusPending, IsCurrent: true},
		},
	}
}

func newAssignmentManager() *AssignmentManager {
	return NewAssignmentManager(NewRecorder(testClock()), testClock())
}

func TestAssignReplaceSet(t *testing.T) {
	m := newAssignmentManager()
	rec := newTestRecord()

	delta, err := m.Assign(rec, []string{"user-5", "user-7"}, "user-5", "manager-1")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"user-5", "user-7"}, delta.Added)
	assert.Empty(t, delta.Removed)

	require.Len(t, rec.Assignments, 2)
	main := rec.MainAssignee()
	require.NotNil(t, main)
	assert.Equal(t, "user-5", main.UserID)
	assert.Equal(t, "manager-1", rec.Task.AssignedBy)

	// One audit row per added user.
	assert.Len(t, rec.Histories, 2)
	for _, h := range rec.Histories {
		assert.Equal(t, ActionAssignmentChanged, h.Action)
		assert.Equal(t, "assigned", h.Detail)
	}
}

func TestAssignRemovesMissingUsers(t *testing.T) {
	m := newAssignmentManager()
	rec := newTestRecord()

	_, err := m.Assign(rec, []string{"user-5", "user-7"}, "user-5", "manager-1")
	require.NoError(t, err)
	firstAssignedAt := rec.Assignments[0].AssignedAt

	delta, err := m.Assign(rec, []string{"user-5", "user-9"}, "user-9", "manager-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"user-9"}, delta.Added)
	assert.Equal(t, []string{"user-7"}, delta.Removed)

	require.Len(t, rec.Assignments, 2)
	// Retained assignment keeps its original timestamp.
	assert.Equal(t, firstAssignedAt, rec.Assignments[0].AssignedAt)
	assert.Equal(t, "user-9", rec.MainAssignee().UserID)
}

func TestAssignDeduplicates(t *testing.T) {
	m := newAssignmentManager()
	rec := newTestRecord()

	_, err := m.Assign(rec, []string{"user-5", "user-5", "user-7"}, "user-7", "manager-1")
	require.NoError(t, err)
	assert.Len(t, rec.Assignments, 2)
}

func TestAssignValidation(t *testing.T) {
	m := newAssignmentManager()

	_, err := m.Assign(newTestRecord(), nil, "", "manager-1")
	assert.True(t, cerr.IsReason(err, ReasonInvalidAssignment))

	_, err = m.Assign(newTestRecord(), []string{"user-5", ""}, "user-5", "manager-1")
	assert.True(t, cerr.IsReason(err, ReasonInvalidAssignment))

	_, err = m.Assign(newTestRecord(), []string{"user-5"}, "user-7", "manager-1")
	assert.True(t, cerr.IsReason(err, ReasonInvalidAssignment))
}

func TestAssignInvalidSetLeavesRecordUntouched(t *testing.T) {
	m := newAssignmentManager()
	rec := newTestRecord()
	_, err := m.Assign(rec, []string{"user-5"}, "user-7", "manager-1")
	require.Error(t, err)
	assert.Empty(t, rec.Assignments)
	assert.Empty(t, rec.Histories)
}

func TestChangeMainAssignee(t *testing.T) {
	m := newAssignmentManager()
	rec := newTestRecord()
	_, err := m.Assign(rec, []string{"user-5", "user-7"}, "user-5", "manager-1")
	require.NoError(t, err)
	before := len(rec.Histories)

	require.NoError(t, m.ChangeMainAssignee(rec, "user-7", "manager-1"))
	assert.Equal(t, "user-7", rec.MainAssignee().UserID)

	// Exactly one main flag set.
	mains := 0
	for _, a := range rec.Assignments {
		if a.IsMainAssignee {
			mains++
		}
	}
	assert.Equal(t, 1, mains)
	assert.Len(t, rec.Histories, before+1)
}

func TestChangeMainAssigneeNotAssigned(t *testing.T) {
	m := newAssignmentManager()
	rec := newTestRecord()
	_, err := m.Assign(rec, []string{"user-5"}, "user-5", "manager-1")
	require.NoError(t, err)

	err = m.ChangeMainAssignee(rec, "user-9", "manager-1")
	assert.True(t, cerr.IsReason(err, ReasonNotAssigned))
}

func TestChangeMainAssigneeAlreadyMain(t *testing.T) {
	m := newAssignmentManager()
	rec := newTestRecord()
	_, err := m.Assign(rec, []string{"user-5"}, "user-5", "manager-1")
	require.NoError(t, err)
	before := len(rec.Histories)

	require.NoError(t, m.ChangeMainAssignee(rec, "user-5", "manager-1"))
	assert.Len(t, rec.Histories, before)
}
