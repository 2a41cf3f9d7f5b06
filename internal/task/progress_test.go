package task

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/workledger/workledger/pkg/cerr"
)

func newProgressFixture(t *testing.T, users ...string) (*ProgressTracker, *Record) {
	t.Helper()
	rec := newTestRecord()
	m := newAssignmentManager()
	_, err := m.Assign(rec, users, users[0], "manager-1")
	require.NoError(t, err)
	rec.Histories = nil
	return NewProgressTracker(NewRecorder(testClock()), testClock()), rec
}

func TestUpdateProgressAppendsRows(t *testing.T) {
	tracker, rec := newProgressFixture(t, "user-5")

	require.NoError(t, tracker.UpdateProgress(rec, "user-5", 30, "draft done", "user-5"))
	require.NoError(t, tracker.UpdateProgress(rec, "user-5", 60, "", "user-5"))

	// Updates append, never overwrite.
	require.Len(t, rec.Progresses, 2)
	latest := rec.LatestEffectiveProgress("user-5")
	require.NotNil(t, latest)
	assert.Equal(t, 60, latest.PercentageComplete)

	require.Len(t, rec.Histories, 2)
	second := rec.Histories[1]
	assert.Equal(t, ActionProgressUpdated, second.Action)
	require.NotNil(t, second.OldPercentage)
	require.NotNil(t, second.NewPercentage)
	assert.Equal(t, 30, *second.OldPercentage)
	assert.Equal(t, 60, *second.NewPercentage)
}

func TestUpdateProgressOutOfRange(t *testing.T) {
	tracker, rec := newProgressFixture(t, "user-5")

	err := tracker.UpdateProgress(rec, "user-5", 101, "", "user-5")
	assert.True(t, cerr.IsReason(err, ReasonOutOfRange))
	err = tracker.UpdateProgress(rec, "user-5", -1, "", "user-5")
	assert.True(t, cerr.IsReason(err, ReasonOutOfRange))
	assert.Empty(t, rec.Progresses)
	assert.Empty(t, rec.Histories)
}

func TestUpdateProgressNotAssigned(t *testing.T) {
	tracker, rec := newProgressFixture(t, "user-5")

	err := tracker.UpdateProgress(rec, "user-9", 50, "", "user-9")
	assert.True(t, cerr.IsReason(err, ReasonNotAssigned))
}

func TestTickCompleteMarksLatestRow(t *testing.T) {
	tracker, rec := newProgressFixture(t, "user-5")
	require.NoError(t, tracker.UpdateProgress(rec, "user-5", 80, "", "user-5"))

	changed, err := tracker.TickComplete(rec, "user-5", "user-5")
	require.NoError(t, err)
	assert.True(t, changed)
	assert.True(t, rec.LatestEffectiveProgress("user-5").IsTickComplete)

	last := rec.Histories[len(rec.Histories)-1]
	assert.Equal(t, ActionTickCompleted, last.Action)
}

func TestTickCompleteIdempotent(t *testing.T) {
	tracker, rec := newProgressFixture(t, "user-5")
	require.NoError(t, tracker.UpdateProgress(rec, "user-5", 80, "", "user-5"))

	changed, err := tracker.TickComplete(rec, "user-5", "user-5")
	require.NoError(t, err)
	require.True(t, changed)
	before := len(rec.Histories)

	changed, err = tracker.TickComplete(rec, "user-5", "user-5")
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Len(t, rec.Histories, before)
}

func TestTickCompleteWithoutRowsCreatesZeroRow(t *testing.T) {
	tracker, rec := newProgressFixture(t, "user-5")

	changed, err := tracker.TickComplete(rec, "user-5", "user-5")
	require.NoError(t, err)
	assert.True(t, changed)

	require.Len(t, rec.Progresses, 1)
	assert.Equal(t, 0, rec.Progresses[0].PercentageComplete)
	assert.True(t, rec.Progresses[0].IsTickComplete)
}

func TestRevertTick(t *testing.T) {
	tracker, rec := newProgressFixture(t, "user-5")
	require.NoError(t, tracker.UpdateProgress(rec, "user-5", 100, "", "user-5"))
	_, err := tracker.TickComplete(rec, "user-5", "user-5")
	require.NoError(t, err)

	require.NoError(t, tracker.RevertTick(rec, "user-5", "user-5"))

	row := &rec.Progresses[0]
	assert.False(t, row.IsTickComplete)
	assert.True(t, row.TickReverted)
	// The reverted row no longer counts as effective progress.
	assert.Nil(t, rec.LatestEffectiveProgress("user-5"))

	last := rec.Histories[len(rec.Histories)-1]
	assert.Equal(t, ActionTickReverted, last.Action)
}

func TestRevertTickFindsOlderTickedRow(t *testing.T) {
	tracker, rec := newProgressFixture(t, "user-5")
	require.NoError(t, tracker.UpdateProgress(rec, "user-5", 90, "", "user-5"))
	_, err := tracker.TickComplete(rec, "user-5", "user-5")
	require.NoError(t, err)
	// A later update leaves the tick on the earlier row.
	require.NoError(t, tracker.UpdateProgress(rec, "user-5", 95, "", "user-5"))

	require.NoError(t, tracker.RevertTick(rec, "user-5", "user-5"))

	assert.True(t, rec.Progresses[0].TickReverted)
	// The newer row stays effective.
	latest := rec.LatestEffectiveProgress("user-5")
	require.NotNil(t, latest)
	assert.Equal(t, 95, latest.PercentageComplete)
}

func TestRevertTickNoActiveTick(t *testing.T) {
	tracker, rec := newProgressFixture(t, "user-5")
	require.NoError(t, tracker.UpdateProgress(rec, "user-5", 50, "", "user-5"))

	err := tracker.RevertTick(rec, "user-5", "user-5")
	assert.True(t, cerr.IsReason(err, ReasonNoActiveTick))

	// Revert then revert again also fails.
	_, err = tracker.TickComplete(rec, "user-5", "user-5")
	require.NoError(t, err)
	require.NoError(t, tracker.RevertTick(rec, "user-5", "user-5"))
	err = tracker.RevertTick(rec, "user-5", "user-5")
	assert.True(t, cerr.IsReason(err, ReasonNoActiveTick))
}

func TestAggregatePercentage(t *testing.T) {
	tracker, rec := newProgressFixture(t, "user-5", "user-7")

	require.NoError(t, tracker.UpdateProgress(rec, "user-5", 60, "", "user-5"))
	require.NoError(t, tracker.UpdateProgress(rec, "user-7", 80, "", "user-7"))
	assert.Equal(t, 70, rec.AggregatePercentage())

	// Assignees without progress count as zero; 60/2 rounds down.
	rec2 := newTestRecord()
	m := newAssignmentManager()
	_, err := m.Assign(rec2, []string{"user-5", "user-7"}, "user-5", "manager-1")
	require.NoError(t, err)
	require.NoError(t, tracker.UpdateProgress(rec2, "user-5", 61, "", "user-5"))
	assert.Equal(t, 30, rec2.AggregatePercentage())
}
