package eventbus

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBusPublishSubscribe(t *testing.T) {
	bus := New()
	id, ch := bus.Subscribe(4)
	defer bus.Unsubscribe(id)

	bus.PublishNew(TypeStatusChanged, "TASK-1", map[string]string{"new_status": "in_progress"})

	select {
	case ev := <-ch:
		assert.Equal(t, TypeStatusChanged, ev.Type)
		assert.Equal(t, "TASK-1", ev.TaskID)
		assert.Equal(t, "in_progress", ev.Metadata["new_status"])
		assert.NotEmpty(t, ev.ID)
		assert.False(t, ev.CreatedAt.IsZero())
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}
}

func TestBusDropsWhenBufferFull(t *testing.T) {
	bus := New()
	id, ch := bus.Subscribe(1)
	defer bus.Unsubscribe(id)

	bus.PublishNew(TypeAssignmentChanged, "TASK-1", nil)
	bus.PublishNew(TypeAssignmentChanged, "TASK-2", nil)

	ev := <-ch
	require.Equal(t, "TASK-1", ev.TaskID)

	select {
	case ev := <-ch:
		t.Fatalf("expected second event to be dropped, got %v", ev.TaskID)
	default:
	}
}

func TestBusUnsubscribeClosesChannel(t *testing.T) {
	bus := New()
	id, ch := bus.Subscribe(1)
	bus.Unsubscribe(id)

	_, open := <-ch
	assert.False(t, open)

	// Publishing after unsubscribe must not panic.
	bus.PublishNew(TypeTaskOverdue, "TASK-1", nil)
}
