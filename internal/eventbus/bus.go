package eventbus

import (
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Event types the engine emits. Delivery is fire-and-forget: subscribers
// that fall behind lose events rather than block a mutation.
const (
	TypeAssignmentChanged = "assignment_changed"
	TypeStatusChanged     = "status_changed"
	TypeTaskOverdue       = "task_overdue"
	TypeTaskDueSoon       = "task_due_soon"
)

type Event struct {
	ID        string
	Type      string
	TaskID    string
	Metadata  map[string]string
	CreatedAt time.Time
}

type Bus struct {
	mu          sync.RWMutex
	subscribers map[string]chan *Event
}

func New() *Bus {
	return &Bus{
		subscribers: make(map[string]chan *Event),
	}
}

func (b *Bus) Subscribe(bufSize int) (string, <-chan *Event) {
	id := ulid.Make().String()
	ch := make(chan *Event, bufSize)
	b.mu.Lock()
	b.subscribers[id] = ch
	b.mu.Unlock()
	return id, ch
}

func (b *Bus) Unsubscribe(id string) {
	b.mu.Lock()
	if ch, ok := b.subscribers[id]; ok {
		close(ch)
		delete(b.subscribers, id)
	}
	b.mu.Unlock()
}

func (b *Bus) Publish(event *Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subscribers {
		select {
		case ch <- event:
		default:
			// buffer full, drop event for this subscriber
		}
	}
}

func (b *Bus) PublishNew(eventType, taskID string, metadata map[string]string) {
	b.Publish(&Event{
		ID:        ulid.Make().String(),
		Type:      eventType,
		TaskID:    taskID,
		Metadata:  metadata,
		CreatedAt: time.Now(),
	})
}
