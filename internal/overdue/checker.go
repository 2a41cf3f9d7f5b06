package overdue

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/workledger/workledger/internal/config"
	"github.com/workledger/workledger/internal/eventbus"
	"github.com/workledger/workledger/internal/task"
	"github.com/workledger/workledger/pkg/panicerr"
)

// Checker periodically scans open tasks with due dates and emits
// task_due_soon and task_overdue events. Notifications are deduplicated per
// task and kind within the renotify window so subscribers are reminded, not
// flooded.
type Checker struct {
	repo     task.Repository
	bus      *eventbus.Bus
	interval time.Duration
	dueSoon  time.Duration
	renotify time.Duration

	mu       sync.Mutex
	notified map[string]time.Time
}

func NewChecker(repo task.Repository, bus *eventbus.Bus, env config.OverdueEnv) *Checker {
	return &Checker{
		repo:     repo,
		bus:      bus,
		interval: env.CheckInterval,
		dueSoon:  env.DueSoonWindow,
		renotify: env.RenotifyWindow,
		notified: make(map[string]time.Time),
	}
}

// Run blocks until the context is canceled, checking on every tick.
func (c *Checker) Run(ctx context.Context) error {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			err := panicerr.SafeContext(func(ctx context.Context) error {
				return c.Check(ctx, time.Now())
			})(ctx)
			if err != nil {
				slog.ErrorContext(ctx, "overdue check failed", slog.String("error", err.Error()))
			}
		}
	}
}

// Check runs a single scan at the given time.
func (c *Checker) Check(ctx context.Context, now time.Time) error {
	recs, err := c.repo.List(ctx, task.Filter{})
	if err != nil {
		return err
	}
	for _, rec := range recs {
		if rec.Task.DueDate == nil || rec.CurrentStatusName().Terminal() {
			continue
		}
		due := *rec.Task.DueDate
		switch {
		case now.After(due):
			c.emit(rec, eventbus.TypeTaskOverdue, due, now)
		case due.Sub(now) <= c.dueSoon:
			c.emit(rec, eventbus.TypeTaskDueSoon, due, now)
		}
	}
	return nil
}

func (c *Checker) emit(rec *task.Record, eventType string, due, now time.Time) {
	key := eventType + ":" + rec.Task.ID

	c.mu.Lock()
	last, seen := c.notified[key]
	if seen && now.Sub(last) < c.renotify {
		c.mu.Unlock()
		return
	}
	c.notified[key] = now
	c.mu.Unlock()

	assignees := make([]string, 0, len(rec.Assignments))
	for _, a := range rec.Assignments {
		assignees = append(assignees, a.UserID)
	}
	c.bus.PublishNew(eventType, rec.Task.ID, map[string]string{
		"title":     rec.Task.Title,
		"due_date":  due.Format(time.RFC3339),
		"assignees": strings.Join(assignees, ","),
	})
}
