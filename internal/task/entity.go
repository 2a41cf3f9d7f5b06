package task

import "time"

type Priority string

const (
	PriorityLow    Priority = "Low"
	PriorityMedium Priority = "Medium"
	PriorityHigh   Priority = "High"
)

// Order gives the numeric rank used for stable sorting; higher is more urgent.
func (p Priority) Order() int {
	switch p {
	case PriorityLow:
		return 1
	case PriorityMedium:
		return 2
	case PriorityHigh:
		return 3
	default:
		return 0
	}
}

func (p Priority) Valid() bool {
	return p.Order() != 0
}

type StatusName string

const (
	StatusPending    StatusName = "pending"
	StatusInProgress StatusName = "in_progress"
	StatusReview     StatusName = "review"
	StatusDone       StatusName = "done"
	StatusArchived   StatusName = "archived"
)

func (s StatusName) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusReview, StatusDone, StatusArchived:
		return true
	default:
		return false
	}
}

// Terminal statuses accept no automatic transitions.
func (s StatusName) Terminal() bool {
	return s == StatusDone || s == StatusArchived
}

// Action names recorded in the history ledger. Closed set.
type Action string

const (
	ActionTaskCreated       Action = "task_created"
	ActionAssignmentChanged Action = "assignment_changed"
	ActionProgressUpdated   Action = "progress_updated"
	ActionTickCompleted     Action = "tick_completed"
	ActionTickReverted      Action = "tick_reverted"
	ActionStatusChanged     Action = "status_changed"
)

type Task struct {
	ID                 string     `yaml:"id" json:"task_id"`
	Title              string     `yaml:"title" json:"title"`
	Description        string     `yaml:"description" json:"description,omitempty"`
	Priority           Priority   `yaml:"priority" json:"priority"`
	PriorityOrder      int        `yaml:"priority_order" json:"priority_order"`
	CreatedBy          string     `yaml:"created_by" json:"created_by"`
	AssignedBy         string     `yaml:"assigned_by" json:"assigned_by"`
	PartID             string     `yaml:"part_id,omitempty" json:"part_id,omitempty"`
	IsDirectAssignment bool       `yaml:"is_direct_assignment" json:"is_direct_assignment"`
	RequiredFileCount  int        `yaml:"required_file_count" json:"required_file_count"`
	StartDate          *time.Time `yaml:"start_date,omitempty" json:"start_date,omitempty"`
	DueDate            *time.Time `yaml:"due_date,omitempty" json:"due_date,omitempty"`
	CreatedAt          time.Time  `yaml:"created_at" json:"created_at"`
	UpdatedAt          time.Time  `yaml:"updated_at" json:"updated_at"`
}

// Assignment links a user to a task. At most one assignment per task carries
// the main flag; if any assignment exists, exactly one is main.
type Assignment struct {
	TaskID         string    `yaml:"task_id" json:"task_id"`
	UserID         string    `yaml:"user_id" json:"user_id"`
	AssignedAt     time.Time `yaml:"assigned_at" json:"assigned_at"`
	IsMainAssignee bool      `yaml:"is_main_assignee" json:"is_main_assignee"`
}

// Status rows are append-style snapshots; exactly one row per task is
// current at any time. Prior rows are flipped to non-current, never rewritten.
type Status struct {
	ID          string     `yaml:"id" json:"status_id"`
	TaskID      string     `yaml:"task_id" json:"task_id"`
	Name        StatusName `yaml:"status_name" json:"status_name"`
	Description string     `yaml:"description,omitempty" json:"description,omitempty"`
	IsCurrent   bool       `yaml:"is_current" json:"is_current"`
	UpdatedBy   string     `yaml:"updated_by,omitempty" json:"updated_by,omitempty"`
	UpdatedAt   time.Time  `yaml:"updated_at" json:"updated_at"`
}

// Progress rows form a per-assignee time series; the latest non-reverted row
// per user is authoritative.
type Progress struct {
	ID                   string    `yaml:"id" json:"progress_id"`
	TaskID               string    `yaml:"task_id" json:"task_id"`
	UserID               string    `yaml:"user_id" json:"user_id"`
	PercentageComplete   int       `yaml:"percentage_complete" json:"percentage_complete"`
	MilestoneDescription string    `yaml:"milestone_description,omitempty" json:"milestone_description,omitempty"`
	IsTickComplete       bool      `yaml:"is_tick_complete" json:"is_tick_complete"`
	TickReverted         bool      `yaml:"tick_reverted" json:"tick_reverted"`
	UpdatedAt            time.Time `yaml:"updated_at" json:"updated_at"`
}

// History is the append-only audit ledger. Rows are never mutated or
// deleted after insertion.
type History struct {
	ID                string     `yaml:"id" json:"history_id"`
	TaskID            string     `yaml:"task_id" json:"task_id"`
	ActorID           string     `yaml:"actor_id" json:"actor_id"`
	StatusID          string     `yaml:"status_id,omitempty" json:"status_id,omitempty"`
	Action            Action     `yaml:"action" json:"action"`
	TargetUserID      string     `yaml:"target_user_id,omitempty" json:"target_user_id,omitempty"`
	OldPercentage     *int       `yaml:"old_percentage,omitempty" json:"old_percentage,omitempty"`
	NewPercentage     *int       `yaml:"new_percentage,omitempty" json:"new_percentage,omitempty"`
	StatusAfterUpdate StatusName `yaml:"status_after_update,omitempty" json:"status_after_update,omitempty"`
	Detail            string     `yaml:"detail,omitempty" json:"detail,omitempty"`
	CreatedAt         time.Time  `yaml:"created_at" json:"created_at"`
}
