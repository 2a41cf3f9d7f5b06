package task

import (
	"fmt"

	"github.com/workledger/workledger/pkg/cerr"
)

// Reasons carried on every domain error so callers can tell which invariant
// was violated. Validation reasons are caller-correctable and never retried;
// only Conflict and StorageUnavailable are eligible for automatic retry.
const (
	ReasonInvalidAssignment      = "InvalidAssignment"
	ReasonNotAssigned            = "NotAssigned"
	ReasonOutOfRange             = "OutOfRange"
	ReasonNoActiveTick           = "NoActiveTick"
	ReasonInvalidTransition      = "InvalidTransition"
	ReasonIncompleteRequirements = "IncompleteRequirements"
	ReasonNoOp                   = "NoOp"
	ReasonConflict               = "Conflict"
	ReasonStorageUnavailable     = "StorageUnavailable"
)

func errInvalidAssignment(taskID, msg string) error {
	return cerr.NewReasonError(cerr.InvalidArgument, ReasonInvalidAssignment, taskID, msg)
}

func errNotAssigned(taskID, userID string) error {
	return cerr.NewReasonError(cerr.FailedPrecondition, ReasonNotAssigned, taskID,
		fmt.Sprintf("user %s is not assigned to task %s", userID, taskID))
}

func errOutOfRange(taskID string, percentage int) error {
	return cerr.NewReasonError(cerr.OutOfRange, ReasonOutOfRange, taskID,
		fmt.Sprintf("percentage %d not in [0,100]", percentage))
}

func errNoActiveTick(taskID, userID string) error {
	return cerr.NewReasonError(cerr.FailedPrecondition, ReasonNoActiveTick, taskID,
		fmt.Sprintf("user %s has no completed tick to revert on task %s", userID, taskID))
}

func errInvalidTransition(taskID string, from, to StatusName) error {
	return cerr.NewReasonError(cerr.FailedPrecondition, ReasonInvalidTransition, taskID,
		fmt.Sprintf("transition from %q to %q is not allowed", from, to))
}

func errIncompleteRequirements(taskID, msg string) error {
	return cerr.NewReasonError(cerr.FailedPrecondition, ReasonIncompleteRequirements, taskID, msg)
}

func errNoOp(taskID string, status StatusName) error {
	return cerr.NewReasonError(cerr.AlreadyExists, ReasonNoOp, taskID,
		fmt.Sprintf("task is already in status %q", status))
}

// ErrConflict is raised by the repository when an optimistic version check
// fails on a concurrent write.
func ErrConflict(taskID string) error {
	return cerr.NewReasonError(cerr.Aborted, ReasonConflict, taskID,
		"task was modified concurrently, retry with fresh state")
}
