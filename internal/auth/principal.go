package auth

import (
	"fmt"
	"slices"

	"github.com/workledger/workledger/pkg/cerr"
)

// Capabilities checked at the entry of each mutating operation. How a
// principal came to hold them is the identity provider's business; the
// engine only tests membership.
const (
	CapTaskCreate     = "task.create"
	CapTaskAssign     = "task.assign"
	CapTaskProgress   = "task.progress"
	CapTaskTransition = "task.transition"
	CapTaskReview     = "task.review"
	CapTaskArchive    = "task.archive"
	CapTaskOverride   = "task.override"
	CapTaskRead       = "task.read"
)

// RoleAdmin bypasses capability checks entirely.
const RoleAdmin = "admin"

// ReasonUnauthorized identifies a failed capability check to callers.
const ReasonUnauthorized = "Unauthorized"

// Principal is the authenticated caller, supplied per call by the external
// identity context. The engine never authenticates.
type Principal struct {
	UserID      string   `json:"user_id"`
	Role        string   `json:"role"`
	Permissions []string `json:"permissions"`
}

func (p Principal) Has(capability string) bool {
	if p.Role == RoleAdmin {
		return true
	}
	return slices.Contains(p.Permissions, capability)
}

// Require returns an Unauthorized error when the principal lacks the
// capability. taskID may be empty for operations not scoped to a task.
func Require(p Principal, capability, taskID string) error {
	if p.UserID == "" {
		return cerr.NewReasonError(cerr.Unauthenticated, ReasonUnauthorized, taskID,
			"missing principal")
	}
	if !p.Has(capability) {
		return cerr.NewReasonError(cerr.PermissionDenied, ReasonUnauthorized, taskID,
			fmt.Sprintf("missing capability %q", capability))
	}
	return nil
}
