package service

import (
	"github.com/google/uuid"

	"tasktracker/internal/model"
)

// canModifyTask reports whether the caller may mutate the task: the
// owner always may, and so may any admin.
func canModifyTask(task *model.Task, callerID uuid.UUID, callerRole model.Role) bool {
	return task.OwnerID == callerID || callerRole == model.RoleAdmin
}

// canChangeRole reports whether the caller may set the target's role.
// An admin demoting their own account to user is always rejected; this
// is a dedicated guard, not derived from the admin override above.
func canChangeRole(target *model.User, newRole model.Role, callerID uuid.UUID, callerRole model.Role) bool {
	if target.ID == callerID && newRole == model.RoleUser && callerRole == model.RoleAdmin {
		return false
	}
	return true
}
