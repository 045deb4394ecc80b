// Package access decides whether a principal may see or change a task.
// Every function is pure; callers translate a false result into the
// appropriate error.
package access

import "github.com/phrazzld/voicetask/internal/domain"

// IsOwner reports whether the task was created by the principal. The stable
// user id is preferred, the username is accepted for records written before
// user ids existed.
func IsOwner(principal domain.Principal, task *domain.Task) bool {
	if task.UserID != "" && principal.ID != "" && task.UserID == principal.ID {
		return true
	}
	return task.Owner != "" && principal.Username != "" && task.Owner == principal.Username
}

// CanRead reports whether the principal may see the task.
func CanRead(principal domain.Principal, task *domain.Task) bool {
	return principal.IsAdmin() || IsOwner(principal, task)
}

// CanWrite reports whether the principal may change the task. There is no
// write-only role, so this matches CanRead.
func CanWrite(principal domain.Principal, task *domain.Task) bool {
	return CanRead(principal, task)
}

// ScopeForListing returns the tasks visible to the principal, preserving
// their relative order. Admins see everything.
func ScopeForListing(principal domain.Principal, tasks []domain.Task) []domain.Task {
	if principal.IsAdmin() {
		return tasks
	}
	out := make([]domain.Task, 0, len(tasks))
	for i := range tasks {
		if IsOwner(principal, &tasks[i]) {
			out = append(out, tasks[i])
		}
	}
	return out
}
