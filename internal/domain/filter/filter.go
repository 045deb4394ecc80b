// Package filter evaluates search predicates over an in-memory task
// sequence. All filters are optional and combine with AND; an empty Filter
// matches every task.
package filter

import (
	"strings"

	"github.com/phrazzld/voicetask/internal/domain"
)

// Filter holds the optional search criteria. Zero values mean "not set".
type Filter struct {
	Keyword  string
	Priority string
	Status   domain.TaskStatus
	Category string
	// Tags requires the task to carry every listed tag.
	Tags  []string
	Owner string
	// CreatedAfter and CreatedBefore compare lexicographically against
	// domain.FormatTimestamp(task.CreatedAt). Both bounds are inclusive.
	CreatedAfter  string
	CreatedBefore string
}

// IsEmpty reports whether no criteria are set.
func (f Filter) IsEmpty() bool {
	return f.Keyword == "" && f.Priority == "" && f.Status == "" && f.Category == "" &&
		len(f.Tags) == 0 && f.Owner == "" && f.CreatedAfter == "" && f.CreatedBefore == ""
}

// Match reports whether the task satisfies every set criterion. Cheap
// equality checks run before the keyword scan.
func (f Filter) Match(task *domain.Task) bool {
	if f.Priority != "" && task.Priority != f.Priority {
		return false
	}
	if f.Status != "" && task.Status != f.Status {
		return false
	}
	if f.Category != "" && task.Category != f.Category {
		return false
	}
	if f.Owner != "" && task.Owner != f.Owner {
		return false
	}
	if len(f.Tags) > 0 && !task.HasTags(f.Tags) {
		return false
	}
	if f.CreatedAfter != "" || f.CreatedBefore != "" {
		created := domain.FormatTimestamp(task.CreatedAt)
		if f.CreatedAfter != "" && created < f.CreatedAfter {
			return false
		}
		if f.CreatedBefore != "" && created > f.CreatedBefore {
			return false
		}
	}
	if f.Keyword != "" {
		haystack := strings.ToLower(task.Title + task.Description)
		if !strings.Contains(haystack, strings.ToLower(f.Keyword)) {
			return false
		}
	}
	return true
}

// Apply returns the tasks matching f in their original order.
func Apply(tasks []domain.Task, f Filter) []domain.Task {
	if f.IsEmpty() {
		return tasks
	}
	out := make([]domain.Task, 0, len(tasks))
	for i := range tasks {
		if f.Match(&tasks[i]) {
			out = append(out, tasks[i])
		}
	}
	return out
}

// Paginate returns at most limit tasks starting at offset skip. Out-of-range
// values yield an empty or truncated slice, never an error. A non-positive
// limit means no upper bound.
func Paginate(tasks []domain.Task, skip, limit int) []domain.Task {
	if skip < 0 {
		skip = 0
	}
	if skip >= len(tasks) {
		return []domain.Task{}
	}
	end := len(tasks)
	if limit > 0 && limit < end-skip {
		end = skip + limit
	}
	return tasks[skip:end]
}
