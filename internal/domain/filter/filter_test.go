package filter

import (
	"math"
	"testing"
	"time"

	"github.com/phrazzld/voicetask/internal/domain"
	"github.com/stretchr/testify/assert"
)

func sampleTasks() []domain.Task {
	day := func(d int) time.Time { return time.Date(2024, time.March, d, 10, 0, 0, 0, time.UTC) }
	return []domain.Task{
		{ID: "1", Title: "Record Podcast", Description: "episode one", Priority: "high",
			Status: domain.TaskStatusPending, Category: "media", Tags: []string{"a", "b"}, Owner: "alice", CreatedAt: day(1)},
		{ID: "2", Title: "Review notes", Priority: "low",
			Status: domain.TaskStatusApproved, Category: "work", Tags: []string{"a"}, Owner: "bob", CreatedAt: day(5)},
		{ID: "3", Title: "Transcribe", Description: "the PODCAST intro", Priority: "high",
			Status: domain.TaskStatusCompleted, Category: "media", Tags: []string{"b", "a", "c"}, Owner: "alice", CreatedAt: day(10)},
	}
}

func ids(tasks []domain.Task) []string {
	out := make([]string, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, t.ID)
	}
	return out
}

func TestApply(t *testing.T) {
	tests := []struct {
		name   string
		filter Filter
		want   []string
	}{
		{"empty filter matches all", Filter{}, []string{"1", "2", "3"}},
		{"keyword is case-insensitive across title and description", Filter{Keyword: "podcast"}, []string{"1", "3"}},
		{"priority exact", Filter{Priority: "high"}, []string{"1", "3"}},
		{"status exact", Filter{Status: domain.TaskStatusApproved}, []string{"2"}},
		{"category exact", Filter{Category: "work"}, []string{"2"}},
		{"tags subset", Filter{Tags: []string{"a", "b"}}, []string{"1", "3"}},
		{"owner exact", Filter{Owner: "bob"}, []string{"2"}},
		{"created after inclusive date prefix", Filter{CreatedAfter: "2024-03-05"}, []string{"2", "3"}},
		{"created before excludes later", Filter{CreatedBefore: "2024-03-05"}, []string{"1"}},
		{"conjunction", Filter{Priority: "high", Keyword: "intro"}, []string{"3"}},
		{"no match", Filter{Owner: "carol"}, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ids(Apply(sampleTasks(), tt.filter)))
		})
	}
}

func TestTagsFilterExcludesPartialMatch(t *testing.T) {
	tasks := []domain.Task{{ID: "only-a", Tags: []string{"a"}}}
	assert.Empty(t, Apply(tasks, Filter{Tags: []string{"a", "b"}}))
}

func TestPaginate(t *testing.T) {
	tasks := sampleTasks()

	assert.Equal(t, []string{"1", "2"}, ids(Paginate(tasks, 0, 2)))
	assert.Equal(t, []string{"2", "3"}, ids(Paginate(tasks, 1, 10)))
	assert.Equal(t, []string{"1", "2", "3"}, ids(Paginate(tasks, 0, 0)))
	assert.Empty(t, Paginate(tasks, 3, 10))
	assert.Empty(t, Paginate(tasks, 100, 1))
	assert.Equal(t, []string{"1"}, ids(Paginate(tasks, -5, 1)))
}

func TestPaginateHugeLimit(t *testing.T) {
	tasks := sampleTasks()

	assert.NotPanics(t, func() {
		assert.Equal(t, []string{"2", "3"}, ids(Paginate(tasks, 1, math.MaxInt)))
		assert.Empty(t, Paginate(tasks, math.MaxInt, math.MaxInt))
	})
}
