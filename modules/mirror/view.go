package mirror

import (
	"sort"
	"strings"

	"golang.org/x/text/collate"

	"github.com/KuwadaKouhei/todo-app/domain/todo"
)

// DeriveView computes the searched, filtered, and sorted task sequence from
// a mirror snapshot. It never mutates its input and always returns a fresh
// slice. Sorting is stable: tasks with equal keys keep their snapshot order.
//
// The collator drives locale-aware title comparison and is used only for
// the title sort; a nil collator falls back to byte-wise comparison. A
// collator is not safe for concurrent use, so callers must not share one
// across goroutines without their own locking.
func DeriveView(tasks []todo.Task, filter todo.Filter, sortBy todo.Sort, query string, collator *collate.Collator) []todo.Task {
	query = strings.ToLower(strings.TrimSpace(query))

	result := make([]todo.Task, 0, len(tasks))
	for _, t := range tasks {
		if query != "" && !matchesQuery(&t, query) {
			continue
		}
		switch filter {
		case todo.FilterActive:
			if t.Completed {
				continue
			}
		case todo.FilterCompleted:
			if !t.Completed {
				continue
			}
		}
		result = append(result, t)
	}

	sortTasks(result, sortBy, collator)
	return result
}

// matchesQuery reports whether the lowercased query is a substring of the
// task's title or, when present, its description.
func matchesQuery(t *todo.Task, query string) bool {
	if strings.Contains(strings.ToLower(t.Title), query) {
		return true
	}
	if t.Description != nil && strings.Contains(strings.ToLower(*t.Description), query) {
		return true
	}
	return false
}

func sortTasks(tasks []todo.Task, sortBy todo.Sort, collator *collate.Collator) {
	switch sortBy {
	case todo.SortDueDate:
		// Tasks without a due date form a trailing block; their relative
		// order is whatever the snapshot delivered.
		sort.SliceStable(tasks, func(i, j int) bool {
			a, b := tasks[i].DueDate, tasks[j].DueDate
			if a == nil {
				return false
			}
			if b == nil {
				return true
			}
			return a.Before(*b)
		})
	case todo.SortPriority:
		sort.SliceStable(tasks, func(i, j int) bool {
			return tasks[i].Priority.Rank() < tasks[j].Priority.Rank()
		})
	case todo.SortTitle:
		sort.SliceStable(tasks, func(i, j int) bool {
			return compareTitles(tasks[i].Title, tasks[j].Title, collator) < 0
		})
	default: // todo.SortCreatedAt: most recently created first.
		sort.SliceStable(tasks, func(i, j int) bool {
			return tasks[i].CreatedAt.After(tasks[j].CreatedAt)
		})
	}
}

func compareTitles(a, b string, collator *collate.Collator) int {
	if collator != nil {
		return collator.CompareString(a, b)
	}
	return strings.Compare(a, b)
}
