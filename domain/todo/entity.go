package todo

import (
	"errors"
	"strings"
	"time"
)

// Priority is the urgency level of a task.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Rank returns the sort rank of a priority. Lower ranks sort first,
// so high-priority tasks come before medium and low ones.
func (p Priority) Rank() int {
	switch p {
	case PriorityHigh:
		return 0
	case PriorityMedium:
		return 1
	case PriorityLow:
		return 2
	}
	return 3
}

// Valid reports whether p is one of the known priority levels.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// Filter selects tasks by completion status.
type Filter string

const (
	FilterAll       Filter = "all"
	FilterActive    Filter = "active"
	FilterCompleted Filter = "completed"
)

// Valid reports whether f is a known filter option.
func (f Filter) Valid() bool {
	switch f {
	case FilterAll, FilterActive, FilterCompleted:
		return true
	}
	return false
}

// Sort selects the ordering of the derived view.
type Sort string

const (
	SortCreatedAt Sort = "createdAt"
	SortDueDate   Sort = "dueDate"
	SortPriority  Sort = "priority"
	SortTitle     Sort = "title"
)

// Valid reports whether s is a known sort option.
func (s Sort) Valid() bool {
	switch s {
	case SortCreatedAt, SortDueDate, SortPriority, SortTitle:
		return true
	}
	return false
}

// Task is the canonical task entity. Instances are created and timestamped
// by the remote store; local copies are ephemeral mirror entries and are
// never mutated in place.
type Task struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description *string    `json:"description,omitempty"`
	Completed   bool       `json:"completed"`
	Priority    Priority   `json:"priority"`
	DueDate     *time.Time `json:"dueDate,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	OwnerID     string     `json:"ownerId"`
}

// TaskInput is the author-time payload for creating a task. The store fills
// in ID, Completed=false, timestamps, and the owner.
type TaskInput struct {
	Title       string     `json:"title"`
	Description *string    `json:"description,omitempty"`
	Priority    Priority   `json:"priority"`
	DueDate     *time.Time `json:"dueDate,omitempty"`
}

// ErrEmptyTitle is returned when a task input has no title.
var ErrEmptyTitle = errors.New("task title must not be empty")

// Normalize validates the input and applies authoring defaults: the title is
// trimmed and must be non-empty, and a zero priority becomes medium.
func (in *TaskInput) Normalize() error {
	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" {
		return ErrEmptyTitle
	}
	if in.Priority == "" {
		in.Priority = PriorityMedium
	}
	if !in.Priority.Valid() {
		return errors.New("unknown priority: " + string(in.Priority))
	}
	return nil
}

// TaskPatch is a partial update. Nil fields are left untouched. The due date
// is special: DueDateSet distinguishes "clear the deadline" (DueDateSet true,
// DueDate nil) from "leave it alone" (DueDateSet false).
type TaskPatch struct {
	Title       *string    `json:"title,omitempty"`
	Description *string    `json:"description,omitempty"`
	Priority    *Priority  `json:"priority,omitempty"`
	Completed   *bool      `json:"completed,omitempty"`
	DueDate     *time.Time `json:"dueDate,omitempty"`
	DueDateSet  bool       `json:"-"`
}

// Empty reports whether the patch changes nothing.
func (p *TaskPatch) Empty() bool {
	return p.Title == nil && p.Description == nil && p.Priority == nil &&
		p.Completed == nil && !p.DueDateSet
}
