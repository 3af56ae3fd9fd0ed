package events

import (
	"time"

	"github.com/go-monolith/mono/pkg/helper"
)

// TodoCreatedEvent is emitted after a task document is persisted.
type TodoCreatedEvent struct {
	TaskID    string    `json:"task_id"`
	OwnerID   string    `json:"owner_id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
}

// TodoCreatedV1 is the typed event definition for task creation.
// Subject: events.store.v1.todo-created
var TodoCreatedV1 = helper.EventDefinition[TodoCreatedEvent](
	"store", "TodoCreated", "v1",
)

// TodoUpdatedEvent is emitted after a task document is patched.
type TodoUpdatedEvent struct {
	TaskID    string    `json:"task_id"`
	OwnerID   string    `json:"owner_id"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TodoUpdatedV1 is the typed event definition for task updates.
// Subject: events.store.v1.todo-updated
var TodoUpdatedV1 = helper.EventDefinition[TodoUpdatedEvent](
	"store", "TodoUpdated", "v1",
)

// TodoDeletedEvent is emitted after a task document is removed.
type TodoDeletedEvent struct {
	TaskID    string    `json:"task_id"`
	OwnerID   string    `json:"owner_id"`
	DeletedAt time.Time `json:"deleted_at"`
}

// TodoDeletedV1 is the typed event definition for task deletion.
// Subject: events.store.v1.todo-deleted
var TodoDeletedV1 = helper.EventDefinition[TodoDeletedEvent](
	"store", "TodoDeleted", "v1",
)
