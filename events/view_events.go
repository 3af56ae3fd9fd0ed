package events

import (
	"time"

	"github.com/go-monolith/mono/pkg/helper"

	"github.com/KuwadaKouhei/todo-app/domain/todo"
)

// ViewUpdatedEvent carries the freshly derived task view after the mirror or
// the view parameters change. Consumers treat it as a full replacement of
// whatever view they held before, never as a diff.
type ViewUpdatedEvent struct {
	Tasks     []todo.Task `json:"tasks"`
	IsLoading bool        `json:"is_loading"`
	Error     string      `json:"error,omitempty"`
	State     string      `json:"state"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// ViewUpdatedV1 is the typed event definition for derived-view updates.
// Subject: events.mirror.v1.view-updated
var ViewUpdatedV1 = helper.EventDefinition[ViewUpdatedEvent](
	"mirror", "ViewUpdated", "v1",
)
