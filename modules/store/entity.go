package store

import (
	"database/sql"
	"time"

	"github.com/KuwadaKouhei/todo-app/domain/todo"
)

// taskDocument is the store-native shape of a task. It is distinct from the
// domain entity so the wire representation (nullable columns, date storage)
// can evolve without leaking into consumers.
type taskDocument struct {
	ID          string         `gorm:"primarykey;size:21"`
	Title       string         `gorm:"size:200;not null"`
	Description sql.NullString `gorm:"size:2000"`
	Completed   bool           `gorm:"not null;default:false"`
	Priority    string         `gorm:"size:10;not null"`
	DueDate     sql.NullTime
	CreatedAt   time.Time `gorm:"index;not null"`
	UpdatedAt   time.Time `gorm:"not null"`
	OwnerID     string    `gorm:"size:36;index;not null"`
}

// TableName returns the table name for the task document model.
func (taskDocument) TableName() string {
	return "todos"
}

// toDomain converts a stored document into the canonical Task. An absent
// description or due date stays absent; it is never collapsed to a zero value.
func (d *taskDocument) toDomain() todo.Task {
	t := todo.Task{
		ID:        d.ID,
		Title:     d.Title,
		Completed: d.Completed,
		Priority:  todo.Priority(d.Priority),
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
		OwnerID:   d.OwnerID,
	}
	if d.Description.Valid {
		desc := d.Description.String
		t.Description = &desc
	}
	if d.DueDate.Valid {
		due := d.DueDate.Time
		t.DueDate = &due
	}
	return t
}

// newDocument builds a document for a validated input. The caller assigns
// the id; Completed is always false and both timestamps equal now.
func newDocument(id string, input todo.TaskInput, ownerID string, now time.Time) *taskDocument {
	doc := &taskDocument{
		ID:        id,
		Title:     input.Title,
		Completed: false,
		Priority:  string(input.Priority),
		CreatedAt: now,
		UpdatedAt: now,
		OwnerID:   ownerID,
	}
	if input.Description != nil {
		doc.Description = sql.NullString{String: *input.Description, Valid: true}
	}
	if input.DueDate != nil {
		doc.DueDate = sql.NullTime{Time: *input.DueDate, Valid: true}
	}
	return doc
}
