package store

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/KuwadaKouhei/todo-app/domain/todo"
)

var (
	// ErrNotFound is returned when a task document does not exist.
	ErrNotFound = errors.New("task not found")
	// ErrWrite is the base error for rejected writes.
	ErrWrite = errors.New("write rejected")
)

// taskRepository handles task document persistence using GORM.
type taskRepository struct {
	db *gorm.DB
}

func newTaskRepository(db *gorm.DB) *taskRepository {
	return &taskRepository{db: db}
}

// create inserts a new task document.
func (r *taskRepository) create(doc *taskDocument) error {
	if err := r.db.Create(doc).Error; err != nil {
		return fmt.Errorf("%w: %v", ErrWrite, err)
	}
	return nil
}

// findByID retrieves a single document.
func (r *taskRepository) findByID(id string) (*taskDocument, error) {
	var doc taskDocument
	if err := r.db.First(&doc, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to find task: %w", err)
	}
	return &doc, nil
}

// applyPatch updates only the columns the patch supplies and always
// refreshes updated_at. A due date explicitly set to nil clears the column;
// an omitted due date leaves it untouched.
func (r *taskRepository) applyPatch(id string, patch todo.TaskPatch, now time.Time) error {
	updates := map[string]any{"updated_at": now}
	if patch.Title != nil {
		updates["title"] = *patch.Title
	}
	if patch.Description != nil {
		updates["description"] = *patch.Description
	}
	if patch.Priority != nil {
		updates["priority"] = string(*patch.Priority)
	}
	if patch.Completed != nil {
		updates["completed"] = *patch.Completed
	}
	if patch.DueDateSet {
		if patch.DueDate == nil {
			updates["due_date"] = nil
		} else {
			updates["due_date"] = *patch.DueDate
		}
	}

	result := r.db.Model(&taskDocument{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("%w: %v", ErrWrite, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// delete removes a task document.
func (r *taskRepository) delete(id string) error {
	result := r.db.Delete(&taskDocument{}, "id = ?", id)
	if result.Error != nil {
		return fmt.Errorf("%w: %v", ErrWrite, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// findByOwner returns every document owned by ownerID, most recently
// created first. The id tie-break keeps the order deterministic for
// documents created within the same timestamp granularity.
func (r *taskRepository) findByOwner(ownerID string) ([]todo.Task, error) {
	var docs []taskDocument
	err := r.db.
		Where("owner_id = ?", ownerID).
		Order("created_at DESC").
		Order("id DESC").
		Find(&docs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}

	tasks := make([]todo.Task, 0, len(docs))
	for i := range docs {
		tasks = append(tasks, docs[i].toDomain())
	}
	return tasks, nil
}
