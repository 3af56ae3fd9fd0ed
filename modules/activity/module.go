package activity

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"

	"github.com/KuwadaKouhei/todo-app/events"
)

// maxEntries bounds the in-memory activity log.
const maxEntries = 200

// Entry is one logged activity.
type Entry struct {
	Type      string    `json:"type"`
	TaskID    string    `json:"task_id,omitempty"`
	UserID    string    `json:"user_id"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// ActivityModule keeps a bounded log of store and session activity by
// consuming their domain events.
type ActivityModule struct {
	entries []Entry
	mu      sync.RWMutex
}

// Compile-time interface checks.
var _ mono.Module = (*ActivityModule)(nil)
var _ mono.EventConsumerModule = (*ActivityModule)(nil)

// NewModule creates a new ActivityModule.
func NewModule() *ActivityModule {
	return &ActivityModule{
		entries: make([]Entry, 0, maxEntries),
	}
}

// Name returns the module name.
func (m *ActivityModule) Name() string {
	return "activity"
}

// RegisterEventConsumers registers event handlers.
func (m *ActivityModule) RegisterEventConsumers(registry mono.EventRegistry) error {
	if err := helper.RegisterTypedEventConsumer(registry, events.TodoCreatedV1, m.handleTodoCreated, m); err != nil {
		return fmt.Errorf("failed to register TodoCreated consumer: %w", err)
	}
	if err := helper.RegisterTypedEventConsumer(registry, events.TodoUpdatedV1, m.handleTodoUpdated, m); err != nil {
		return fmt.Errorf("failed to register TodoUpdated consumer: %w", err)
	}
	if err := helper.RegisterTypedEventConsumer(registry, events.TodoDeletedV1, m.handleTodoDeleted, m); err != nil {
		return fmt.Errorf("failed to register TodoDeleted consumer: %w", err)
	}
	if err := helper.RegisterTypedEventConsumer(registry, events.UserSignedInV1, m.handleSignedIn, m); err != nil {
		return fmt.Errorf("failed to register UserSignedIn consumer: %w", err)
	}
	if err := helper.RegisterTypedEventConsumer(registry, events.UserSignedOutV1, m.handleSignedOut, m); err != nil {
		return fmt.Errorf("failed to register UserSignedOut consumer: %w", err)
	}

	log.Printf("[activity] Registered event consumers: TodoCreated, TodoUpdated, TodoDeleted, UserSignedIn, UserSignedOut")
	return nil
}

func (m *ActivityModule) handleTodoCreated(_ context.Context, event events.TodoCreatedEvent, _ *mono.Msg) error {
	m.append(Entry{
		Type:      "todo_created",
		TaskID:    event.TaskID,
		UserID:    event.OwnerID,
		Message:   fmt.Sprintf("Task %q created", event.Title),
		Timestamp: event.CreatedAt,
	})
	return nil
}

func (m *ActivityModule) handleTodoUpdated(_ context.Context, event events.TodoUpdatedEvent, _ *mono.Msg) error {
	m.append(Entry{
		Type:      "todo_updated",
		TaskID:    event.TaskID,
		UserID:    event.OwnerID,
		Message:   fmt.Sprintf("Task %s updated", event.TaskID),
		Timestamp: event.UpdatedAt,
	})
	return nil
}

func (m *ActivityModule) handleTodoDeleted(_ context.Context, event events.TodoDeletedEvent, _ *mono.Msg) error {
	m.append(Entry{
		Type:      "todo_deleted",
		TaskID:    event.TaskID,
		UserID:    event.OwnerID,
		Message:   fmt.Sprintf("Task %s deleted", event.TaskID),
		Timestamp: event.DeletedAt,
	})
	return nil
}

func (m *ActivityModule) handleSignedIn(_ context.Context, event events.UserSignedInEvent, _ *mono.Msg) error {
	m.append(Entry{
		Type:      "signed_in",
		UserID:    event.UserID,
		Message:   fmt.Sprintf("%s signed in", event.DisplayName),
		Timestamp: event.SignedInAt,
	})
	return nil
}

func (m *ActivityModule) handleSignedOut(_ context.Context, event events.UserSignedOutEvent, _ *mono.Msg) error {
	m.append(Entry{
		Type:      "signed_out",
		UserID:    event.UserID,
		Message:   "User signed out",
		Timestamp: event.SignedOutAt,
	})
	return nil
}

func (m *ActivityModule) append(entry Entry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, entry)
	if len(m.entries) > maxEntries {
		// Re-slicing in place would pin the ever-growing backing array, so
		// copy the survivors into a fresh one.
		kept := make([]Entry, maxEntries)
		copy(kept, m.entries[len(m.entries)-maxEntries:])
		m.entries = kept
	}
}

// Recent returns the logged activity, oldest first.
func (m *ActivityModule) Recent() []Entry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]Entry, len(m.entries))
	copy(result, m.entries)
	return result
}

// Start marks the module ready.
func (m *ActivityModule) Start(_ context.Context) error {
	log.Println("[activity] Module started - listening for store and session events")
	return nil
}

// Stop marks the module stopped.
func (m *ActivityModule) Stop(_ context.Context) error {
	log.Println("[activity] Module stopped")
	return nil
}
