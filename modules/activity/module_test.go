package activity

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/KuwadaKouhei/todo-app/events"
)

func TestActivityModule_RecordsEvents(t *testing.T) {
	m := NewModule()
	ctx := context.Background()
	now := time.Now()

	if err := m.handleSignedIn(ctx, events.UserSignedInEvent{
		UserID:      "u1",
		DisplayName: "Alice",
		SignedInAt:  now,
	}, nil); err != nil {
		t.Fatalf("handleSignedIn() error = %v", err)
	}
	if err := m.handleTodoCreated(ctx, events.TodoCreatedEvent{
		TaskID:    "t1",
		OwnerID:   "u1",
		Title:     "Buy milk",
		CreatedAt: now,
	}, nil); err != nil {
		t.Fatalf("handleTodoCreated() error = %v", err)
	}
	if err := m.handleTodoDeleted(ctx, events.TodoDeletedEvent{
		TaskID:    "t1",
		OwnerID:   "u1",
		DeletedAt: now,
	}, nil); err != nil {
		t.Fatalf("handleTodoDeleted() error = %v", err)
	}

	entries := m.Recent()
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	if entries[0].Type != "signed_in" || entries[1].Type != "todo_created" || entries[2].Type != "todo_deleted" {
		t.Errorf("unexpected entry order: %s %s %s", entries[0].Type, entries[1].Type, entries[2].Type)
	}
	if entries[1].Message != `Task "Buy milk" created` {
		t.Errorf("unexpected creation message: %q", entries[1].Message)
	}
}

func TestActivityModule_BoundedLog(t *testing.T) {
	m := NewModule()
	ctx := context.Background()

	for i := 0; i < maxEntries+50; i++ {
		if err := m.handleTodoUpdated(ctx, events.TodoUpdatedEvent{
			TaskID:    fmt.Sprintf("t%d", i),
			OwnerID:   "u1",
			UpdatedAt: time.Now(),
		}, nil); err != nil {
			t.Fatalf("handleTodoUpdated() error = %v", err)
		}
	}

	entries := m.Recent()
	if len(entries) != maxEntries {
		t.Fatalf("expected log capped at %d entries, got %d", maxEntries, len(entries))
	}
	// The oldest entries are evicted first.
	if entries[0].TaskID != "t50" {
		t.Errorf("expected oldest surviving entry t50, got %s", entries[0].TaskID)
	}

	// Eviction must release the evicted entries, not just hide them behind
	// a re-slice of an ever-growing backing array.
	if c := cap(m.entries); c > 2*maxEntries {
		t.Errorf("backing array holds %d slots for %d entries", c, maxEntries)
	}
}

func TestActivityModule_RecentReturnsCopy(t *testing.T) {
	m := NewModule()
	if err := m.handleSignedOut(context.Background(), events.UserSignedOutEvent{
		UserID:      "u1",
		SignedOutAt: time.Now(),
	}, nil); err != nil {
		t.Fatalf("handleSignedOut() error = %v", err)
	}

	entries := m.Recent()
	entries[0].Message = "tampered"

	if m.Recent()[0].Message == "tampered" {
		t.Error("Recent() must return a copy, not the backing slice")
	}
}
