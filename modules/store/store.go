package store

import (
	"context"
	"log"
	"time"

	"github.com/go-monolith/mono"
	"golang.org/x/sync/singleflight"

	"github.com/KuwadaKouhei/todo-app/domain/todo"
	"github.com/KuwadaKouhei/todo-app/events"
)

// Store is the remote task store: document CRUD plus a per-owner snapshot
// subscription. Consumers treat it as a black box; every read it hands out
// is a fresh copy and every snapshot is a full replacement of the owner's
// task set.
type Store struct {
	repo   *taskRepository
	cache  *snapshotCache
	broker *snapshotBroker
	bus    mono.EventBus
	newID  func() string
	group  singleflight.Group
}

func newStore(repo *taskRepository, cache *snapshotCache, newID func() string) *Store {
	s := &Store{
		repo:  repo,
		cache: cache,
		newID: newID,
	}
	s.broker = newSnapshotBroker(func(ownerID string) ([]todo.Task, error) {
		return s.snapshot(context.Background(), ownerID)
	})
	return s
}

// setEventBus attaches the event bus used to publish change events.
func (s *Store) setEventBus(bus mono.EventBus) {
	s.bus = bus
}

// Create persists a new task for ownerID and returns its store-assigned id.
// The document starts with Completed=false and both timestamps set to now.
func (s *Store) Create(ctx context.Context, input todo.TaskInput, ownerID string) (string, error) {
	if err := input.Normalize(); err != nil {
		return "", err
	}

	now := time.Now()
	doc := newDocument(s.newID(), input, ownerID, now)
	if err := s.repo.create(doc); err != nil {
		return "", err
	}

	s.afterWrite(ctx, ownerID)
	if s.bus != nil {
		event := events.TodoCreatedEvent{
			TaskID:    doc.ID,
			OwnerID:   ownerID,
			Title:     doc.Title,
			CreatedAt: now,
		}
		if err := events.TodoCreatedV1.Publish(s.bus, event, nil); err != nil {
			log.Printf("[store] Warning: failed to publish TodoCreated event for task %s: %v", doc.ID, err)
		}
	}
	return doc.ID, nil
}

// Update applies only the supplied patch fields to the task and refreshes
// its updated_at. Returns ErrNotFound when the id does not exist.
func (s *Store) Update(ctx context.Context, id string, patch todo.TaskPatch) error {
	doc, err := s.repo.findByID(id)
	if err != nil {
		return err
	}

	now := time.Now()
	if err := s.repo.applyPatch(id, patch, now); err != nil {
		return err
	}

	s.afterWrite(ctx, doc.OwnerID)
	if s.bus != nil {
		event := events.TodoUpdatedEvent{
			TaskID:    id,
			OwnerID:   doc.OwnerID,
			UpdatedAt: now,
		}
		if err := events.TodoUpdatedV1.Publish(s.bus, event, nil); err != nil {
			log.Printf("[store] Warning: failed to publish TodoUpdated event for task %s: %v", id, err)
		}
	}
	return nil
}

// Delete removes the task. Returns ErrNotFound when the id does not exist.
func (s *Store) Delete(ctx context.Context, id string) error {
	doc, err := s.repo.findByID(id)
	if err != nil {
		return err
	}

	if err := s.repo.delete(id); err != nil {
		return err
	}

	s.afterWrite(ctx, doc.OwnerID)
	if s.bus != nil {
		event := events.TodoDeletedEvent{
			TaskID:    id,
			OwnerID:   doc.OwnerID,
			DeletedAt: time.Now(),
		}
		if err := events.TodoDeletedV1.Publish(s.bus, event, nil); err != nil {
			log.Printf("[store] Warning: failed to publish TodoDeleted event for task %s: %v", id, err)
		}
	}
	return nil
}

// FetchAll returns every task owned by ownerID, most recently created first.
func (s *Store) FetchAll(ctx context.Context, ownerID string) ([]todo.Task, error) {
	return s.snapshot(ctx, ownerID)
}

// Subscribe opens a snapshot channel for ownerID. The callback fires once
// immediately with the current set and again after every change to it. The
// returned handle closes the channel; calling it more than once is a no-op.
func (s *Store) Subscribe(ownerID string, onSnapshot func([]todo.Task)) (Unsubscribe, error) {
	return s.broker.subscribe(ownerID, onSnapshot)
}

// snapshot loads the owner's full task set through the cache-aside path.
// Concurrent misses for the same owner collapse into a single query.
func (s *Store) snapshot(ctx context.Context, ownerID string) ([]todo.Task, error) {
	cached, found, err := s.cache.get(ctx, ownerID)
	if err != nil {
		log.Printf("[store] Cache error for owner %s: %v", ownerID, err)
		// Fall through to the database on cache errors.
	}
	if found {
		return cached, nil
	}

	val, err, _ := s.group.Do(ownerID, func() (any, error) {
		tasks, err := s.repo.findByOwner(ownerID)
		if err != nil {
			return nil, err
		}
		if err := s.cache.set(ctx, ownerID, tasks); err != nil {
			log.Printf("[store] Warning: failed to cache snapshot for owner %s: %v", ownerID, err)
		}
		return tasks, nil
	})
	if err != nil {
		return nil, err
	}
	return val.([]todo.Task), nil
}

// afterWrite invalidates the owner's cached snapshot and fans the fresh one
// out to subscribers. Invalidation happens first so the fan-out rereads.
func (s *Store) afterWrite(ctx context.Context, ownerID string) {
	if err := s.cache.invalidate(ctx, ownerID); err != nil {
		log.Printf("[store] Warning: failed to invalidate cache for owner %s: %v", ownerID, err)
	}
	s.broker.notify(ownerID)
}
