package mirror

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/text/collate"

	"github.com/KuwadaKouhei/todo-app/domain/todo"
	"github.com/KuwadaKouhei/todo-app/domain/user"
	"github.com/KuwadaKouhei/todo-app/modules/store"
)

// State is the subscription lifecycle state of the mirror.
type State string

const (
	// StateNoIdentity means nobody is signed in; the mirror is empty.
	StateNoIdentity State = "no_identity"
	// StateSubscribing means a subscription is open but the first snapshot
	// has not arrived yet.
	StateSubscribing State = "subscribing"
	// StateLive means snapshots are flowing.
	StateLive State = "live"
	// StateError means the subscription failed; the mirror stays in this
	// state until the next identity change restarts the cycle.
	StateError State = "error"
)

// ErrAuthRequired is returned when a mutation is attempted with no
// authenticated identity.
var ErrAuthRequired = errors.New("sign in required")

// TaskStore is the remote store surface the mirror depends on.
type TaskStore interface {
	Create(ctx context.Context, input todo.TaskInput, ownerID string) (string, error)
	Update(ctx context.Context, id string, patch todo.TaskPatch) error
	Delete(ctx context.Context, id string) error
	FetchAll(ctx context.Context, ownerID string) ([]todo.Task, error)
	Subscribe(ownerID string, onSnapshot func([]todo.Task)) (store.Unsubscribe, error)
}

// IdentitySession is the identity surface the mirror depends on.
type IdentitySession interface {
	Current() *user.Identity
	OnChange(fn func(*user.Identity)) func()
}

// Store is the task synchronization store: a live, authoritative local
// mirror of the signed-in user's remote task set, plus the view parameters
// and the derived-view computation.
//
// Writes are never reflected locally before the subscription confirms them:
// Add/Update/Remove call the remote store and rely on the next snapshot to
// update the mirror. That keeps the remote set the single source of truth
// at the cost of a round trip before a write becomes visible.
type Store struct {
	remote  TaskStore
	session IdentitySession

	mu          sync.Mutex
	tasks       []todo.Task
	filter      todo.Filter
	sortBy      todo.Sort
	searchQuery string
	isLoading   bool
	errMsg      string
	state       State
	unsubscribe store.Unsubscribe
	generation  uint64
	collator    *collate.Collator
	onChanged   func()
}

// NewStore creates a mirror bound to the given remote store and identity
// session. The collator may be nil (byte-wise title comparison).
func NewStore(remote TaskStore, session IdentitySession, collator *collate.Collator) *Store {
	return &Store{
		remote:   remote,
		session:  session,
		filter:   todo.FilterAll,
		sortBy:   todo.SortCreatedAt,
		state:    StateNoIdentity,
		collator: collator,
	}
}

// SetOnChanged registers a callback fired after every mirror replacement or
// view-parameter change. Set it before the mirror starts receiving
// identity changes; it is not synchronized against them.
func (s *Store) SetOnChanged(fn func()) {
	s.onChanged = fn
}

// OnIdentityChange tears down any existing subscription and, when an
// identity is present, opens a new one scoped to it. The old channel is
// closed before the new one opens, and each subscription carries a
// generation tag so a late snapshot from a superseded channel is dropped
// rather than applied.
func (s *Store) OnIdentityChange(identity *user.Identity) {
	s.mu.Lock()
	old := s.unsubscribe
	s.unsubscribe = nil
	s.generation++
	gen := s.generation

	if identity == nil {
		s.tasks = nil
		s.isLoading = false
		s.errMsg = ""
		s.state = StateNoIdentity
		s.mu.Unlock()
		if old != nil {
			old()
		}
		s.notifyChanged()
		return
	}

	s.isLoading = true
	s.errMsg = ""
	s.state = StateSubscribing
	s.mu.Unlock()

	// Close-before-open: the superseded channel must be shut before the
	// new one can deliver.
	if old != nil {
		old()
	}
	s.notifyChanged()

	ownerID := identity.ID
	unsub, err := s.remote.Subscribe(ownerID, func(snapshot []todo.Task) {
		s.applySnapshot(gen, snapshot)
	})
	if err != nil {
		s.mu.Lock()
		if gen == s.generation {
			s.isLoading = false
			s.errMsg = "Failed to subscribe to tasks"
			s.state = StateError
		}
		s.mu.Unlock()
		s.notifyChanged()
		return
	}

	s.mu.Lock()
	if gen != s.generation {
		// A newer identity change superseded this subscription while it
		// was opening.
		s.mu.Unlock()
		unsub()
		return
	}
	s.unsubscribe = unsub
	s.mu.Unlock()
}

// applySnapshot replaces the mirror with a full snapshot, unless the
// snapshot belongs to a superseded subscription.
func (s *Store) applySnapshot(gen uint64, snapshot []todo.Task) {
	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		return
	}
	s.tasks = make([]todo.Task, len(snapshot))
	copy(s.tasks, snapshot)
	s.isLoading = false
	s.state = StateLive
	s.mu.Unlock()
	s.notifyChanged()
}

// Add creates a task owned by the current identity. The mirror is not
// touched; the new task appears with the next snapshot.
func (s *Store) Add(ctx context.Context, input todo.TaskInput) error {
	identity := s.session.Current()
	if identity == nil {
		return ErrAuthRequired
	}

	s.setError("")
	if _, err := s.remote.Create(ctx, input, identity.ID); err != nil {
		s.setError("Failed to add task")
		return err
	}
	return nil
}

// Update patches a task in the remote store.
func (s *Store) Update(ctx context.Context, id string, patch todo.TaskPatch) error {
	s.setError("")
	if err := s.remote.Update(ctx, id, patch); err != nil {
		s.setError("Failed to update task")
		return err
	}
	return nil
}

// Remove deletes a task from the remote store.
func (s *Store) Remove(ctx context.Context, id string) error {
	s.setError("")
	if err := s.remote.Delete(ctx, id); err != nil {
		s.setError("Failed to delete task")
		return err
	}
	return nil
}

// Toggle flips the completed flag of the task with the given id. An id
// that is not in the mirror is stale relative to the last snapshot, so the
// call is a silent no-op.
func (s *Store) Toggle(ctx context.Context, id string) error {
	s.mu.Lock()
	var completed *bool
	for i := range s.tasks {
		if s.tasks[i].ID == id {
			flipped := !s.tasks[i].Completed
			completed = &flipped
			break
		}
	}
	s.mu.Unlock()

	if completed == nil {
		return nil
	}
	return s.Update(ctx, id, todo.TaskPatch{Completed: completed})
}

// SetFilter sets the status filter for the derived view.
func (s *Store) SetFilter(filter todo.Filter) {
	s.mu.Lock()
	s.filter = filter
	s.mu.Unlock()
	s.notifyChanged()
}

// SetSort sets the ordering of the derived view.
func (s *Store) SetSort(sortBy todo.Sort) {
	s.mu.Lock()
	s.sortBy = sortBy
	s.mu.Unlock()
	s.notifyChanged()
}

// SetSearchQuery sets the free-text search narrowing the derived view.
func (s *Store) SetSearchQuery(query string) {
	s.mu.Lock()
	s.searchQuery = query
	s.mu.Unlock()
	s.notifyChanged()
}

// View computes the derived view from the current mirror and parameters.
func (s *Store) View() []todo.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	return DeriveView(s.tasks, s.filter, s.sortBy, s.searchQuery, s.collator)
}

// Tasks returns a copy of the raw mirror in snapshot order.
func (s *Store) Tasks() []todo.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	tasks := make([]todo.Task, len(s.tasks))
	copy(tasks, s.tasks)
	return tasks
}

// Filter returns the current status filter.
func (s *Store) Filter() todo.Filter {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filter
}

// Sort returns the current sort option.
func (s *Store) Sort() todo.Sort {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sortBy
}

// SearchQuery returns the current search query.
func (s *Store) SearchQuery() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.searchQuery
}

// IsLoading reports whether the mirror is waiting for its first snapshot.
func (s *Store) IsLoading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isLoading
}

// Err returns the last recorded operation failure message, or "" when the
// previous operation succeeded.
func (s *Store) Err() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.errMsg
}

// LifecycleState returns the current subscription lifecycle state.
func (s *Store) LifecycleState() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Close tears down any open subscription.
func (s *Store) Close() {
	s.mu.Lock()
	old := s.unsubscribe
	s.unsubscribe = nil
	s.generation++
	s.mu.Unlock()
	if old != nil {
		old()
	}
}

func (s *Store) setError(msg string) {
	s.mu.Lock()
	s.errMsg = msg
	s.mu.Unlock()
	if msg != "" {
		s.notifyChanged()
	}
}

func (s *Store) notifyChanged() {
	if s.onChanged != nil {
		s.onChanged()
	}
}
