package mirror

import (
	"context"
	"errors"
	"testing"

	"github.com/KuwadaKouhei/todo-app/domain/todo"
	"github.com/KuwadaKouhei/todo-app/domain/user"
	"github.com/KuwadaKouhei/todo-app/modules/store"
)

// fakeRemote is an in-memory TaskStore. Snapshots are pushed by the test
// through push(); subscribe records the callback of the latest subscription.
type fakeRemote struct {
	tasks        map[string][]todo.Task
	subscribed   []string
	unsubscribed []string
	onSnapshot   func([]todo.Task)
	subscribeErr error
	updateErr    error
	createErr    error
	deleteErr    error
	updates      []todo.TaskPatch
	updatedIDs   []string
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{tasks: make(map[string][]todo.Task)}
}

func (f *fakeRemote) Create(_ context.Context, input todo.TaskInput, ownerID string) (string, error) {
	if f.createErr != nil {
		return "", f.createErr
	}
	id := "created"
	f.tasks[ownerID] = append(f.tasks[ownerID], todo.Task{ID: id, Title: input.Title, OwnerID: ownerID})
	return id, nil
}

func (f *fakeRemote) Update(_ context.Context, id string, patch todo.TaskPatch) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	f.updatedIDs = append(f.updatedIDs, id)
	f.updates = append(f.updates, patch)
	return nil
}

func (f *fakeRemote) Delete(_ context.Context, _ string) error {
	return f.deleteErr
}

func (f *fakeRemote) FetchAll(_ context.Context, ownerID string) ([]todo.Task, error) {
	return f.tasks[ownerID], nil
}

func (f *fakeRemote) Subscribe(ownerID string, onSnapshot func([]todo.Task)) (store.Unsubscribe, error) {
	if f.subscribeErr != nil {
		return nil, f.subscribeErr
	}
	f.subscribed = append(f.subscribed, ownerID)
	f.onSnapshot = onSnapshot
	onSnapshot(f.tasks[ownerID])
	return func() {
		f.unsubscribed = append(f.unsubscribed, ownerID)
	}, nil
}

// push delivers a snapshot on the most recent subscription.
func (f *fakeRemote) push(tasks []todo.Task) {
	f.onSnapshot(tasks)
}

// fakeSession is an IdentitySession with a settable identity.
type fakeSession struct {
	identity *user.Identity
}

func (f *fakeSession) Current() *user.Identity { return f.identity }

func (f *fakeSession) OnChange(func(*user.Identity)) func() { return func() {} }

func identity(id string) *user.Identity {
	return &user.Identity{ID: id, DisplayName: id}
}

func TestStore_InitialState(t *testing.T) {
	s := NewStore(newFakeRemote(), &fakeSession{}, nil)

	if s.LifecycleState() != StateNoIdentity {
		t.Errorf("expected state %q, got %q", StateNoIdentity, s.LifecycleState())
	}
	if s.IsLoading() {
		t.Error("expected loading to be false before any identity")
	}
	if len(s.View()) != 0 {
		t.Errorf("expected empty view, got %d tasks", len(s.View()))
	}
	if s.Filter() != todo.FilterAll || s.Sort() != todo.SortCreatedAt {
		t.Errorf("unexpected default view parameters: %v %v", s.Filter(), s.Sort())
	}
}

func TestStore_IdentityArrivesAndLeaves(t *testing.T) {
	remote := newFakeRemote()
	remote.tasks["u1"] = []todo.Task{{ID: "t1", Title: "Existing"}}
	session := &fakeSession{}
	s := NewStore(remote, session, nil)

	s.OnIdentityChange(identity("u1"))

	if s.LifecycleState() != StateLive {
		t.Errorf("expected state %q after first snapshot, got %q", StateLive, s.LifecycleState())
	}
	if s.IsLoading() {
		t.Error("expected loading to clear after the first snapshot")
	}
	tasks := s.Tasks()
	if len(tasks) != 1 || tasks[0].ID != "t1" {
		t.Errorf("expected mirror [t1], got %+v", tasks)
	}

	// Sign-out empties the mirror and closes the channel.
	s.OnIdentityChange(nil)

	if s.LifecycleState() != StateNoIdentity {
		t.Errorf("expected state %q after sign-out, got %q", StateNoIdentity, s.LifecycleState())
	}
	if len(s.Tasks()) != 0 {
		t.Errorf("expected empty mirror after sign-out, got %d tasks", len(s.Tasks()))
	}
	if len(remote.unsubscribed) != 1 {
		t.Errorf("expected 1 unsubscribe, got %d", len(remote.unsubscribed))
	}
}

func TestStore_IdentitySwitchClosesBeforeOpening(t *testing.T) {
	remote := newFakeRemote()
	session := &fakeSession{}
	s := NewStore(remote, session, nil)

	s.OnIdentityChange(identity("u1"))
	s.OnIdentityChange(identity("u2"))

	if len(remote.unsubscribed) != 1 || remote.unsubscribed[0] != "u1" {
		t.Fatalf("expected u1's channel closed, got %v", remote.unsubscribed)
	}
	if len(remote.subscribed) != 2 || remote.subscribed[1] != "u2" {
		t.Fatalf("expected a fresh subscription for u2, got %v", remote.subscribed)
	}
}

func TestStore_StaleSnapshotIsDropped(t *testing.T) {
	remote := newFakeRemote()
	session := &fakeSession{}
	s := NewStore(remote, session, nil)

	s.OnIdentityChange(identity("u1"))
	staleDeliver := remote.onSnapshot

	s.OnIdentityChange(identity("u2"))

	// A snapshot straggling in from u1's superseded channel must not
	// replace u2's mirror.
	staleDeliver([]todo.Task{{ID: "stale", Title: "Stale"}})

	if len(s.Tasks()) != 0 {
		t.Errorf("stale snapshot was applied: %+v", s.Tasks())
	}

	remote.push([]todo.Task{{ID: "fresh", Title: "Fresh"}})
	tasks := s.Tasks()
	if len(tasks) != 1 || tasks[0].ID != "fresh" {
		t.Errorf("expected mirror [fresh], got %+v", tasks)
	}
}

func TestStore_SubscribeFailure(t *testing.T) {
	remote := newFakeRemote()
	remote.subscribeErr = errors.New("backend down")
	s := NewStore(remote, &fakeSession{}, nil)

	s.OnIdentityChange(identity("u1"))

	if s.LifecycleState() != StateError {
		t.Errorf("expected state %q, got %q", StateError, s.LifecycleState())
	}
	if s.IsLoading() {
		t.Error("expected loading to clear on subscribe failure")
	}
	if s.Err() == "" {
		t.Error("expected an error message on subscribe failure")
	}

	// The next identity change restarts the cycle.
	remote.subscribeErr = nil
	s.OnIdentityChange(identity("u1"))
	if s.LifecycleState() != StateLive {
		t.Errorf("expected recovery to %q, got %q", StateLive, s.LifecycleState())
	}
	if s.Err() != "" {
		t.Errorf("expected error to clear on recovery, got %q", s.Err())
	}
}

func TestStore_AddRequiresIdentity(t *testing.T) {
	remote := newFakeRemote()
	session := &fakeSession{}
	s := NewStore(remote, session, nil)

	err := s.Add(context.Background(), todo.TaskInput{Title: "Orphan"})
	if err != ErrAuthRequired {
		t.Errorf("expected ErrAuthRequired, got %v", err)
	}

	session.identity = identity("u1")
	if err := s.Add(context.Background(), todo.TaskInput{Title: "Owned"}); err != nil {
		t.Errorf("Add() with identity error = %v", err)
	}
}

func TestStore_WriteFailuresSetMessages(t *testing.T) {
	remote := newFakeRemote()
	session := &fakeSession{identity: identity("u1")}
	s := NewStore(remote, session, nil)
	ctx := context.Background()

	tests := []struct {
		name    string
		arrange func()
		act     func() error
		wantMsg string
	}{
		{
			name:    "add failure",
			arrange: func() { remote.createErr = errors.New("boom") },
			act:     func() error { return s.Add(ctx, todo.TaskInput{Title: "x"}) },
			wantMsg: "Failed to add task",
		},
		{
			name:    "update failure",
			arrange: func() { remote.updateErr = errors.New("boom") },
			act: func() error {
				title := "y"
				return s.Update(ctx, "t1", todo.TaskPatch{Title: &title})
			},
			wantMsg: "Failed to update task",
		},
		{
			name:    "delete failure",
			arrange: func() { remote.deleteErr = errors.New("boom") },
			act:     func() error { return s.Remove(ctx, "t1") },
			wantMsg: "Failed to delete task",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.arrange()
			if err := tt.act(); err == nil {
				t.Fatal("expected an error")
			}
			if s.Err() != tt.wantMsg {
				t.Errorf("expected message %q, got %q", tt.wantMsg, s.Err())
			}
		})
	}

	// A subsequent successful operation clears the message.
	remote.createErr = nil
	if err := s.Add(ctx, todo.TaskInput{Title: "ok"}); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if s.Err() != "" {
		t.Errorf("expected error message to clear, got %q", s.Err())
	}
}

func TestStore_Toggle(t *testing.T) {
	remote := newFakeRemote()
	session := &fakeSession{identity: identity("u1")}
	s := NewStore(remote, session, nil)
	ctx := context.Background()

	s.OnIdentityChange(identity("u1"))
	remote.push([]todo.Task{
		{ID: "t1", Title: "Open", Completed: false},
		{ID: "t2", Title: "Done", Completed: true},
	})

	t.Run("flips based on mirror state", func(t *testing.T) {
		if err := s.Toggle(ctx, "t1"); err != nil {
			t.Fatalf("Toggle() error = %v", err)
		}
		if err := s.Toggle(ctx, "t2"); err != nil {
			t.Fatalf("Toggle() error = %v", err)
		}

		if len(remote.updates) != 2 {
			t.Fatalf("expected 2 remote updates, got %d", len(remote.updates))
		}
		if remote.updates[0].Completed == nil || *remote.updates[0].Completed != true {
			t.Errorf("expected t1 toggled to completed, got %+v", remote.updates[0])
		}
		if remote.updates[1].Completed == nil || *remote.updates[1].Completed != false {
			t.Errorf("expected t2 toggled to open, got %+v", remote.updates[1])
		}
	})

	t.Run("stale id is a silent no-op", func(t *testing.T) {
		before := len(remote.updates)
		if err := s.Toggle(ctx, "vanished"); err != nil {
			t.Fatalf("Toggle() on stale id error = %v", err)
		}
		if len(remote.updates) != before {
			t.Error("expected no remote update for a stale id")
		}
	})
}

func TestStore_ViewParameterChangesNotify(t *testing.T) {
	remote := newFakeRemote()
	s := NewStore(remote, &fakeSession{}, nil)

	notified := 0
	s.SetOnChanged(func() { notified++ })

	s.SetFilter(todo.FilterActive)
	s.SetSort(todo.SortPriority)
	s.SetSearchQuery("milk")

	if notified != 3 {
		t.Errorf("expected 3 change notifications, got %d", notified)
	}
	if s.Filter() != todo.FilterActive || s.Sort() != todo.SortPriority || s.SearchQuery() != "milk" {
		t.Errorf("view parameters not applied: %v %v %q", s.Filter(), s.Sort(), s.SearchQuery())
	}
}

func TestStore_ViewReflectsParameters(t *testing.T) {
	remote := newFakeRemote()
	s := NewStore(remote, &fakeSession{}, nil)

	s.OnIdentityChange(identity("u1"))
	remote.push([]todo.Task{
		{ID: "t1", Title: "Buy milk", Completed: true},
		{ID: "t2", Title: "Buy bread", Completed: false},
		{ID: "t3", Title: "Call mom", Completed: false},
	})

	s.SetFilter(todo.FilterActive)
	s.SetSearchQuery("buy")

	view := s.View()
	if len(view) != 1 || view[0].ID != "t2" {
		t.Errorf("expected view [t2], got %+v", view)
	}

	// The raw mirror is unaffected by view parameters.
	if len(s.Tasks()) != 3 {
		t.Errorf("expected mirror to keep 3 tasks, got %d", len(s.Tasks()))
	}
}

func TestStore_Close(t *testing.T) {
	remote := newFakeRemote()
	s := NewStore(remote, &fakeSession{}, nil)

	s.OnIdentityChange(identity("u1"))
	deliver := remote.onSnapshot
	s.Close()

	if len(remote.unsubscribed) != 1 {
		t.Errorf("expected the open channel to be closed, got %d", len(remote.unsubscribed))
	}

	// A snapshot arriving after Close is dropped.
	deliver([]todo.Task{{ID: "late"}})
	if len(s.Tasks()) != 0 {
		t.Errorf("expected no tasks after Close, got %+v", s.Tasks())
	}
}
