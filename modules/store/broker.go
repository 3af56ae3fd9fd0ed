package store

import (
	"log"
	"sync"

	"github.com/KuwadaKouhei/todo-app/domain/todo"
)

// Unsubscribe permanently closes a snapshot channel. Calling it more than
// once is a no-op. After it returns, no further snapshot from that channel
// is delivered, even one that was already being fanned out.
type Unsubscribe func()

// snapshotBroker fans whole-state snapshots out to subscribers, keyed by the
// owner whose task set they watch. Every fan-out carries a per-owner version
// stamped before its backing load, and each subscription remembers the newest
// version it has seen: a slow load that raced a later write arrives with a
// lower stamp and is dropped, so subscribers never move backwards in recency.
type snapshotBroker struct {
	mu       sync.RWMutex
	subs     map[string]map[uint64]*subscription // ownerID -> subID -> sub
	versions map[string]uint64                   // ownerID -> latest snapshot version
	nextID   uint64
	load     func(ownerID string) ([]todo.Task, error)
}

// subscription is a single open snapshot channel. The per-subscription mutex
// makes delivery and close mutually exclusive: once closed wins, deliver is
// a no-op forever. delivered tracks the newest version handed to fn so
// out-of-order fan-outs are dropped under the same mutex.
type subscription struct {
	id      uint64
	ownerID string
	fn      func([]todo.Task)

	mu        sync.Mutex
	closed    bool
	delivered uint64
}

func (s *subscription) deliver(version uint64, tasks []todo.Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || version <= s.delivered {
		return
	}
	s.delivered = version
	s.fn(tasks)
}

func (s *subscription) close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}

func newSnapshotBroker(load func(ownerID string) ([]todo.Task, error)) *snapshotBroker {
	return &snapshotBroker{
		subs:     make(map[string]map[uint64]*subscription),
		versions: make(map[string]uint64),
		load:     load,
	}
}

// subscribe opens a snapshot channel for ownerID. The callback receives the
// complete current task set once immediately and again after every change to
// the owner's set. Snapshots are full authoritative replacements.
//
// Registration bumps the owner's version before the initial load: that load
// observes at least everything any lower-stamped fan-out observed, so if a
// concurrent write delivers a fresher snapshot first, the initial one is
// dropped rather than rolling the subscriber back.
func (b *snapshotBroker) subscribe(ownerID string, fn func([]todo.Task)) (Unsubscribe, error) {
	b.mu.Lock()
	b.nextID++
	sub := &subscription{id: b.nextID, ownerID: ownerID, fn: fn}
	if b.subs[ownerID] == nil {
		b.subs[ownerID] = make(map[uint64]*subscription)
	}
	b.subs[ownerID][sub.id] = sub
	b.versions[ownerID]++
	version := b.versions[ownerID]
	b.mu.Unlock()

	initial, err := b.load(ownerID)
	if err != nil {
		b.remove(sub)
		return nil, err
	}
	sub.deliver(version, initial)

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			sub.close()
			b.remove(sub)
		})
	}
	return unsubscribe, nil
}

// notify loads a fresh snapshot for ownerID and fans it out to every open
// subscription for that owner. Owners with no subscribers cost nothing.
//
// The version is stamped before the load. Two concurrent notify calls may
// observe the database in either order, but the one stamped lower can only
// have seen an equal or older state, so deliver drops it when it loses the
// race.
func (b *snapshotBroker) notify(ownerID string) {
	b.mu.Lock()
	owner := b.subs[ownerID]
	if len(owner) == 0 {
		b.mu.Unlock()
		return
	}
	b.versions[ownerID]++
	version := b.versions[ownerID]
	targets := make([]*subscription, 0, len(owner))
	for _, sub := range owner {
		targets = append(targets, sub)
	}
	b.mu.Unlock()

	tasks, err := b.load(ownerID)
	if err != nil {
		log.Printf("[store] Failed to load snapshot for owner %s: %v", ownerID, err)
		return
	}
	for _, sub := range targets {
		sub.deliver(version, tasks)
	}
}

func (b *snapshotBroker) remove(sub *subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if owner, ok := b.subs[sub.ownerID]; ok {
		delete(owner, sub.id)
		if len(owner) == 0 {
			delete(b.subs, sub.ownerID)
			delete(b.versions, sub.ownerID)
		}
	}
}

// subscriberCount returns the number of open subscriptions across all owners.
func (b *snapshotBroker) subscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	n := 0
	for _, owner := range b.subs {
		n += len(owner)
	}
	return n
}
