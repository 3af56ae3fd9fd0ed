package auth

import (
	"sync"

	domain "github.com/KuwadaKouhei/todo-app/domain/user"
)

// Session is the process-wide identity session. It holds the currently
// authenticated identity (or nil) and a single change-notification stream
// that lives from module start to module stop. All mutation goes through
// the auth service; consumers only observe.
type Session struct {
	// notifyMu serializes transitions: a state swap and its notifications
	// form one unit, so subscribers hear changes in the order they took
	// effect even when sign-in and sign-out race.
	notifyMu sync.Mutex

	mu      sync.RWMutex
	current *domain.Identity
	loading bool
	subs    map[uint64]func(*domain.Identity)
	nextID  uint64
}

// NewSession creates a session that is loading until the first identity
// determination completes.
func NewSession() *Session {
	return &Session{
		loading: true,
		subs:    make(map[uint64]func(*domain.Identity)),
	}
}

// Current returns the authenticated identity, or nil when signed out.
func (s *Session) Current() *domain.Identity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Loading reports whether the first identity determination is still pending.
func (s *Session) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

// OnChange registers fn on the identity change stream. fn fires on every
// identity transition, including the initial determination. The returned
// function deregisters; calling it more than once is a no-op.
func (s *Session) OnChange(fn func(*domain.Identity)) func() {
	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.subs[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
		})
	}
}

// set replaces the current identity and notifies subscribers. The first
// call also completes the initial determination. Callbacks run outside the
// state lock so subscribers may call back into the session; notifyMu keeps
// concurrent transitions from delivering their notifications out of order.
func (s *Session) set(identity *domain.Identity) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	s.current = identity
	s.loading = false
	fns := make([]func(*domain.Identity), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(identity)
	}
}
