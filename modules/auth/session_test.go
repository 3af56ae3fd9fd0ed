package auth

import (
	"sync"
	"testing"

	domain "github.com/KuwadaKouhei/todo-app/domain/user"
)

func TestSession_InitialDetermination(t *testing.T) {
	s := NewSession()

	if !s.Loading() {
		t.Error("expected session to be loading before the first determination")
	}
	if s.Current() != nil {
		t.Error("expected no identity before the first determination")
	}

	s.set(nil)

	if s.Loading() {
		t.Error("expected loading to clear after the first determination")
	}
	if s.Current() != nil {
		t.Error("expected signed-out state after a nil determination")
	}
}

func TestSession_OnChange(t *testing.T) {
	s := NewSession()

	var seen []*domain.Identity
	off := s.OnChange(func(identity *domain.Identity) {
		seen = append(seen, identity)
	})

	alice := &domain.Identity{ID: "u1", DisplayName: "Alice"}
	s.set(alice)
	s.set(nil)

	if len(seen) != 2 {
		t.Fatalf("expected 2 notifications, got %d", len(seen))
	}
	if seen[0] != alice {
		t.Errorf("expected first notification with alice, got %+v", seen[0])
	}
	if seen[1] != nil {
		t.Errorf("expected second notification with nil, got %+v", seen[1])
	}

	// After deregistering, the stream goes quiet. Deregistering twice is
	// harmless.
	off()
	off()
	s.set(alice)
	if len(seen) != 2 {
		t.Errorf("expected no notifications after deregister, got %d", len(seen))
	}
}

func TestSession_MultipleSubscribers(t *testing.T) {
	s := NewSession()

	first, second := 0, 0
	offFirst := s.OnChange(func(*domain.Identity) { first++ })
	s.OnChange(func(*domain.Identity) { second++ })

	s.set(&domain.Identity{ID: "u1"})
	offFirst()
	s.set(nil)

	if first != 1 {
		t.Errorf("expected first subscriber to see 1 change, got %d", first)
	}
	if second != 2 {
		t.Errorf("expected second subscriber to see 2 changes, got %d", second)
	}
}

func TestSession_ConcurrentTransitionsNotifyInOrder(t *testing.T) {
	s := NewSession()

	var mu sync.Mutex
	var last *domain.Identity
	s.OnChange(func(identity *domain.Identity) {
		mu.Lock()
		last = identity
		mu.Unlock()
	})

	// Racing sign-ins and sign-outs: whichever transition lands last must
	// also be the last one subscribers hear about, or a consumer ends up
	// tracking an identity the session no longer holds.
	alice := &domain.Identity{ID: "u1", DisplayName: "Alice"}
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			s.set(alice)
		}()
		go func() {
			defer wg.Done()
			s.set(nil)
		}()
	}
	wg.Wait()

	mu.Lock()
	lastSeen := last
	mu.Unlock()
	if got := s.Current(); lastSeen != got {
		t.Errorf("last notification delivered %+v, but session ended on %+v", lastSeen, got)
	}
}

func TestSession_SubscriberMayReadSession(t *testing.T) {
	s := NewSession()

	var observed *domain.Identity
	s.OnChange(func(*domain.Identity) {
		// Callbacks run outside the session lock, so reading back is safe.
		observed = s.Current()
	})

	alice := &domain.Identity{ID: "u1"}
	s.set(alice)

	if observed != alice {
		t.Errorf("expected callback to observe the new identity, got %+v", observed)
	}
}
