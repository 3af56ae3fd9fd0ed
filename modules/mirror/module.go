package mirror

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/go-monolith/mono"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/KuwadaKouhei/todo-app/events"
	"github.com/KuwadaKouhei/todo-app/modules/auth"
	storemod "github.com/KuwadaKouhei/todo-app/modules/store"
)

// MirrorModule owns the task synchronization store and ties its lifecycle
// to the identity session: every identity change tears down the old remote
// subscription and opens a new one.
type MirrorModule struct {
	storeModule *storemod.StoreModule
	authModule  *auth.AuthModule
	store       *Store
	offIdentity func()
	eventBus    mono.EventBus
	lang        string
}

// Compile-time interface checks.
var _ mono.Module = (*MirrorModule)(nil)
var _ mono.EventEmitterModule = (*MirrorModule)(nil)
var _ mono.HealthCheckableModule = (*MirrorModule)(nil)

// NewModule creates a new MirrorModule. TODO_COLLATION_LANG selects the
// collation language for title sorting (default "en").
func NewModule(storeModule *storemod.StoreModule, authModule *auth.AuthModule) *MirrorModule {
	lang := os.Getenv("TODO_COLLATION_LANG")
	if lang == "" {
		lang = "en"
	}
	return &MirrorModule{
		storeModule: storeModule,
		authModule:  authModule,
		lang:        lang,
	}
}

// Name returns the module name.
func (m *MirrorModule) Name() string {
	return "mirror"
}

// SetEventBus receives the application event bus.
func (m *MirrorModule) SetEventBus(bus mono.EventBus) {
	m.eventBus = bus
}

// EmitEvents declares the events this module publishes.
func (m *MirrorModule) EmitEvents() []mono.BaseEventDefinition {
	return []mono.BaseEventDefinition{
		events.ViewUpdatedV1.ToBase(),
	}
}

// Start builds the mirror store and registers it on the identity change
// stream. The store and auth modules are started first, so their surfaces
// are available here.
func (m *MirrorModule) Start(_ context.Context) error {
	remote := m.storeModule.Store()
	if remote == nil {
		return fmt.Errorf("store module not started")
	}
	session := m.authModule.Session()

	tag, err := language.Parse(m.lang)
	if err != nil {
		return fmt.Errorf("invalid collation language %q: %w", m.lang, err)
	}

	m.store = NewStore(remote, session, collate.New(tag))
	m.store.SetOnChanged(m.publishView)
	m.offIdentity = session.OnChange(m.store.OnIdentityChange)

	// The session may already have completed its first determination.
	m.store.OnIdentityChange(session.Current())

	log.Printf("[mirror] Module started (collation: %s)", m.lang)
	return nil
}

// Stop deregisters from the identity stream and closes the subscription.
func (m *MirrorModule) Stop(_ context.Context) error {
	if m.offIdentity != nil {
		m.offIdentity()
	}
	if m.store != nil {
		m.store.Close()
	}
	log.Println("[mirror] Module stopped")
	return nil
}

// Health returns the health status of the module.
func (m *MirrorModule) Health(_ context.Context) mono.HealthStatus {
	healthy := m.store != nil
	details := map[string]any{}
	if healthy {
		details["state"] = string(m.store.LifecycleState())
		details["tasks"] = len(m.store.Tasks())
	}
	message := "operational"
	if !healthy {
		message = "not started"
	}
	return mono.HealthStatus{
		Healthy: healthy,
		Message: message,
		Details: details,
	}
}

// Store returns the synchronization store. Valid only after Start.
func (m *MirrorModule) Store() *Store {
	return m.store
}

// publishView emits the freshly derived view after every mirror or
// parameter change so push consumers can fan it out.
func (m *MirrorModule) publishView() {
	if m.eventBus == nil {
		return
	}
	event := events.ViewUpdatedEvent{
		Tasks:     m.store.View(),
		IsLoading: m.store.IsLoading(),
		Error:     m.store.Err(),
		State:     string(m.store.LifecycleState()),
		UpdatedAt: time.Now(),
	}
	if err := events.ViewUpdatedV1.Publish(m.eventBus, event, nil); err != nil {
		log.Printf("[mirror] Warning: failed to publish ViewUpdated event: %v", err)
	}
}
