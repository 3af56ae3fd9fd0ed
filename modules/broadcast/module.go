package broadcast

import (
	"context"
	"fmt"
	"log"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"

	"github.com/KuwadaKouhei/todo-app/events"
)

// BroadcastModule consumes derived-view updates and pushes them to every
// connected WebSocket client.
type BroadcastModule struct {
	hub       *Hub
	cancelHub context.CancelFunc
}

// Compile-time interface checks.
var _ mono.Module = (*BroadcastModule)(nil)
var _ mono.EventConsumerModule = (*BroadcastModule)(nil)
var _ mono.HealthCheckableModule = (*BroadcastModule)(nil)

// NewModule creates a new BroadcastModule.
func NewModule() *BroadcastModule {
	return &BroadcastModule{
		hub: NewHub(),
	}
}

// Name returns the module name.
func (m *BroadcastModule) Name() string {
	return "broadcast"
}

// Start runs the hub.
func (m *BroadcastModule) Start(_ context.Context) error {
	ctx, cancel := context.WithCancel(context.Background())
	m.cancelHub = cancel
	go m.hub.Run(ctx)
	log.Println("[broadcast] Module started - WebSocket hub running")
	return nil
}

// Stop shuts the hub down and waits for it to drain.
func (m *BroadcastModule) Stop(_ context.Context) error {
	clientCount := m.hub.ClientCount()
	if m.cancelHub != nil {
		m.cancelHub()
		m.hub.Wait()
	}
	log.Printf("[broadcast] Module stopped - %d clients were connected", clientCount)
	return nil
}

// Health returns the health status.
func (m *BroadcastModule) Health(_ context.Context) mono.HealthStatus {
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{
			"connected_clients": m.hub.ClientCount(),
		},
	}
}

// RegisterEventConsumers registers event handlers.
func (m *BroadcastModule) RegisterEventConsumers(registry mono.EventRegistry) error {
	if err := helper.RegisterTypedEventConsumer(
		registry, events.ViewUpdatedV1, m.handleViewUpdated, m,
	); err != nil {
		return fmt.Errorf("failed to register ViewUpdated consumer: %w", err)
	}
	log.Printf("[broadcast] Registered event consumers: ViewUpdated")
	return nil
}

func (m *BroadcastModule) handleViewUpdated(_ context.Context, event events.ViewUpdatedEvent, _ *mono.Msg) error {
	m.hub.Broadcast("view", event)
	return nil
}

// GetHub returns the hub for the WebSocket endpoint.
func (m *BroadcastModule) GetHub() *Hub {
	return m.hub
}
