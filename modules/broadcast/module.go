package broadcast

import (
	"context"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/types"
)

// BroadcastModule owns the hub that delivers relay envelopes to WebSocket clients.
type BroadcastModule struct {
	hub    *Hub
	logger types.Logger
}

// Compile-time interface checks.
var _ mono.Module = (*BroadcastModule)(nil)
var _ mono.HealthCheckableModule = (*BroadcastModule)(nil)

// NewModule creates a new BroadcastModule.
func NewModule(buffer int, logger types.Logger) *BroadcastModule {
	return &BroadcastModule{
		hub:    NewHub(buffer, logger),
		logger: logger,
	}
}

// Name returns the module name.
func (m *BroadcastModule) Name() string {
	return "broadcast"
}

// Start is a no-op; delivery happens on the caller's goroutine.
func (m *BroadcastModule) Start(_ context.Context) error {
	m.logger.Info("Broadcast hub ready", "buffer", m.hub.buffer)
	return nil
}

// Stop closes every client queue so write pumps exit.
func (m *BroadcastModule) Stop(_ context.Context) error {
	n := m.hub.CloseAll()
	m.logger.Info("Broadcast hub stopped", "clients", n, "dropped_frames", m.hub.Dropped())
	return nil
}

// Health returns the health status.
func (m *BroadcastModule) Health(_ context.Context) mono.HealthStatus {
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{
			"connected_clients": m.hub.ClientCount(),
			"rooms":             m.hub.RoomCount(),
			"dropped_frames":    m.hub.Dropped(),
		},
	}
}

// GetHub returns the hub for the relay and the WebSocket server to share.
func (m *BroadcastModule) GetHub() *Hub {
	return m.hub
}
