package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
	"github.com/go-monolith/mono/pkg/types"
)

const healthTimeout = 2 * time.Second

// Module runs the relay loop and exposes read-only presence services.
type Module struct {
	relay    *Relay
	cancel   context.CancelFunc
	logger   types.Logger
	started  atomic.Bool
	queueCap int
}

// Compile-time interface checks
var (
	_ mono.Module                = (*Module)(nil)
	_ mono.ServiceProviderModule = (*Module)(nil)
	_ mono.HealthCheckableModule = (*Module)(nil)
)

// NewModule creates a relay module delivering through transport.
func NewModule(transport Transport, opts Options, logger types.Logger) *Module {
	r := New(transport, opts)
	return &Module{
		relay:    r,
		logger:   logger,
		queueCap: cap(r.events),
	}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "relay"
}

// Relay returns the relay driven by this module.
func (m *Module) Relay() *Relay {
	return m.relay
}

// RegisterServices registers the list-rooms and list-users services.
func (m *Module) RegisterServices(container mono.ServiceContainer) error {
	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceListRooms, json.Unmarshal, json.Marshal, m.listRooms,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceListRooms, err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceListUsers, json.Unmarshal, json.Marshal, m.listUsers,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceListUsers, err)
	}

	m.logger.Info("Registered relay services", "services", ServiceListRooms+", "+ServiceListUsers)
	return nil
}

func (m *Module) listRooms(ctx context.Context, _ ListRoomsRequest, _ *mono.Msg) (ListRoomsResponse, error) {
	rooms, err := m.relay.Rooms(ctx)
	if err != nil {
		return ListRoomsResponse{}, err
	}
	return ListRoomsResponse{Rooms: rooms}, nil
}

func (m *Module) listUsers(ctx context.Context, req ListUsersRequest, _ *mono.Msg) (ListUsersResponse, error) {
	if req.Room == "" {
		return ListUsersResponse{}, fmt.Errorf("room is required")
	}
	users, err := m.relay.Occupants(ctx, req.Room)
	if err != nil {
		return ListUsersResponse{}, err
	}
	return ListUsersResponse{Room: req.Room, Users: users}, nil
}

// Start launches the relay loop.
func (m *Module) Start(_ context.Context) error {
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	go m.relay.Run(ctx)
	m.started.Store(true)
	m.logger.Info("Relay started", "queue", m.queueCap)
	return nil
}

// Stop halts the relay loop and waits for it to return.
func (m *Module) Stop(_ context.Context) error {
	if m.cancel != nil {
		m.cancel()
		m.relay.Wait()
	}
	m.started.Store(false)
	m.logger.Info("Relay stopped")
	return nil
}

// Health reports the queue depth and presence counts.
func (m *Module) Health(ctx context.Context) mono.HealthStatus {
	details := map[string]any{
		"queued_events": len(m.relay.events),
		"queue_size":    m.queueCap,
	}
	if !m.started.Load() {
		return mono.HealthStatus{Healthy: false, Message: "not running", Details: details}
	}

	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()
	stats, err := m.relay.Stats(ctx)
	if err != nil {
		return mono.HealthStatus{Healthy: false, Message: err.Error(), Details: details}
	}
	details["connected"] = stats.Connected
	details["in_room"] = stats.InRoom
	details["rooms"] = stats.Rooms
	return mono.HealthStatus{Healthy: true, Message: "operational", Details: details}
}
