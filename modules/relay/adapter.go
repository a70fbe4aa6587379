package relay

import (
	"context"
	"encoding/json"
	"fmt"

	domain "github.com/example/room-relay/domain/presence"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
)

// RelayPort is the read-only view of the relay offered to other modules.
type RelayPort interface {
	ListRooms(ctx context.Context) ([]string, error)
	ListUsers(ctx context.Context, room string) ([]domain.User, error)
}

// RelayAdapter implements RelayPort over the relay module's services.
type RelayAdapter struct {
	container mono.ServiceContainer
}

// NewRelayAdapter creates a new RelayAdapter.
func NewRelayAdapter(container mono.ServiceContainer) RelayPort {
	if container == nil {
		panic("relay: ServiceContainer is nil")
	}
	return &RelayAdapter{container: container}
}

// ListRooms returns the active rooms.
func (a *RelayAdapter) ListRooms(ctx context.Context) ([]string, error) {
	req := ListRoomsRequest{}
	var resp ListRoomsResponse
	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		ServiceListRooms,
		json.Marshal,
		json.Unmarshal,
		&req,
		&resp,
	); err != nil {
		return nil, fmt.Errorf("failed to list rooms: %w", err)
	}
	return resp.Rooms, nil
}

// ListUsers returns the occupants of room.
func (a *RelayAdapter) ListUsers(ctx context.Context, room string) ([]domain.User, error) {
	req := ListUsersRequest{Room: room}
	var resp ListUsersResponse
	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		ServiceListUsers,
		json.Marshal,
		json.Unmarshal,
		&req,
		&resp,
	); err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return resp.Users, nil
}
