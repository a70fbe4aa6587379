package relay

import (
	domain "github.com/example/room-relay/domain/presence"
)

// Service names registered by the relay module.
const (
	ServiceListRooms = "list-rooms"
	ServiceListUsers = "list-users"
)

// ListRoomsRequest is the request for the list-rooms service.
type ListRoomsRequest struct{}

// ListRoomsResponse is the response for the list-rooms service.
type ListRoomsResponse struct {
	Rooms []string `json:"rooms"`
}

// ListUsersRequest is the request for the list-users service.
type ListUsersRequest struct {
	Room string `json:"room"`
}

// ListUsersResponse is the response for the list-users service.
type ListUsersResponse struct {
	Room  string        `json:"room"`
	Users []domain.User `json:"users"`
}
