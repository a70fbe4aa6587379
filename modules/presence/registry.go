package presence

import (
	domain "github.com/example/room-relay/domain/presence"
)

// Registry is the in-memory mapping of connection identity to presence record.
//
// A Registry is not safe for concurrent use. It is owned by a single writer
// (the relay event loop) which serialises every mutation and every read.
type Registry struct {
	users []domain.User  // insertion order
	rooms map[string]int // room -> occupant count
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		rooms: make(map[string]int),
	}
}

// Upsert replaces any record held for id with a fresh one and returns it.
func (r *Registry) Upsert(id, name, room string) domain.User {
	r.Remove(id)

	user := domain.User{ID: id, Name: name, Room: room}
	r.users = append(r.users, user)
	r.rooms[room]++
	return user
}

// Remove deletes the record for id. The boolean reports whether one existed.
func (r *Registry) Remove(id string) (domain.User, bool) {
	i := r.indexOf(id)
	if i < 0 {
		return domain.User{}, false
	}

	user := r.users[i]
	r.users = append(r.users[:i], r.users[i+1:]...)

	r.rooms[user.Room]--
	if r.rooms[user.Room] <= 0 {
		delete(r.rooms, user.Room)
	}
	return user, true
}

// Lookup returns the record for id.
func (r *Registry) Lookup(id string) (domain.User, bool) {
	i := r.indexOf(id)
	if i < 0 {
		return domain.User{}, false
	}
	return r.users[i], true
}

// OccupantsOf returns the records whose room is room, in registry order.
// The result is never nil.
func (r *Registry) OccupantsOf(room string) []domain.User {
	result := make([]domain.User, 0, r.rooms[room])
	if r.rooms[room] == 0 {
		return result
	}
	for _, user := range r.users {
		if user.Room == room {
			result = append(result, user)
		}
	}
	return result
}

// ActiveRooms returns every room with at least one occupant, in order of
// first appearance in the registry. The result is never nil.
func (r *Registry) ActiveRooms() []string {
	result := make([]string, 0, len(r.rooms))
	seen := make(map[string]bool, len(r.rooms))
	for _, user := range r.users {
		if seen[user.Room] {
			continue
		}
		seen[user.Room] = true
		result = append(result, user.Room)
	}
	return result
}

// IsActive reports whether room has at least one occupant.
func (r *Registry) IsActive(room string) bool {
	return r.rooms[room] > 0
}

// Len returns the number of records.
func (r *Registry) Len() int {
	return len(r.users)
}

// RoomCount returns the number of active rooms.
func (r *Registry) RoomCount() int {
	return len(r.rooms)
}

func (r *Registry) indexOf(id string) int {
	for i := range r.users {
		if r.users[i].ID == id {
			return i
		}
	}
	return -1
}
