package relay

import (
	domain "github.com/example/room-relay/domain/presence"
)

// Event is an inbound event processed by the relay loop.
type Event interface {
	isEvent()
}

// Connect is raised once the transport has accepted a connection.
type Connect struct {
	ConnID string
}

// EnterRoom asks to join room under name, leaving the current room if any.
type EnterRoom struct {
	ConnID string
	Name   string
	Room   string
}

// SendMessage is a chat message for the sender's current room.
// Name is relayed as given.
type SendMessage struct {
	ConnID string
	Name   string
	Text   string
}

// SendActivity is a typing notice for the sender's current room.
type SendActivity struct {
	ConnID string
	Name   string
}

// Disconnect is raised when the transport has lost the connection.
type Disconnect struct {
	ConnID string
}

// roomsQuery and occupantsQuery read the room index on the loop so that
// they observe every event submitted before them.
type roomsQuery struct {
	reply chan []string
}

type occupantsQuery struct {
	room  string
	reply chan []domain.User
}

type statsQuery struct {
	reply chan Stats
}

func (Connect) isEvent()        {}
func (EnterRoom) isEvent()      {}
func (SendMessage) isEvent()    {}
func (SendActivity) isEvent()   {}
func (Disconnect) isEvent()     {}
func (roomsQuery) isEvent()     {}
func (occupantsQuery) isEvent() {}
func (statsQuery) isEvent()     {}
