package relay

// Mode selects how a Target is resolved into receivers.
type Mode int

const (
	// ModeOne addresses a single connection.
	ModeOne Mode = iota
	// ModeRoom addresses every occupant of a room, minus Except when set.
	ModeRoom
	// ModeAll addresses every connected client.
	ModeAll
)

func (m Mode) String() string {
	switch m {
	case ModeOne:
		return "one"
	case ModeRoom:
		return "room"
	case ModeAll:
		return "all"
	default:
		return "unknown"
	}
}

// Target is the audience of an outbound event.
type Target struct {
	Mode   Mode
	ConnID string // ModeOne
	Room   string // ModeRoom
	Except string // ModeRoom, optional
}

// ToOne addresses the connection id.
func ToOne(id string) Target {
	return Target{Mode: ModeOne, ConnID: id}
}

// ToRoom addresses all occupants of room.
func ToRoom(room string) Target {
	return Target{Mode: ModeRoom, Room: room}
}

// ToRoomExcept addresses all occupants of room except the connection id.
func ToRoomExcept(room, id string) Target {
	return Target{Mode: ModeRoom, Room: room, Except: id}
}

// ToAll addresses every connected client.
func ToAll() Target {
	return Target{Mode: ModeAll}
}

// Outbound event names.
const (
	EventMessage  = "message"
	EventRoomList = "roomList"
	EventUserList = "userList"
	EventActivity = "activity"
)

// Envelope is one outbound event together with its audience.
//
// Payload is one of presence.ChatMessage, presence.RoomList,
// presence.UserList or a string (activity).
type Envelope struct {
	Target  Target
	Event   string
	Payload any
}

// Transport delivers envelopes and keeps the room groups used for ModeRoom
// addressing. Implementations must not block: Deliver is fire-and-forget.
//
// Open is called on the relay loop when a connection is accepted, before its
// welcome. A transport must not deliver to a connection it has not opened.
type Transport interface {
	Open(connID string)
	Deliver(env Envelope)
	Join(connID, room string)
	Leave(connID, room string)
}
