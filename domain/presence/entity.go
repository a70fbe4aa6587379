package presence

// User is the presence record of a connection that has joined a room.
type User struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Room string `json:"room"`
}

// ChatMessage is a chat or system message as delivered to clients.
// It is built at send time and never stored.
type ChatMessage struct {
	Name string `json:"name"`
	Text string `json:"text"`
	Time string `json:"time"`
}

// RoomList is the payload of a roomList event.
type RoomList struct {
	Rooms []string `json:"rooms"`
}

// UserList is the payload of a userList event.
type UserList struct {
	Users []User `json:"users"`
}
