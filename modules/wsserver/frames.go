package wsserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/example/room-relay/modules/relay"
)

// Inbound frame types.
const (
	TypeEnterRoom = "enterRoom"
	TypeMessage   = "message"
	TypeActivity  = "activity"
)

var (
	ErrMalformedFrame = errors.New("malformed frame")
	ErrUnknownType    = errors.New("unknown frame type")
	ErrInvalidField   = errors.New("invalid field")
)

// WebSocketMessage represents a frame received over WebSocket.
type WebSocketMessage struct {
	Type    string          `json:"type"` // "enterRoom", "message", "activity"
	Payload json.RawMessage `json:"payload,omitempty"`
}

// EnterRoomPayload is the payload for joining a room.
type EnterRoomPayload struct {
	Name string `json:"name"`
	Room string `json:"room"`
}

// MessagePayload is the payload for sending a chat message.
type MessagePayload struct {
	Name string `json:"name"`
	Text string `json:"text"`
}

// Limits bounds the fields accepted from clients, in runes.
type Limits struct {
	MaxName int
	MaxRoom int
	MaxText int
}

// Decode turns a raw frame from connection connID into a relay event.
func Decode(connID string, data []byte, limits Limits) (relay.Event, error) {
	var msg WebSocketMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}

	switch msg.Type {
	case TypeEnterRoom:
		var p EnterRoomPayload
		if err := unmarshalPayload(msg.Payload, &p); err != nil {
			return nil, err
		}
		name := strings.TrimSpace(p.Name)
		room := strings.TrimSpace(p.Room)
		if err := checkField("name", name, limits.MaxName, true); err != nil {
			return nil, err
		}
		if err := checkField("room", room, limits.MaxRoom, true); err != nil {
			return nil, err
		}
		return relay.EnterRoom{ConnID: connID, Name: name, Room: room}, nil

	case TypeMessage:
		var p MessagePayload
		if err := unmarshalPayload(msg.Payload, &p); err != nil {
			return nil, err
		}
		if err := checkField("name", p.Name, limits.MaxName, false); err != nil {
			return nil, err
		}
		if err := checkField("text", p.Text, limits.MaxText, false); err != nil {
			return nil, err
		}
		return relay.SendMessage{ConnID: connID, Name: p.Name, Text: p.Text}, nil

	case TypeActivity:
		var name string
		if err := unmarshalPayload(msg.Payload, &name); err != nil {
			return nil, err
		}
		if err := checkField("name", name, limits.MaxName, false); err != nil {
			return nil, err
		}
		return relay.SendActivity{ConnID: connID, Name: name}, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, msg.Type)
	}
}

func unmarshalPayload(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return fmt.Errorf("%w: missing payload", ErrMalformedFrame)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	return nil
}

// checkField enforces max (when positive) and, if required, non-emptiness.
func checkField(field, value string, max int, required bool) error {
	if required && value == "" {
		return fmt.Errorf("%w: %s is required", ErrInvalidField, field)
	}
	if max > 0 && utf8.RuneCountInString(value) > max {
		return fmt.Errorf("%w: %s exceeds %d characters", ErrInvalidField, field, max)
	}
	return nil
}
