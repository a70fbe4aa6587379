package broadcast

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/go-monolith/mono/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/example/room-relay/domain/presence"
	"github.com/example/room-relay/modules/relay"
)

// mockLogger implements types.Logger for testing
type mockLogger struct{}

func (m *mockLogger) Debug(_ string, _ ...any) {}
func (m *mockLogger) Info(_ string, _ ...any)  {}
func (m *mockLogger) Warn(_ string, _ ...any)  {}
func (m *mockLogger) Error(_ string, _ ...any) {}
func (m *mockLogger) With(_ ...any) types.Logger {
	return m
}
func (m *mockLogger) WithModule(_ string) types.Logger {
	return m
}
func (m *mockLogger) WithError(_ error) types.Logger {
	return m
}

// register adds an opened client, as the relay does on Connect.
func register(h *Hub, id string) *Client {
	c := h.Register(id)
	h.Open(id)
	return c
}

func drain(c *Client) []Frame {
	var frames []Frame
	for {
		select {
		case data, ok := <-c.Send:
			if !ok {
				return frames
			}
			var f Frame
			if err := json.Unmarshal(data, &f); err == nil {
				frames = append(frames, f)
			}
		default:
			return frames
		}
	}
}

func TestHub_DeliverToOne(t *testing.T) {
	h := NewHub(8, &mockLogger{})
	c1 := register(h, "c1")
	c2 := register(h, "c2")

	h.Deliver(relay.Envelope{Target: relay.ToOne("c1"), Event: relay.EventActivity, Payload: "Alice"})

	frames := drain(c1)
	require.Len(t, frames, 1)
	assert.Equal(t, "activity", frames[0].Type)
	assert.Equal(t, "Alice", frames[0].Payload)
	assert.Empty(t, drain(c2))
}

func TestHub_DeliverToRoomHonoursExcept(t *testing.T) {
	h := NewHub(8, &mockLogger{})
	c1 := register(h, "c1")
	c2 := register(h, "c2")
	c3 := register(h, "c3")
	h.Join("c1", "A")
	h.Join("c2", "A")
	h.Join("c3", "B")

	h.Deliver(relay.Envelope{Target: relay.ToRoomExcept("A", "c1"), Event: relay.EventActivity, Payload: "Alice"})

	assert.Empty(t, drain(c1))
	assert.Len(t, drain(c2), 1)
	assert.Empty(t, drain(c3))

	h.Deliver(relay.Envelope{Target: relay.ToRoom("A"), Event: relay.EventActivity, Payload: "Alice"})
	assert.Len(t, drain(c1), 1)
	assert.Len(t, drain(c2), 1)
	assert.Empty(t, drain(c3))
}

func TestHub_DeliverToAll(t *testing.T) {
	h := NewHub(8, &mockLogger{})
	c1 := register(h, "c1")
	c2 := register(h, "c2")
	h.Join("c1", "A")

	h.Deliver(relay.Envelope{
		Target:  relay.ToAll(),
		Event:   relay.EventRoomList,
		Payload: domain.RoomList{Rooms: []string{"A"}},
	})

	for _, c := range []*Client{c1, c2} {
		frames := drain(c)
		require.Len(t, frames, 1)
		assert.Equal(t, "roomList", frames[0].Type)
		assert.Equal(t, map[string]any{"rooms": []any{"A"}}, frames[0].Payload)
	}
}

func TestHub_FrameEncoding(t *testing.T) {
	h := NewHub(8, &mockLogger{})
	c1 := register(h, "c1")

	h.Deliver(relay.Envelope{
		Target:  relay.ToOne("c1"),
		Event:   relay.EventMessage,
		Payload: domain.ChatMessage{Name: "Admin", Text: "hi", Time: "10:11:12"},
	})

	data := <-c1.Send
	assert.JSONEq(t, `{"type":"message","payload":{"name":"Admin","text":"hi","time":"10:11:12"}}`, string(data))
}

func TestHub_UnopenedClientReceivesNothing(t *testing.T) {
	h := NewHub(8, &mockLogger{})
	pending := h.Register("pending")
	c1 := register(h, "c1")

	h.Deliver(relay.Envelope{Target: relay.ToAll(), Event: relay.EventRoomList, Payload: domain.RoomList{Rooms: []string{"A"}}})
	h.Deliver(relay.Envelope{Target: relay.ToOne("pending"), Event: relay.EventActivity, Payload: "x"})

	assert.Empty(t, drain(pending))
	assert.Len(t, drain(c1), 1)

	h.Open("pending")
	h.Deliver(relay.Envelope{Target: relay.ToOne("pending"), Event: relay.EventActivity, Payload: "x"})
	assert.Len(t, drain(pending), 1)
}

func TestHub_UnknownModeIsIgnored(t *testing.T) {
	h := NewHub(8, &mockLogger{})
	c1 := register(h, "c1")

	h.Deliver(relay.Envelope{Target: relay.Target{Mode: relay.Mode(42)}, Event: relay.EventActivity, Payload: "x"})
	assert.Empty(t, drain(c1))
	assert.Equal(t, "unknown", relay.Mode(42).String())
}

func TestHub_JoinIgnoresUnknownClient(t *testing.T) {
	h := NewHub(8, &mockLogger{})
	h.Join("ghost", "A")
	assert.Equal(t, 0, h.RoomCount())
}

func TestHub_LeaveRemovesEmptyGroup(t *testing.T) {
	h := NewHub(8, &mockLogger{})
	register(h, "c1")
	register(h, "c2")
	h.Join("c1", "A")
	h.Join("c2", "A")

	h.Leave("c1", "A")
	assert.Equal(t, 1, h.RoomClientCount("A"))

	h.Leave("c2", "A")
	assert.Equal(t, 0, h.RoomCount())

	h.Leave("c2", "A")
	assert.Equal(t, 0, h.RoomCount())
}

func TestHub_UnregisterClosesQueue(t *testing.T) {
	h := NewHub(8, &mockLogger{})
	c1 := register(h, "c1")
	h.Join("c1", "A")

	h.Unregister("c1")

	_, ok := <-c1.Send
	assert.False(t, ok)
	assert.Equal(t, 0, h.ClientCount())
	assert.Equal(t, 0, h.RoomCount())

	// Delivery to a removed client is a no-op, as is a second unregister.
	h.Deliver(relay.Envelope{Target: relay.ToOne("c1"), Event: relay.EventActivity, Payload: "x"})
	h.Unregister("c1")
}

func TestHub_FullQueueDropsFrame(t *testing.T) {
	h := NewHub(2, &mockLogger{})
	c1 := register(h, "c1")

	for i := 0; i < 5; i++ {
		h.Deliver(relay.Envelope{Target: relay.ToOne("c1"), Event: relay.EventActivity, Payload: "Alice"})
	}

	assert.Len(t, drain(c1), 2)
	assert.Equal(t, 3, h.Dropped())
}

func TestHub_UnencodablePayloadIsSkipped(t *testing.T) {
	h := NewHub(8, &mockLogger{})
	c1 := register(h, "c1")

	h.Deliver(relay.Envelope{Target: relay.ToOne("c1"), Event: relay.EventActivity, Payload: make(chan int)})
	assert.Empty(t, drain(c1))
}

func TestHub_CloseAll(t *testing.T) {
	h := NewHub(8, &mockLogger{})
	c1 := register(h, "c1")
	c2 := register(h, "c2")
	h.Join("c1", "A")

	assert.Equal(t, 2, h.CloseAll())

	for _, c := range []*Client{c1, c2} {
		_, ok := <-c.Send
		assert.False(t, ok)
	}
	assert.Equal(t, 0, h.ClientCount())
	assert.Equal(t, 0, h.RoomCount())
}

func TestBroadcastModule_Lifecycle(t *testing.T) {
	m := NewModule(4, &mockLogger{})
	assert.Equal(t, "broadcast", m.Name())
	require.NoError(t, m.Start(context.Background()))

	m.GetHub().Register("c1")
	status := m.Health(context.Background())
	assert.True(t, status.Healthy)
	assert.Equal(t, 1, status.Details["connected_clients"])

	require.NoError(t, m.Stop(context.Background()))
	assert.Equal(t, 0, m.GetHub().ClientCount())
}

func TestHub_EndToEndWithRelay(t *testing.T) {
	h := NewHub(16, &mockLogger{})
	r := relay.New(h, relay.Options{WelcomeText: "Welcome"})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go r.Run(ctx)

	c1 := h.Register("c1")
	c2 := h.Register("c2")
	require.NoError(t, r.Submit(ctx, relay.Connect{ConnID: "c1"}))
	require.NoError(t, r.Submit(ctx, relay.Connect{ConnID: "c2"}))
	require.NoError(t, r.Submit(ctx, relay.EnterRoom{ConnID: "c1", Name: "Alice", Room: "A"}))
	require.NoError(t, r.Submit(ctx, relay.EnterRoom{ConnID: "c2", Name: "Bob", Room: "A"}))
	require.NoError(t, r.Submit(ctx, relay.SendMessage{ConnID: "c2", Name: "Bob", Text: "hello"}))

	// The query is answered after all earlier events, so both queues are settled.
	users, err := r.Occupants(ctx, "A")
	require.NoError(t, err)
	assert.Len(t, users, 2)

	var texts []string
	for _, f := range drain(c1) {
		if f.Type == relay.EventMessage {
			texts = append(texts, f.Payload.(map[string]any)["text"].(string))
		}
	}
	assert.Equal(t, []string{
		"Welcome",
		"You have joined the A chat room",
		"Bob has joined the room",
		"hello",
	}, texts)
	assert.NotEmpty(t, drain(c2))
}
