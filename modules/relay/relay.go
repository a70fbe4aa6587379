package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	domain "github.com/example/room-relay/domain/presence"
	"github.com/example/room-relay/modules/presence"
)

// ErrStopped is returned by Submit and the queries once Run has been told
// to stop. An event whose Submit returned nil is always handled.
var ErrStopped = errors.New("relay stopped")

const (
	defaultAdminName = "Admin"
	defaultQueueSize = 256
)

// State is the lifecycle position of one connection.
type State int

const (
	// StateGone covers connections that disconnected or were never seen.
	StateGone State = iota
	// StateConnected is a live connection that has not joined a room.
	StateConnected
	// StateInRoom is a live connection with a presence record.
	StateInRoom
)

func (s State) String() string {
	switch s {
	case StateConnected:
		return "connected"
	case StateInRoom:
		return "in_room"
	default:
		return "gone"
	}
}

// Options configures a Relay. Zero values select defaults.
type Options struct {
	AdminName   string
	WelcomeText string
	QueueSize   int
	Formatter   *Formatter
	Logger      *slog.Logger
}

// Relay owns the presence registry and turns inbound events into outbound
// envelopes. All events are processed one at a time by Run.
type Relay struct {
	registry  *presence.Registry
	conns     map[string]struct{} // live connections, joined or not
	transport Transport
	format    *Formatter
	admin     string
	welcome   string
	logger    *slog.Logger

	events  chan Event
	stopped chan struct{} // closed when Run stops accepting events
	done    chan struct{} // closed once the queue is drained
}

// New creates a relay delivering through transport.
func New(transport Transport, opts Options) *Relay {
	if opts.AdminName == "" {
		opts.AdminName = defaultAdminName
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = defaultQueueSize
	}
	if opts.Formatter == nil {
		opts.Formatter = NewFormatter(nil, "")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Relay{
		registry:  presence.NewRegistry(),
		conns:     make(map[string]struct{}),
		transport: transport,
		format:    opts.Formatter,
		admin:     opts.AdminName,
		welcome:   opts.WelcomeText,
		logger:    opts.Logger,
		events:    make(chan Event, opts.QueueSize),
		stopped:   make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// Run processes events until ctx is cancelled, then handles whatever is
// still queued. It must be called once.
func (r *Relay) Run(ctx context.Context) {
	defer close(r.done)
	for {
		select {
		case <-ctx.Done():
			close(r.stopped)
			r.logger.Info("Relay loop stopped", "drained", r.drain())
			return
		case ev := <-r.events:
			r.handle(ev)
		}
	}
}

func (r *Relay) drain() int {
	n := 0
	for {
		select {
		case ev := <-r.events:
			r.handle(ev)
			n++
		default:
			return n
		}
	}
}

// Wait blocks until Run has returned.
func (r *Relay) Wait() {
	<-r.done
}

// Submit queues ev for processing. It blocks while the queue is full.
func (r *Relay) Submit(ctx context.Context, ev Event) error {
	select {
	case <-r.stopped:
		return ErrStopped
	default:
	}

	select {
	case r.events <- ev:
		// Queued before stopped was closed means the drain will see it.
		select {
		case <-r.stopped:
			return ErrStopped
		default:
			return nil
		}
	case <-r.stopped:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Rooms returns the active rooms as seen after every previously submitted event.
func (r *Relay) Rooms(ctx context.Context) ([]string, error) {
	reply := make(chan []string, 1)
	if err := r.Submit(ctx, roomsQuery{reply: reply}); err != nil {
		return nil, err
	}
	return await(ctx, r.done, reply)
}

// Occupants returns the occupants of room.
func (r *Relay) Occupants(ctx context.Context, room string) ([]domain.User, error) {
	reply := make(chan []domain.User, 1)
	if err := r.Submit(ctx, occupantsQuery{room: room, reply: reply}); err != nil {
		return nil, err
	}
	return await(ctx, r.done, reply)
}

// Stats counts connections by state and active rooms.
type Stats struct {
	Connected int `json:"connected"`
	InRoom    int `json:"in_room"`
	Rooms     int `json:"rooms"`
}

// Stats returns the current counts.
func (r *Relay) Stats(ctx context.Context) (Stats, error) {
	reply := make(chan Stats, 1)
	if err := r.Submit(ctx, statsQuery{reply: reply}); err != nil {
		return Stats{}, err
	}
	return await(ctx, r.done, reply)
}

// await waits for a query reply. done is closed only after the drain, so a
// query that was queued has been answered by then.
func await[T any](ctx context.Context, done <-chan struct{}, reply chan T) (T, error) {
	var zero T
	select {
	case v := <-reply:
		return v, nil
	case <-done:
		select {
		case v := <-reply:
			return v, nil
		default:
			return zero, ErrStopped
		}
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

func (r *Relay) handle(ev Event) {
	switch e := ev.(type) {
	case Connect:
		r.connect(e)
	case EnterRoom:
		r.enterRoom(e)
	case SendMessage:
		r.sendMessage(e)
	case SendActivity:
		r.sendActivity(e)
	case Disconnect:
		r.disconnect(e)
	case roomsQuery:
		e.reply <- r.registry.ActiveRooms()
	case occupantsQuery:
		e.reply <- r.registry.OccupantsOf(e.room)
	case statsQuery:
		e.reply <- r.stats()
	default:
		r.logger.Warn("Unknown relay event", "type", fmt.Sprintf("%T", ev))
	}
}

func (r *Relay) state(id string) State {
	if _, ok := r.conns[id]; !ok {
		return StateGone
	}
	if _, ok := r.registry.Lookup(id); ok {
		return StateInRoom
	}
	return StateConnected
}

func (r *Relay) stats() Stats {
	st := Stats{InRoom: r.registry.Len(), Rooms: r.registry.RoomCount()}
	for id := range r.conns {
		if r.state(id) == StateConnected {
			st.Connected++
		}
	}
	return st
}

func (r *Relay) connect(e Connect) {
	if _, ok := r.conns[e.ConnID]; ok {
		return
	}
	r.conns[e.ConnID] = struct{}{}
	r.transport.Open(e.ConnID)

	r.emit(ToOne(e.ConnID), EventMessage, r.format.Build(r.admin, r.welcome))
	r.emit(ToOne(e.ConnID), EventRoomList, domain.RoomList{Rooms: r.registry.ActiveRooms()})
	r.logger.Debug("Connection established", "connID", e.ConnID)
}

func (r *Relay) enterRoom(e EnterRoom) {
	if r.state(e.ConnID) == StateGone {
		r.logger.Debug("Dropped enterRoom from unknown connection", "connID", e.ConnID)
		return
	}

	prev, hadRoom := r.registry.Lookup(e.ConnID)
	switching := hadRoom && prev.Room != e.Room

	if switching {
		r.transport.Leave(e.ConnID, prev.Room)
		r.emit(ToRoom(prev.Room), EventMessage,
			r.format.Build(r.admin, fmt.Sprintf("%s has left the room", prev.Name)))
	}

	user := r.registry.Upsert(e.ConnID, e.Name, e.Room)

	if switching {
		r.emitUserList(prev.Room)
		if !r.registry.IsActive(prev.Room) {
			r.logger.Debug("Room closed", "room", prev.Room)
		}
	}

	r.transport.Join(user.ID, user.Room)
	r.emit(ToOne(user.ID), EventMessage,
		r.format.Build(r.admin, fmt.Sprintf("You have joined the %s chat room", user.Room)))
	if !hadRoom || switching {
		r.emit(ToRoomExcept(user.Room, user.ID), EventMessage,
			r.format.Build(r.admin, fmt.Sprintf("%s has joined the room", user.Name)))
	}
	r.emitUserList(user.Room)
	r.emitRoomList()

	r.logger.Info("User entered room", "connID", user.ID, "name", user.Name, "room", user.Room, "from", prev.Room)
}

func (r *Relay) sendMessage(e SendMessage) {
	user, ok := r.registry.Lookup(e.ConnID)
	if !ok {
		r.logger.Debug("Dropped message outside a room", "connID", e.ConnID, "state", r.state(e.ConnID))
		return
	}
	r.emit(ToRoom(user.Room), EventMessage, r.format.Build(e.Name, e.Text))
}

func (r *Relay) sendActivity(e SendActivity) {
	user, ok := r.registry.Lookup(e.ConnID)
	if !ok {
		return
	}
	r.emit(ToRoomExcept(user.Room, user.ID), EventActivity, e.Name)
}

func (r *Relay) disconnect(e Disconnect) {
	delete(r.conns, e.ConnID)

	user, ok := r.registry.Lookup(e.ConnID)
	if !ok {
		r.logger.Debug("Connection closed before joining a room", "connID", e.ConnID)
		return
	}

	r.transport.Leave(user.ID, user.Room)
	r.emit(ToRoom(user.Room), EventMessage,
		r.format.Build(r.admin, fmt.Sprintf("%s has left the room", user.Name)))
	r.registry.Remove(user.ID)
	if !r.registry.IsActive(user.Room) {
		r.logger.Debug("Room closed", "room", user.Room)
	}
	r.emitUserList(user.Room)
	r.emitRoomList()

	r.logger.Info("User left", "connID", user.ID, "name", user.Name, "room", user.Room)
}

func (r *Relay) emitUserList(room string) {
	r.emit(ToRoom(room), EventUserList, domain.UserList{Users: r.registry.OccupantsOf(room)})
}

func (r *Relay) emitRoomList() {
	r.emit(ToAll(), EventRoomList, domain.RoomList{Rooms: r.registry.ActiveRooms()})
}

func (r *Relay) emit(target Target, event string, payload any) {
	r.transport.Deliver(Envelope{Target: target, Event: event, Payload: payload})
}
