package wsserver

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/example/room-relay/modules/broadcast"
	"github.com/example/room-relay/modules/relay"
)

const (
	writeWait = 10 * time.Second
	// frameOverhead is added to the largest field limit to size the read limit.
	frameOverhead = 1024
)

// Handlers contains HTTP and WebSocket handlers.
type Handlers struct {
	relay        *relay.Relay
	hub          *broadcast.Hub
	port         relay.RelayPort
	limits       Limits
	pingInterval time.Duration
	logger       *slog.Logger
}

// NewHandlers creates a new handlers instance.
func NewHandlers(r *relay.Relay, hub *broadcast.Hub, port relay.RelayPort, limits Limits, pingInterval time.Duration) *Handlers {
	return &Handlers{
		relay:        r,
		hub:          hub,
		port:         port,
		limits:       limits,
		pingInterval: pingInterval,
		logger:       slog.Default(),
	}
}

// readLimit is the largest frame Decode can accept, or 0 when a field is
// unbounded.
func (h *Handlers) readLimit() int64 {
	if h.limits.MaxName <= 0 || h.limits.MaxRoom <= 0 || h.limits.MaxText <= 0 {
		return 0
	}
	largest := max(h.limits.MaxName+h.limits.MaxText, h.limits.MaxName+h.limits.MaxRoom)
	// JSON escaping can take up to 6 bytes per rune.
	return int64(largest*6 + frameOverhead)
}

func (h *Handlers) pongWait() time.Duration {
	return h.pingInterval * 2
}

// HandleWebSocket handles one WebSocket connection from upgrade to close.
func (h *Handlers) HandleWebSocket(c *websocket.Conn) {
	connID := uuid.New().String()
	client := h.hub.Register(connID)

	done := make(chan struct{})
	go h.writePump(c, client, done)

	ctx := context.Background()
	defer func() {
		if err := h.relay.Submit(ctx, relay.Disconnect{ConnID: connID}); err != nil && !errors.Is(err, relay.ErrStopped) {
			h.logger.Error("Failed to submit disconnect", "connID", connID, "error", err)
		}
		h.hub.Unregister(connID)
		<-done
		c.Close()
		h.logger.Info("WebSocket disconnected", "connID", connID)
	}()

	if err := h.relay.Submit(ctx, relay.Connect{ConnID: connID}); err != nil {
		h.logger.Warn("Relay refused connection", "connID", connID, "error", err)
		return
	}
	h.logger.Info("WebSocket connected", "connID", connID)

	if limit := h.readLimit(); limit > 0 {
		c.SetReadLimit(limit)
	}
	_ = c.SetReadDeadline(time.Now().Add(h.pongWait()))
	c.SetPongHandler(func(string) error {
		return c.SetReadDeadline(time.Now().Add(h.pongWait()))
	})

	for {
		_, data, err := c.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				h.logger.Error("WebSocket error", "connID", connID, "error", err)
			}
			return
		}

		ev, err := Decode(connID, data, h.limits)
		if err != nil {
			h.logger.Warn("Dropped inbound frame", "connID", connID, "error", err)
			continue
		}

		if err := h.relay.Submit(ctx, ev); err != nil {
			h.logger.Warn("Relay refused event", "connID", connID, "error", err)
			return
		}
	}
}

// writePump is the only writer on c. It returns once the hub closes the
// client's queue or a write fails.
func (h *Handlers) writePump(c *websocket.Conn, client *broadcast.Client, done chan<- struct{}) {
	ticker := time.NewTicker(h.pingInterval)
	defer func() {
		ticker.Stop()
		close(done)
	}()

	for {
		select {
		case data, ok := <-client.Send:
			_ = c.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.WriteMessage(websocket.TextMessage, data); err != nil {
				h.logger.Warn("Failed to write frame", "connID", client.ID, "error", err)
				_ = c.Close()
				return
			}

		case <-ticker.C:
			_ = c.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.WriteMessage(websocket.PingMessage, nil); err != nil {
				_ = c.Close()
				return
			}
		}
	}
}

// REST Handlers

// ListRooms handles room listing requests (GET /api/v1/rooms).
func (h *Handlers) ListRooms(c *fiber.Ctx) error {
	rooms, err := h.port.ListRooms(c.UserContext())
	if err != nil {
		h.logger.Error("Failed to list rooms", "error", err)
		return fiber.NewError(fiber.StatusServiceUnavailable, "Relay unavailable")
	}
	return c.JSON(fiber.Map{
		"rooms": rooms,
		"total": len(rooms),
	})
}

// ListRoomUsers handles occupant listing requests (GET /api/v1/rooms/:room/users).
func (h *Handlers) ListRoomUsers(c *fiber.Ctx) error {
	room := c.Params("room")
	if room == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Room is required",
		})
	}

	users, err := h.port.ListUsers(c.UserContext(), room)
	if err != nil {
		h.logger.Error("Failed to list users", "room", room, "error", err)
		return fiber.NewError(fiber.StatusServiceUnavailable, "Relay unavailable")
	}
	if len(users) == 0 {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Room not found",
		})
	}
	return c.JSON(fiber.Map{
		"room":  room,
		"users": users,
		"total": len(users),
	})
}

// HealthCheck handles health check requests (GET /health).
func (h *Handlers) HealthCheck(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":            "healthy",
		"service":           "room-relay",
		"connected_clients": h.hub.ClientCount(),
		"rooms":             h.hub.RoomCount(),
	})
}
