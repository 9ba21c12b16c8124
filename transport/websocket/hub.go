package websocket

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rocketscienceinc/gridroom-backend/internal/usecase"
)

type client struct {
	id   string
	conn *websocket.Conn

	// gorilla supports only one concurrent writer per connection
	writeMu sync.Mutex
}

func (that *client) send(msg *Message) error {
	that.writeMu.Lock()
	defer that.writeMu.Unlock()

	if err := that.conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}

	return nil
}

// Hub tracks live connections and their room-scoped broadcast groups. It is
// the transport adapter the coordinator fans events out through.
type Hub struct {
	logger *slog.Logger

	mu     sync.RWMutex
	conns  map[string]*client
	rooms  map[string]map[string]*client
	inRoom map[string]string // connection id -> room code
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		logger: logger,
		conns:  make(map[string]*client),
		rooms:  make(map[string]map[string]*client),
		inRoom: make(map[string]string),
	}
}

func (that *Hub) register(c *client) {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.conns[c.id] = c
}

func (that *Hub) unregister(connID string) {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.removeFromRoomLocked(connID)
	delete(that.conns, connID)
}

// RoomOf returns the room code a connection has joined, or "".
func (that *Hub) RoomOf(connID string) string {
	that.mu.RLock()
	defer that.mu.RUnlock()

	return that.inRoom[connID]
}

func (that *Hub) JoinRoom(code, connID string) {
	that.mu.Lock()
	defer that.mu.Unlock()

	c, ok := that.conns[connID]
	if !ok {
		return
	}

	if current := that.inRoom[connID]; current != "" && current != code {
		that.removeFromRoomLocked(connID)
	}

	group, ok := that.rooms[code]
	if !ok {
		group = make(map[string]*client)
		that.rooms[code] = group
	}

	group[connID] = c
	that.inRoom[connID] = code
}

func (that *Hub) LeaveRoom(code, connID string) {
	that.mu.Lock()
	defer that.mu.Unlock()

	if that.inRoom[connID] == code {
		that.removeFromRoomLocked(connID)
	}
}

// Broadcast sends an event to every member of a room group. Delivery is best
// effort: a failed send is logged and the remaining members still get it.
func (that *Hub) Broadcast(code string, event *usecase.Event) {
	log := that.logger.With("method", "Broadcast", "roomCode", code)

	msg, err := newMessage(event.Action, event.Payload)
	if err != nil {
		log.Error("failed to build message", "error", err)
		return
	}

	that.mu.RLock()
	members := make([]*client, 0, len(that.rooms[code]))
	for _, c := range that.rooms[code] {
		members = append(members, c)
	}
	that.mu.RUnlock()

	for _, c := range members {
		if err = c.send(msg); err != nil {
			log.Warn("failed to send to room member", "connectionID", c.id, "error", err)
		}
	}
}

func (that *Hub) SendTo(connID string, event *usecase.Event) {
	log := that.logger.With("method", "SendTo", "connectionID", connID)

	msg, err := newMessage(event.Action, event.Payload)
	if err != nil {
		log.Error("failed to build message", "error", err)
		return
	}

	that.mu.RLock()
	c, ok := that.conns[connID]
	that.mu.RUnlock()

	if !ok {
		log.Warn("connection not found")
		return
	}

	if err = c.send(msg); err != nil {
		log.Warn("failed to send message", "error", err)
	}
}

func (that *Hub) removeFromRoomLocked(connID string) {
	code, ok := that.inRoom[connID]
	if !ok {
		return
	}

	delete(that.inRoom, connID)

	group, ok := that.rooms[code]
	if !ok {
		return
	}

	delete(group, connID)
	if len(group) == 0 {
		delete(that.rooms, code)
	}
}
