// internal/hub/hub.go
package hub

import (
	"encoding/json"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ErrUnknownConn is returned when sending to a connection that is not registered.
var ErrUnknownConn = errors.New("connection not registered")

// Frame is the envelope of every websocket message. ID is set on client requests
// and on the acks answering them.
type Frame struct {
	Event string          `json:"event"`
	ID    int64           `json:"id,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Encode marshals an outgoing frame.
func Encode(event string, id int64, payload any) ([]byte, error) {
	f := Frame{Event: event, ID: id}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		f.Data = data
	}
	return json.Marshal(f)
}

// Conn is one registered websocket connection. Its writer drains Out; the hub
// closes Out on Unregister.
type Conn struct {
	ID  uuid.UUID
	Out chan []byte

	room string
}

// Hub groups connections into lobby rooms. Delivery never blocks: a connection
// whose buffer is full misses the message.
type Hub struct {
	mu    sync.RWMutex
	conns map[uuid.UUID]*Conn
	rooms map[string]map[uuid.UUID]*Conn

	bufSize int
	log     logrus.FieldLogger
}

func New(bufSize int, log logrus.FieldLogger) *Hub {
	if bufSize <= 0 {
		bufSize = 32
	}
	return &Hub{
		conns:   make(map[uuid.UUID]*Conn),
		rooms:   make(map[string]map[uuid.UUID]*Conn),
		bufSize: bufSize,
		log:     log,
	}
}

// Register adds a new connection with a fresh id.
func (h *Hub) Register() *Conn {
	c := &Conn{ID: uuid.New(), Out: make(chan []byte, h.bufSize)}
	h.mu.Lock()
	h.conns[c.ID] = c
	h.mu.Unlock()
	return c
}

// Unregister removes a connection from its room and closes its outbox.
func (h *Hub) Unregister(id uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	c, ok := h.conns[id]
	if !ok {
		return
	}
	h.leaveLocked(c)
	delete(h.conns, id)
	close(c.Out)
}

// Join moves a connection into a lobby room, leaving any room it was in.
func (h *Hub) Join(id uuid.UUID, lobby string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	c, ok := h.conns[id]
	if !ok {
		return ErrUnknownConn
	}
	h.leaveLocked(c)
	room, ok := h.rooms[lobby]
	if !ok {
		room = make(map[uuid.UUID]*Conn)
		h.rooms[lobby] = room
	}
	room[id] = c
	c.room = lobby
	return nil
}

// Leave takes a connection out of its room.
func (h *Hub) Leave(id uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if c, ok := h.conns[id]; ok {
		h.leaveLocked(c)
	}
}

func (h *Hub) leaveLocked(c *Conn) {
	if c.room == "" {
		return
	}
	if room, ok := h.rooms[c.room]; ok {
		delete(room, c.ID)
		if len(room) == 0 {
			delete(h.rooms, c.room)
		}
	}
	c.room = ""
}

// Emit sends an event to every connection in a lobby room.
func (h *Hub) Emit(lobby, event string, payload any) {
	msg, err := Encode(event, 0, payload)
	if err != nil {
		h.log.WithField("event", event).Errorf("failed to marshal event: %v", err)
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.rooms[lobby] {
		h.deliver(c, msg, event)
	}
}

// Send delivers an event to one connection.
func (h *Hub) Send(id uuid.UUID, event string, payload any) error {
	msg, err := Encode(event, 0, payload)
	if err != nil {
		return err
	}
	return h.SendRaw(id, msg)
}

// SendRaw delivers an already encoded frame to one connection.
func (h *Hub) SendRaw(id uuid.UUID, msg []byte) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	c, ok := h.conns[id]
	if !ok {
		return ErrUnknownConn
	}
	h.deliver(c, msg, "")
	return nil
}

// deliver requires h.mu held for reading so Out cannot be closed underneath.
func (h *Hub) deliver(c *Conn, msg []byte, event string) {
	select {
	case c.Out <- msg:
	default:
		h.log.WithFields(logrus.Fields{"conn": c.ID, "event": event}).Warn("outbox full, dropping message")
	}
}

// RoomSize counts the connections joined to a lobby.
func (h *Hub) RoomSize(lobby string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[lobby])
}

// Len counts registered connections.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}
