// Package hub is the in-process notification bus: named rooms over
// persistent websocket connections, one room per task plus a global
// broadcast for service-status changes. Delivery is at-most-once and
// best-effort: there is no retained log, and a connection that is not
// a member at publish time misses the event for good. REST reads are
// the source of truth; the hub is a liveness optimization.
package hub

import (
	"sync"

	"github.com/Lupao-eth/triptask-backend/observability"

	"github.com/gorilla/websocket"
)

// Event is the envelope pushed to clients.
type Event struct {
	Event string `json:"event"`
	Room  string `json:"room,omitempty"`
	Data  any    `json:"data"`
}

type Hub struct {
	mu      sync.Mutex
	rooms   map[string]map[*Conn]struct{}
	conns   map[*Conn]map[string]struct{}
	metrics *observability.Metrics
}

func New(metrics *observability.Metrics) *Hub {
	return &Hub{
		rooms:   make(map[string]map[*Conn]struct{}),
		conns:   make(map[*Conn]map[string]struct{}),
		metrics: metrics,
	}
}

// Register wraps an upgraded websocket in a Conn, starts its writer and
// tracks it. The caller must have authenticated the connection already.
func (h *Hub) Register(ws *websocket.Conn) *Conn {
	c := &Conn{
		hub:  h,
		ws:   ws,
		send: make(chan Event, sendBuffer),
	}
	h.mu.Lock()
	h.conns[c] = make(map[string]struct{})
	h.mu.Unlock()
	if h.metrics != nil {
		h.metrics.ActiveConnections.Inc()
	}
	go c.writePump()
	return c
}

// Join adds the connection to a room. Idempotent.
func (h *Hub) Join(c *Conn, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	memberships, ok := h.conns[c]
	if !ok {
		return // already disconnected
	}
	if _, member := memberships[room]; member {
		return
	}
	memberships[room] = struct{}{}
	if h.rooms[room] == nil {
		h.rooms[room] = make(map[*Conn]struct{})
	}
	h.rooms[room][c] = struct{}{}
	if h.metrics != nil {
		h.metrics.RoomJoins.WithLabelValues("join").Inc()
	}
}

// Leave removes the connection from a room. Leaving a room the
// connection is not in is a no-op.
func (h *Hub) Leave(c *Conn, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	memberships, ok := h.conns[c]
	if !ok {
		return
	}
	if _, member := memberships[room]; !member {
		return
	}
	delete(memberships, room)
	h.dropFromRoom(c, room)
	if h.metrics != nil {
		h.metrics.RoomJoins.WithLabelValues("leave").Inc()
	}
}

// Publish delivers an event to every current member of the room, in
// publish order. It never blocks: a member whose send buffer is full
// misses the event.
func (h *Hub) Publish(room, event string, data any) {
	ev := Event{Event: event, Room: room, Data: data}
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.rooms[room] {
		h.offer(c, ev)
	}
	if h.metrics != nil {
		h.metrics.EventsPublished.WithLabelValues(event).Inc()
	}
}

// Broadcast delivers an event to every connection regardless of rooms.
// Used for service-status changes.
func (h *Hub) Broadcast(event string, data any) {
	ev := Event{Event: event, Data: data}
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.conns {
		h.offer(c, ev)
	}
	if h.metrics != nil {
		h.metrics.EventsPublished.WithLabelValues(event).Inc()
	}
}

// offer enqueues without blocking. Callers hold h.mu, so the conn is
// guaranteed not yet closed.
func (h *Hub) offer(c *Conn, ev Event) {
	select {
	case c.send <- ev:
	default:
		if h.metrics != nil {
			h.metrics.EventsDropped.WithLabelValues(ev.Event).Inc()
		}
	}
}

// remove drops the connection from every room and stops its writer.
// Safe to call more than once.
func (h *Hub) remove(c *Conn) {
	h.mu.Lock()
	memberships, ok := h.conns[c]
	if !ok {
		h.mu.Unlock()
		return
	}
	for room := range memberships {
		h.dropFromRoom(c, room)
	}
	delete(h.conns, c)
	// Closing under the lock: no publisher can reach c anymore.
	close(c.send)
	h.mu.Unlock()
	if h.metrics != nil {
		h.metrics.ActiveConnections.Dec()
	}
}

func (h *Hub) dropFromRoom(c *Conn, room string) {
	members := h.rooms[room]
	delete(members, c)
	if len(members) == 0 {
		delete(h.rooms, room)
	}
}

// RoomSize reports the current member count of a room.
func (h *Hub) RoomSize(room string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.rooms[room])
}
