package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"fleet-tracker/internal/general/contracts"
	"fleet-tracker/internal/general/logger"
)

// Hub is the registry of connections attached to this process and their room memberships.
// It knows nothing about other gateway instances; cross-instance fanout goes through the bus.
type Hub struct {
	logger *logger.Logger

	mu     sync.RWMutex
	conns  map[string]*Conn
	rooms  map[string]map[string]*Conn    // room -> connID -> conn
	joined map[string]map[string]struct{} // connID -> rooms
}

func NewHub(logger *logger.Logger) *Hub {
	return &Hub{
		logger: logger,
		conns:  make(map[string]*Conn),
		rooms:  make(map[string]map[string]*Conn),
		joined: make(map[string]map[string]struct{}),
	}
}

// Register adds a connection. A connection id is never reused.
func (h *Hub) Register(c *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[c.ID()] = c
	h.joined[c.ID()] = make(map[string]struct{})
}

// Unregister removes the connection from every room it joined.
func (h *Hub) Unregister(connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for room := range h.joined[connID] {
		h.removeMember(room, connID)
	}
	delete(h.joined, connID)
	delete(h.conns, connID)
}

// Join adds a registered connection to room. Returns false for unknown connections.
func (h *Hub) Join(connID, room string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	c, ok := h.conns[connID]
	if !ok {
		return false
	}
	members, ok := h.rooms[room]
	if !ok {
		members = make(map[string]*Conn)
		h.rooms[room] = members
	}
	members[connID] = c
	h.joined[connID][room] = struct{}{}
	return true
}

func (h *Hub) Leave(connID, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.removeMember(room, connID)
	if rooms, ok := h.joined[connID]; ok {
		delete(rooms, room)
	}
}

func (h *Hub) removeMember(room, connID string) {
	members, ok := h.rooms[room]
	if !ok {
		return
	}
	delete(members, connID)
	if len(members) == 0 {
		delete(h.rooms, room)
	}
}

// Emit encodes the frame once and writes it to every member of room. A failed write only
// affects that member; its read loop notices the broken socket and disconnects it.
// Returns the number of successful writes.
func (h *Hub) Emit(ctx context.Context, room, eventType string, data any) int {
	payload, err := json.Marshal(contracts.OutboundFrame{Type: eventType, Data: data})
	if err != nil {
		h.logger.Error(ctx, "ws_emit_marshal_failed", "Failed to encode outbound event", err, map[string]any{"event": eventType})
		return 0
	}

	h.mu.RLock()
	members := make([]*Conn, 0, len(h.rooms[room]))
	for _, c := range h.rooms[room] {
		members = append(members, c)
	}
	h.mu.RUnlock()

	delivered := 0
	for _, c := range members {
		if err := c.WriteRaw(payload); err != nil {
			h.logger.Debug(ctx, "ws_emit_write_failed", "Failed to write to room member", map[string]any{
				"room":          room,
				"event":         eventType,
				"connection_id": c.ID(),
				"error":         err.Error(),
			})
			continue
		}
		delivered++
	}
	return delivered
}

// Send writes one event to a single connection.
func (h *Hub) Send(connID, eventType string, data any) error {
	h.mu.RLock()
	c, ok := h.conns[connID]
	h.mu.RUnlock()
	if !ok {
		return fmt.Errorf("connection %s not registered", connID)
	}
	return c.WriteEvent(eventType, data)
}

// Members lists the connection ids in room, sorted.
func (h *Hub) Members(room string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	ids := make([]string, 0, len(h.rooms[room]))
	for id := range h.rooms[room] {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Rooms lists the rooms connID belongs to, sorted.
func (h *Hub) Rooms(connID string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	rooms := make([]string, 0, len(h.joined[connID]))
	for room := range h.joined[connID] {
		rooms = append(rooms, room)
	}
	sort.Strings(rooms)
	return rooms
}

// Count is the number of attached connections.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}
