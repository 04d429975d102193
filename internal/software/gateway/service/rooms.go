package service

import (
	"context"
	"encoding/json"
	"strings"

	"fleet-tracker/internal/domain/session"
	"fleet-tracker/internal/general/contracts"
)

// JoinRoom honours the session's capability table; anything else is dropped without a reply.
func (service *Service) JoinRoom(ctx context.Context, sess *session.Session, data json.RawMessage) bool {
	room, ok := service.roomRequest(ctx, sess, data, contracts.EventRoomJoin)
	if !ok {
		return false
	}
	return service.rooms.Join(sess.ID, room)
}

// LeaveRoom applies the same rule as JoinRoom, so role-derived rooms cannot be left.
func (service *Service) LeaveRoom(ctx context.Context, sess *session.Session, data json.RawMessage) bool {
	room, ok := service.roomRequest(ctx, sess, data, contracts.EventRoomLeave)
	if !ok {
		return false
	}
	service.rooms.Leave(sess.ID, room)
	return true
}

func (service *Service) roomRequest(ctx context.Context, sess *session.Session, data json.RawMessage, event string) (string, bool) {
	var req contracts.RoomPayload
	if err := json.Unmarshal(data, &req); err != nil {
		return "", false
	}
	room := strings.TrimSpace(req.Room)

	if !sess.CanJoin(room) {
		service.logger.Debug(ctx, "room_request_ignored", "Room request not permitted", map[string]any{
			"session_id": sess.ID,
			"role":       sess.Role.String(),
			"event":      event,
			"room":       room,
		})
		return "", false
	}
	return room, true
}
