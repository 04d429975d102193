package service

import (
	"context"
	"encoding/json"
	"errors"

	"fleet-tracker/internal/domain/session"
	"fleet-tracker/internal/domain/tracking"
	"fleet-tracker/internal/general/contracts"
)

// Dispatch routes one inbound frame. It never returns an error: failures of explicit actions
// are reported to the client as connection:error and the connection stays open.
func (service *Service) Dispatch(ctx context.Context, sess *session.Session, raw []byte) {
	if sess.State() != session.StateActive {
		return
	}

	var frame contracts.Frame
	if err := json.Unmarshal(raw, &frame); err != nil {
		service.sendError(ctx, sess, tracking.Validation("dispatch", "malformed frame", nil))
		return
	}

	var err error
	switch frame.Type {
	case contracts.EventLocationUpdate:
		_, err = service.UpdateLocation(ctx, sess, frame.Data)
	case contracts.EventDutyToggle:
		_, err = service.ToggleDuty(ctx, sess, frame.Data)
	case contracts.EventRoomJoin:
		service.JoinRoom(ctx, sess, frame.Data)
	case contracts.EventRoomLeave:
		service.LeaveRoom(ctx, sess, frame.Data)
	default:
		err = tracking.Validation("dispatch", "unknown event "+frame.Type, nil)
	}

	if err != nil {
		service.sendError(ctx, sess, err)
	}
}

func (service *Service) sendError(ctx context.Context, sess *session.Session, err error) {
	level := service.logger.Info
	if errors.Is(err, tracking.ErrTransientInfra) {
		level = service.logger.Warn
	}
	level(ctx, "client_action_rejected", "Client action rejected", map[string]any{
		"session_id": sess.ID,
		"role":       sess.Role.String(),
		"error":      err.Error(),
	})

	if sendErr := service.rooms.Send(sess.ID, contracts.EventConnectionError, contracts.ErrorPayload{
		Message: tracking.PublicMessage(err),
	}); sendErr != nil {
		service.logger.Debug(ctx, "connection_error_not_sent", "Failed to deliver connection:error", map[string]any{
			"session_id": sess.ID,
			"error":      sendErr.Error(),
		})
	}
}
