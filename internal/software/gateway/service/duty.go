package service

import (
	"context"
	"encoding/json"

	"fleet-tracker/internal/domain/session"
	"fleet-tracker/internal/domain/tracking"
	"fleet-tracker/internal/general/contracts"
)

// ToggleDuty announces a duty change. The cached location is left alone.
func (service *Service) ToggleDuty(ctx context.Context, sess *session.Session, data json.RawMessage) (tracking.PresenceEvent, error) {
	const op = "duty:toggle"

	if !sess.Caps.ToggleDuty || !sess.IsDriver() {
		return tracking.PresenceEvent{}, tracking.Authorization(op, "only drivers can change duty")
	}

	toggle, err := tracking.DecodeDutyToggle(data)
	if err != nil {
		return tracking.PresenceEvent{}, err
	}
	onDuty := *toggle.IsOnDuty
	sess.SetOnDuty(onDuty)

	sctx, cancel := service.withTimeout(ctx)
	if err := service.store.SetOnline(sctx, sess.DriverID); err != nil {
		service.logger.Warn(ctx, "driver_online_failed", "Failed to refresh driver presence", map[string]any{
			"driver_id": sess.DriverID,
			"error":     err.Error(),
		})
	}
	cancel()

	event := tracking.PresenceEvent{
		DriverID:   sess.DriverID,
		DriverName: sess.UserName,
		IsOnline:   true,
		IsOnDuty:   onDuty,
		Timestamp:  service.now().UTC(),
	}

	service.publish(ctx, contracts.ChannelDriverPresence, event)
	service.rooms.Emit(ctx, contracts.RoomAdmins, contracts.EventDriverPresence, event)

	if service.lastKnown != nil {
		pctx, cancel := service.withTimeout(ctx)
		if err := service.lastKnown.SetDuty(pctx, sess.DriverID, onDuty); err != nil {
			service.logger.Warn(ctx, "duty_persist_failed", "Failed to persist duty status", map[string]any{
				"driver_id": sess.DriverID,
				"error":     err.Error(),
			})
		}
		cancel()
	}

	service.logger.Info(ctx, "driver_duty_toggled", "Driver duty status changed", map[string]any{
		"driver_id": sess.DriverID,
		"on_duty":   onDuty,
	})

	return event, nil
}
