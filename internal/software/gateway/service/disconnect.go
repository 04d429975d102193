package service

import (
	"context"
	"encoding/json"
	"fmt"

	"fleet-tracker/internal/domain/session"
	"fleet-tracker/internal/domain/tracking"
	"fleet-tracker/internal/general/contracts"
)

// OnDisconnect ends the session. For drivers it marks them offline, drops the cached
// location and announces the offline presence. Steps run with a context detached from
// the connection, each bounded by the operation timeout. Calling it twice is harmless.
func (service *Service) OnDisconnect(ctx context.Context, sess *session.Session, reason string) tracking.CleanupReport {
	report := tracking.CleanupReport{SessionID: sess.ID, DriverID: sess.DriverID, Reason: reason}

	if err := sess.Transition(session.StateDisconnected); err != nil {
		return report
	}

	ctx = context.WithoutCancel(ctx)

	if sess.IsDriver() {
		event := tracking.PresenceEvent{
			DriverID:   sess.DriverID,
			DriverName: sess.UserName,
			IsOnline:   false,
			IsOnDuty:   sess.OnDuty(),
			Timestamp:  service.now().UTC(),
		}

		report.Steps = []tracking.StepResult{
			service.runStep(ctx, tracking.StepSetOffline, func(ctx context.Context) error {
				return service.store.SetOffline(ctx, sess.DriverID)
			}),
			service.runStep(ctx, tracking.StepRemoveLocation, func(ctx context.Context) error {
				return service.store.RemoveLocation(ctx, sess.DriverID)
			}),
			service.runStep(ctx, tracking.StepPublishOffline, func(ctx context.Context) error {
				body, err := json.Marshal(event)
				if err != nil {
					return err
				}
				return service.bus.Publish(ctx, contracts.ChannelDriverPresence, body)
			}),
			service.runStep(ctx, tracking.StepEmitOffline, func(ctx context.Context) error {
				service.rooms.Emit(ctx, contracts.RoomAdmins, contracts.EventDriverPresence, event)
				return nil
			}),
		}

		for _, failed := range report.Failed() {
			service.logger.Warn(ctx, "disconnect_cleanup_step_failed", "Disconnect cleanup step failed", map[string]any{
				"session_id": sess.ID,
				"driver_id":  sess.DriverID,
				"step":       string(failed.Step),
				"error":      failed.Err.Error(),
			})
		}
	}

	service.logger.Info(ctx, "client_disconnected", "Client disconnected", map[string]any{
		"session_id":    sess.ID,
		"user_id":       sess.UserID,
		"role":          sess.Role.String(),
		"reason":        reason,
		"cleanup_clean": report.OK(),
	})

	return report
}

// runStep isolates one cleanup step: its own timeout, and a panic becomes an error.
func (service *Service) runStep(ctx context.Context, step tracking.CleanupStep, fn func(context.Context) error) (res tracking.StepResult) {
	res.Step = step

	sctx, cancel := service.withTimeout(ctx)
	defer cancel()

	defer func() {
		if p := recover(); p != nil {
			res.Err = fmt.Errorf("panic: %v", p)
		}
	}()

	res.Err = fn(sctx)
	return res
}
