package service

import (
	"context"

	"fleet-tracker/internal/domain/session"
	"fleet-tracker/internal/domain/tracking"
	"fleet-tracker/internal/general/contracts"
)

// Heartbeat re-arms a driver's expiries on every pong, so a connected but idle driver
// stays visible.
func (service *Service) Heartbeat(ctx context.Context, sess *session.Session) error {
	if !sess.IsDriver() || sess.State() != session.StateActive {
		return nil
	}

	hctx, cancel := service.withTimeout(ctx)
	defer cancel()

	if err := service.store.Refresh(hctx, sess.DriverID); err != nil {
		service.logger.Warn(ctx, "heartbeat_refresh_failed", "Failed to refresh driver expiry", map[string]any{
			"driver_id": sess.DriverID,
			"error":     err.Error(),
		})
		return tracking.TransientInfra("heartbeat", "", err)
	}
	return nil
}

func (service *Service) LiveState(ctx context.Context) (tracking.LiveState, error) {
	sctx, cancel := service.withTimeout(ctx)
	defer cancel()

	locations, err := service.store.GetAllLocations(sctx)
	if err != nil {
		return tracking.LiveState{}, tracking.TransientInfra("live_state", "", err)
	}
	online, err := service.store.GetOnlineIDs(sctx)
	if err != nil {
		return tracking.LiveState{}, tracking.TransientInfra("live_state", "", err)
	}
	return tracking.LiveState{Locations: locations, OnlineIDs: online}, nil
}

// DriverSnapshots serves the polling fallback from durable storage.
func (service *Service) DriverSnapshots(ctx context.Context) ([]contracts.DriverSnapshot, error) {
	if service.snapshots == nil {
		return []contracts.DriverSnapshot{}, nil
	}

	sctx, cancel := service.withTimeout(ctx)
	defer cancel()

	rows, err := service.snapshots.DriverSnapshots(sctx)
	if err != nil {
		return nil, tracking.TransientInfra("driver_snapshots", "", err)
	}
	return rows, nil
}
