package service

import (
	"context"
	"encoding/json"

	"fleet-tracker/internal/domain/session"
	"fleet-tracker/internal/domain/tracking"
	"fleet-tracker/internal/general/contracts"
)

// UpdateLocation caches the driver's position, refreshes presence, publishes it to every
// instance and emits it to this instance's admins room directly.
// A validation or authorization failure writes nothing.
func (service *Service) UpdateLocation(ctx context.Context, sess *session.Session, data json.RawMessage) (tracking.LocationRecord, error) {
	const op = "location:update"

	if !sess.Caps.UpdateLocation || !sess.IsDriver() {
		return tracking.LocationRecord{}, tracking.Authorization(op, "only drivers can send locations")
	}

	update, err := tracking.DecodeLocationUpdate(data)
	if err != nil {
		return tracking.LocationRecord{}, err
	}

	rec := tracking.NewLocationRecord(sess.DriverID, sess.UserName, update, sess.OnDuty(), service.now())
	sess.SetOnDuty(rec.IsOnDuty)

	sctx, cancel := service.withTimeout(ctx)
	defer cancel()

	if err := service.store.CacheLocation(sctx, rec); err != nil {
		return tracking.LocationRecord{}, tracking.TransientInfra(op, "could not store location", err)
	}
	if err := service.store.SetOnline(sctx, sess.DriverID); err != nil {
		service.logger.Warn(ctx, "driver_online_failed", "Failed to refresh driver presence", map[string]any{
			"driver_id": sess.DriverID,
			"error":     err.Error(),
		})
	}

	service.publish(ctx, contracts.ChannelDriverLocations, rec)
	service.rooms.Emit(ctx, contracts.RoomAdmins, contracts.EventDriverLocation, rec)

	service.persistLocation(ctx, rec)

	service.logger.Debug(ctx, "driver_location_updated", "Driver location cached and broadcast", map[string]any{
		"driver_id": rec.DriverID,
		"lat":       rec.Latitude,
		"lng":       rec.Longitude,
		"on_duty":   rec.IsOnDuty,
	})

	return rec, nil
}

// publish is fire-and-forget; a bus failure only costs other instances this event.
func (service *Service) publish(ctx context.Context, channel string, event any) bool {
	body, err := json.Marshal(event)
	if err != nil {
		service.logger.Error(ctx, "bus_marshal_failed", "Failed to encode bus event", err, map[string]any{"channel": channel})
		return false
	}

	pctx, cancel := service.withTimeout(ctx)
	defer cancel()

	if err := service.bus.Publish(pctx, channel, body); err != nil {
		service.logger.Warn(ctx, "bus_publish_failed", "Failed to publish to event bus", map[string]any{
			"channel": channel,
			"error":   err.Error(),
		})
		return false
	}
	return true
}

// persistLocation mirrors the record into durable storage and the archive stream.
// Both are optional and best-effort.
func (service *Service) persistLocation(ctx context.Context, rec tracking.LocationRecord) {
	if service.lastKnown != nil {
		pctx, cancel := service.withTimeout(ctx)
		if err := service.lastKnown.SaveLastLocation(pctx, rec); err != nil {
			service.logger.Warn(ctx, "last_known_write_failed", "Failed to persist last known location", map[string]any{
				"driver_id": rec.DriverID,
				"error":     err.Error(),
			})
		}
		cancel()
	}

	if service.archiver != nil {
		actx, cancel := service.withTimeout(ctx)
		if err := service.archiver.Archive(actx, rec); err != nil {
			service.logger.Warn(ctx, "location_archive_failed", "Failed to archive location", map[string]any{
				"driver_id": rec.DriverID,
				"error":     err.Error(),
			})
		}
		cancel()
	}
}
