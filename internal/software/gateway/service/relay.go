package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"fleet-tracker/internal/domain/tracking"
	"fleet-tracker/internal/general/contracts"
)

var errMissingDriverID = errors.New("driverId is required")

// RunRelay subscribes to the bus and re-emits every envelope to local rooms until ctx ends.
// While the broker is unreachable the instance keeps serving its own connections and
// re-subscribes with capped exponential backoff.
func (service *Service) RunRelay(ctx context.Context) {
	backoff := service.relayMinBackoff

	for {
		in, err := service.bus.Subscribe(ctx, contracts.Channels...)
		if err != nil {
			service.busReady.Store(false)
			if ctx.Err() != nil {
				return
			}

			service.logger.Warn(ctx, "bus_subscribe_failed", "Event bus unreachable; serving local connections only", map[string]any{
				"error":      err.Error(),
				"backoff_ms": backoff.Milliseconds(),
			})

			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			backoff = min(backoff*2, service.relayMaxBackoff)
			continue
		}

		service.busReady.Store(true)
		backoff = service.relayMinBackoff
		service.logger.Info(ctx, "bus_subscribed", "Relaying event bus to local rooms", map[string]any{
			"channels": contracts.Channels,
		})

		for env := range in {
			service.Relay(ctx, env)
		}

		service.busReady.Store(false)
		if ctx.Err() != nil {
			return
		}
		service.logger.Warn(ctx, "bus_subscription_lost", "Event bus subscription ended; re-subscribing", nil)
	}
}

// Relay re-emits one bus envelope to the local rooms its channel maps to.
func (service *Service) Relay(ctx context.Context, env contracts.Envelope) {
	if err := service.relay(ctx, env); err != nil {
		service.logger.Warn(ctx, "bus_envelope_dropped", "Dropped malformed bus envelope", map[string]any{
			"channel": env.Channel,
			"error":   err.Error(),
		})
	}
}

func (service *Service) relay(ctx context.Context, env contracts.Envelope) error {
	switch env.Channel {
	case contracts.ChannelDriverLocations:
		var rec tracking.LocationRecord
		if err := json.Unmarshal(env.Payload, &rec); err != nil {
			return err
		}
		if rec.DriverID == "" {
			return errMissingDriverID
		}
		service.rooms.Emit(ctx, contracts.RoomAdmins, contracts.EventDriverLocation, rec)

	case contracts.ChannelDriverPresence:
		var event tracking.PresenceEvent
		if err := json.Unmarshal(env.Payload, &event); err != nil {
			return err
		}
		if event.DriverID == "" {
			return errMissingDriverID
		}
		service.rooms.Emit(ctx, contracts.RoomAdmins, contracts.EventDriverPresence, event)

	case contracts.ChannelOrderUpdates:
		var event tracking.OrderStatusEvent
		if err := json.Unmarshal(env.Payload, &event); err != nil {
			return err
		}
		if err := event.Validate(); err != nil {
			return err
		}
		service.emitOrderStatus(ctx, event)

	default:
		service.logger.Debug(ctx, "bus_unknown_channel", "Ignoring envelope on unknown channel", map[string]any{"channel": env.Channel})
	}
	return nil
}
