package ports

import (
	"context"

	"fleet-tracker/internal/domain/tracking"
	"fleet-tracker/internal/domain/user"
	"fleet-tracker/internal/general/contracts"
)

// StateStore is the ephemeral, expiring cache of current driver state.
// Every driver has its own location key and its own presence key, each with an independent expiry.
type StateStore interface {
	CacheLocation(ctx context.Context, rec tracking.LocationRecord) error
	SetOnline(ctx context.Context, driverID string) error
	SetOffline(ctx context.Context, driverID string) error
	RemoveLocation(ctx context.Context, driverID string) error
	// Refresh re-arms both expiries of a driver without changing values. Missing keys stay missing.
	Refresh(ctx context.Context, driverID string) error

	// GetLocation returns nil, nil when the driver has no live location.
	GetLocation(ctx context.Context, driverID string) (*tracking.LocationRecord, error)
	GetAllLocations(ctx context.Context) ([]tracking.LocationRecord, error)
	GetOnlineIDs(ctx context.Context) ([]string, error)
}

// EventBus is a best-effort, at-most-once pub/sub shared by every gateway instance.
type EventBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	// Subscribe holds a dedicated broker connection. The returned channel is closed when ctx
	// ends or the subscription is lost.
	Subscribe(ctx context.Context, channels ...string) (<-chan contracts.Envelope, error)
	Close() error
}

// TokenVerifier exchanges a bearer credential for an identity. Returns nil, nil for a rejected token.
type TokenVerifier interface {
	VerifyToken(ctx context.Context, token string) (*user.Identity, error)
}

// LocationArchiver streams accepted locations to an append-only sink.
type LocationArchiver interface {
	Archive(ctx context.Context, rec tracking.LocationRecord) error
	Close() error
}
