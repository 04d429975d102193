package ports

import (
	"context"

	"fleet-tracker/internal/domain/tracking"
	"fleet-tracker/internal/domain/user"
	"fleet-tracker/internal/general/contracts"
)

// IdentityRepository resolves an authenticated user id to its account. Returns nil, nil when absent.
type IdentityRepository interface {
	GetIdentity(ctx context.Context, userID string) (*user.Identity, error)
}

// ProfileRepository maps a user to its driver or customer profile id. Returns "" when absent.
type ProfileRepository interface {
	LookupProfile(ctx context.Context, userID string, role user.Role) (string, error)
}

// SnapshotRepository serves the durable last-known state used by the polling fallback.
type SnapshotRepository interface {
	DriverSnapshots(ctx context.Context) ([]contracts.DriverSnapshot, error)
}

// LastKnownRepository mirrors live updates into durable storage so the snapshot stays warm.
type LastKnownRepository interface {
	SaveLastLocation(ctx context.Context, rec tracking.LocationRecord) error
	SetDuty(ctx context.Context, driverID string, onDuty bool) error
}
