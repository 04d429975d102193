package service

import (
	"context"
	"sync/atomic"
	"time"

	"fleet-tracker/internal/general/logger"
	"fleet-tracker/internal/ports"
)

const (
	defaultOpTimeout       = 3 * time.Second
	defaultRelayMinBackoff = time.Second
	defaultRelayMaxBackoff = 30 * time.Second
)

// Broadcaster is the local connection registry the gateway emits through.
type Broadcaster interface {
	Join(connID, room string) bool
	Leave(connID, room string)
	Emit(ctx context.Context, room, eventType string, data any) int
	Send(connID, eventType string, data any) error
}

// Deps are the collaborators of the gateway. Snapshots, LastKnown and Archiver are optional.
type Deps struct {
	Logger    *logger.Logger
	Store     ports.StateStore
	Bus       ports.EventBus
	Verifier  ports.TokenVerifier
	Profiles  ports.ProfileRepository
	Rooms     Broadcaster
	Snapshots ports.SnapshotRepository
	LastKnown ports.LastKnownRepository
	Archiver  ports.LocationArchiver

	// OpTimeout bounds every call that crosses a process boundary.
	OpTimeout time.Duration
	// RelayMinBackoff and RelayMaxBackoff bound the bus re-subscription delay.
	RelayMinBackoff time.Duration
	RelayMaxBackoff time.Duration
	Now             func() time.Time
}

// Service is the connection gateway. One instance is built at startup and shared by
// every connection handler of the process.
type Service struct {
	logger    *logger.Logger
	store     ports.StateStore
	bus       ports.EventBus
	verifier  ports.TokenVerifier
	profiles  ports.ProfileRepository
	rooms     Broadcaster
	snapshots ports.SnapshotRepository
	lastKnown ports.LastKnownRepository
	archiver  ports.LocationArchiver

	opTimeout       time.Duration
	relayMinBackoff time.Duration
	relayMaxBackoff time.Duration
	now             func() time.Time

	busReady atomic.Bool
}

func New(deps Deps) *Service {
	s := &Service{
		logger:          deps.Logger,
		store:           deps.Store,
		bus:             deps.Bus,
		verifier:        deps.Verifier,
		profiles:        deps.Profiles,
		rooms:           deps.Rooms,
		snapshots:       deps.Snapshots,
		lastKnown:       deps.LastKnown,
		archiver:        deps.Archiver,
		opTimeout:       deps.OpTimeout,
		relayMinBackoff: deps.RelayMinBackoff,
		relayMaxBackoff: deps.RelayMaxBackoff,
		now:             deps.Now,
	}

	if s.logger == nil {
		s.logger = logger.Nop()
	}
	if s.opTimeout <= 0 {
		s.opTimeout = defaultOpTimeout
	}
	if s.relayMinBackoff <= 0 {
		s.relayMinBackoff = defaultRelayMinBackoff
	}
	if s.relayMaxBackoff < s.relayMinBackoff {
		s.relayMaxBackoff = max(defaultRelayMaxBackoff, s.relayMinBackoff)
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// BusReady reports whether the relay currently holds a bus subscription.
// false means this instance only serves its own connections.
func (service *Service) BusReady() bool {
	return service.busReady.Load()
}

func (service *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, service.opTimeout)
}
