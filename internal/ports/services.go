package ports

import (
	"context"

	"fleet-tracker/internal/domain/session"
	"fleet-tracker/internal/domain/tracking"
	"fleet-tracker/internal/general/contracts"
)

// ----- Gateway Service Interface -----

// GatewayService is everything the transport layer needs from the connection gateway.
type GatewayService interface {
	// connection lifecycle
	Authenticate(ctx context.Context, token string) (*session.Session, error)
	OnConnect(ctx context.Context, sess *session.Session) error
	Dispatch(ctx context.Context, sess *session.Session, raw []byte)
	Heartbeat(ctx context.Context, sess *session.Session) error
	OnDisconnect(ctx context.Context, sess *session.Session, reason string) tracking.CleanupReport

	// server-side emits and reads
	PublishOrderStatus(ctx context.Context, event tracking.OrderStatusEvent) error
	LiveState(ctx context.Context) (tracking.LiveState, error)
	DriverSnapshots(ctx context.Context) ([]contracts.DriverSnapshot, error)
	BusReady() bool
}
