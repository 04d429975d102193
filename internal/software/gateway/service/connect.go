package service

import (
	"context"
	"strings"

	"fleet-tracker/internal/domain/session"
	"fleet-tracker/internal/domain/tracking"
)

// Authenticate turns a handshake credential into a Session. It runs before the upgrade,
// so a rejected client never joins a room.
func (service *Service) Authenticate(ctx context.Context, token string) (*session.Session, error) {
	const op = "authenticate"

	if strings.TrimSpace(token) == "" {
		return nil, tracking.Authentication(op, "missing token", nil)
	}

	vctx, cancel := service.withTimeout(ctx)
	identity, err := service.verifier.VerifyToken(vctx, token)
	cancel()
	if err != nil {
		return nil, tracking.TransientInfra(op, "identity lookup failed", err)
	}
	if identity == nil {
		return nil, tracking.Authentication(op, "invalid token", nil)
	}
	if !identity.CanConnect() {
		return nil, tracking.Authentication(op, "account suspended or inactive", nil)
	}

	var profileID string
	if identity.Role.IsDriver() || identity.Role.IsCustomer() {
		pctx, cancel := service.withTimeout(ctx)
		profileID, err = service.profiles.LookupProfile(pctx, identity.ID, identity.Role)
		cancel()
		if err != nil {
			return nil, tracking.TransientInfra(op, "profile lookup failed", err)
		}
		if profileID == "" {
			return nil, tracking.Authentication(op, "no profile for account", nil)
		}
	}

	sess, err := session.New(*identity, profileID)
	if err != nil {
		return nil, tracking.Authentication(op, "", err)
	}
	if err := sess.Transition(session.StateAuthenticated); err != nil {
		return nil, err
	}
	return sess, nil
}

// OnConnect joins the role-derived rooms and marks a driver online.
func (service *Service) OnConnect(ctx context.Context, sess *session.Session) error {
	if err := sess.Transition(session.StateActive); err != nil {
		return err
	}

	rooms := sess.InitialRooms()
	for _, room := range rooms {
		service.rooms.Join(sess.ID, room)
	}

	if sess.IsDriver() {
		sctx, cancel := service.withTimeout(ctx)
		// resume the duty status a previous connection left in the cache
		if rec, err := service.store.GetLocation(sctx, sess.DriverID); err == nil && rec != nil {
			sess.SetOnDuty(rec.IsOnDuty)
		}
		if err := service.store.SetOnline(sctx, sess.DriverID); err != nil {
			service.logger.Warn(ctx, "driver_online_failed", "Failed to mark driver online", map[string]any{
				"driver_id": sess.DriverID,
				"error":     err.Error(),
			})
		}
		cancel()
	}

	service.logger.Info(ctx, "client_connected", "Client connected", map[string]any{
		"session_id": sess.ID,
		"user_id":    sess.UserID,
		"role":       sess.Role.String(),
		"driver_id":  sess.DriverID,
		"rooms":      rooms,
	})
	return nil
}
