package cli

import (
	"fmt"
	"time"

	"fleet-tracker/internal/domain/user"
	"fleet-tracker/internal/general/jwt"
)

// GenerateUserToken mints a JWT for a seeded user.
//
// Typical use (dev-only):
//
//	token, _, err := cli.GenerateUserToken(secret, 2*time.Hour,
//	    "550e8400-e29b-41d4-a716-446655440001", "Ops", "ADMIN")
//
// The gateway still checks the user and role against the database, so a token for an
// unknown or suspended account is rejected at the handshake.
func GenerateUserToken(secret string, ttl time.Duration, userID, name, roleStr string) (string, jwt.Claims, error) {
	// parse and validate the role
	role, err := user.ParseRole(roleStr)
	if err != nil {
		return "", jwt.Claims{}, fmt.Errorf("invalid role %q: %w", roleStr, err)
	}
	if ttl <= 0 {
		return "", jwt.Claims{}, fmt.Errorf("ttl must be positive, got %s", ttl)
	}

	mgr := jwt.NewManager(secret, ttl)

	token, claims, err := mgr.IssueUserToken(userID, name, role)
	if err != nil {
		return "", jwt.Claims{}, fmt.Errorf("issue token: %w", err)
	}

	return token, *claims, nil
}
