package jwt

import (
	"context"
	"fmt"

	"fleet-tracker/internal/domain/user"
	"fleet-tracker/internal/ports"
)

// Verifier exchanges a bearer token for the account it names. The database is the source of
// truth for role and status; the token only proves who is asking.
type Verifier struct {
	mgr        *Manager
	identities ports.IdentityRepository
}

func NewVerifier(mgr *Manager, identities ports.IdentityRepository) *Verifier {
	return &Verifier{mgr: mgr, identities: identities}
}

// VerifyToken returns nil, nil for a rejected token and an error only when the account
// could not be looked up. Suspended or inactive accounts are returned as-is; callers decide.
func (v *Verifier) VerifyToken(ctx context.Context, raw string) (*user.Identity, error) {
	if raw == "" {
		return nil, nil
	}

	_, claims, err := v.mgr.ParseAndValidate(raw)
	if err != nil {
		return nil, nil
	}

	identity, err := v.identities.GetIdentity(ctx, claims.Subject)
	if err != nil {
		return nil, fmt.Errorf("lookup identity: %w", err)
	}
	if identity == nil || identity.Role != claims.Role {
		return nil, nil
	}

	return identity, nil
}
