package jwt

import (
	"net/http"
	"slices"

	"fleet-tracker/internal/domain/user"
	"fleet-tracker/internal/ports"
)

// AuthMiddlewareFunc verifies the bearer token and injects the identity into the request context.
// Used for the HTTP routes; the WebSocket handshake authenticates through the gateway service.
func AuthMiddlewareFunc(verifier ports.TokenVerifier, allowedRoles ...user.Role) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			raw, err := FromAuthorization(r)
			if err != nil {
				http.Error(w, err.Error(), http.StatusUnauthorized)
				return
			}

			identity, err := verifier.VerifyToken(r.Context(), raw)
			if err != nil {
				http.Error(w, "identity lookup unavailable", http.StatusServiceUnavailable)
				return
			}
			if identity == nil || !identity.CanConnect() {
				http.Error(w, "invalid token or inactive account", http.StatusUnauthorized)
				return
			}

			// enforce role-based access control (RBAC)
			if len(allowedRoles) > 0 && !slices.Contains(allowedRoles, identity.Role) {
				http.Error(w, ErrRoleForbidden.Error(), http.StatusForbidden)
				return
			}

			next(w, r.WithContext(InjectIdentity(r.Context(), identity)))
		}
	}
}

// RequireIdentity extracts the verified identity from the request context.
func RequireIdentity(r *http.Request) *user.Identity {
	identity, _ := IdentityFromContext(r.Context())
	return identity
}
