package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"fleet-tracker/internal/domain/user"
)

// IdentityRepo resolves accounts and their driver/customer profiles.
type IdentityRepo struct {
	db dbtx
}

func NewIdentityRepo(db dbtx) *IdentityRepo {
	return &IdentityRepo{db: db}
}

// GetIdentity returns nil, nil for an unknown user.
func (repo *IdentityRepo) GetIdentity(ctx context.Context, userID string) (*user.Identity, error) {
	var (
		id, name   string
		roleText   string
		statusText string
	)

	err := repo.db.QueryRow(ctx, `
		SELECT id::text, name, role, status
		FROM users
		WHERE id::text = $1
	`, userID).Scan(&id, &name, &roleText, &statusText)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select user: %w", err)
	}

	// unknown role/status values leave an identity that cannot connect
	role, _ := user.ParseRole(roleText)
	status, _ := user.ParseStatus(statusText)

	identity := user.NewIdentity(id, name, role, status)
	return &identity, nil
}

// LookupProfile returns the driver profile id for drivers and the customer profile id for
// customers; "" when the user has none or the role carries no profile.
func (repo *IdentityRepo) LookupProfile(ctx context.Context, userID string, role user.Role) (string, error) {
	var query string
	switch role {
	case user.RoleDriver:
		query = `SELECT id::text FROM drivers WHERE user_id::text = $1`
	case user.RoleCustomer:
		query = `SELECT id::text FROM customers WHERE user_id::text = $1`
	default:
		return "", nil
	}

	var profileID string
	err := repo.db.QueryRow(ctx, query, userID).Scan(&profileID)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("select %s profile: %w", role, err)
	}
	return profileID, nil
}
