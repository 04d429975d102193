package session

import (
	"errors"
	"strings"
	"sync"

	"github.com/google/uuid"

	"fleet-tracker/internal/domain/user"
)

var (
	ErrUserIDRequired  = errors.New("user id is required")
	ErrProfileRequired = errors.New("profile id is required for this role")
)

// Session is the per-connection identity created at handshake. Identity fields never change
// after New; only the lifecycle state and the driver's duty flag move.
type Session struct {
	ID         string
	UserID     string
	UserName   string
	Role       user.Role
	DriverID   string
	CustomerID string
	Caps       Capabilities

	mu     sync.Mutex
	state  State
	onDuty bool
}

// New builds a session for an authenticated identity. profileID is the driver profile for
// drivers, the customer profile for customers and ignored otherwise.
func New(identity user.Identity, profileID string) (*Session, error) {
	if strings.TrimSpace(identity.ID) == "" {
		return nil, ErrUserIDRequired
	}
	if !identity.Role.Valid() {
		return nil, user.ErrInvalidRole
	}

	s := &Session{
		ID:       uuid.NewString(),
		UserID:   identity.ID,
		UserName: identity.Name,
		Role:     identity.Role,
		Caps:     CapabilitiesFor(identity.Role),
		state:    StateConnecting,
		onDuty:   true,
	}

	profileID = strings.TrimSpace(profileID)
	switch {
	case identity.Role.IsDriver():
		if profileID == "" {
			return nil, ErrProfileRequired
		}
		s.DriverID = profileID
	case identity.Role.IsCustomer():
		if profileID == "" {
			return nil, ErrProfileRequired
		}
		s.CustomerID = profileID
	}

	return s, nil
}

func (s *Session) IsDriver() bool { return s.Role.IsDriver() && s.DriverID != "" }

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Transition moves the session to next or returns ErrIllegalTransition.
func (s *Session) Transition(next State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.state.CanTransition(next) {
		return transitionError(s.state, next)
	}
	s.state = next
	return nil
}

// OnDuty is the driver's current duty status, used when a location update omits it.
func (s *Session) OnDuty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.onDuty
}

func (s *Session) SetOnDuty(onDuty bool) {
	s.mu.Lock()
	s.onDuty = onDuty
	s.mu.Unlock()
}
