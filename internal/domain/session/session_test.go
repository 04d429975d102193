package session

import (
	"errors"
	"slices"
	"testing"

	"fleet-tracker/internal/domain/user"
)

func identity(id string, role user.Role) user.Identity {
	return user.NewIdentity(id, "Name "+id, role, user.StatusActive)
}

func TestNewRequiresProfileForDriversAndCustomers(t *testing.T) {
	if _, err := New(identity("u1", user.RoleDriver), ""); !errors.Is(err, ErrProfileRequired) {
		t.Errorf("driver without profile: got %v", err)
	}
	if _, err := New(identity("u2", user.RoleCustomer), " "); !errors.Is(err, ErrProfileRequired) {
		t.Errorf("customer without profile: got %v", err)
	}
	if _, err := New(identity("", user.RoleAdmin), ""); !errors.Is(err, ErrUserIDRequired) {
		t.Errorf("empty user id: got %v", err)
	}
	if _, err := New(identity("u3", user.Role("PILOT")), ""); !errors.Is(err, user.ErrInvalidRole) {
		t.Errorf("unknown role: got %v", err)
	}

	s, err := New(identity("u4", user.RoleDispatcher), "ignored")
	if err != nil {
		t.Fatal(err)
	}
	if s.DriverID != "" || s.CustomerID != "" {
		t.Errorf("dispatcher must not carry profile ids: %+v", s)
	}
	if s.ID == "" || s.State() != StateConnecting {
		t.Errorf("fresh session should have an id and start CONNECTING: %q %s", s.ID, s.State())
	}
}

func TestInitialRooms(t *testing.T) {
	tests := []struct {
		role    user.Role
		profile string
		want    []string
	}{
		{user.RoleAdmin, "", []string{"admins"}},
		{user.RoleDispatcher, "", []string{"admins"}},
		{user.RoleDriver, "d1", []string{"drivers", "driver:d1"}},
		{user.RoleCustomer, "c1", []string{"customer:c1"}},
	}

	for _, tt := range tests {
		t.Run(tt.role.String(), func(t *testing.T) {
			s, err := New(identity("u", tt.role), tt.profile)
			if err != nil {
				t.Fatal(err)
			}
			if got := s.InitialRooms(); !slices.Equal(got, tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCanJoin(t *testing.T) {
	customer, _ := New(identity("u1", user.RoleCustomer), "c1")
	admin, _ := New(identity("u2", user.RoleAdmin), "")
	driver, _ := New(identity("u3", user.RoleDriver), "d1")

	tests := []struct {
		name string
		s    *Session
		room string
		want bool
	}{
		{"customer own room", customer, "customer:c1", true},
		{"customer other room", customer, "customer:c2", false},
		{"customer order room", customer, "order:o1", true},
		{"customer admins", customer, "admins", false},
		{"customer drivers", customer, "drivers", false},
		{"admin customer room", admin, "customer:c1", false},
		{"admin order room", admin, "order:o9", true},
		{"driver other driver room", driver, "driver:d2", false},
		{"driver order room", driver, "order:o1", true},
		{"garbage", driver, "order:", false},
		{"unknown pattern", admin, "fleet:all", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.s.CanJoin(tt.room); got != tt.want {
				t.Errorf("CanJoin(%q) = %v, want %v", tt.room, got, tt.want)
			}
		})
	}
}

func TestCapabilitiesResolvedOnce(t *testing.T) {
	driver, _ := New(identity("u", user.RoleDriver), "d1")
	if !driver.Caps.UpdateLocation || !driver.Caps.ToggleDuty || driver.Caps.WatchFleet {
		t.Errorf("unexpected driver capabilities: %+v", driver.Caps)
	}
	if (CapabilitiesFor(user.Role("X")) != Capabilities{}) {
		t.Error("unknown role must have no capabilities")
	}
}

func TestTransitions(t *testing.T) {
	s, _ := New(identity("u", user.RoleAdmin), "")

	if err := s.Transition(StateActive); !errors.Is(err, ErrIllegalTransition) {
		t.Fatalf("CONNECTING -> ACTIVE should fail, got %v", err)
	}
	for _, next := range []State{StateAuthenticated, StateActive, StateDisconnected} {
		if err := s.Transition(next); err != nil {
			t.Fatalf("transition to %s: %v", next, err)
		}
	}
	if err := s.Transition(StateDisconnected); !errors.Is(err, ErrIllegalTransition) {
		t.Errorf("DISCONNECTED is terminal, got %v", err)
	}
	if err := s.Transition(StateConnecting); err == nil {
		t.Error("no resumption allowed")
	}
}

func TestDutyFlag(t *testing.T) {
	s, _ := New(identity("u", user.RoleDriver), "d1")
	if !s.OnDuty() {
		t.Error("drivers start on duty")
	}
	s.SetOnDuty(false)
	if s.OnDuty() {
		t.Error("duty flag not updated")
	}
}
