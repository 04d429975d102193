package user

import "testing"

func TestParseRole(t *testing.T) {
	tests := []struct {
		in      string
		want    Role
		wantErr bool
	}{
		{in: "admin", want: RoleAdmin},
		{in: " Dispatcher ", want: RoleDispatcher},
		{in: "DRIVER", want: RoleDriver},
		{in: "customer", want: RoleCustomer},
		{in: "passenger", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParseRole(tt.in)
		if (err != nil) != tt.wantErr {
			t.Fatalf("ParseRole(%q) err=%v wantErr=%v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParseRole(%q)=%q want %q", tt.in, got, tt.want)
		}
	}
}

func TestPrivileged(t *testing.T) {
	for role, want := range map[Role]bool{
		RoleAdmin: true, RoleDispatcher: true, RoleDriver: false, RoleCustomer: false,
	} {
		if role.Privileged() != want {
			t.Errorf("%s.Privileged()=%v", role, !want)
		}
	}
}

func TestIdentityCanConnect(t *testing.T) {
	tests := []struct {
		name   string
		status Status
		role   Role
		want   bool
	}{
		{"active driver", StatusActive, RoleDriver, true},
		{"suspended", StatusSuspended, RoleDriver, false},
		{"inactive", StatusInactive, RoleAdmin, false},
		{"unknown role", StatusActive, Role("GUEST"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id := NewIdentity("u1", "Ali", tt.role, tt.status)
			if got := id.CanConnect(); got != tt.want {
				t.Errorf("CanConnect()=%v want %v", got, tt.want)
			}
		})
	}
}
