package contracts

import "testing"

func TestParseRoom(t *testing.T) {
	tests := []struct {
		room   string
		kind   RoomKind
		wantID string
	}{
		{"admins", RoomKindAdmins, ""},
		{"drivers", RoomKindDrivers, ""},
		{DriverRoom("d-1"), RoomKindDriver, "d-1"},
		{CustomerRoom("c-7"), RoomKindCustomer, "c-7"},
		{OrderRoom("42"), RoomKindOrder, "42"},
		{"customer:", RoomUnknown, ""},
		{"order:1:2", RoomUnknown, ""},
		{"staff", RoomUnknown, ""},
		{"", RoomUnknown, ""},
	}
	for _, tt := range tests {
		kind, id := ParseRoom(tt.room)
		if kind != tt.kind || id != tt.wantID {
			t.Errorf("ParseRoom(%q)=(%v,%q) want (%v,%q)", tt.room, kind, id, tt.kind, tt.wantID)
		}
	}
}
