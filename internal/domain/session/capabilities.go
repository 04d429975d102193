package session

import (
	"fleet-tracker/internal/domain/user"
	"fleet-tracker/internal/general/contracts"
)

// Capabilities is what a role may do over a live connection.
type Capabilities struct {
	WatchFleet      bool // joins admins, reads /drivers/*
	PublishOrders   bool
	UpdateLocation  bool
	ToggleDuty      bool
	JoinOwnCustomer bool
	JoinOrderRooms  bool
}

var capabilityTable = map[user.Role]Capabilities{
	user.RoleAdmin: {
		WatchFleet:     true,
		PublishOrders:  true,
		JoinOrderRooms: true,
	},
	user.RoleDispatcher: {
		WatchFleet:     true,
		PublishOrders:  true,
		JoinOrderRooms: true,
	},
	user.RoleDriver: {
		UpdateLocation: true,
		ToggleDuty:     true,
		JoinOrderRooms: true,
	},
	user.RoleCustomer: {
		JoinOwnCustomer: true,
		JoinOrderRooms:  true,
	},
}

// CapabilitiesFor returns the capability table entry for role; unknown roles get nothing.
func CapabilitiesFor(role user.Role) Capabilities {
	return capabilityTable[role]
}

// CanJoin decides whether a room:join / room:leave for room is honoured.
// Rooms the session joined on connect are managed by the gateway and never go through here.
func (s *Session) CanJoin(room string) bool {
	kind, id := contracts.ParseRoom(room)
	switch kind {
	case contracts.RoomKindOrder:
		return s.Caps.JoinOrderRooms
	case contracts.RoomKindCustomer:
		return s.Caps.JoinOwnCustomer && s.CustomerID != "" && id == s.CustomerID
	default:
		return false
	}
}

// InitialRooms are joined on connect, derived from the role.
func (s *Session) InitialRooms() []string {
	var rooms []string
	if s.Caps.WatchFleet {
		rooms = append(rooms, contracts.RoomAdmins)
	}
	if s.IsDriver() {
		rooms = append(rooms, contracts.RoomDrivers, contracts.DriverRoom(s.DriverID))
	}
	if s.Role.IsCustomer() && s.CustomerID != "" {
		rooms = append(rooms, contracts.CustomerRoom(s.CustomerID))
	}
	return rooms
}
