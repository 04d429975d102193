package contracts

import "strings"

// Room names.
const (
	RoomAdmins  = "admins"
	RoomDrivers = "drivers"

	roomDriverPrefix   = "driver:"
	roomCustomerPrefix = "customer:"
	roomOrderPrefix    = "order:"
)

// RoomKind classifies a room name by its pattern.
type RoomKind int

const (
	RoomUnknown RoomKind = iota
	RoomKindAdmins
	RoomKindDrivers
	RoomKindDriver
	RoomKindCustomer
	RoomKindOrder
)

func DriverRoom(driverID string) string     { return roomDriverPrefix + driverID }
func CustomerRoom(customerID string) string { return roomCustomerPrefix + customerID }
func OrderRoom(orderID string) string       { return roomOrderPrefix + orderID }

// ParseRoom splits a room name into its kind and the id it carries (if any).
// Names with an empty id or an unknown pattern come back as RoomUnknown.
func ParseRoom(room string) (RoomKind, string) {
	switch {
	case room == RoomAdmins:
		return RoomKindAdmins, ""
	case room == RoomDrivers:
		return RoomKindDrivers, ""
	}

	for prefix, kind := range map[string]RoomKind{
		roomDriverPrefix:   RoomKindDriver,
		roomCustomerPrefix: RoomKindCustomer,
		roomOrderPrefix:    RoomKindOrder,
	} {
		if id, ok := strings.CutPrefix(room, prefix); ok {
			if strings.TrimSpace(id) == "" || strings.ContainsAny(id, ": ") {
				return RoomUnknown, ""
			}
			return kind, id
		}
	}
	return RoomUnknown, ""
}
