package contracts

// Bus channels. Payloads mirror the outbound event shapes, JSON-encoded.
const (
	ChannelDriverLocations = "driver-locations"
	ChannelDriverPresence  = "driver-presence"
	ChannelOrderUpdates    = "order-updates"
)

// Channels lists every channel a gateway relays.
var Channels = []string{ChannelDriverLocations, ChannelDriverPresence, ChannelOrderUpdates}

// Inbound events (client -> gateway).
const (
	EventLocationUpdate = "location:update"
	EventDutyToggle     = "duty:toggle"
	EventRoomJoin       = "room:join"
	EventRoomLeave      = "room:leave"
)

// Outbound events (gateway -> client).
const (
	EventDriverLocation  = "driver:location"
	EventDriverPresence  = "driver:presence"
	EventOrderStatus     = "order:status"
	EventConnectionError = "connection:error"
)
