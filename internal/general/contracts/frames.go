package contracts

import (
	"encoding/json"
	"time"
)

// Frame is the single message shape on the socket in both directions:
//
//	{"type":"location:update","data":{...}}
type Frame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// OutboundFrame is marshaled once per emit and written to every member of a room.
type OutboundFrame struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Envelope is one message on the event bus.
type Envelope struct {
	Channel string
	Payload json.RawMessage
}

// ErrorPayload is the body of connection:error.
type ErrorPayload struct {
	Message string `json:"message"`
}

// RoomPayload is the body of room:join / room:leave.
type RoomPayload struct {
	Room string `json:"room"`
}

// DriverSnapshot is one row of the durable polling endpoint.
type DriverSnapshot struct {
	DriverID           string     `json:"driverId"`
	DriverName         string     `json:"driverName,omitempty"`
	LastLatitude       *float64   `json:"lastLatitude"`
	LastLongitude      *float64   `json:"lastLongitude"`
	IsOnDuty           bool       `json:"isOnDuty"`
	LastLocationUpdate *time.Time `json:"lastLocationUpdate"`
}
