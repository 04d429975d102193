package tracking

import (
	"encoding/json"
	"errors"
	"time"
)

var ErrMissingDuty = errors.New("isOnDuty is required")

// PresenceEvent is the driver:presence payload.
type PresenceEvent struct {
	DriverID   string    `json:"driverId"`
	DriverName string    `json:"driverName"`
	IsOnline   bool      `json:"isOnline"`
	IsOnDuty   bool      `json:"isOnDuty"`
	Timestamp  time.Time `json:"timestamp"`
}

// DutyToggle is the body of duty:toggle.
type DutyToggle struct {
	IsOnDuty *bool `json:"isOnDuty"`
}

// DecodeDutyToggle parses and validates a duty:toggle body.
func DecodeDutyToggle(data []byte) (DutyToggle, error) {
	var toggle DutyToggle
	if err := json.Unmarshal(data, &toggle); err != nil {
		return DutyToggle{}, Validation("duty:toggle", "malformed payload", err)
	}
	if toggle.IsOnDuty == nil {
		return DutyToggle{}, Validation("duty:toggle", "", ErrMissingDuty)
	}
	return toggle, nil
}
