package tracking

import (
	"encoding/json"
	"errors"
	"time"

	"fleet-tracker/internal/domain/geo"
)

// Expiry windows. Presence outlives the location so a driver who stops sending positions
// is still online briefly with a stale (absent) location.
const (
	LocationTTL = 60 * time.Second
	PresenceTTL = 90 * time.Second
)

var (
	ErrMissingCoordinates = errors.New("latitude and longitude are required")
	ErrInvalidBattery     = errors.New("batteryLevel must be between 0 and 100")
)

// LocationUpdate is the body of location:update.
type LocationUpdate struct {
	Latitude     *float64 `json:"latitude"`
	Longitude    *float64 `json:"longitude"`
	Accuracy     *float64 `json:"accuracy,omitempty"`
	Speed        *float64 `json:"speed,omitempty"`
	Heading      *float64 `json:"heading,omitempty"`
	IsMoving     *bool    `json:"isMoving,omitempty"`
	BatteryLevel *float64 `json:"batteryLevel,omitempty"`
	IsOnDuty     *bool    `json:"isOnDuty,omitempty"`
}

// DecodeLocationUpdate parses and validates a location:update body.
func DecodeLocationUpdate(data []byte) (LocationUpdate, error) {
	var update LocationUpdate
	if err := json.Unmarshal(data, &update); err != nil {
		return LocationUpdate{}, Validation("location:update", "malformed payload", err)
	}
	if err := update.Validate(); err != nil {
		return LocationUpdate{}, Validation("location:update", "", err)
	}
	return update, nil
}

// Validate checks presence and ranges of every field.
func (update LocationUpdate) Validate() error {
	if update.Latitude == nil || update.Longitude == nil {
		return ErrMissingCoordinates
	}
	if err := (geo.Point{Latitude: *update.Latitude, Longitude: *update.Longitude}).Validate(); err != nil {
		return err
	}
	if update.Heading != nil {
		if err := geo.ValidateHeading(*update.Heading); err != nil {
			return err
		}
	}
	if update.Speed != nil && *update.Speed < 0 {
		return geo.ErrNegativeSpeed
	}
	if update.Accuracy != nil && *update.Accuracy < 0 {
		return geo.ErrNegativeAccuracy
	}
	if update.BatteryLevel != nil && (*update.BatteryLevel < 0 || *update.BatteryLevel > 100) {
		return ErrInvalidBattery
	}
	return nil
}

// LocationRecord is the one live location per driver. It is also the driver:location payload.
type LocationRecord struct {
	DriverID     string    `json:"driverId"`
	DriverName   string    `json:"driverName"`
	Latitude     float64   `json:"latitude"`
	Longitude    float64   `json:"longitude"`
	Accuracy     *float64  `json:"accuracy,omitempty"`
	Speed        *float64  `json:"speed,omitempty"`
	Heading      *float64  `json:"heading,omitempty"`
	IsMoving     *bool     `json:"isMoving,omitempty"`
	BatteryLevel *float64  `json:"batteryLevel,omitempty"`
	IsOnDuty     bool      `json:"isOnDuty"`
	Timestamp    time.Time `json:"timestamp"`
}

// NewLocationRecord stamps a validated update with the driver identity and the server time.
// When the update omits isOnDuty, onDuty (the driver's current duty status) is used.
func NewLocationRecord(driverID, driverName string, update LocationUpdate, onDuty bool, now time.Time) LocationRecord {
	if update.IsOnDuty != nil {
		onDuty = *update.IsOnDuty
	}
	return LocationRecord{
		DriverID:     driverID,
		DriverName:   driverName,
		Latitude:     *update.Latitude,
		Longitude:    *update.Longitude,
		Accuracy:     update.Accuracy,
		Speed:        update.Speed,
		Heading:      update.Heading,
		IsMoving:     update.IsMoving,
		BatteryLevel: update.BatteryLevel,
		IsOnDuty:     onDuty,
		Timestamp:    now.UTC(),
	}
}
