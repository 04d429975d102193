package geo

import (
	"errors"
	"math"
)

var (
	ErrInvalidLatitude  = errors.New("latitude must be between -90 and 90")
	ErrInvalidLongitude = errors.New("longitude must be between -180 and 180")
	ErrInvalidHeading   = errors.New("heading must be between 0 and 360")
	ErrNegativeSpeed    = errors.New("speed cannot be negative")
	ErrNegativeAccuracy = errors.New("accuracy cannot be negative")
)

// Point is a WGS84 position.
type Point struct {
	Latitude  float64
	Longitude float64
}

// Validate checks the latitude/longitude ranges.
func (point Point) Validate() error {
	if math.IsNaN(point.Latitude) || point.Latitude < -90 || point.Latitude > 90 {
		return ErrInvalidLatitude
	}
	if math.IsNaN(point.Longitude) || point.Longitude < -180 || point.Longitude > 180 {
		return ErrInvalidLongitude
	}
	return nil
}

// ValidateHeading checks a compass heading in degrees.
func ValidateHeading(heading float64) error {
	if math.IsNaN(heading) || heading < 0 || heading > 360 {
		return ErrInvalidHeading
	}
	return nil
}
