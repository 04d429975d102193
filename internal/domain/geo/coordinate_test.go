package geo

import (
	"errors"
	"math"
	"testing"
)

func TestPointValidate(t *testing.T) {
	tests := []struct {
		name string
		p    Point
		want error
	}{
		{"karachi", Point{24.86, 67.00}, nil},
		{"poles and antimeridian", Point{-90, 180}, nil},
		{"lat too high", Point{90.0001, 0}, ErrInvalidLatitude},
		{"lng too low", Point{0, -180.5}, ErrInvalidLongitude},
		{"nan latitude", Point{math.NaN(), 0}, ErrInvalidLatitude},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.p.Validate(); !errors.Is(got, tt.want) {
				t.Errorf("Validate()=%v want %v", got, tt.want)
			}
		})
	}
}

func TestValidateHeading(t *testing.T) {
	for _, h := range []float64{0, 180, 360} {
		if err := ValidateHeading(h); err != nil {
			t.Errorf("heading %v rejected: %v", h, err)
		}
	}
	for _, h := range []float64{-1, 360.1} {
		if err := ValidateHeading(h); !errors.Is(err, ErrInvalidHeading) {
			t.Errorf("heading %v accepted", h)
		}
	}
}
