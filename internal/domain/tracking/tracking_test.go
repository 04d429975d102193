package tracking

import (
	"errors"
	"strings"
	"testing"
	"time"

	"fleet-tracker/internal/domain/geo"
)

func TestDecodeLocationUpdate(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr error
	}{
		{name: "minimal", body: `{"latitude":9.03,"longitude":38.74}`},
		{name: "full", body: `{"latitude":9.03,"longitude":38.74,"accuracy":5,"speed":12.5,"heading":359,"isMoving":true,"batteryLevel":80,"isOnDuty":false}`},
		{name: "missing longitude", body: `{"latitude":9.03}`, wantErr: ErrMissingCoordinates},
		{name: "latitude out of range", body: `{"latitude":91,"longitude":0}`, wantErr: geo.ErrInvalidLatitude},
		{name: "longitude out of range", body: `{"latitude":0,"longitude":-181}`, wantErr: geo.ErrInvalidLongitude},
		{name: "heading out of range", body: `{"latitude":0,"longitude":0,"heading":361}`, wantErr: geo.ErrInvalidHeading},
		{name: "negative speed", body: `{"latitude":0,"longitude":0,"speed":-1}`, wantErr: geo.ErrNegativeSpeed},
		{name: "negative accuracy", body: `{"latitude":0,"longitude":0,"accuracy":-0.1}`, wantErr: geo.ErrNegativeAccuracy},
		{name: "battery above 100", body: `{"latitude":0,"longitude":0,"batteryLevel":101}`, wantErr: ErrInvalidBattery},
		{name: "not an object", body: `"hello"`, wantErr: ErrValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeLocationUpdate([]byte(tt.body))
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("got %v, want %v", err, tt.wantErr)
			}
			if !errors.Is(err, ErrValidation) {
				t.Errorf("every decode failure must be a validation error: %v", err)
			}
		})
	}
}

func TestNewLocationRecordDutyFallback(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.FixedZone("EAT", 3*3600))
	update, err := DecodeLocationUpdate([]byte(`{"latitude":1,"longitude":2}`))
	if err != nil {
		t.Fatal(err)
	}

	rec := NewLocationRecord("d1", "Abebe", update, false, now)
	if rec.IsOnDuty {
		t.Error("omitted isOnDuty should take the current duty status")
	}
	if !rec.Timestamp.Equal(now) || rec.Timestamp.Location() != time.UTC {
		t.Errorf("timestamp should be server time in UTC, got %v", rec.Timestamp)
	}

	onDuty := true
	update.IsOnDuty = &onDuty
	if rec := NewLocationRecord("d1", "Abebe", update, false, now); !rec.IsOnDuty {
		t.Error("explicit isOnDuty should win")
	}
}

func TestDecodeDutyToggle(t *testing.T) {
	if _, err := DecodeDutyToggle([]byte(`{}`)); !errors.Is(err, ErrMissingDuty) {
		t.Errorf("expected ErrMissingDuty, got %v", err)
	}
	toggle, err := DecodeDutyToggle([]byte(`{"isOnDuty":false}`))
	if err != nil || toggle.IsOnDuty == nil || *toggle.IsOnDuty {
		t.Errorf("unexpected toggle %+v err=%v", toggle, err)
	}
}

func TestOrderStatusEventValidate(t *testing.T) {
	ok := OrderStatusEvent{OrderID: "o1", Status: "PICKED_UP", CustomerID: "c1"}
	if err := ok.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	missing := OrderStatusEvent{OrderID: "o1", Status: " "}
	if err := missing.Validate(); !errors.Is(err, ErrIncompleteOrderEvent) {
		t.Errorf("expected ErrIncompleteOrderEvent, got %v", err)
	}
}

func TestPublicMessage(t *testing.T) {
	infra := TransientInfra("cache_location", "could not store location", errors.New("dial tcp 10.0.0.1:6379: refused"))
	if msg := PublicMessage(infra); strings.Contains(msg, "10.0.0.1") {
		t.Errorf("infra causes must not leak: %q", msg)
	}
	if !errors.Is(infra, ErrTransientInfra) {
		t.Error("kind should be reachable with errors.Is")
	}

	_, err := DecodeLocationUpdate([]byte(`{"latitude":100,"longitude":0}`))
	if msg := PublicMessage(err); !strings.Contains(msg, "latitude") {
		t.Errorf("validation message should describe the field: %q", msg)
	}

	if msg := PublicMessage(errors.New("raw")); msg != "internal error" {
		t.Errorf("unexpected message for foreign error: %q", msg)
	}
}
