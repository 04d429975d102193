package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"fleet-tracker/internal/general/contracts"
	"fleet-tracker/internal/general/logger"
)

// fakeWire records frames instead of writing to a socket.
type fakeWire struct {
	mu       sync.Mutex
	frames   [][]byte
	controls []int
	failNext bool
	closed   bool
}

func (f *fakeWire) WriteMessage(_ int, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failNext {
		return errors.New("broken pipe")
	}
	f.frames = append(f.frames, append([]byte(nil), data...))
	return nil
}

func (f *fakeWire) WriteControl(messageType int, _ []byte, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.controls = append(f.controls, messageType)
	return nil
}

func (f *fakeWire) SetWriteDeadline(time.Time) error { return nil }

func (f *fakeWire) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeWire) events(t *testing.T) []contracts.Frame {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]contracts.Frame, 0, len(f.frames))
	for _, raw := range f.frames {
		var frame contracts.Frame
		if err := json.Unmarshal(raw, &frame); err != nil {
			t.Fatalf("bad frame %s: %v", raw, err)
		}
		out = append(out, frame)
	}
	return out
}

func attach(h *Hub, id string) *fakeWire {
	wire := &fakeWire{}
	h.Register(newConn(id, wire))
	return wire
}

func TestHubEmitReachesOnlyRoomMembers(t *testing.T) {
	h := NewHub(logger.Nop())
	admin := attach(h, "c-admin")
	driver := attach(h, "c-driver")

	h.Join("c-admin", contracts.RoomAdmins)
	h.Join("c-driver", contracts.RoomDrivers)

	n := h.Emit(context.Background(), contracts.RoomAdmins, contracts.EventDriverLocation, map[string]any{"driverId": "d1"})
	if n != 1 {
		t.Errorf("delivered = %d, want 1", n)
	}

	got := admin.events(t)
	if len(got) != 1 || got[0].Type != contracts.EventDriverLocation || string(got[0].Data) != `{"driverId":"d1"}` {
		t.Errorf("unexpected admin frames %+v", got)
	}
	if len(driver.events(t)) != 0 {
		t.Error("driver must not receive admin events")
	}
}

func TestHubUnregisterLeavesAllRooms(t *testing.T) {
	h := NewHub(logger.Nop())
	attach(h, "c1")
	h.Join("c1", "admins")
	h.Join("c1", "order:o1")

	if rooms := h.Rooms("c1"); !slices.Equal(rooms, []string{"admins", "order:o1"}) {
		t.Fatalf("rooms = %v", rooms)
	}

	h.Unregister("c1")
	if len(h.Members("admins")) != 0 || len(h.Members("order:o1")) != 0 || h.Count() != 0 {
		t.Error("connection still referenced after unregister")
	}
	if h.Join("c1", "admins") {
		t.Error("join after unregister must fail")
	}
}

func TestHubLeave(t *testing.T) {
	h := NewHub(logger.Nop())
	wire := attach(h, "c1")
	h.Join("c1", "order:o1")
	h.Leave("c1", "order:o1")
	h.Leave("c1", "order:o1")

	h.Emit(context.Background(), "order:o1", contracts.EventOrderStatus, struct{}{})
	if len(wire.events(t)) != 0 {
		t.Error("left room still delivered")
	}
}

func TestHubEmitSkipsBrokenMember(t *testing.T) {
	h := NewHub(logger.Nop())
	broken := attach(h, "c1")
	healthy := attach(h, "c2")
	broken.failNext = true
	h.Join("c1", "admins")
	h.Join("c2", "admins")

	if n := h.Emit(context.Background(), "admins", contracts.EventDriverPresence, struct{}{}); n != 1 {
		t.Errorf("delivered = %d, want 1", n)
	}
	if len(healthy.events(t)) != 1 {
		t.Error("healthy member missed the event")
	}
}

func TestConnAfterClose(t *testing.T) {
	wire := &fakeWire{}
	c := newConn("c1", wire)

	if err := c.Ping(); err != nil {
		t.Fatal(err)
	}
	_ = c.Close()
	_ = c.Close()

	if err := c.WriteEvent(contracts.EventConnectionError, contracts.ErrorPayload{Message: "x"}); !errors.Is(err, ErrConnClosed) {
		t.Errorf("write after close: %v", err)
	}
	if !wire.closed || len(wire.controls) != 1 || wire.controls[0] != websocket.PingMessage {
		t.Errorf("unexpected wire state %+v", wire)
	}
}

func TestHubSendUnknownConnection(t *testing.T) {
	h := NewHub(logger.Nop())
	if err := h.Send("nope", contracts.EventConnectionError, nil); err == nil {
		t.Error("expected error for unknown connection")
	}
}

func TestUpgraderOriginCheck(t *testing.T) {
	tests := []struct {
		allowed []string
		origin  string
		want    bool
	}{
		{nil, "https://evil.example", true},
		{[]string{"https://dash.fleet.example/"}, "https://dash.fleet.example", true},
		{[]string{"https://dash.fleet.example"}, "https://DASH.fleet.example", true},
		{[]string{"https://dash.fleet.example"}, "https://evil.example", false},
		{[]string{"https://dash.fleet.example"}, "", true},
		{[]string{"https://dash.fleet.example"}, "::bad", false},
	}

	for _, tt := range tests {
		u := NewUpgrader(tt.allowed)
		r := httptest.NewRequest(http.MethodGet, "/ws", nil)
		if tt.origin != "" {
			r.Header.Set("Origin", tt.origin)
		}
		if got := u.CheckOrigin(r); got != tt.want {
			t.Errorf("allowed=%v origin=%q: got %v, want %v", tt.allowed, tt.origin, got, tt.want)
		}
	}
}
