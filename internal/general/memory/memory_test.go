package memory

import (
	"context"
	"slices"
	"sync"
	"testing"
	"time"

	"fleet-tracker/internal/domain/tracking"
	"fleet-tracker/internal/general/contracts"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestStore() (*Store, *fakeClock) {
	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	return NewStore(tracking.LocationTTL, tracking.PresenceTTL, WithClock(clock.Now)), clock
}

func TestStoreLocationExpiresPerDriver(t *testing.T) {
	ctx := context.Background()
	store, clock := newTestStore()

	_ = store.CacheLocation(ctx, tracking.LocationRecord{DriverID: "d1", Latitude: 1})
	clock.Advance(40 * time.Second)
	_ = store.CacheLocation(ctx, tracking.LocationRecord{DriverID: "d2", Latitude: 2})
	clock.Advance(25 * time.Second)

	// d2's update must not keep d1 alive.
	if rec, _ := store.GetLocation(ctx, "d1"); rec != nil {
		t.Errorf("d1 should have expired, got %+v", rec)
	}
	if rec, _ := store.GetLocation(ctx, "d2"); rec == nil || rec.Latitude != 2 {
		t.Errorf("d2 should still be live, got %+v", rec)
	}

	all, _ := store.GetAllLocations(ctx)
	if len(all) != 1 || all[0].DriverID != "d2" {
		t.Errorf("unexpected locations: %+v", all)
	}
}

func TestStorePresenceOutlivesLocation(t *testing.T) {
	ctx := context.Background()
	store, clock := newTestStore()

	_ = store.CacheLocation(ctx, tracking.LocationRecord{DriverID: "d1"})
	_ = store.SetOnline(ctx, "d1")
	clock.Advance(75 * time.Second)

	if rec, _ := store.GetLocation(ctx, "d1"); rec != nil {
		t.Error("location should be gone after 60s")
	}
	if ids, _ := store.GetOnlineIDs(ctx); !slices.Equal(ids, []string{"d1"}) {
		t.Errorf("driver should still be online, got %v", ids)
	}

	clock.Advance(20 * time.Second)
	if ids, _ := store.GetOnlineIDs(ctx); len(ids) != 0 {
		t.Errorf("presence should expire after 90s, got %v", ids)
	}
}

func TestStoreRefreshExtendsOnlyLiveKeys(t *testing.T) {
	ctx := context.Background()
	store, clock := newTestStore()

	_ = store.CacheLocation(ctx, tracking.LocationRecord{DriverID: "d1"})
	_ = store.SetOnline(ctx, "d1")
	clock.Advance(50 * time.Second)
	_ = store.Refresh(ctx, "d1")
	clock.Advance(50 * time.Second)

	if rec, _ := store.GetLocation(ctx, "d1"); rec == nil {
		t.Error("refresh should re-arm the location expiry")
	}

	_ = store.Refresh(ctx, "ghost")
	if ids, _ := store.GetOnlineIDs(ctx); slices.Contains(ids, "ghost") {
		t.Error("refresh must not create presence")
	}
}

func TestStoreOverwriteIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore()

	rec := tracking.LocationRecord{DriverID: "d1", Latitude: 24.86, Longitude: 67}
	_ = store.CacheLocation(ctx, rec)
	_ = store.CacheLocation(ctx, rec)

	all, _ := store.GetAllLocations(ctx)
	if len(all) != 1 || all[0] != rec {
		t.Errorf("expected a single identical record, got %+v", all)
	}

	_ = store.SetOffline(ctx, "d1")
	_ = store.SetOffline(ctx, "d1")
	_ = store.RemoveLocation(ctx, "d1")
	_ = store.RemoveLocation(ctx, "d1")
	if rec, _ := store.GetLocation(ctx, "d1"); rec != nil {
		t.Error("location should be removed")
	}
}

func TestBrokerFanoutAcrossBuses(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	broker := NewBroker()
	busA, busB := broker.Bus(), broker.Bus()

	inA, err := busA.Subscribe(ctx, contracts.ChannelDriverLocations)
	if err != nil {
		t.Fatal(err)
	}
	inB, err := busB.Subscribe(ctx, contracts.ChannelDriverLocations, contracts.ChannelDriverPresence)
	if err != nil {
		t.Fatal(err)
	}

	if err := busA.Publish(ctx, contracts.ChannelDriverLocations, []byte(`{"driverId":"d1"}`)); err != nil {
		t.Fatal(err)
	}
	_ = busA.Publish(ctx, contracts.ChannelOrderUpdates, []byte(`{}`))

	for name, in := range map[string]<-chan contracts.Envelope{"A": inA, "B": inB} {
		select {
		case env := <-in:
			if env.Channel != contracts.ChannelDriverLocations || string(env.Payload) != `{"driverId":"d1"}` {
				t.Errorf("%s: unexpected envelope %+v", name, env)
			}
		case <-time.After(time.Second):
			t.Fatalf("%s: no envelope delivered", name)
		}
	}

	select {
	case env := <-inB:
		t.Errorf("unsubscribed channel leaked: %+v", env)
	default:
	}
}

func TestBusCloseEndsSubscriptions(t *testing.T) {
	bus := NewBroker().Bus()
	in, err := bus.Subscribe(context.Background(), contracts.ChannelDriverPresence)
	if err != nil {
		t.Fatal(err)
	}

	_ = bus.Close()
	select {
	case _, ok := <-in:
		if ok {
			t.Error("expected closed channel")
		}
	case <-time.After(time.Second):
		t.Fatal("subscription not closed")
	}

	if err := bus.Publish(context.Background(), contracts.ChannelDriverPresence, nil); err != ErrBusClosed {
		t.Errorf("publish after close: got %v", err)
	}
	if _, err := bus.Subscribe(context.Background(), contracts.ChannelDriverPresence); err != ErrBusClosed {
		t.Errorf("subscribe after close: got %v", err)
	}
}

func TestSubscriptionEndsWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	in, _ := NewBroker().Bus().Subscribe(ctx, contracts.ChannelOrderUpdates)
	cancel()

	select {
	case _, ok := <-in:
		if ok {
			t.Error("expected closed channel")
		}
	case <-time.After(time.Second):
		t.Fatal("subscription outlived its context")
	}
}
