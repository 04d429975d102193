package redis

import (
	"context"
	"slices"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"

	"fleet-tracker/internal/domain/tracking"
	"fleet-tracker/internal/general/contracts"
)

func newClient(t *testing.T, mr *miniredis.Miniredis) *goredis.Client {
	t.Helper()
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestStoreKeysExpireIndependently(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	store := NewStore(newClient(t, mr), tracking.LocationTTL, tracking.PresenceTTL)

	rec := tracking.LocationRecord{DriverID: "d1", DriverName: "Abebe", Latitude: 24.86, Longitude: 67, IsOnDuty: true}
	if err := store.CacheLocation(ctx, rec); err != nil {
		t.Fatal(err)
	}
	if err := store.SetOnline(ctx, "d1"); err != nil {
		t.Fatal(err)
	}

	if ttl := mr.TTL("tracking:location:d1"); ttl != 60*time.Second {
		t.Errorf("location ttl = %v", ttl)
	}
	if ttl := mr.TTL("tracking:online:d1"); ttl != 90*time.Second {
		t.Errorf("presence ttl = %v", ttl)
	}

	got, err := store.GetLocation(ctx, "d1")
	if err != nil || got == nil || got.Latitude != 24.86 || got.DriverName != "Abebe" {
		t.Fatalf("GetLocation = %+v, %v", got, err)
	}

	mr.FastForward(40 * time.Second)
	_ = store.CacheLocation(ctx, tracking.LocationRecord{DriverID: "d2"})
	mr.FastForward(25 * time.Second)

	if got, _ := store.GetLocation(ctx, "d1"); got != nil {
		t.Error("d1 location should have expired despite d2's write")
	}
	if ids, _ := store.GetOnlineIDs(ctx); !slices.Equal(ids, []string{"d1"}) {
		t.Errorf("d1 should still be online, got %v", ids)
	}

	mr.FastForward(30 * time.Second)
	if ids, _ := store.GetOnlineIDs(ctx); len(ids) != 0 {
		t.Errorf("presence should have expired, got %v", ids)
	}
}

func TestStoreRefreshAndRemove(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	store := NewStore(newClient(t, mr), tracking.LocationTTL, tracking.PresenceTTL)

	_ = store.CacheLocation(ctx, tracking.LocationRecord{DriverID: "d1"})
	_ = store.SetOnline(ctx, "d1")
	mr.FastForward(50 * time.Second)

	if err := store.Refresh(ctx, "d1"); err != nil {
		t.Fatal(err)
	}
	if ttl := mr.TTL("tracking:location:d1"); ttl != 60*time.Second {
		t.Errorf("refresh did not re-arm location, ttl=%v", ttl)
	}
	if err := store.Refresh(ctx, "ghost"); err != nil {
		t.Fatal(err)
	}
	if mr.Exists("tracking:online:ghost") {
		t.Error("refresh must not create keys")
	}

	_ = store.SetOffline(ctx, "d1")
	_ = store.RemoveLocation(ctx, "d1")
	if err := store.SetOffline(ctx, "d1"); err != nil {
		t.Errorf("second SetOffline should be a no-op, got %v", err)
	}
	if mr.Exists("tracking:online:d1") || mr.Exists("tracking:location:d1") {
		t.Error("keys should be deleted")
	}
}

func TestStoreGetAllLocations(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	store := NewStore(newClient(t, mr), tracking.LocationTTL, tracking.PresenceTTL)

	for _, id := range []string{"d3", "d1", "d2"} {
		_ = store.CacheLocation(ctx, tracking.LocationRecord{DriverID: id})
	}
	_ = store.CacheLocation(ctx, tracking.LocationRecord{DriverID: "d1", Latitude: 5})
	_ = mr.Set("tracking:location:broken", "{not json")

	all, err := store.GetAllLocations(ctx)
	if err != nil {
		t.Fatal(err)
	}
	var ids []string
	for _, rec := range all {
		ids = append(ids, rec.DriverID)
	}
	if !slices.Equal(ids, []string{"d1", "d2", "d3"}) {
		t.Errorf("unexpected ids %v", ids)
	}
	if all[0].Latitude != 5 {
		t.Error("last write should win")
	}
}

func TestBusFanoutBetweenInstances(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	mr := miniredis.RunT(t)

	instanceA := NewBus(newClient(t, mr), newClient(t, mr))
	instanceB := NewBus(newClient(t, mr), newClient(t, mr))
	defer instanceA.Close()
	defer instanceB.Close()

	inA, err := instanceA.Subscribe(ctx, contracts.Channels...)
	if err != nil {
		t.Fatal(err)
	}
	inB, err := instanceB.Subscribe(ctx, contracts.Channels...)
	if err != nil {
		t.Fatal(err)
	}

	if err := instanceA.Publish(ctx, contracts.ChannelDriverLocations, []byte(`{"driverId":"d1"}`)); err != nil {
		t.Fatal(err)
	}

	for name, in := range map[string]<-chan contracts.Envelope{"A": inA, "B": inB} {
		select {
		case env := <-in:
			if env.Channel != contracts.ChannelDriverLocations || string(env.Payload) != `{"driverId":"d1"}` {
				t.Errorf("%s got %+v", name, env)
			}
		case <-ctx.Done():
			t.Fatalf("instance %s never received the event", name)
		}
	}
}

func TestBusSubscribeFailsWhenBrokerDown(t *testing.T) {
	mr := miniredis.RunT(t)
	sub := newClient(t, mr)
	mr.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	bus := NewBus(sub, sub)
	if _, err := bus.Subscribe(ctx, contracts.ChannelDriverLocations); err == nil {
		t.Fatal("expected subscribe to fail against a stopped broker")
	}
}

func TestBusCloseEndsStream(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	bus := NewBus(newClient(t, mr), newClient(t, mr))

	in, err := bus.Subscribe(ctx, contracts.ChannelDriverPresence)
	if err != nil {
		t.Fatal(err)
	}
	_ = bus.Close()

	select {
	case _, ok := <-in:
		if ok {
			t.Error("expected the stream to close")
		}
	case <-time.After(3 * time.Second):
		t.Fatal("stream still open after Close")
	}

	if _, err := bus.Subscribe(ctx, contracts.ChannelDriverPresence); err != ErrBusClosed {
		t.Errorf("subscribe after close: %v", err)
	}
}
