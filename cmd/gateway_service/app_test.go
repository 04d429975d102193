package gatewayservice

import (
	"context"
	"testing"
	"time"

	"fleet-tracker/internal/domain/tracking"
	"fleet-tracker/internal/general/config"
	"fleet-tracker/internal/general/logger"
)

// unreachableConfig points every broker at a port nothing listens on.
func unreachableConfig(storeDriver, busDriver string) *config.Config {
	var cfg config.Config
	cfg.Store.Driver = storeDriver
	cfg.Store.LocationTTL = 60 * time.Second
	cfg.Store.PresenceTTL = 90 * time.Second
	cfg.Bus.Driver = busDriver
	cfg.Redis.Addr = "127.0.0.1:1"
	cfg.RabbitMQ.Host = "127.0.0.1"
	cfg.RabbitMQ.Port = 1
	cfg.RabbitMQ.User = "fleet"
	cfg.RabbitMQ.Password = "fleet"
	cfg.RabbitMQ.Exchange = "tracking_events"
	return &cfg
}

func TestBuildInfraStartsWithUnreachableBus(t *testing.T) {
	for _, busDriver := range []string{config.DriverRedis, config.DriverRabbitMQ} {
		t.Run(busDriver, func(t *testing.T) {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			store, bus, closeAll, err := buildInfra(ctx, unreachableConfig(config.DriverMemory, busDriver), logger.Nop())
			if err != nil {
				t.Fatalf("buildInfra must not fail when only the bus is down: %v", err)
			}
			defer closeAll()
			if store == nil || bus == nil {
				t.Fatal("store and bus must both be built")
			}

			if err := store.CacheLocation(ctx, tracking.LocationRecord{DriverID: "d1", Latitude: 1, Longitude: 2}); err != nil {
				t.Errorf("store should work without the bus: %v", err)
			}

			subCtx, subCancel := context.WithTimeout(ctx, 2*time.Second)
			defer subCancel()
			if _, err := bus.Subscribe(subCtx, "driver-locations"); err == nil {
				t.Error("subscribe should fail while the broker is unreachable")
			}
			if err := bus.Publish(subCtx, "driver-locations", []byte(`{}`)); err == nil {
				t.Error("publish should fail while the broker is unreachable")
			}
		})
	}
}

func TestBuildInfraRequiresRedisForRedisStore(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if _, _, _, err := buildInfra(ctx, unreachableConfig(config.DriverRedis, config.DriverMemory), logger.Nop()); err == nil {
		t.Fatal("a redis state store must be reachable at startup")
	}
}
