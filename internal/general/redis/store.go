package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"fleet-tracker/internal/domain/tracking"
)

// Key layout. Each driver owns two independently expiring keys.
const (
	locationKeyPrefix = "tracking:location:"
	onlineKeyPrefix   = "tracking:online:"

	scanCount = 200
)

func locationKey(driverID string) string { return locationKeyPrefix + driverID }
func onlineKey(driverID string) string   { return onlineKeyPrefix + driverID }

// Store is the Redis-backed state store.
type Store struct {
	client      *goredis.Client
	locationTTL time.Duration
	presenceTTL time.Duration
}

func NewStore(client *goredis.Client, locationTTL, presenceTTL time.Duration) *Store {
	return &Store{client: client, locationTTL: locationTTL, presenceTTL: presenceTTL}
}

func (s *Store) CacheLocation(ctx context.Context, rec tracking.LocationRecord) error {
	body, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal location: %w", err)
	}
	if err := s.client.Set(ctx, locationKey(rec.DriverID), body, s.locationTTL).Err(); err != nil {
		return fmt.Errorf("redis set location: %w", err)
	}
	return nil
}

func (s *Store) SetOnline(ctx context.Context, driverID string) error {
	if err := s.client.Set(ctx, onlineKey(driverID), "1", s.presenceTTL).Err(); err != nil {
		return fmt.Errorf("redis set online: %w", err)
	}
	return nil
}

func (s *Store) SetOffline(ctx context.Context, driverID string) error {
	if err := s.client.Del(ctx, onlineKey(driverID)).Err(); err != nil {
		return fmt.Errorf("redis del online: %w", err)
	}
	return nil
}

func (s *Store) RemoveLocation(ctx context.Context, driverID string) error {
	if err := s.client.Del(ctx, locationKey(driverID)).Err(); err != nil {
		return fmt.Errorf("redis del location: %w", err)
	}
	return nil
}

// Refresh re-arms both expiries in one round trip. EXPIRE on a missing key is a no-op.
func (s *Store) Refresh(ctx context.Context, driverID string) error {
	_, err := s.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Expire(ctx, locationKey(driverID), s.locationTTL)
		pipe.Expire(ctx, onlineKey(driverID), s.presenceTTL)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis refresh: %w", err)
	}
	return nil
}

func (s *Store) GetLocation(ctx context.Context, driverID string) (*tracking.LocationRecord, error) {
	body, err := s.client.Get(ctx, locationKey(driverID)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get location: %w", err)
	}

	var rec tracking.LocationRecord
	if err := json.Unmarshal(body, &rec); err != nil {
		return nil, fmt.Errorf("decode location: %w", err)
	}
	return &rec, nil
}

// GetAllLocations scans the location prefix. Keys that expire between SCAN and MGET are skipped.
func (s *Store) GetAllLocations(ctx context.Context) ([]tracking.LocationRecord, error) {
	keys, err := s.scan(ctx, locationKeyPrefix+"*")
	if err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		return []tracking.LocationRecord{}, nil
	}

	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis mget locations: %w", err)
	}

	out := make([]tracking.LocationRecord, 0, len(values))
	for _, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		var rec tracking.LocationRecord
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			continue
		}
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DriverID < out[j].DriverID })
	return out, nil
}

func (s *Store) GetOnlineIDs(ctx context.Context) ([]string, error) {
	keys, err := s.scan(ctx, onlineKeyPrefix+"*")
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(keys))
	for _, k := range keys {
		ids = append(ids, strings.TrimPrefix(k, onlineKeyPrefix))
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *Store) scan(ctx context.Context, match string) ([]string, error) {
	var keys []string
	iter := s.client.Scan(ctx, 0, match, scanCount).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("redis scan %s: %w", match, err)
	}
	return keys, nil
}
