package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"fleet-tracker/internal/domain/tracking"
)

type expiring[T any] struct {
	value     T
	expiresAt time.Time
}

// Store is an in-process state store with per-driver expiry. It serves tests and
// single-node development (store.driver: memory).
type Store struct {
	mu          sync.Mutex
	now         func() time.Time
	locationTTL time.Duration
	presenceTTL time.Duration
	locations   map[string]expiring[tracking.LocationRecord]
	online      map[string]expiring[struct{}]
}

type StoreOption func(*Store)

// WithClock replaces time.Now, so tests can move time forward.
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) { s.now = now }
}

func NewStore(locationTTL, presenceTTL time.Duration, opts ...StoreOption) *Store {
	s := &Store{
		now:         time.Now,
		locationTTL: locationTTL,
		presenceTTL: presenceTTL,
		locations:   make(map[string]expiring[tracking.LocationRecord]),
		online:      make(map[string]expiring[struct{}]),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) CacheLocation(_ context.Context, rec tracking.LocationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.locations[rec.DriverID] = expiring[tracking.LocationRecord]{value: rec, expiresAt: s.now().Add(s.locationTTL)}
	return nil
}

func (s *Store) SetOnline(_ context.Context, driverID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.online[driverID] = expiring[struct{}]{expiresAt: s.now().Add(s.presenceTTL)}
	return nil
}

func (s *Store) SetOffline(_ context.Context, driverID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.online, driverID)
	return nil
}

func (s *Store) RemoveLocation(_ context.Context, driverID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.locations, driverID)
	return nil
}

func (s *Store) Refresh(_ context.Context, driverID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if e, ok := s.locations[driverID]; ok && now.Before(e.expiresAt) {
		e.expiresAt = now.Add(s.locationTTL)
		s.locations[driverID] = e
	}
	if e, ok := s.online[driverID]; ok && now.Before(e.expiresAt) {
		e.expiresAt = now.Add(s.presenceTTL)
		s.online[driverID] = e
	}
	return nil
}

func (s *Store) GetLocation(_ context.Context, driverID string) (*tracking.LocationRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.locations[driverID]
	if !ok {
		return nil, nil
	}
	if !s.now().Before(e.expiresAt) {
		delete(s.locations, driverID)
		return nil, nil
	}
	rec := e.value
	return &rec, nil
}

func (s *Store) GetAllLocations(_ context.Context) ([]tracking.LocationRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	out := make([]tracking.LocationRecord, 0, len(s.locations))
	for id, e := range s.locations {
		if !now.Before(e.expiresAt) {
			delete(s.locations, id)
			continue
		}
		out = append(out, e.value)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DriverID < out[j].DriverID })
	return out, nil
}

func (s *Store) GetOnlineIDs(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	out := make([]string, 0, len(s.online))
	for id, e := range s.online {
		if !now.Before(e.expiresAt) {
			delete(s.online, id)
			continue
		}
		out = append(out, id)
	}
	sort.Strings(out)
	return out, nil
}
