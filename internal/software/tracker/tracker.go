package tracker

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"time"

	"fleet-tracker/internal/domain/tracking"
	"fleet-tracker/internal/general/contracts"
	"fleet-tracker/internal/general/logger"
)

// Status is the tri-state connection indicator.
type Status string

const (
	StatusConnected    Status = "connected"    // live events are authoritative
	StatusReconnecting Status = "reconnecting" // trying to resume the live feed
	StatusPolling      Status = "polling"      // only the periodic snapshot is trusted
)

const (
	defaultMaxAttempts  = 5
	defaultBaseBackoff  = time.Second
	defaultMaxBackoff   = 30 * time.Second
	defaultPollInterval = 15 * time.Second
	defaultFetchTimeout = 10 * time.Second
)

var ErrClosed = errors.New("tracker closed")

// Feed is one live connection to a gateway. Events is closed when the connection drops.
type Feed interface {
	Events() <-chan contracts.Frame
	Close() error
}

// Dialer opens live feeds.
type Dialer interface {
	Dial(ctx context.Context) (Feed, error)
}

// SnapshotSource returns the durable last-known state of every driver.
type SnapshotSource interface {
	Snapshot(ctx context.Context) ([]contracts.DriverSnapshot, error)
}

// DriverState is what the tracker currently believes about one visible driver.
type DriverState struct {
	DriverID     string    `json:"driverId"`
	DriverName   string    `json:"driverName,omitempty"`
	Latitude     float64   `json:"latitude"`
	Longitude    float64   `json:"longitude"`
	Speed        *float64  `json:"speed,omitempty"`
	Heading      *float64  `json:"heading,omitempty"`
	Accuracy     *float64  `json:"accuracy,omitempty"`
	BatteryLevel *float64  `json:"batteryLevel,omitempty"`
	IsMoving     *bool     `json:"isMoving,omitempty"`
	IsOnDuty     bool      `json:"isOnDuty"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// View is passed to OnChange listeners after every change.
type View struct {
	Status  Status
	Drivers []DriverState
}

type Options struct {
	// MaxAttempts is the number of consecutive failed dials before settling into polling.
	MaxAttempts  int
	BaseBackoff  time.Duration
	MaxBackoff   time.Duration
	PollInterval time.Duration
}

func (o *Options) applyDefaults() {
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = defaultMaxAttempts
	}
	if o.BaseBackoff <= 0 {
		o.BaseBackoff = defaultBaseBackoff
	}
	if o.MaxBackoff < o.BaseBackoff {
		o.MaxBackoff = max(defaultMaxBackoff, o.BaseBackoff)
	}
	if o.PollInterval <= 0 {
		o.PollInterval = defaultPollInterval
	}
}

// Tracker merges the live event feed and periodic snapshots into one keyed collection.
type Tracker struct {
	dialer Dialer
	source SnapshotSource
	logger *logger.Logger
	opts   Options

	mu        sync.RWMutex
	drivers   map[string]DriverState
	status    Status
	listeners map[int]func(View)
	nextID    int
	closed    bool

	reconnect chan struct{}
	cancel    context.CancelFunc
	wg        sync.WaitGroup

	// views waiting for the delivery goroutine, oldest first
	pendMu    sync.Mutex
	pending   []View
	wake      chan struct{}
	stop      chan struct{}
	delivered chan struct{}
}

func New(dialer Dialer, source SnapshotSource, log *logger.Logger, opts Options) *Tracker {
	opts.applyDefaults()
	if log == nil {
		log = logger.Nop()
	}
	return &Tracker{
		dialer:    dialer,
		source:    source,
		logger:    log,
		opts:      opts,
		drivers:   make(map[string]DriverState),
		status:    StatusPolling,
		listeners: make(map[int]func(View)),
		reconnect: make(chan struct{}, 1),
		wake:      make(chan struct{}, 1),
		stop:      make(chan struct{}),
		delivered: make(chan struct{}),
	}
}

// Start launches the live loop and the poll loop. They stop on Close or when ctx ends.
func (t *Tracker) Start(ctx context.Context) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return ErrClosed
	}
	if t.cancel != nil {
		t.mu.Unlock()
		return nil
	}
	ctx, t.cancel = context.WithCancel(ctx)
	t.mu.Unlock()

	go t.deliver()

	t.wg.Add(2)
	go func() {
		defer t.wg.Done()
		t.liveLoop(ctx)
	}()
	go func() {
		defer t.wg.Done()
		t.pollLoop(ctx)
	}()
	return nil
}

// Close stops both loops, drops the live feed and releases every listener.
// Listeners run on their own goroutine, so a listener may call Close.
func (t *Tracker) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	cancel := t.cancel
	clear(t.listeners)
	t.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	t.wg.Wait()

	close(t.stop)
	t.pendMu.Lock()
	t.pending = nil
	t.pendMu.Unlock()
	return nil
}

// Reconnect leaves permanent polling mode and starts a fresh round of live attempts.
// It is a no-op while a round is already in progress.
func (t *Tracker) Reconnect() {
	select {
	case t.reconnect <- struct{}{}:
	default:
	}
}

// OnChange registers fn and returns a function that removes it.
func (t *Tracker) OnChange(fn func(View)) func() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return func() {}
	}

	id := t.nextID
	t.nextID++
	t.listeners[id] = fn

	return func() {
		t.mu.Lock()
		delete(t.listeners, id)
		t.mu.Unlock()
	}
}

func (t *Tracker) Status() Status {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.status
}

// Drivers returns the visible drivers sorted by id.
func (t *Tracker) Drivers() []DriverState {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.sortedLocked()
}

func (t *Tracker) sortedLocked() []DriverState {
	out := make([]DriverState, 0, len(t.drivers))
	for _, d := range t.drivers {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DriverID < out[j].DriverID })
	return out
}

// ----- live feed -----

func (t *Tracker) liveLoop(ctx context.Context) {
	attempt := 0

	for ctx.Err() == nil {
		feed, err := t.dialer.Dial(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			attempt++
			if attempt >= t.opts.MaxAttempts {
				t.logger.Warn(ctx, "live_feed_exhausted", "Live feed unavailable; staying in polling mode", map[string]any{
					"attempts": attempt,
					"error":    err.Error(),
				})
				// requests made during the failed round do not count
				select {
				case <-t.reconnect:
				default:
				}
				t.setStatus(StatusPolling)
				t.poll(ctx)

				select {
				case <-ctx.Done():
					return
				case <-t.reconnect:
				}
				attempt = 0
				t.setStatus(StatusReconnecting)
				continue
			}

			t.setStatus(StatusReconnecting)
			delay := t.backoff(attempt - 1)
			t.logger.Debug(ctx, "live_feed_retry", "Live feed dial failed; retrying", map[string]any{
				"attempt":  attempt,
				"delay_ms": delay.Milliseconds(),
				"error":    err.Error(),
			})
			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
			}
			continue
		}

		attempt = 0
		// a manual reconnect requested while we were already dialing is satisfied
		select {
		case <-t.reconnect:
		default:
		}

		t.setStatus(StatusConnected)
		t.consume(ctx, feed)
		_ = feed.Close()

		if ctx.Err() != nil {
			return
		}
		t.logger.Info(ctx, "live_feed_lost", "Live feed dropped; reconnecting", nil)
		t.setStatus(StatusReconnecting)
	}
}

// backoff returns Base*2^n capped at MaxBackoff.
func (t *Tracker) backoff(n int) time.Duration {
	d := t.opts.BaseBackoff
	for i := 0; i < n && d < t.opts.MaxBackoff; i++ {
		d *= 2
	}
	return min(d, t.opts.MaxBackoff)
}

func (t *Tracker) consume(ctx context.Context, feed Feed) {
	events := feed.Events()
	for {
		select {
		case <-ctx.Done():
			return
		case frame, ok := <-events:
			if !ok {
				return
			}
			t.apply(ctx, frame)
		}
	}
}

// apply merges one live event. Only called while connected.
func (t *Tracker) apply(ctx context.Context, frame contracts.Frame) {
	switch frame.Type {
	case contracts.EventDriverLocation:
		var rec tracking.LocationRecord
		if err := json.Unmarshal(frame.Data, &rec); err != nil || rec.DriverID == "" {
			t.logger.Debug(ctx, "live_event_dropped", "Dropped malformed driver:location", nil)
			return
		}
		t.update(func(drivers map[string]DriverState) bool {
			drivers[rec.DriverID] = DriverState{
				DriverID:     rec.DriverID,
				DriverName:   rec.DriverName,
				Latitude:     rec.Latitude,
				Longitude:    rec.Longitude,
				Speed:        rec.Speed,
				Heading:      rec.Heading,
				Accuracy:     rec.Accuracy,
				BatteryLevel: rec.BatteryLevel,
				IsMoving:     rec.IsMoving,
				IsOnDuty:     rec.IsOnDuty,
				UpdatedAt:    rec.Timestamp,
			}
			return true
		})

	case contracts.EventDriverPresence:
		var event tracking.PresenceEvent
		if err := json.Unmarshal(frame.Data, &event); err != nil || event.DriverID == "" {
			t.logger.Debug(ctx, "live_event_dropped", "Dropped malformed driver:presence", nil)
			return
		}
		t.update(func(drivers map[string]DriverState) bool {
			current, known := drivers[event.DriverID]
			if !event.IsOnline {
				delete(drivers, event.DriverID)
				return known
			}
			// a driver without a position is not rendered until its first location
			if !known {
				return false
			}
			current.IsOnDuty = event.IsOnDuty
			drivers[event.DriverID] = current
			return true
		})
	}
}

// ----- snapshots -----

func (t *Tracker) pollLoop(ctx context.Context) {
	t.poll(ctx)

	ticker := time.NewTicker(t.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.poll(ctx)
		}
	}
}

// poll fetches a snapshot and applies it unless the live feed is connected.
func (t *Tracker) poll(ctx context.Context) {
	if t.Status() == StatusConnected || t.source == nil {
		return
	}

	fctx, cancel := context.WithTimeout(ctx, defaultFetchTimeout)
	rows, err := t.source.Snapshot(fctx)
	cancel()
	if err != nil {
		if ctx.Err() == nil {
			t.logger.Warn(ctx, "snapshot_fetch_failed", "Failed to fetch driver snapshot", map[string]any{"error": err.Error()})
		}
		return
	}
	t.applySnapshot(rows)
}

// applySnapshot replaces the whole collection. Rows without a position are not visible.
// A snapshot that lands after the feed reconnected is discarded.
func (t *Tracker) applySnapshot(rows []contracts.DriverSnapshot) {
	t.mu.Lock()
	if t.status == StatusConnected || t.closed {
		t.mu.Unlock()
		return
	}

	next := make(map[string]DriverState, len(rows))
	for _, row := range rows {
		if row.DriverID == "" || row.LastLatitude == nil || row.LastLongitude == nil {
			continue
		}
		state := DriverState{
			DriverID:   row.DriverID,
			DriverName: row.DriverName,
			Latitude:   *row.LastLatitude,
			Longitude:  *row.LastLongitude,
			IsOnDuty:   row.IsOnDuty,
		}
		if row.LastLocationUpdate != nil {
			state.UpdatedAt = *row.LastLocationUpdate
		}
		next[row.DriverID] = state
	}
	t.drivers = next
	view := t.viewLocked()
	t.mu.Unlock()

	t.notify(view)
}

// ----- state changes -----

func (t *Tracker) setStatus(status Status) {
	t.mu.Lock()
	if t.status == status {
		t.mu.Unlock()
		return
	}
	t.status = status
	view := t.viewLocked()
	t.mu.Unlock()

	t.notify(view)
}

func (t *Tracker) update(mutate func(map[string]DriverState) bool) {
	t.mu.Lock()
	if !mutate(t.drivers) {
		t.mu.Unlock()
		return
	}
	view := t.viewLocked()
	t.mu.Unlock()

	t.notify(view)
}

func (t *Tracker) viewLocked() View {
	return View{Status: t.status, Drivers: t.sortedLocked()}
}

// notify queues view for the delivery goroutine. The loops never wait on listeners.
func (t *Tracker) notify(view View) {
	t.mu.RLock()
	idle := len(t.listeners) == 0
	t.mu.RUnlock()
	if idle {
		return
	}

	t.pendMu.Lock()
	t.pending = append(t.pending, view)
	t.pendMu.Unlock()

	select {
	case t.wake <- struct{}{}:
	default:
	}
}

// deliver hands queued views to the listeners registered at delivery time, in order.
// Listeners run outside the tracker lock so they may call back into the tracker.
func (t *Tracker) deliver() {
	defer close(t.delivered)
	for {
		select {
		case <-t.stop:
			return
		case <-t.wake:
		}

		for {
			t.pendMu.Lock()
			if len(t.pending) == 0 {
				t.pendMu.Unlock()
				break
			}
			view := t.pending[0]
			t.pending = t.pending[1:]
			t.pendMu.Unlock()

			t.mu.RLock()
			listeners := make([]func(View), 0, len(t.listeners))
			for _, fn := range t.listeners {
				listeners = append(listeners, fn)
			}
			t.mu.RUnlock()

			for _, fn := range listeners {
				select {
				case <-t.stop:
					return
				default:
				}
				fn(view)
			}
		}
	}
}
