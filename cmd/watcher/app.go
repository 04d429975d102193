package watcher

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"fleet-tracker/internal/general/logger"
	"fleet-tracker/internal/software/tracker"
)

// Options configure the watch mode.
type Options struct {
	GatewayURL   string // http(s)://host:port of a gateway
	Token        string // bearer token of an ADMIN or DISPATCHER account
	PollInterval time.Duration
	MaxAttempts  int
	BaseBackoff  time.Duration
	MaxBackoff   time.Duration
}

// Run follows the fleet through one gateway and logs every indicator change and driver count
// until ctx is cancelled.
func Run(ctx context.Context, opts Options) error {
	logger := logger.New("fleet-watcher")
	defer func() { _ = logger.Sync() }()
	ctx = logger.WithRequestID(ctx, "watch-001")

	wsURL, snapshotURL, err := endpoints(opts.GatewayURL)
	if err != nil {
		logger.Error(ctx, "watcher_config_invalid", "Invalid gateway URL", err, nil)
		return err
	}
	if strings.TrimSpace(opts.Token) == "" {
		err := errors.New("token is required")
		logger.Error(ctx, "watcher_config_invalid", "Missing token", err, nil)
		return err
	}

	t := tracker.New(
		tracker.NewWSDialer(wsURL, opts.Token),
		tracker.NewHTTPSource(snapshotURL, opts.Token),
		logger,
		tracker.Options{
			MaxAttempts:  opts.MaxAttempts,
			BaseBackoff:  opts.BaseBackoff,
			MaxBackoff:   opts.MaxBackoff,
			PollInterval: opts.PollInterval,
		},
	)

	var (
		mu        sync.Mutex
		last      tracker.Status
		lastCount = -1
	)
	t.OnChange(func(v tracker.View) {
		mu.Lock()
		defer mu.Unlock()
		if v.Status == last && len(v.Drivers) == lastCount {
			return
		}
		last, lastCount = v.Status, len(v.Drivers)

		onDuty := 0
		for _, d := range v.Drivers {
			if d.IsOnDuty {
				onDuty++
			}
		}
		logger.Info(ctx, "fleet_view_changed", fmt.Sprintf("%s: %d drivers visible", v.Status, len(v.Drivers)), map[string]any{
			"status":  string(v.Status),
			"drivers": len(v.Drivers),
			"on_duty": onDuty,
		})
	})

	if err := t.Start(ctx); err != nil {
		return err
	}
	logger.Info(ctx, "watcher_started", "Watching fleet", map[string]any{"ws": wsURL, "snapshot": snapshotURL})

	<-ctx.Done()
	_ = t.Close()

	logger.Info(context.WithoutCancel(ctx), "watcher_stopped", "Watcher stopped", nil)
	return nil
}

// endpoints derives the WebSocket and snapshot URLs from a gateway base URL.
func endpoints(base string) (string, string, error) {
	u, err := url.Parse(strings.TrimRight(strings.TrimSpace(base), "/"))
	if err != nil {
		return "", "", err
	}

	ws := *u
	switch u.Scheme {
	case "http":
		ws.Scheme = "ws"
	case "https":
		ws.Scheme = "wss"
	default:
		return "", "", fmt.Errorf("unsupported scheme %q: use http or https", u.Scheme)
	}
	if u.Host == "" {
		return "", "", errors.New("gateway url has no host")
	}

	return ws.JoinPath("ws").String(), u.JoinPath("drivers", "locations").String(), nil
}
