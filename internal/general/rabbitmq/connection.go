package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"fleet-tracker/internal/general/config"
	"fleet-tracker/internal/general/logger"
)

const (
	minBackoff = time.Second
	maxBackoff = 30 * time.Second
)

// Client is a resilient RabbitMQ connector with auto-reconnect and topology setup.
// The gateway opens one Client for publishing and a second one for its subscription.
type Client struct {
	url      string
	exchange string
	name     string
	logger   *logger.Logger
	logCtx   context.Context // context for logging (without cancel)

	mu      sync.RWMutex
	conn    *amqp.Connection
	pubChan *amqp.Channel

	closed    chan struct{}
	closeOnce sync.Once
	reconnect chan struct{}
}

// ConnectRabbitMQ establishes connection and starts a background watcher that reconnects on failures.
// An unreachable broker is not fatal: the client is returned disconnected and the watcher keeps
// dialing until it comes up. name tags the connection in logs and in the broker's management UI.
func ConnectRabbitMQ(ctx context.Context, cfg *config.Config, name string, logger *logger.Logger) *Client {
	client := &Client{
		url:       amqpURL(cfg),
		exchange:  cfg.RabbitMQ.Exchange,
		name:      name,
		logger:    logger,
		logCtx:    context.WithoutCancel(ctx), // avoid ctx cancel on reconnects
		closed:    make(chan struct{}),
		reconnect: make(chan struct{}, 1),
	}

	// initial connect (single attempt; further retries happen in the watcher)
	if err := client.connectOnce(); err != nil {
		logger.Warn(client.logCtx, "rabbitmq_unavailable", "RabbitMQ unreachable at startup; retrying in background", map[string]any{
			"connection": name,
			"error":      err.Error(),
		})
		client.reconnect <- struct{}{}
	}

	go client.watch()

	return client
}

func amqpURL(cfg *config.Config) string {
	u := &url.URL{
		Scheme: "amqp",
		Host:   net.JoinHostPort(cfg.RabbitMQ.Host, strconv.Itoa(cfg.RabbitMQ.Port)),
		User:   url.UserPassword(cfg.RabbitMQ.User, cfg.RabbitMQ.Password),
		Path:   "/",
	}
	return u.String()
}

// Close gracefully stops the watcher and closes AMQP resources.
func (client *Client) Close() {
	client.closeOnce.Do(func() { close(client.closed) })

	client.mu.Lock()
	if client.pubChan != nil {
		_ = client.pubChan.Close()
		client.pubChan = nil
	}
	if client.conn != nil {
		_ = client.conn.Close()
		client.conn = nil
	}
	client.mu.Unlock()
}

// connection returns the live connection or an error while reconnecting.
func (client *Client) connection() (*amqp.Connection, error) {
	client.mu.RLock()
	conn := client.conn
	client.mu.RUnlock()

	if conn == nil || conn.IsClosed() {
		return nil, errors.New("rabbitmq: connection is not ready")
	}
	return conn, nil
}

// --- internals ---

// connectOnce tries to connect and set up topology once.
func (client *Client) connectOnce() (err error) {
	props := amqp.NewConnectionProperties()
	props.SetClientConnectionName(client.name)

	conn, err := amqp.DialConfig(client.url, amqp.Config{
		Heartbeat:  10 * time.Second,
		Locale:     "en_US",
		Dial:       amqp.DefaultDial(30 * time.Second),
		Properties: props,
	})
	if err != nil {
		client.logger.Error(client.logCtx, "rabbitmq_dial_failed", "Failed to dial RabbitMQ", err, map[string]any{"connection": client.name})
		return fmt.Errorf("rabbitmq dial failed: %w", err)
	}

	defer func() {
		if err != nil {
			_ = conn.Close()
		}
	}()

	ch, err := conn.Channel()
	if err != nil {
		client.logger.Error(client.logCtx, "rabbitmq_open_channel_failed", "Failed to open RabbitMQ channel", err, nil)
		return fmt.Errorf("rabbitmq: failed to open channel: %w", err)
	}

	if err = declareTopology(ch, client.exchange); err != nil {
		_ = ch.Close()
		client.logger.Error(client.logCtx, "rabbitmq_declare_topology_failed", "Failed to declare RabbitMQ topology", err, nil)
		return fmt.Errorf("rabbitmq: failed to declare topology: %w", err)
	}

	// atomically install the new connection + publishing channel
	client.mu.Lock()
	if client.pubChan != nil && !client.pubChan.IsClosed() {
		_ = client.pubChan.Close()
	}
	client.conn = conn
	client.pubChan = ch
	client.mu.Unlock()

	// either the connection or the publisher channel closing triggers a reconnect
	go func(conn *amqp.Connection, ch *amqp.Channel) {
		connClosed := conn.NotifyClose(make(chan *amqp.Error, 1))
		chClosed := ch.NotifyClose(make(chan *amqp.Error, 1))
		select {
		case <-client.closed:
			return
		case <-connClosed:
		case <-chClosed:
		}

		select {
		case client.reconnect <- struct{}{}:
		default:
		}
	}(conn, ch)

	client.logger.Info(client.logCtx, "rabbitmq_connected", "RabbitMQ connection established successfully", map[string]any{"connection": client.name})

	return nil
}

// watch runs in background and attempts reconnects with exponential backoff.
func (client *Client) watch() {
	backoff := minBackoff
	for {
		select {
		case <-client.closed:
			return
		case <-client.reconnect:
			for {
				err := client.connectOnce()
				if err == nil {
					backoff = minBackoff
					client.logger.Info(client.logCtx, "rabbitmq_reconnected", "Reconnected to RabbitMQ and re-ensured topology", map[string]any{"connection": client.name})
					break
				}

				client.logger.Error(client.logCtx, "retry_attempted", "Failed to reconnect to RabbitMQ", err, map[string]any{
					"connection": client.name,
					"backoff_ms": backoff.Milliseconds(),
				})

				select {
				case <-client.closed:
					return
				case <-time.After(backoff):
				}
				backoff = nextBackoff(backoff)
			}
		}
	}
}

// nextBackoff doubles d up to maxBackoff.
func nextBackoff(d time.Duration) time.Duration {
	d *= 2
	if d > maxBackoff {
		return maxBackoff
	}
	return d
}
