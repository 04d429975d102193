package tracker

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"fleet-tracker/internal/general/contracts"
)

const (
	feedBuffer      = 256
	feedReadTimeout = 60 * time.Second
)

// WSDialer opens a live feed on a gateway's /ws endpoint with a bearer token.
type WSDialer struct {
	URL    string
	Token  string
	Dialer *websocket.Dialer
}

func NewWSDialer(url, token string) *WSDialer {
	return &WSDialer{
		URL:   url,
		Token: token,
		Dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: 10 * time.Second,
		},
	}
}

func (d *WSDialer) Dial(ctx context.Context) (Feed, error) {
	header := http.Header{}
	if d.Token != "" {
		header.Set("Authorization", "Bearer "+d.Token)
	}

	conn, resp, err := d.Dialer.DialContext(ctx, d.URL, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %s: %w", d.URL, resp.Status, err)
		}
		return nil, fmt.Errorf("dial %s: %w", d.URL, err)
	}

	f := &wsFeed{conn: conn, events: make(chan contracts.Frame, feedBuffer), done: make(chan struct{})}
	go f.read()
	return f, nil
}

// wsFeed reads frames into a channel until the socket fails or Close is called.
type wsFeed struct {
	conn   *websocket.Conn
	events chan contracts.Frame
	done   chan struct{}
	once   sync.Once
}

func (f *wsFeed) Events() <-chan contracts.Frame { return f.events }

func (f *wsFeed) read() {
	defer close(f.events)

	// the gateway pings well inside the read window; answering pings re-arms it
	_ = f.conn.SetReadDeadline(time.Now().Add(feedReadTimeout))
	f.conn.SetPingHandler(func(data string) error {
		_ = f.conn.SetReadDeadline(time.Now().Add(feedReadTimeout))
		return f.conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(5*time.Second))
	})

	for {
		_, payload, err := f.conn.ReadMessage()
		if err != nil {
			return
		}
		_ = f.conn.SetReadDeadline(time.Now().Add(feedReadTimeout))

		var frame contracts.Frame
		if err := json.Unmarshal(payload, &frame); err != nil {
			continue
		}
		select {
		case f.events <- frame:
		case <-f.done:
			return
		}
	}
}

func (f *wsFeed) Close() error {
	var err error
	f.once.Do(func() {
		close(f.done)
		_ = f.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"),
			time.Now().Add(time.Second))
		err = f.conn.Close()
	})
	return err
}
