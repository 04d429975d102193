package handler

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	gorillaws "github.com/gorilla/websocket"

	"fleet-tracker/internal/domain/session"
	"fleet-tracker/internal/domain/tracking"
	"fleet-tracker/internal/general/jwt"
	"fleet-tracker/internal/general/websocket"
)

// Disconnect reasons reported to the gateway.
const (
	reasonClientClosed = "client closed"
	reasonTimeout      = "heartbeat timeout"
	reasonLost         = "connection lost"
	reasonServerClose  = "server shutdown"
)

// ----- Handler: GET /ws -----

// handleWS authenticates the handshake, upgrades, and runs the connection until it drops.
// A rejected credential gets a plain HTTP error; the socket is never opened.
func (handler *GatewayHTTPHandler) handleWS(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)

	token, _ := jwt.FromAuthorization(r)
	sess, err := handler.svc.Authenticate(ctx, token)
	if err != nil {
		status := http.StatusUnauthorized
		if errors.Is(err, tracking.ErrTransientInfra) {
			status = http.StatusServiceUnavailable
		}
		handler.httpError(ctx, w, status, tracking.PublicMessage(err), err)
		return
	}

	ws, err := handler.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// the upgrader has already written the HTTP error
		handler.logger.Warn(ctx, "websocket_upgrade_failed", "Failed to upgrade to WebSocket", errDetails(err))
		return
	}

	ctx = handler.logger.WithConnectionID(ctx, sess.ID)
	conn := websocket.NewConn(sess.ID, ws)

	// Teardown order (LIFO on return): cleanup runs while the socket is already closed,
	// the hub forgets the connection last.
	handler.hub.Register(conn)
	defer handler.hub.Unregister(sess.ID)
	defer conn.Close()

	if err := handler.svc.OnConnect(ctx, sess); err != nil {
		handler.logger.Error(ctx, "client_connect_failed", "Failed to activate session", err, nil)
		conn.WriteClose(gorillaws.CloseInternalServerErr, "internal error")
		return
	}

	reason := handler.serve(ctx, ws, conn, sess)
	handler.svc.OnDisconnect(ctx, sess, reason)
}

// serve runs the read loop and the ping loop. It returns the reason the connection ended.
func (handler *GatewayHTTPHandler) serve(ctx context.Context, ws *gorillaws.Conn, conn *websocket.Conn, sess *session.Session) string {
	ws.SetReadLimit(wsReadLimit)
	_ = ws.SetReadDeadline(time.Now().Add(handler.opts.ReadTimeout))

	// every pong proves the client is alive: re-arm the read deadline and the driver's expiries
	ws.SetPongHandler(func(string) error {
		_ = handler.svc.Heartbeat(ctx, sess)
		return ws.SetReadDeadline(time.Now().Add(handler.opts.ReadTimeout))
	})

	stop := make(chan struct{})
	defer close(stop)
	go handler.pingLoop(ctx, conn, stop)

	for {
		_, payload, err := ws.ReadMessage()
		if err != nil {
			return handler.closeReason(ctx, conn, err)
		}
		_ = ws.SetReadDeadline(time.Now().Add(handler.opts.ReadTimeout))

		handler.svc.Dispatch(ctx, sess, payload)
	}
}

// pingLoop pings at a fixed interval. A failed ping closes the socket to unblock the reader.
func (handler *GatewayHTTPHandler) pingLoop(ctx context.Context, conn *websocket.Conn, stop <-chan struct{}) {
	ticker := time.NewTicker(handler.opts.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			conn.WriteClose(gorillaws.CloseGoingAway, reasonServerClose)
			_ = conn.Close()
			return
		case <-ticker.C:
			if err := conn.Ping(); err != nil {
				if !errors.Is(err, websocket.ErrConnClosed) {
					handler.logger.Warn(ctx, "ws_ping_failed", "Failed to send ping", errDetails(err))
				}
				_ = conn.Close()
				return
			}
		}
	}
}

func (handler *GatewayHTTPHandler) closeReason(ctx context.Context, conn *websocket.Conn, err error) string {
	var netErr net.Error
	switch {
	case gorillaws.IsCloseError(err, gorillaws.CloseNormalClosure, gorillaws.CloseGoingAway):
		conn.WriteClose(gorillaws.CloseNormalClosure, "bye")
		return reasonClientClosed
	case errors.As(err, &netErr) && netErr.Timeout():
		return reasonTimeout
	case ctx.Err() != nil:
		return reasonServerClose
	default:
		handler.logger.Debug(ctx, "ws_unexpected_close", "Connection closed unexpectedly", errDetails(err))
		return reasonLost
	}
}
