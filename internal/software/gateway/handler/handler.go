package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	gorillaws "github.com/gorilla/websocket"

	"fleet-tracker/internal/domain/user"
	"fleet-tracker/internal/general/jwt"
	"fleet-tracker/internal/general/logger"
	"fleet-tracker/internal/general/websocket"
	"fleet-tracker/internal/ports"
)

const (
	defaultPingInterval = 25 * time.Second
	defaultReadTimeout  = 60 * time.Second
	wsReadLimit         = 64 << 10
)

// Options configure the gateway transport. Tokens is nil unless dev token minting is enabled.
type Options struct {
	AllowedOrigins []string
	PingInterval   time.Duration
	ReadTimeout    time.Duration
	StoreDriver    string
	BusDriver      string
	Tokens         *jwt.Manager
}

// GatewayHTTPHandler adapts HTTP requests and WebSocket connections to the GatewayService.
type GatewayHTTPHandler struct {
	svc      ports.GatewayService
	hub      *websocket.Hub
	verifier ports.TokenVerifier
	logger   *logger.Logger
	upgrader *gorillaws.Upgrader
	opts     Options
}

// NewGatewayHTTPHandler wires an HTTP handler around the GatewayService.
func NewGatewayHTTPHandler(
	svc ports.GatewayService,
	hub *websocket.Hub,
	verifier ports.TokenVerifier,
	logger *logger.Logger,
	opts Options,
) *GatewayHTTPHandler {
	if opts.PingInterval <= 0 {
		opts.PingInterval = defaultPingInterval
	}
	if opts.ReadTimeout <= opts.PingInterval {
		opts.ReadTimeout = max(defaultReadTimeout, 2*opts.PingInterval)
	}
	return &GatewayHTTPHandler{
		svc:      svc,
		hub:      hub,
		verifier: verifier,
		logger:   logger,
		upgrader: websocket.NewUpgrader(opts.AllowedOrigins),
		opts:     opts,
	}
}

// RegisterRoutes mounts gateway endpoints on the provided mux.
func (handler *GatewayHTTPHandler) RegisterRoutes(mux *http.ServeMux) {
	fleet := jwt.AuthMiddlewareFunc(handler.verifier, user.RoleAdmin, user.RoleDispatcher)

	// the WebSocket handshake authenticates through the gateway service itself
	mux.HandleFunc("GET /ws", handler.handleWS)

	mux.HandleFunc("GET /drivers/locations", fleet(handler.handleDriverSnapshots))
	mux.HandleFunc("GET /drivers/live", fleet(handler.handleLiveState))
	mux.HandleFunc("POST /orders/status", fleet(handler.handleOrderStatus))

	mux.HandleFunc("GET /health", handler.handleHealth)
	if handler.opts.Tokens != nil {
		mux.HandleFunc("POST /tokens", handler.handleCreateToken)
	}
}

// ----- general helpers -----

// jsonResponse takes any type of data and encode it to HTTP response.
func (handler *GatewayHTTPHandler) jsonResponse(ctx context.Context, w http.ResponseWriter, status int, data any) {
	// encode to buffer first so we can control status on failure
	var buf []byte
	var err error

	if data != nil {
		buf, err = json.Marshal(data)
		if err != nil {
			handler.logger.Error(ctx, "response_encode_failed", "Failed to encode response", err, nil)
			http.Error(w, `{"error":"failed to encode response"}`, http.StatusInternalServerError)
			return
		}
	} else {
		buf = []byte("{}")
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(buf)
}

// httpError sends a JSON error response with a message.
func (handler *GatewayHTTPHandler) httpError(ctx context.Context, w http.ResponseWriter, status int, msg string, err error) {
	switch {
	case status >= 500:
		handler.logger.Error(ctx, "http_internal_error", msg, err, nil)
	case status == http.StatusBadRequest:
		handler.logger.Warn(ctx, "validation_failed", msg, errDetails(err))
	default:
		handler.logger.Info(ctx, "request_rejected", msg, errDetails(err))
	}

	type errBody struct {
		Error string `json:"error"`
	}
	handler.jsonResponse(ctx, w, status, errBody{Error: msg})
}

// withReqID extracts or generates a request ID and adds it to the context.
func (handler *GatewayHTTPHandler) withReqID(ctx context.Context, r *http.Request) context.Context {
	reqID := r.Header.Get("X-Request-ID")
	if strings.TrimSpace(reqID) == "" {
		reqID = uuid.NewString()
	}
	return handler.logger.WithRequestID(ctx, reqID)
}

func errDetails(err error) map[string]any {
	if err == nil {
		return nil
	}
	return map[string]any{"error": err.Error()}
}
