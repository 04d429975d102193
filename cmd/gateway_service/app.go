package gatewayservice

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"fleet-tracker/internal/general/config"
	"fleet-tracker/internal/general/jwt"
	"fleet-tracker/internal/general/kafka"
	"fleet-tracker/internal/general/logger"
	"fleet-tracker/internal/general/memory"
	"fleet-tracker/internal/general/postgres"
	"fleet-tracker/internal/general/rabbitmq"
	"fleet-tracker/internal/general/redis"
	"fleet-tracker/internal/general/websocket"
	"fleet-tracker/internal/ports"
	"fleet-tracker/internal/software/gateway/handler"
	"fleet-tracker/internal/software/gateway/service"
)

// Run wires the connection gateway and blocks until ctx is cancelled.
func Run(ctx context.Context, configPath string, maxConcurrent int) error {
	// set up a new logger for the gateway with a static request ID for startup logs
	logger := logger.New("gateway-service")
	defer func() { _ = logger.Sync() }()
	ctx = logger.WithRequestID(ctx, "startup-001")

	// load a config from file
	cfg, err := config.LoadFromFile(configPath)
	if err != nil {
		logger.Error(ctx, "config_load_failed", "Failed to load configuration", err, nil)
		return err
	}

	// set up a Postgres connection pool (identities, profiles, durable last-known state)
	pool, err := postgres.NewPool(ctx, cfg, logger)
	if err != nil {
		logger.Error(ctx, "db_connection_failed", "Failed to initialize Postgres pool", err, nil)
		return err
	}
	defer pool.Close()

	identityRepo := postgres.NewIdentityRepo(pool)
	driverRepo := postgres.NewDriverRepo(pool)

	// set up the JWT manager and the verifier backed by the identity table
	jwtManager := jwt.NewManager(cfg.JWT.SecretKey, 2*time.Hour)
	verifier := jwt.NewVerifier(jwtManager, identityRepo)

	// set up the state store and the event bus
	store, bus, closeInfra, err := buildInfra(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeInfra()

	// optional location archive
	var archiver ports.LocationArchiver
	if cfg.ArchiveEnabled() {
		a := kafka.NewArchiver(cfg, logger)
		defer func() { _ = a.Close() }()
		archiver = a
	}

	// set up the local connection registry and the gateway service shared by every handler
	hub := websocket.NewHub(logger)
	svc := service.New(service.Deps{
		Logger:    logger,
		Store:     store,
		Bus:       bus,
		Verifier:  verifier,
		Profiles:  identityRepo,
		Rooms:     hub,
		Snapshots: driverRepo,
		LastKnown: driverRepo,
		Archiver:  archiver,
		OpTimeout: cfg.Gateway.OpTimeout,
	})

	// relay bus events to local rooms for as long as the service runs
	relayDone := make(chan struct{})
	go func() {
		defer close(relayDone)
		svc.RunRelay(ctx)
	}()

	// set up the HTTP handler and its routes
	var tokens *jwt.Manager
	if cfg.JWT.DevTokens {
		tokens = jwtManager
	}
	mux := http.NewServeMux()
	httpHandler := handler.NewGatewayHTTPHandler(svc, hub, verifier, logger, handler.Options{
		AllowedOrigins: cfg.Gateway.AllowedOrigins,
		PingInterval:   cfg.Gateway.PingInterval,
		ReadTimeout:    cfg.Gateway.ReadTimeout,
		StoreDriver:    cfg.Store.Driver,
		BusDriver:      cfg.Bus.Driver,
		Tokens:         tokens,
	})
	httpHandler.RegisterRoutes(mux)

	// concurrency limiter (global) — blocks when capacity is full
	limitedHandler := withConcurrencyLimit(maxConcurrent, mux)

	// log service start
	logger.Info(ctx, "service_started",
		fmt.Sprintf("Gateway started on port %d", cfg.Gateway.Port),
		map[string]any{
			"port":           cfg.Gateway.Port,
			"max_concurrent": maxConcurrent,
			"store_driver":   cfg.Store.Driver,
			"bus_driver":     cfg.Bus.Driver,
			"archive":        cfg.ArchiveEnabled(),
		},
	)

	// set up the server configurations; no Read/WriteTimeout because WebSocket connections
	// are long-lived and carry their own deadlines
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Gateway.Port),
		Handler:           limitedHandler,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	// start the server in a background goroutine
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	// wait for context cancellation or server error
	select {
	case <-ctx.Done():
		// graceful HTTP shutdown; open sockets are closed by their ping loops via ctx
		shCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error(ctx, "http_shutdown_failed", "Failed to gracefully shut down HTTP server", err, nil)
		}
		<-relayDone
	case err := <-errCh:
		if err != nil {
			logger.Error(ctx, "http_server_error", "HTTP server terminated with error", err, map[string]any{"port": cfg.Gateway.Port})
			return err
		}
	}

	logger.Info(context.WithoutCancel(ctx), "service_stopped", "Gateway stopped", nil)
	return nil
}

// buildInfra picks the state store and event bus drivers from config.
func buildInfra(ctx context.Context, cfg *config.Config, logger *logger.Logger) (ports.StateStore, ports.EventBus, func(), error) {
	var closers []func()
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(action, msg string, err error) (ports.StateStore, ports.EventBus, func(), error) {
		logger.Error(ctx, action, msg, err, nil)
		closeAll()
		return nil, nil, nil, err
	}

	needRedis := cfg.Store.Driver == config.DriverRedis || cfg.Bus.Driver == config.DriverRedis
	var (
		redisOpt    *goredis.Options
		redisClient *goredis.Client
	)
	if needRedis {
		opt, err := redis.Options(cfg)
		if err != nil {
			return fail("redis_config_invalid", "Invalid Redis configuration", err)
		}
		// the state store cannot run without Redis; the bus alone degrades instead
		var client *goredis.Client
		if cfg.Store.Driver == config.DriverRedis {
			if client, err = redis.Connect(ctx, opt, logger); err != nil {
				return fail("redis_connection_failed", "Failed to connect to Redis", err)
			}
		} else {
			client = goredis.NewClient(opt)
		}
		closers = append(closers, func() { _ = client.Close() })
		redisOpt, redisClient = opt, client
	}

	var store ports.StateStore
	switch cfg.Store.Driver {
	case config.DriverRedis:
		store = redis.NewStore(redisClient, cfg.LocationTTL(), cfg.PresenceTTL())
	default:
		store = memory.NewStore(cfg.LocationTTL(), cfg.PresenceTTL())
	}

	var bus ports.EventBus
	switch cfg.Bus.Driver {
	case config.DriverRedis:
		// subscriptions hold their own connection so publishes never queue behind them.
		// go-redis dials lazily; an unreachable broker surfaces in the relay's Subscribe.
		sub := goredis.NewClient(redisOpt)
		closers = append(closers, func() { _ = sub.Close() })
		bus = redis.NewBus(redisClient, sub)

	case config.DriverRabbitMQ:
		pub := rabbitmq.ConnectRabbitMQ(ctx, cfg, "gateway-publisher", logger)
		sub := rabbitmq.ConnectRabbitMQ(ctx, cfg, "gateway-subscriber", logger)
		bus = rabbitmq.NewBus(pub, sub)

	default:
		bus = memory.NewBroker().Bus()
	}
	closers = append(closers, func() { _ = bus.Close() })

	return store, bus, closeAll, nil
}

// withConcurrencyLimit wraps an http.Handler with a semaphore-based limiter.
// WebSocket connections hold a slot for their whole lifetime.
func withConcurrencyLimit(n int, next http.Handler) http.Handler {
	if n <= 0 {
		return next
	}
	sem := make(chan struct{}, n)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case sem <- struct{}{}: // acquire
			defer func() { <-sem }() // release
			next.ServeHTTP(w, r)
		case <-r.Context().Done():
			// client canceled or server is shutting down
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		}
	})
}
