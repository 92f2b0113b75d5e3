// Package server wires the broker, the durable store, the fan-out bus, and
// the session gateway into an echo HTTP server.
package server

import (
	"context"
	"log/slog"
	"os"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/surrealdb/surrealdb.go"

	"github.com/nfrund/courier/internal/broker"
	"github.com/nfrund/courier/internal/config"
	"github.com/nfrund/courier/internal/database"
	"github.com/nfrund/courier/internal/gateway"
	"github.com/nfrund/courier/internal/handlers"
	"github.com/nfrund/courier/internal/logging"
	appmiddleware "github.com/nfrund/courier/internal/middleware"
	"github.com/nfrund/courier/internal/pubsub"
)

// Server holds the dependencies for the broker process.
type Server struct {
	E       *echo.Echo
	Cfg     *config.Config
	Broker  *broker.Broker
	Gateway *gateway.Gateway

	handler *handlers.BrokerHandler
	bus     *pubsub.WatermillBridge
	db      *surrealdb.DB
	stop    func()
	cleanup func()
}

// New creates a production Server from the environment. Fatal wiring
// failures exit the process.
func New() *Server {
	logging.New()

	cfg, err := config.New()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	var (
		store broker.Store
		db    *surrealdb.DB
	)
	switch cfg.StoreDriver {
	case config.DriverMemory:
		slog.Warn("Using in-memory store; state will not survive a restart")
		store = database.NewMemoryStore()
	default:
		db, err = database.NewDB(context.Background(), cfg)
		if err != nil {
			slog.Error("Failed to connect to database", "error", err)
			os.Exit(1)
		}
		store = database.NewSurrealStore(db)
	}

	tracer, cleanup, err := pubsub.SetupOTel(context.Background(), pubsub.LoadTracingConfigFromEnv())
	if err != nil {
		slog.Error("Failed to initialize bus tracing", "error", err)
		os.Exit(1)
	}

	bus := pubsub.NewWatermillBridge().WithTracing(tracer)
	s := build(cfg, store, bus)
	s.db = db
	s.cleanup = cleanup
	return s
}

// build wires a Server from explicit collaborators. Tests use it to
// substitute an isolated store and bus.
func build(cfg *config.Config, store broker.Store, bus *pubsub.WatermillBridge) *Server {
	notifier := broker.NewBusNotifier(bus)
	b := broker.New(store, notifier)

	gwCtx, gwCancel := context.WithCancel(context.Background())
	gw := gateway.New(b, notifier)
	go gw.Run(gwCtx)
	if err := gw.Start(gwCtx, bus); err != nil {
		gwCancel()
		slog.Error("Failed to attach gateway to bus", "error", err)
		os.Exit(1)
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(appmiddleware.Logger)
	e.Validator = handlers.NewValidator()

	return &Server{
		E:       e,
		Cfg:     cfg,
		Broker:  b,
		Gateway: gw,
		handler: handlers.NewBrokerHandler(b),
		bus:     bus,
		stop:    gwCancel,
	}
}
