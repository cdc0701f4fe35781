package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/MMSchneider/dubswitch-sub000/internal/history"
	"github.com/MMSchneider/dubswitch-sub000/internal/infrastructure/config"
	"github.com/MMSchneider/dubswitch-sub000/internal/infrastructure/logging"
	"github.com/MMSchneider/dubswitch-sub000/internal/store"
	"github.com/MMSchneider/dubswitch-sub000/internal/x32"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// exitDelay gives the set-port response time to flush before the process
// leaves for its supervisor restart.
const exitDelay = 250 * time.Millisecond

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config   config.APIConfig
	WS       config.WebSocketConfig
	Logger   *logging.Logger
	Engine   *x32.Engine
	Store    *store.Store
	History  history.Repository  // Optional; nil disables /routing-history content
	Gatherer prometheus.Gatherer // Optional; nil falls back to the default registry
	Version  string

	// Exit replaces os.Exit for the set-port restart path. Tests inject
	// a recorder here.
	Exit func(code int)
}

// Server is the HTTP admin and WebSocket server for dubswitch.
//
// It manages the HTTP listener, routes, middleware, and the session hub.
// The server is created with New() and started with Start().
type Server struct {
	cfg      config.APIConfig
	wsCfg    config.WebSocketConfig
	logger   *logging.Logger
	engine   *x32.Engine
	store    *store.Store
	history  history.Repository
	gatherer prometheus.Gatherer
	version  string
	exit     func(code int)

	server  *http.Server
	hub     *Hub
	cancel  context.CancelFunc
	started time.Time
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called. The session hub
// exists from this point, so the engine's broadcaster can be wired
// before any traffic flows.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Engine == nil {
		return nil, fmt.Errorf("engine is required")
	}
	if deps.Store == nil {
		return nil, fmt.Errorf("store is required")
	}

	s := &Server{
		cfg:      deps.Config,
		wsCfg:    deps.WS,
		logger:   deps.Logger,
		engine:   deps.Engine,
		store:    deps.Store,
		history:  deps.History,
		gatherer: deps.Gatherer,
		version:  deps.Version,
		exit:     deps.Exit,
	}
	if s.exit == nil {
		s.exit = os.Exit
	}

	s.hub = NewHub(deps.WS, deps.Logger)

	return s, nil
}

// Hub returns the session hub, for wiring as the engine's broadcaster.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Start begins listening for HTTP connections.
//
// It starts the session hub and launches the HTTP listener in a
// background goroutine. The server can be stopped with Close().
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	go s.hub.Run(srvCtx)

	s.started = time.Now()

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		s.logger.Info("API server starting", "address", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	if s.cancel != nil {
		s.cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}
