package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/nerrad567/uplink-switcher/internal/history"
	"github.com/nerrad567/uplink-switcher/internal/infrastructure/config"
	"github.com/nerrad567/uplink-switcher/internal/infrastructure/logging"
	"github.com/nerrad567/uplink-switcher/internal/state"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// SessionSource exposes the running sessions. Implemented by *session.Manager.
type SessionSource interface {
	Users() []string
	Snapshots() []state.Snapshot
	Snapshot(user string) (state.Snapshot, bool)
}

// HealthChecker is implemented by the database, MQTT and InfluxDB clients.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config   config.APIConfig
	Logger   *logging.Logger
	Sessions SessionSource

	// History backs the history endpoint. Nil answers 503.
	History history.Reader

	// Checks are reported by the health endpoint, keyed by component name.
	Checks map[string]HealthChecker

	// Hub relays events to WebSocket clients. If nil the server creates its own.
	Hub *Hub

	Version string
}

// Server is the HTTP status API.
//
// The server is created with New() and started with Start().
type Server struct {
	cfg      config.APIConfig
	logger   *logging.Logger
	sessions SessionSource
	history  history.Reader
	checks   map[string]HealthChecker
	hub      *Hub
	version  string
	router   http.Handler

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
	cancel   context.CancelFunc
}

// New creates a new API server with the given dependencies.
//
// Parameters:
//   - deps: Logger and Sessions are required
//
// Returns:
//   - *Server: Configured server ready to start
//   - error: If required dependencies are missing
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Sessions == nil {
		return nil, fmt.Errorf("session source is required")
	}

	s := &Server{
		cfg:      deps.Config,
		logger:   deps.Logger,
		sessions: deps.Sessions,
		history:  deps.History,
		checks:   deps.Checks,
		hub:      deps.Hub,
		version:  deps.Version,
	}
	if s.hub == nil {
		s.hub = NewHub(deps.Logger)
	}
	s.router = s.buildRouter()
	return s, nil
}

// Hub returns the WebSocket hub so it can be added to the event fanout.
func (s *Server) Hub() *Hub { return s.hub }

// Handler returns the router with all middleware applied.
func (s *Server) Handler() http.Handler { return s.router }

// Start binds the listener and serves in a background goroutine.
//
// Parameters:
//   - ctx: Parent of the hub's lifetime; Close also stops it
//
// Returns:
//   - error: If the address cannot be bound
func (s *Server) Start(ctx context.Context) error {
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}

	srvCtx, cancel := context.WithCancel(ctx)
	go s.hub.Run(srvCtx)

	srv := &http.Server{
		Handler:           s.router,
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	s.mu.Lock()
	s.server = srv
	s.listener = ln
	s.cancel = cancel
	s.mu.Unlock()

	s.logger.Info("API server starting", "address", ln.Addr().String())
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()
	return nil
}

// Addr returns the bound address, or "" before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
func (s *Server) Close() error {
	s.mu.Lock()
	srv, cancel := s.server, s.cancel
	s.server, s.cancel = nil, nil
	s.mu.Unlock()

	if srv == nil {
		return nil
	}
	// Stops the hub, which closes every WebSocket client.
	cancel()

	ctx, done := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer done()

	s.logger.Info("API server shutting down")
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}
