package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/nerrad567/gray-logic-roku/internal/bridges/roku"
	"github.com/nerrad567/gray-logic-roku/internal/device"
	"github.com/nerrad567/gray-logic-roku/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-roku/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-roku/internal/infrastructure/mqtt"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// historyPruneInterval is how often old state history is deleted.
const historyPruneInterval = time.Hour

// RokuController is the direct (non-MQTT) view of the Roku bridge.
// It is satisfied by *roku.Bridge.
type RokuController interface {
	Entities() []roku.EntityState
	Entity(deviceID string) (roku.EntityState, bool)
	Execute(ctx context.Context, cmd roku.CommandMessage) error
	GetMetrics() roku.BridgeMetrics
}

// StateSubscriber receives bridge state publications.
// It is satisfied by *mqtt.Client.
type StateSubscriber interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	IsConnected() bool
}

// MediaTelemetry records media player snapshots.
// It is satisfied by *influxdb.Client.
type MediaTelemetry interface {
	WriteMediaState(deviceID string, state map[string]any, ts time.Time)
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config   config.APIConfig
	WS       config.WebSocketConfig
	Security config.SecurityConfig
	Logger   *logging.Logger
	Registry *device.Registry

	// Optional.
	History   device.StateHistoryRepository
	Roku      RokuController
	MQTT      StateSubscriber
	Telemetry MediaTelemetry
	Version   string

	// HistoryRetention prunes state history older than this. Zero disables.
	HistoryRetention time.Duration
}

// Server is the HTTP API server for the Roku service.
//
// It manages the HTTP listener, routes, middleware, and WebSocket hub.
type Server struct {
	cfg       config.APIConfig
	wsCfg     config.WebSocketConfig
	secCfg    config.SecurityConfig
	logger    *logging.Logger
	registry  *device.Registry
	history   device.StateHistoryRepository
	retention time.Duration
	roku      RokuController
	mqtt      StateSubscriber
	telemetry MediaTelemetry
	version   string
	startTime time.Time
	server    *http.Server
	hub       *Hub
	cancel    context.CancelFunc
}

// New creates a new API server. The server is not started until Start is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Registry == nil {
		return nil, fmt.Errorf("device registry is required")
	}
	if deps.Security.JWT.Secret == "" {
		return nil, fmt.Errorf("jwt secret is required")
	}

	return &Server{
		cfg:       deps.Config,
		wsCfg:     deps.WS,
		secCfg:    deps.Security,
		logger:    deps.Logger,
		registry:  deps.Registry,
		history:   deps.History,
		retention: deps.HistoryRetention,
		roku:      deps.Roku,
		mqtt:      deps.MQTT,
		telemetry: deps.Telemetry,
		version:   deps.Version,
		startTime: time.Now(),
		hub:       NewHub(deps.WS, deps.Logger),
	}, nil
}

// Start sets up the router, starts the WebSocket hub, subscribes to MQTT
// state topics and launches the HTTP listener in a background goroutine.
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	go s.hub.Run(srvCtx)

	if err := s.subscribeStateUpdates(); err != nil {
		s.logger.Warn("failed to subscribe to state updates for WebSocket", "error", err)
	}

	if s.history != nil && s.retention > 0 {
		go s.pruneHistoryLoop(srvCtx)
	}

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		var err error
		if s.cfg.TLS.Enabled {
			s.logger.Info("API server starting with TLS", "address", s.server.Addr, "cert", s.cfg.TLS.CertFile)
			err = s.server.ListenAndServeTLS(s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
		} else {
			s.logger.Info("API server starting", "address", s.server.Addr)
			err = s.server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the API server, waiting up to 10 seconds for
// in-flight requests.
func (s *Server) Close() error {
	if s.cancel != nil {
		s.cancel()
	}
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// pruneHistoryLoop prunes state history at startup and then hourly.
func (s *Server) pruneHistoryLoop(ctx context.Context) {
	ticker := time.NewTicker(historyPruneInterval)
	defer ticker.Stop()

	for {
		s.pruneHistory(ctx)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Server) pruneHistory(ctx context.Context) {
	deleted, err := s.history.PruneHistory(ctx, s.retention)
	if err != nil {
		s.logger.Warn("state history prune failed", "error", err)
		return
	}
	if deleted > 0 {
		s.logger.Info("state history pruned", "deleted", deleted, "retention", s.retention.String())
	}
}

// HealthCheck reports whether the server has been started.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}
	return nil
}
