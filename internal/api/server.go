package api

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/nerrad567/pinforge-core/internal/audit"
	"github.com/nerrad567/pinforge-core/internal/infrastructure/config"
	"github.com/nerrad567/pinforge-core/internal/infrastructure/logging"
	"github.com/nerrad567/pinforge-core/internal/infrastructure/metrics"
	"github.com/nerrad567/pinforge-core/internal/project"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Database is the subset of the database handle the server reports on.
type Database interface {
	HealthCheck(ctx context.Context) error
	Stats() sql.DBStats
}

// ConnectionStatus reports whether an optional backend is connected.
type ConnectionStatus interface {
	IsConnected() bool
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config   config.APIConfig
	WS       config.WebSocketConfig
	Security config.SecurityConfig
	Logger   *logging.Logger
	Service  *project.Service

	// Optional.
	DB       Database
	MQTT     ConnectionStatus
	InfluxDB ConnectionStatus
	Metrics  *prometheus.Registry
	Audit    audit.Repository

	// DefaultConstraints is applied to requests that omit
	// use_default_constraints.
	DefaultConstraints bool
	Version            string
}

// Server is the HTTP API server for pinforge.
//
// It manages the HTTP listener, routes, middleware, and WebSocket hub.
// The server is created with New() and started with Start().
type Server struct {
	cfg                config.APIConfig
	wsCfg              config.WebSocketConfig
	secCfg             config.SecurityConfig
	logger             *logging.Logger
	service            *project.Service
	db                 Database
	mqtt               ConnectionStatus
	influx             ConnectionStatus
	metrics            *prometheus.Registry
	auditRepo          audit.Repository
	auditCh            chan *audit.AuditLog
	defaultConstraints bool
	version            string
	startTime          time.Time
	now                func() time.Time

	hub     *Hub
	handler http.Handler
	server  *http.Server
	cancel  context.CancelFunc
}

// New creates a new API server with the given dependencies.
//
// The hub exists from construction so it can be registered as the
// service's broadcaster before Start.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Service == nil {
		return nil, fmt.Errorf("project service is required")
	}
	if deps.Security.AuthEnabled && deps.Security.JWT.Secret == "" {
		return nil, fmt.Errorf("jwt secret is required when auth is enabled")
	}

	s := &Server{
		cfg:                deps.Config,
		wsCfg:              deps.WS,
		secCfg:             deps.Security,
		logger:             deps.Logger,
		service:            deps.Service,
		db:                 deps.DB,
		mqtt:               deps.MQTT,
		influx:             deps.InfluxDB,
		metrics:            deps.Metrics,
		auditRepo:          deps.Audit,
		auditCh:            make(chan *audit.AuditLog, auditChanSize),
		defaultConstraints: deps.DefaultConstraints,
		version:            deps.Version,
		startTime:          time.Now(),
		now:                time.Now,
	}
	s.hub = NewHub(s.wsCfg, s.logger)
	if s.metrics != nil {
		if err := s.metrics.Register(metrics.NewCollector(s.stats)); err != nil {
			return nil, fmt.Errorf("registering api collector: %w", err)
		}
	}
	s.handler = s.buildRouter()
	return s, nil
}

// stats snapshots the gauges reported on /metrics.
func (s *Server) stats() metrics.Stats {
	mcus, sensors, constraints := s.catalog().Stats()
	return metrics.Stats{
		CatalogMCUs:        mcus,
		CatalogSensors:     sensors,
		CatalogConstraints: constraints,
		WebSocketClients:   s.hub.ClientCount(),
	}
}

// Hub returns the server's WebSocket hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start runs the WebSocket hub and launches the HTTP listener in a
// background goroutine. The server can be stopped with Close().
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)
	go s.hub.Run(srvCtx)
	if s.auditRepo != nil {
		go s.drainAuditLog(srvCtx)
	}

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.handler,
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		var err error
		if s.cfg.TLS.Enabled {
			s.logger.Info("API server starting with TLS",
				"address", s.server.Addr,
				"cert", s.cfg.TLS.CertFile,
			)
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

// HealthCheck verifies the API server is running and responsive.
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
