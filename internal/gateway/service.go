package gateway

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/medrex/portal-authz/internal/authz"
	"github.com/medrex/portal-authz/internal/verifier"
	"github.com/medrex/portal-authz/pkg/config"
	"github.com/medrex/portal-authz/pkg/logger"
	"github.com/medrex/portal-authz/pkg/monitoring"
)

// ServiceName labels the gateway's metrics, traces and health reports
const ServiceName = "authz-gateway"

// Version is reported by the health endpoint
var Version = "dev"

// Service serves route access decisions, landing pages and navigation to the
// portal frontend. The policy is fixed for the lifetime of the process.
type Service struct {
	router     *mux.Router
	server     *http.Server
	engine     *authz.Engine
	principals PrincipalResolver
	limiter    *RateLimiter
	logger     *logger.Logger
	metrics    *monitoring.MetricsCollector
	tracing    *monitoring.TracingManager
	health     *monitoring.HealthManager
	config     *config.Config
	status     policyStatus
	stop       context.CancelFunc
}

// Option customises a Service
type Option func(*Service)

// WithPrincipalResolver replaces the header based role resolver
func WithPrincipalResolver(resolver PrincipalResolver) Option {
	return func(s *Service) {
		s.principals = resolver
	}
}

// WithTracing enables request and decision spans
func WithTracing(tm *monitoring.TracingManager) Option {
	return func(s *Service) {
		s.tracing = tm
	}
}

// WithRateLimiter replaces the limiter built from configuration
func WithRateLimiter(rl *RateLimiter) Option {
	return func(s *Service) {
		s.limiter = rl
	}
}

// NewService builds the gateway around engine. The policy is verified once
// here; the results back the policy endpoints, health check and gauges.
func NewService(cfg *config.Config, engine *authz.Engine, log *logger.Logger, opts ...Option) *Service {
	s := &Service{
		router:     mux.NewRouter(),
		engine:     engine,
		principals: NewHeaderPrincipalResolver(cfg.Server.RolesHeader),
		logger:     log,
		metrics:    monitoring.NewMetricsCollector(ServiceName),
		health:     monitoring.NewHealthManager(ServiceName, Version),
		config:     cfg,
	}
	if cfg.RateLimit.Enabled {
		s.limiter = NewRateLimiter(cfg.RateLimit.RequestsPerMin, time.Minute)
	}

	for _, opt := range opts {
		opt(s)
	}

	s.status = verifyPolicy(verifier.New(engine.Store(), engine))
	s.status.publish(s.metrics)
	s.health.SetPolicy(s.status.health())

	s.setupRoutes()
	s.setupMiddleware()

	s.server = &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      s.Handler(),
		ReadTimeout:  config.Timeout(cfg.Server.ReadTimeout),
		WriteTimeout: config.Timeout(cfg.Server.WriteTimeout),
		IdleTimeout:  config.Timeout(cfg.Server.IdleTimeout),
	}

	return s
}

// Handler returns the complete HTTP handler chain
func (s *Service) Handler() http.Handler {
	return s.corsMiddleware(s.securityHeadersMiddleware(s.router))
}

// PolicyPassed reports whether the loaded policy verified cleanly
func (s *Service) PolicyPassed() bool {
	return s.status.passed
}

// Start serves until Stop is called. It returns http.ErrServerClosed after a
// graceful shutdown.
func (s *Service) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.stop = cancel

	if s.limiter != nil && s.config.RateLimit.CleanupInterval > 0 {
		s.limiter.StartCleanup(ctx, config.Timeout(s.config.RateLimit.CleanupInterval))
	}

	s.logger.WithComponent("gateway").WithFields(map[string]interface{}{
		"addr":           s.server.Addr,
		"policy_version": s.engine.Store().Version(),
	}).Info("Starting authorization gateway")
	return s.server.ListenAndServe()
}

// Stop drains in-flight requests until ctx expires
func (s *Service) Stop(ctx context.Context) error {
	if s.stop != nil {
		s.stop()
	}

	s.logger.WithComponent("gateway").Info("Stopping authorization gateway")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shut down gateway: %w", err)
	}
	return nil
}

func (s *Service) setupRoutes() {
	if s.config.Monitoring.Enabled {
		s.router.Handle(s.config.Monitoring.HealthPath, s.health.HTTPHandler()).Methods(http.MethodGet)
		s.router.Handle(s.config.Monitoring.MetricsPath, s.metrics.Handler()).Methods(http.MethodGet)
	}

	api := s.router.PathPrefix("/v1").Subrouter()
	api.Use(s.rateLimitMiddleware)

	api.HandleFunc("/authorize", s.handleAuthorize).Methods(http.MethodGet)
	api.HandleFunc("/landing", s.handleLanding).Methods(http.MethodGet)
	api.HandleFunc("/navigation", s.handleNavigation).Methods(http.MethodGet)
	api.Handle("/forward-auth", s.routeGuardMiddleware(http.HandlerFunc(s.handleForwardAuth)))
	api.HandleFunc("/policy/report", s.handlePolicyReport).Methods(http.MethodGet)
	api.HandleFunc("/policy/issues", s.handlePolicyIssues).Methods(http.MethodGet)
	api.HandleFunc("/policy/matrix", s.handlePolicyMatrix).Methods(http.MethodGet)
}

func (s *Service) setupMiddleware() {
	mm := monitoring.NewMonitoringMiddleware(s.metrics, s.tracing, s.logger, routeTemplate)
	s.router.Use(mm.HTTPMiddleware)
}

// routeTemplate labels requests by their mux template to bound metric cardinality
func routeTemplate(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return r.URL.Path
}
