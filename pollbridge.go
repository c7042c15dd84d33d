// Package pollbridge assembles the request bridge, the tool registry, and
// the polling protocol adapter into one service.
//
// The service sits between an AI-assistant process and a sandboxed,
// HTTP-only plugin runtime: assistant-side callers invoke named tools, the
// plugin pulls the resulting requests over HTTP and posts responses back.
package pollbridge

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/pollbridge/pollbridge-go/bridge"
	"github.com/pollbridge/pollbridge-go/health"
	"github.com/pollbridge/pollbridge-go/httpapi"
	"github.com/pollbridge/pollbridge-go/tools"
)

// DefaultListenAddr binds to loopback only; the plugin runtime discovers the
// port locally and nothing else should reach the bridge.
const DefaultListenAddr = "127.0.0.1:8787"

// Service is the main entry point for pollbridge.
type Service struct {
	bridge   *bridge.Bridge
	registry *tools.Registry
	adapter  *httpapi.Server
	httpSrv  *http.Server
	logger   *slog.Logger
	addr     string
}

type serviceConfig struct {
	listenAddr          string
	overallTimeout      time.Duration
	staleDispatchWindow time.Duration
	sweepInterval       time.Duration
	maxPending          int
	pollInterval        time.Duration
	idleThreshold       time.Duration
	logger              *slog.Logger
	extraTools          []tools.Definition
}

// ServiceOption configures the service.
type ServiceOption func(*serviceConfig)

// WithListenAddr sets the HTTP listen address.
func WithListenAddr(addr string) ServiceOption {
	return func(c *serviceConfig) {
		c.listenAddr = addr
	}
}

// WithLogger sets the logger used by every component.
func WithLogger(logger *slog.Logger) ServiceOption {
	return func(c *serviceConfig) {
		c.logger = logger
	}
}

// WithOverallTimeout sets the hard limit on a request's outstanding lifetime.
func WithOverallTimeout(timeout time.Duration) ServiceOption {
	return func(c *serviceConfig) {
		c.overallTimeout = timeout
	}
}

// WithStaleDispatchWindow sets how long a claim may go unanswered before the
// request becomes claimable again.
func WithStaleDispatchWindow(window time.Duration) ServiceOption {
	return func(c *serviceConfig) {
		c.staleDispatchWindow = window
	}
}

// WithSweepInterval sets the bridge's expiry sweep interval.
func WithSweepInterval(interval time.Duration) ServiceOption {
	return func(c *serviceConfig) {
		c.sweepInterval = interval
	}
}

// WithMaxPending caps the number of outstanding requests.
func WithMaxPending(max int) ServiceOption {
	return func(c *serviceConfig) {
		c.maxPending = max
	}
}

// WithPollInterval sets the poll cadence advertised to the remote client.
func WithPollInterval(interval time.Duration) ServiceOption {
	return func(c *serviceConfig) {
		c.pollInterval = interval
	}
}

// WithIdleThreshold sets how long the remote client may go silent before the
// bridge is cleared.
func WithIdleThreshold(threshold time.Duration) ServiceOption {
	return func(c *serviceConfig) {
		c.idleThreshold = threshold
	}
}

// WithTools registers additional tool definitions beyond the built-in
// catalog.
func WithTools(defs ...tools.Definition) ServiceOption {
	return func(c *serviceConfig) {
		c.extraTools = append(c.extraTools, defs...)
	}
}

// NewService wires a bridge, the tool registry, and the polling adapter.
func NewService(opts ...ServiceOption) (*Service, error) {
	cfg := &serviceConfig{
		listenAddr:          DefaultListenAddr,
		overallTimeout:      bridge.DefaultOverallTimeout,
		staleDispatchWindow: bridge.DefaultStaleDispatchWindow,
		sweepInterval:       bridge.DefaultSweepInterval,
		maxPending:          bridge.DefaultMaxPending,
		pollInterval:        httpapi.DefaultPollInterval,
		idleThreshold:       httpapi.DefaultIdleThreshold,
		logger:              slog.Default(),
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}

	b, err := bridge.NewBridge(
		bridge.WithOverallTimeout(cfg.overallTimeout),
		bridge.WithStaleDispatchWindow(cfg.staleDispatchWindow),
		bridge.WithSweepInterval(cfg.sweepInterval),
		bridge.WithMaxPending(cfg.maxPending),
		bridge.WithBridgeLogger(cfg.logger),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create bridge: %w", err)
	}

	adapter, err := httpapi.NewServer(b,
		httpapi.WithPollInterval(cfg.pollInterval),
		httpapi.WithIdleThreshold(cfg.idleThreshold),
		httpapi.WithServerLogger(cfg.logger),
		httpapi.WithHealthCheckers(health.NewBridgeChecker(b, cfg.maxPending, cfg.logger)),
	)
	if err != nil {
		b.Close()
		return nil, fmt.Errorf("failed to create polling adapter: %w", err)
	}

	registry, err := tools.NewBuiltinRegistry(b, tools.WithRegistryLogger(cfg.logger))
	if err != nil {
		adapter.Close()
		b.Close()
		return nil, fmt.Errorf("failed to create tool registry: %w", err)
	}
	for _, def := range cfg.extraTools {
		if err := registry.Register(def); err != nil {
			adapter.Close()
			b.Close()
			return nil, fmt.Errorf("failed to register tool: %w", err)
		}
	}

	return &Service{
		bridge:   b,
		registry: registry,
		adapter:  adapter,
		logger:   cfg.logger,
		addr:     cfg.listenAddr,
	}, nil
}

// Start binds the listen address and serves the polling protocol in the
// background. It returns once the listener is up.
func (s *Service) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}

	s.httpSrv = &http.Server{
		Handler:           s.adapter.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	s.logger.Info("polling bridge listening", "addr", ln.Addr().String())
	go func() {
		if err := s.httpSrv.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Error("http server stopped", "error", err)
		}
	}()
	return nil
}

// Shutdown stops the HTTP server, the adapter watchdog, and the bridge.
// Outstanding submitters fail with ErrConnectionClosed.
func (s *Service) Shutdown(ctx context.Context) error {
	var err error
	if s.httpSrv != nil {
		err = s.httpSrv.Shutdown(ctx)
	}
	s.adapter.Close()
	s.bridge.Close()
	return err
}

// CallTool validates args against the named tool, queues the request for the
// remote client, and blocks until it is answered, times out, or ctx is done.
func (s *Service) CallTool(ctx context.Context, name string, args json.RawMessage) (json.RawMessage, error) {
	return s.registry.Call(ctx, name, args)
}

// Tools returns the tool registry.
func (s *Service) Tools() *tools.Registry {
	return s.registry
}

// Bridge returns the underlying request bridge.
func (s *Service) Bridge() *bridge.Bridge {
	return s.bridge
}

// Handler returns the polling protocol handler, for embedding the adapter in
// an existing HTTP server instead of calling Start.
func (s *Service) Handler() http.Handler {
	return s.adapter.Handler()
}
