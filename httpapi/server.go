package httpapi

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/pollbridge/pollbridge-go/contracts"
	"github.com/pollbridge/pollbridge-go/health"
)

const (
	// DefaultPollInterval is the poll cadence advertised to the remote
	// client in the announce reply.
	DefaultPollInterval = time.Second

	// DefaultIdleThreshold is how long the client may stay silent before it
	// counts as disconnected and the bridge is cleared.
	DefaultIdleThreshold = 30 * time.Second
)

// RequestBridge is the slice of the bridge the adapter drives.
type RequestBridge interface {
	ClaimNext() (contracts.PendingClaim, bool)
	Resolve(id string, response json.RawMessage)
	Reject(id string, err error)
	ClearAll()
	PendingCount() int
	DispatchedCount() int
	OverallTimeout() time.Duration
	StaleDispatchWindow() time.Duration
}

// Server translates the polling protocol into bridge operations.
type Server struct {
	bridge        RequestBridge
	session       *clientSession
	logger        *slog.Logger
	pollInterval  time.Duration
	idleThreshold time.Duration
	checkers      []health.Checker
	router        chi.Router

	watchTicker *time.Ticker
	done        chan struct{}
	closeOnce   sync.Once
}

// ServerConfig holds configuration for the adapter.
type ServerConfig struct {
	PollInterval  time.Duration
	IdleThreshold time.Duration
	Logger        *slog.Logger
	Checkers      []health.Checker
}

// ServerOption configures the adapter.
type ServerOption func(*ServerConfig)

// WithPollInterval sets the poll cadence advertised to the remote client.
func WithPollInterval(interval time.Duration) ServerOption {
	return func(c *ServerConfig) {
		c.PollInterval = interval
	}
}

// WithIdleThreshold sets how long the client may go silent before the
// adapter treats it as disconnected.
func WithIdleThreshold(threshold time.Duration) ServerOption {
	return func(c *ServerConfig) {
		c.IdleThreshold = threshold
	}
}

// WithServerLogger sets the logger.
func WithServerLogger(logger *slog.Logger) ServerOption {
	return func(c *ServerConfig) {
		c.Logger = logger
	}
}

// WithHealthCheckers adds checkers to the /healthz endpoint.
func WithHealthCheckers(checkers ...health.Checker) ServerOption {
	return func(c *ServerConfig) {
		c.Checkers = append(c.Checkers, checkers...)
	}
}

// NewServer creates the adapter and starts its idle watchdog.
func NewServer(bridge RequestBridge, opts ...ServerOption) (*Server, error) {
	if bridge == nil {
		return nil, fmt.Errorf("bridge cannot be nil")
	}

	config := &ServerConfig{
		PollInterval:  DefaultPollInterval,
		IdleThreshold: DefaultIdleThreshold,
		Logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(config)
	}
	if config.PollInterval <= 0 {
		return nil, fmt.Errorf("poll interval must be positive, got %v", config.PollInterval)
	}
	if config.IdleThreshold <= config.PollInterval {
		return nil, fmt.Errorf("idle threshold (%v) must exceed the poll interval (%v)",
			config.IdleThreshold, config.PollInterval)
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	s := &Server{
		bridge:        bridge,
		session:       &clientSession{},
		logger:        config.Logger,
		pollInterval:  config.PollInterval,
		idleThreshold: config.IdleThreshold,
		watchTicker:   time.NewTicker(config.IdleThreshold / 2),
		done:          make(chan struct{}),
	}
	// The adapter always watches its own client's liveness.
	s.checkers = append(config.Checkers,
		health.NewClientChecker(s.session, config.IdleThreshold, config.Logger))

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Post("/v1/announce", s.handleAnnounce)
	r.Get("/v1/poll", s.handlePoll)
	r.Post("/v1/response", s.handleResponse)
	r.Get("/v1/status", s.handleStatus)
	r.Get("/healthz", s.handleHealthz)
	s.router = r

	go s.watchRoutine()

	return s, nil
}

// Handler returns the adapter's HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Session exposes client liveness for health checks.
func (s *Server) Session() health.ClientLiveness {
	return s.session
}

// Close stops the idle watchdog. It does not touch the bridge.
func (s *Server) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
		s.watchTicker.Stop()
	})
}

// handleAnnounce handles client startup and reconnect. Either way the
// outstanding queue belongs to a previous client lifetime and is cleared.
func (s *Server) handleAnnounce(w http.ResponseWriter, r *http.Request) {
	var req contracts.AnnounceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid announce body")
		return
	}
	if req.ClientName == "" {
		writeError(w, http.StatusBadRequest, "clientName is required")
		return
	}

	s.session.announce(req.ClientName, req.ClientVersion)
	s.bridge.ClearAll()
	s.logger.Info("remote client announced",
		"client", req.ClientName, "version", req.ClientVersion)

	writeJSON(w, http.StatusOK, contracts.AnnounceReply{
		PollIntervalMs:        s.pollInterval.Milliseconds(),
		StaleDispatchWindowMs: s.bridge.StaleDispatchWindow().Milliseconds(),
		OverallTimeoutMs:      s.bridge.OverallTimeout().Milliseconds(),
	})
}

func (s *Server) handlePoll(w http.ResponseWriter, r *http.Request) {
	s.session.touch()

	claim, ok := s.bridge.ClaimNext()
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, claim)
}

// handleResponse accepts the outcome of a claimed request. An unknown id is
// answered 202 like any other: the request already terminated and the late
// response is dropped by the bridge.
func (s *Server) handleResponse(w http.ResponseWriter, r *http.Request) {
	var sub contracts.ResponseSubmission
	if err := json.NewDecoder(r.Body).Decode(&sub); err != nil {
		writeError(w, http.StatusBadRequest, "invalid response body")
		return
	}
	if sub.ID == "" {
		writeError(w, http.StatusBadRequest, "id is required")
		return
	}

	s.session.touch()
	if sub.Error != "" {
		s.bridge.Reject(sub.ID, contracts.NewRemoteError("", sub.Error))
	} else {
		s.bridge.Resolve(sub.ID, sub.Result)
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	name, connected, lastSeen := s.session.snapshot()
	writeJSON(w, http.StatusOK, contracts.StatusReply{
		Pending:         s.bridge.PendingCount(),
		Dispatched:      s.bridge.DispatchedCount(),
		ClientConnected: connected,
		ClientName:      name,
		LastSeen:        lastSeen,
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	overall, results := health.Aggregate(r.Context(), s.checkers)
	status := http.StatusOK
	if overall == health.StatusUnhealthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]interface{}{
		"status": overall,
		"checks": results,
	})
}

// watchRoutine clears the bridge once when the client goes silent past the
// idle threshold.
func (s *Server) watchRoutine() {
	for {
		select {
		case <-s.watchTicker.C:
			if s.session.expireIfIdle(s.idleThreshold) {
				s.logger.Warn("remote client went silent, clearing outstanding requests",
					"idleThreshold", s.idleThreshold)
				s.bridge.ClearAll()
			}
		case <-s.done:
			return
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
