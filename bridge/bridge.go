package bridge

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pollbridge/pollbridge-go/contracts"
)

const (
	// DefaultOverallTimeout is the hard upper bound on a request's total
	// outstanding lifetime, independent of how many times it was claimed.
	DefaultOverallTimeout = 60 * time.Second

	// DefaultStaleDispatchWindow is how long a claim may go unanswered
	// before the request becomes claimable again. It must stay below the
	// overall timeout so that a stale claim gets at least one retry window.
	DefaultStaleDispatchWindow = 45 * time.Second

	// DefaultSweepInterval is how often the bridge sweeps for requests that
	// outlived the overall timeout, as a backstop to the per-entry timers.
	DefaultSweepInterval = 10 * time.Second

	// DefaultMaxPending caps the pending table.
	DefaultMaxPending = 1000
)

// Bridge queues remote-operation requests for a poll-only remote client. All
// operations are cheap, non-blocking, and safe for concurrent use; the only
// suspension point is awaiting the Future returned by Submit.
type Bridge struct {
	mu    sync.Mutex
	table *pendingTable

	overallTimeout time.Duration
	staleWindow    time.Duration
	sweepInterval  time.Duration
	maxPending     int
	logger         *slog.Logger

	sweepTicker *time.Ticker
	done        chan struct{}
	closeOnce   sync.Once
}

// BridgeConfig holds configuration for the bridge.
type BridgeConfig struct {
	OverallTimeout      time.Duration
	StaleDispatchWindow time.Duration
	SweepInterval       time.Duration
	MaxPending          int
	Logger              *slog.Logger
}

// BridgeOption configures the bridge.
type BridgeOption func(*BridgeConfig)

// WithOverallTimeout sets the hard limit on a request's outstanding lifetime.
func WithOverallTimeout(timeout time.Duration) BridgeOption {
	return func(c *BridgeConfig) {
		c.OverallTimeout = timeout
	}
}

// WithStaleDispatchWindow sets how long a claim may go unanswered before the
// request becomes claimable again.
func WithStaleDispatchWindow(window time.Duration) BridgeOption {
	return func(c *BridgeConfig) {
		c.StaleDispatchWindow = window
	}
}

// WithSweepInterval sets the interval of the periodic expiry sweep.
func WithSweepInterval(interval time.Duration) BridgeOption {
	return func(c *BridgeConfig) {
		c.SweepInterval = interval
	}
}

// WithMaxPending sets the maximum number of concurrent pending requests.
func WithMaxPending(max int) BridgeOption {
	return func(c *BridgeConfig) {
		c.MaxPending = max
	}
}

// WithBridgeLogger sets the logger.
func WithBridgeLogger(logger *slog.Logger) BridgeOption {
	return func(c *BridgeConfig) {
		c.Logger = logger
	}
}

// NewBridge creates a bridge and starts its background sweep. The
// configuration is rejected unless the stale-dispatch window is shorter than
// the overall timeout; with the ordering inverted a stale claim would never
// get a retry before the request expires.
func NewBridge(opts ...BridgeOption) (*Bridge, error) {
	config := &BridgeConfig{
		OverallTimeout:      DefaultOverallTimeout,
		StaleDispatchWindow: DefaultStaleDispatchWindow,
		SweepInterval:       DefaultSweepInterval,
		MaxPending:          DefaultMaxPending,
		Logger:              slog.Default(),
	}
	for _, opt := range opts {
		opt(config)
	}

	if config.OverallTimeout <= 0 {
		return nil, fmt.Errorf("overall timeout must be positive, got %v", config.OverallTimeout)
	}
	if config.StaleDispatchWindow <= 0 {
		return nil, fmt.Errorf("stale dispatch window must be positive, got %v", config.StaleDispatchWindow)
	}
	if config.StaleDispatchWindow >= config.OverallTimeout {
		return nil, fmt.Errorf("stale dispatch window (%v) must be shorter than overall timeout (%v)",
			config.StaleDispatchWindow, config.OverallTimeout)
	}
	if config.SweepInterval <= 0 {
		return nil, fmt.Errorf("sweep interval must be positive, got %v", config.SweepInterval)
	}
	if config.MaxPending <= 0 {
		return nil, fmt.Errorf("max pending must be positive, got %v", config.MaxPending)
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	b := &Bridge{
		table:          newPendingTable(),
		overallTimeout: config.OverallTimeout,
		staleWindow:    config.StaleDispatchWindow,
		sweepInterval:  config.SweepInterval,
		maxPending:     config.MaxPending,
		logger:         config.Logger,
		sweepTicker:    time.NewTicker(config.SweepInterval),
		done:           make(chan struct{}),
	}

	go b.sweepRoutine()

	return b, nil
}

// Submit queues a remote operation and returns the future that will carry
// its outcome. Submit never fails synchronously; when the table is full the
// returned future is already settled with ErrTooManyPending.
func (b *Bridge) Submit(endpoint string, payload json.RawMessage) *Future {
	req := &pendingRequest{
		id:        uuid.NewString(),
		endpoint:  endpoint,
		payload:   payload,
		createdAt: time.Now(),
		future:    newFuture(),
	}

	b.mu.Lock()
	if b.table.size() >= b.maxPending {
		b.mu.Unlock()
		b.logger.Warn("rejecting submission, pending table full",
			"endpoint", endpoint, "maxPending", b.maxPending)
		req.future.settle(nil, contracts.ErrTooManyPending)
		return req.future
	}
	req.expiry = time.AfterFunc(b.overallTimeout, func() {
		b.expire(req.id)
	})
	b.table.insert(req)
	b.mu.Unlock()

	b.logger.Debug("request submitted", "id", req.id, "endpoint", endpoint)
	return req.future
}

// ClaimNext hands out the oldest undispatched request, marking it dispatched
// in the same critical section so that two concurrent polls can never claim
// the same entry. Dispatched entries whose claimant went silent past the
// stale window revert to claimable as a side effect of the scan. The second
// return value is false when nothing is eligible.
func (b *Bridge) ClaimNext() (contracts.PendingClaim, bool) {
	b.mu.Lock()
	req := b.table.claimOldest(time.Now(), b.staleWindow)
	b.mu.Unlock()

	if req == nil {
		return contracts.PendingClaim{}, false
	}
	b.logger.Debug("request claimed", "id", req.id, "endpoint", req.endpoint)
	return contracts.PendingClaim{ID: req.id, Endpoint: req.endpoint, Payload: req.payload}, true
}

// Resolve completes the request with the remote client's response. An
// unknown id is a silent no-op: the request already timed out, was cleared,
// or this is a duplicate response, and the submitter has moved on.
func (b *Bridge) Resolve(id string, response json.RawMessage) {
	b.complete(id, response, nil)
}

// Reject fails the request with an error from the remote client. Unknown ids
// are ignored, same as Resolve.
func (b *Bridge) Reject(id string, err error) {
	if err == nil {
		err = contracts.NewRemoteError("", "request rejected")
	}
	b.complete(id, nil, err)
}

func (b *Bridge) complete(id string, response json.RawMessage, err error) {
	b.mu.Lock()
	req := b.table.remove(id)
	b.mu.Unlock()

	if req == nil {
		// Expected after expiry or clearance, not a fault.
		b.logger.Debug("response for unknown request", "id", id)
		return
	}
	req.expiry.Stop()
	req.future.settle(response, err)

	if err != nil {
		b.logger.Debug("request rejected", "id", id, "endpoint", req.endpoint, "error", err)
	} else {
		b.logger.Debug("request resolved", "id", id, "endpoint", req.endpoint)
	}
}

// expire is the per-entry timer callback for the overall timeout.
func (b *Bridge) expire(id string) {
	b.mu.Lock()
	req := b.table.remove(id)
	b.mu.Unlock()

	if req == nil {
		return
	}
	req.future.settle(nil, contracts.ErrTimeout)
	b.logger.Debug("request expired", "id", id, "endpoint", req.endpoint)
}

// SweepExpired removes every request older than the overall timeout and
// fails it with ErrTimeout. The per-entry timers normally get there first;
// the sweep guarantees forward progress even if a timer is delayed or lost.
func (b *Bridge) SweepExpired() {
	b.mu.Lock()
	expired := b.table.removeExpired(time.Now(), b.overallTimeout)
	b.mu.Unlock()

	for _, req := range expired {
		req.expiry.Stop()
		req.future.settle(nil, contracts.ErrTimeout)
	}
	if len(expired) > 0 {
		b.logger.Warn("swept expired requests", "count", len(expired))
	}
}

// ClearAll drops every outstanding request and fails its submitter with
// ErrConnectionClosed. Called when the remote client disconnects or
// re-announces readiness. Snapshot-then-clear: submissions racing with the
// clear land in a fresh table and are unaffected. Idempotent.
func (b *Bridge) ClearAll() {
	b.mu.Lock()
	drained := b.table.drain()
	b.mu.Unlock()

	for _, req := range drained {
		req.expiry.Stop()
		req.future.settle(nil, contracts.ErrConnectionClosed)
	}
	if len(drained) > 0 {
		b.logger.Info("cleared outstanding requests", "count", len(drained))
	}
}

// PendingCount returns the number of outstanding requests.
func (b *Bridge) PendingCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.table.size()
}

// DispatchedCount returns the number of outstanding requests currently
// claimed by the remote client.
func (b *Bridge) DispatchedCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.table.dispatchedCount()
}

// OverallTimeout returns the configured overall timeout.
func (b *Bridge) OverallTimeout() time.Duration {
	return b.overallTimeout
}

// StaleDispatchWindow returns the configured stale-dispatch window.
func (b *Bridge) StaleDispatchWindow() time.Duration {
	return b.staleWindow
}

// Close stops the background sweep and fails every outstanding request with
// ErrConnectionClosed. Safe to call more than once.
func (b *Bridge) Close() {
	b.closeOnce.Do(func() {
		close(b.done)
		b.sweepTicker.Stop()
	})
	b.ClearAll()
}

func (b *Bridge) sweepRoutine() {
	for {
		select {
		case <-b.sweepTicker.C:
			b.SweepExpired()
		case <-b.done:
			return
		}
	}
}
