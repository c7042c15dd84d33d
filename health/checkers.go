package health

import (
	"context"
	"log/slog"
	"time"
)

// Status is the health state of a single component.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// CheckResult is the outcome of a single health check.
type CheckResult struct {
	Name      string                 `json:"name"`
	Status    Status                 `json:"status"`
	Message   string                 `json:"message,omitempty"`
	Error     string                 `json:"error,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Duration  time.Duration          `json:"duration"`
	Details   map[string]interface{} `json:"details,omitempty"`
}

// Checker checks the health of one component.
type Checker interface {
	Name() string
	Check(ctx context.Context) CheckResult
}

// Aggregate runs every checker and reports the worst status seen.
func Aggregate(ctx context.Context, checkers []Checker) (Status, []CheckResult) {
	overall := StatusHealthy
	results := make([]CheckResult, 0, len(checkers))
	for _, c := range checkers {
		result := c.Check(ctx)
		results = append(results, result)
		switch result.Status {
		case StatusUnhealthy:
			overall = StatusUnhealthy
		case StatusDegraded:
			if overall == StatusHealthy {
				overall = StatusDegraded
			}
		}
	}
	return overall, results
}

// QueueDepth reports bridge table depth.
type QueueDepth interface {
	PendingCount() int
	DispatchedCount() int
}

// BridgeChecker checks the pending-request table against its capacity.
type BridgeChecker struct {
	depth      QueueDepth
	maxPending int
	logger     *slog.Logger
}

// NewBridgeChecker creates a bridge depth health checker.
func NewBridgeChecker(depth QueueDepth, maxPending int, logger *slog.Logger) *BridgeChecker {
	return &BridgeChecker{depth: depth, maxPending: maxPending, logger: logger}
}

func (c *BridgeChecker) Name() string {
	return "bridge"
}

func (c *BridgeChecker) Check(ctx context.Context) CheckResult {
	start := time.Now()
	result := CheckResult{
		Name:      c.Name(),
		Timestamp: start,
		Details:   make(map[string]interface{}),
	}

	pending := c.depth.PendingCount()
	dispatched := c.depth.DispatchedCount()
	result.Details["pending"] = pending
	result.Details["dispatched"] = dispatched
	result.Details["max_pending"] = c.maxPending

	switch {
	case pending >= c.maxPending:
		result.Status = StatusUnhealthy
		result.Message = "Pending table is full, submissions are being rejected"
	case c.maxPending > 0 && pending*5 >= c.maxPending*4:
		result.Status = StatusDegraded
		result.Message = "Pending table is above 80% capacity"
	default:
		result.Status = StatusHealthy
		result.Message = "Bridge queue depth is normal"
	}

	result.Duration = time.Since(start)
	return result
}

// ClientLiveness reports when the remote client last polled.
type ClientLiveness interface {
	LastSeen() (time.Time, bool)
}

// ClientChecker checks that the remote client is still polling.
type ClientChecker struct {
	liveness  ClientLiveness
	threshold time.Duration
	logger    *slog.Logger
}

// NewClientChecker creates a remote client liveness checker. The threshold
// should be several poll intervals wide.
func NewClientChecker(liveness ClientLiveness, threshold time.Duration, logger *slog.Logger) *ClientChecker {
	return &ClientChecker{liveness: liveness, threshold: threshold, logger: logger}
}

func (c *ClientChecker) Name() string {
	return "remote_client"
}

func (c *ClientChecker) Check(ctx context.Context) CheckResult {
	start := time.Now()
	result := CheckResult{
		Name:      c.Name(),
		Timestamp: start,
		Details:   make(map[string]interface{}),
	}

	lastSeen, ever := c.liveness.LastSeen()
	if !ever {
		result.Status = StatusUnhealthy
		result.Message = "Remote client has never announced"
		result.Duration = time.Since(start)
		return result
	}

	idle := time.Since(lastSeen)
	result.Details["last_seen"] = lastSeen
	result.Details["idle_ms"] = idle.Milliseconds()

	if idle > c.threshold {
		result.Status = StatusUnhealthy
		result.Message = "Remote client has stopped polling"
	} else {
		result.Status = StatusHealthy
		result.Message = "Remote client is polling"
	}

	result.Duration = time.Since(start)
	return result
}
