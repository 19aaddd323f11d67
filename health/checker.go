// Package health implements the Crosstown node's /healthz endpoint
// (SPEC_FULL §11): phase/peer/channel counts and relay-monitor
// connectivity, served alongside /metrics.
package health

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ALLiDoizCode/crosstown/internal/logger"
)

// Status is the outcome of a single check or the system as a whole.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// CheckResult is the outcome of one named check.
type CheckResult struct {
	Name      string        `json:"name"`
	Status    Status        `json:"status"`
	Message   string        `json:"message,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
	Duration  time.Duration `json:"duration"`
}

// Check is a single health check function.
type Check func(ctx context.Context) error

// Checker manages and runs a set of named checks, caching each result for
// a short TTL so a busy /healthz poller doesn't re-run expensive checks
// on every request (grounded on the teacher's pkg/health/checker.go).
type Checker struct {
	mu       sync.RWMutex
	checks   map[string]Check
	timeout  time.Duration
	cacheTTL time.Duration
	cache    map[string]*cachedResult
	log      logger.Logger
}

type cachedResult struct {
	result    *CheckResult
	expiresAt time.Time
}

// NewChecker creates a Checker with the given per-check timeout.
func NewChecker(timeout time.Duration) *Checker {
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	return &Checker{
		checks:   make(map[string]Check),
		timeout:  timeout,
		cacheTTL: 10 * time.Second,
		cache:    make(map[string]*cachedResult),
		log:      logger.Noop(),
	}
}

// SetLogger overrides the Noop default.
func (c *Checker) SetLogger(l logger.Logger) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.log = l
}

// Register adds or replaces a named check.
func (c *Checker) Register(name string, check Check) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks[name] = check
}

// Check runs (or returns the cached result of) a single named check.
func (c *Checker) Check(ctx context.Context, name string) (*CheckResult, error) {
	c.mu.RLock()
	check, exists := c.checks[name]
	c.mu.RUnlock()
	if !exists {
		return nil, fmt.Errorf("health: check %q not registered", name)
	}

	if cached := c.cached(name); cached != nil {
		return cached, nil
	}

	checkCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	err := check(checkCtx)
	duration := time.Since(start)

	result := &CheckResult{Name: name, Timestamp: time.Now(), Duration: duration}
	if err != nil {
		result.Status = StatusUnhealthy
		result.Message = err.Error()
		c.log.Warn("health check failed", logger.String("name", name), logger.Error(err))
	} else {
		result.Status = StatusHealthy
	}

	c.store(name, result)
	return result, nil
}

// CheckAll runs every registered check concurrently.
func (c *Checker) CheckAll(ctx context.Context) map[string]*CheckResult {
	c.mu.RLock()
	names := make([]string, 0, len(c.checks))
	for name := range c.checks {
		names = append(names, name)
	}
	c.mu.RUnlock()

	results := make(map[string]*CheckResult, len(names))
	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, name := range names {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			result, err := c.Check(ctx, name)
			if err != nil {
				result = &CheckResult{Name: name, Status: StatusUnhealthy, Message: err.Error(), Timestamp: time.Now()}
			}
			mu.Lock()
			results[name] = result
			mu.Unlock()
		}(name)
	}
	wg.Wait()
	return results
}

func (c *Checker) cached(name string) *CheckResult {
	c.mu.RLock()
	defer c.mu.RUnlock()
	cached, ok := c.cache[name]
	if !ok || time.Now().After(cached.expiresAt) {
		return nil
	}
	return cached.result
}

func (c *Checker) store(name string, result *CheckResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache[name] = &cachedResult{result: result, expiresAt: time.Now().Add(c.cacheTTL)}
}

// NodeStatus is the /healthz response body (SPEC_FULL §11): the node's
// current bootstrap phase plus peer/channel counts alongside the checks.
type NodeStatus struct {
	Status       Status                  `json:"status"`
	Phase        string                  `json:"phase"`
	PeerCount    int                     `json:"peerCount"`
	ChannelCount int                     `json:"channelCount"`
	Checks       map[string]*CheckResult `json:"checks"`
	Timestamp    time.Time               `json:"timestamp"`
}

// PhaseAndCounts is supplied by the node facade so the checker can report
// live phase/peer/channel counts without importing bootstrap or monitor
// (avoiding an import cycle back into the root package).
type PhaseAndCounts func() (phase string, peerCount, channelCount int)

// Report runs every registered check and folds in the node's live phase
// and counts to build the full NodeStatus.
func (c *Checker) Report(ctx context.Context, live PhaseAndCounts) *NodeStatus {
	checks := c.CheckAll(ctx)
	status := StatusHealthy
	for _, r := range checks {
		if r.Status == StatusUnhealthy {
			status = StatusUnhealthy
			break
		}
	}
	phase, peerCount, channelCount := "", 0, 0
	if live != nil {
		phase, peerCount, channelCount = live()
	}
	return &NodeStatus{
		Status:       status,
		Phase:        phase,
		PeerCount:    peerCount,
		ChannelCount: channelCount,
		Checks:       checks,
		Timestamp:    time.Now(),
	}
}

// MonitorConnectivityCheck builds a Check from a relay-connectivity probe
// (e.g. the monitor's underlying relay.Client), reporting unhealthy if the
// probe returns an error.
func MonitorConnectivityCheck(probe func(ctx context.Context) error) Check {
	return func(ctx context.Context) error {
		if probe == nil {
			return fmt.Errorf("health: monitor connectivity probe not configured")
		}
		return probe(ctx)
	}
}
