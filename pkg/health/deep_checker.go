package health

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/richxcame/taxi-demand/pkg/resilience"
)

// Health states, worst last.
const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

// Pinger is anything that can prove it is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

// Ping implements Pinger.
func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// DependencyStatus represents the health status of a single dependency
type DependencyStatus struct {
	Name      string        `json:"name"`
	Status    string        `json:"status"`
	Latency   time.Duration `json:"latency_ms"`
	Message   string        `json:"message,omitempty"`
	CheckedAt time.Time     `json:"checked_at"`
}

// BreakerStatus represents the status of a circuit breaker
type BreakerStatus struct {
	Name   string `json:"name"`
	State  string `json:"state"`
	Allows bool   `json:"allows"`
}

// DeepHealthStatus represents the complete health status of the service
type DeepHealthStatus struct {
	Status       string                      `json:"status"`
	Version      string                      `json:"version,omitempty"`
	Uptime       time.Duration               `json:"uptime_seconds"`
	Dependencies map[string]DependencyStatus `json:"dependencies"`
	Breakers     map[string]BreakerStatus    `json:"circuit_breakers,omitempty"`
	CheckedAt    time.Time                   `json:"checked_at"`
}

// DeepCheckerConfig holds configuration for the deep checker
type DeepCheckerConfig struct {
	Version  string
	Timeout  time.Duration
	CacheTTL time.Duration
}

// DefaultDeepCheckerConfig returns sensible defaults
func DefaultDeepCheckerConfig() DeepCheckerConfig {
	return DeepCheckerConfig{
		Version:  "unknown",
		Timeout:  5 * time.Second,
		CacheTTL: 10 * time.Second,
	}
}

// DeepChecker pings every registered dependency and reports breaker states.
// Results are cached for CacheTTL so frequent health checks cannot hammer the backends.
type DeepChecker struct {
	mu           sync.RWMutex
	dependencies map[string]Pinger
	critical     map[string]bool
	breakers     map[string]*resilience.CircuitBreaker
	version      string
	startTime    time.Time
	timeout      time.Duration
	cacheTTL     time.Duration
	lastResult   *DeepHealthStatus
	lastChecked  time.Time
}

// NewDeepChecker creates a new deep health checker
func NewDeepChecker(config DeepCheckerConfig) *DeepChecker {
	if config.Timeout <= 0 {
		config.Timeout = 5 * time.Second
	}
	return &DeepChecker{
		dependencies: make(map[string]Pinger),
		critical:     make(map[string]bool),
		breakers:     make(map[string]*resilience.CircuitBreaker),
		version:      config.Version,
		startTime:    time.Now(),
		timeout:      config.Timeout,
		cacheTTL:     config.CacheTTL,
	}
}

// AddDependency registers a dependency. A failing critical dependency makes
// the service unhealthy; any other failure only degrades it.
func (d *DeepChecker) AddDependency(name string, p Pinger, critical bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dependencies[name] = p
	d.critical[name] = critical
	d.lastResult = nil
}

// AddCircuitBreaker adds a circuit breaker to monitor. Nil breakers are ignored.
func (d *DeepChecker) AddCircuitBreaker(name string, breaker *resilience.CircuitBreaker) {
	if breaker == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.breakers[name] = breaker
	d.lastResult = nil
}

// Check performs a deep health check on all dependencies
func (d *DeepChecker) Check(ctx context.Context) *DeepHealthStatus {
	d.mu.RLock()
	if d.lastResult != nil && time.Since(d.lastChecked) < d.cacheTTL {
		result := d.lastResult
		d.mu.RUnlock()
		return result
	}
	deps := make(map[string]Pinger, len(d.dependencies))
	for name, p := range d.dependencies {
		deps[name] = p
	}
	breakers := make(map[string]*resilience.CircuitBreaker, len(d.breakers))
	for name, b := range d.breakers {
		breakers[name] = b
	}
	d.mu.RUnlock()

	status := &DeepHealthStatus{
		Status:       StatusHealthy,
		Version:      d.version,
		Uptime:       time.Since(d.startTime),
		Dependencies: make(map[string]DependencyStatus, len(deps)),
		Breakers:     make(map[string]BreakerStatus, len(breakers)),
		CheckedAt:    time.Now(),
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	for name, p := range deps {
		wg.Add(1)
		go func(name string, p Pinger) {
			defer wg.Done()
			depStatus := d.checkDependency(ctx, name, p)
			mu.Lock()
			status.Dependencies[name] = depStatus
			mu.Unlock()
		}(name, p)
	}
	wg.Wait()

	d.mu.RLock()
	for name, dep := range status.Dependencies {
		if dep.Status == StatusHealthy {
			continue
		}
		if d.critical[name] {
			status.Status = StatusUnhealthy
		} else if status.Status == StatusHealthy {
			status.Status = StatusDegraded
		}
	}
	d.mu.RUnlock()

	// Breakers are in-memory, no need to fan out
	for name, breaker := range breakers {
		allows := breaker.Allow()
		if !allows && status.Status == StatusHealthy {
			status.Status = StatusDegraded
		}
		status.Breakers[name] = BreakerStatus{
			Name:   name,
			State:  breaker.State(),
			Allows: allows,
		}
	}

	d.mu.Lock()
	d.lastResult = status
	d.lastChecked = time.Now()
	d.mu.Unlock()

	return status
}

func (d *DeepChecker) checkDependency(ctx context.Context, name string, p Pinger) DependencyStatus {
	start := time.Now()
	status := DependencyStatus{
		Name:      name,
		CheckedAt: start,
	}

	checkCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	if err := p.Ping(checkCtx); err != nil {
		status.Status = StatusUnhealthy
		status.Message = fmt.Sprintf("ping failed: %v", err)
	} else {
		status.Status = StatusHealthy
	}
	status.Latency = time.Since(start)
	return status
}

// GinHandler returns a Gin handler for the deep health check endpoint.
// Degraded still answers 200.
func (d *DeepChecker) GinHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		status := d.Check(c.Request.Context())

		httpStatus := http.StatusOK
		if status.Status == StatusUnhealthy {
			httpStatus = http.StatusServiceUnavailable
		}
		c.JSON(httpStatus, status)
	}
}
