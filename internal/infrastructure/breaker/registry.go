package breaker

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// State is the externally visible breaker state
type State string

const (
	StateClosed   State = "CLOSED"
	StateOpen     State = "OPEN"
	StateHalfOpen State = "HALF_OPEN"
)

// String returns the string representation of State
func (s State) String() string {
	return string(s)
}

// ErrCircuitOpen is the distinct signal returned when a call is rejected
// because the breaker for the target is open. Callers branch on it to
// tell a tripped breaker apart from a genuine downstream failure.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// Config holds breaker thresholds shared by all lazily created instances
type Config struct {
	// MinVolume is the minimum rolling call count before the error rate is evaluated
	MinVolume uint32
	// ErrorPercent is the failure-rate threshold (0-100) that opens the breaker
	ErrorPercent float64
	// Window is the rolling window over which counts accumulate while closed
	Window time.Duration
	// ResetTimeout is how long the breaker stays open before a half-open trial
	ResetTimeout time.Duration
}

// DefaultConfig returns default breaker thresholds
func DefaultConfig() Config {
	return Config{
		MinVolume:    10,
		ErrorPercent: 50,
		Window:       60 * time.Second,
		ResetTimeout: 30 * time.Second,
	}
}

// Status is a point-in-time snapshot of one breaker
type Status struct {
	Key       string `json:"key"`
	State     State  `json:"state"`
	Requests  uint32 `json:"requests"`
	Successes uint32 `json:"successes"`
	Failures  uint32 `json:"failures"`
}

// Registry owns one circuit breaker per (vendorID, apiType) composite
// key. Instances are created lazily and live in process memory only; a
// restart resets every breaker to closed. The registry is constructed
// and injected explicitly so tests get a fresh one per run.
type Registry struct {
	config   Config
	logger   *zap.Logger
	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker
}

// NewRegistry creates an empty breaker registry
func NewRegistry(config Config, logger *zap.Logger) *Registry {
	defaults := DefaultConfig()
	if config.MinVolume == 0 {
		config.MinVolume = defaults.MinVolume
	}
	if config.ErrorPercent <= 0 {
		config.ErrorPercent = defaults.ErrorPercent
	}
	if config.Window <= 0 {
		config.Window = defaults.Window
	}
	if config.ResetTimeout <= 0 {
		config.ResetTimeout = defaults.ResetTimeout
	}

	return &Registry{
		config:   config,
		logger:   logger,
		breakers: make(map[string]*gobreaker.CircuitBreaker),
	}
}

// Key builds the composite breaker key for a vendor and API type
func Key(vendorID, apiType string) string {
	return fmt.Sprintf("%s:%s", vendorID, apiType)
}

// GetBreaker returns the breaker for the key, creating it on first use
func (r *Registry) GetBreaker(vendorID, apiType string) *gobreaker.CircuitBreaker {
	key := Key(vendorID, apiType)

	r.mu.Lock()
	defer r.mu.Unlock()

	if cb, ok := r.breakers[key]; ok {
		return cb
	}
	cb := r.newBreaker(key)
	r.breakers[key] = cb
	return cb
}

// Execute runs the action through the breaker for (vendorID, apiType).
// While closed the action passes through and its outcome feeds the
// rolling stats; while open the call fails immediately with
// ErrCircuitOpen without invoking the action.
func (r *Registry) Execute(vendorID, apiType string, action func() (interface{}, error)) (interface{}, error) {
	cb := r.GetBreaker(vendorID, apiType)

	result, err := cb.Execute(action)
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, ErrCircuitOpen
		}
		return nil, err
	}
	return result, nil
}

// GetState returns the breaker's state, or empty string if the breaker
// was never created.
func (r *Registry) GetState(vendorID, apiType string) State {
	r.mu.Lock()
	cb, ok := r.breakers[Key(vendorID, apiType)]
	r.mu.Unlock()

	if !ok {
		return ""
	}
	return mapState(cb.State())
}

// Reset forces the breaker for the key back to closed by swapping in a
// fresh instance. This is an explicit operator action and is logged as
// such; resetting a breaker that was never created warns and no-ops.
func (r *Registry) Reset(vendorID, apiType string) {
	key := Key(vendorID, apiType)

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.breakers[key]; !ok {
		r.logger.Warn("reset requested for unknown circuit breaker", zap.String("key", key))
		return
	}
	r.breakers[key] = r.newBreaker(key)
	r.logger.Info("circuit breaker manually reset", zap.String("key", key))
}

// GetStatus snapshots the state and rolling counts of every breaker
func (r *Registry) GetStatus() []Status {
	r.mu.Lock()
	defer r.mu.Unlock()

	statuses := make([]Status, 0, len(r.breakers))
	for key, cb := range r.breakers {
		counts := cb.Counts()
		statuses = append(statuses, Status{
			Key:       key,
			State:     mapState(cb.State()),
			Requests:  counts.Requests,
			Successes: counts.TotalSuccesses,
			Failures:  counts.TotalFailures,
		})
	}
	return statuses
}

// newBreaker builds a gobreaker instance with the registry thresholds.
func (r *Registry) newBreaker(key string) *gobreaker.CircuitBreaker {
	minVolume := r.config.MinVolume
	errorRatio := r.config.ErrorPercent / 100

	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name: key,
		// One trial call while half-open; success closes, failure re-opens.
		MaxRequests: 1,
		Interval:    r.config.Window,
		Timeout:     r.config.ResetTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < minVolume {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio > errorRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			if to == gobreaker.StateOpen {
				// An open breaker means a vendor integration outage.
				r.logger.Warn("circuit breaker opened",
					zap.String("key", name),
					zap.String("from", mapState(from).String()),
				)
				return
			}
			r.logger.Info("circuit breaker state changed",
				zap.String("key", name),
				zap.String("from", mapState(from).String()),
				zap.String("to", mapState(to).String()),
			)
		},
	})
}

func mapState(s gobreaker.State) State {
	switch s {
	case gobreaker.StateOpen:
		return StateOpen
	case gobreaker.StateHalfOpen:
		return StateHalfOpen
	default:
		return StateClosed
	}
}
