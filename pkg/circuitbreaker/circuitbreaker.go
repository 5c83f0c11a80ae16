// Package circuitbreaker wraps sony/gobreaker with the option style used
// across this repository. It protects the game statistics API from being
// hammered while it is failing.
package circuitbreaker

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"
)

// State mirrors gobreaker states.
type State = gobreaker.State

const (
	StateClosed   = gobreaker.StateClosed
	StateHalfOpen = gobreaker.StateHalfOpen
	StateOpen     = gobreaker.StateOpen
)

// Common errors.
var (
	// ErrCircuitOpen is returned when the circuit is open and requests are blocked.
	ErrCircuitOpen = gobreaker.ErrOpenState
	// ErrTooManyRequests is returned when too many requests are made in half-open state.
	ErrTooManyRequests = gobreaker.ErrTooManyRequests
)

// Config holds circuit breaker configuration.
type Config struct {
	// Name identifies this circuit breaker (for logging/metrics).
	Name string

	// FailureThreshold is the number of consecutive failures before opening.
	// Default: 5
	FailureThreshold uint32

	// Timeout is how long the circuit stays open before probing.
	// Default: 30s
	Timeout time.Duration

	// MaxHalfOpenRequests is the number of trial requests allowed while half-open.
	// Default: 1
	MaxHalfOpenRequests uint32

	// OnStateChange is called when the circuit state changes.
	OnStateChange func(name string, from, to State)

	// IsFailure determines if an error should be counted as a failure.
	// If nil, all non-nil errors are counted as failures.
	IsFailure func(error) bool
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig(name string) Config {
	return Config{
		Name:                name,
		FailureThreshold:    5,
		Timeout:             30 * time.Second,
		MaxHalfOpenRequests: 1,
	}
}

// Option is a functional option for configuring the circuit breaker.
type Option func(*Config)

// WithFailureThreshold sets the failure threshold.
func WithFailureThreshold(n uint32) Option {
	return func(c *Config) {
		if n > 0 {
			c.FailureThreshold = n
		}
	}
}

// WithTimeout sets the open-state duration.
func WithTimeout(d time.Duration) Option {
	return func(c *Config) {
		if d > 0 {
			c.Timeout = d
		}
	}
}

// WithMaxHalfOpenRequests sets the max requests allowed in half-open state.
func WithMaxHalfOpenRequests(n uint32) Option {
	return func(c *Config) {
		if n > 0 {
			c.MaxHalfOpenRequests = n
		}
	}
}

// WithOnStateChange sets the state change callback.
func WithOnStateChange(fn func(name string, from, to State)) Option {
	return func(c *Config) {
		c.OnStateChange = fn
	}
}

// WithIsFailure sets the failure detection function.
func WithIsFailure(fn func(error) bool) Option {
	return func(c *Config) {
		c.IsFailure = fn
	}
}

// Breaker is a named circuit breaker.
type Breaker struct {
	cb *gobreaker.CircuitBreaker
}

// New creates a Breaker with the given name and options.
func New(name string, opts ...Option) *Breaker {
	cfg := DefaultConfig(name)
	for _, opt := range opts {
		opt(&cfg)
	}

	threshold := cfg.FailureThreshold
	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxHalfOpenRequests,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: cfg.OnStateChange,
	}
	if cfg.IsFailure != nil {
		isFailure := cfg.IsFailure
		settings.IsSuccessful = func(err error) bool {
			return err == nil || !isFailure(err)
		}
	}

	return &Breaker{cb: gobreaker.NewCircuitBreaker(settings)}
}

// Execute runs fn if the circuit allows it.
func (b *Breaker) Execute(ctx context.Context, fn func(context.Context) error) error {
	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, fn(ctx)
	})
	return err
}

// Name returns the name of the circuit breaker.
func (b *Breaker) Name() string {
	return b.cb.Name()
}

// State returns the current state of the circuit breaker.
func (b *Breaker) State() State {
	return b.cb.State()
}

// IsOpen returns true if the circuit is open.
func (b *Breaker) IsOpen() bool {
	return b.cb.State() == StateOpen
}

// IsRejection reports whether err came from the breaker rather than the call.
func IsRejection(err error) bool {
	return errors.Is(err, ErrCircuitOpen) || errors.Is(err, ErrTooManyRequests)
}

// GameAPIBreaker returns a breaker tuned for the game statistics API.
func GameAPIBreaker(failureThreshold uint32, timeout time.Duration, isFailure func(error) bool, onStateChange func(name string, from, to State)) *Breaker {
	return New(
		"game-api",
		WithFailureThreshold(failureThreshold),
		WithTimeout(timeout),
		WithMaxHalfOpenRequests(1),
		WithIsFailure(isFailure),
		WithOnStateChange(onStateChange),
	)
}
