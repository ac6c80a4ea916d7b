// Package resilience provides fault tolerance patterns for external service calls.
package resilience

import (
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
)

// ErrCircuitOpen is returned when the breaker rejects a call.
var ErrCircuitOpen = gobreaker.ErrOpenState

// BreakerConfig holds configuration for a circuit breaker.
type BreakerConfig struct {
	Name                string
	MaxRequests         uint32        // allowed in half-open state
	Interval            time.Duration // closed-state counter reset
	Timeout             time.Duration // open state duration before half-open
	ConsecutiveFailures uint32
	MinRequests         uint32
	FailureRatio        float64
	// Ignore, when set, marks errors that say nothing about the service's
	// health, such as a single target site refusing the request.
	Ignore func(error) bool
}

// DefaultBreakerConfig returns the settings used for every external API.
func DefaultBreakerConfig(name string) BreakerConfig {
	return BreakerConfig{
		Name:                name,
		MaxRequests:         3,
		Interval:            60 * time.Second,
		Timeout:             30 * time.Second,
		ConsecutiveFailures: 5,
		MinRequests:         10,
		FailureRatio:        0.6,
	}
}

// NewBreaker creates a gobreaker circuit breaker that trips after too many
// consecutive failures or a high failure ratio.
func NewBreaker(cfg BreakerConfig, log zerolog.Logger) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests == 0 {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.ConsecutiveFailures > cfg.ConsecutiveFailures ||
				(counts.Requests >= cfg.MinRequests && failureRatio >= cfg.FailureRatio)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("circuit breaker state changed")
		},
		IsSuccessful: func(err error) bool {
			// permanent errors are the caller's fault, not the service's
			if err == nil || IsPermanent(err) {
				return true
			}
			return cfg.Ignore != nil && cfg.Ignore(err)
		},
	})
}

// Execute runs fn through the breaker and keeps its result type.
func Execute[T any](cb *gobreaker.CircuitBreaker, fn func() (T, error)) (T, error) {
	res, err := cb.Execute(func() (interface{}, error) {
		return fn()
	})
	if err != nil {
		var zero T
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return zero, Permanent(err)
		}
		if v, ok := res.(T); ok {
			return v, err
		}
		return zero, err
	}
	v, _ := res.(T)
	return v, nil
}
