package scanning

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"
)

// BreakerConfig tunes the circuit breaker in front of a recognition backend
type BreakerConfig struct {
	MinRequests      uint32
	FailureRatio     float64
	OpenTimeout      time.Duration
	HalfOpenMaxCalls uint32
}

// DefaultBreakerConfig trips after half of at least five calls failed
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		MinRequests:      5,
		FailureRatio:     0.5,
		OpenTimeout:      30 * time.Second,
		HalfOpenMaxCalls: 1,
	}
}

func (c BreakerConfig) normalize() BreakerConfig {
	def := DefaultBreakerConfig()
	if c.MinRequests == 0 {
		c.MinRequests = def.MinRequests
	}
	if c.FailureRatio <= 0 || c.FailureRatio > 1 {
		c.FailureRatio = def.FailureRatio
	}
	if c.OpenTimeout <= 0 {
		c.OpenTimeout = def.OpenTimeout
	}
	if c.HalfOpenMaxCalls == 0 {
		c.HalfOpenMaxCalls = def.HalfOpenMaxCalls
	}
	return c
}

// Breaker guards a Scanner so a failing backend is not hammered by every upload
type Breaker struct {
	next    Scanner
	breaker *gobreaker.CircuitBreaker[*ReceiptData]
}

// NewBreaker wraps next in a circuit breaker named name
func NewBreaker(name string, next Scanner, cfg BreakerConfig) *Breaker {
	cfg = cfg.normalize()
	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.HalfOpenMaxCalls,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= cfg.FailureRatio
		},
		IsSuccessful: func(err error) bool {
			// a caller giving up says nothing about the backend
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			slog.Warn("circuit_breaker_state_change", "scanner", name, "from", from.String(), "to", to.String())
		},
	}
	return &Breaker{
		next:    next,
		breaker: gobreaker.NewCircuitBreaker[*ReceiptData](settings),
	}
}

// ScanReceipt forwards to the wrapped scanner unless the circuit is open
func (b *Breaker) ScanReceipt(ctx context.Context, imageData []byte, contentType string) (*ReceiptData, error) {
	data, err := b.breaker.Execute(func() (*ReceiptData, error) {
		return b.next.ScanReceipt(ctx, imageData, contentType)
	})
	if IsCircuitOpen(err) {
		return nil, fmt.Errorf("scanner %s unavailable: %w: %w", b.breaker.Name(), ErrRecognition, err)
	}
	return data, err
}

// State reports the current breaker state
func (b *Breaker) State() gobreaker.State {
	return b.breaker.State()
}

// Close closes the wrapped scanner
func (b *Breaker) Close() error {
	return b.next.Close()
}

// IsCircuitOpen reports whether err was produced by an open or saturated breaker
func IsCircuitOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}
