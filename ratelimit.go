package transcache

import (
	"context"

	"golang.org/x/time/rate"
)

// RateLimitConfig configures engine call throttling.
type RateLimitConfig struct {
	RequestsPerMinute int // Maximum engine calls per minute
	BurstSize         int // Maximum burst size (default: same as RPM)
}

// RateLimitedEngine wraps an Engine so that calls share one token bucket.
// Safe for concurrent use.
type RateLimitedEngine struct {
	engine  Engine
	limiter *rate.Limiter
}

// NewRateLimitedEngine creates a new rate-limited engine.
func NewRateLimitedEngine(engine Engine, cfg RateLimitConfig) *RateLimitedEngine {
	rpm := cfg.RequestsPerMinute
	if rpm <= 0 {
		rpm = 60 // Default: 60 RPM
	}

	burst := cfg.BurstSize
	if burst <= 0 {
		burst = rpm // Default burst = RPM
	}

	return &RateLimitedEngine{
		engine:  engine,
		limiter: rate.NewLimiter(rate.Limit(float64(rpm)/60.0), burst),
	}
}

// Translate implements Engine with rate limiting.
func (e *RateLimitedEngine) Translate(ctx context.Context, req TranslateRequest) ([]string, error) {
	if err := e.limiter.Wait(ctx); err != nil {
		return nil, &ProviderError{
			Message:   "rate limit wait cancelled",
			Cause:     err,
			Retryable: false,
		}
	}

	return e.engine.Translate(ctx, req)
}

// Ping forwards readiness checks to the wrapped engine when it supports them.
func (e *RateLimitedEngine) Ping(ctx context.Context) error {
	if hc, ok := e.engine.(HealthChecker); ok {
		return hc.Ping(ctx)
	}
	return nil
}

// Limiter returns the underlying rate limiter for inspection.
func (e *RateLimitedEngine) Limiter() *rate.Limiter {
	return e.limiter
}

var _ HealthChecker = (*RateLimitedEngine)(nil)
