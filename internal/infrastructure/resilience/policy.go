package resilience

import "time"

type Config struct {
	// MaxAttempts bounds total call attempts (first try included).
	MaxAttempts int
	// BackoffFactor is the base delay; attempt n waits factor * 2^n.
	BackoffFactor time.Duration
	MaxBackoff    time.Duration
	// Jitter spreads each delay uniformly over [delay/2, delay).
	Jitter bool

	BreakerEnabled          bool
	BreakerMinRequests      uint32
	BreakerFailureRatio     float64
	BreakerOpenTimeout      time.Duration
	BreakerHalfOpenMaxCalls uint32
}

func DefaultConfig() Config {
	return Config{
		MaxAttempts:   3,
		BackoffFactor: 500 * time.Millisecond,
		MaxBackoff:    8 * time.Second,
		Jitter:        true,

		BreakerEnabled:          true,
		BreakerMinRequests:      10,
		BreakerFailureRatio:     0.5,
		BreakerOpenTimeout:      30 * time.Second,
		BreakerHalfOpenMaxCalls: 2,
	}
}

func (c Config) normalize() Config {
	out := c
	def := DefaultConfig()

	if out.MaxAttempts <= 0 {
		out.MaxAttempts = def.MaxAttempts
	}
	if out.BackoffFactor <= 0 {
		out.BackoffFactor = def.BackoffFactor
	}
	if out.MaxBackoff <= 0 {
		out.MaxBackoff = def.MaxBackoff
	}
	if out.MaxBackoff < out.BackoffFactor {
		out.MaxBackoff = out.BackoffFactor
	}

	if out.BreakerMinRequests == 0 {
		out.BreakerMinRequests = def.BreakerMinRequests
	}
	if out.BreakerFailureRatio <= 0 || out.BreakerFailureRatio > 1 {
		out.BreakerFailureRatio = def.BreakerFailureRatio
	}
	if out.BreakerOpenTimeout <= 0 {
		out.BreakerOpenTimeout = def.BreakerOpenTimeout
	}
	if out.BreakerHalfOpenMaxCalls == 0 {
		out.BreakerHalfOpenMaxCalls = def.BreakerHalfOpenMaxCalls
	}

	return out
}

// backoffDelay computes the wait before retrying after the given attempt,
// attempt counting from zero.
func (c Config) backoffDelay(attempt int) time.Duration {
	delay := c.BackoffFactor
	for i := 0; i < attempt; i++ {
		delay *= 2
		if delay >= c.MaxBackoff {
			return c.MaxBackoff
		}
	}
	if delay > c.MaxBackoff {
		delay = c.MaxBackoff
	}
	return delay
}
