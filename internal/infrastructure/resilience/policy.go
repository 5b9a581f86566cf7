package resilience

import "time"

// Backend names the dependency an executor guards. Each backend starts from
// its own retry and breaker profile.
type Backend string

const (
	BackendGeneral    Backend = "general"
	BackendGeneration Backend = "generation"
	BackendRetrieval  Backend = "retrieval"
	BackendEvents     Backend = "events"
)

type Config struct {
	Backend Backend

	RetryMaxAttempts    int
	RetryInitialBackoff time.Duration
	RetryMaxBackoff     time.Duration
	RetryMultiplier     float64

	BreakerEnabled          bool
	BreakerMinRequests      uint32
	BreakerFailureRatio     float64
	BreakerOpenTimeout      time.Duration
	BreakerHalfOpenMaxCalls uint32
}

// Profile returns the starting configuration for backend.
//
// Generation calls are long and run inside the turn deadline, so they retry
// once with a wide backoff and trip early. Retrieval calls are short and
// numerous per turn. Event publishing happens once per indexing run and may
// wait for a reconnect.
func Profile(backend Backend) Config {
	switch backend {
	case BackendGeneration:
		return Config{
			Backend:                 backend,
			RetryMaxAttempts:        2,
			RetryInitialBackoff:     500 * time.Millisecond,
			RetryMaxBackoff:         2 * time.Second,
			RetryMultiplier:         2,
			BreakerEnabled:          true,
			BreakerMinRequests:      4,
			BreakerFailureRatio:     0.5,
			BreakerOpenTimeout:      time.Minute,
			BreakerHalfOpenMaxCalls: 1,
		}
	case BackendRetrieval:
		return Config{
			Backend:                 backend,
			RetryMaxAttempts:        3,
			RetryInitialBackoff:     50 * time.Millisecond,
			RetryMaxBackoff:         200 * time.Millisecond,
			RetryMultiplier:         2,
			BreakerEnabled:          true,
			BreakerMinRequests:      10,
			BreakerFailureRatio:     0.5,
			BreakerOpenTimeout:      15 * time.Second,
			BreakerHalfOpenMaxCalls: 3,
		}
	case BackendEvents:
		return Config{
			Backend:                 backend,
			RetryMaxAttempts:        5,
			RetryInitialBackoff:     200 * time.Millisecond,
			RetryMaxBackoff:         2 * time.Second,
			RetryMultiplier:         2,
			BreakerEnabled:          true,
			BreakerMinRequests:      5,
			BreakerFailureRatio:     0.6,
			BreakerOpenTimeout:      30 * time.Second,
			BreakerHalfOpenMaxCalls: 1,
		}
	default:
		return Config{
			Backend:                 BackendGeneral,
			RetryMaxAttempts:        3,
			RetryInitialBackoff:     100 * time.Millisecond,
			RetryMaxBackoff:         400 * time.Millisecond,
			RetryMultiplier:         2,
			BreakerEnabled:          true,
			BreakerMinRequests:      10,
			BreakerFailureRatio:     0.5,
			BreakerOpenTimeout:      30 * time.Second,
			BreakerHalfOpenMaxCalls: 2,
		}
	}
}

// Overrides carries operator settings applied on top of a profile. Zero
// fields keep the profile value.
type Overrides struct {
	RetryMaxAttempts    int
	RetryInitialBackoff time.Duration
	RetryMaxBackoff     time.Duration
	BreakerFailureRatio float64
	BreakerOpenTimeout  time.Duration
	// BreakerDisabled turns the circuit breaker off for every backend.
	BreakerDisabled bool
}

func (c Config) With(o Overrides) Config {
	if o.RetryMaxAttempts > 0 {
		c.RetryMaxAttempts = o.RetryMaxAttempts
	}
	if o.RetryInitialBackoff > 0 {
		c.RetryInitialBackoff = o.RetryInitialBackoff
	}
	if o.RetryMaxBackoff > 0 {
		c.RetryMaxBackoff = o.RetryMaxBackoff
	}
	if o.BreakerFailureRatio > 0 && o.BreakerFailureRatio <= 1 {
		c.BreakerFailureRatio = o.BreakerFailureRatio
	}
	if o.BreakerOpenTimeout > 0 {
		c.BreakerOpenTimeout = o.BreakerOpenTimeout
	}
	if o.BreakerDisabled {
		c.BreakerEnabled = false
	}
	return c
}

// normalize fills unset fields from the backend profile. BreakerEnabled is
// taken as given.
func (c Config) normalize() Config {
	p := Profile(c.Backend)
	if c.Backend == "" {
		c.Backend = p.Backend
	}

	c.RetryMaxAttempts = orInt(c.RetryMaxAttempts, p.RetryMaxAttempts)
	c.RetryInitialBackoff = orDuration(c.RetryInitialBackoff, p.RetryInitialBackoff)
	c.RetryMaxBackoff = max(orDuration(c.RetryMaxBackoff, p.RetryMaxBackoff), c.RetryInitialBackoff)
	if c.RetryMultiplier < 1 {
		c.RetryMultiplier = p.RetryMultiplier
	}

	if c.BreakerMinRequests == 0 {
		c.BreakerMinRequests = p.BreakerMinRequests
	}
	if c.BreakerFailureRatio <= 0 || c.BreakerFailureRatio > 1 {
		c.BreakerFailureRatio = p.BreakerFailureRatio
	}
	c.BreakerOpenTimeout = orDuration(c.BreakerOpenTimeout, p.BreakerOpenTimeout)
	if c.BreakerHalfOpenMaxCalls == 0 {
		c.BreakerHalfOpenMaxCalls = p.BreakerHalfOpenMaxCalls
	}
	return c
}

func orInt(v, fallback int) int {
	if v <= 0 {
		return fallback
	}
	return v
}

func orDuration(v, fallback time.Duration) time.Duration {
	if v <= 0 {
		return fallback
	}
	return v
}
