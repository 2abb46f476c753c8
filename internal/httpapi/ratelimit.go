package httpapi

import (
	"math"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiterConfig holds the two request budgets: a general per-user
// budget and a tighter signup budget keyed by remote address.
type RateLimiterConfig struct {
	GeneralRate     rate.Limit
	GeneralBurst    int
	SignupRate      rate.Limit
	SignupBurst     int
	CleanupInterval time.Duration
}

// DefaultRateLimiterConfig returns 120 req/min/user general, 4 signups
// per hour per address.
func DefaultRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{
		GeneralRate:     rate.Limit(120.0 / 60.0),
		GeneralBurst:    120,
		SignupRate:      rate.Limit(4.0 / 3600.0),
		SignupBurst:     4,
		CleanupInterval: 5 * time.Minute,
	}
}

type keyedEntry struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

type keyedLimiter struct {
	limit rate.Limit
	burst int

	mu      sync.Mutex
	entries map[string]*keyedEntry
}

func newKeyedLimiter(limit rate.Limit, burst int) *keyedLimiter {
	return &keyedLimiter{
		limit:   limit,
		burst:   burst,
		entries: make(map[string]*keyedEntry),
	}
}

func (k *keyedLimiter) allow(key string) bool {
	k.mu.Lock()
	entry, ok := k.entries[key]
	if !ok {
		entry = &keyedEntry{limiter: rate.NewLimiter(k.limit, k.burst)}
		k.entries[key] = entry
	}
	entry.lastAccess = time.Now()
	k.mu.Unlock()

	return entry.limiter.Allow()
}

func (k *keyedLimiter) prune(ttl time.Duration) {
	cutoff := time.Now().Add(-ttl)
	k.mu.Lock()
	for key, entry := range k.entries {
		if entry.lastAccess.Before(cutoff) {
			delete(k.entries, key)
		}
	}
	k.mu.Unlock()
}

// RateLimiter manages both budgets and prunes idle entries in the
// background.
type RateLimiter struct {
	config  RateLimiterConfig
	general *keyedLimiter
	signup  *keyedLimiter
	stopCh  chan struct{}
}

// NewRateLimiter creates a RateLimiter and starts its cleanup loop.
func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	rl := &RateLimiter{
		config:  config,
		general: newKeyedLimiter(config.GeneralRate, config.GeneralBurst),
		signup:  newKeyedLimiter(config.SignupRate, config.SignupBurst),
		stopCh:  make(chan struct{}),
	}
	go rl.cleanupLoop()
	return rl
}

// Stop ends the cleanup loop.
func (rl *RateLimiter) Stop() {
	close(rl.stopCh)
}

// AllowGeneral reports whether the user may make another API call.
func (rl *RateLimiter) AllowGeneral(userID string) bool {
	return rl.general.allow(userID)
}

// AllowSignup reports whether the address may attempt another signup.
func (rl *RateLimiter) AllowSignup(remoteAddr string) bool {
	return rl.signup.allow(remoteAddr)
}

// SignupRetryAfter returns the Retry-After header value for a refused
// signup, in whole seconds.
func (rl *RateLimiter) SignupRetryAfter() string {
	secs := int(math.Ceil(1.0 / float64(rl.config.SignupRate)))
	if secs < 1 {
		secs = 1
	}
	return strconv.Itoa(secs)
}

func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ttl := rl.config.CleanupInterval * 2
			rl.general.prune(ttl)
			rl.signup.prune(ttl)
		case <-rl.stopCh:
			return
		}
	}
}
