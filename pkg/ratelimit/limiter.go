// Package ratelimit enforces per-platform request budgets for all outbound
// calls to external APIs. Each platform has an independent fixed-window
// counter; callers block in Acquire until a slot frees, and Do additionally
// retries externally rate-limited calls with exponential backoff.
package ratelimit

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/ethanbaker/clubsync/pkg/syncerr"
	"github.com/ethanbaker/clubsync/pkg/utils"
)

// Limits configures one platform's budget
type Limits struct {
	Limit  int
	Window time.Duration
}

// Defaults per published API quotas. Ticketing and patronage are generous;
// the email-marketing and chat platforms are stricter.
var defaultLimits = map[string]Limits{
	"ticketing":       {Limit: 1000, Window: time.Hour},
	"patronage":       {Limit: 120, Window: time.Minute},
	"email-marketing": {Limit: 10, Window: time.Second},
	"chat-community":  {Limit: 50, Window: time.Second},
}

// platformState is the one piece of shared mutable state per platform; all
// counter reads and writes happen inside its mutex
type platformState struct {
	mutex       sync.Mutex
	limit       int
	window      time.Duration
	windowStart time.Time
	count       int
}

// Limiter owns the per-platform rate limit state
type Limiter struct {
	states     map[string]*platformState
	maxRetries int
	baseDelay  time.Duration
}

// NewLimiter builds a limiter for every known platform, with limits and
// windows overridable through configuration
// (RATE_LIMIT_<PLATFORM>_LIMIT / RATE_LIMIT_<PLATFORM>_WINDOW)
func NewLimiter(cfg *utils.Config) *Limiter {
	l := &Limiter{
		states:     make(map[string]*platformState),
		maxRetries: cfg.GetIntWithDefault("MAX_RETRY_ATTEMPTS", 3),
		baseDelay:  cfg.GetDurationWithDefault("RATE_LIMIT_BASE_DELAY", 500*time.Millisecond),
	}

	for platform, limits := range defaultLimits {
		key := strings.ToUpper(strings.ReplaceAll(platform, "-", "_"))

		l.states[platform] = &platformState{
			limit:       cfg.GetIntWithDefault("RATE_LIMIT_"+key+"_LIMIT", limits.Limit),
			window:      cfg.GetDurationWithDefault("RATE_LIMIT_"+key+"_WINDOW", limits.Window),
			windowStart: time.Now(),
		}
	}

	return l
}

// NewLimiterWithLimits builds a limiter with explicit limits, used in tests
func NewLimiterWithLimits(limits map[string]Limits, maxRetries int, baseDelay time.Duration) *Limiter {
	l := &Limiter{
		states:     make(map[string]*platformState),
		maxRetries: maxRetries,
		baseDelay:  baseDelay,
	}

	for platform, lim := range limits {
		l.states[platform] = &platformState{
			limit:       lim.Limit,
			window:      lim.Window,
			windowStart: time.Now(),
		}
	}

	return l
}

// Acquire blocks until a request slot is available for the platform or the
// context is cancelled. It never returns an error for budget exhaustion;
// callers are delayed until the window resets.
func (l *Limiter) Acquire(ctx context.Context, platform string) error {
	state, ok := l.states[platform]
	if !ok {
		return &syncerr.UnknownPlatformError{Platform: platform}
	}

	for {
		state.mutex.Lock()

		now := time.Now()
		if now.Sub(state.windowStart) >= state.window {
			state.windowStart = now
			state.count = 0
		}

		if state.count < state.limit {
			state.count++
			state.mutex.Unlock()
			return nil
		}

		wait := state.window - now.Sub(state.windowStart)
		state.mutex.Unlock()

		if err := sleepContext(ctx, wait); err != nil {
			return err
		}
	}
}

// Do wraps an outbound API call with the platform's rate limit and retries
// externally rate-limited responses (syncerr.ErrRateLimited) with
// exponential backoff. After the retry budget is exhausted the call fails
// with a RateLimitExceededError so it is reported, not silently dropped.
func (l *Limiter) Do(ctx context.Context, platform string, call func(ctx context.Context) error) error {
	delay := l.baseDelay

	var lastErr error
	for attempt := 0; attempt <= l.maxRetries; attempt++ {
		if err := l.Acquire(ctx, platform); err != nil {
			return err
		}

		lastErr = call(ctx)
		if lastErr == nil {
			return nil
		}

		if !errors.Is(lastErr, syncerr.ErrRateLimited) && !errors.Is(lastErr, syncerr.ErrTransient) {
			return lastErr
		}

		if attempt == l.maxRetries {
			break
		}

		if err := sleepContext(ctx, delay); err != nil {
			return err
		}
		delay *= 2
	}

	if errors.Is(lastErr, syncerr.ErrRateLimited) {
		return &syncerr.RateLimitExceededError{Platform: platform, Attempts: l.maxRetries + 1}
	}
	return lastErr
}

// sleepContext waits for d or until ctx is done
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
