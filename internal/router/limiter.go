package router

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// limiter applies a token bucket per connection id.
type limiter struct {
	limit rate.Limit
	burst int

	mu    sync.Mutex
	byKey map[string]*rate.Limiter
}

// newLimiter returns nil when rate limiting is disabled. A nil limiter
// allows everything.
func newLimiter(rps float64, burst int) *limiter {
	if rps <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = 1
	}
	return &limiter{
		limit: rate.Limit(rps),
		burst: burst,
		byKey: make(map[string]*rate.Limiter),
	}
}

// allow reports whether one frame from key may be processed at now.
func (l *limiter) allow(key string, now time.Time) bool {
	if l == nil {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	lim, ok := l.byKey[key]
	if !ok {
		lim = rate.NewLimiter(l.limit, l.burst)
		l.byKey[key] = lim
	}
	return lim.AllowN(now, 1)
}

// forget drops the bucket for key.
func (l *limiter) forget(key string) {
	if l == nil {
		return
	}

	l.mu.Lock()
	delete(l.byKey, key)
	l.mu.Unlock()
}

func (l *limiter) len() int {
	if l == nil {
		return 0
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.byKey)
}
