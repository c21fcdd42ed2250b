package auth

import (
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"
)

// RateLimiter throttles requests keyed by an arbitrary string, usually
// a client IP. A nil RateLimiter means no limiting.
type RateLimiter interface {
	Allow(key string) bool
}

// TokenBucketLimiter keeps one token bucket per key. Buckets start
// full, so a fresh client gets its whole burst immediately.
type TokenBucketLimiter struct {
	mu         sync.RWMutex
	buckets    map[string]*bucket
	rate       int
	burst      int
	cleanup    time.Duration
	trustProxy bool
	logger     *slog.Logger
	stop       chan struct{}
	once       sync.Once
}

type bucket struct {
	mu         sync.Mutex
	tokens     float64
	lastUpdate time.Time
}

// NewTokenBucketLimiter creates a limiter refilling rate tokens per
// second up to burst. trustProxy controls whether proxy headers are
// consulted when extracting client IPs.
func NewTokenBucketLimiter(rate, burst int, trustProxy bool, cleanupInterval time.Duration, logger *slog.Logger) *TokenBucketLimiter {
	if cleanupInterval == 0 {
		cleanupInterval = DefaultRateLimitCleanupInterval
	}
	if logger == nil {
		logger = slog.Default()
	}

	rl := &TokenBucketLimiter{
		buckets:    make(map[string]*bucket),
		rate:       rate,
		burst:      burst,
		cleanup:    cleanupInterval,
		trustProxy: trustProxy,
		logger:     logger,
		stop:       make(chan struct{}),
	}

	go rl.sweepIdleBuckets()

	return rl
}

// Allow takes one token from the key's bucket, reporting whether one
// was available.
func (rl *TokenBucketLimiter) Allow(key string) bool {
	rl.mu.RLock()
	b, ok := rl.buckets[key]
	rl.mu.RUnlock()

	if !ok {
		rl.mu.Lock()
		// Another request for this key may have created the bucket
		// between the read and write locks; both must share it, or each
		// would start with a full burst.
		if b, ok = rl.buckets[key]; !ok {
			b = &bucket{tokens: float64(rl.burst), lastUpdate: time.Now()}
			rl.buckets[key] = b
		}
		rl.mu.Unlock()
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	b.tokens += now.Sub(b.lastUpdate).Seconds() * float64(rl.rate)
	if b.tokens > float64(rl.burst) {
		b.tokens = float64(rl.burst)
	}
	b.lastUpdate = now

	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

// Close stops the background sweep goroutine
func (rl *TokenBucketLimiter) Close() {
	rl.once.Do(func() { close(rl.stop) })
}

func (rl *TokenBucketLimiter) sweepIdleBuckets() {
	ticker := time.NewTicker(rl.cleanup)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.sweepOnce()
		case <-rl.stop:
			return
		}
	}
}

func (rl *TokenBucketLimiter) sweepOnce() {
	now := time.Now()
	rl.mu.Lock()
	defer rl.mu.Unlock()

	for key, b := range rl.buckets {
		b.mu.Lock()
		idle := now.Sub(b.lastUpdate) > InactiveLimiterCleanupWindow
		b.mu.Unlock()
		if idle {
			delete(rl.buckets, key)
		}
	}
}

// getClientIP determines the client address for rate limiting.
// X-Forwarded-For and X-Real-IP are honored only when the deployment
// declared a trusted proxy in front of the gateway; anyone can send
// those headers otherwise.
func getClientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			// First hop is the original client
			first, _, _ := strings.Cut(xff, ",")
			return first
		}
		if xri := r.Header.Get("X-Real-IP"); xri != "" {
			return xri
		}
	}

	return extractIPFromAddr(r.RemoteAddr)
}

// extractIPFromAddr strips the port from an "IP:port" address. The last
// colon is the separator, which keeps bracketed IPv6 addresses intact.
func extractIPFromAddr(addr string) string {
	if i := strings.LastIndexByte(addr, ':'); i >= 0 {
		return addr[:i]
	}
	return addr
}
