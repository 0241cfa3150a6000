package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Lockout counts failed attempts per key. Each failure spends one token
// from a bucket of maxAttempts; an empty bucket means the key is locked
// until a token refills after window.
type Lockout struct {
	mu          sync.Mutex
	buckets     map[string]*rate.Limiter
	maxAttempts int
	window      time.Duration
	now         func() time.Time
}

func NewLockout(maxAttempts int, window time.Duration) *Lockout {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Lockout{
		buckets:     make(map[string]*rate.Limiter),
		maxAttempts: maxAttempts,
		window:      window,
		now:         time.Now,
	}
}

func (l *Lockout) bucket(key string) *rate.Limiter {
	b, ok := l.buckets[key]
	if !ok {
		b = rate.NewLimiter(rate.Every(l.window), l.maxAttempts)
		l.buckets[key] = b
	}
	return b
}

// Locked reports whether key has exhausted its attempts.
func (l *Lockout) Locked(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[key]
	if !ok {
		return false
	}
	return b.TokensAt(l.now()) < 1
}

// Fail records a failed attempt and returns the attempts left.
func (l *Lockout) Fail(key string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	b := l.bucket(key)
	now := l.now()
	b.AllowN(now, 1)

	left := int(b.TokensAt(now))
	if left < 0 {
		left = 0
	}
	return left
}

// Reset forgets all failures for key, e.g. after a successful attempt.
func (l *Lockout) Reset(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.buckets, key)
}
