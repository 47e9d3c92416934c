// Package ratelimit throttles data connection reads with a token bucket.
package ratelimit

import (
	"io"
	"sync"
	"time"
)

// maxChunk bounds a single throttled read so waits stay short.
const maxChunk = 8 * 1024

// Limiter is a token bucket refilled at a fixed number of bytes per second.
// The bucket holds at most one second worth of tokens.
type Limiter struct {
	mu     sync.Mutex
	rate   float64
	tokens float64
	last   time.Time

	// sleep and now are replaced in tests.
	sleep func(time.Duration)
	now   func() time.Time
}

// New returns a limiter for bytesPerSecond, or nil (unlimited) when the rate
// is not positive.
func New(bytesPerSecond int64) *Limiter {
	if bytesPerSecond <= 0 {
		return nil
	}
	rate := float64(bytesPerSecond)
	return &Limiter{
		rate:   rate,
		tokens: rate,
		last:   time.Now(),
		sleep:  time.Sleep,
		now:    time.Now,
	}
}

// Rate returns the configured bytes per second; zero for a nil limiter.
func (l *Limiter) Rate() int64 {
	if l == nil {
		return 0
	}
	return int64(l.rate)
}

func (l *Limiter) refill() {
	now := l.now()
	l.tokens += now.Sub(l.last).Seconds() * l.rate
	if l.tokens > l.rate {
		l.tokens = l.rate
	}
	l.last = now
}

// Wait blocks until n bytes may pass. The debt is carried over, so a request
// larger than the bucket still averages out to the configured rate.
func (l *Limiter) Wait(n int) {
	if l == nil || n <= 0 {
		return
	}

	l.mu.Lock()
	l.refill()
	l.tokens -= float64(n)
	var wait time.Duration
	if l.tokens < 0 {
		wait = time.Duration(-l.tokens / l.rate * float64(time.Second))
	}
	l.mu.Unlock()

	if wait > 0 {
		l.sleep(wait)
	}
}

type reader struct {
	r io.Reader
	l *Limiter
}

// NewReader throttles r. A nil limiter returns r unchanged.
func NewReader(r io.Reader, l *Limiter) io.Reader {
	if l == nil {
		return r
	}
	return &reader{r: r, l: l}
}

func (r *reader) Read(p []byte) (int, error) {
	if len(p) > maxChunk {
		p = p[:maxChunk]
	}
	n, err := r.r.Read(p)
	r.l.Wait(n)
	return n, err
}
