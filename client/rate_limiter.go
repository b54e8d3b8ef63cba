package client

import (
	"context"
	"io"
	"sync"
	"time"
)

// RateLimiter is a token bucket shared by all transfers of one client.
type RateLimiter struct {
	mu     sync.Mutex
	rate   int64   // bytes per second
	tokens float64 // bytes that may be moved right now
	last   time.Time
}

// NewRateLimiter returns nil for a non-positive rate, which means unlimited.
func NewRateLimiter(bytesPerSecond int64) *RateLimiter {
	if bytesPerSecond <= 0 {
		return nil
	}
	return &RateLimiter{rate: bytesPerSecond, tokens: float64(bytesPerSecond), last: time.Now()}
}

// take reserves up to want bytes and returns how many were granted, or how long to
// wait when the bucket is empty.
func (l *RateLimiter) take(want int) (int, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	if elapsed := now.Sub(l.last).Seconds(); elapsed > 0 {
		l.tokens += elapsed * float64(l.rate)
		if max := float64(l.rate); l.tokens > max {
			l.tokens = max
		}
		l.last = now
	}
	allowed := int(l.tokens)
	if allowed <= 0 {
		return 0, time.Duration(float64(time.Second) / float64(l.rate))
	}
	if want > allowed {
		want = allowed
	}
	l.tokens -= float64(want)
	return want, 0
}

type limitedReader struct {
	ctx   context.Context
	under io.Reader
	lim   *RateLimiter
}

func (lr *limitedReader) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return lr.under.Read(p)
	}
	for {
		n, wait := lr.lim.take(len(p))
		if n > 0 {
			got, err := lr.under.Read(p[:n])
			if got < n {
				// Return what was not used.
				lr.lim.mu.Lock()
				lr.lim.tokens += float64(n - got)
				lr.lim.mu.Unlock()
			}
			return got, err
		}
		select {
		case <-lr.ctx.Done():
			return 0, lr.ctx.Err()
		case <-time.After(wait):
		}
	}
}

// throttle wraps r with the client's limiter, if any.
func (c *Client) throttle(ctx context.Context, r io.Reader) io.Reader {
	if c.limiter == nil {
		return r
	}
	return &limitedReader{ctx: ctx, under: r, lim: c.limiter}
}
