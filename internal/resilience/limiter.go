package resilience

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Pacer spaces out calls per key (a provider or host). A key with no
// configured interval is not paced.
type Pacer struct {
	mu       sync.RWMutex
	limiters map[string]*rate.Limiter
	interval map[string]time.Duration
	fallback time.Duration
}

// NewPacer creates a pacer whose unknown keys use fallback spacing.
func NewPacer(fallback time.Duration) *Pacer {
	return &Pacer{
		limiters: make(map[string]*rate.Limiter),
		interval: make(map[string]time.Duration),
		fallback: fallback,
	}
}

// SetInterval sets the minimum spacing between calls for key.
func (p *Pacer) SetInterval(key string, d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if cur, ok := p.interval[key]; ok && cur == d {
		return
	}
	p.interval[key] = d
	delete(p.limiters, key)
}

// Wait blocks until a call for key is allowed or ctx is done.
func (p *Pacer) Wait(ctx context.Context, key string) error {
	l := p.limiter(key)
	if l == nil {
		return ctx.Err()
	}
	return l.Wait(ctx)
}

func (p *Pacer) limiter(key string) *rate.Limiter {
	p.mu.RLock()
	l, ok := p.limiters[key]
	p.mu.RUnlock()
	if ok {
		return l
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if l, ok = p.limiters[key]; ok {
		return l
	}

	d, ok := p.interval[key]
	if !ok {
		d = p.fallback
	}
	if d > 0 {
		l = rate.NewLimiter(rate.Every(d), 1)
	}
	p.limiters[key] = l
	return l
}
