package rate

import (
	"context"
	"sync"
	"time"
)

// MemoryLimiter: fixed window in-process. Para desarrollo y single-instance;
// con varias réplicas usar RedisLimiter para que la ventana sea compartida.
type MemoryLimiter struct {
	Max    int64
	Window time.Duration

	mu      sync.Mutex
	windows map[string]*memWindow
}

type memWindow struct {
	start time.Time
	hits  int64
}

func NewMemoryLimiter(max int, window time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		Max:     int64(max),
		Window:  window,
		windows: make(map[string]*memWindow),
	}
}

func (l *MemoryLimiter) Allow(_ context.Context, key string) (Result, error) {
	now := time.Now()
	winStart := now.Truncate(l.Window)

	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.windows[key]
	if !ok || !w.start.Equal(winStart) {
		w = &memWindow{start: winStart}
		l.windows[key] = w
	}
	w.hits++

	// Poda oportunista de ventanas viejas.
	if len(l.windows) > 4096 {
		for k, win := range l.windows {
			if !win.start.Equal(winStart) {
				delete(l.windows, k)
			}
		}
	}

	remaining := l.Max - w.hits
	if remaining < 0 {
		remaining = 0
	}
	ttl := winStart.Add(l.Window).Sub(now)

	res := Result{
		Allowed:     w.hits <= l.Max,
		Remaining:   remaining,
		CurrentHits: w.hits,
		WindowTTL:   ttl,
	}
	if !res.Allowed {
		res.RetryAfter = ttl
	}
	return res, nil
}
