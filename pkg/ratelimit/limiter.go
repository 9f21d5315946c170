package ratelimit

import (
	"sync"
	"time"
)

// Result captures the outcome of a rate limiting decision.
type Result struct {
	Allowed    bool
	Remaining  int
	Limit      int
	Window     time.Duration
	ResetAfter time.Duration
}

// Window is an in-process fixed-window request budget. The window starts at
// construction and restarts on the first decision taken once a full window
// has elapsed since the last restart.
type Window struct {
	mu          sync.Mutex
	limit       int
	window      time.Duration
	count       int
	windowStart time.Time
	now         func() time.Time
}

// NewWindow creates a budget of limit requests per window.
func NewWindow(limit int, window time.Duration) *Window {
	if window <= 0 {
		window = time.Minute
	}
	w := &Window{
		limit:  limit,
		window: window,
		now:    time.Now,
	}
	w.windowStart = w.now()
	return w
}

// WithNow overrides the time source (useful for tests). The current window
// restarts at the new clock's reading.
func (w *Window) WithNow(now func() time.Time) *Window {
	w.mu.Lock()
	defer w.mu.Unlock()
	if now != nil {
		w.now = now
		w.windowStart = now()
		w.count = 0
	}
	return w
}

// Allow consumes one unit of budget if any is left in the current window.
func (w *Window) Allow() bool {
	return w.Take().Allowed
}

// Take is Allow with the full decision attached.
func (w *Window) Take() Result {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	w.rollLocked(now)

	allowed := w.count < w.limit
	if allowed {
		w.count++
	}
	return w.resultLocked(now, allowed)
}

// Remaining reports the budget left in the current window without consuming any.
func (w *Window) Remaining() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.rollLocked(w.now())
	return w.limit - w.count
}

// Used reports how many requests the current window has consumed.
func (w *Window) Used() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.rollLocked(w.now())
	return w.count
}

func (w *Window) rollLocked(now time.Time) {
	if now.Sub(w.windowStart) >= w.window {
		w.count = 0
		w.windowStart = now
	}
}

func (w *Window) resultLocked(now time.Time, allowed bool) Result {
	remaining := w.limit - w.count
	if remaining < 0 {
		remaining = 0
	}
	resetAfter := w.window - now.Sub(w.windowStart)
	if resetAfter < 0 {
		resetAfter = 0
	}
	return Result{
		Allowed:    allowed,
		Remaining:  remaining,
		Limit:      w.limit,
		Window:     w.window,
		ResetAfter: resetAfter,
	}
}
