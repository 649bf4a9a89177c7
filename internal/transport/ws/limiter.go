package ws

import "time"

// window is a fixed-window counter: at most max events per span. A zero
// span or max disables the limit.
type window struct {
	span time.Duration
	max  int

	start time.Time
	count int
}

// allow counts one event at now and reports whether it fits in the current
// window, and if not, how long until the window resets.
func (w *window) allow(now time.Time) (bool, time.Duration) {
	if w.span <= 0 || w.max <= 0 {
		return true, 0
	}
	if w.start.IsZero() || now.Sub(w.start) >= w.span {
		w.start = now
		w.count = 0
	}
	w.count++
	if w.count <= w.max {
		return true, 0
	}
	return false, w.start.Add(w.span).Sub(now)
}
