package market

import (
	"time"
)

// The optimistic overlay is a per-product state machine: no overlay,
// or overlay pending. The background computation settling or a recall
// are the only transitions out of pending. The generation counter,
// bumped on every recall, makes stale asynchronous work discard its
// effects: a recalled overlay's background goroutine must not clear a
// newer overlay, and an in-flight factory must not memoize a result a
// recall has already superseded.
type overlayState int

const (
	overlayNone overlayState = iota
	overlayPending
)

type overlay struct {
	state overlayState
	value any
}

func (c *productCore) overlayValue() (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.overlay.state == overlayPending {
		return c.overlay.value, true
	}
	return nil, false
}

// clearOverlay drops any pending placeholder immediately and bumps the
// generation. In-flight background work is not cancelled; its eventual
// result is ignored.
func (c *productCore) clearOverlay() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generation++
	c.overlay = overlay{}
}

// setOptimistic installs the placeholder and races the real
// computation in the background. If the supplier is memoized the
// background run reuses the standing memoized computation and the
// overlay clears as soon as it settles; otherwise minHold keeps the
// placeholder visible until max(completion, minHold).
func (c *productCore) setOptimistic(value any, minHold time.Duration) error {
	c.mu.Lock()
	if c.overlay.state == overlayPending {
		pending := c.overlay.value
		c.mu.Unlock()
		return &OptimisticPendingError{Product: c.spec.name, Pending: pending}
	}
	c.overlay = overlay{state: overlayPending, value: value}
	generation := c.generation
	c.mu.Unlock()

	start := time.Now()
	go func() {
		_, _ = c.resolve()

		if minHold > 0 && !c.spec.memo {
			if remaining := minHold - time.Since(start); remaining > 0 {
				time.Sleep(remaining)
			}
		}

		c.mu.Lock()
		if c.generation == generation && c.overlay.state == overlayPending {
			c.overlay = overlay{}
		}
		c.mu.Unlock()
	}()

	return nil
}
