package market

import (
	"time"
)

// activate runs the eager part of an assembly pass: children before
// parents, stopping at lazy nodes. A lazy node shields its whole
// subtree; nothing below it executes until the node itself is first
// unpacked. Factory failures here are recorded, never surfaced, so
// Assemble only fails on configuration errors.
func (p *assemblyPass) activate(core *productCore) {
	if p.activated[core] {
		return
	}
	p.activated[core] = true

	// Packed cores carry a ready value and no supply map; there is
	// nothing to execute.
	if core.packed {
		return
	}

	if core.spec.lazy {
		core.maybePreload()
		return
	}

	for _, entry := range core.supplies.entries {
		if child, ok := entry.(*productCore); ok {
			p.activate(child)
		}
	}

	_, _ = core.resolve()
	core.maybePreload()
}

// maybePreload launches the best-effort warm-up goroutine. The warm-up
// shares the memoized computation with any concurrent real access;
// its failure is swallowed here and resurfaces on the next unpack
// (replayed from cache when memoized, recomputed otherwise).
func (c *productCore) maybePreload() {
	if !c.spec.preload {
		return
	}
	go func() {
		if _, err := c.resolve(); err != nil {
			c.market.logger.Debug("preload failed",
				"supplier", c.spec.name,
				"key", c.key.String(),
				"error", err)
		}
	}()
}

// armExpiry schedules the auto-recall timer after a value was
// produced. Re-arms on every production so a recomputed value gets its
// own expiry window.
func (c *productCore) armExpiry() {
	if c.spec.expiry <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.expiry != nil {
		c.expiry.Stop()
	}
	c.expiry = time.AfterFunc(c.spec.expiry, c.Recall)
}

func (c *productCore) stopExpiry() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.expiry != nil {
		c.expiry.Stop()
		c.expiry = nil
	}
}
