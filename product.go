package market

import (
	"context"
	"slices"
	"sync"
	"time"
)

// productCore is the type-erased assembled product: the state shared
// by the typed Product handle and the supply maps it appears in.
type productCore struct {
	spec     *supplierSpec
	market   *Market
	key      CacheKey
	supplies *Supplies
	deferred *Assemblers

	packed    bool
	packedVal any

	mu         sync.Mutex
	overlay    overlay
	generation uint64
	expiry     *time.Timer
}

func (c *productCore) unwrapCore() *productCore {
	return c
}

func (c *productCore) Name() string {
	return c.spec.name
}

// Supplies returns the resolved supply map this product was built
// from; nil for packed products.
func (c *productCore) Supplies() *Supplies {
	return c.supplies
}

// UnpackAny returns the computed value, or the pending optimistic
// placeholder if one is installed.
func (c *productCore) UnpackAny() (any, error) {
	if value, ok := c.overlayValue(); ok {
		return value, nil
	}
	return c.resolve()
}

// resolve runs the real computation, bypassing any optimistic overlay.
// Memoized outcomes (failures included) replay from the store; a given
// cache key executes its factory at most once at a time, and
// concurrent dependents share the in-flight computation.
func (c *productCore) resolve() (any, error) {
	if c.packed {
		return c.packedVal, nil
	}

	if c.spec.memo {
		if cached, ok := c.market.store.Load(c.key); ok {
			out := cached.(outcome)
			return out.value, out.err
		}
	}

	value, err, _ := c.market.flight.Do(c.key.String(), func() (any, error) {
		// A concurrent flight may have settled between the check
		// above and joining this one.
		if c.spec.memo {
			if cached, ok := c.market.store.Load(c.key); ok {
				out := cached.(outcome)
				return out.value, out.err
			}
		}
		return c.runFactory()
	})
	return value, err
}

// runFactory executes the factory through the extension chain, fires
// the init hook, memoizes the outcome, and arms the expiry timer. A
// recall issued while the factory is in flight supersedes the run: the
// caller still receives the computed result, but it is not written back
// to the store, so the next unpack recomputes.
func (c *productCore) runFactory() (any, error) {
	generation := c.currentGeneration()
	exts := c.market.snapshotExtensions()
	op := &Operation{
		Kind:     OpUnpack,
		Supplier: c.spec.name,
		Key:      c.key,
		Market:   c.market,
		Supplies: c.supplies,
	}

	next := func() (any, error) {
		value, err := c.spec.factory(c.supplies, c.deferred)
		if err != nil {
			return nil, newAssemblyError(c.spec.name, c.key, err)
		}
		return value, nil
	}

	for i := len(exts) - 1; i >= 0; i-- {
		ext := exts[i]
		currentNext := next
		next = func() (any, error) {
			return ext.Wrap(context.Background(), currentNext, op)
		}
	}

	value, err := next()

	if err != nil {
		for _, ext := range exts {
			ext.OnError(err, op, c.market)
		}
	} else {
		c.runInit(value)
	}

	if c.currentGeneration() == generation {
		if c.spec.memo {
			c.market.store.Store(c.key, outcome{value: value, err: err})
		}
		if err == nil {
			c.armExpiry()
		}
	}

	return value, err
}

func (c *productCore) currentGeneration() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation
}

func (c *productCore) runInit(value any) {
	if c.spec.init == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			c.market.logger.Warn("init hook failed",
				"supplier", c.spec.name,
				"key", c.key.String(),
				"panic", r)
		}
	}()
	c.spec.init(value, c.supplies)
}

// DependsOnAny reports whether this product's dependency closure
// intersects names. The closure is recomputed fresh on each call so
// conditionally-included optional dependencies are reflected
// correctly: declared required/optional names match directly, and
// resolved supply-map entries are checked recursively.
func (c *productCore) DependsOnAny(names ...string) bool {
	if len(names) == 0 {
		return false
	}

	set := make(map[string]bool, len(names))
	for _, name := range names {
		set[name] = true
	}

	for _, dep := range c.spec.requires {
		if set[dep.Name()] {
			return true
		}
	}
	for _, dep := range c.spec.optional {
		if set[dep.Name()] {
			return true
		}
	}

	if c.supplies != nil {
		for _, entry := range c.supplies.entries {
			if entry.DependsOnAny(names...) {
				return true
			}
		}
	}

	return false
}

// Recall invalidates this product's cache entry and cascades to every
// transitive dependent, through the extension chain.
func (c *productCore) Recall() {
	exts := c.market.snapshotExtensions()
	op := &Operation{
		Kind:     OpRecall,
		Supplier: c.spec.name,
		Key:      c.key,
		Market:   c.market,
		Supplies: c.supplies,
	}

	next := func() (any, error) {
		c.market.recall(c)
		return nil, nil
	}

	for i := len(exts) - 1; i >= 0; i-- {
		ext := exts[i]
		currentNext := next
		next = func() (any, error) {
			return ext.Wrap(context.Background(), currentNext, op)
		}
	}

	_, _ = next()
}

// Product is a typed handle on an assembled value. It is immutable:
// Pack, Reassemble and With always return new instances.
type Product[T any] struct {
	c        *productCore
	supplier *ProductSupplier[T]
}

func (p *Product[T]) unwrapCore() *productCore {
	return p.c
}

func (p *Product[T]) Name() string {
	return p.c.spec.name
}

// CacheKey returns the opaque key this product's value is memoized
// under.
func (p *Product[T]) CacheKey() CacheKey {
	return p.c.key
}

// Supplies returns the resolved supply map this product was built
// from; nil for packed products.
func (p *Product[T]) Supplies() *Supplies {
	return p.c.supplies
}

// Unpack returns (or computes) the product's value. While an
// optimistic placeholder is pending it returns the placeholder; once
// the background computation settles it returns the real value or
// replays the real error.
func (p *Product[T]) Unpack() (T, error) {
	value, err := p.c.UnpackAny()
	if err != nil {
		var zero T
		return zero, err
	}
	return as[T](value)
}

func (p *Product[T]) UnpackAny() (any, error) {
	return p.c.UnpackAny()
}

// Peek returns the currently cached (or pending optimistic) value
// without executing anything.
func (p *Product[T]) Peek() (T, bool) {
	if value, ok := p.c.overlayValue(); ok {
		typed, err := as[T](value)
		return typed, err == nil
	}
	if p.c.packed {
		typed, err := as[T](p.c.packedVal)
		return typed, err == nil
	}
	if cached, ok := p.c.market.store.Load(p.c.key); ok {
		out := cached.(outcome)
		if out.err != nil {
			var zero T
			return zero, false
		}
		typed, err := as[T](out.value)
		return typed, err == nil
	}
	var zero T
	return zero, false
}

// IsCached checks if a value (or memoized failure) is currently cached
func (p *Product[T]) IsCached() bool {
	if p.c.packed {
		return true
	}
	_, ok := p.c.market.store.Load(p.c.key)
	return ok
}

// Pack returns a new Product of the same name wrapping value, with no
// dependencies resolved.
func (p *Product[T]) Pack(value T) *Product[T] {
	return p.supplier.Pack(value)
}

// DependsOnAny reports whether this product's dependency closure
// intersects names.
func (p *Product[T]) DependsOnAny(names ...string) bool {
	return p.c.DependsOnAny(names...)
}

// Recall invalidates the cached value for this product and every
// product transitively built from it. Independent siblings are
// untouched. Recall hooks fire once per distinct cache key; hook
// panics are logged and suppressed.
func (p *Product[T]) Recall() {
	p.c.Recall()
}

// SetOptimistic installs a placeholder returned by Unpack while the
// real computation resolves in the background. Only one optimistic
// value may be in flight at a time. An optional minHold keeps the
// placeholder visible for at least that long when the supplier is not
// memoized.
func (p *Product[T]) SetOptimistic(value T, minHold ...time.Duration) error {
	var hold time.Duration
	if len(minHold) > 0 {
		hold = minHold[0]
	}
	return p.c.setOptimistic(value, hold)
}

// Reassemble returns a new Product with the overrides substituted.
// Every current supply-map entry whose dependency closure intersects
// the override names is dropped and freshly resolved (with the
// overrides threaded down the pass); everything else is
// reference-preserved, so unaffected branches keep their cached
// values.
func (p *Product[T]) Reassemble(overrides ...AnyPack) (*Product[T], error) {
	names := make([]string, 0, len(overrides))
	for _, o := range overrides {
		names = append(names, o.Name())
	}

	toSupply := slices.Clone(overrides)
	if p.c.supplies != nil {
		for name, entry := range p.c.supplies.entries {
			if slices.Contains(names, name) {
				continue
			}
			if entry.DependsOnAny(names...) {
				continue
			}
			toSupply = append(toSupply, entry)
		}
	}

	return p.supplier.Assemble(toSupply...)
}

// With returns a new Product assembled from a variant of this
// product's supplier: name-matched dependencies are replaced by the
// given variants and entries unaffected by the replacement keep their
// cached values, like Reassemble.
func (p *Product[T]) With(variants ...AnySupplier) (*Product[T], error) {
	if len(variants) == 0 {
		return p, nil
	}

	names := make([]string, 0, len(variants))
	for _, v := range variants {
		names = append(names, v.Name())
	}

	var toSupply []AnyPack
	if p.c.supplies != nil {
		for name, entry := range p.c.supplies.entries {
			if slices.Contains(names, name) {
				continue
			}
			if entry.DependsOnAny(names...) {
				continue
			}
			toSupply = append(toSupply, entry)
		}
	}

	return p.supplier.With(variants...).Assemble(toSupply...)
}
