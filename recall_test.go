package market

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRecallInvalidatesSelf(t *testing.T) {
	m := New()

	var runs atomic.Int32
	counter := OfferProduct(m, "recall-counter",
		func(s *Supplies, jit *Assemblers) (int32, error) {
			return runs.Add(1), nil
		},
	)

	product, err := counter.Assemble()
	require.NoError(t, err)

	v, err := product.Unpack()
	require.NoError(t, err)
	require.Equal(t, int32(1), v)
	require.True(t, product.IsCached())

	product.Recall()
	require.False(t, product.IsCached())

	v, err = product.Unpack()
	require.NoError(t, err)
	require.Equal(t, int32(2), v, "recall must force recomputation")
}

func TestRecallCascadesToDependents(t *testing.T) {
	m := New()
	a, _, root, counters := buildChain(t, m)

	product, err := root.Assemble(a.Pack(1))
	require.NoError(t, err)
	_, err = product.Unpack()
	require.NoError(t, err)

	// Recalling b invalidates b, c, d and root; z is independent.
	findEntry(t, product.Supplies(), "d", "c", "b").Recall()
	require.False(t, product.IsCached())

	_, err = product.Unpack()
	require.NoError(t, err)
	require.Equal(t, int32(2), counters["b"].Load())
	require.Equal(t, int32(2), counters["c"].Load())
	require.Equal(t, int32(2), counters["d"].Load())
	require.Equal(t, int32(2), counters["root"].Load())
	require.Equal(t, int32(1), counters["z"].Load(), "independent sibling must keep its cache")
}

func TestRecallDiamondFiresOncePerKey(t *testing.T) {
	m := New()

	var baseRecalls, topRecalls atomic.Int32
	base := OfferProduct(m, "dr-base",
		func(s *Supplies, jit *Assemblers) (int, error) {
			return 1, nil
		},
		WithOnRecall(func(key CacheKey) { baseRecalls.Add(1) }),
	)
	left := OfferProduct(m, "dr-left",
		func(s *Supplies, jit *Assemblers) (int, error) {
			v, err := Supply[int](s, "dr-base")
			return v + 1, err
		},
		Requires(base),
	)
	right := OfferProduct(m, "dr-right",
		func(s *Supplies, jit *Assemblers) (int, error) {
			v, err := Supply[int](s, "dr-base")
			return v + 2, err
		},
		Requires(base),
	)
	top := OfferProduct(m, "dr-top",
		func(s *Supplies, jit *Assemblers) (int, error) {
			l, err := Supply[int](s, "dr-left")
			if err != nil {
				return 0, err
			}
			r, err := Supply[int](s, "dr-right")
			if err != nil {
				return 0, err
			}
			return l + r, nil
		},
		Requires(left, right),
		WithOnRecall(func(key CacheKey) { topRecalls.Add(1) }),
	)

	product, err := top.Assemble()
	require.NoError(t, err)
	_, err = product.Unpack()
	require.NoError(t, err)

	baseEntry := findEntry(t, product.Supplies(), "dr-left", "dr-base")
	baseEntry.Recall()

	// Two paths lead from base to top, but top is invalidated once.
	require.Equal(t, int32(1), baseRecalls.Load())
	require.Equal(t, int32(1), topRecalls.Load())
}

// findEntry descends the supply maps along the given names.
func findEntry(t *testing.T, supplies *Supplies, path ...string) *productCore {
	t.Helper()
	current := supplies
	var core *productCore
	for _, name := range path {
		entry, ok := current.Get(name)
		require.True(t, ok, "missing supply entry %q", name)
		core, ok = entry.(*productCore)
		require.True(t, ok, "supply entry %q is not an assembled product", name)
		current = core.supplies
	}
	return core
}

func TestMarketRecallHookObservesCascade(t *testing.T) {
	var mu sync.Mutex
	var seen []string

	m := New(WithRecallHook(func(key CacheKey) {
		mu.Lock()
		seen = append(seen, key.Supplier)
		mu.Unlock()
	}))

	a, _, root, _ := buildChain(t, m)
	product, err := root.Assemble(a.Pack(1))
	require.NoError(t, err)
	_, err = product.Unpack()
	require.NoError(t, err)

	findEntry(t, product.Supplies(), "d", "c").Recall()

	mu.Lock()
	defer mu.Unlock()
	require.ElementsMatch(t, []string{"c", "d", "root"}, seen)
}

func TestRecallHookPanicSuppressed(t *testing.T) {
	var after atomic.Int32
	m := New(
		WithRecallHook(func(key CacheKey) { panic("hook gone wrong") }),
		WithRecallHook(func(key CacheKey) { after.Add(1) }),
	)

	p := OfferProduct(m, "panicky-recall",
		func(s *Supplies, jit *Assemblers) (int, error) {
			return 1, nil
		},
	)

	product, err := p.Assemble()
	require.NoError(t, err)

	require.NotPanics(t, func() { product.Recall() })
	require.False(t, product.IsCached())
	require.Equal(t, int32(1), after.Load(), "later hooks still run after a panic")
}

func TestNotRecallableBlocksPropagation(t *testing.T) {
	m := New()

	bottom := OfferProduct(m, "nr-bottom",
		func(s *Supplies, jit *Assemblers) (int, error) {
			return 1, nil
		},
	)
	fixed := OfferProduct(m, "nr-fixed",
		func(s *Supplies, jit *Assemblers) (int, error) {
			v, err := Supply[int](s, "nr-bottom")
			return v + 1, err
		},
		Requires(bottom),
		NotRecallable(),
	)
	top := OfferProduct(m, "nr-top",
		func(s *Supplies, jit *Assemblers) (int, error) {
			v, err := Supply[int](s, "nr-fixed")
			return v * 10, err
		},
		Requires(fixed),
	)

	product, err := top.Assemble()
	require.NoError(t, err)
	_, err = product.Unpack()
	require.NoError(t, err)

	// The non-recallable node is a firewall: a cascade arriving from
	// below stops at it and never reaches the products above it.
	fixedCore := findEntry(t, product.Supplies(), "nr-fixed")
	findEntry(t, product.Supplies(), "nr-fixed", "nr-bottom").Recall()

	_, fixedCached := m.store.Load(fixedCore.key)
	require.True(t, fixedCached, "non-recallable node ignores cascades")
	require.True(t, product.IsCached(), "nothing above the firewall is invalidated")

	// A direct recall still clears the node's own entry (and its own
	// dependents, which opted in).
	fixedCore.Recall()
	_, fixedCached = m.store.Load(fixedCore.key)
	require.False(t, fixedCached)
	require.False(t, product.IsCached())
}

func TestRecallSupersedesInFlightComputation(t *testing.T) {
	m := New()

	var runs atomic.Int32
	release := make(chan struct{})
	slow := OfferProduct(m, "inflight",
		func(s *Supplies, jit *Assemblers) (int32, error) {
			n := runs.Add(1)
			if n == 1 {
				<-release
			}
			return n, nil
		},
		Lazy(),
		Preload(),
	)

	product, err := slow.Assemble()
	require.NoError(t, err)

	// Wait until the warm-up factory is in flight, then recall while it
	// is still blocked.
	require.Eventually(t, func() bool {
		return runs.Load() == 1
	}, time.Second, time.Millisecond)

	product.Recall()
	close(release)

	// The superseded run must not repopulate the cache; the next access
	// recomputes instead of replaying the stale value.
	require.Eventually(t, func() bool {
		v, err := product.Unpack()
		return err == nil && v == 2
	}, time.Second, time.Millisecond, "recall must discard the in-flight result")

	peeked, ok := product.Peek()
	require.True(t, ok)
	require.Equal(t, int32(2), peeked, "only the post-recall computation may be memoized")
}

// countingStore wraps MemoryStore and counts engine-driven mutations.
type countingStore struct {
	inner   *MemoryStore
	loads   atomic.Int32
	stores  atomic.Int32
	deletes atomic.Int32
}

func (c *countingStore) Load(key CacheKey) (any, bool) {
	c.loads.Add(1)
	return c.inner.Load(key)
}

func (c *countingStore) Store(key CacheKey, value any) {
	c.stores.Add(1)
	c.inner.Store(key, value)
}

func (c *countingStore) Delete(key CacheKey) {
	c.deletes.Add(1)
	c.inner.Delete(key)
}

func TestCustomMemoStoreFunneled(t *testing.T) {
	store := &countingStore{inner: NewMemoryStore()}
	m := New(WithMemoStore(store))

	p := OfferProduct(m, "stored",
		func(s *Supplies, jit *Assemblers) (int, error) {
			return 7, nil
		},
	)

	product, err := p.Assemble()
	require.NoError(t, err)
	require.Equal(t, int32(1), store.stores.Load(), "eager resolution writes through the store")

	v, err := product.Unpack()
	require.NoError(t, err)
	require.Equal(t, 7, v)
	require.Greater(t, store.loads.Load(), int32(0))

	product.Recall()
	require.Equal(t, int32(1), store.deletes.Load(), "recall funnels invalidation through the store")
	require.False(t, product.IsCached())
}
