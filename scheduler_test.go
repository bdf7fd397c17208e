package market

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestEagerExecutionDuringAssembly(t *testing.T) {
	m := New()

	var runs atomic.Int32
	eager := OfferProduct(m, "eager",
		func(s *Supplies, jit *Assemblers) (int, error) {
			runs.Add(1)
			return 1, nil
		},
	)

	_, err := eager.Assemble()
	require.NoError(t, err)
	require.Equal(t, int32(1), runs.Load(), "non-lazy factory runs during the assembly pass")
}

func TestLazyDefersUntilFirstAccess(t *testing.T) {
	m := New()

	var runs atomic.Int32
	lazy := OfferProduct(m, "lazy",
		func(s *Supplies, jit *Assemblers) (int, error) {
			runs.Add(1)
			return 99, nil
		},
		Lazy(),
	)

	product, err := lazy.Assemble()
	require.NoError(t, err)
	require.Equal(t, int32(0), runs.Load(), "lazy factory must not run during assembly")

	v, err := product.Unpack()
	require.NoError(t, err)
	require.Equal(t, 99, v)
	require.Equal(t, int32(1), runs.Load())

	_, err = product.Unpack()
	require.NoError(t, err)
	require.Equal(t, int32(1), runs.Load(), "memoized lazy factory runs once")
}

func TestLazyShieldsSubtree(t *testing.T) {
	m := New()

	var leafRuns atomic.Int32
	leaf := OfferProduct(m, "shield-leaf",
		func(s *Supplies, jit *Assemblers) (int, error) {
			leafRuns.Add(1)
			return 5, nil
		},
	)
	mid := OfferProduct(m, "shield-mid",
		func(s *Supplies, jit *Assemblers) (int, error) {
			return Supply[int](s, "shield-leaf")
		},
		Requires(leaf),
		Lazy(),
	)
	top := OfferProduct(m, "shield-top",
		func(s *Supplies, jit *Assemblers) (string, error) {
			// Never touches the lazy branch.
			return "top", nil
		},
		Requires(mid),
	)

	product, err := top.Assemble()
	require.NoError(t, err)

	_, err = product.Unpack()
	require.NoError(t, err)
	require.Equal(t, int32(0), leafRuns.Load(), "lazy node shields everything below it")

	// Forcing the lazy branch executes the shielded subtree.
	midEntry, ok := product.Supplies().Get("shield-mid")
	require.True(t, ok)
	v, err := midEntry.UnpackAny()
	require.NoError(t, err)
	require.Equal(t, 5, v)
	require.Equal(t, int32(1), leafRuns.Load())
}

func TestPreloadWarmsUpWithoutAccess(t *testing.T) {
	m := New()

	var runs atomic.Int32
	warm := OfferProduct(m, "warm",
		func(s *Supplies, jit *Assemblers) (int, error) {
			runs.Add(1)
			return 1, nil
		},
		Lazy(),
		Preload(),
	)

	_, err := warm.Assemble()
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return runs.Load() == 1
	}, time.Second, 5*time.Millisecond, "preload must run the factory without access")
}

func TestPreloadFailureSwallowedUntilAccess(t *testing.T) {
	m := New()

	var runs atomic.Int32
	failing := OfferProduct(m, "warm-fail",
		func(s *Supplies, jit *Assemblers) (int, error) {
			runs.Add(1)
			return 0, errors.New("cold start")
		},
		Lazy(),
		Preload(),
	)

	product, err := failing.Assemble()
	require.NoError(t, err, "preload failure must not fail assembly")

	require.Eventually(t, func() bool {
		return runs.Load() == 1
	}, time.Second, 5*time.Millisecond)

	_, err = product.Unpack()
	require.Error(t, err, "the same failure surfaces on real access")
	require.Equal(t, int32(1), runs.Load(), "memoized failure replays without rerunning")
}

func TestTimeoutAutoRecalls(t *testing.T) {
	m := New()

	var recalled atomic.Int32
	short := OfferProduct(m, "short-lived",
		func(s *Supplies, jit *Assemblers) (int, error) {
			return 1, nil
		},
		Timeout(30*time.Millisecond),
		WithOnRecall(func(key CacheKey) {
			recalled.Add(1)
		}),
	)

	product, err := short.Assemble()
	require.NoError(t, err)
	require.True(t, product.IsCached())

	require.Eventually(t, func() bool {
		return !product.IsCached() && recalled.Load() >= 1
	}, time.Second, 5*time.Millisecond, "timeout must trigger recall after production")

	// Next access recomputes and re-arms.
	v, err := product.Unpack()
	require.NoError(t, err)
	require.Equal(t, 1, v)
	require.True(t, product.IsCached())
}
