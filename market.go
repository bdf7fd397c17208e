package market

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Market is a registry namespace: it assigns unique supplier names and
// owns the cache store, the in-flight computation group, and the
// reverse-dependency tracking that recall propagation walks. Construct
// one per independent namespace; state is never global.
type Market struct {
	// mu guards names, the tracker, and recall propagation, which
	// both walks and mutates the shared dependent state.
	mu      sync.Mutex
	names   map[string]bool
	store   MemoStore
	flight  singleflight.Group
	tracker *dependentTracker
	tags    sync.Map

	extMu      sync.RWMutex
	extensions []Extension

	recallHooks []func(CacheKey)
	logger      *slog.Logger
}

// MarketOption is a modifier for markets
type MarketOption func(*Market)

// WithMemoStore backs the market's memoization with an external store.
// The engine funnels every mutation of the store through the
// assemble/unpack and recall paths.
func WithMemoStore(store MemoStore) MarketOption {
	return func(m *Market) {
		m.store = store
	}
}

// WithRecallHook registers a market-level callback invoked once per
// distinct cache key on every recall cascade.
func WithRecallHook(fn func(key CacheKey)) MarketOption {
	return func(m *Market) {
		m.recallHooks = append(m.recallHooks, fn)
	}
}

// WithExtension returns an option that registers an extension to a market
func WithExtension(ext Extension) MarketOption {
	return func(m *Market) {
		if err := m.UseExtension(ext); err != nil {
			panic(err)
		}
	}
}

// WithLogger sets the logger used for suppressed hook failures and
// preload diagnostics.
func WithLogger(logger *slog.Logger) MarketOption {
	return func(m *Market) {
		m.logger = logger
	}
}

// WithMarketTag returns an option that sets a tag on a market
func WithMarketTag[T any](tag Tag[T], val T) MarketOption {
	return func(m *Market) {
		tag.SetOnMarket(m, val)
	}
}

// New creates a new market with optional configuration
func New(opts ...MarketOption) *Market {
	m := &Market{
		names:   make(map[string]bool),
		store:   NewMemoryStore(),
		tracker: newDependentTracker(),
		logger:  slog.Default(),
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// claim reserves a supplier name. Duplicate names are a
// configuration-time fatal.
func (m *Market) claim(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.names[name] {
		panic(&NameConflictError{Name: name})
	}
	m.names[name] = true
}

// UseExtension registers an extension to the market
func (m *Market) UseExtension(ext Extension) error {
	m.extMu.Lock()
	m.extensions = append(m.extensions, ext)
	sort.SliceStable(m.extensions, func(i, j int) bool {
		return m.extensions[i].Order() < m.extensions[j].Order()
	})
	m.extMu.Unlock()

	return ext.Init(m)
}

func (m *Market) snapshotExtensions() []Extension {
	m.extMu.RLock()
	defer m.extMu.RUnlock()
	exts := make([]Extension, len(m.extensions))
	copy(exts, m.extensions)
	return exts
}

// recall invalidates start's cache entry and every transitive
// dependent's, exactly once per distinct cache key no matter how many
// paths lead to it. Supplier-level hooks, market-level hooks and
// extensions observe each invalidation; hook panics are logged as
// warnings and suppressed.
func (m *Market) recall(start *productCore) {
	m.mu.Lock()
	affected := append([]*productCore{start}, m.tracker.dependentClosure(start.key)...)
	m.mu.Unlock()

	exts := m.snapshotExtensions()
	seen := make(map[CacheKey]bool, len(affected))

	for _, core := range affected {
		if seen[core.key] {
			continue
		}
		seen[core.key] = true

		m.store.Delete(core.key)
		core.clearOverlay()
		core.stopExpiry()

		if core.spec.onRecall != nil {
			m.fireRecallHook(core.spec.onRecall, core.key)
		}
		for _, hook := range m.recallHooks {
			m.fireRecallHook(hook, core.key)
		}
		for _, ext := range exts {
			ext.OnRecall(core.key)
		}
	}
}

func (m *Market) fireRecallHook(fn func(CacheKey), key CacheKey) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Warn("recall hook failed",
				"key", key.String(),
				"panic", r)
		}
	}()
	fn(key)
}

// GetTag retrieves a tag value from the market
func (m *Market) GetTag(tag any) (any, bool) {
	return m.tags.Load(tag)
}

// SetTag stores a tag value on the market
func (m *Market) SetTag(tag any, val any) {
	m.tags.Store(tag, val)
}

// Dispose shuts down the market's extensions.
func (m *Market) Dispose() error {
	for _, ext := range m.snapshotExtensions() {
		if err := ext.Dispose(m); err != nil {
			return fmt.Errorf("disposing extension %s: %w", ext.Name(), err)
		}
	}
	return nil
}
