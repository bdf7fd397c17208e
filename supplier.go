package market

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type supplierKind int

const (
	kindResource supplierKind = iota
	kindProduct
)

// substitutionScope controls which dependency lists Try/With may touch.
type substitutionScope int

const (
	substituteAll substitutionScope = iota
	substituteDeferred
)

// supplierSpec is the type-erased declaration shared by resource and
// product suppliers. Variants produced by Prototype/Try/With carry a
// clone of the original spec with the same name.
type supplierSpec struct {
	name   string
	market *Market
	kind   supplierKind

	requires []AnySupplier
	optional []AnySupplier
	deferred []AnySupplier

	factory  func(*Supplies, *Assemblers) (any, error)
	init     func(any, *Supplies)
	onRecall func(CacheKey)

	memo       bool
	recallable bool
	lazy       bool
	preload    bool
	expiry     time.Duration

	scope   substitutionScope
	variant bool

	tags map[any]any
}

func newSupplierSpec(m *Market, name string, kind supplierKind) *supplierSpec {
	return &supplierSpec{
		name:       name,
		market:     m,
		kind:       kind,
		memo:       true,
		recallable: true,
		tags:       make(map[any]any),
	}
}

// AnySupplier is the type-erased view of a supplier used in dependency
// lists, deferred side-channels, and substitution.
type AnySupplier interface {
	Name() string
	AssembleAny(toSupply ...AnyPack) (AnyPack, error)
	PackAny(value any) (AnyPack, error)
	GetTag(tag any) (any, bool)
	SetTag(tag any, val any)
	supplierSpec() *supplierSpec
}

// AnyPack is the type-erased view of a packed value (Resource or
// Product) used in supply maps.
type AnyPack interface {
	Name() string
	UnpackAny() (any, error)
	DependsOnAny(names ...string) bool
}

// SupplierOption is a modifier for supplier declarations
type SupplierOption func(*supplierSpec)

// Requires declares suppliers the factory cannot run without. Required
// product suppliers are assembled on demand; required resource
// suppliers must be supplied by the caller.
func Requires(suppliers ...AnySupplier) SupplierOption {
	return func(s *supplierSpec) {
		s.requires = append(s.requires, suppliers...)
	}
}

// Optional declares suppliers that appear in the factory's view only
// when the caller actually supplied them. They are never resolved on
// the caller's behalf.
func Optional(suppliers ...AnySupplier) SupplierOption {
	return func(s *supplierSpec) {
		s.optional = append(s.optional, suppliers...)
	}
}

// Deferred declares just-in-time suppliers. They are passed to the
// factory as supplier descriptors, never auto-assembled; the factory
// is the only place that may assemble them.
func Deferred(suppliers ...AnySupplier) SupplierOption {
	return func(s *supplierSpec) {
		s.deferred = append(s.deferred, suppliers...)
	}
}

// Lazy defers factory execution until first access and shields the
// subtree below this supplier from eager execution.
func Lazy() SupplierOption {
	return func(s *supplierSpec) {
		s.lazy = true
	}
}

// Preload schedules a best-effort background warm-up of the factory
// right after assembly. Warm-up failures are swallowed and resurface
// on the first real access.
func Preload() SupplierOption {
	return func(s *supplierSpec) {
		s.preload = true
	}
}

// NoMemo opts the supplier out of memoization; its factory reruns on
// every unpack.
func NoMemo() SupplierOption {
	return func(s *supplierSpec) {
		s.memo = false
	}
}

// NotRecallable excludes the supplier from recall tracking: cascades
// neither invalidate it nor propagate through it.
func NotRecallable() SupplierOption {
	return func(s *supplierSpec) {
		s.recallable = false
	}
}

// Timeout arms an auto-recall timer each time a value is produced.
func Timeout(d time.Duration) SupplierOption {
	return func(s *supplierSpec) {
		s.expiry = d
	}
}

// WithInit registers a side-effect hook invoked once after the value is
// produced, receiving the value and the resolved supply map. Panics in
// the hook are recovered and logged; they never break assembly.
func WithInit(fn func(value any, supplies *Supplies)) SupplierOption {
	return func(s *supplierSpec) {
		s.init = fn
	}
}

// WithOnRecall registers a callback invoked with the cache key whenever
// this supplier's cache entry is invalidated.
func WithOnRecall(fn func(key CacheKey)) SupplierOption {
	return func(s *supplierSpec) {
		s.onRecall = fn
	}
}

// WithTag returns an option that sets a tag on a supplier
func WithTag[T any](tag Tag[T], val T) SupplierOption {
	return func(s *supplierSpec) {
		s.tags[tag] = val
	}
}

// ResourceSupplier declares an externally-provided leaf value of one
// name. It has no dependencies and no factory; callers pack concrete
// values into Resources.
type ResourceSupplier[T any] struct {
	s *supplierSpec
}

// OfferResource declares a leaf resource supplier under name. It
// panics with a *NameConflictError if the name was already offered in
// this market.
func OfferResource[T any](m *Market, name string, opts ...SupplierOption) *ResourceSupplier[T] {
	m.claim(name)

	s := newSupplierSpec(m, name, kindResource)
	for _, opt := range opts {
		opt(s)
	}

	return &ResourceSupplier[T]{s: s}
}

func (rs *ResourceSupplier[T]) Name() string {
	return rs.s.name
}

// Pack wraps a concrete value as a Resource of this supplier's name.
func (rs *ResourceSupplier[T]) Pack(value T) *Resource[T] {
	return &Resource[T]{name: rs.s.name, value: value}
}

func (rs *ResourceSupplier[T]) PackAny(value any) (AnyPack, error) {
	typed, err := as[T](value)
	if err != nil {
		return nil, err
	}
	return rs.Pack(typed), nil
}

func (rs *ResourceSupplier[T]) AssembleAny(toSupply ...AnyPack) (AnyPack, error) {
	return nil, fmt.Errorf("market: resource supplier %q cannot be assembled; pack a value instead", rs.s.name)
}

func (rs *ResourceSupplier[T]) GetTag(tag any) (any, bool) {
	val, ok := rs.s.tags[tag]
	return val, ok
}

func (rs *ResourceSupplier[T]) SetTag(tag any, val any) {
	rs.s.tags[tag] = val
}

func (rs *ResourceSupplier[T]) supplierSpec() *supplierSpec {
	return rs.s
}

// ProductSupplier declares a computed value: its required, optional and
// deferred suppliers plus the factory that combines them.
type ProductSupplier[T any] struct {
	s *supplierSpec
}

// Factory is the signature of a product factory: the resolved supply
// map plus the deferred supplier side-channel.
type Factory[T any] func(supplies *Supplies, jit *Assemblers) (T, error)

// OfferProduct declares a product supplier under name. It panics with
// a *NameConflictError on duplicate names and with a *CycleError if
// the declared dependency graph reaches back to name.
func OfferProduct[T any](m *Market, name string, factory Factory[T], opts ...SupplierOption) *ProductSupplier[T] {
	m.claim(name)

	s := newSupplierSpec(m, name, kindProduct)
	s.factory = eraseFactory(factory)
	for _, opt := range opts {
		opt(s)
	}

	if path, found := findCycle(s); found {
		panic(&CycleError{Name: name, Path: path})
	}

	return &ProductSupplier[T]{s: s}
}

func (ps *ProductSupplier[T]) Name() string {
	return ps.s.name
}

// Pack wraps a concrete value as a Product of this supplier's name
// without resolving any dependencies.
func (ps *ProductSupplier[T]) Pack(value T) *Product[T] {
	core := &productCore{
		spec:      ps.s,
		market:    ps.s.market,
		key:       CacheKey{Supplier: ps.s.name, Assembly: uuid.NewString()},
		packed:    true,
		packedVal: value,
	}
	return &Product[T]{c: core, supplier: ps}
}

func (ps *ProductSupplier[T]) PackAny(value any) (AnyPack, error) {
	typed, err := as[T](value)
	if err != nil {
		return nil, err
	}
	return ps.Pack(typed), nil
}

func (ps *ProductSupplier[T]) GetTag(tag any) (any, bool) {
	val, ok := ps.s.tags[tag]
	return val, ok
}

func (ps *ProductSupplier[T]) SetTag(tag any, val any) {
	ps.s.tags[tag] = val
}

func (ps *ProductSupplier[T]) supplierSpec() *supplierSpec {
	return ps.s
}

func eraseFactory[T any](factory Factory[T]) func(*Supplies, *Assemblers) (any, error) {
	return func(supplies *Supplies, jit *Assemblers) (any, error) {
		return factory(supplies, jit)
	}
}

// findCycle walks the declared required/optional graph looking for a
// path back to a name already on the walk. Deferred suppliers are not
// walked; they are never auto-assembled, so just-in-time recursion
// through them is legal.
func findCycle(root *supplierSpec) ([]string, bool) {
	var path []string
	onPath := make(map[string]bool)

	var walk func(sp *supplierSpec) bool
	walk = func(sp *supplierSpec) bool {
		if onPath[sp.name] {
			path = append(path, sp.name)
			return true
		}

		onPath[sp.name] = true
		path = append(path, sp.name)

		for _, dep := range sp.requires {
			if dep.supplierSpec().kind == kindProduct && walk(dep.supplierSpec()) {
				return true
			}
		}
		for _, dep := range sp.optional {
			if dep.supplierSpec().kind == kindProduct && walk(dep.supplierSpec()) {
				return true
			}
		}

		path = path[:len(path)-1]
		onPath[sp.name] = false
		return false
	}

	if walk(root) {
		return path, true
	}
	return nil, false
}
