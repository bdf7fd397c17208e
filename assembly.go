package market

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
)

// Supplies is a factory's window onto its resolved supply map: one
// entry per required supplier, plus every optional supplier the caller
// actually provided.
type Supplies struct {
	owner   string
	entries map[string]AnyPack
}

// Has reports whether a named entry is present. Optional suppliers the
// caller did not provide are absent, not zero-valued.
func (s *Supplies) Has(name string) bool {
	_, ok := s.entries[name]
	return ok
}

// Get returns the named entry as a packed value.
func (s *Supplies) Get(name string) (AnyPack, bool) {
	entry, ok := s.entries[name]
	return entry, ok
}

// Names returns the present entry names in sorted order.
func (s *Supplies) Names() []string {
	names := make([]string, 0, len(s.entries))
	for name := range s.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (s *Supplies) Len() int {
	return len(s.entries)
}

// Supply unpacks the named entry to a typed value. Unpacking a lazy
// product here is what triggers its deferred factory execution.
func Supply[T any](s *Supplies, name string) (T, error) {
	entry, ok := s.entries[name]
	if !ok {
		var zero T
		return zero, &MissingSupplyError{Product: s.owner, Supply: name}
	}

	value, err := entry.UnpackAny()
	if err != nil {
		var zero T
		return zero, err
	}

	return as[T](value)
}

// SupplyOr is a best-effort accessor for optional supplies: it returns
// fallback when the entry is absent or cannot produce a value.
func SupplyOr[T any](s *Supplies, name string, fallback T) T {
	value, err := Supply[T](s, name)
	if err != nil {
		return fallback
	}
	return value
}

// Assemblers carries a product's deferred ("just-in-time") suppliers.
// Entries are supplier descriptors, never resolved values; the factory
// decides if and when to assemble them.
type Assemblers struct {
	owner     string
	suppliers map[string]AnySupplier
}

func (a *Assemblers) Get(name string) (AnySupplier, bool) {
	sup, ok := a.suppliers[name]
	return sup, ok
}

func (a *Assemblers) Names() []string {
	names := make([]string, 0, len(a.suppliers))
	for name := range a.suppliers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// JIT returns the named deferred supplier as a typed product supplier.
func JIT[T any](a *Assemblers, name string) (*ProductSupplier[T], error) {
	sup, ok := a.suppliers[name]
	if !ok {
		return nil, &MissingSupplyError{Product: a.owner, Supply: name}
	}
	return as[*ProductSupplier[T]](sup)
}

// coreCarrier lets typed products and raw cores normalize to the same
// supply-map representation.
type coreCarrier interface {
	unwrapCore() *productCore
}

// assemblyPass is one Assemble invocation: a fresh opaque id (the
// cache-key namespace for everything built in the pass) plus the
// resolution state shared by the recursive walk, so that diamond
// dependencies resolve to a single product per pass.
type assemblyPass struct {
	market    *Market
	id        string
	resolved  map[string]AnyPack
	building  map[string]bool
	activated map[*productCore]bool
}

func newAssemblyPass(m *Market, toSupply []AnyPack) (*assemblyPass, error) {
	resolved := make(map[string]AnyPack, len(toSupply))
	for _, pack := range toSupply {
		if pack == nil {
			continue
		}
		if carrier, ok := pack.(coreCarrier); ok {
			pack = carrier.unwrapCore()
		}
		if _, dup := resolved[pack.Name()]; dup {
			return nil, fmt.Errorf("market: duplicate supply %q", pack.Name())
		}
		resolved[pack.Name()] = pack
	}

	return &assemblyPass{
		market:    m,
		id:        uuid.NewString(),
		resolved:  resolved,
		building:  make(map[string]bool),
		activated: make(map[*productCore]bool),
	}, nil
}

// build resolves one product supplier into a product, recursively
// assembling required product suppliers that were not pre-supplied.
func (p *assemblyPass) build(sup AnySupplier) (AnyPack, error) {
	sp := sup.supplierSpec()

	if existing, ok := p.resolved[sp.name]; ok {
		return existing, nil
	}
	if p.building[sp.name] {
		return nil, &CycleError{Name: sp.name}
	}
	p.building[sp.name] = true
	defer delete(p.building, sp.name)

	entries := make(map[string]AnyPack, len(sp.requires)+len(sp.optional))

	for _, dep := range sp.requires {
		dsp := dep.supplierSpec()
		if got, ok := p.resolved[dsp.name]; ok {
			entries[dsp.name] = got
			continue
		}
		if dsp.kind == kindResource {
			return nil, &MissingSupplyError{Product: sp.name, Supply: dsp.name}
		}
		child, err := p.build(dep)
		if err != nil {
			return nil, err
		}
		entries[dsp.name] = child
	}

	// Optional suppliers: present only when the caller supplied them.
	for _, dep := range sp.optional {
		if got, ok := p.resolved[dep.Name()]; ok {
			entries[dep.Name()] = got
		}
	}

	jit := make(map[string]AnySupplier, len(sp.deferred))
	for _, dep := range sp.deferred {
		jit[dep.Name()] = dep
	}

	core := &productCore{
		spec:     sp,
		market:   p.market,
		key:      CacheKey{Supplier: sp.name, Assembly: p.id},
		supplies: &Supplies{owner: sp.name, entries: entries},
		deferred: &Assemblers{owner: sp.name, suppliers: jit},
	}
	p.resolved[sp.name] = core

	if sp.recallable {
		p.market.mu.Lock()
		for _, entry := range entries {
			if child, ok := entry.(*productCore); ok {
				p.market.tracker.addDependent(child.key, core)
			}
		}
		p.market.mu.Unlock()
	}

	return core, nil
}

// Assemble resolves the full supplier graph into a Product. Values in
// toSupply pre-empt resolution by name; required resource suppliers
// must be among them. Factory failures do not fail Assemble; they are
// recorded during the eager pass and surface on Unpack.
func (ps *ProductSupplier[T]) Assemble(toSupply ...AnyPack) (*Product[T], error) {
	m := ps.s.market
	exts := m.snapshotExtensions()
	op := &Operation{Kind: OpAssemble, Supplier: ps.s.name, Market: m}

	next := func() (any, error) {
		pass, err := newAssemblyPass(m, toSupply)
		if err != nil {
			return nil, err
		}
		pack, err := pass.build(ps)
		if err != nil {
			return nil, err
		}
		core, ok := pack.(*productCore)
		if !ok {
			return nil, fmt.Errorf("market: supply %q shadows the product being assembled", ps.s.name)
		}
		pass.activate(core)
		return core, nil
	}

	for i := len(exts) - 1; i >= 0; i-- {
		ext := exts[i]
		currentNext := next
		next = func() (any, error) {
			return ext.Wrap(context.Background(), currentNext, op)
		}
	}

	result, err := next()
	if err != nil {
		for _, ext := range exts {
			ext.OnError(err, op, m)
		}
		return nil, err
	}

	return &Product[T]{c: result.(*productCore), supplier: ps}, nil
}

// AssembleAny resolves the graph type-erased; used by factories on
// deferred suppliers.
func (ps *ProductSupplier[T]) AssembleAny(toSupply ...AnyPack) (AnyPack, error) {
	product, err := ps.Assemble(toSupply...)
	if err != nil {
		return nil, err
	}
	return product, nil
}
