package market

// Substitution produces graph variants that replace specific named
// suppliers while preserving the rest of the graph by name. When
// several variants share a name, the last one given wins, for both Try
// and With.

func cloneSpec(s *supplierSpec) *supplierSpec {
	clone := *s

	clone.requires = make([]AnySupplier, len(s.requires))
	copy(clone.requires, s.requires)
	clone.optional = make([]AnySupplier, len(s.optional))
	copy(clone.optional, s.optional)
	clone.deferred = make([]AnySupplier, len(s.deferred))
	copy(clone.deferred, s.deferred)

	clone.tags = make(map[any]any, len(s.tags))
	for k, v := range s.tags {
		clone.tags[k] = v
	}

	return &clone
}

// Prototype returns a variant supplier: same name, different factory
// and dependency set. Variants are not re-offered to the market; they
// exist to be swapped in via Try and With.
func (ps *ProductSupplier[T]) Prototype(factory Factory[T], opts ...SupplierOption) *ProductSupplier[T] {
	s := newSupplierSpec(ps.s.market, ps.s.name, kindProduct)
	s.factory = eraseFactory(factory)
	s.variant = true
	for _, opt := range opts {
		opt(s)
	}

	if path, found := findCycle(s); found {
		panic(&CycleError{Name: s.name, Path: path})
	}

	return &ProductSupplier[T]{s: s}
}

func substitute(list []AnySupplier, byName map[string]AnySupplier, matched map[string]bool) []AnySupplier {
	out := make([]AnySupplier, len(list))
	for i, dep := range list {
		if variant, ok := byName[dep.Name()]; ok {
			out[i] = variant
			matched[dep.Name()] = true
		} else {
			out[i] = dep
		}
	}
	return out
}

func (ps *ProductSupplier[T]) substituted(variants []AnySupplier) (*supplierSpec, map[string]AnySupplier, map[string]bool) {
	byName := make(map[string]AnySupplier, len(variants))
	for _, v := range variants {
		byName[v.Name()] = v
	}

	matched := make(map[string]bool, len(byName))
	s := cloneSpec(ps.s)
	s.variant = true

	if s.scope == substituteAll {
		s.requires = substitute(s.requires, byName, matched)
		s.optional = substitute(s.optional, byName, matched)
	}
	s.deferred = substitute(s.deferred, byName, matched)

	return s, byName, matched
}

// Try returns a supplier whose dependency lists have name-matched
// entries replaced by the given variants, leaving the graph shape
// otherwise unchanged. A variant matching no slot is a configuration
// error. Calling Try with no arguments returns an equivalent graph.
func (ps *ProductSupplier[T]) Try(variants ...AnySupplier) *ProductSupplier[T] {
	if len(variants) == 0 {
		return &ProductSupplier[T]{s: cloneSpec(ps.s)}
	}

	s, _, matched := ps.substituted(variants)
	for _, v := range variants {
		if !matched[v.Name()] {
			panic(&UnknownSlotError{Supplier: s.name, Variant: v.Name()})
		}
	}

	if path, found := findCycle(s); found {
		panic(&CycleError{Name: s.name, Path: path})
	}

	return &ProductSupplier[T]{s: s}
}

// With applies the same name-matched replacement as Try, but variants
// with no prior slot are appended to the required suppliers instead of
// being rejected, so they get assembled and become part of the
// dependency closure.
func (ps *ProductSupplier[T]) With(variants ...AnySupplier) *ProductSupplier[T] {
	if len(variants) == 0 {
		return &ProductSupplier[T]{s: cloneSpec(ps.s)}
	}

	s, byName, matched := ps.substituted(variants)

	appended := make(map[string]bool)
	for _, v := range variants {
		name := v.Name()
		if matched[name] || appended[name] {
			continue
		}
		appended[name] = true
		s.requires = append(s.requires, byName[name])
	}

	if path, found := findCycle(s); found {
		panic(&CycleError{Name: s.name, Path: path})
	}

	return &ProductSupplier[T]{s: s}
}

// AssemblersOnly restricts the supplier's replaceable surface to its
// deferred suppliers: Try and With on the result leave required and
// optional dependencies untouched.
func (ps *ProductSupplier[T]) AssemblersOnly() *ProductSupplier[T] {
	s := cloneSpec(ps.s)
	s.scope = substituteDeferred
	return &ProductSupplier[T]{s: s}
}

// JITOnly is an alias for AssemblersOnly.
func (ps *ProductSupplier[T]) JITOnly() *ProductSupplier[T] {
	return ps.AssemblersOnly()
}
