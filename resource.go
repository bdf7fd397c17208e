package market

// Resource is a leaf, dependency-free value container. It is
// immutable; Pack always returns a new instance.
type Resource[T any] struct {
	name  string
	value T
}

func (r *Resource[T]) Name() string {
	return r.name
}

// Value returns the wrapped value.
func (r *Resource[T]) Value() T {
	return r.value
}

// Unpack returns the wrapped value. Resources never fail to unpack;
// the error return mirrors the Product surface so both sit in supply
// maps uniformly.
func (r *Resource[T]) Unpack() (T, error) {
	return r.value, nil
}

func (r *Resource[T]) UnpackAny() (any, error) {
	return r.value, nil
}

// Pack returns a new Resource of the same name holding value.
func (r *Resource[T]) Pack(value T) *Resource[T] {
	return &Resource[T]{name: r.name, value: value}
}

// DependsOnAny always reports false: resources depend on nothing.
func (r *Resource[T]) DependsOnAny(names ...string) bool {
	return false
}
