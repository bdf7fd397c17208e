package market

// Tag is a type-safe key for metadata on suppliers and markets.
type Tag[T any] struct {
	key string
}

// NewTag creates a new tag with the given key
func NewTag[T any](key string) Tag[T] {
	return Tag[T]{key: key}
}

// Key returns the tag's key (for debugging)
func (t Tag[T]) Key() string {
	return t.key
}

// Get retrieves the tag value from a supplier
func (t Tag[T]) Get(sup AnySupplier) (T, bool) {
	val, ok := sup.GetTag(t)
	if !ok {
		var zero T
		return zero, false
	}
	return val.(T), true
}

// MustGet retrieves the tag value or panics if not found
func (t Tag[T]) MustGet(sup AnySupplier) T {
	val, ok := t.Get(sup)
	if !ok {
		panic("tag " + t.key + " not found")
	}
	return val
}

// GetOrDefault retrieves the tag value or returns a default
func (t Tag[T]) GetOrDefault(sup AnySupplier, defaultVal T) T {
	if val, ok := t.Get(sup); ok {
		return val
	}
	return defaultVal
}

// Set stores the tag value on a supplier
func (t Tag[T]) Set(sup AnySupplier, val T) {
	sup.SetTag(t, val)
}

// GetFromMarket retrieves the tag value from a market
func (t Tag[T]) GetFromMarket(m *Market) (T, bool) {
	val, ok := m.GetTag(t)
	if !ok {
		var zero T
		return zero, false
	}
	return val.(T), true
}

// SetOnMarket stores the tag value on a market
func (t Tag[T]) SetOnMarket(m *Market, val T) {
	m.SetTag(t, val)
}
