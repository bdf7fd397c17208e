package market

import (
	"fmt"
	"runtime/debug"
	"strings"
)

// NameConflictError reports a duplicate supplier name within one market.
type NameConflictError struct {
	Name string
}

func (e *NameConflictError) Error() string {
	return fmt.Sprintf("market: supplier %q already offered", e.Name)
}

// CycleError reports a supplier whose dependency graph reaches itself.
type CycleError struct {
	Name string
	Path []string
}

func (e *CycleError) Error() string {
	if len(e.Path) > 0 {
		return fmt.Sprintf("market: circular dependency on %q (%s)", e.Name, strings.Join(e.Path, " -> "))
	}
	return fmt.Sprintf("market: circular dependency on %q", e.Name)
}

// MissingSupplyError reports a required supply that was neither provided
// by the caller nor assemblable by the engine.
type MissingSupplyError struct {
	Product string
	Supply  string
}

func (e *MissingSupplyError) Error() string {
	return fmt.Sprintf("market: assembling %q: required supply %q was not provided", e.Product, e.Supply)
}

// OptimisticPendingError reports a second SetOptimistic call while the
// first placeholder is still in flight. Pending names the value that is
// already installed.
type OptimisticPendingError struct {
	Product string
	Pending any
}

func (e *OptimisticPendingError) Error() string {
	return fmt.Sprintf("market: product %q already has optimistic value %v pending", e.Product, e.Pending)
}

// UnknownSlotError reports a Try variant that matched no dependency slot.
type UnknownSlotError struct {
	Supplier string
	Variant  string
}

func (e *UnknownSlotError) Error() string {
	return fmt.Sprintf("market: supplier %q has no dependency slot named %q", e.Supplier, e.Variant)
}

// AssemblyError wraps a factory failure with the product it belongs to.
// When the product is memoized the same AssemblyError is replayed on
// every subsequent unpack until the entry is recalled.
type AssemblyError struct {
	Product    string
	Key        CacheKey
	Cause      error
	StackTrace []byte
}

func (e *AssemblyError) Error() string {
	return fmt.Sprintf("market: product %q factory failed: %v", e.Product, e.Cause)
}

func (e *AssemblyError) Unwrap() error {
	return e.Cause
}

func newAssemblyError(product string, key CacheKey, cause error) *AssemblyError {
	return &AssemblyError{
		Product:    product,
		Key:        key,
		Cause:      cause,
		StackTrace: debug.Stack(),
	}
}

// as performs a safe type assertion with a proper error.
func as[T any](value any) (T, error) {
	if value == nil {
		var zero T
		return zero, nil
	}

	typed, ok := value.(T)
	if !ok {
		var zero T
		return zero, fmt.Errorf("market: type assertion error: expected %T, got %T (value: %v)", zero, value, value)
	}

	return typed, nil
}
