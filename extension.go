package market

import "context"

// Extension provides hooks into the assembly lifecycle
type Extension interface {
	// Name returns the extension's name
	Name() string

	// Order determines extension execution order (lower = earlier)
	Order() int

	// Init is called when the extension is registered to a market
	Init(m *Market) error

	// Wrap intercepts operations (assemble, unpack, recall)
	Wrap(ctx context.Context, next func() (any, error), op *Operation) (any, error)

	// OnError handles errors during assembly or unpacking
	OnError(err error, op *Operation, m *Market)

	// OnRecall observes every cache-key invalidation
	OnRecall(key CacheKey)

	// Dispose is called when the market is disposed
	Dispose(m *Market) error
}

// BaseExtension provides default implementations for Extension methods
type BaseExtension struct {
	name string
}

// NewBaseExtension creates a new base extension with the given name
func NewBaseExtension(name string) BaseExtension {
	return BaseExtension{name: name}
}

func (e *BaseExtension) Name() string {
	return e.name
}

func (e *BaseExtension) Order() int {
	return 100
}

func (e *BaseExtension) Init(m *Market) error {
	return nil
}

func (e *BaseExtension) Wrap(ctx context.Context, next func() (any, error), op *Operation) (any, error) {
	return next()
}

func (e *BaseExtension) OnError(err error, op *Operation, m *Market) {
}

func (e *BaseExtension) OnRecall(key CacheKey) {
}

func (e *BaseExtension) Dispose(m *Market) error {
	return nil
}

// Operation describes what operation is happening
type Operation struct {
	Kind     OperationKind
	Supplier string
	Key      CacheKey
	Market   *Market

	// Supplies is the resolved supply map of the product being
	// operated on; nil for assemble operations.
	Supplies *Supplies
}

// OperationKind represents the type of operation
type OperationKind string

const (
	// OpAssemble indicates a supplier graph being resolved into a product
	OpAssemble OperationKind = "assemble"
	// OpUnpack indicates a product factory execution
	OpUnpack OperationKind = "unpack"
	// OpRecall indicates a cache invalidation cascade
	OpRecall OperationKind = "recall"
)
