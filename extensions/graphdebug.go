package extensions

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/m1gwings/treedrawer/tree"

	market "github.com/supplied-fn/market-go"
)

// GraphDebugExtension renders the supply graph when an operation
// fails, so a broken assembly can be read as a tree instead of a
// stack of wrapped errors.
//
// Usage:
//
//	// Structured JSON logging
//	ext := extensions.NewGraphDebugExtension(slog.NewJSONHandler(os.Stdout, nil))
//
//	// Silent (for testing)
//	ext := extensions.NewGraphDebugExtension(extensions.NewSilentHandler())
//
// The extension logs at ERROR level for assembly and unpack failures.
type GraphDebugExtension struct {
	market.BaseExtension

	// Track supplier outcomes as operations pass through; concurrent
	// unpacks share the extension, so the maps are mutex-guarded.
	mu       sync.Mutex
	resolved map[string]bool
	failed   map[string]error
	logger   *slog.Logger
}

// NewGraphDebugExtension creates a new graph debug extension.
func NewGraphDebugExtension(logHandler slog.Handler) *GraphDebugExtension {
	return &GraphDebugExtension{
		BaseExtension: market.NewBaseExtension("graph-debug"),
		resolved:      make(map[string]bool),
		failed:        make(map[string]error),
		logger:        slog.New(logHandler),
	}
}

// Wrap tracks operations for debugging
func (e *GraphDebugExtension) Wrap(ctx context.Context, next func() (any, error), op *market.Operation) (any, error) {
	result, err := next()

	if op.Kind == market.OpUnpack {
		e.mu.Lock()
		if err == nil {
			e.resolved[op.Supplier] = true
		} else {
			e.failed[op.Supplier] = err
		}
		e.mu.Unlock()
	}

	return result, err
}

// OnError logs the supply graph when an operation fails
func (e *GraphDebugExtension) OnError(err error, op *market.Operation, m *market.Market) {
	e.logger.Error("supply graph failure",
		"supplier", op.Supplier,
		"operation", string(op.Kind),
		"error", err.Error(),
		"supply_graph", e.drawGraph(op),
	)
}

// supplied is the view a pack needs to expose for the renderer to
// descend into it.
type supplied interface {
	Supplies() *market.Supplies
}

func (e *GraphDebugExtension) drawGraph(op *market.Operation) string {
	t := tree.NewTree(tree.NodeString(e.label(op.Supplier)))
	if op.Supplies != nil {
		e.addSupplies(t, op.Supplies)
	}
	return fmt.Sprint(t)
}

func (e *GraphDebugExtension) addSupplies(parent *tree.Tree, supplies *market.Supplies) {
	for _, name := range supplies.Names() {
		entry, _ := supplies.Get(name)
		child := parent.AddChild(tree.NodeString(e.label(name)))
		if sub, ok := entry.(supplied); ok && sub.Supplies() != nil {
			e.addSupplies(child, sub.Supplies())
		}
	}
}

func (e *GraphDebugExtension) label(name string) string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err, failed := e.failed[name]; failed {
		return fmt.Sprintf("%s [failed: %v]", name, err)
	}
	if e.resolved[name] {
		return name + " [ok]"
	}
	return name + " [pending]"
}
