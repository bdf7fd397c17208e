// Package market provides a dependency-composition runtime for Go: it
// assembles complex values (products) from declared graphs of named
// suppliers, memoizes results per assembly, and supports live
// reconfiguration by replacing leaf inputs and recomputing only the
// affected downstream values.
//
// # Overview
//
// Market organizes code around three core concepts:
//
//  1. Suppliers: declarative templates for values, either leaf
//     resources supplied from outside or products computed by a factory
//  2. Markets: registries that assign unique names and own the cache
//  3. Products: assembled values exposing reassembly, recall, and an
//     optimistic overlay
//
// # Basic Usage
//
// Offer suppliers to define your graph, then assemble it:
//
//	m := market.New()
//
//	port := market.OfferResource[int](m, "port")
//
//	server := market.OfferProduct(m, "server",
//	    func(s *market.Supplies, jit *market.Assemblers) (*Server, error) {
//	        p, err := market.Supply[int](s, "port")
//	        if err != nil {
//	            return nil, err
//	        }
//	        return NewServer(p), nil
//	    },
//	    market.Requires(port),
//	)
//
//	product, err := server.Assemble(port.Pack(8080))
//	srv, err := product.Unpack()
//
// # Reassembly and Recall
//
// Products are immutable; reconfiguration produces new products.
// Reassemble substitutes overrides by name and recomputes only the
// entries whose dependency closure intersects them, reusing every
// unaffected cached branch:
//
//	reconfigured, err := product.Reassemble(port.Pack(9090))
//
// Recall invalidates a product's cached value and cascades to every
// product transitively built from it; independent siblings keep their
// cached values:
//
//	product.Recall()
//
// # Scheduling
//
// Factories run eagerly during assembly unless declared lazy, in which
// case the whole subtree below them waits for first access. Preload
// adds a best-effort background warm-up, and Timeout recalls a value
// automatically after it has been standing for a duration:
//
//	cache := market.OfferProduct(m, "cache", buildCache,
//	    market.Requires(config),
//	    market.Lazy(),
//	    market.Preload(),
//	    market.Timeout(5*time.Minute),
//	)
//
// # Optimistic Overlay
//
// A product can expose a placeholder immediately while the real
// computation resolves in the background:
//
//	_ = product.SetOptimistic(cachedGuess)
//	v, _ := product.Unpack() // placeholder until the factory settles
//
// # Substitution
//
// Prototype declares an alternate implementation under the same name;
// Try and With swap variants into a graph by name without reshaping
// it:
//
//	fake := repo.Prototype(buildFakeRepo)
//	testable := service.Try(fake)
//
// # Extensions
//
// Extensions provide cross-cutting concerns through lifecycle hooks:
//
//	type TimingExtension struct {
//	    market.BaseExtension
//	}
//
//	func (e *TimingExtension) Wrap(ctx context.Context, next func() (any, error), op *market.Operation) (any, error) {
//	    start := time.Now()
//	    result, err := next()
//	    log.Printf("%s %s took %v", op.Kind, op.Supplier, time.Since(start))
//	    return result, err
//	}
//
//	m := market.New(
//	    market.WithExtension(&TimingExtension{
//	        BaseExtension: market.NewBaseExtension("timing"),
//	    }),
//	)
package market
