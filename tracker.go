package market

// dependentTracker records the reverse edges of assembly: for each
// cache key, the products that were built from it. Recall propagation
// walks these edges. The tracker itself is not synchronized; the
// market's lock guards every access, since recall both walks and
// mutates this shared state.
type dependentTracker struct {
	downstream map[CacheKey][]*productCore
}

func newDependentTracker() *dependentTracker {
	return &dependentTracker{
		downstream: make(map[CacheKey][]*productCore),
	}
}

// addDependent records that dependent was assembled from the value
// identified by key.
func (t *dependentTracker) addDependent(key CacheKey, dependent *productCore) {
	t.downstream[key] = appendUnique(t.downstream[key], dependent)
}

// dependentClosure finds all transitive dependents of start using an
// explicit stack instead of recursion. The start node itself is not
// included. Diamond-shaped graphs yield each dependent once.
func (t *dependentTracker) dependentClosure(start CacheKey) []*productCore {
	stack := make([]CacheKey, 0, 32)
	stack = append(stack, start)

	dependents := make([]*productCore, 0, 32)
	visited := make(map[CacheKey]bool, 32)
	visited[start] = true

	for len(stack) > 0 {
		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		for _, dep := range t.downstream[current] {
			if visited[dep.key] {
				continue
			}
			visited[dep.key] = true
			dependents = append(dependents, dep)
			stack = append(stack, dep.key)
		}
	}

	return dependents
}

func appendUnique[T comparable](slice []T, item T) []T {
	for _, existing := range slice {
		if existing == item {
			return slice
		}
	}
	return append(slice, item)
}
