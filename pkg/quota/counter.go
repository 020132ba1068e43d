package quota

import (
	"context"
	"fmt"
	"slices"
)

// CounterFunc returns the live count of a resource for one organization.
// It must scope its query strictly to orgID.
type CounterFunc func(ctx context.Context, orgID int64) (int64, error)

// CounterRegistry maps a count-based Resource to its CounterFunc.
// Not thread-safe: register all counters at startup only.
type CounterRegistry map[Resource]CounterFunc

// NewRegistry returns a new, empty CounterRegistry.
func NewRegistry() CounterRegistry {
	return make(CounterRegistry)
}

// Register sets or replaces the CounterFunc for the given resource.
// Panics if fn is nil or res is not counted live (storage and API calls are cached counters).
func (r CounterRegistry) Register(res Resource, fn CounterFunc) {
	if fn == nil {
		panic(fmt.Sprintf("quota: CounterFunc for resource %q cannot be nil", res))
	}
	if !slices.Contains(countedResources, res) {
		panic(fmt.Sprintf("quota: resource %q is not counted live", res))
	}
	r[res] = fn
}

func (r CounterRegistry) validate() error {
	for _, res := range countedResources {
		if _, ok := r[res]; !ok {
			return fmt.Errorf("%w: %s", ErrNoCounterRegistered, res)
		}
	}
	return nil
}
