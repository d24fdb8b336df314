package cubism

import (
	"errors"
	"sort"
	"sync"
)

// ErrNoRuntime is returned when no registered runtime accepts a settings
// file.
var ErrNoRuntime = errors.New("cubism: no runtime for model settings")

// Registry holds runtimes ordered by descending version.
type Registry struct {
	mu       sync.RWMutex
	runtimes []Runtime
}

// NewRegistry creates a registry holding rts.
func NewRegistry(rts ...Runtime) *Registry {
	r := &Registry{}
	for _, rt := range rts {
		r.Register(rt)
	}
	return r
}

// DefaultRegistry returns a new registry with Cubism 2 and Cubism 4.
func DefaultRegistry() *Registry {
	return NewRegistry(Cubism2{}, Cubism4{})
}

// Register adds rt. Runtimes of equal version keep registration order.
func (r *Registry) Register(rt Runtime) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runtimes = append(r.runtimes, rt)
	sort.SliceStable(r.runtimes, func(i, j int) bool {
		return r.runtimes[i].Version() > r.runtimes[j].Version()
	})
}

// Runtimes returns the registered runtimes in lookup order.
func (r *Registry) Runtimes() []Runtime {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Runtime(nil), r.runtimes...)
}

// Find returns the first runtime whose Test accepts src.
func (r *Registry) Find(src []byte) (Runtime, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, rt := range r.runtimes {
		if rt.Test(src) {
			return rt, true
		}
	}
	return nil, false
}

// Resolve is Find with an error.
func (r *Registry) Resolve(src []byte) (Runtime, error) {
	rt, ok := r.Find(src)
	if !ok {
		return nil, ErrNoRuntime
	}
	return rt, nil
}
