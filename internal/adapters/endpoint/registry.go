// Package endpoint provides the registry of sync endpoints keyed by system.
package endpoint

import (
	"fmt"
	"sync"

	"github.com/jbctechsolutions/docsync/internal/application/ports"
	"github.com/jbctechsolutions/docsync/internal/domain/errors"
	"github.com/jbctechsolutions/docsync/internal/domain/mapping"
)

// Registry manages the registration and lookup of endpoints.
type Registry struct {
	mu        sync.RWMutex
	endpoints map[mapping.System]ports.Endpoint
	order     []mapping.System // maintains registration order
}

// NewRegistry creates a new empty endpoint registry.
func NewRegistry() *Registry {
	return &Registry{
		endpoints: make(map[mapping.System]ports.Endpoint),
		order:     make([]mapping.System, 0),
	}
}

// Register adds an endpoint under the system it reports.
// An endpoint already registered for that system is replaced.
func (r *Registry) Register(ep ports.Endpoint) error {
	if ep == nil {
		return fmt.Errorf("endpoint cannot be nil")
	}
	sys := ep.System()
	if sys == "" {
		return fmt.Errorf("endpoint system cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.endpoints[sys]; !exists {
		r.order = append(r.order, sys)
	}
	r.endpoints[sys] = ep
	return nil
}

// Get retrieves an endpoint by system.
// Returns nil if the system is not registered.
func (r *Registry) Get(sys mapping.System) ports.Endpoint {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.endpoints[sys]
}

// GetRequired retrieves an endpoint, returning a validation error if the
// system is not configured.
func (r *Registry) GetRequired(sys mapping.System) (ports.Endpoint, error) {
	ep := r.Get(sys)
	if ep == nil {
		return nil, errors.NewError(errors.CodeValidation,
			fmt.Sprintf("%s is not configured", sys), nil)
	}
	return ep, nil
}

// Resolve returns the source and destination endpoints of a direction.
func (r *Registry) Resolve(d mapping.Direction) (ports.SourcePort, ports.DestinationPort, error) {
	if !d.Valid() {
		return nil, nil, errors.NewError(errors.CodeValidation,
			fmt.Sprintf("unknown direction %q", d), errors.ErrUnknownDirection)
	}
	src, err := r.GetRequired(d.Source())
	if err != nil {
		return nil, nil, err
	}
	dst, err := r.GetRequired(d.Destination())
	if err != nil {
		return nil, nil, err
	}
	return src, dst, nil
}

// List returns all registered systems in registration order.
func (r *Registry) List() []mapping.System {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]mapping.System, len(r.order))
	copy(result, r.order)
	return result
}

// Remove removes an endpoint from the registry.
// Returns true if the endpoint was found and removed.
func (r *Registry) Remove(sys mapping.System) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.endpoints[sys]; !exists {
		return false
	}
	delete(r.endpoints, sys)

	for i, s := range r.order {
		if s == sys {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return true
}

// Count returns the number of registered endpoints.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.endpoints)
}
