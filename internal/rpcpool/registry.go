package rpcpool

import (
	"sync"
	"time"
)

// Registry owns every endpoint record. The lock guards only the slice;
// records synchronise themselves so updates to different indices never contend.
type Registry struct {
	mu        sync.RWMutex
	endpoints []*Endpoint
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Add appends an endpoint and returns its index. A URL that is already
// registered is not added twice; its existing index is returned with added=false.
func (r *Registry) Add(params EndpointParams, t Transport) (index int, added bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, e := range r.endpoints {
		if e.params.URL == params.URL {
			return e.index, false
		}
	}
	index = len(r.endpoints)
	r.endpoints = append(r.endpoints, newEndpoint(index, params, t))
	return index, true
}

// Get returns the record at index.
func (r *Registry) Get(index int) (*Endpoint, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if index < 0 || index >= len(r.endpoints) {
		return nil, false
	}
	return r.endpoints[index], true
}

// Len returns the number of registered endpoints.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.endpoints)
}

// Snapshot returns read-only views of all records in index order.
func (r *Registry) Snapshot() []EndpointView {
	now := time.Now()
	views := make([]EndpointView, 0, r.Len())
	for _, e := range r.all() {
		views = append(views, e.view(now))
	}
	return views
}

func (r *Registry) all() []*Endpoint {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Endpoint, len(r.endpoints))
	copy(out, r.endpoints)
	return out
}
