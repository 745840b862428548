package coordinator

import (
	"errors"
	"sort"
	"sync"

	"github.com/yndnr/trainmesh-go/internal/channel"
	"github.com/yndnr/trainmesh-go/internal/core/domain"
)

// Registry maps worker ids to their private channels. Entries are added once
// and only dropped by Close.
type Registry struct {
	mu       sync.RWMutex
	channels map[string]*channel.Intercomm
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{channels: make(map[string]*channel.Intercomm)}
}

// add registers ic under workerID. An existing entry is left untouched.
func (r *Registry) add(workerID string, ic *channel.Intercomm) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.channels[workerID]; ok {
		return domain.ErrDuplicateWorker.Detailf("worker %q", workerID)
	}
	r.channels[workerID] = ic
	return nil
}

// Get returns the channel of workerID.
func (r *Registry) Get(workerID string) (*channel.Intercomm, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ic, ok := r.channels[workerID]
	return ic, ok
}

// Has reports whether workerID is registered.
func (r *Registry) Has(workerID string) bool {
	_, ok := r.Get(workerID)
	return ok
}

// Len returns the number of registered workers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.channels)
}

// IDs returns the registered worker ids in sorted order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	ids := make([]string, 0, len(r.channels))
	for id := range r.channels {
		ids = append(ids, id)
	}
	r.mu.RUnlock()
	sort.Strings(ids)
	return ids
}

// Close disconnects every channel and empties the registry.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var errs []error
	for id, ic := range r.channels {
		if err := ic.Disconnect(); err != nil {
			errs = append(errs, err)
		}
		delete(r.channels, id)
	}
	return errors.Join(errs...)
}
