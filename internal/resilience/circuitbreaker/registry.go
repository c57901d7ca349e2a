package circuitbreaker

import (
	"strings"
	"sync"
)

// DefaultRegistrySize bounds how many per-host breakers are kept in memory.
const DefaultRegistrySize = 1024

// Registry hands out one CircuitBreaker per key (an upstream hostname).
//
// The registry is bounded: once it holds maxSize breakers, adding a new key
// evicts the oldest one. An evicted host simply starts over with a closed
// breaker, which keeps memory flat under a flood of distinct hostnames.
type Registry struct {
	mu        sync.Mutex
	breakers  map[string]*CircuitBreaker
	order     []string
	maxSize   int
	newConfig func(key string) Config
}

// NewRegistry creates a Registry. newConfig builds the configuration of the
// breaker for a key on first use; nil means HostFetchConfig.
func NewRegistry(maxSize int, newConfig func(key string) Config) *Registry {
	if maxSize <= 0 {
		maxSize = DefaultRegistrySize
	}
	if newConfig == nil {
		newConfig = HostFetchConfig
	}
	return &Registry{
		breakers:  make(map[string]*CircuitBreaker),
		maxSize:   maxSize,
		newConfig: newConfig,
	}
}

// Get returns the breaker for key, creating it if needed. Keys are
// case-insensitive.
func (r *Registry) Get(key string) *CircuitBreaker {
	key = strings.ToLower(key)

	r.mu.Lock()
	defer r.mu.Unlock()

	if cb, ok := r.breakers[key]; ok {
		return cb
	}

	if len(r.order) >= r.maxSize {
		oldest := r.order[0]
		r.order = r.order[1:]
		delete(r.breakers, oldest)
	}

	cb := New(r.newConfig(key))
	r.breakers[key] = cb
	r.order = append(r.order, key)
	return cb
}

// Len returns the number of breakers currently held.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.breakers)
}

// OpenCount returns how many held breakers are open.
func (r *Registry) OpenCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	open := 0
	for _, cb := range r.breakers {
		if cb.IsOpen() {
			open++
		}
	}
	return open
}
