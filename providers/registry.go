package providers

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/voxmux/voxmux/types"
)

// Backend pairs a registered descriptor with its provider binding.
type Backend struct {
	Descriptor
	Provider Provider

	// regIndex breaks priority ties by registration order.
	regIndex int
}

// Registry holds the configured backends per capability in priority
// order, along with their health state. Descriptors are immutable after
// registration; only the health flags change at runtime.
//
// Health is a two-state model: a backend is healthy, or cooling down
// until a timestamp. Once the cooldown elapses the backend is eligible
// again (half-open retry), with no further circuit machinery.
type Registry struct {
	mu           sync.RWMutex
	byCapability map[types.Capability][]*Backend
	byName       map[string]*Backend
	coolingUntil map[string]time.Time
	limiters     map[string]*rate.Limiter
	registered   int
	now          func() time.Time
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithRegistryClock overrides the registry's time source for tests.
func WithRegistryClock(now func() time.Time) RegistryOption {
	return func(r *Registry) {
		r.now = now
	}
}

// NewRegistry creates an empty backend registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		byCapability: make(map[types.Capability][]*Backend),
		byName:       make(map[string]*Backend),
		coolingUntil: make(map[string]time.Time),
		limiters:     make(map[string]*rate.Limiter),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds a backend. Backends default to healthy until proven
// otherwise. Registration order is preserved for priority ties, so the
// walk order for a fixed configuration is deterministic.
func (r *Registry) Register(desc Descriptor, provider Provider) error {
	if desc.Name == "" {
		return fmt.Errorf("backend name is required")
	}
	if !desc.Capability.Valid() {
		return fmt.Errorf("backend %q: unknown capability %q", desc.Name, desc.Capability)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byName[desc.Name]; exists {
		return fmt.Errorf("backend %q already registered", desc.Name)
	}

	b := &Backend{
		Descriptor: desc,
		Provider:   provider,
		regIndex:   r.registered,
	}
	r.registered++

	backends := append(r.byCapability[desc.Capability], b)
	sort.SliceStable(backends, func(i, j int) bool {
		if backends[i].Priority != backends[j].Priority {
			return backends[i].Priority < backends[j].Priority
		}
		return backends[i].regIndex < backends[j].regIndex
	})
	r.byCapability[desc.Capability] = backends
	r.byName[desc.Name] = b

	if desc.RPS > 0 {
		burst := desc.Burst
		if burst < 1 {
			burst = 1
		}
		r.limiters[desc.Name] = rate.NewLimiter(rate.Limit(desc.RPS), burst)
	}
	return nil
}

// BackendsFor returns the backends for a capability sorted ascending by
// priority rank, ties broken by registration order.
func (r *Registry) BackendsFor(capability types.Capability) []*Backend {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]*Backend(nil), r.byCapability[capability]...)
}

// All returns every registered backend, in registration order.
func (r *Registry) All() []*Backend {
	r.mu.RLock()
	defer r.mu.RUnlock()

	all := make([]*Backend, 0, len(r.byName))
	for _, b := range r.byName {
		all = append(all, b)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].regIndex < all[j].regIndex })
	return all
}

// Healthy reports the most recent health signal for a backend. Unknown
// backends default to healthy.
func (r *Registry) Healthy(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	until, cooling := r.coolingUntil[name]
	return !cooling || r.now().After(until)
}

// MarkUnhealthy puts a backend on cooldown; the router skips it until
// the cooldown elapses.
func (r *Registry) MarkUnhealthy(name string, cooldown time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.coolingUntil[name] = r.now().Add(cooldown)
}

// MarkHealthy clears a backend's cooldown.
func (r *Registry) MarkHealthy(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.coolingUntil, name)
}

// Allow consumes one unit of the backend's throttle. Backends without a
// configured RPS always allow.
func (r *Registry) Allow(name string) bool {
	r.mu.RLock()
	limiter := r.limiters[name]
	r.mu.RUnlock()

	if limiter == nil {
		return true
	}
	return limiter.Allow()
}

// Close closes every registered provider.
func (r *Registry) Close() error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var firstErr error
	for _, b := range r.byName {
		if err := b.Provider.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
