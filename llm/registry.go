package llm

import (
	"context"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"
)

// ProviderRegistry is a thread-safe registry of providers keyed by provider
// kind ("openai", "gemini").
type ProviderRegistry struct {
	providers map[string]Provider
	mu        sync.RWMutex
}

// NewProviderRegistry creates an empty ProviderRegistry.
func NewProviderRegistry() *ProviderRegistry {
	return &ProviderRegistry{
		providers: make(map[string]Provider),
	}
}

// Register adds a provider under the given name, replacing any previous one.
func (r *ProviderRegistry) Register(name string, p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[name] = p
}

// Get retrieves a provider by name.
func (r *ProviderRegistry) Get(name string) (Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[name]
	return p, ok
}

// List returns the sorted names of all registered providers.
func (r *ProviderRegistry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of registered providers.
func (r *ProviderRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.providers)
}

// HealthCheckAll 并发检查所有 Provider，返回 name -> 错误（健康为 nil）。
func (r *ProviderRegistry) HealthCheckAll(ctx context.Context) map[string]error {
	r.mu.RLock()
	snapshot := make(map[string]Provider, len(r.providers))
	for name, p := range r.providers {
		snapshot[name] = p
	}
	r.mu.RUnlock()

	results := make(map[string]error, len(snapshot))
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for name, p := range snapshot {
		g.Go(func() error {
			status, err := p.HealthCheck(gctx)
			if err == nil && status != nil && !status.Healthy {
				err = &Error{Code: ErrProviderUnavailable, Message: "provider reported unhealthy", Provider: name}
			}
			mu.Lock()
			results[name] = err
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return results
}
