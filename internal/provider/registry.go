package provider

import (
	"context"
	"fmt"
	"sync"

	"invoicer/internal/domain"
	"invoicer/internal/logger"
	"invoicer/internal/port"
)

// Registry holds the extraction providers known to the process, keyed by
// name and kept in registration order.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]port.ExtractionProvider
	order     []string
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]port.ExtractionProvider)}
}

// Register adds p under p.Name().
func (r *Registry) Register(p port.ExtractionProvider) error {
	name := p.Name()
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.providers[name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateName, name)
	}
	r.providers[name] = p
	r.order = append(r.order, name)
	return nil
}

// Get returns the provider registered under name.
func (r *Registry) Get(name string) (port.ExtractionProvider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[name]
	return p, ok
}

func (r *Registry) Has(name string) bool {
	_, ok := r.Get(name)
	return ok
}

// Names returns all registered names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// AvailableNames probes every provider and returns the names of those that
// report available. A probe that panics counts as unavailable.
func (r *Registry) AvailableNames(ctx context.Context) []string {
	var available []string
	for _, name := range r.Names() {
		p, ok := r.Get(name)
		if ok && probe(ctx, p) {
			available = append(available, name)
		}
	}
	return available
}

// IsAvailable probes a single provider by name.
func (r *Registry) IsAvailable(ctx context.Context, name string) bool {
	p, ok := r.Get(name)
	return ok && probe(ctx, p)
}

func probe(ctx context.Context, p port.ExtractionProvider) (ok bool) {
	defer func() {
		if rec := recover(); rec != nil {
			logger.Named("provider.Registry").Warn().
				Str("provider", p.Name()).
				Interface("panic", rec).
				Msg("provider.Registry: availability probe panicked")
			ok = false
		}
	}()
	return p.IsAvailable(ctx)
}

// InitializeProvider configures the provider registered under name.
func (r *Registry) InitializeProvider(name string, cfg domain.ProviderConfig) error {
	p, ok := r.Get(name)
	if !ok {
		return fmt.Errorf("%w: %s", ErrProviderNotRegistered, name)
	}
	if err := p.Initialize(cfg); err != nil {
		return fmt.Errorf("initializing provider %s: %w", name, err)
	}
	return nil
}

// Select resolves a provider preference to an available provider. The auto
// preference tries OpenRouter first and falls back to LM Studio.
func (r *Registry) Select(ctx context.Context, preference string) (string, port.ExtractionProvider, error) {
	candidates := []string{preference}
	if preference == domain.PreferAuto || preference == "" {
		candidates = []string{domain.PreferOpenRouter, domain.PreferLMStudio}
	} else if !r.Has(preference) {
		return "", nil, fmt.Errorf("%w: %w: %s", domain.ErrNoProviderAvailable, ErrProviderNotRegistered, preference)
	}

	for _, name := range candidates {
		p, ok := r.Get(name)
		if ok && probe(ctx, p) {
			return name, p, nil
		}
	}
	return "", nil, domain.ErrNoProviderAvailable
}
