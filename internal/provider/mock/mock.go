// Package mock provides an extraction provider that returns fixed data
// without any network access.
package mock

import (
	"context"
	"sync"

	"invoicer/internal/domain"
	"invoicer/internal/provider"
)

// Provider always reports available and returns the same invoice data.
type Provider struct {
	mu          sync.RWMutex
	cfg         domain.ProviderConfig
	initialized bool
	data        domain.InvoiceData
}

// New creates an uninitialized mock provider.
func New() *Provider {
	return &Provider{
		data: domain.InvoiceData{
			Date:       "2024-03-15",
			Supplier:   "Mock-Supplier",
			Confidence: 0.95,
		},
	}
}

func (p *Provider) Name() string {
	return string(provider.KindMock)
}

func (p *Provider) Initialize(cfg domain.ProviderConfig) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cfg = cfg
	p.initialized = true
	return nil
}

func (p *Provider) IsAvailable(context.Context) bool {
	return true
}

func (p *Provider) ExtractInvoiceData(ctx context.Context, path string) (*domain.InvoiceData, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if !p.initialized {
		return nil, provider.NewExtractionError(p.Name(), domain.ErrorKindConfiguration,
			"provider not initialized", provider.ErrNotInitialized)
	}
	if err := ctx.Err(); err != nil {
		return nil, provider.NewExtractionError(p.Name(), domain.ErrorKindTransient, "request cancelled", err)
	}
	data := p.data
	return &data, nil
}
