package port

import (
	"context"

	"invoicer/internal/domain"
)

// ExtractionProvider extracts invoice data from a document with a
// vision-capable language model.
type ExtractionProvider interface {
	Name() string
	// Initialize configures the provider. It may be called again to replace
	// the configuration.
	Initialize(cfg domain.ProviderConfig) error
	// IsAvailable probes the backend within a short bound and never fails;
	// any error is reported as unavailable.
	IsAvailable(ctx context.Context) bool
	ExtractInvoiceData(ctx context.Context, path string) (*domain.InvoiceData, error)
}
