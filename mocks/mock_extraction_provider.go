package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"invoicer/internal/domain"
)

// MockExtractionProvider is a mock implementation of port.ExtractionProvider.
type MockExtractionProvider struct {
	mock.Mock
}

func (m *MockExtractionProvider) Name() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockExtractionProvider) Initialize(cfg domain.ProviderConfig) error {
	args := m.Called(cfg)
	return args.Error(0)
}

func (m *MockExtractionProvider) IsAvailable(ctx context.Context) bool {
	args := m.Called(ctx)
	return args.Bool(0)
}

func (m *MockExtractionProvider) ExtractInvoiceData(ctx context.Context, path string) (*domain.InvoiceData, error) {
	args := m.Called(ctx, path)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.InvoiceData), args.Error(1)
}
