package mocks

import (
	"context"
	"io"

	"github.com/stretchr/testify/mock"

	"invoicer/internal/domain"
	"invoicer/internal/service"
)

// MockBatchService is a mock implementation of service.BatchService.
type MockBatchService struct {
	mock.Mock
}

func (m *MockBatchService) StartUpload(ctx context.Context, input service.UploadInput) (*service.StartResult, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.StartResult), args.Error(1)
}

func (m *MockBatchService) Status(ctx context.Context, sessionID string) (*domain.Session, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Session), args.Error(1)
}

func (m *MockBatchService) Cancel(ctx context.Context, sessionID string) (*domain.Session, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Session), args.Error(1)
}

func (m *MockBatchService) Retry(ctx context.Context, sessionID string) (*service.StartResult, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.StartResult), args.Error(1)
}

func (m *MockBatchService) Archive(ctx context.Context, sessionID string) (string, error) {
	args := m.Called(ctx, sessionID)
	return args.String(0), args.Error(1)
}

func (m *MockBatchService) Report(ctx context.Context, sessionID string, format domain.ReportFormat, w io.Writer) error {
	args := m.Called(ctx, sessionID, format, w)
	return args.Error(0)
}

func (m *MockBatchService) Settings(ctx context.Context) domain.Settings {
	args := m.Called(ctx)
	return args.Get(0).(domain.Settings)
}

func (m *MockBatchService) UpdateSettings(ctx context.Context, input service.SettingsUpdate) (domain.Settings, error) {
	args := m.Called(ctx, input)
	return args.Get(0).(domain.Settings), args.Error(1)
}

func (m *MockBatchService) Providers(ctx context.Context) service.ProvidersView {
	args := m.Called(ctx)
	return args.Get(0).(service.ProvidersView)
}

func (m *MockBatchService) Health(ctx context.Context) (*service.HealthStatus, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.HealthStatus), args.Error(1)
}

func (m *MockBatchService) Shutdown(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}
