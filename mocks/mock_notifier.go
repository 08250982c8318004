package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"invoicer/internal/domain"
)

// MockNotifier is a mock implementation of port.Notifier.
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) SessionFinished(ctx context.Context, session *domain.Session, archiveURL string) error {
	args := m.Called(ctx, session, archiveURL)
	return args.Error(0)
}
