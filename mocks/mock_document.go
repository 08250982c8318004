package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockRasterizer is a mock implementation of port.Rasterizer.
type MockRasterizer struct {
	mock.Mock
}

func (m *MockRasterizer) FirstPagePNG(ctx context.Context, path string) ([]byte, error) {
	args := m.Called(ctx, path)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

// MockDocumentSplitter is a mock implementation of port.DocumentSplitter.
type MockDocumentSplitter struct {
	mock.Mock
}

func (m *MockDocumentSplitter) PageCount(path string) (int, error) {
	args := m.Called(path)
	return args.Int(0), args.Error(1)
}

func (m *MockDocumentSplitter) Split(ctx context.Context, path, outDir string) ([]string, error) {
	args := m.Called(ctx, path, outDir)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}
