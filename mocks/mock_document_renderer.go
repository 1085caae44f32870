package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"signet/internal/geometry"
	"signet/internal/port"
)

// MockDocumentRenderer is a mock implementation of port.DocumentRenderer.
type MockDocumentRenderer struct {
	mock.Mock
}

func (m *MockDocumentRenderer) Embed(ctx context.Context, input port.EmbedInput) ([]byte, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockDocumentRenderer) Void(ctx context.Context, source []byte, label string) ([]byte, error) {
	args := m.Called(ctx, source, label)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockDocumentRenderer) MeasurePages(source []byte) ([]geometry.PageSize, error) {
	args := m.Called(source)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]geometry.PageSize), args.Error(1)
}
