package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"signet/internal/port"
)

// MockObjectStorage is a mock implementation of port.ObjectStorage. Tests
// that only need a working byte store use MemObjectStorage instead.
type MockObjectStorage struct {
	mock.Mock
}

func (m *MockObjectStorage) Upload(ctx context.Context, input port.UploadInput) (*port.UploadOutput, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*port.UploadOutput), args.Error(1)
}

func (m *MockObjectStorage) Download(ctx context.Context, bucket, key string) ([]byte, error) {
	args := m.Called(ctx, bucket, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockObjectStorage) GetPresignedURL(ctx context.Context, input port.PresignInput) (string, error) {
	args := m.Called(ctx, input)
	return args.String(0), args.Error(1)
}
