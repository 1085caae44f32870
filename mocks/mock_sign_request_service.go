package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"signet/internal/domain"
	"signet/internal/service"
)

// MockSignRequestService is a mock implementation of service.SignRequestService.
type MockSignRequestService struct {
	mock.Mock
}

func (m *MockSignRequestService) Create(ctx context.Context, doc *domain.Document, input service.RecipientInput, draft bool) (*domain.SignRequest, error) {
	args := m.Called(ctx, doc, input, draft)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.SignRequest), args.Error(1)
}

func (m *MockSignRequestService) CreateBatch(ctx context.Context, doc *domain.Document, inputs []service.RecipientInput, draft bool) ([]domain.SignRequest, error) {
	args := m.Called(ctx, doc, inputs, draft)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.SignRequest), args.Error(1)
}

func (m *MockSignRequestService) RecordView(ctx context.Context, token, ip, userAgent string) error {
	args := m.Called(ctx, token, ip, userAgent)
	return args.Error(0)
}

func (m *MockSignRequestService) GetInfo(ctx context.Context, token string) (*service.SigningInfo, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.SigningInfo), args.Error(1)
}

func (m *MockSignRequestService) FileURL(ctx context.Context, token string) (string, error) {
	args := m.Called(ctx, token)
	return args.String(0), args.Error(1)
}

func (m *MockSignRequestService) SaveSignature(ctx context.Context, token string, fieldID *string, payload string) (*domain.SignRequest, error) {
	args := m.Called(ctx, token, fieldID, payload)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.SignRequest), args.Error(1)
}

func (m *MockSignRequestService) SaveFieldValue(ctx context.Context, token, fieldID, value string) (*domain.SignRequest, error) {
	args := m.Called(ctx, token, fieldID, value)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.SignRequest), args.Error(1)
}

func (m *MockSignRequestService) Complete(ctx context.Context, token, ip, userAgent string) (*domain.SignRequest, bool, error) {
	args := m.Called(ctx, token, ip, userAgent)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*domain.SignRequest), args.Bool(1), args.Error(2)
}

func (m *MockSignRequestService) Decline(ctx context.Context, token, ip, userAgent, reason string) (*domain.SignRequest, bool, error) {
	args := m.Called(ctx, token, ip, userAgent, reason)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*domain.SignRequest), args.Bool(1), args.Error(2)
}
