package mocks

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"signet/internal/domain"
	"signet/internal/port"
)

// MockSignRequestRepo is a mock implementation of port.SignRequestRepository.
type MockSignRequestRepo struct {
	mock.Mock
}

func (m *MockSignRequestRepo) Create(ctx context.Context, req *domain.SignRequest) error {
	args := m.Called(ctx, req)
	return args.Error(0)
}

func (m *MockSignRequestRepo) CreateBatch(ctx context.Context, reqs []domain.SignRequest) error {
	args := m.Called(ctx, reqs)
	return args.Error(0)
}

func (m *MockSignRequestRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.SignRequest, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.SignRequest), args.Error(1)
}

func (m *MockSignRequestRepo) GetByToken(ctx context.Context, token string) (*domain.SignRequest, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.SignRequest), args.Error(1)
}

func (m *MockSignRequestRepo) ListByDocument(ctx context.Context, documentID uuid.UUID) ([]domain.SignRequest, error) {
	args := m.Called(ctx, documentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.SignRequest), args.Error(1)
}

func (m *MockSignRequestRepo) CountByStatus(ctx context.Context, documentID uuid.UUID) (int, int, error) {
	args := m.Called(ctx, documentID)
	return args.Int(0), args.Int(1), args.Error(2)
}

func (m *MockSignRequestRepo) UpdateFields(ctx context.Context, id uuid.UUID, fields domain.Fields) error {
	args := m.Called(ctx, id, fields)
	return args.Error(0)
}

func (m *MockSignRequestRepo) UpdateRecipient(ctx context.Context, id uuid.UUID, email, name string) error {
	args := m.Called(ctx, id, email, name)
	return args.Error(0)
}

func (m *MockSignRequestRepo) SaveSignature(ctx context.Context, id uuid.UUID, fieldID *string, payload string) error {
	args := m.Called(ctx, id, fieldID, payload)
	return args.Error(0)
}

func (m *MockSignRequestRepo) SaveFieldValue(ctx context.Context, id uuid.UUID, fieldID, value string) error {
	args := m.Called(ctx, id, fieldID, value)
	return args.Error(0)
}

func (m *MockSignRequestRepo) MarkSent(ctx context.Context, id uuid.UUID, sentAt time.Time, expiresAt *time.Time) error {
	args := m.Called(ctx, id, sentAt, expiresAt)
	return args.Error(0)
}

func (m *MockSignRequestRepo) ClaimInvitation(ctx context.Context, id uuid.UUID, sentAt, expiresAt time.Time) error {
	args := m.Called(ctx, id, sentAt, expiresAt)
	return args.Error(0)
}

func (m *MockSignRequestRepo) ReleaseInvitation(ctx context.Context, id uuid.UUID, sentAt time.Time) error {
	args := m.Called(ctx, id, sentAt)
	return args.Error(0)
}

func (m *MockSignRequestRepo) SetExpiry(ctx context.Context, id uuid.UUID, expiresAt time.Time) error {
	args := m.Called(ctx, id, expiresAt)
	return args.Error(0)
}

func (m *MockSignRequestRepo) MarkSigned(ctx context.Context, update port.SignedUpdate) error {
	args := m.Called(ctx, update)
	return args.Error(0)
}

func (m *MockSignRequestRepo) MarkDeclined(ctx context.Context, update port.DeclineUpdate) error {
	args := m.Called(ctx, update)
	return args.Error(0)
}
