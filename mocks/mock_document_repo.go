package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"signet/internal/domain"
)

// MockDocumentRepo is a mock implementation of port.DocumentRepository.
type MockDocumentRepo struct {
	mock.Mock
}

func (m *MockDocumentRepo) Create(ctx context.Context, doc *domain.Document) error {
	args := m.Called(ctx, doc)
	return args.Error(0)
}

func (m *MockDocumentRepo) GetByID(ctx context.Context, docID uuid.UUID) (*domain.Document, error) {
	args := m.Called(ctx, docID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Document), args.Error(1)
}

func (m *MockDocumentRepo) GetByOwner(ctx context.Context, ownerID, docID uuid.UUID) (*domain.Document, error) {
	args := m.Called(ctx, ownerID, docID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Document), args.Error(1)
}

func (m *MockDocumentRepo) ListByOwner(ctx context.Context, ownerID uuid.UUID, offset, limit int) ([]domain.Document, int, error) {
	args := m.Called(ctx, ownerID, offset, limit)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]domain.Document), args.Int(1), args.Error(2)
}

func (m *MockDocumentRepo) TransitionStatus(ctx context.Context, docID uuid.UUID, from []domain.DocumentStatus, to domain.DocumentStatus) error {
	args := m.Called(ctx, docID, from, to)
	return args.Error(0)
}

func (m *MockDocumentRepo) MarkVoided(ctx context.Context, docID uuid.UUID, voidedFileKey string) error {
	args := m.Called(ctx, docID, voidedFileKey)
	return args.Error(0)
}

func (m *MockDocumentRepo) SoftDelete(ctx context.Context, ownerID, docID uuid.UUID) error {
	args := m.Called(ctx, ownerID, docID)
	return args.Error(0)
}

func (m *MockDocumentRepo) Restore(ctx context.Context, ownerID, docID uuid.UUID) error {
	args := m.Called(ctx, ownerID, docID)
	return args.Error(0)
}
