package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"signet/internal/auditexport"
	"signet/internal/domain"
	"signet/internal/service"
)

// MockEnvelopeService is a mock implementation of service.EnvelopeService.
type MockEnvelopeService struct {
	mock.Mock
}

func (m *MockEnvelopeService) CreateDocument(ctx context.Context, input service.CreateDocumentInput) (*domain.Document, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Document), args.Error(1)
}

func (m *MockEnvelopeService) AddRecipients(ctx context.Context, owner domain.Owner, docID uuid.UUID, inputs []service.RecipientInput) ([]domain.SignRequest, error) {
	args := m.Called(ctx, owner, docID, inputs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.SignRequest), args.Error(1)
}

func (m *MockEnvelopeService) UpdateFields(ctx context.Context, owner domain.Owner, docID, reqID uuid.UUID, fields domain.Fields) (*domain.SignRequest, error) {
	args := m.Called(ctx, owner, docID, reqID, fields)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.SignRequest), args.Error(1)
}

func (m *MockEnvelopeService) Send(ctx context.Context, owner domain.Owner, docID uuid.UUID) (*domain.Document, error) {
	args := m.Called(ctx, owner, docID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Document), args.Error(1)
}

func (m *MockEnvelopeService) Resend(ctx context.Context, owner domain.Owner, docID uuid.UUID, corrections []service.RecipientCorrection) (*domain.Document, error) {
	args := m.Called(ctx, owner, docID, corrections)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Document), args.Error(1)
}

func (m *MockEnvelopeService) Cancel(ctx context.Context, owner domain.Owner, docID uuid.UUID) (*domain.Document, error) {
	args := m.Called(ctx, owner, docID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Document), args.Error(1)
}

func (m *MockEnvelopeService) Delete(ctx context.Context, owner domain.Owner, docID uuid.UUID) error {
	args := m.Called(ctx, owner, docID)
	return args.Error(0)
}

func (m *MockEnvelopeService) Restore(ctx context.Context, owner domain.Owner, docID uuid.UUID) (*domain.Document, error) {
	args := m.Called(ctx, owner, docID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Document), args.Error(1)
}

func (m *MockEnvelopeService) Get(ctx context.Context, owner domain.Owner, docID uuid.UUID) (*service.DocumentDetail, error) {
	args := m.Called(ctx, owner, docID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.DocumentDetail), args.Error(1)
}

func (m *MockEnvelopeService) List(ctx context.Context, owner domain.Owner, offset, limit int) ([]domain.Document, int, error) {
	args := m.Called(ctx, owner, offset, limit)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]domain.Document), args.Int(1), args.Error(2)
}

func (m *MockEnvelopeService) DownloadURL(ctx context.Context, owner domain.Owner, docID uuid.UUID) (string, error) {
	args := m.Called(ctx, owner, docID)
	return args.String(0), args.Error(1)
}

func (m *MockEnvelopeService) AuditTrail(ctx context.Context, owner domain.Owner, docID uuid.UUID, offset, limit int) ([]domain.AuditLog, int, error) {
	args := m.Called(ctx, owner, docID, offset, limit)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]domain.AuditLog), args.Int(1), args.Error(2)
}

func (m *MockEnvelopeService) ExportAudit(ctx context.Context, owner domain.Owner, docID uuid.UUID, format auditexport.Format) (*auditexport.File, error) {
	args := m.Called(ctx, owner, docID, format)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*auditexport.File), args.Error(1)
}

func (m *MockEnvelopeService) Complete(ctx context.Context, token, ip, userAgent string) (*domain.SignRequest, error) {
	args := m.Called(ctx, token, ip, userAgent)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.SignRequest), args.Error(1)
}

func (m *MockEnvelopeService) Decline(ctx context.Context, token, ip, userAgent, reason string) (*domain.SignRequest, error) {
	args := m.Called(ctx, token, ip, userAgent, reason)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.SignRequest), args.Error(1)
}
