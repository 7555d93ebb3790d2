package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/sunksun/mekong-fish-payments/internal/domain"
	"github.com/sunksun/mekong-fish-payments/internal/lock"
)

type MockRecordRepository struct {
	mock.Mock
}

func (m *MockRecordRepository) GetByID(ctx context.Context, id string) (*domain.FishingRecord, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.FishingRecord), args.Error(1)
}

func (m *MockRecordRepository) ListByFisher(ctx context.Context, fisherID string) ([]*domain.FishingRecord, error) {
	args := m.Called(ctx, fisherID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.FishingRecord), args.Error(1)
}

func (m *MockRecordRepository) ListByFisherAndRange(ctx context.Context, fisherID string, start, end time.Time) ([]*domain.FishingRecord, error) {
	args := m.Called(ctx, fisherID, start, end)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.FishingRecord), args.Error(1)
}

func (m *MockRecordRepository) Upsert(ctx context.Context, records []*domain.FishingRecord) error {
	args := m.Called(ctx, records)
	return args.Error(0)
}

type MockPaymentRepository struct {
	mock.Mock
}

func (m *MockPaymentRepository) GetByID(ctx context.Context, id string) (*domain.Payment, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Payment), args.Error(1)
}

func (m *MockPaymentRepository) ListByFisher(ctx context.Context, fisherID string) ([]*domain.Payment, error) {
	args := m.Called(ctx, fisherID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Payment), args.Error(1)
}

func (m *MockPaymentRepository) FindByFisherAndPeriod(ctx context.Context, fisherID, periodKey string) ([]*domain.Payment, error) {
	args := m.Called(ctx, fisherID, periodKey)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Payment), args.Error(1)
}

func (m *MockPaymentRepository) CommitReconciliation(ctx context.Context, input domain.CommitInput) (*domain.Payment, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Payment), args.Error(1)
}

func (m *MockPaymentRepository) FindOrphans(ctx context.Context) (int, []domain.OrphanedPayment, error) {
	args := m.Called(ctx)
	if args.Get(1) == nil {
		return args.Int(0), nil, args.Error(2)
	}
	return args.Int(0), args.Get(1).([]domain.OrphanedPayment), args.Error(2)
}

type MockLocker struct {
	mock.Mock
}

func (m *MockLocker) Acquire(ctx context.Context, key string) (lock.Lease, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(lock.Lease), args.Error(1)
}

type MockLease struct {
	mock.Mock
}

func (m *MockLease) Release(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}
