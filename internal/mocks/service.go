package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/sunksun/mekong-fish-payments/internal/domain"
	"github.com/sunksun/mekong-fish-payments/internal/service"
)

type MockReconciler struct {
	mock.Mock
}

func (m *MockReconciler) EligibleRecords(ctx context.Context, fisherID string, startDay, endDay time.Time) (*domain.EligibleRecordsResponse, error) {
	args := m.Called(ctx, fisherID, startDay, endDay)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.EligibleRecordsResponse), args.Error(1)
}

func (m *MockReconciler) Reconcile(ctx context.Context, cmd service.ReconcileCommand) (*domain.Payment, error) {
	args := m.Called(ctx, cmd)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Payment), args.Error(1)
}

func (m *MockReconciler) GetPayment(ctx context.Context, paymentID string) (*domain.Payment, error) {
	args := m.Called(ctx, paymentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Payment), args.Error(1)
}

func (m *MockReconciler) ListPayments(ctx context.Context, fisherID string) ([]*domain.Payment, error) {
	args := m.Called(ctx, fisherID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Payment), args.Error(1)
}

func (m *MockReconciler) ImportRecords(ctx context.Context, docs []map[string]interface{}) (*domain.ImportRecordsResponse, error) {
	args := m.Called(ctx, docs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ImportRecordsResponse), args.Error(1)
}

func (m *MockReconciler) GetRecord(ctx context.Context, recordID string) (*domain.FishingRecord, error) {
	args := m.Called(ctx, recordID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.FishingRecord), args.Error(1)
}

func (m *MockReconciler) ListRecords(ctx context.Context, fisherID string) ([]*domain.FishingRecord, error) {
	args := m.Called(ctx, fisherID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.FishingRecord), args.Error(1)
}

func (m *MockReconciler) PayoutTiers() []domain.PayoutTier {
	args := m.Called()
	return args.Get(0).([]domain.PayoutTier)
}

type MockWorkflow struct {
	mock.Mock
}

func (m *MockWorkflow) Start(ctx context.Context, actor domain.Actor, fisherID, fisherName string) (*domain.ReconciliationSession, error) {
	args := m.Called(ctx, actor, fisherID, fisherName)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ReconciliationSession), args.Error(1)
}

func (m *MockWorkflow) Get(ctx context.Context, actor domain.Actor, id string) (*domain.ReconciliationSession, error) {
	args := m.Called(ctx, actor, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ReconciliationSession), args.Error(1)
}

func (m *MockWorkflow) SelectPeriod(ctx context.Context, actor domain.Actor, id string, startDay, endDay time.Time) (*domain.ReconciliationSession, *domain.EligibleRecordsResponse, error) {
	args := m.Called(ctx, actor, id, startDay, endDay)
	if args.Get(0) == nil {
		return nil, nil, args.Error(2)
	}
	return args.Get(0).(*domain.ReconciliationSession), args.Get(1).(*domain.EligibleRecordsResponse), args.Error(2)
}

func (m *MockWorkflow) SelectRecords(ctx context.Context, actor domain.Actor, id string, recordIDs []string) (*domain.ReconciliationSession, error) {
	args := m.Called(ctx, actor, id, recordIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ReconciliationSession), args.Error(1)
}

func (m *MockWorkflow) SetRate(ctx context.Context, actor domain.Actor, id string, rate domain.RateSelector, paidAt *time.Time, notes string) (*domain.ReconciliationSession, *domain.Payout, error) {
	args := m.Called(ctx, actor, id, rate, paidAt, notes)
	if args.Get(0) == nil {
		return nil, nil, args.Error(2)
	}
	return args.Get(0).(*domain.ReconciliationSession), args.Get(1).(*domain.Payout), args.Error(2)
}

func (m *MockWorkflow) Commit(ctx context.Context, actor domain.Actor, id string) (*domain.ReconciliationSession, *domain.Payment, error) {
	args := m.Called(ctx, actor, id)
	if args.Get(1) == nil {
		if args.Get(0) == nil {
			return nil, nil, args.Error(2)
		}
		return args.Get(0).(*domain.ReconciliationSession), nil, args.Error(2)
	}
	return args.Get(0).(*domain.ReconciliationSession), args.Get(1).(*domain.Payment), args.Error(2)
}

type MockIntegritySweeper struct {
	mock.Mock
}

func (m *MockIntegritySweeper) Sweep(ctx context.Context) (*domain.IntegrityReport, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.IntegrityReport), args.Error(1)
}
