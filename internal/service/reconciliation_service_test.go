package service_test

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sunksun/mekong-fish-payments/internal/config"
	"github.com/sunksun/mekong-fish-payments/internal/domain"
	"github.com/sunksun/mekong-fish-payments/internal/lock"
	"github.com/sunksun/mekong-fish-payments/internal/mocks"
	"github.com/sunksun/mekong-fish-payments/internal/service"
	customError "github.com/sunksun/mekong-fish-payments/pkg/errors"
)

var (
	officer  = domain.Actor{ID: "admin-1", Name: "Officer Kanya", Role: "admin"}
	fixedNow = time.Date(2024, time.February, 3, 10, 0, 0, 0, time.UTC)
)

func testConfig() *config.Config {
	return &config.Config{
		Business: config.BusinessConfig{
			Timezone:    "Asia/Bangkok",
			PayoutTiers: "basic=300,standard=500,premium=1000",
		},
	}
}

func newTestService(records *mocks.MockRecordRepository, payments *mocks.MockPaymentRepository, locker lock.Locker) *service.ReconciliationService {
	svc := service.NewReconciliationService(records, payments, locker, testConfig())
	svc.Now = func() time.Time { return fixedNow }
	return svc
}

func januaryRecords() []*domain.FishingRecord {
	return []*domain.FishingRecord{
		record("r-3", "f-1", at(2024, time.January, 20, 7, 0), true, false),
		record("r-1", "f-1", at(2024, time.January, 2, 7, 0), true, false),
		record("r-2", "f-1", at(2024, time.January, 9, 7, 0), true, false),
		record("r-x", "f-1", at(2024, time.January, 15, 7, 0), false, false),
	}
}

func januaryCommand() service.ReconcileCommand {
	return service.ReconcileCommand{
		FisherID:    "f-1",
		FisherName:  "Somchai",
		PeriodStart: *at(2024, time.January, 1, 0, 0),
		PeriodEnd:   *at(2024, time.January, 31, 0, 0),
		Rate:        domain.RateSelector{Tier: "standard"},
		Notes:       "  January catch  ",
		Actor:       officer,
	}
}

func TestReconcile_PaysAllEligibleRecords(t *testing.T) {
	records := &mocks.MockRecordRepository{}
	payments := &mocks.MockPaymentRepository{}
	svc := newTestService(records, payments, nil)

	payments.On("FindByFisherAndPeriod", mock.Anything, "f-1", "2024-01").Return([]*domain.Payment{}, nil)
	records.On("ListByFisherAndRange", mock.Anything, "f-1", mock.Anything, mock.Anything).Return(januaryRecords(), nil)

	var committed domain.CommitInput
	payments.On("CommitReconciliation", mock.Anything, mock.MatchedBy(func(in domain.CommitInput) bool {
		committed = in
		return true
	})).Return(&domain.Payment{
		ID:          "pay-1",
		FisherID:    "f-1",
		PeriodKey:   "2024-01",
		RecordIDs:   []string{"r-1", "r-2", "r-3"},
		RecordCount: 3,
		Amount:      decimal.NewFromInt(500),
		Status:      domain.PaymentStatusPaid,
		PaidByID:    officer.ID,
	}, nil).Once()

	payment, err := svc.Reconcile(context.Background(), januaryCommand())

	require.NoError(t, err)
	assert.Equal(t, "pay-1", payment.ID)
	assert.Equal(t, []string{"r-1", "r-2", "r-3"}, committed.RecordIDs)
	assert.True(t, committed.Payout.Amount.Equal(decimal.NewFromInt(500)))
	assert.Equal(t, "standard", committed.Payout.Tier)
	assert.Equal(t, "2024-01", committed.Period.Key)
	assert.Equal(t, fixedNow, committed.PaidAt)
	assert.Equal(t, officer, committed.PaidBy)
	assert.Equal(t, "January catch", committed.Notes)

	records.AssertExpectations(t)
	payments.AssertExpectations(t)
}

func TestReconcile_NarrowedSelection(t *testing.T) {
	records := &mocks.MockRecordRepository{}
	payments := &mocks.MockPaymentRepository{}
	svc := newTestService(records, payments, nil)

	payments.On("FindByFisherAndPeriod", mock.Anything, "f-1", "2024-01").Return(nil, nil)
	records.On("ListByFisherAndRange", mock.Anything, "f-1", mock.Anything, mock.Anything).Return(januaryRecords(), nil)
	payments.On("CommitReconciliation", mock.Anything, mock.MatchedBy(func(in domain.CommitInput) bool {
		return assert.ObjectsAreEqual([]string{"r-2", "r-1"}, in.RecordIDs)
	})).Return(&domain.Payment{ID: "pay-2", RecordCount: 2}, nil).Once()

	cmd := januaryCommand()
	cmd.RecordIDs = []string{"r-2", "r-1", "r-2"}
	paidOn := *at(2024, time.February, 1, 15, 0)
	cmd.PaidAt = &paidOn

	payment, err := svc.Reconcile(context.Background(), cmd)

	require.NoError(t, err)
	assert.Equal(t, "pay-2", payment.ID)
	payments.AssertExpectations(t)
}

func TestReconcile_Rejections(t *testing.T) {
	tests := []struct {
		name         string
		mutate       func(*service.ReconcileCommand)
		setup        func(*mocks.MockRecordRepository, *mocks.MockPaymentRepository)
		expectedCode string
		expectedErr  error
	}{
		{
			name:         "missing fisher",
			mutate:       func(c *service.ReconcileCommand) { c.FisherID = " " },
			expectedCode: customError.ErrCodeValidation,
			expectedErr:  customError.ErrValidation,
		},
		{
			name: "inverted range",
			mutate: func(c *service.ReconcileCommand) {
				c.PeriodStart, c.PeriodEnd = c.PeriodEnd, c.PeriodStart
			},
			expectedCode: customError.ErrCodeValidation,
			expectedErr:  customError.ErrValidation,
		},
		{
			name:         "unknown tier fails before any store access",
			mutate:       func(c *service.ReconcileCommand) { c.Rate = domain.RateSelector{Tier: "gold"} },
			expectedCode: customError.ErrCodeValidation,
			expectedErr:  customError.ErrValidation,
		},
		{
			name: "period already paid",
			setup: func(r *mocks.MockRecordRepository, p *mocks.MockPaymentRepository) {
				p.On("FindByFisherAndPeriod", mock.Anything, "f-1", "2024-01").
					Return([]*domain.Payment{{ID: "pay-old"}}, nil)
			},
			expectedCode: customError.ErrCodeDuplicatePeriod,
			expectedErr:  customError.ErrDuplicatePeriod,
		},
		{
			name: "no eligible records",
			setup: func(r *mocks.MockRecordRepository, p *mocks.MockPaymentRepository) {
				p.On("FindByFisherAndPeriod", mock.Anything, "f-1", "2024-01").Return(nil, nil)
				r.On("ListByFisherAndRange", mock.Anything, "f-1", mock.Anything, mock.Anything).
					Return([]*domain.FishingRecord{
						record("r-u", "f-1", at(2024, time.January, 3, 7, 0), false, false),
						record("r-p", "f-1", at(2024, time.January, 4, 7, 0), true, true),
					}, nil)
			},
			expectedCode: customError.ErrCodeNoEligibleRecords,
			expectedErr:  customError.ErrNoEligibleRecords,
		},
		{
			name:   "selection outside the eligible set",
			mutate: func(c *service.ReconcileCommand) { c.RecordIDs = []string{"r-1", "r-x"} },
			setup: func(r *mocks.MockRecordRepository, p *mocks.MockPaymentRepository) {
				p.On("FindByFisherAndPeriod", mock.Anything, "f-1", "2024-01").Return(nil, nil)
				r.On("ListByFisherAndRange", mock.Anything, "f-1", mock.Anything, mock.Anything).Return(januaryRecords(), nil)
			},
			expectedCode: customError.ErrCodeValidation,
			expectedErr:  customError.ErrValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records := &mocks.MockRecordRepository{}
			payments := &mocks.MockPaymentRepository{}
			if tt.setup != nil {
				tt.setup(records, payments)
			}
			svc := newTestService(records, payments, nil)

			cmd := januaryCommand()
			if tt.mutate != nil {
				tt.mutate(&cmd)
			}

			payment, err := svc.Reconcile(context.Background(), cmd)

			assert.Nil(t, payment)
			assert.ErrorIs(t, err, tt.expectedErr)
			assert.Equal(t, tt.expectedCode, customError.Code(err))
			payments.AssertNotCalled(t, "CommitReconciliation", mock.Anything, mock.Anything)
			records.AssertExpectations(t)
			payments.AssertExpectations(t)
		})
	}
}

func TestReconcile_CommitRolledBack(t *testing.T) {
	records := &mocks.MockRecordRepository{}
	payments := &mocks.MockPaymentRepository{}
	svc := newTestService(records, payments, nil)

	payments.On("FindByFisherAndPeriod", mock.Anything, "f-1", "2024-01").Return(nil, nil)
	records.On("ListByFisherAndRange", mock.Anything, "f-1", mock.Anything, mock.Anything).Return(januaryRecords(), nil)
	payments.On("CommitReconciliation", mock.Anything, mock.Anything).
		Return(nil, fmt.Errorf("record r-2: %w", customError.ErrRecordNotEligible))

	payment, err := svc.Reconcile(context.Background(), januaryCommand())

	assert.Nil(t, payment)
	assert.Equal(t, customError.ErrCodeCommitFailed, customError.Code(err))
	assert.True(t, customError.Retryable(err))
	assert.ErrorIs(t, err, customError.ErrRecordNotEligible)
}

func TestReconcile_UniqueIndexReportsDuplicatePeriod(t *testing.T) {
	records := &mocks.MockRecordRepository{}
	payments := &mocks.MockPaymentRepository{}
	svc := newTestService(records, payments, nil)

	payments.On("FindByFisherAndPeriod", mock.Anything, "f-1", "2024-01").Return(nil, nil)
	records.On("ListByFisherAndRange", mock.Anything, "f-1", mock.Anything, mock.Anything).Return(januaryRecords(), nil)
	payments.On("CommitReconciliation", mock.Anything, mock.Anything).
		Return(nil, fmt.Errorf("%w: fisher f-1 period 2024-01", customError.ErrDuplicatePeriod))

	_, err := svc.Reconcile(context.Background(), januaryCommand())

	assert.Equal(t, customError.ErrCodeDuplicatePeriod, customError.Code(err))
	assert.Contains(t, customError.Message(err), "January 2024")
}

func TestReconcile_LockHeldElsewhere(t *testing.T) {
	records := &mocks.MockRecordRepository{}
	payments := &mocks.MockPaymentRepository{}
	locker := &mocks.MockLocker{}
	svc := newTestService(records, payments, locker)

	payments.On("FindByFisherAndPeriod", mock.Anything, "f-1", "2024-01").Return(nil, nil)
	records.On("ListByFisherAndRange", mock.Anything, "f-1", mock.Anything, mock.Anything).Return(januaryRecords(), nil)
	locker.On("Acquire", mock.Anything, "f-1:2024-01").Return(nil, lock.ErrNotAcquired)

	_, err := svc.Reconcile(context.Background(), januaryCommand())

	assert.Equal(t, customError.ErrCodeReconciliationInProgress, customError.Code(err))
	assert.True(t, customError.Retryable(err))
	payments.AssertNotCalled(t, "CommitReconciliation", mock.Anything, mock.Anything)
}

func TestReconcile_ReleasesLock(t *testing.T) {
	records := &mocks.MockRecordRepository{}
	payments := &mocks.MockPaymentRepository{}
	locker := &mocks.MockLocker{}
	lease := &mocks.MockLease{}
	svc := newTestService(records, payments, locker)

	payments.On("FindByFisherAndPeriod", mock.Anything, "f-1", "2024-01").Return(nil, nil)
	records.On("ListByFisherAndRange", mock.Anything, "f-1", mock.Anything, mock.Anything).Return(januaryRecords(), nil)
	locker.On("Acquire", mock.Anything, "f-1:2024-01").Return(lease, nil)
	lease.On("Release", mock.Anything).Return(nil).Once()
	payments.On("CommitReconciliation", mock.Anything, mock.Anything).Return(nil, errors.New("tx aborted"))

	_, err := svc.Reconcile(context.Background(), januaryCommand())

	assert.Equal(t, customError.ErrCodeCommitFailed, customError.Code(err))
	locker.AssertExpectations(t)
	lease.AssertExpectations(t)
}

func TestEligibleRecords(t *testing.T) {
	records := &mocks.MockRecordRepository{}
	payments := &mocks.MockPaymentRepository{}
	svc := newTestService(records, payments, nil)

	payments.On("FindByFisherAndPeriod", mock.Anything, "f-1", "2024-01").Return(nil, nil)
	records.On("ListByFisherAndRange", mock.Anything, "f-1",
		sameInstant(time.Date(2024, time.January, 1, 0, 0, 0, 0, bangkok)),
		sameInstant(time.Date(2024, time.January, 31, 23, 59, 59, 999999999, bangkok)),
	).Return(januaryRecords(), nil)

	got, err := svc.EligibleRecords(context.Background(), "f-1", *at(2024, time.January, 1, 0, 0), *at(2024, time.January, 31, 0, 0))

	require.NoError(t, err)
	assert.Equal(t, 3, got.Count)
	assert.Equal(t, []string{"r-1", "r-2", "r-3"}, got.RecordIDs)
	assert.Equal(t, "2024-01", got.Period.Key)
	records.AssertExpectations(t)
}

func sameInstant(want time.Time) interface{} {
	return mock.MatchedBy(func(got time.Time) bool { return got.Equal(want) })
}

func TestGetPayment_NotFound(t *testing.T) {
	payments := &mocks.MockPaymentRepository{}
	svc := newTestService(&mocks.MockRecordRepository{}, payments, nil)

	payments.On("GetByID", mock.Anything, "missing").Return(nil, fmt.Errorf("get payment: %w", sql.ErrNoRows))

	_, err := svc.GetPayment(context.Background(), "missing")
	assert.Equal(t, customError.ErrCodePaymentNotFound, customError.Code(err))
}

func TestListPayments_EmptyIsNotNil(t *testing.T) {
	payments := &mocks.MockPaymentRepository{}
	svc := newTestService(&mocks.MockRecordRepository{}, payments, nil)

	payments.On("ListByFisher", mock.Anything, "f-9").Return(nil, nil)

	got, err := svc.ListPayments(context.Background(), "f-9")
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestGetRecord(t *testing.T) {
	records := &mocks.MockRecordRepository{}
	svc := newTestService(records, &mocks.MockPaymentRepository{}, nil)

	records.On("GetByID", mock.Anything, "r-1").Return(record("r-1", "f-1", at(2024, time.January, 2, 7, 0), true, false), nil)
	records.On("GetByID", mock.Anything, "missing").Return(nil, sql.ErrNoRows)
	records.On("GetByID", mock.Anything, "r-db").Return(nil, errors.New("connection reset"))

	got, err := svc.GetRecord(context.Background(), "r-1")
	require.NoError(t, err)
	assert.Equal(t, "f-1", got.FisherID)

	_, err = svc.GetRecord(context.Background(), "missing")
	assert.ErrorIs(t, err, customError.ErrRecordNotFound)

	_, err = svc.GetRecord(context.Background(), "r-db")
	assert.Equal(t, customError.ErrCodeDatabaseError, customError.Code(err))
}

func TestListRecords_EmptyIsNotNil(t *testing.T) {
	records := &mocks.MockRecordRepository{}
	svc := newTestService(records, &mocks.MockPaymentRepository{}, nil)

	records.On("ListByFisher", mock.Anything, "f-9").Return(nil, nil)

	got, err := svc.ListRecords(context.Background(), "f-9")
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestPayoutTiers_CheapestFirst(t *testing.T) {
	svc := newTestService(&mocks.MockRecordRepository{}, &mocks.MockPaymentRepository{}, nil)

	tiers := svc.PayoutTiers()

	require.Len(t, tiers, 3)
	assert.Equal(t, []string{"basic", "standard", "premium"}, []string{tiers[0].Name, tiers[1].Name, tiers[2].Name})
	assert.True(t, tiers[2].Amount.Equal(decimal.NewFromInt(1000)))
}

func TestImportRecords(t *testing.T) {
	records := &mocks.MockRecordRepository{}
	svc := newTestService(records, &mocks.MockPaymentRepository{}, nil)

	docs := []map[string]interface{}{
		{"id": "leg-1", "userId": "f-1", "catchDate": "2024-01-05", "verified": "true",
			"fishData": []interface{}{map[string]interface{}{"species": "Mekong catfish", "weight": "4.5", "price": 900}}},
		{"id": "leg-2", "fisherId": "f-1", "isPaid": true},
		{"fisherId": "f-1"},
	}

	records.On("Upsert", mock.Anything, mock.MatchedBy(func(rs []*domain.FishingRecord) bool {
		return len(rs) == 1 && rs[0].ID == "leg-1" && rs[0].Verified && rs[0].TotalValue.Equal(decimal.NewFromInt(900))
	})).Return(nil).Once()

	result, err := svc.ImportRecords(context.Background(), docs)

	require.NoError(t, err)
	assert.Equal(t, 1, result.Imported)
	require.Len(t, result.Skipped, 2)
	assert.Contains(t, result.Skipped[0], "document 1")
	assert.Contains(t, result.Skipped[1], "document 2")
	records.AssertExpectations(t)
}
