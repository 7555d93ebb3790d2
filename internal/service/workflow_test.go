package service_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sunksun/mekong-fish-payments/internal/domain"
	"github.com/sunksun/mekong-fish-payments/internal/lock"
	"github.com/sunksun/mekong-fish-payments/internal/mocks"
	"github.com/sunksun/mekong-fish-payments/internal/service"
	"github.com/sunksun/mekong-fish-payments/internal/session"
	customError "github.com/sunksun/mekong-fish-payments/pkg/errors"
)

type workflowFixture struct {
	workflow *service.WorkflowService
	locker   lock.Locker
	records  *mocks.MockRecordRepository
	payments *mocks.MockPaymentRepository
	redis    *miniredis.Miniredis
}

func newWorkflowFixture(t *testing.T) *workflowFixture {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	records := &mocks.MockRecordRepository{}
	payments := &mocks.MockPaymentRepository{}
	locker := lock.NewRedisLocker(client, 30*time.Second)
	svc := service.NewReconciliationService(records, payments, locker, testConfig())
	svc.Now = func() time.Time { return fixedNow }

	return &workflowFixture{
		workflow: service.NewWorkflowService(session.NewRedisStore(client, time.Hour), svc),
		locker:   locker,
		records:  records,
		payments: payments,
		redis:    mr,
	}
}

func (f *workflowFixture) openJanuary() {
	f.payments.On("FindByFisherAndPeriod", mock.Anything, "f-1", "2024-01").Return(nil, nil)
	f.records.On("ListByFisherAndRange", mock.Anything, "f-1", mock.Anything, mock.Anything).Return(januaryRecords(), nil)
}

// readyToCommit walks a January session up to the rate step.
func (f *workflowFixture) readyToCommit(t *testing.T) *domain.ReconciliationSession {
	t.Helper()
	f.openJanuary()
	ctx := context.Background()

	sess, err := f.workflow.Start(ctx, officer, "f-1", "Somchai")
	require.NoError(t, err)
	sess, _, err = f.workflow.SelectPeriod(ctx, officer, sess.ID, *at(2024, time.January, 1, 0, 0), *at(2024, time.January, 31, 0, 0))
	require.NoError(t, err)
	sess, err = f.workflow.SelectRecords(ctx, officer, sess.ID, nil)
	require.NoError(t, err)
	sess, _, err = f.workflow.SetRate(ctx, officer, sess.ID, domain.RateSelector{Tier: "standard"}, nil, "")
	require.NoError(t, err)
	return sess
}

func TestWorkflow_HappyPath(t *testing.T) {
	f := newWorkflowFixture(t)
	f.openJanuary()
	ctx := context.Background()

	sess, err := f.workflow.Start(ctx, officer, "f-1", "Somchai")
	require.NoError(t, err)
	assert.Equal(t, domain.StateSelectingPeriod, sess.State)

	sess, eligible, err := f.workflow.SelectPeriod(ctx, officer, sess.ID, *at(2024, time.January, 1, 0, 0), *at(2024, time.January, 31, 0, 0))
	require.NoError(t, err)
	assert.Equal(t, domain.StateReviewingEligibleRecords, sess.State)
	assert.Equal(t, 3, eligible.Count)
	assert.Equal(t, []string{"r-1", "r-2", "r-3"}, sess.SelectedRecordIDs)

	sess, err = f.workflow.SelectRecords(ctx, officer, sess.ID, []string{"r-1", "r-3"})
	require.NoError(t, err)
	assert.Equal(t, domain.StateSettingRate, sess.State)
	assert.Equal(t, []string{"r-1", "r-3"}, sess.SelectedRecordIDs)

	custom := decimal.NewFromInt(650)
	sess, payout, err := f.workflow.SetRate(ctx, officer, sess.ID, domain.RateSelector{Custom: &custom}, nil, "wet season")
	require.NoError(t, err)
	assert.True(t, payout.Amount.Equal(custom))
	assert.Equal(t, 2, payout.RecordCount)

	f.payments.On("CommitReconciliation", mock.Anything, mock.MatchedBy(func(in domain.CommitInput) bool {
		return assert.ObjectsAreEqual([]string{"r-1", "r-3"}, in.RecordIDs) &&
			in.Payout.Amount.Equal(custom) &&
			in.Notes == "wet season" &&
			in.PaidBy.ID == officer.ID
	})).Return(&domain.Payment{ID: "pay-7", RecordCount: 2, Amount: custom}, nil).Once()

	sess, payment, err := f.workflow.Commit(ctx, officer, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, "pay-7", payment.ID)
	assert.Equal(t, domain.StateDone, sess.State)
	assert.Equal(t, "pay-7", sess.PaymentID)

	stored, err := f.workflow.Get(ctx, officer, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StateDone, stored.State)

	// the advisory locks are gone after commit
	assert.False(t, f.redis.Exists("reconcile-lock:f-1:2024-01"))
	assert.False(t, f.redis.Exists("reconcile-lock:session:"+sess.ID))
	f.payments.AssertExpectations(t)

	// a finished session accepts no further steps
	_, _, err = f.workflow.SelectPeriod(ctx, officer, sess.ID, *at(2024, time.February, 1, 0, 0), *at(2024, time.February, 29, 0, 0))
	assert.Equal(t, customError.ErrCodeInvalidTransition, customError.Code(err))
}

func TestWorkflow_OutcomeSavedAfterClientDisconnects(t *testing.T) {
	f := newWorkflowFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sess := f.readyToCommit(t)

	// the request goes away while the transaction commits
	f.payments.On("CommitReconciliation", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { cancel() }).
		Return(&domain.Payment{ID: "pay-9", RecordCount: 3}, nil).Once()

	_, payment, err := f.workflow.Commit(ctx, officer, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, "pay-9", payment.ID)

	stored, err := f.workflow.Get(context.Background(), officer, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StateDone, stored.State)
	assert.Equal(t, "pay-9", stored.PaymentID)
}

func TestWorkflow_ConcurrentCommitOfSameSession(t *testing.T) {
	f := newWorkflowFixture(t)
	ctx := context.Background()
	sess := f.readyToCommit(t)

	// another request is already committing this session
	lease, err := f.locker.Acquire(ctx, "session:"+sess.ID)
	require.NoError(t, err)

	_, payment, err := f.workflow.Commit(ctx, officer, sess.ID)
	assert.Nil(t, payment)
	assert.Equal(t, customError.ErrCodeInvalidTransition, customError.Code(err))
	f.payments.AssertNotCalled(t, "CommitReconciliation", mock.Anything, mock.Anything)

	stored, err := f.workflow.Get(ctx, officer, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StateSettingRate, stored.State)
	assert.Empty(t, stored.FailureCode)

	require.NoError(t, lease.Release(ctx))
	f.payments.On("CommitReconciliation", mock.Anything, mock.Anything).
		Return(&domain.Payment{ID: "pay-10", RecordCount: 3}, nil).Once()

	done, payment, err := f.workflow.Commit(ctx, officer, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, "pay-10", payment.ID)
	assert.Equal(t, domain.StateDone, done.State)
}

func TestWorkflow_OutOfOrderSteps(t *testing.T) {
	f := newWorkflowFixture(t)
	ctx := context.Background()

	sess, err := f.workflow.Start(ctx, officer, "f-1", "Somchai")
	require.NoError(t, err)

	_, err = f.workflow.SelectRecords(ctx, officer, sess.ID, []string{"r-1"})
	assert.Equal(t, customError.ErrCodeInvalidTransition, customError.Code(err))

	_, _, err = f.workflow.SetRate(ctx, officer, sess.ID, domain.RateSelector{Tier: "basic"}, nil, "")
	assert.Equal(t, customError.ErrCodeInvalidTransition, customError.Code(err))

	_, _, err = f.workflow.Commit(ctx, officer, sess.ID)
	assert.ErrorIs(t, err, customError.ErrInvalidTransition)

	stored, err := f.workflow.Get(ctx, officer, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StateSelectingPeriod, stored.State)
}

func TestWorkflow_DuplicatePeriodKeepsSessionInPlace(t *testing.T) {
	f := newWorkflowFixture(t)
	ctx := context.Background()
	f.payments.On("FindByFisherAndPeriod", mock.Anything, "f-1", "2024-01").
		Return([]*domain.Payment{{ID: "pay-old"}}, nil)

	sess, err := f.workflow.Start(ctx, officer, "f-1", "Somchai")
	require.NoError(t, err)

	_, _, err = f.workflow.SelectPeriod(ctx, officer, sess.ID, *at(2024, time.January, 10, 0, 0), *at(2024, time.January, 20, 0, 0))
	assert.Equal(t, customError.ErrCodeDuplicatePeriod, customError.Code(err))
	assert.Contains(t, customError.Message(err), "January 2024")

	stored, err := f.workflow.Get(ctx, officer, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StateSelectingPeriod, stored.State)
	assert.Nil(t, stored.Period)
}

func TestWorkflow_BackToReviewFromRate(t *testing.T) {
	f := newWorkflowFixture(t)
	f.openJanuary()
	ctx := context.Background()

	sess, err := f.workflow.Start(ctx, officer, "f-1", "Somchai")
	require.NoError(t, err)
	sess, _, err = f.workflow.SelectPeriod(ctx, officer, sess.ID, *at(2024, time.January, 1, 0, 0), *at(2024, time.January, 31, 0, 0))
	require.NoError(t, err)
	sess, err = f.workflow.SelectRecords(ctx, officer, sess.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"r-1", "r-2", "r-3"}, sess.SelectedRecordIDs)

	sess, _, err = f.workflow.SelectPeriod(ctx, officer, sess.ID, *at(2024, time.January, 1, 0, 0), *at(2024, time.January, 31, 0, 0))
	require.NoError(t, err)
	assert.Equal(t, domain.StateReviewingEligibleRecords, sess.State)
	assert.Nil(t, sess.Rate)
}

func TestWorkflow_FailedCommitIsRecorded(t *testing.T) {
	f := newWorkflowFixture(t)
	f.openJanuary()
	ctx := context.Background()

	sess, err := f.workflow.Start(ctx, officer, "f-1", "Somchai")
	require.NoError(t, err)
	sess, _, err = f.workflow.SelectPeriod(ctx, officer, sess.ID, *at(2024, time.January, 1, 0, 0), *at(2024, time.January, 31, 0, 0))
	require.NoError(t, err)
	sess, err = f.workflow.SelectRecords(ctx, officer, sess.ID, nil)
	require.NoError(t, err)
	sess, _, err = f.workflow.SetRate(ctx, officer, sess.ID, domain.RateSelector{Tier: "basic"}, nil, "")
	require.NoError(t, err)

	f.payments.On("CommitReconciliation", mock.Anything, mock.Anything).
		Return(nil, fmt.Errorf("record r-2: %w", customError.ErrRecordNotEligible))

	sess, payment, err := f.workflow.Commit(ctx, officer, sess.ID)
	assert.Nil(t, payment)
	assert.Equal(t, customError.ErrCodeCommitFailed, customError.Code(err))
	assert.Equal(t, domain.StateFailed, sess.State)
	assert.Equal(t, customError.ErrCodeCommitFailed, sess.FailureCode)
	assert.NotEmpty(t, sess.FailureMessage)

	_, _, err = f.workflow.Commit(ctx, officer, sess.ID)
	assert.Equal(t, customError.ErrCodeInvalidTransition, customError.Code(err))
}

func TestWorkflow_SessionsArePrivate(t *testing.T) {
	f := newWorkflowFixture(t)
	ctx := context.Background()

	sess, err := f.workflow.Start(ctx, officer, "f-1", "Somchai")
	require.NoError(t, err)

	other := domain.Actor{ID: "admin-2", Name: "Officer Dara", Role: "admin"}
	_, err = f.workflow.Get(ctx, other, sess.ID)
	assert.Equal(t, customError.ErrCodeSessionNotFound, customError.Code(err))

	_, err = f.workflow.Get(ctx, officer, "no-such-session")
	assert.ErrorIs(t, err, customError.ErrSessionNotFound)
}

func TestWorkflow_StartRequiresFisher(t *testing.T) {
	f := newWorkflowFixture(t)

	_, err := f.workflow.Start(context.Background(), officer, "  ", "")
	assert.ErrorIs(t, err, customError.ErrValidation)
}
